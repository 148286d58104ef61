package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"
)

// Dispatcher receives decoded ingest packets for a given peer, implemented
// by internal/ingest.
type Dispatcher interface {
	Dispatch(peerID string, data []byte)
}

// Lifecycle is notified when a peer joins or leaves, implemented by
// internal/source's Registry (AddAvatar/RemoveClient have matching
// shapes) via a thin adapter in cmd/mixer. isStereo reflects the join
// message's Stereo field.
type Lifecycle interface {
	OnJoin(peerID string, isStereo bool)
	OnLeave(peerID string)
}

// Server wraps a WebTransport/HTTP3 listener, handing each session's
// datagrams to a Dispatcher and its lifecycle events to a Lifecycle.
type Server struct {
	addr       string
	tlsConfig  *tls.Config
	hub        *Hub
	dispatcher Dispatcher
	lifecycle  Lifecycle
	logger     *slog.Logger

	wt *webtransport.Server
}

// NewServer constructs a Server. certValidity controls the self-signed
// certificate lifetime; hostname sets its Common Name and primary DNS SAN;
// altNames (e.g. a sanitized admin-configured server display name) are
// folded in as additional SANs.
func NewServer(addr, hostname string, altNames []string, certValidity time.Duration, hub *Hub, dispatcher Dispatcher, lifecycle Lifecycle, logger *slog.Logger) (*Server, string, error) {
	tlsConfig, fingerprint, err := generateTLSConfig(certValidity, hostname, altNames...)
	if err != nil {
		return nil, "", err
	}
	return &Server{
		addr:       addr,
		tlsConfig:  tlsConfig,
		hub:        hub,
		dispatcher: dispatcher,
		lifecycle:  lifecycle,
		logger:     logger,
	}, fingerprint, nil
}

// Run starts the WebTransport server and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	s.wt = &webtransport.Server{
		H3: &http3.Server{
			Addr:      s.addr,
			TLSConfig: s.tlsConfig,
			Handler:   mux,
		},
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	webtransport.ConfigureHTTP3Server(s.wt.H3)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.wt.Upgrade(w, r)
		if err != nil {
			s.logger.Warn("upgrade failed", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		s.handleSession(ctx, sess)
	})

	s.logger.Info("transport listening", "addr", s.addr)

	go func() {
		<-ctx.Done()
		s.wt.Close()
	}()

	return s.wt.ListenAndServe()
}

// handleSession manages one WebTransport session end to end, mirroring
// the teacher's handleClient: accept the control stream, read the join
// handshake, register the peer, then pump datagrams until disconnect.
func (s *Server) handleSession(ctx context.Context, sess *webtransport.Session) {
	ctx, cancel := context.WithCancel(ctx)
	peer := &Peer{
		Session: sess,
		cancel:  cancel,
	}

	defer func() {
		cancel()
		if peer.ID != "" {
			s.hub.RemovePeer(peer.ID)
			s.lifecycle.OnLeave(peer.ID)
		}
		sess.CloseWithError(0, "bye")
	}()

	stream, err := sess.AcceptStream(ctx)
	if err != nil {
		s.logger.Warn("accept control stream failed", "err", err)
		return
	}
	peer.ctrl = stream

	reader := bufio.NewReader(stream)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		s.logger.Warn("no join message", "err", err)
		return
	}

	var joinMsg ControlMsg
	if err := json.Unmarshal(line, &joinMsg); err != nil || joinMsg.Type != "join" {
		s.logger.Warn("invalid join message", "err", err)
		return
	}

	peer.ID = uuid.NewString()
	peer.Username = joinMsg.Username
	s.hub.AddPeer(peer)
	s.lifecycle.OnJoin(peer.ID, joinMsg.Stereo)

	peer.SendControl(ControlMsg{Type: "welcome", ID: peer.ID})

	go s.readDatagrams(ctx, sess, peer.ID)

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				s.logger.Debug("control read error", "peer", peer.ID, "err", err)
			}
			return
		}
		var msg ControlMsg
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			peer.SendControl(ControlMsg{Type: "pong", Ts: msg.Ts})
		}
	}
}

// readDatagrams reads ingest datagrams from a peer and hands each to the
// Dispatcher. There is no sender-ID field to anti-spoof here, unlike the
// teacher's raw relay: the peer identity comes from the session itself.
func (s *Server) readDatagrams(ctx context.Context, sess *webtransport.Session, peerID string) {
	for {
		data, err := sess.ReceiveDatagram(ctx)
		if err != nil {
			return
		}
		s.dispatcher.Dispatch(peerID, data)
	}
}
