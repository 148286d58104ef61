package transport

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// errCircuitOpen is returned by SendDatagram when a peer's circuit
// breaker has tripped; callers treat it the same as any other send
// failure (BackpressureOverflow, spec.md section 7).
var errCircuitOpen = errors.New("transport: peer circuit breaker open")

// Hub holds all connected peers and handles mixed-audio fan-out and
// control-stream broadcast. It is the session-management analogue of the
// Source Registry: the registry tracks audio state and the Hub tracks
// transport state.
type Hub struct {
	logger *slog.Logger

	mu    sync.RWMutex
	peers map[string]*Peer

	totalDatagrams atomic.Uint64
	totalBytes     atomic.Uint64
	badPackets     atomic.Uint64
	unknownSource  atomic.Uint64
	backpressure   atomic.Uint64
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		peers:  make(map[string]*Peer),
	}
}

// AddPeer registers a connected peer.
func (h *Hub) AddPeer(p *Peer) {
	h.mu.Lock()
	h.peers[p.ID] = p
	h.mu.Unlock()
	h.logger.Info("peer joined", "peer", p.ID, "username", p.Username, "total", h.PeerCount())
}

// RemovePeer unregisters a peer.
func (h *Hub) RemovePeer(id string) {
	h.mu.Lock()
	delete(h.peers, id)
	h.mu.Unlock()
	h.logger.Info("peer left", "peer", id, "total", h.PeerCount())
}

// SendDatagram implements the Transport collaborator contract's
// send_datagram (spec.md section 6): best-effort, never blocks longer
// than the tick, counted as BackpressureOverflow on failure.
func (h *Hub) SendDatagram(peerID string, data []byte) error {
	h.mu.RLock()
	p, ok := h.peers[peerID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	if p.circuitOpen() {
		h.backpressure.Add(1)
		return errCircuitOpen
	}

	h.totalDatagrams.Add(1)
	h.totalBytes.Add(uint64(len(data)))

	err := p.Session.SendDatagram(data)
	p.recordSendResult(err)
	if err != nil {
		h.backpressure.Add(1)
		h.logger.Debug("datagram dropped", "peer", peerID, "err", err)
		return err
	}
	return nil
}

// Broadcast sends data verbatim to every connected peer other than
// excludeID, used for MuteEnvironment rebroadcast (spec.md section 6).
func (h *Hub) Broadcast(excludeID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, p := range h.peers {
		if id == excludeID || p.circuitOpen() {
			continue
		}
		err := p.Session.SendDatagram(data)
		p.recordSendResult(err)
		if err != nil {
			h.backpressure.Add(1)
		}
	}
}

// BroadcastControl sends a control message to every peer except
// excludeID. excludeID="" sends to everyone.
func (h *Hub) BroadcastControl(msg ControlMsg, excludeID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, p := range h.peers {
		if id == excludeID {
			continue
		}
		p.SendControl(msg)
	}
}

// PeerIDs returns a snapshot of connected peer identities.
func (h *Hub) PeerIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.peers))
	for id := range h.peers {
		out = append(out, id)
	}
	return out
}

// PeerCount returns the current number of connected peers.
func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Stats is a point-in-time snapshot of transport counters, consumed by
// the admin API's /api/room endpoint.
type Stats struct {
	Peers          int
	TotalDatagrams uint64
	TotalBytes     uint64
	BadPackets     uint64
	UnknownSource  uint64
	Backpressure   uint64
}

// Stats returns accumulated datagram/byte/error counts since the last
// call and resets the counters (mirrors the teacher's Room.Stats, which
// does the same for its simpler datagram/byte pair).
func (h *Hub) Stats() Stats {
	return Stats{
		Peers:          h.PeerCount(),
		TotalDatagrams: h.totalDatagrams.Swap(0),
		TotalBytes:     h.totalBytes.Swap(0),
		BadPackets:     h.badPackets.Swap(0),
		UnknownSource:  h.unknownSource.Swap(0),
		Backpressure:   h.backpressure.Swap(0),
	}
}

// CountBadPacket records a BadPacket error (spec.md section 7).
func (h *Hub) CountBadPacket() { h.badPackets.Add(1) }

// CountUnknownSource records an UnknownSource error (spec.md section 7).
func (h *Hub) CountUnknownSource() { h.unknownSource.Add(1) }
