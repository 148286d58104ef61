// Command mixer runs the spatial audio mixer server: the WebTransport
// ingest/egress transport, the frame scheduler, and the admin HTTP API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gitter-badger/hifi/internal/adminapi"
	"github.com/gitter-badger/hifi/internal/cli"
	"github.com/gitter-badger/hifi/internal/config"
	"github.com/gitter-badger/hifi/internal/ingest"
	"github.com/gitter-badger/hifi/internal/metrics"
	"github.com/gitter-badger/hifi/internal/scheduler"
	"github.com/gitter-badger/hifi/internal/source"
	"github.com/gitter-badger/hifi/internal/store"
	"github.com/gitter-badger/hifi/internal/throttle"
	"github.com/gitter-badger/hifi/internal/transport"
)

// Version is injected at build time with -ldflags.
var Version = "0.1.0-dev"

func main() {
	cli.Version = Version

	cfg := config.Default()
	fs := flag.CommandLine
	zoneFlag := cfg.RegisterFlags(fs)
	certValidity := fs.Duration("cert-validity", 365*24*time.Hour, "self-signed certificate validity")
	flag.Parse()

	if cli.Run(flag.Args(), cfg.StorePath) {
		return
	}

	if err := cfg.ApplyZoneFlag(*zoneFlag); err != nil {
		slog.Error("invalid unattenuated-zone flag", "err", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug || strings.Contains(Version, "dev") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting mixer", "version", Version, "listen", cfg.ListenAddr, "admin", cfg.AdminAddr)

	st, err := store.New(cfg.StorePath, logger)
	if err != nil {
		logger.Error("open settings store", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	if zone, ok, _ := st.GetSetting(store.KeyUnattenuatedZone); ok && cfg.Zones == nil {
		if zones, zerr := config.ParseZonePair(zone); zerr == nil {
			cfg.Zones = zones
		} else {
			logger.Warn("ignoring stored unattenuated-zone", "err", zerr)
		}
	}

	var certSANs []string
	if name, ok, _ := st.GetSetting(store.KeyServerName); ok {
		if alt := config.SanitizeHostLabel(name); alt != "" {
			certSANs = append(certSANs, alt)
		}
	}

	registry := source.NewRegistry()
	throttleCtl := throttle.New()
	hub := transport.NewHub(logger)
	dispatcher := ingest.NewDispatcher(registry, hub, hub, logger)
	lifecycle := registryLifecycle{registry: registry}

	xport, fingerprint, err := transport.NewServer(cfg.ListenAddr, cfg.Hostname, certSANs, *certValidity, hub, dispatcher, lifecycle, logger)
	if err != nil {
		logger.Error("create transport server", "err", err)
		os.Exit(1)
	}
	logger.Info("generated self-signed certificate", "fingerprint", fingerprint)

	sched := scheduler.New(&cfg, registry, throttleCtl, hub, logger)
	adminSrv := adminapi.New(hub, throttleCtl, st, &cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logger.Info("received interrupt, shutting down")
		cancel()
	}()

	go sched.Run(ctx)
	go adminSrv.Run(ctx, cfg.AdminAddr)
	go metrics.Run(ctx, logger, hub, sched, 30*time.Second)

	if err := xport.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("transport server error", "err", err)
		os.Exit(1)
	}
	logger.Info("mixer stopped")
}

// registryLifecycle adapts *source.Registry's AddAvatar/RemoveClient to
// transport.Lifecycle. isStereo comes straight from the client's join
// control message (transport.ControlMsg.Stereo).
type registryLifecycle struct {
	registry *source.Registry
}

func (l registryLifecycle) OnJoin(peerID string, isStereo bool) {
	l.registry.AddAvatar(peerID, isStereo)
}
func (l registryLifecycle) OnLeave(peerID string) { l.registry.RemoveClient(peerID) }
