// Package scheduler drives the Frame Scheduler (spec.md section 4.4): a
// fixed-cadence cooperative tick loop that runs the Listener Mix Engine
// once per eligible listener, feeds the Throttle Controller, and hands
// mixed frames to the transport.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gitter-badger/hifi/internal/config"
	"github.com/gitter-badger/hifi/internal/mixer"
	"github.com/gitter-badger/hifi/internal/source"
	"github.com/gitter-badger/hifi/internal/throttle"
	"github.com/gitter-badger/hifi/internal/transport"
)

// Transport is the outbound half of the External Interfaces contract
// (spec.md section 6): best-effort, never blocks longer than the tick.
type Transport interface {
	SendDatagram(peerID string, data []byte) error
}

// State names the tick state machine's five states (spec.md section
// 4.4: Idle -> PreFrame -> Mixing -> PostFrame -> Sleeping -> Idle).
type State int

const (
	Idle State = iota
	PreFrame
	Mixing
	PostFrame
	Sleeping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PreFrame:
		return "pre_frame"
	case Mixing:
		return "mixing"
	case PostFrame:
		return "post_frame"
	case Sleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

// streamStatsInterval is how often a listener receives a stream-stats
// datagram (spec.md section 4: "if due, emit a stream-stats datagram"),
// distilled from the original assignment-client's one-second cadence.
const streamStatsInterval = time.Second

// Scheduler owns the tick loop. It is not safe for concurrent Run calls.
type Scheduler struct {
	cfg       *config.MixerConfig
	registry  *source.Registry
	throttle  *throttle.Controller
	transport Transport
	logger    *slog.Logger

	sequences map[string]uint16
	lastStats map[string]time.Time
	tickIndex uint64
	state     atomic.Int32
	stats     Stats
}

// Stats accumulates per-tick counters for the periodic log line (package
// metrics).
type Stats struct {
	mixes        atomic.Uint64
	listeners    atomic.Uint64
	overruns     atomic.Uint64
	sendsDropped atomic.Uint64
	streamStats  atomic.Uint64
}

// StatsSnapshot is the point-in-time, non-atomic view of Stats.
type StatsSnapshot struct {
	Mixes        uint64
	Listeners    uint64
	Overruns     uint64
	SendsDropped uint64
	StreamStats  uint64
}

func New(cfg *config.MixerConfig, registry *source.Registry, throttleCtl *throttle.Controller, xport Transport, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		registry:  registry,
		throttle:  throttleCtl,
		transport: xport,
		logger:    logger,
		sequences: make(map[string]uint16),
		lastStats: make(map[string]time.Time),
	}
}

// State returns the scheduler's current tick-loop state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Stats returns a snapshot of the accumulated counters.
func (s *Scheduler) Stats() StatsSnapshot {
	return StatsSnapshot{
		Mixes:        s.stats.mixes.Load(),
		Listeners:    s.stats.listeners.Load(),
		Overruns:     s.stats.overruns.Load(),
		SendsDropped: s.stats.sendsDropped.Load(),
		StreamStats:  s.stats.streamStats.Load(),
	}
}

// Sequence returns the last sequence number delivered to peerID (P5:
// strictly increasing by 1 per delivered frame), or 0 if none yet.
func (s *Scheduler) Sequence(peerID string) uint16 { return s.sequences[peerID] }

// Run executes the tick loop until ctx is canceled. It never returns an
// error: every failure mode spec.md classifies as non-Fatal is absorbed
// into the loop (BackpressureOverflow, TickOverrun); only ctx cancellation
// stops it.
func (s *Scheduler) Run(ctx context.Context) {
	interval := time.Duration(mixer.BufferSendIntervalUsecs) * time.Microsecond
	start := time.Now()

	var frame mixer.MixFrame

	for {
		s.state.Store(int32(Idle))
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.state.Store(int32(PreFrame))
		s.registry.PreFrame()

		s.state.Store(int32(Mixing))
		sources := s.registry.AllSources()
		now := time.Now()
		for _, listener := range s.registry.Listeners() {
			if !listener.Ready() {
				continue
			}
			mixer.Mix(&frame, listener, sources, s.throttle.MinAudibilityThreshold(), s.cfg.Zones, s.cfg.SamplePhaseDelayAt90)
			s.stats.mixes.Add(1)
			s.stats.listeners.Add(1)
			s.deliver(listener.Identity(), &frame, now)
		}

		s.state.Store(int32(PostFrame))
		s.registry.PostFrame()

		s.state.Store(int32(Sleeping))
		s.tickIndex++
		target := start.Add(time.Duration(s.tickIndex) * interval)
		sleepFor := time.Until(target)

		var sleepUsecs int64
		if sleepFor > 0 {
			sleepUsecs = sleepFor.Microseconds()
			select {
			case <-ctx.Done():
				return
			case <-time.After(sleepFor):
			}
		} else {
			s.stats.overruns.Add(1)
		}
		s.throttle.Update(sleepUsecs)
	}
}

// deliver increments the listener's sequence number and sends the mixed
// frame, then, if due, a stream-stats datagram. Sequence numbers advance
// even when the send is dropped (BackpressureOverflow, spec.md section
// 7): the listener is still owed the next number in order.
func (s *Scheduler) deliver(peerID string, frame *mixer.MixFrame, now time.Time) {
	seq := s.sequences[peerID] + 1
	s.sequences[peerID] = seq

	if err := s.transport.SendDatagram(peerID, transport.EncodeMixedAudio(seq, frame)); err != nil {
		s.stats.sendsDropped.Add(1)
	}

	if last, ok := s.lastStats[peerID]; !ok || now.Sub(last) >= streamStatsInterval {
		s.lastStats[peerID] = now
		s.stats.streamStats.Add(1)
		if err := s.transport.SendDatagram(peerID, transport.EncodeStreamStats(seq, s.Stats().SendsDropped)); err != nil {
			s.stats.sendsDropped.Add(1)
		}
	}
}
