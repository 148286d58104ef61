// Package ingest applies packets from the transport to the Source
// Registry. Dispatch runs on the transport's per-session goroutine as each
// datagram arrives, concurrently with the scheduler's ticks; updates are
// not held back to a point between ticks, and the registry is not locked
// for the duration of a tick. AudioSource's own mutex serializes
// PushFrame/SetPose against the mixer's reads, and the registry's per-tick
// snapshots (Registry.AllSources/Listeners) give every listener mixed in a
// tick the same pose and loudness for a source.
package ingest

import (
	"log/slog"

	"github.com/gitter-badger/hifi/internal/mixer"
	"github.com/gitter-badger/hifi/internal/source"
	"github.com/gitter-badger/hifi/internal/transport"
)

// Broadcaster rebroadcasts a datagram verbatim to every connected peer
// except the sender, satisfied by transport.Hub.
type Broadcaster interface {
	Broadcast(excludeID string, data []byte)
}

// Counters records the BadPacket and UnknownSource error kinds from
// spec.md section 7, satisfied by transport.Hub.
type Counters interface {
	CountBadPacket()
	CountUnknownSource()
}

// Dispatcher decodes incoming datagrams and applies them to a Registry.
type Dispatcher struct {
	registry    *source.Registry
	broadcaster Broadcaster
	counters    Counters
	logger      *slog.Logger
}

func NewDispatcher(registry *source.Registry, broadcaster Broadcaster, counters Counters, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, broadcaster: broadcaster, counters: counters, logger: logger}
}

// Dispatch decodes one datagram from peerID and applies it. It never
// returns an error: BadPacket and UnknownSource are both drop-and-count
// per spec.md section 7, handled entirely within this call.
func (d *Dispatcher) Dispatch(peerID string, data []byte) {
	typ, body, err := transport.DecodeHeader(data)
	if err != nil {
		d.counters.CountBadPacket()
		return
	}

	switch typ {
	case transport.PacketMicrophoneAudioNoEcho, transport.PacketMicrophoneAudioWithEcho:
		d.dispatchMicrophone(peerID, body)
	case transport.PacketInjectAudio:
		d.dispatchInject(peerID, body)
	case transport.PacketSilentAudioFrame:
		d.dispatchSilent(peerID, body)
	case transport.PacketMuteEnvironment:
		d.broadcaster.Broadcast(peerID, data)
	default:
		d.counters.CountBadPacket()
	}
}

func (d *Dispatcher) dispatchMicrophone(peerID string, body []byte) {
	payload, err := transport.DecodeAudioPayload(body)
	if err != nil {
		d.counters.CountBadPacket()
		return
	}

	avatar, ok := d.registry.Avatar(peerID)
	if !ok {
		d.counters.CountUnknownSource()
		return
	}
	avatar.SetPose(payload.Pose.Position, payload.Pose.Orientation)
	avatar.PushFrame(payload.Samples, payload.Loudness)
}

func (d *Dispatcher) dispatchInject(peerID string, body []byte) {
	payload, err := transport.DecodeInjectAudioPayload(body)
	if err != nil {
		d.counters.CountBadPacket()
		return
	}
	if _, ok := d.registry.Avatar(peerID); !ok {
		d.counters.CountUnknownSource()
		return
	}

	inj := d.registry.EnsureInjector(peerID, payload.InjectorID, false, payload.Radius, payload.AttenuationRatio)
	inj.SetPose(payload.Audio.Pose.Position, payload.Audio.Pose.Orientation)
	inj.PushFrame(payload.Audio.Samples, payload.Audio.Loudness)
}

func (d *Dispatcher) dispatchSilent(peerID string, body []byte) {
	payload, err := transport.DecodeSilentAudioPayload(body)
	if err != nil {
		d.counters.CountBadPacket()
		return
	}

	avatar, ok := d.registry.Avatar(peerID)
	if !ok {
		d.counters.CountUnknownSource()
		return
	}
	avatar.SetPose(payload.Pose.Position, payload.Pose.Orientation)
	avatar.PushFrame(make([]int16, mixer.FrameSamples), 0)
}
