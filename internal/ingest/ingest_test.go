package ingest

import (
	"io"
	"log/slog"
	"testing"

	"github.com/gitter-badger/hifi/internal/mixer"
	"github.com/gitter-badger/hifi/internal/source"
	"github.com/gitter-badger/hifi/internal/spatial"
	"github.com/gitter-badger/hifi/internal/transport"
)

type fakeCounters struct {
	badPackets    int
	unknownSource int
}

func (f *fakeCounters) CountBadPacket()    { f.badPackets++ }
func (f *fakeCounters) CountUnknownSource() { f.unknownSource++ }

type fakeBroadcaster struct {
	excludeID string
	data      []byte
	calls     int
}

func (f *fakeBroadcaster) Broadcast(excludeID string, data []byte) {
	f.excludeID = excludeID
	f.data = data
	f.calls++
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchMicrophoneUpdatesAvatar(t *testing.T) {
	reg := source.NewRegistry()
	reg.AddAvatar("alice", false)

	counters := &fakeCounters{}
	d := NewDispatcher(reg, &fakeBroadcaster{}, counters, testLogger())

	pose := transport.Pose{Position: spatial.Vec3{X: 1, Y: 2, Z: 3}, Orientation: spatial.IdentityQuat}
	samples := make([]int16, mixer.FrameSamples)
	samples[0] = 42
	pkt := transport.EncodeAudioPayload(transport.PacketMicrophoneAudioNoEcho, pose, 0.5, samples)

	d.Dispatch("alice", pkt)

	avatar, ok := reg.Avatar("alice")
	if !ok {
		t.Fatal("expected avatar to exist")
	}
	if avatar.Position() != pose.Position {
		t.Errorf("position = %v, want %v", avatar.Position(), pose.Position)
	}
	if !avatar.Ready() {
		t.Error("expected avatar ready after microphone packet")
	}
	if counters.badPackets != 0 {
		t.Errorf("unexpected bad packets: %d", counters.badPackets)
	}
}

func TestDispatchMicrophoneUnknownSource(t *testing.T) {
	reg := source.NewRegistry()
	counters := &fakeCounters{}
	d := NewDispatcher(reg, &fakeBroadcaster{}, counters, testLogger())

	pose := transport.Pose{Orientation: spatial.IdentityQuat}
	pkt := transport.EncodeAudioPayload(transport.PacketMicrophoneAudioNoEcho, pose, 1, nil)
	d.Dispatch("ghost", pkt)

	if counters.unknownSource != 1 {
		t.Errorf("unknownSource = %d, want 1", counters.unknownSource)
	}
}

func TestDispatchBadPacketTooShort(t *testing.T) {
	reg := source.NewRegistry()
	counters := &fakeCounters{}
	d := NewDispatcher(reg, &fakeBroadcaster{}, counters, testLogger())

	d.Dispatch("alice", []byte{byte(transport.PacketMicrophoneAudioNoEcho), 1, 2})
	if counters.badPackets != 1 {
		t.Errorf("badPackets = %d, want 1", counters.badPackets)
	}
}

func TestDispatchEmptyDatagramIsBadPacket(t *testing.T) {
	reg := source.NewRegistry()
	counters := &fakeCounters{}
	d := NewDispatcher(reg, &fakeBroadcaster{}, counters, testLogger())

	d.Dispatch("alice", nil)
	if counters.badPackets != 1 {
		t.Errorf("badPackets = %d, want 1", counters.badPackets)
	}
}

func TestDispatchInjectAudioCreatesInjector(t *testing.T) {
	reg := source.NewRegistry()
	reg.AddAvatar("alice", false)
	counters := &fakeCounters{}
	d := NewDispatcher(reg, &fakeBroadcaster{}, counters, testLogger())

	pose := transport.Pose{Position: spatial.Vec3{X: 5}, Orientation: spatial.IdentityQuat}
	pkt := transport.EncodeInjectAudioPayload("chime", 2, 0.5, pose, 1, nil)
	d.Dispatch("alice", pkt)

	all := reg.AllSources()
	if len(all) != 2 {
		t.Fatalf("len(AllSources) = %d, want 2 (avatar + injector)", len(all))
	}
}

func TestDispatchSilentAudioPushesSilence(t *testing.T) {
	reg := source.NewRegistry()
	reg.AddAvatar("alice", false)
	counters := &fakeCounters{}
	d := NewDispatcher(reg, &fakeBroadcaster{}, counters, testLogger())

	pkt := transport.EncodeSilentAudioPayload(transport.Pose{Orientation: spatial.IdentityQuat})
	d.Dispatch("alice", pkt)

	avatar, _ := reg.Avatar("alice")
	if !avatar.Ready() {
		t.Error("expected avatar ready after silent-audio packet")
	}
	if avatar.TrailingLoudness() != 0 {
		t.Errorf("loudness = %v, want 0", avatar.TrailingLoudness())
	}
}

func TestDispatchMuteEnvironmentRebroadcasts(t *testing.T) {
	reg := source.NewRegistry()
	counters := &fakeCounters{}
	bc := &fakeBroadcaster{}
	d := NewDispatcher(reg, bc, counters, testLogger())

	pkt := []byte{byte(transport.PacketMuteEnvironment), 1, 2, 3}
	d.Dispatch("alice", pkt)

	if bc.calls != 1 {
		t.Fatalf("Broadcast calls = %d, want 1", bc.calls)
	}
	if bc.excludeID != "alice" {
		t.Errorf("excludeID = %q, want alice", bc.excludeID)
	}
	if string(bc.data) != string(pkt) {
		t.Error("expected verbatim rebroadcast")
	}
}
