package source

import (
	"testing"

	"github.com/gitter-badger/hifi/internal/mixer"
	"github.com/gitter-badger/hifi/internal/spatial"
)

func TestRegistryAddAvatarAndInjector(t *testing.T) {
	r := NewRegistry()
	r.AddAvatar("alice", false)
	r.AddInjector("alice", "chime", false, 2, 0.5)

	all := r.AllSources()
	if len(all) != 2 {
		t.Fatalf("len(AllSources) = %d, want 2", len(all))
	}

	listeners := r.Listeners()
	if len(listeners) != 1 || listeners[0].Identity() != "alice" {
		t.Fatalf("Listeners = %v, want [alice]", listeners)
	}
}

// spec.md section 4: within a tick, every listener must see the same
// snapshot of a source's state. AllSources/Listeners freeze that state at
// call time, so a pose update landing after the snapshot was taken must
// not retroactively change what's already been handed out.
func TestRegistryAllSourcesSnapshotsSurviveLaterMutation(t *testing.T) {
	r := NewRegistry()
	avatar := r.AddAvatar("alice", false)
	avatar.SetPose(spatial.Vec3{X: 1}, spatial.IdentityQuat)

	sources := r.AllSources()
	if len(sources) != 1 {
		t.Fatalf("len(AllSources) = %d, want 1", len(sources))
	}
	snap := sources[0]

	// Mutate the live source after the snapshot was taken, as the ingest
	// path would concurrently mid-tick.
	avatar.SetPose(spatial.Vec3{X: 99}, spatial.IdentityQuat)

	if snap.Position().X != 1 {
		t.Errorf("snapshot position.X = %v, want 1 (unaffected by later SetPose)", snap.Position().X)
	}
	if avatar.Position().X != 99 {
		t.Errorf("live avatar position.X = %v, want 99", avatar.Position().X)
	}
}

func TestRegistryRemoveInjector(t *testing.T) {
	r := NewRegistry()
	r.AddAvatar("alice", false)
	r.AddInjector("alice", "chime", false, 2, 0.5)
	r.RemoveInjector("alice", "chime")

	all := r.AllSources()
	if len(all) != 1 {
		t.Fatalf("len(AllSources) after remove = %d, want 1", len(all))
	}
}

func TestRegistryRemoveClientDropsEverything(t *testing.T) {
	r := NewRegistry()
	r.AddAvatar("alice", false)
	r.AddInjector("alice", "chime", false, 2, 0.5)
	r.RemoveClient("alice")

	if len(r.AllSources()) != 0 {
		t.Fatal("expected empty registry after RemoveClient")
	}
	if _, ok := r.Avatar("alice"); ok {
		t.Fatal("expected Avatar lookup to miss after RemoveClient")
	}
}

func TestRegistryAvatarLookupMiss(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Avatar("nobody"); ok {
		t.Fatal("expected miss for unknown peer")
	}
}

func TestRegistryPreFrameSweepsAllSources(t *testing.T) {
	r := NewRegistry()
	avatar := r.AddAvatar("alice", false)
	inj := r.AddInjector("alice", "chime", false, 0, 1)

	avatar.PushFrame(make([]int16, mixer.FrameSamples), 1)
	inj.PushFrame(make([]int16, mixer.FrameSamples), 1)

	r.PreFrame() // first sweep: both had a fresh push, stay ready
	if !avatar.Ready() || !inj.Ready() {
		t.Fatal("expected both sources ready after first sweep")
	}

	r.PreFrame() // second sweep: no intervening push, both go not-ready
	if avatar.Ready() || inj.Ready() {
		t.Fatal("expected both sources not-ready after a push-less sweep")
	}
}

func TestRegistryPostFrameAdvancesCursors(t *testing.T) {
	r := NewRegistry()
	avatar := r.AddAvatar("alice", false)

	first := make([]int16, mixer.FrameSamples)
	first[0] = 7
	second := make([]int16, mixer.FrameSamples)
	second[0] = 9

	avatar.PushFrame(first, 1)
	if avatar.NextOutput()[0] != 7 {
		t.Fatal("expected first frame before PostFrame")
	}

	r.PostFrame()
	avatar.PushFrame(second, 1)
	if avatar.NextOutput()[0] != 9 {
		t.Fatal("expected second frame after PostFrame advanced the cursor")
	}
}

// P8: a source that misses a tick (no PushFrame since the last sweep, so
// sweep() marks it not-ready) must not have its output cursor advanced by
// PostFrame that tick, or the cursor desyncs from the write cursor and a
// later resumed push lands somewhere NextOutput never looks.
func TestRegistryPostFrameSkipsNotReadySource(t *testing.T) {
	r := NewRegistry()
	avatar := r.AddAvatar("alice", false)

	first := make([]int16, mixer.FrameSamples)
	first[0] = 7
	second := make([]int16, mixer.FrameSamples)
	second[0] = 9
	third := make([]int16, mixer.FrameSamples)
	third[0] = 11

	avatar.PushFrame(first, 1)
	r.PreFrame()
	r.PostFrame()

	avatar.PushFrame(second, 1)
	r.PreFrame()
	r.PostFrame()

	// No PushFrame this tick: sweep marks the source not-ready.
	r.PreFrame()
	if avatar.Ready() {
		t.Fatal("expected avatar not-ready after a push-less sweep")
	}
	r.PostFrame()

	// The source resumes sending. Because PostFrame skipped advancing
	// while not-ready, the write and output cursors are still aligned, so
	// the freshly pushed frame is immediately visible.
	avatar.PushFrame(third, 1)
	r.PreFrame()
	if out := avatar.NextOutput(); out[0] != 11 {
		t.Fatalf("NextOutput()[0] = %d, want 11 (resumed push must not have desynced the cursor)", out[0])
	}
}
