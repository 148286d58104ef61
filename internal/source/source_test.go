package source

import (
	"testing"

	"github.com/gitter-badger/hifi/internal/mixer"
	"github.com/gitter-badger/hifi/internal/spatial"
)

func TestNewAvatarDefaults(t *testing.T) {
	a := NewAvatar("alice", false)
	if a.Kind() != mixer.Avatar {
		t.Errorf("kind = %v, want Avatar", a.Kind())
	}
	if a.Orientation() != spatial.IdentityQuat {
		t.Errorf("orientation = %v, want identity", a.Orientation())
	}
	if a.Ready() {
		t.Error("freshly constructed source should not be ready before any PushFrame")
	}
}

func TestNewInjectorClampsParameters(t *testing.T) {
	inj := NewInjector("fx/1", false, -5, 1.5)
	if inj.Radius() != 0 {
		t.Errorf("radius = %v, want 0 (clamped)", inj.Radius())
	}
	if inj.AttenuationRatio() != 1 {
		t.Errorf("attenuation ratio = %v, want 1 (clamped)", inj.AttenuationRatio())
	}
}

func TestPushFrameMarksReady(t *testing.T) {
	s := NewAvatar("bob", false)
	s.PushFrame(make([]int16, mixer.FrameSamples), 1)
	if !s.Ready() {
		t.Fatal("expected Ready() after PushFrame")
	}
}

func TestSweepDropsReadyWithoutFreshPush(t *testing.T) {
	s := NewAvatar("carol", false)
	s.PushFrame(make([]int16, mixer.FrameSamples), 1)
	if !s.Ready() {
		t.Fatal("expected ready after push")
	}

	s.sweep()
	if !s.Ready() {
		t.Fatal("sweep immediately after a fresh push should not clear ready")
	}

	s.sweep()
	if s.Ready() {
		t.Fatal("a second sweep with no intervening PushFrame should clear ready")
	}
}

func TestSweepThenPushKeepsReady(t *testing.T) {
	s := NewAvatar("dave", false)
	s.PushFrame(make([]int16, mixer.FrameSamples), 1)
	s.sweep()
	s.PushFrame(make([]int16, mixer.FrameSamples), 1)
	s.sweep()
	if !s.Ready() {
		t.Fatal("a tick with a fresh push should stay ready across its sweep")
	}
}

func TestSetPoseAndLoopback(t *testing.T) {
	s := NewAvatar("erin", false)
	pos := spatial.Vec3{X: 1, Y: 2, Z: 3}
	s.SetPose(pos, spatial.IdentityQuat)
	if s.Position() != pos {
		t.Errorf("position = %v, want %v", s.Position(), pos)
	}

	s.SetLoopbackForOwner(true)
	if !s.LoopbackForOwner() {
		t.Error("expected loopback to be set")
	}
}

func TestNextOutputAndAdvanceWalkFrames(t *testing.T) {
	s := NewAvatar("frank", false)
	first := make([]int16, mixer.FrameSamples)
	first[0] = 11
	second := make([]int16, mixer.FrameSamples)
	second[0] = 22

	s.PushFrame(first, 1)
	out := s.NextOutput()
	if out[0] != 11 {
		t.Fatalf("exposed frame sample0 = %d, want 11 (output cursor starts at the first written frame)", out[0])
	}

	s.Advance()
	s.PushFrame(second, 1)
	out = s.NextOutput()
	if out[0] != 22 {
		t.Fatalf("exposed frame sample0 after advance = %d, want 22", out[0])
	}
}
