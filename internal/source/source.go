// Package source implements the Source Registry (spec.md section 4.1's
// collaborator, section 2 component 3): per-client positional audio
// sources, their ring buffers, and the registry the Frame Scheduler and
// Listener Mix Engine read each tick.
//
// The ring-buffer internals are intentionally opaque outside this
// package — mixer.Source only exposes NextOutput/Preceding, never the
// buffer itself, matching spec.md's framing of the registry's internals
// as opaque to the mixing pipeline.
package source

import (
	"sync"

	"github.com/gitter-badger/hifi/internal/mixer"
	"github.com/gitter-badger/hifi/internal/spatial"
)

// AudioSource is one audible stream: a listener's avatar microphone, a
// non-listening avatar's microphone, or an injector. It implements
// mixer.Source.
type AudioSource struct {
	mu sync.RWMutex

	id       string
	kind     mixer.Kind
	position spatial.Vec3
	orient   spatial.Quat
	isStereo bool

	loopback bool
	loudness float64
	ready    bool
	ticked   bool // received a fresh PushFrame this tick

	radius           float64
	attenuationRatio float64

	ring *ring
}

// NewAvatar returns an AudioSource of kind Avatar for the given peer id.
// isStereo is almost always false for a microphone capture but the type is
// not restricted by the spec.
func NewAvatar(id string, isStereo bool) *AudioSource {
	return newSource(id, mixer.Avatar, isStereo, 0, 1)
}

// NewInjector returns an AudioSource of kind Injector. attenuationRatio is
// clamped into [0,1] and radius into [0,∞) per spec.md's data model.
func NewInjector(id string, isStereo bool, radius, attenuationRatio float64) *AudioSource {
	if radius < 0 {
		radius = 0
	}
	if attenuationRatio < 0 {
		attenuationRatio = 0
	} else if attenuationRatio > 1 {
		attenuationRatio = 1
	}
	return newSource(id, mixer.Injector, isStereo, radius, attenuationRatio)
}

func newSource(id string, kind mixer.Kind, isStereo bool, radius, attenuationRatio float64) *AudioSource {
	frameLen := mixer.FrameSamples
	if isStereo {
		frameLen = mixer.FrameSamplesStereo
	}
	return &AudioSource{
		id:               id,
		kind:             kind,
		orient:           spatial.IdentityQuat,
		isStereo:         isStereo,
		radius:           radius,
		attenuationRatio: attenuationRatio,
		ring:             newRing(frameLen),
	}
}

// SetPose updates position and orientation. Called by the ingest path,
// never by the mixer.
func (s *AudioSource) SetPose(position spatial.Vec3, orientation spatial.Quat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = position
	s.orient = orientation
}

// setInjectorParams refreshes radius and attenuation ratio in place,
// applying the same clamps as NewInjector.
func (s *AudioSource) setInjectorParams(radius, attenuationRatio float64) {
	if radius < 0 {
		radius = 0
	}
	if attenuationRatio < 0 {
		attenuationRatio = 0
	} else if attenuationRatio > 1 {
		attenuationRatio = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.radius = radius
	s.attenuationRatio = attenuationRatio
}

// SetLoopbackForOwner sets whether this source is mixed into its own
// listener's output.
func (s *AudioSource) SetLoopbackForOwner(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loopback = v
}

// PushFrame deposits one tick's decoded block (FrameSamples samples mono,
// FrameSamplesStereo if stereo) and updates the smoothed trailing loudness
// from it. It marks the source ready for this tick.
func (s *AudioSource) PushFrame(samples []int16, loudness float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring.push(samples)
	s.loudness = loudness
	s.ready = true
	s.ticked = true
}

// sweep implements the pre_frame readiness bookkeeping (spec.md section
// 4.4 step 1): a source that received no fresh PushFrame since the last
// sweep is marked not-ready for this tick. Called once per tick by the
// registry before mixing.
func (s *AudioSource) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ticked {
		s.ready = false
	}
	s.ticked = false
}

// Advance implements the post-frame output-cursor advance (invariant I4).
// Must be called at most once per tick, after every listener has sampled
// this source via NextOutput/Preceding.
func (s *AudioSource) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring.advance()
}

// --- mixer.Source ---

func (s *AudioSource) Identity() string { return s.id }

func (s *AudioSource) Position() spatial.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

func (s *AudioSource) Orientation() spatial.Quat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orient
}

func (s *AudioSource) IsStereo() bool { return s.isStereo }
func (s *AudioSource) Kind() mixer.Kind { return s.kind }

func (s *AudioSource) LoopbackForOwner() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loopback
}

func (s *AudioSource) TrailingLoudness() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loudness
}

func (s *AudioSource) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready && s.ring.hasData()
}

func (s *AudioSource) NextOutput() []int16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.nextOutput()
}

func (s *AudioSource) Preceding(n int) []int16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.preceding(n)
}

func (s *AudioSource) Radius() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.radius
}

func (s *AudioSource) AttenuationRatio() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attenuationRatio
}

// frozen is a point-in-tick snapshot of one source's mutable state. The
// registry hands these out (never the live *AudioSource) to the mix
// engine so that every listener mixed during a tick reads the same
// position/orientation/radius/attenuation for a given source, matching
// spec.md section 4's "within a tick, every listener sees the same
// snapshot of source state": the ingest path calls SetPose/
// setInjectorParams/PushFrame from per-session goroutines with no gating
// to tick boundaries, so two independent lock/unlock reads inside a
// single Plan() call (or across two listeners' Mix() calls) could
// otherwise observe different values.
//
// NextOutput/Preceding delegate straight through to the live source: the
// ring's output cursor only moves in Registry.PostFrame, well after every
// listener's Mix for the tick has run, so those two are already
// tick-stable without copying.
type frozen struct {
	src *AudioSource

	position         spatial.Vec3
	orient           spatial.Quat
	loopback         bool
	loudness         float64
	ready            bool
	radius           float64
	attenuationRatio float64
}

// snapshot freezes s's mixing-relevant state under a single lock
// acquisition. Called once per tick, from Registry.AllSources/Listeners.
func (s *AudioSource) snapshot() *frozen {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &frozen{
		src:              s,
		position:         s.position,
		orient:           s.orient,
		loopback:         s.loopback,
		loudness:         s.loudness,
		ready:            s.ready && s.ring.hasData(),
		radius:           s.radius,
		attenuationRatio: s.attenuationRatio,
	}
}

func (f *frozen) Identity() string          { return f.src.id }
func (f *frozen) Position() spatial.Vec3    { return f.position }
func (f *frozen) Orientation() spatial.Quat { return f.orient }
func (f *frozen) IsStereo() bool            { return f.src.isStereo }
func (f *frozen) Kind() mixer.Kind          { return f.src.kind }
func (f *frozen) LoopbackForOwner() bool    { return f.loopback }
func (f *frozen) TrailingLoudness() float64 { return f.loudness }
func (f *frozen) Ready() bool               { return f.ready }
func (f *frozen) NextOutput() []int16       { return f.src.NextOutput() }
func (f *frozen) Preceding(n int) []int16   { return f.src.Preceding(n) }
func (f *frozen) Radius() float64           { return f.radius }
func (f *frozen) AttenuationRatio() float64 { return f.attenuationRatio }
