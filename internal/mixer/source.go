package mixer

import "github.com/gitter-badger/hifi/internal/spatial"

// Kind distinguishes the two audio source variants the spec allows. There
// are no runtime-type downcasts anywhere in this package — Source exposes
// everything the mixing math needs, with Radius/AttenuationRatio returning
// the avatar defaults (0, 1) for non-injector sources.
type Kind int

const (
	Avatar Kind = iota
	Injector
)

func (k Kind) String() string {
	if k == Injector {
		return "injector"
	}
	return "avatar"
}

// Channel identifies a stereo output channel.
type Channel int

const (
	Left Channel = iota
	Right
)

// Source is the read-only view the mixing pipeline needs of one audible
// stream, whether it belongs to the listener being mixed or to anyone
// else. Implementations live in package source; this interface exists so
// package mixer never imports package source (package source implements
// it structurally instead).
type Source interface {
	// Identity is a stable per-source key used only to make per-tick
	// iteration order deterministic; it carries no mixing semantics.
	Identity() string

	Position() spatial.Vec3
	Orientation() spatial.Quat
	IsStereo() bool
	Kind() Kind
	LoopbackForOwner() bool
	TrailingLoudness() float64
	Ready() bool

	// NextOutput is this tick's decoded block: FrameSamples samples for a
	// mono source, FrameSamplesStereo for a stereo one.
	NextOutput() []int16

	// Preceding returns the n samples (mono) immediately before
	// NextOutput, wrapping to the ring's end if needed. Used only to
	// backfill the lead-in of a spatially delayed channel.
	Preceding(n int) []int16

	// Radius is 0 for an Avatar and for a non-spherical Injector.
	Radius() float64
	// AttenuationRatio is 1 for an Avatar.
	AttenuationRatio() float64
}
