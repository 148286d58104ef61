package mixer

import (
	"sort"

	"github.com/gitter-badger/hifi/internal/spatial"
)

// Mix implements the Listener Mix Engine (spec.md section 4.3): it zeroes
// frame, then walks every known source (including the listener's own, for
// loopback) in a deterministic order and folds in whichever ones pass
// invariant I2.
//
// sources is the full set known to the registry for this tick, in any
// order; Mix sorts a local copy by Identity so that mixing is reproducible
// across runs regardless of map iteration order.
func Mix(frame *MixFrame, listener Source, sources []Source, minAudibilityThreshold float64, zones *spatial.ZonePair, samplePhaseDelayAt90 int) {
	frame.Zero()

	ordered := make([]Source, len(sources))
	copy(ordered, sources)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Identity() < ordered[j].Identity() })

	for _, src := range ordered {
		if !eligible(src, listener) {
			continue
		}

		plan := Plan(src, listener, minAudibilityThreshold, zones, samplePhaseDelayAt90)
		if plan.Drop {
			continue
		}
		Accumulate(frame, src, plan)
	}
}

// eligible implements the non-gate-distance parts of invariant I2: ready,
// non-zero trailing loudness, and the self/loopback rule. The audibility
// ratio itself is checked inside Plan, which also needs the distance it
// computes anyway.
func eligible(src, listener Source) bool {
	if !src.Ready() {
		return false
	}
	if src.TrailingLoudness() <= 0 {
		return false
	}
	if src.Identity() == listener.Identity() && !src.LoopbackForOwner() {
		return false
	}
	return true
}
