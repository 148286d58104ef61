package mixer

import "math"

// MixFrame is the stereo scratch buffer for one listener on one tick:
// FrameSamples interleaved (L, R) pairs.
type MixFrame struct {
	Samples [FrameSamplesStereo]int16
}

// Zero resets the frame to silence, ready for a new tick.
func (f *MixFrame) Zero() {
	for i := range f.Samples {
		f.Samples[i] = 0
	}
}

// satAdd adds delta (already scaled) to the sample at idx with saturation
// to [-32768, 32767] (invariant I1).
func (f *MixFrame) satAdd(idx int, delta int64) {
	sum := int64(f.Samples[idx]) + delta
	if sum > maxSample {
		sum = maxSample
	} else if sum < minSample {
		sum = minSample
	}
	f.Samples[idx] = int16(sum)
}

// scaled rounds sample*factor to the nearest integer.
func scaled(sample int16, factor float64) int64 {
	return int64(math.Round(float64(sample) * factor))
}

// Accumulate folds src into frame according to plan, per spec.md section 4.2.
// plan.Drop must already have been checked by the caller; Accumulate does
// not look at it.
func Accumulate(frame *MixFrame, src Source, plan MixPlan) {
	switch {
	case plan.SkipSpatial && src.IsStereo():
		accumulateUnspatializedStereo(frame, src, plan.Attenuation)
	case plan.SkipSpatial:
		accumulateUnspatializedMono(frame, src, plan.Attenuation)
	default:
		accumulateSpatializedMono(frame, src, plan)
	}
}

// accumulateUnspatializedStereo adds an already-interleaved stereo block
// directly into the mix with a flat attenuation.
func accumulateUnspatializedStereo(frame *MixFrame, src Source, attenuation float64) {
	out := src.NextOutput()
	n := FrameSamplesStereo
	if len(out) < n {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		frame.satAdd(i, scaled(out[i], attenuation))
	}
}

// accumulateUnspatializedMono duplicates a mono block into both channels
// with a flat attenuation and no spatial delay.
func accumulateUnspatializedMono(frame *MixFrame, src Source, attenuation float64) {
	out := src.NextOutput()
	n := FrameSamples
	if len(out) < n {
		n = len(out)
	}
	for j := 0; j < n; j++ {
		v := scaled(out[j], attenuation)
		frame.satAdd(2*j, v)
		frame.satAdd(2*j+1, v)
	}
}

// accumulateSpatializedMono implements the "good channel" / "weak channel"
// split: the good channel gets the full attenuated signal, the weak
// (delayed) channel gets it attenuated further by WeakRatio and shifted
// forward by DelaySamples source samples. The lead-in samples that shift
// creates at the start of the weak channel are backfilled from the tail
// of the source's ring buffer.
func accumulateSpatializedMono(frame *MixFrame, src Source, plan MixPlan) {
	out := src.NextOutput()
	n := FrameSamples
	if len(out) < n {
		n = len(out)
	}

	goodOffset, weakOffset := 0, 1
	if plan.DelayedChannel == Left {
		goodOffset, weakOffset = 1, 0
	}

	weakAttenuation := plan.Attenuation * plan.WeakRatio

	for j := 0; j < n; j++ {
		good := scaled(out[j], plan.Attenuation)
		frame.satAdd(2*j+goodOffset, good)

		weakIdx := j + plan.DelaySamples
		if weakIdx < FrameSamples {
			weak := scaled(out[j], weakAttenuation)
			frame.satAdd(2*weakIdx+weakOffset, weak)
		}
	}

	if plan.DelaySamples <= 0 {
		return
	}
	lead := src.Preceding(plan.DelaySamples)
	for i, sample := range lead {
		if i >= plan.DelaySamples {
			break
		}
		weak := scaled(sample, weakAttenuation)
		frame.satAdd(2*i+weakOffset, weak)
	}
}
