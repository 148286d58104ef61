package mixer

import (
	"math"

	"github.com/gitter-badger/hifi/internal/spatial"
)

// MixPlan is the Spatializer's verdict for one (source, listener) pairing
// on one tick: how much to attenuate, whether and how far to delay the
// weak channel, and whether to skip this source entirely.
type MixPlan struct {
	Attenuation    float64
	DelaySamples   int
	WeakRatio      float64
	DelayedChannel Channel
	SkipSpatial    bool
	Drop           bool
}

// Plan computes the MixPlan for mixing src into listener's frame, following
// spec.md section 4.1 step for step. samplePhaseDelayAt90 is the
// implementation-fixed interaural delay (in samples) at a 90-degree bearing;
// zones is nil when no unattenuated-zone pair is configured.
func Plan(src, listener Source, minAudibilityThreshold float64, zones *spatial.ZonePair, samplePhaseDelayAt90 int) MixPlan {
	// Step 1: loopback short-circuit.
	if src.Identity() == listener.Identity() {
		return MixPlan{Attenuation: 1, WeakRatio: 1, SkipSpatial: true}
	}

	// Step 2: distance.
	relative := spatial.Sub(src.Position(), listener.Position())
	distance := relative.Length()
	if distance < epsilon {
		distance = epsilon
	}

	// Step 3: audibility gate.
	if src.TrailingLoudness()/distance <= minAudibilityThreshold {
		return MixPlan{Drop: true}
	}

	// Step 4: unattenuated-zone test.
	attenuate := true
	if zones != nil {
		attenuate = !(zones.Source.Contains(src.Position()) && zones.Listener.Contains(listener.Position()))
	}
	// Step 5: unattenuated pairings and stereo sources skip all spatial math.
	if !attenuate || src.IsStereo() {
		return MixPlan{Attenuation: 1, WeakRatio: 1, SkipSpatial: true}
	}

	// Step 6: injector attenuation ratio and radius.
	attenuation := 1.0
	radius := 0.0
	if src.Kind() == Injector {
		attenuation *= src.AttenuationRatio()
		radius = src.Radius()
	}

	distanceSquared := distance * distance

	// Step 7: spherical source, listener inside.
	if radius > 0 && distanceSquared <= radius*radius {
		return MixPlan{Attenuation: attenuation, WeakRatio: 1, SkipSpatial: true}
	}

	// Step 8: distance used for the curve.
	curveDistanceSquared := distanceSquared
	if radius > 0 {
		curveDistanceSquared -= radius * radius
	} else {
		// Step 9: off-axis lobe, point sources only.
		rotatedIntoSource := src.Orientation().Conjugate().Rotate(relative)
		theta := angleClamped(spatial.Forward, rotatedIntoSource.Normalize())
		offAxis := maxOffAxisAttenuation + offAxisAttenuationStep*(theta/(math.Pi/2))
		attenuation *= offAxis
	}

	// Step 10: distance curve.
	distanceScaleLog := math.Log(distanceScale) / math.Log(distanceLogBase)
	exponent := distanceScaleLog + 0.5*math.Log(curveDistanceSquared)/math.Log(distanceLogBase) - 1
	distCoef := math.Pow(geometricAmplitudeScalar, exponent)
	if distCoef > 1 {
		distCoef = 1
	}
	attenuation *= distCoef

	// Step 11: interaural delay/amplitude, computed in listener space.
	rotatedIntoListener := listener.Orientation().Conjugate().Rotate(relative)
	rotatedIntoListener = rotatedIntoListener.WithY(0).Normalize()
	phi := orientedAngleAboutUp(spatial.Forward, rotatedIntoListener)

	s := math.Abs(math.Sin(phi))
	delaySamples := int(math.Round(float64(samplePhaseDelayAt90) * s))
	weakRatio := 1 - phaseAmplitudeRatioAt90*s
	delayedChannel := Left
	if phi > 0 {
		delayedChannel = Right
	}

	return MixPlan{
		Attenuation:    attenuation,
		DelaySamples:   delaySamples,
		WeakRatio:      weakRatio,
		DelayedChannel: delayedChannel,
	}
}

// angleClamped returns the unsigned angle between a and b, in [0, pi].
func angleClamped(a, b spatial.Vec3) float64 {
	d := spatial.Dot(a, b)
	if d > 1 {
		d = 1
	} else if d < -1 {
		d = -1
	}
	return math.Acos(d)
}

// orientedAngleAboutUp returns the signed angle to rotate a into b about +Y.
func orientedAngleAboutUp(a, b spatial.Vec3) float64 {
	angle := angleClamped(a, b)
	if spatial.Dot(spatial.Up, spatial.Cross(a, b)) < 0 {
		return -angle
	}
	return angle
}
