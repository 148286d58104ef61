package mixer

// Wire/frame geometry (spec.md section 6, bit-exact).
const (
	SampleRate          = 24000
	FrameSamples        = 240 // mono samples per tick
	FrameSamplesStereo  = 480 // interleaved L,R samples per tick

	BufferSendIntervalUsecs = 10_000

	LoudnessToDistanceRatio = 1e-5
)

// Spatializer constants (spec.md 4.1).
const (
	epsilon = 1e-6

	maxOffAxisAttenuation       = 0.2
	offAxisAttenuationStep      = (1 - maxOffAxisAttenuation) / 2

	distanceScale            = 2.5
	geometricAmplitudeScalar = 0.3
	distanceLogBase          = 2.5

	phaseAmplitudeRatioAt90 = 0.5
)

const (
	minSample int64 = -32768
	maxSample int64 = 32767
)
