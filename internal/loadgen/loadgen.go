// Package loadgen drives synthetic avatar sources directly into a mixer
// registry for load testing, bypassing the network transport entirely.
package loadgen

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/gitter-badger/hifi/internal/mixer"
	"github.com/gitter-badger/hifi/internal/source"
	"github.com/gitter-badger/hifi/internal/spatial"
)

// ToneBot pushes a continuous sine tone into a registry as if it were a
// real avatar, at the mixer's tick cadence. It never touches the network;
// RunTestBot in the teacher did the same in-process trick with pre-encoded
// Opus frames, substituting a raw PCM oscillator here since the mixer
// operates on decoded samples rather than compressed ones.
type ToneBot struct {
	ID        string
	Frequency float64 // Hz
	Amplitude int16    // peak sample magnitude
	Position  spatial.Vec3

	registry *source.Registry
	logger   *slog.Logger
}

// NewToneBot registers id as an avatar in registry and returns a bot ready
// to be run.
func NewToneBot(registry *source.Registry, logger *slog.Logger, id string, freqHz float64, amplitude int16, pos spatial.Vec3) *ToneBot {
	avatar := registry.AddAvatar(id, false)
	avatar.SetPose(pos, spatial.IdentityQuat)
	return &ToneBot{
		ID:        id,
		Frequency: freqHz,
		Amplitude: amplitude,
		Position:  pos,
		registry:  registry,
		logger:    logger,
	}
}

// Run pushes one frame of synthetic tone per tick interval until ctx is
// canceled, then deregisters the avatar.
func (b *ToneBot) Run(ctx context.Context) {
	interval := time.Duration(mixer.BufferSendIntervalUsecs) * time.Microsecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.logger.Info("loadgen tone bot joined", "id", b.ID, "freq_hz", b.Frequency)
	defer func() {
		b.registry.RemoveClient(b.ID)
		b.logger.Info("loadgen tone bot left", "id", b.ID)
	}()

	avatar, ok := b.registry.Avatar(b.ID)
	if !ok {
		b.logger.Error("loadgen tone bot avatar missing after registration", "id", b.ID)
		return
	}

	var phase float64
	phaseStep := 2 * math.Pi * b.Frequency / mixer.SampleRate

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		samples := make([]int16, mixer.FrameSamples)
		for i := range samples {
			samples[i] = int16(float64(b.Amplitude) * math.Sin(phase))
			phase += phaseStep
			if phase > 2*math.Pi {
				phase -= 2 * math.Pi
			}
		}
		avatar.PushFrame(samples, 1.0)
	}
}
