// Package config holds the MixerConfig value threaded from startup through
// the scheduler (spec.md section 9: "thread into a MixerConfig value
// constructed at startup and passed to the scheduler").
package config

import (
	"flag"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gitter-badger/hifi/internal/spatial"
)

// headWidthMeters and speedOfSoundMPS pin down SAMPLE_PHASE_DELAY_AT_90,
// which spec.md section 6 leaves implementation-defined but fixed at
// startup. These match the reference assignment-client's assumed head
// geometry.
const (
	headWidthMeters = 0.2
	speedOfSoundMPS = 343.0
)

// MixerConfig is the process-wide configuration the scheduler and mixer
// consult every tick.
type MixerConfig struct {
	// SamplePhaseDelayAt90 is the interaural delay, in samples, at a
	// source directly abeam the listener (phi = +/- 90 degrees).
	SamplePhaseDelayAt90 int

	// Zones is nil unless a zone pair was configured: by the
	// -unattenuated-zone flag, the stored setting read at startup, or a
	// PUT to the admin API's settings endpoint.
	Zones *spatial.ZonePair

	// DynamicJitterBuffers is surfaced through the admin API's settings
	// endpoint; the mixer core itself never reads it.
	DynamicJitterBuffers bool

	// ListenAddr is the WebTransport/QUIC listen address, e.g. ":7447".
	ListenAddr string

	// AdminAddr is the HTTP admin API listen address, e.g. ":7448".
	AdminAddr string

	// StorePath is the SQLite database path for persisted settings.
	StorePath string

	// Hostname is the TLS certificate's Common Name and primary DNS SAN
	// for the WebTransport listener.
	Hostname string

	Debug bool
}

// Default returns a MixerConfig with the reference head geometry and no
// zones configured.
func Default() MixerConfig {
	return MixerConfig{
		SamplePhaseDelayAt90: samplePhaseDelayAt90(),
		ListenAddr:           ":7447",
		AdminAddr:            ":7448",
		StorePath:            "mixer.db",
		Hostname:             "hifi-mixer",
	}
}

func samplePhaseDelayAt90() int {
	const sampleRate = 24000
	return int(math.Round(sampleRate * (headWidthMeters / speedOfSoundMPS)))
}

// RegisterFlags binds MixerConfig fields onto fs, in the style of the
// teacher's own CLI flag wiring. zoneFlag is returned so the caller can
// parse it into c.Zones after fs.Parse, since flag.Func runs eagerly
// per-occurrence and a missing flag must leave Zones nil rather than an
// empty zero-value zone pair.
func (c *MixerConfig) RegisterFlags(fs *flag.FlagSet) *string {
	fs.StringVar(&c.ListenAddr, "listen", c.ListenAddr, "WebTransport listen address")
	fs.StringVar(&c.AdminAddr, "admin", c.AdminAddr, "admin HTTP API listen address")
	fs.StringVar(&c.StorePath, "store", c.StorePath, "path to the settings database")
	fs.StringVar(&c.Hostname, "hostname", c.Hostname, "TLS certificate hostname/CN")
	fs.BoolVar(&c.DynamicJitterBuffers, "dynamic-jitter-buffers", false, "enable dynamic jitter buffers in the decoder")
	fs.BoolVar(&c.Debug, "debug", false, "enable debug logging")

	var zoneFlag string
	fs.StringVar(&zoneFlag, "unattenuated-zone", "", "sx,sy,sz,sw,sh,sd,lx,ly,lz,lw,lh,ld")
	return &zoneFlag
}

// ApplyZoneFlag parses the twelve-float unattenuated-zone payload (spec.md
// section 6) and sets c.Zones. An empty string leaves Zones nil.
func (c *MixerConfig) ApplyZoneFlag(raw string) error {
	if raw == "" {
		return nil
	}
	zones, err := ParseZonePair(raw)
	if err != nil {
		return err
	}
	c.Zones = zones
	return nil
}

// ValidateName trims whitespace from s and returns the trimmed string, or
// an error if the result is empty or exceeds maxLen bytes. Used by the
// admin API to validate the server display name.
func ValidateName(s string, maxLen int) (string, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return "", fmt.Errorf("config: name must not be empty")
	case len(s) > maxLen:
		return "", fmt.Errorf("config: name must not exceed %d bytes", maxLen)
	}
	return s, nil
}

// MaxServerNameLength bounds the admin API's server_name setting.
const MaxServerNameLength = 50

// SanitizeHostLabel turns a free-text server display name (e.g. the admin
// API's persisted server_name setting) into a DNS label suitable for a
// certificate SAN: lowercased, spaces and other non-label runes collapsed
// to hyphens, leading/trailing hyphens trimmed. Returns "" if nothing
// label-worthy remains.
func SanitizeHostLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastHyphen := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r == '-' && !lastHyphen && b.Len() > 0:
			b.WriteRune(r)
			lastHyphen = true
		default:
			if !lastHyphen && b.Len() > 0 {
				b.WriteRune('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// ParseZonePair parses the twelve comma-separated floats
// (sx,sy,sz,sw,sh,sd,lx,ly,lz,lw,lh,ld) into a spatial.ZonePair.
func ParseZonePair(raw string) (*spatial.ZonePair, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 12 {
		return nil, fmt.Errorf("config: unattenuated-zone wants 12 comma-separated floats, got %d", len(parts))
	}

	var v [12]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("config: unattenuated-zone field %d: %w", i, err)
		}
		v[i] = f
	}

	return &spatial.ZonePair{
		Source: spatial.AABB{
			Corner:     spatial.Vec3{X: v[0], Y: v[1], Z: v[2]},
			Dimensions: spatial.Vec3{X: v[3], Y: v[4], Z: v[5]},
		},
		Listener: spatial.AABB{
			Corner:     spatial.Vec3{X: v[6], Y: v[7], Z: v[8]},
			Dimensions: spatial.Vec3{X: v[9], Y: v[10], Z: v[11]},
		},
	}, nil
}
