package transport

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gitter-badger/hifi/internal/mixer"
	"github.com/gitter-badger/hifi/internal/spatial"
)

// PacketType identifies the first byte of every datagram, mirroring
// spec.md section 6's recognized incoming types plus the one outgoing
// type.
type PacketType byte

const (
	PacketMicrophoneAudioNoEcho PacketType = iota + 1
	PacketMicrophoneAudioWithEcho
	PacketInjectAudio
	PacketSilentAudioFrame
	PacketMuteEnvironment
	PacketMixedAudio
	PacketStreamStats
)

// mixedAudioHeaderLen is the opaque fixed header preceding the sequence
// number and sample payload in an outgoing MixedAudio packet: just the
// one type byte here, since the peer identity comes from the WebTransport
// session rather than an in-band field.
const mixedAudioHeaderLen = 1

// EncodeMixedAudio builds the wire packet for one listener's mixed frame:
// [type(1) | sequence:u16 LE | samples:i16[FRAME_SAMPLES_STEREO] LE].
func EncodeMixedAudio(sequence uint16, frame *mixer.MixFrame) []byte {
	out := make([]byte, mixedAudioHeaderLen+2+mixer.FrameSamplesStereo*2)
	out[0] = byte(PacketMixedAudio)
	binary.LittleEndian.PutUint16(out[mixedAudioHeaderLen:], sequence)

	base := mixedAudioHeaderLen + 2
	for i, s := range frame.Samples {
		binary.LittleEndian.PutUint16(out[base+2*i:], uint16(s))
	}
	return out
}

// EncodeStreamStats builds the periodic out-of-band stats datagram a
// listener receives at most once a second (spec.md section 4.4 step 2,
// supplemented with the reference assignment-client's per-listener
// stream-stats cadence): [type(1) | sequence:u16 LE | dropped:u32 LE].
func EncodeStreamStats(sequence uint16, dropped uint64) []byte {
	out := make([]byte, 1+2+4)
	out[0] = byte(PacketStreamStats)
	binary.LittleEndian.PutUint16(out[1:], sequence)
	binary.LittleEndian.PutUint32(out[3:], uint32(dropped))
	return out
}

// ErrBadPacket is the BadPacket error kind from spec.md section 7: header
// mismatch, version mismatch, or truncated payload.
type ErrBadPacket struct {
	Reason string
}

func (e *ErrBadPacket) Error() string { return fmt.Sprintf("transport: bad packet: %s", e.Reason) }

// DecodeHeader reports a datagram's packet type and the remainder of its
// body, or a BadPacket error for an empty datagram.
func DecodeHeader(data []byte) (PacketType, []byte, error) {
	if len(data) < 1 {
		return 0, nil, &ErrBadPacket{Reason: "empty datagram"}
	}
	return PacketType(data[0]), data[1:], nil
}

const poseLen = 3*4 + 4*4 // Vec3 + Quat, all float32 LE

// Pose is the position/orientation prefix every avatar and injector audio
// packet carries, mirroring the reference protocol's per-packet pose
// fields (distilled out of spec.md's packet-format section but present in
// the original assignment-client wire format).
type Pose struct {
	Position    spatial.Vec3
	Orientation spatial.Quat
}

func encodePose(out []byte, p Pose) {
	putFloat32(out[0:4], float32(p.Position.X))
	putFloat32(out[4:8], float32(p.Position.Y))
	putFloat32(out[8:12], float32(p.Position.Z))
	putFloat32(out[12:16], float32(p.Orientation.X))
	putFloat32(out[16:20], float32(p.Orientation.Y))
	putFloat32(out[20:24], float32(p.Orientation.Z))
	putFloat32(out[24:28], float32(p.Orientation.W))
}

func decodePose(body []byte) Pose {
	return Pose{
		Position: spatial.Vec3{
			X: float64(decodeFloat32(body[0:4])),
			Y: float64(decodeFloat32(body[4:8])),
			Z: float64(decodeFloat32(body[8:12])),
		},
		Orientation: spatial.Quat{
			X: float64(decodeFloat32(body[12:16])),
			Y: float64(decodeFloat32(body[16:20])),
			Z: float64(decodeFloat32(body[20:24])),
			W: float64(decodeFloat32(body[24:28])),
		},
	}
}

// AudioPayload is the decoded shape of MicrophoneAudioNoEcho,
// MicrophoneAudioWithEcho and InjectAudio payloads: pose, a smoothed
// loudness, and one mono frame of samples.
type AudioPayload struct {
	Pose     Pose
	Loudness float64
	Samples  []int16
}

// EncodeAudioPayload is the inverse of DecodeAudioPayload; used by tests
// to build synthetic wire packets.
func EncodeAudioPayload(typ PacketType, p Pose, loudness float64, samples []int16) []byte {
	const fixed = 1 + poseLen + 4
	out := make([]byte, fixed+mixer.FrameSamples*2)
	out[0] = byte(typ)
	encodePose(out[1:1+poseLen], p)
	putFloat32(out[1+poseLen:1+poseLen+4], float32(loudness))
	base := 1 + poseLen + 4
	for i := 0; i < mixer.FrameSamples; i++ {
		v := int16(0)
		if i < len(samples) {
			v = samples[i]
		}
		binary.LittleEndian.PutUint16(out[base+2*i:], uint16(v))
	}
	return out
}

func DecodeAudioPayload(body []byte) (AudioPayload, error) {
	const want = poseLen + 4 + mixer.FrameSamples*2
	if len(body) != want {
		return AudioPayload{}, &ErrBadPacket{Reason: fmt.Sprintf("audio payload length %d, want %d", len(body), want)}
	}
	pose := decodePose(body[:poseLen])
	loudness := float64(decodeFloat32(body[poseLen : poseLen+4]))
	samples := make([]int16, mixer.FrameSamples)
	base := poseLen + 4
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(body[base+2*i:]))
	}
	return AudioPayload{Pose: pose, Loudness: loudness, Samples: samples}, nil
}

// InjectAudioPayload additionally carries the injector's identity and
// spherical-source parameters:
// [injectorIDLen:u8 | injectorID | radius:f32 | attenuationRatio:f32 | AudioPayload].
type InjectAudioPayload struct {
	InjectorID       string
	Radius           float64
	AttenuationRatio float64
	Audio            AudioPayload
}

func EncodeInjectAudioPayload(injectorID string, radius, attenuationRatio float64, p Pose, loudness float64, samples []int16) []byte {
	idBytes := []byte(injectorID)
	head := make([]byte, 1+1+len(idBytes)+8)
	head[0] = byte(PacketInjectAudio)
	head[1] = byte(len(idBytes))
	copy(head[2:], idBytes)
	putFloat32(head[2+len(idBytes):6+len(idBytes)], float32(radius))
	putFloat32(head[6+len(idBytes):10+len(idBytes)], float32(attenuationRatio))

	tail := EncodeAudioPayload(PacketInjectAudio, p, loudness, samples)[1:] // drop its own type byte
	return append(head, tail...)
}

func DecodeInjectAudioPayload(body []byte) (InjectAudioPayload, error) {
	if len(body) < 1 {
		return InjectAudioPayload{}, &ErrBadPacket{Reason: "truncated inject-audio payload"}
	}
	idLen := int(body[0])
	body = body[1:]
	if len(body) < idLen+8 {
		return InjectAudioPayload{}, &ErrBadPacket{Reason: "truncated inject-audio payload"}
	}
	id := string(body[:idLen])
	body = body[idLen:]

	radius := float64(decodeFloat32(body[:4]))
	attenuation := float64(decodeFloat32(body[4:8]))
	audio, err := DecodeAudioPayload(body[8:])
	if err != nil {
		return InjectAudioPayload{}, err
	}
	return InjectAudioPayload{
		InjectorID:       id,
		Radius:           radius,
		AttenuationRatio: attenuation,
		Audio:            audio,
	}, nil
}

// SilentAudioPayload is just a pose update with no samples: the source
// stays registered but contributes silence this tick.
type SilentAudioPayload struct {
	Pose Pose
}

func EncodeSilentAudioPayload(p Pose) []byte {
	out := make([]byte, 1+poseLen)
	out[0] = byte(PacketSilentAudioFrame)
	encodePose(out[1:], p)
	return out
}

func DecodeSilentAudioPayload(body []byte) (SilentAudioPayload, error) {
	if len(body) != poseLen {
		return SilentAudioPayload{}, &ErrBadPacket{Reason: fmt.Sprintf("silent-audio payload length %d, want %d", len(body), poseLen)}
	}
	return SilentAudioPayload{Pose: decodePose(body)}, nil
}

func putFloat32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func decodeFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
