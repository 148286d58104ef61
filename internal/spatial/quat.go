package spatial

import "math"

// Quat is a unit quaternion orientation, (X, Y, Z) vector part plus W scalar.
type Quat struct {
	X, Y, Z, W float64
}

// IdentityQuat is the no-rotation orientation.
var IdentityQuat = Quat{X: 0, Y: 0, Z: 0, W: 1}

// Conjugate returns the inverse rotation of a unit quaternion.
func (q Quat) Conjugate() Quat {
	return Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W}
}

// Rotate applies q's rotation to v.
//
// Implemented via the quaternion sandwich product q * (0,v) * conj(q),
// expanded into the standard closed-form formula rather than via full
// quaternion multiplication, to avoid building and discarding an
// intermediate quaternion per call — this runs once per source per
// listener per tick.
func (q Quat) Rotate(v Vec3) Vec3 {
	qv := Vec3{q.X, q.Y, q.Z}
	t := Cross(qv, v).Scale(2)
	return Add(Add(v, t.Scale(q.W)), Cross(qv, t))
}

// angleBetween returns the unsigned angle in radians between two vectors,
// clamped into [0, pi] to guard against floating-point drift pushing the
// dot product's argument to acos just outside [-1, 1].
func angleBetween(a, b Vec3) float64 {
	d := Dot(a, b)
	if d > 1 {
		d = 1
	} else if d < -1 {
		d = -1
	}
	return math.Acos(d)
}

// orientedAngle returns the signed angle in radians to rotate a into b,
// measured about axis (which must be a unit vector already known to be
// perpendicular to both a and b, as it is here with Y after flattening).
func orientedAngle(a, b, axis Vec3) float64 {
	angle := angleBetween(a, b)
	if Dot(axis, Cross(a, b)) < 0 {
		return -angle
	}
	return angle
}
