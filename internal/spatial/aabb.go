package spatial

// AABB is an axis-aligned box defined by its minimum corner and extent
// along each axis. Containment is half-open on the upper face, i.e. a point
// exactly on corner+dimensions is outside the box.
type AABB struct {
	Corner     Vec3
	Dimensions Vec3
}

// Contains reports whether p lies within the box, half-open on the upper face.
func (b AABB) Contains(p Vec3) bool {
	return p.X >= b.Corner.X && p.X < b.Corner.X+b.Dimensions.X &&
		p.Y >= b.Corner.Y && p.Y < b.Corner.Y+b.Dimensions.Y &&
		p.Z >= b.Corner.Z && p.Z < b.Corner.Z+b.Dimensions.Z
}

// ZonePair is the process-wide optional pair of unattenuated zones: when a
// source lies within Source and the listener lies within Listener,
// distance/off-axis attenuation is skipped for that pairing.
type ZonePair struct {
	Source   AABB
	Listener AABB
}
