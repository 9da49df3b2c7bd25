package face

import "math"

// yawProxyScale converts the nose offset ratio into degrees. A nose sitting
// directly under an eye (offset ratio 0.5) maps to 45 degrees.
const yawProxyScale = 90.0

// RollDegrees is the tilt of the line between the two eyes, in degrees.
// Zero means the eyes are level; positive means the face leans right.
func RollDegrees(d Descriptor) float64 {
	l, r := d.LeftEye(), d.RightEye()
	return math.Atan2(r.Y-l.Y, r.X-l.X) * 180 / math.Pi
}

// YawDegrees is a yaw proxy derived from the horizontal offset of the nose
// from the eye midpoint, scaled by the interocular distance. It is not a true
// head-pose angle but tracks one closely enough for frontal-face gating.
func YawDegrees(d Descriptor) float64 {
	l, r := d.LeftEye(), d.RightEye()
	n := d.Nose()

	eyeDist := math.Hypot(r.X-l.X, r.Y-l.Y)
	if eyeDist == 0 {
		return 0
	}
	midX := (l.X + r.X) / 2
	return (n.X - midX) / eyeDist * yawProxyScale
}
