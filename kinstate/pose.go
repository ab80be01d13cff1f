// Package kinstate defines the SE(2) kinematic state shared by every component
// of the planner: a pose (x, y, phi) plus a global-frame twist (vx, vy, omega).
//
// Poses are kept in the plane but carried in github.com/golang/geo/r3.Vector
// (with Z always zero) so that composition and distance arithmetic reuse the
// same vector algebra the rest of the corpus relies on for 3D poses.
package kinstate

import (
	"math"

	"github.com/golang/geo/r3"
)

// Pose2D is a planar pose: position plus heading, in (-pi, pi].
type Pose2D struct {
	Point r3.Vector
	Phi   float64
}

// NewPose2D builds a pose from plain coordinates, wrapping phi into (-pi, pi].
func NewPose2D(x, y, phi float64) Pose2D {
	return Pose2D{Point: r3.Vector{X: x, Y: y}, Phi: WrapToPi(phi)}
}

// WrapToPi returns theta normalized into the (-pi, pi] range.
func WrapToPi(theta float64) float64 {
	wrapped := math.Mod(theta+math.Pi, 2*math.Pi)
	if wrapped <= 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}

// WrapTo2Pi returns theta normalized into the [0, 2*pi) range.
func WrapTo2Pi(theta float64) float64 {
	return theta - 2*math.Pi*math.Floor(theta/(2*math.Pi))
}

// rotate2D rotates the planar components of v by angle theta.
func rotate2D(v r3.Vector, theta float64) r3.Vector {
	s, c := math.Sincos(theta)
	return r3.Vector{X: v.X*c - v.Y*s, Y: v.X*s + v.Y*c}
}

// Compose returns a ⊕ b: pose b expressed in a's frame, expressed in the
// global frame. This mirrors mrpt::math::TPose2D's operator+.
func Compose(a, b Pose2D) Pose2D {
	return Pose2D{
		Point: a.Point.Add(rotate2D(b.Point, a.Phi)),
		Phi:   WrapToPi(a.Phi + b.Phi),
	}
}

// PoseBetween returns the pose of b expressed in a's local frame, i.e. the
// unique pose d such that Compose(a, d) == b.
func PoseBetween(a, b Pose2D) Pose2D {
	delta := b.Point.Sub(a.Point)
	return Pose2D{
		Point: rotate2D(delta, -a.Phi),
		Phi:   WrapToPi(b.Phi - a.Phi),
	}
}

// InverseComposePoint expresses a global point in pose p's local frame.
func InverseComposePoint(p Pose2D, global r3.Vector) r3.Vector {
	return rotate2D(global.Sub(p.Point), -p.Phi)
}

// Twist2D is a planar velocity: linear (vx, vy) plus angular rate omega.
type Twist2D struct {
	Vx, Vy, W float64
}

// Rotate returns the twist's linear component rotated by theta; angular rate
// is frame-independent in SE(2) and passes through unchanged.
func (t Twist2D) Rotate(theta float64) Twist2D {
	s, c := math.Sincos(theta)
	return Twist2D{Vx: t.Vx*c - t.Vy*s, Vy: t.Vx*s + t.Vy*c, W: t.W}
}

// KinState is a pose plus the global-frame twist at that pose.
type KinState struct {
	Pose Pose2D
	Vel  Twist2D
}
