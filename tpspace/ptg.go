// Package tpspace defines the Parameterized Trajectory Generator (PTG)
// capability set and its two concrete families: a holonomic velocity-blend
// PTG and a differential-drive constant-curvature PTG.
//
// A PTG is a closed-form family of dynamically feasible trajectories,
// indexed by a continuous direction parameter alpha (discretized into
// AlphaCount bins). All geometry methods are pure with respect to the
// dynamic state last passed to UpdateDynamicState: callers must set the
// dynamic state before calling any path or collision method.
package tpspace

import (
	"math"

	"github.com/selfdrive-go/tpsrrt/kinstate"
)

// DynamicState is the mutable context a PTG's closed-form parameters depend
// on: the vehicle's current local-frame velocity, the relative target pose,
// and a target speed scale in [0,1]. Grounded on mrpt's TNavDynamicState.
type DynamicState struct {
	CurVelLocal    kinstate.Twist2D
	RelTarget      kinstate.Pose2D
	TargetRelSpeed float64
}

// PTG is the capability set every concrete trajectory family implements.
// See package doc for the precondition on dynamic state.
type PTG interface {
	// AlphaCount is the number of discrete trajectory directions.
	AlphaCount() int
	// RefDistance is the maximal look-ahead distance of any trajectory, in meters.
	RefDistance() float64
	// Index2Alpha converts a discrete direction index into its continuous angle.
	Index2Alpha(k int) float64
	// Alpha2Index converts a continuous angle into its discrete direction index.
	Alpha2Index(alpha float64) int

	// UpdateDynamicState sets the dynamic state all subsequent calls depend on.
	UpdateDynamicState(ds DynamicState)

	// GetPathPose returns the pose reached after `step` discretization steps
	// along trajectory k, relative to the trajectory's starting pose.
	GetPathPose(k, step int) (kinstate.Pose2D, error)
	// GetPathTwist returns the local-frame twist at `step` along trajectory k.
	GetPathTwist(k, step int) (kinstate.Twist2D, error)
	// GetPathStepForDist returns the step index at which trajectory k has
	// traveled `dist` meters. Fails if the Newton solve cannot converge.
	GetPathStepForDist(k int, dist float64) (int, error)
	// GetPathStepCount returns the total number of steps trajectory k spans.
	GetPathStepCount(k int) (int, error)

	// IsPointInsideRobotShape reports whether (x, y), in the robot's local
	// frame, collides with the robot's footprint.
	IsPointInsideRobotShape(x, y float64) bool

	// InitTPObstacleSingle returns the initial (obstacle-free) clear distance
	// along trajectory k.
	InitTPObstacleSingle(k int) float64
	// UpdateTPObstacleSingle narrows *d given a single obstacle point (ox, oy)
	// in the ego frame. It must never increase *d.
	UpdateTPObstacleSingle(ox, oy float64, k int, d *float64)

	// InverseMapWS2TP maps a workspace point into trajectory-parameter space:
	// the direction index k and a distance d normalized by RefDistance.
	// exact is false when the result is an extrapolation rather than an
	// exact solution.
	InverseMapWS2TP(x, y float64) (k int, d float64, exact bool, err error)

	// DistanceMetric computes the distance along the PTG manifold from
	// stateA to stateB, and the trajectory index that achieves it. ok is
	// false when no trajectory of this PTG connects the two poses.
	DistanceMetric(a, b kinstate.KinState) (dist float64, trajIdx int, ok bool)
	// CannotBeNearerThan is a cheap lower-bound test used to skip the full
	// DistanceMetric computation.
	CannotBeNearerThan(a, b kinstate.KinState, maxDist float64) bool
}

// index2alpha maps a discrete direction index in [0, numPaths) to its
// continuous angle in (-pi, pi].
func index2alpha(k, numPaths int) float64 {
	return math.Pi * (-1.0 + 2.0*(float64(k)+0.5)/float64(numPaths))
}

// alpha2index is the inverse of index2alpha, clamped to a valid index.
func alpha2index(alpha float64, numPaths int) int {
	alpha = kinstate.WrapTo2Pi(alpha)
	if alpha > math.Pi {
		alpha -= 2 * math.Pi
	}
	k := int(math.Round(0.5 * (float64(numPaths)*(1.0+alpha/math.Pi) - 1.0)))
	if k < 0 {
		k = 0
	}
	if k >= numPaths {
		k = numPaths - 1
	}
	return k
}
