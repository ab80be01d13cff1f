package tpspace

import (
	"math"

	"github.com/selfdrive-go/tpsrrt/kinstate"
	"github.com/selfdrive-go/tpsrrt/robotshape"
)

// DiffDriveCConfig carries the user-tunable parameters of the
// differential-drive constant-curvature PTG.
type DiffDriveCConfig struct {
	NumPaths int
	VMax     float64 // m/s
	WMax     float64 // rad/s
	K        float64 // +1 forwards, -1 backwards
	Rref     float64 // turning-radius reference, meters
	Shape    robotshape.Shape
}

// DiffDriveC is the constant-curvature PTG for a differential-drive base:
// each trajectory is a circular arc of constant linear and angular velocity.
type DiffDriveC struct {
	numPaths int
	vMax     float64
	wMax     float64
	k        float64
	rref     float64
	shape    robotshape.Shape

	refDist float64
	ds      DynamicState
}

// NewDiffDriveC validates cfg and derives RefDistance from it.
func NewDiffDriveC(cfg DiffDriveCConfig) (*DiffDriveC, error) {
	if cfg.NumPaths <= 0 {
		return nil, errConfig("numPaths must be positive")
	}
	if cfg.VMax <= 0 {
		return nil, errConfig("v_max must be positive")
	}
	if cfg.WMax <= 0 {
		return nil, errConfig("w_max must be positive")
	}
	if cfg.K != 1 && cfg.K != -1 {
		return nil, errConfig("K must be +1 or -1")
	}
	if cfg.Rref <= 0 {
		return nil, errConfig("turningRadiusReference must be positive")
	}
	if cfg.Shape == nil {
		return nil, errConfig("robot shape must be set")
	}
	// RefDistance is the length of a half-turn (pi radians) on the tightest
	// arc, whose radius is VMax/WMax; equivalently, the distance covered at
	// VMax during the time pi/WMax.
	refDist := cfg.VMax / cfg.WMax * math.Pi
	return &DiffDriveC{
		numPaths: cfg.NumPaths,
		vMax:     cfg.VMax,
		wMax:     cfg.WMax,
		k:        cfg.K,
		rref:     cfg.Rref,
		shape:    cfg.Shape,
		refDist:  refDist,
	}, nil
}

// AlphaCount implements PTG.
func (d *DiffDriveC) AlphaCount() int { return d.numPaths }

// RefDistance implements PTG.
func (d *DiffDriveC) RefDistance() float64 { return d.refDist }

// Index2Alpha implements PTG.
func (d *DiffDriveC) Index2Alpha(k int) float64 { return index2alpha(k, d.numPaths) }

// Alpha2Index implements PTG.
func (d *DiffDriveC) Alpha2Index(alpha float64) int { return alpha2index(alpha, d.numPaths) }

// UpdateDynamicState implements PTG. DiffDriveC's steering law does not
// depend on the dynamic state, but it is recorded for interface parity.
func (d *DiffDriveC) UpdateDynamicState(ds DynamicState) { d.ds = ds }

// steer returns the (v, omega) commanded by trajectory k, per the
// steering law v = V_MAX*sign(K), omega = (alpha/pi)*W_MAX*sign(K).
func (d *DiffDriveC) steer(k int) (v, omega float64) {
	alpha := d.Index2Alpha(k)
	sign := 1.0
	if d.k < 0 {
		sign = -1.0
	}
	return d.vMax * sign, (alpha / math.Pi) * d.wMax * sign
}

func (d *DiffDriveC) poseAtTime(k int, t float64) kinstate.Pose2D {
	v, omega := d.steer(k)
	if math.Abs(omega) < degenerateEps {
		return kinstate.NewPose2D(v*t, 0, 0)
	}
	R := v / omega
	phi := omega * t
	// Arc of radius R centered at (0, R): x = R*sin(phi), y = R*(1-cos(phi)).
	return kinstate.NewPose2D(R*math.Sin(phi), R*(1-math.Cos(phi)), phi)
}

func (d *DiffDriveC) twistAtTime(k int, t float64) kinstate.Twist2D {
	v, omega := d.steer(k)
	return kinstate.Twist2D{Vx: v, Vy: 0, W: omega}
}

// GetPathPose implements PTG.
func (d *DiffDriveC) GetPathPose(k, step int) (kinstate.Pose2D, error) {
	if k < 0 || k >= d.numPaths {
		return kinstate.Pose2D{}, errIndexOutOfRange{k: k, count: d.numPaths}
	}
	return d.poseAtTime(k, float64(step)*PathTimeStep), nil
}

// GetPathTwist implements PTG.
func (d *DiffDriveC) GetPathTwist(k, step int) (kinstate.Twist2D, error) {
	if k < 0 || k >= d.numPaths {
		return kinstate.Twist2D{}, errIndexOutOfRange{k: k, count: d.numPaths}
	}
	return d.twistAtTime(k, float64(step)*PathTimeStep), nil
}

// GetPathStepForDist implements PTG. It counts the same rotation-inclusive
// distance as InverseMapWS2TP: theta*(|R|+Rref), which unrolls to
// t*(|v|+|omega|*Rref) since theta=|omega|*t and |R|=|v/omega|. That is
// linear in t, so no Newton iteration is needed for a constant-curvature PTG.
func (d *DiffDriveC) GetPathStepForDist(k int, dist float64) (int, error) {
	if k < 0 || k >= d.numPaths {
		return 0, errIndexOutOfRange{k: k, count: d.numPaths}
	}
	v, omega := d.steer(k)
	denom := math.Abs(v) + math.Abs(omega)*d.rref
	if denom < degenerateEps {
		return 0, errNewtonDidNotConverge{what: "getPathStepForDist (zero speed)"}
	}
	t := dist / denom
	return int(math.Round(t / PathTimeStep)), nil
}

// GetPathStepCount implements PTG.
func (d *DiffDriveC) GetPathStepCount(k int) (int, error) {
	return d.GetPathStepForDist(k, d.refDist)
}

// IsPointInsideRobotShape implements PTG by delegating to the configured
// footprint predicate.
func (d *DiffDriveC) IsPointInsideRobotShape(x, y float64) bool {
	return d.shape.IsPointInside(x, y)
}

// InitTPObstacleSingle implements PTG. Obstacle clearance is measured in raw
// arc length, independent of the Rref term folded into InverseMapWS2TP's
// distance metric: an obstacle's physical position along the arc doesn't
// move just because Rref changes how the planner scores that arc.
func (d *DiffDriveC) InitTPObstacleSingle(k int) float64 {
	return d.refDist
}

// UpdateTPObstacleSingle implements PTG. For a circular arc of radius R
// centered at (0, R) (straight line if omega==0), the robot collides with
// an obstacle point when the point's distance to the arc's instantaneous
// position equals the footprint radius; since the arc's curvature is
// constant, the contact angles follow in closed form from the intersection
// of the travel circle with a circle of the footprint radius around the
// obstacle.
func (d *DiffDriveC) UpdateTPObstacleSingle(ox, oy float64, k int, dist *float64) {
	v, omega := d.steer(k)
	robotR := d.shape.Radius()

	if math.Abs(omega) < degenerateEps {
		// Straight line along x: collision when |oy| <= robotR, at
		// arc length ox - sqrt(robotR^2 - oy^2).
		if math.Abs(oy) > robotR {
			return
		}
		hit := ox - math.Sqrt(robotR*robotR-oy*oy)
		if hit < 0 {
			return
		}
		if hit < *dist {
			*dist = hit
		}
		return
	}

	R := v / omega
	// Center of the arc's circle, in the ego frame, is at (0, R).
	cx, cy := 0.0, R
	distToCenter := math.Hypot(ox-cx, oy-cy)
	// The obstacle point sweeps past the robot when the robot's center
	// (traveling on a circle of radius |R| about (0,R)) comes within
	// robotR of the obstacle: this happens at the phi where the chord
	// between the two circles (radius |R| traveled, radius robotR clearance)
	// intersects, i.e. where distToCenter is within [|R|-robotR, |R|+robotR].
	absR := math.Abs(R)
	if distToCenter < absR-robotR || distToCenter > absR+robotR {
		return
	}
	// Angle from the circle center to the obstacle point.
	obstacleAngle := math.Atan2(oy-cy, ox-cx)
	// Half-angle of the intersection, by the law of cosines on the
	// triangle (center, robot-position-at-phi, obstacle).
	cosHalf := (absR*absR + distToCenter*distToCenter - robotR*robotR) / (2 * absR * distToCenter)
	if cosHalf > 1 {
		cosHalf = 1
	} else if cosHalf < -1 {
		cosHalf = -1
	}
	halfAngle := math.Acos(cosHalf)

	// Candidate sweep angles (measured from the start pose's position,
	// which sits at angle -pi/2 relative to the center when R>0, +pi/2 when R<0).
	startAngle := -math.Pi / 2
	if R < 0 {
		startAngle = math.Pi / 2
	}
	for _, cand := range []float64{obstacleAngle - halfAngle, obstacleAngle + halfAngle} {
		phi := cand - startAngle
		if omega < 0 {
			phi = -phi
		}
		phi = kinstate.WrapTo2Pi(phi)
		hit := math.Abs(R) * phi
		if hit >= 0 && hit < *dist {
			*dist = hit
		}
	}
}

// InverseMapWS2TP implements PTG's closed-form inverse for the
// constant-curvature family.
func (d *DiffDriveC) InverseMapWS2TP(x, y float64) (int, float64, bool, error) {
	sign := 1.0
	if d.k < 0 {
		sign = -1.0
	}
	if math.Abs(y) < degenerateEps {
		// Straight line along +/-x.
		if (x >= 0) == (sign > 0) {
			k := d.Alpha2Index(0)
			return k, math.Abs(x) / d.refDist, true, nil
		}
		return d.numPaths - 1, 1000, false, nil
	}

	R := (x*x + y*y) / (2 * y)
	var theta float64
	switch {
	case R > 0:
		theta = math.Atan2(sign*x, R-y)
	default:
		theta = math.Atan2(sign*x, y-R)
	}
	theta = kinstate.WrapTo2Pi(theta)

	exact := true
	absR := math.Abs(R)
	minR := d.vMax / d.wMax
	if absR < minR {
		absR = minR
		exact = false
	}

	dist := theta * (absR + d.rref) / d.refDist
	alpha := math.Pi * d.vMax / (d.wMax * R)
	k := d.Alpha2Index(alpha)
	return k, dist, exact, nil
}

// DistanceMetric implements PTG.
func (d *DiffDriveC) DistanceMetric(a, b kinstate.KinState) (float64, int, bool) {
	local := kinstate.PoseBetween(a.Pose, b.Pose)
	k, dNorm, exact, err := d.InverseMapWS2TP(local.Point.X, local.Point.Y)
	if err != nil || !exact {
		return 0, 0, false
	}
	return dNorm * d.refDist, k, true
}

// CannotBeNearerThan implements PTG's cheap lower-bound skip test.
func (d *DiffDriveC) CannotBeNearerThan(a, b kinstate.KinState, maxDist float64) bool {
	euclid := a.Pose.Point.Sub(b.Pose.Point).Norm()
	return euclid-d.refDist > maxDist
}
