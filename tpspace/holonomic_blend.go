package tpspace

import (
	"math"

	"github.com/Knetic/govaluate"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"

	"github.com/selfdrive-go/tpsrrt/kinstate"
	"github.com/selfdrive-go/tpsrrt/robotshape"
)

// PathTimeStep is the fixed discretization step, in seconds, at which
// HolonomicBlend measures path steps and distances.
const PathTimeStep = 0.010

const (
	trapezoidSteps  = 20
	newtonInverseIt = 25
	newtonStepIt    = 10
	newtonTol       = 1e-3
	degenerateEps   = 1e-9
	stopSpeedFrac   = 0.105
)

// HolonomicBlendConfig carries the user-tunable parameters of a holonomic
// velocity-blend PTG, grounded on the "T_ramp_max / v_max_mps / w_max_dps /
// turningRadiusReference / expr_*" configuration keys.
type HolonomicBlendConfig struct {
	NumPaths      int
	RefDistance   float64
	TRampMax      float64
	VMax          float64 // m/s
	WMaxDegPerSec float64 // deg/s; stored internally as rad/s
	Shape         robotshape.Shape

	// ExprV, ExprW, ExprTRamp are evaluated against the named-variable
	// environment built by HolonomicBlend.env. Empty strings fall back to the defaults
	// V_MAX, W_MAX, and T_ramp_max respectively.
	ExprV     string
	ExprW     string
	ExprTRamp string
}

// HolonomicBlend is the closed-form (vx, vy, omega) velocity-ramp PTG.
type HolonomicBlend struct {
	numPaths int
	refDist  float64
	tRampMax float64
	vMax     float64
	wMax     float64
	shape    robotshape.Shape

	exprV, exprW, exprTRamp *govaluate.EvaluableExpression

	ds DynamicState
}

// NewHolonomicBlend validates cfg and compiles its expressions once.
func NewHolonomicBlend(cfg HolonomicBlendConfig) (*HolonomicBlend, error) {
	if cfg.NumPaths <= 0 {
		return nil, errConfig("numPaths must be positive")
	}
	if cfg.RefDistance <= 0 {
		return nil, errConfig("refDistance must be positive")
	}
	if cfg.TRampMax <= 0 {
		return nil, errConfig("T_ramp_max must be positive")
	}
	if cfg.VMax <= 0 {
		return nil, errConfig("v_max_mps must be positive")
	}
	if cfg.WMaxDegPerSec <= 0 {
		return nil, errConfig("w_max_dps must be positive")
	}
	if cfg.Shape == nil {
		return nil, errConfig("robot shape must be set")
	}

	exprV := cfg.ExprV
	if exprV == "" {
		exprV = "V_MAX"
	}
	exprW := cfg.ExprW
	if exprW == "" {
		exprW = "W_MAX"
	}
	exprTRamp := cfg.ExprTRamp
	if exprTRamp == "" {
		exprTRamp = "T_ramp_max"
	}

	cV, err := compileExpr(exprV)
	if err != nil {
		return nil, err
	}
	cW, err := compileExpr(exprW)
	if err != nil {
		return nil, err
	}
	cT, err := compileExpr(exprTRamp)
	if err != nil {
		return nil, err
	}

	return &HolonomicBlend{
		numPaths:  cfg.NumPaths,
		refDist:   cfg.RefDistance,
		tRampMax:  cfg.TRampMax,
		vMax:      cfg.VMax,
		wMax:      cfg.WMaxDegPerSec * math.Pi / 180,
		shape:     cfg.Shape,
		exprV:     cV,
		exprW:     cW,
		exprTRamp: cT,
	}, nil
}

// AlphaCount implements PTG.
func (h *HolonomicBlend) AlphaCount() int { return h.numPaths }

// RefDistance implements PTG.
func (h *HolonomicBlend) RefDistance() float64 { return h.refDist }

// Index2Alpha implements PTG.
func (h *HolonomicBlend) Index2Alpha(k int) float64 { return index2alpha(k, h.numPaths) }

// Alpha2Index implements PTG.
func (h *HolonomicBlend) Alpha2Index(alpha float64) int { return alpha2index(alpha, h.numPaths) }

// UpdateDynamicState implements PTG.
func (h *HolonomicBlend) UpdateDynamicState(ds DynamicState) { h.ds = ds }

// blendParams is the derived (vxf, vyf, wf, T_ramp) for a given alpha,
// evaluated against the current dynamic state.
type blendParams struct {
	vxf, vyf, wf, tRamp float64
}

func (h *HolonomicBlend) env(alpha float64) exprEnv {
	vxi, vyi, wi := h.ds.CurVelLocal.Vx, h.ds.CurVelLocal.Vy, h.ds.CurVelLocal.W
	rel := h.ds.RelTarget
	targetDist := math.Hypot(rel.Point.X, rel.Point.Y)
	return exprEnv{
		"dir":              alpha,
		"target_dir":       math.Atan2(rel.Point.Y, rel.Point.X),
		"target_dist":      targetDist,
		"V_MAX":            h.vMax,
		"W_MAX":            h.wMax,
		"T_ramp_max":       h.tRampMax,
		"target_x":         rel.Point.X,
		"target_y":         rel.Point.Y,
		"target_phi":       rel.Phi,
		"vxi":              vxi,
		"vyi":              vyi,
		"wi":               wi,
		"target_rel_speed": h.ds.TargetRelSpeed,
		"trimmable_speed":  h.vMax * h.ds.TargetRelSpeed,
	}
}

// paramsForAlpha evaluates the three user expressions at alpha and derives
// the blend's final velocity and ramp duration. The final velocity direction
// is alpha by construction; the final angular rate has magnitude |expr_W|,
// negative for negative alpha and positive otherwise (including alpha == 0).
func (h *HolonomicBlend) paramsForAlpha(alpha float64) (blendParams, error) {
	env := h.env(alpha)
	absV, err := evalExpr(h.exprV, env)
	if err != nil {
		return blendParams{}, err
	}
	absW, err := evalExpr(h.exprW, env)
	if err != nil {
		return blendParams{}, err
	}
	tRamp, err := evalExpr(h.exprTRamp, env)
	if err != nil {
		return blendParams{}, err
	}
	if tRamp <= 0 {
		tRamp = h.tRampMax
	}
	wSign := 1.0
	if alpha < 0 {
		wSign = -1.0
	}
	return blendParams{
		vxf:   absV * math.Cos(alpha),
		vyf:   absV * math.Sin(alpha),
		wf:    wSign * math.Abs(absW),
		tRamp: tRamp,
	}, nil
}

// rampCoeffs are the a,b,c,k2,k4 coefficients of the quadratic-in-time
// position blend during the ramp phase.
type rampCoeffs struct {
	a, b, c, k2, k4 float64
}

func (h *HolonomicBlend) coeffs(p blendParams) rampCoeffs {
	vxi, vyi := h.ds.CurVelLocal.Vx, h.ds.CurVelLocal.Vy
	k2 := (p.vxf - vxi) / (2 * p.tRamp)
	k4 := (p.vyf - vyi) / (2 * p.tRamp)
	return rampCoeffs{
		a:  4 * (k2*k2 + k4*k4),
		b:  4 * (k2*vxi + k4*vyi),
		c:  vxi*vxi + vyi*vyi,
		k2: k2,
		k4: k4,
	}
}

func (rc rampCoeffs) speedSquared(t float64) float64 {
	return rc.a*t*t + rc.b*t + rc.c
}

// arcLength computes s(T) for T in [0, p.tRamp], handling the degenerate
// constant-velocity and constant-acceleration-from-rest cases called out by
// the spec before falling back to the 20-step trapezoidal rule.
func arcLength(rc rampCoeffs, t float64) float64 {
	if t <= 0 {
		return 0
	}
	smallK := math.Abs(rc.k2) < degenerateEps && math.Abs(rc.k4) < degenerateEps
	if smallK && math.Abs(rc.b) < degenerateEps && math.Abs(rc.c) < degenerateEps {
		return math.Sqrt(rc.a) * t * t / 2
	}
	if smallK {
		return math.Sqrt(rc.c) * t
	}
	xs := make([]float64, trapezoidSteps+1)
	ys := make([]float64, trapezoidSteps+1)
	for i := 0; i <= trapezoidSteps; i++ {
		ti := t * float64(i) / float64(trapezoidSteps)
		xs[i] = ti
		ys[i] = math.Sqrt(math.Max(0, rc.speedSquared(ti)))
	}
	return integrate.Trapezoidal(xs, ys)
}

// distAtTime returns the total path distance traveled at time t, covering
// both the ramp and the constant-velocity tail.
func (h *HolonomicBlend) distAtTime(p blendParams, t float64) float64 {
	rc := h.coeffs(p)
	if t <= p.tRamp {
		return arcLength(rc, t)
	}
	sRamp := arcLength(rc, p.tRamp)
	vf := math.Hypot(p.vxf, p.vyf)
	return sRamp + (t-p.tRamp)*vf
}

// poseAtTime evaluates the closed-form ramp-and-blend position/heading at
// time t.
func (h *HolonomicBlend) poseAtTime(p blendParams, t float64) kinstate.Pose2D {
	vxi, vyi, wi := h.ds.CurVelLocal.Vx, h.ds.CurVelLocal.Vy, h.ds.CurVelLocal.W
	ramp := func(vi, vf float64, tt float64) float64 {
		if tt < p.tRamp {
			return vi*tt + tt*tt/(2*p.tRamp)*(vf-vi)
		}
		return 0.5*p.tRamp*(vi+vf) + (tt-p.tRamp)*vf
	}
	x := ramp(vxi, p.vxf, t)
	y := ramp(vyi, p.vyf, t)
	phi := ramp(wi, p.wf, t)
	return kinstate.NewPose2D(x, y, phi)
}

// twistAtTime evaluates the local-frame velocity at time t.
func (h *HolonomicBlend) twistAtTime(p blendParams, t float64) kinstate.Twist2D {
	vxi, vyi, wi := h.ds.CurVelLocal.Vx, h.ds.CurVelLocal.Vy, h.ds.CurVelLocal.W
	if t < p.tRamp {
		kw := (p.wf - wi) / (2 * p.tRamp)
		rc := h.coeffs(p)
		return kinstate.Twist2D{
			Vx: vxi + 2*rc.k2*t,
			Vy: vyi + 2*rc.k4*t,
			W:  wi + 2*kw*t,
		}
	}
	return kinstate.Twist2D{Vx: p.vxf, Vy: p.vyf, W: p.wf}
}

// GetPathPose implements PTG.
func (h *HolonomicBlend) GetPathPose(k, step int) (kinstate.Pose2D, error) {
	if k < 0 || k >= h.numPaths {
		return kinstate.Pose2D{}, errIndexOutOfRange{k: k, count: h.numPaths}
	}
	p, err := h.paramsForAlpha(h.Index2Alpha(k))
	if err != nil {
		return kinstate.Pose2D{}, err
	}
	return h.poseAtTime(p, float64(step)*PathTimeStep), nil
}

// GetPathTwist implements PTG.
func (h *HolonomicBlend) GetPathTwist(k, step int) (kinstate.Twist2D, error) {
	if k < 0 || k >= h.numPaths {
		return kinstate.Twist2D{}, errIndexOutOfRange{k: k, count: h.numPaths}
	}
	p, err := h.paramsForAlpha(h.Index2Alpha(k))
	if err != nil {
		return kinstate.Twist2D{}, err
	}
	return h.twistAtTime(p, float64(step)*PathTimeStep), nil
}

// GetPathStepForDist implements PTG, via the closed form in the t>=T_ramp
// regime and Newton iteration within the ramp.
func (h *HolonomicBlend) GetPathStepForDist(k int, dist float64) (int, error) {
	if k < 0 || k >= h.numPaths {
		return 0, errIndexOutOfRange{k: k, count: h.numPaths}
	}
	p, err := h.paramsForAlpha(h.Index2Alpha(k))
	if err != nil {
		return 0, err
	}
	rc := h.coeffs(p)
	sRamp := arcLength(rc, p.tRamp)
	var t float64
	if dist >= sRamp {
		vf := math.Hypot(p.vxf, p.vyf)
		if vf < degenerateEps {
			return 0, errNewtonDidNotConverge{what: "getPathStepForDist (zero tail speed)"}
		}
		t = p.tRamp + (dist-sRamp)/vf
	} else {
		t = p.tRamp * dist / math.Max(sRamp, degenerateEps)
		converged := false
		for i := 0; i < newtonStepIt; i++ {
			f := arcLength(rc, t) - dist
			if math.Abs(f) < newtonTol {
				converged = true
				break
			}
			deriv := math.Sqrt(math.Max(0, rc.speedSquared(t)))
			if deriv < degenerateEps {
				break
			}
			t -= f / deriv
			if t < 0 {
				t = 0
			}
			if t > p.tRamp {
				t = p.tRamp
			}
		}
		if !converged && math.Abs(arcLength(rc, t)-dist) >= newtonTol {
			return 0, errNewtonDidNotConverge{what: "getPathStepForDist"}
		}
	}
	if t < 0 {
		t = 0
	}
	return int(math.Round(t / PathTimeStep)), nil
}

// GetPathStepCount implements PTG: the step at which the trajectory has
// traveled RefDistance.
func (h *HolonomicBlend) GetPathStepCount(k int) (int, error) {
	return h.GetPathStepForDist(k, h.refDist)
}

// IsPointInsideRobotShape implements PTG by delegating to the configured
// footprint predicate.
func (h *HolonomicBlend) IsPointInsideRobotShape(x, y float64) bool {
	return h.shape.IsPointInside(x, y)
}

// InitTPObstacleSingle implements PTG: before narrowing by any obstacle, a
// trajectory is clear out to its full reference distance.
func (h *HolonomicBlend) InitTPObstacleSingle(k int) float64 {
	return h.refDist
}

// UpdateTPObstacleSingle implements PTG via the quartic (ramp region) and
// secondary quadratic (constant-velocity tail) collision roots.
func (h *HolonomicBlend) UpdateTPObstacleSingle(ox, oy float64, k int, d *float64) {
	alpha := h.Index2Alpha(k)
	p, err := h.paramsForAlpha(alpha)
	if err != nil {
		return
	}
	rc := h.coeffs(p)
	vxi, vyi := h.ds.CurVelLocal.Vx, h.ds.CurVelLocal.Vy
	R := h.shape.Radius()

	qa := rc.k2*rc.k2 + rc.k4*rc.k4
	qb := 2 * (rc.k2*vxi + rc.k4*vyi)
	qc := vxi*vxi + vyi*vyi - 2*(rc.k2*ox+rc.k4*oy)
	qd := -2 * (ox*vxi + oy*vyi)
	qe := ox*ox + oy*oy - R*R

	roots := solveQuartic(qa, qb, qc, qd, qe)
	roots = realRootsInRange(roots, 0, 1.01*p.tRamp)

	var tHit float64
	hit := false
	for _, r := range roots {
		if !hit || r < tHit {
			tHit = r
			hit = true
		}
	}
	if !hit {
		// Constant-velocity tail: position(t) = Q + t*Vf, solve |Q+tVf|=R.
		posAtRamp := h.poseAtTime(p, p.tRamp)
		qx := posAtRamp.Point.X - p.tRamp*p.vxf - ox
		qy := posAtRamp.Point.Y - p.tRamp*p.vyf - oy
		qqa := p.vxf*p.vxf + p.vyf*p.vyf
		qqb := 2 * (qx*p.vxf + qy*p.vyf)
		qqc := qx*qx + qy*qy - R*R
		for _, r := range solveQuadratic(qqa, qqb, qqc) {
			if r >= 0.99*p.tRamp && (!hit || r < tHit) {
				tHit = r
				hit = true
			}
		}
	}
	if !hit {
		return
	}
	candidate := h.distAtTime(p, math.Max(0, tHit))
	if candidate < *d {
		*d = candidate
	}
}

// InverseMapWS2TP implements PTG via Newton iteration on q=[t,vxf,vyf,Tramp].
func (h *HolonomicBlend) InverseMapWS2TP(x, y float64) (int, float64, bool, error) {
	targetDist := math.Hypot(x, y)
	alpha0 := math.Atan2(y, x)

	q := []float64{targetDist / math.Max(h.vMax, degenerateEps), h.vMax * math.Cos(alpha0), h.vMax * math.Sin(alpha0), h.tRampMax}

	residual := func(q []float64) []float64 {
		t, vxf, vyf, tRamp := q[0], q[1], q[2], q[3]
		if tRamp < degenerateEps {
			tRamp = degenerateEps
		}
		alpha := math.Atan2(vyf, vxf)
		p := blendParams{vxf: vxf, vyf: vyf, tRamp: tRamp}
		pose := h.poseAtTime(p, t)

		env := h.env(alpha)
		absV, err := evalExpr(h.exprV, env)
		if err != nil {
			absV = h.vMax
		}

		stopSpeed := absV < stopSpeedFrac*h.vMax
		var tRampTarget float64
		if stopSpeed {
			tRampTarget = t
		} else {
			tRampTarget = h.tRampMax
		}

		return []float64{
			pose.Point.X - x,
			pose.Point.Y - y,
			vxf*vxf + vyf*vyf - absV*absV,
			tRamp - tRampTarget,
		}
	}

	for iter := 0; iter < newtonInverseIt; iter++ {
		r := residual(q)
		norm := math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2] + r[3]*r[3])
		if norm < newtonTol {
			break
		}
		jac := numericJacobian(residual, q)
		delta, err := solveLinear4(jac, r)
		if err != nil {
			break
		}
		for i := range q {
			q[i] -= delta[i]
		}
		if q[3] < degenerateEps {
			q[3] = degenerateEps
		}
		if q[0] < 0 {
			q[0] = 0
		}
	}

	r := residual(q)
	norm := math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2] + r[3]*r[3])
	t, vxf, vyf, tRamp := q[0], q[1], q[2], q[3]
	alpha := math.Atan2(vyf, vxf)
	k := h.Alpha2Index(alpha)

	p := blendParams{vxf: vxf, vyf: vyf, tRamp: tRamp}
	dist := h.distAtTime(p, t)
	exact := norm < newtonTol
	return k, dist / h.refDist, exact, nil
}

// DistanceMetric implements PTG by inverse-mapping b into a's local frame
// and reading off the normalized path distance.
func (h *HolonomicBlend) DistanceMetric(a, b kinstate.KinState) (float64, int, bool) {
	local := kinstate.PoseBetween(a.Pose, b.Pose)
	savedDS := h.ds
	h.UpdateDynamicState(DynamicState{CurVelLocal: a.Vel.Rotate(-a.Pose.Phi), RelTarget: local, TargetRelSpeed: 1})
	k, dNorm, exact, err := h.InverseMapWS2TP(local.Point.X, local.Point.Y)
	h.ds = savedDS
	if err != nil || !exact {
		return 0, 0, false
	}
	return dNorm * h.refDist, k, true
}

// CannotBeNearerThan implements PTG's cheap lower-bound skip test.
func (h *HolonomicBlend) CannotBeNearerThan(a, b kinstate.KinState, maxDist float64) bool {
	euclid := a.Pose.Point.Sub(b.Pose.Point).Norm()
	return euclid-h.refDist > maxDist
}

// numericJacobian computes a central-difference Jacobian of f at q.
func numericJacobian(f func([]float64) []float64, q []float64) *mat.Dense {
	n := len(q)
	const h = 1e-6
	j := mat.NewDense(n, n, nil)
	for col := 0; col < n; col++ {
		qp := append([]float64{}, q...)
		qm := append([]float64{}, q...)
		step := h
		if math.Abs(q[col]) > 1 {
			step = h * math.Abs(q[col])
		}
		qp[col] += step
		qm[col] -= step
		fp := f(qp)
		fm := f(qm)
		for row := 0; row < n; row++ {
			j.Set(row, col, (fp[row]-fm[row])/(2*step))
		}
	}
	return j
}

// solveLinear4 solves J*delta = r for the 4x4 system produced by the Newton
// iteration above.
func solveLinear4(j *mat.Dense, r []float64) ([]float64, error) {
	b := mat.NewVecDense(4, r)
	var x mat.VecDense
	if err := x.SolveVec(j, b); err != nil {
		return nil, err
	}
	out := make([]float64, 4)
	for i := 0; i < 4; i++ {
		out[i] = x.AtVec(i)
	}
	return out, nil
}
