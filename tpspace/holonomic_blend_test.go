package tpspace

import (
	"math"
	"testing"

	"go.viam.com/test"

	"github.com/selfdrive-go/tpsrrt/robotshape"
)

func newHolonomicForTest(t *testing.T) *HolonomicBlend {
	t.Helper()
	ptg, err := NewHolonomicBlend(HolonomicBlendConfig{
		NumPaths:      45,
		RefDistance:   3,
		TRampMax:      0.6,
		VMax:          1,
		WMaxDegPerSec: 90,
		Shape:         robotshape.NewCircular(0.2),
	})
	test.That(t, err, test.ShouldBeNil)
	return ptg
}

func TestHolonomicBlendConfigDefaultsExpressions(t *testing.T) {
	ptg := newHolonomicForTest(t)
	test.That(t, ptg.exprV.String(), test.ShouldEqual, "V_MAX")
	test.That(t, ptg.exprW.String(), test.ShouldEqual, "W_MAX")
	test.That(t, ptg.exprTRamp.String(), test.ShouldEqual, "T_ramp_max")
}

func TestHolonomicBlendConfigValidation(t *testing.T) {
	base := HolonomicBlendConfig{
		NumPaths: 10, RefDistance: 1, TRampMax: 1, VMax: 1, WMaxDegPerSec: 90,
		Shape: robotshape.NewCircular(0.1),
	}

	bad := base
	bad.NumPaths = 0
	_, err := NewHolonomicBlend(bad)
	test.That(t, err, test.ShouldNotBeNil)

	bad = base
	bad.Shape = nil
	_, err = NewHolonomicBlend(bad)
	test.That(t, err, test.ShouldNotBeNil)

	bad = base
	bad.VMax = -1
	_, err = NewHolonomicBlend(bad)
	test.That(t, err, test.ShouldNotBeNil)
}

// TestHolonomicBlendInverseMapRoundTrip covers property 7: for zero initial
// velocity and default expressions, the inverse map followed by forward
// kinematics reproduces the input point.
func TestHolonomicBlendInverseMapRoundTrip(t *testing.T) {
	ptg := newHolonomicForTest(t)
	ptg.UpdateDynamicState(DynamicState{})

	for _, target := range []struct{ x, y float64 }{
		{1.0, 0.0},
		{0.8, 0.4},
		{-0.5, 0.6},
	} {
		k, dNorm, exact, err := ptg.InverseMapWS2TP(target.x, target.y)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, exact, test.ShouldBeTrue)

		step, err := ptg.GetPathStepForDist(k, dNorm*ptg.RefDistance())
		test.That(t, err, test.ShouldBeNil)

		pose, err := ptg.GetPathPose(k, step)
		test.That(t, err, test.ShouldBeNil)

		test.That(t, pose.Point.X, test.ShouldAlmostEqual, target.x, 1e-2)
		test.That(t, pose.Point.Y, test.ShouldAlmostEqual, target.y, 1e-2)
	}
}

func TestHolonomicBlendObstacleNeverIncreasesClearDistance(t *testing.T) {
	ptg := newHolonomicForTest(t)
	ptg.UpdateDynamicState(DynamicState{})
	k := ptg.Alpha2Index(0)

	d := ptg.InitTPObstacleSingle(k)
	initial := d
	// An obstacle sitting directly on the trajectory's forward axis, well
	// within RefDistance, must shrink the clear distance.
	ptg.UpdateTPObstacleSingle(1.0, 0.0, k, &d)
	test.That(t, d, test.ShouldBeLessThan, initial)
	test.That(t, d, test.ShouldBeGreaterThan, 0.0)

	// A second, farther-away obstacle must not undo the narrowing.
	before := d
	ptg.UpdateTPObstacleSingle(2.5, 0.0, k, &d)
	test.That(t, d, test.ShouldBeLessThanOrEqualTo, before)
}

func TestHolonomicBlendPoseAtRampBoundaryMatchesTailStart(t *testing.T) {
	ptg := newHolonomicForTest(t)
	ptg.UpdateDynamicState(DynamicState{})
	k := ptg.Alpha2Index(0)

	p, err := ptg.paramsForAlpha(ptg.Index2Alpha(k))
	test.That(t, err, test.ShouldBeNil)

	atRamp := ptg.poseAtTime(p, p.tRamp)
	justAfter := ptg.poseAtTime(p, p.tRamp+1e-6)
	test.That(t, math.Abs(atRamp.Point.X-justAfter.Point.X), test.ShouldBeLessThan, 1e-4)
}
