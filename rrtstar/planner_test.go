package rrtstar

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/selfdrive-go/tpsrrt/kinstate"
	"github.com/selfdrive-go/tpsrrt/logging"
	"github.com/selfdrive-go/tpsrrt/motiontree"
	"github.com/selfdrive-go/tpsrrt/obstacles"
	"github.com/selfdrive-go/tpsrrt/robotshape"
	"github.com/selfdrive-go/tpsrrt/tpspace"
)

func testPTGs(t *testing.T) []tpspace.PTG {
	t.Helper()
	holo, err := tpspace.NewHolonomicBlend(tpspace.HolonomicBlendConfig{
		NumPaths:      31,
		RefDistance:   2,
		TRampMax:      0.6,
		VMax:          1,
		WMaxDegPerSec: 90,
		Shape:         robotshape.NewCircular(0.2),
	})
	test.That(t, err, test.ShouldBeNil)
	return []tpspace.PTG{holo}
}

func baseInput(t *testing.T, obs obstacles.Source) Input {
	t.Helper()
	return Input{
		StateStart:   kinstate.KinState{Pose: kinstate.NewPose2D(0, 0, 0)},
		StateGoal:    kinstate.KinState{Pose: kinstate.NewPose2D(5, 0, 0)},
		WorldBboxMin: kinstate.Pose2D{Point: r3.Vector{X: -10, Y: -10}, Phi: -3.141592653589793},
		WorldBboxMax: kinstate.Pose2D{Point: r3.Vector{X: 10, Y: 10}, Phi: 3.141592653589793},
		PTGs:         testPTGs(t),
		Obstacles:    obs,
		Params: Params{
			MaxIterations:       300,
			InitialSearchRadius: 3,
			GoalBias:            0.1,
			DrawInTPS:           false,
			MinStepLength:       0.2,
			MaxStepLength:       2,
			Seed:                1,
			GoalTolerance:       0.3,
		},
	}
}

// alwaysCollidingObstacles reports the query point itself as the nearest
// obstacle, so every candidate pose sits exactly on an obstacle and the
// acceptance test rejects it. This exercises the sampler's attempt-budget
// exhaustion path in O(1) per attempt, instead of a dense point cloud
// that would force a full linear scan on every one of a million draws.
type alwaysCollidingObstacles struct{}

func (alwaysCollidingObstacles) Points() []r3.Vector { return nil }
func (alwaysCollidingObstacles) Nearest(x, y float64) (r3.Vector, bool) {
	return r3.Vector{X: x, Y: y}, true
}

func assertGoalReached(t *testing.T, out Output, goal kinstate.Pose2D, tolerance float64) {
	t.Helper()
	test.That(t, out.Success, test.ShouldBeTrue)
	test.That(t, out.BestPath, test.ShouldNotBeEmpty)

	goalNode, err := out.Tree.Node(out.GoalNode)
	test.That(t, err, test.ShouldBeNil)
	dist := goalNode.State.Pose.Point.Sub(goal.Point).Norm()
	test.That(t, dist, test.ShouldBeLessThanOrEqualTo, tolerance)
}

func TestPlanEmptyWorldReachesGoal(t *testing.T) {
	in := baseInput(t, obstacles.NewPointCloud(nil))
	out, err := Plan(in, logging.NewTestLogger(t), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Tree.NumNodes(), test.ShouldBeGreaterThan, 1)
	assertGoalReached(t, out, in.StateGoal.Pose, in.Params.GoalTolerance)

	for i := motiontree.NodeId(0); int(i) < out.Tree.NumNodes(); i++ {
		checkCostInvariant(t, out.Tree, i)
	}
}

// TestPlanTPSpaceModeReachesGoal exercises the trajectory-parameter-space
// draw wired through the full extend loop.
func TestPlanTPSpaceModeReachesGoal(t *testing.T) {
	in := baseInput(t, obstacles.NewPointCloud(nil))
	in.Params.DrawInTPS = true
	in.Params.MaxIterations = 800
	out, err := Plan(in, logging.NewTestLogger(t), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Tree.NumNodes(), test.ShouldBeGreaterThan, 1)
	assertGoalReached(t, out, in.StateGoal.Pose, in.Params.GoalTolerance)

	for i := motiontree.NodeId(0); int(i) < out.Tree.NumNodes(); i++ {
		checkCostInvariant(t, out.Tree, i)
	}
}

func TestPlanInvertedBoundingBoxIsConfigError(t *testing.T) {
	in := baseInput(t, obstacles.NewPointCloud(nil))
	in.WorldBboxMax = in.WorldBboxMin
	_, err := Plan(in, logging.NewTestLogger(t), nil)
	test.That(t, err, test.ShouldNotBeNil)
}

// TestPlanGoalBiasOneReturnsTree runs a single goal-biased iteration and
// checks that Plan returns a tree; exact goal sampling is covered by the
// sampler package's own tests.
func TestPlanGoalBiasOneReturnsTree(t *testing.T) {
	in := baseInput(t, obstacles.NewPointCloud(nil))
	in.Params.GoalBias = 1.0
	in.Params.MaxIterations = 1
	out, err := Plan(in, logging.NewTestLogger(t), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Tree.NumNodes(), test.ShouldBeGreaterThanOrEqualTo, 1)
}

// TestPlanSamplerExhaustionSurfacesError covers a world where every
// candidate pose collides, so the sampler must exhaust its attempt budget.
func TestPlanSamplerExhaustionSurfacesError(t *testing.T) {
	in := baseInput(t, alwaysCollidingObstacles{})
	in.Params.GoalBias = 0
	_, err := Plan(in, logging.NewTestLogger(t), nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPlanRejectsEmptyPTGSet(t *testing.T) {
	in := baseInput(t, obstacles.NewPointCloud(nil))
	in.PTGs = nil
	_, err := Plan(in, logging.NewTestLogger(t), nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err, test.ShouldHaveSameTypeAs, ErrConfig{})
}

func TestPlanRejectsStartOutsideBoundingBox(t *testing.T) {
	in := baseInput(t, obstacles.NewPointCloud(nil))
	in.StateStart = kinstate.KinState{Pose: kinstate.NewPose2D(1000, 0, 0)}
	_, err := Plan(in, logging.NewTestLogger(t), nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func checkCostInvariant(t *testing.T, tree *motiontree.Tree, id motiontree.NodeId) {
	t.Helper()
	node, err := tree.Node(id)
	test.That(t, err, test.ShouldBeNil)

	parent, err := tree.Parent(id)
	test.That(t, err, test.ShouldBeNil)
	if parent == motiontree.InvalidNodeId {
		test.That(t, node.Cost, test.ShouldEqual, 0.0)
		return
	}

	parentNode, err := tree.Node(parent)
	test.That(t, err, test.ShouldBeNil)
	edge, err := tree.IncomingEdge(id)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, node.Cost, test.ShouldAlmostEqual, parentNode.Cost+edge.Cost(), 1e-9)
}
