package sampler

import (
	"testing"

	"go.viam.com/test"

	"github.com/selfdrive-go/tpsrrt/kinstate"
	"github.com/selfdrive-go/tpsrrt/motiontree"
	"github.com/selfdrive-go/tpsrrt/robotshape"
	"github.com/selfdrive-go/tpsrrt/tpspace"
)

func TestSampleWithFullGoalBiasAlwaysReturnsGoal(t *testing.T) {
	goal := kinstate.NewPose2D(5, 5, 1.0)
	s := New(Bounds{MinX: -10, MaxX: 10, MinY: -10, MaxY: 10}, 1.0, goal, 42)

	for i := 0; i < 20; i++ {
		got := s.Sample()
		test.That(t, got, test.ShouldResemble, goal)
	}
}

func TestSampleWithZeroGoalBiasStaysInBounds(t *testing.T) {
	goal := kinstate.NewPose2D(5, 5, 0)
	s := New(Bounds{MinX: -1, MaxX: 1, MinY: -2, MaxY: 2}, 0.0, goal, 7)

	for i := 0; i < 200; i++ {
		got := s.Sample()
		test.That(t, got.Point.X, test.ShouldBeBetweenOrEqual, -1.0, 1.0)
		test.That(t, got.Point.Y, test.ShouldBeBetweenOrEqual, -2.0, 2.0)
	}
}

func TestSampleAcceptExhaustsAfterRejectingEverything(t *testing.T) {
	goal := kinstate.NewPose2D(0, 0, 0)
	s := New(Bounds{MinX: -1, MaxX: 1, MinY: -1, MaxY: 1}, 0.0, goal, 1)

	_, err := s.SampleAccept(func(kinstate.Pose2D) bool { return false })
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err, test.ShouldHaveSameTypeAs, ErrExhausted{})
}

func TestSampleAcceptReturnsFirstAcceptedDraw(t *testing.T) {
	goal := kinstate.NewPose2D(0, 0, 0)
	s := New(Bounds{MinX: -1, MaxX: 1, MinY: -1, MaxY: 1}, 0.0, goal, 1)

	got, err := s.SampleAccept(func(kinstate.Pose2D) bool { return true })
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Point.X, test.ShouldBeBetweenOrEqual, -1.0, 1.0)
}

func newTPSpaceTestPTG(t *testing.T) tpspace.PTG {
	t.Helper()
	ptg, err := tpspace.NewDiffDriveC(tpspace.DiffDriveCConfig{
		NumPaths: 31,
		VMax:     1,
		WMax:     1,
		K:        1,
		Rref:     0.1,
		Shape:    robotshape.NewCircular(0.2),
	})
	test.That(t, err, test.ShouldBeNil)
	return ptg
}

func TestSampleTPSpaceComposesOntoATreeNode(t *testing.T) {
	root := kinstate.KinState{Pose: kinstate.NewPose2D(3, 4, 0)}
	tree := motiontree.NewTree(root)
	ptgs := []tpspace.PTG{newTPSpaceTestPTG(t)}

	goal := kinstate.NewPose2D(100, 100, 0)
	s := New(Bounds{MinX: -1000, MaxX: 1000, MinY: -1000, MaxY: 1000}, 0.0, goal, 5)

	got, err := s.SampleTPSpace(tree, ptgs, 0.2, 1.0, func(kinstate.Pose2D) bool { return true })
	test.That(t, err, test.ShouldBeNil)

	// The tree has a single node at (3,4); every draw must land somewhere
	// reachable from it by a bounded-length primitive, not at the origin.
	dist := got.Point.Sub(root.Pose.Point).Norm()
	test.That(t, dist, test.ShouldBeBetweenOrEqual, 0.0, 1.5)
}

func TestSampleTPSpaceHonorsGoalBias(t *testing.T) {
	root := kinstate.KinState{Pose: kinstate.NewPose2D(0, 0, 0)}
	tree := motiontree.NewTree(root)
	ptgs := []tpspace.PTG{newTPSpaceTestPTG(t)}

	goal := kinstate.NewPose2D(10, 0, 0)
	s := New(Bounds{MinX: -1000, MaxX: 1000, MinY: -1000, MaxY: 1000}, 1.0, goal, 5)

	got, err := s.SampleTPSpace(tree, ptgs, 0.2, 1.0, func(kinstate.Pose2D) bool { return true })
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, goal)
}

func TestSampleTPSpaceExhaustsWhenNothingAccepted(t *testing.T) {
	root := kinstate.KinState{Pose: kinstate.NewPose2D(0, 0, 0)}
	tree := motiontree.NewTree(root)
	ptgs := []tpspace.PTG{newTPSpaceTestPTG(t)}

	goal := kinstate.NewPose2D(10, 0, 0)
	s := New(Bounds{MinX: -1000, MaxX: 1000, MinY: -1000, MaxY: 1000}, 0.0, goal, 5)

	_, err := s.SampleTPSpace(tree, ptgs, 0.2, 1.0, func(kinstate.Pose2D) bool { return false })
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err, test.ShouldHaveSameTypeAs, ErrExhausted{})
}
