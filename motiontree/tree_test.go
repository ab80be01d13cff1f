package motiontree

import (
	"testing"

	"go.viam.com/test"

	"github.com/selfdrive-go/tpsrrt/kinstate"
)

func TestNewTreeHasSingleRoot(t *testing.T) {
	tr := NewTree(kinstate.KinState{Pose: kinstate.NewPose2D(0, 0, 0)})
	test.That(t, tr.NumNodes(), test.ShouldEqual, 1)
	test.That(t, tr.RootId(), test.ShouldEqual, NodeId(0))

	parent, err := tr.Parent(tr.RootId())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parent, test.ShouldEqual, InvalidNodeId)

	root, err := tr.Node(tr.RootId())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, root.Cost, test.ShouldEqual, 0.0)
}

func TestInsertNodeAndEdgeAccumulatesCost(t *testing.T) {
	tr := NewTree(kinstate.KinState{Pose: kinstate.NewPose2D(0, 0, 0)})

	child1State := kinstate.KinState{Pose: kinstate.NewPose2D(1, 0, 0)}
	id1, err := tr.InsertNodeAndEdge(tr.RootId(), child1State, Edge{PTGDist: 1.5})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, id1, test.ShouldEqual, NodeId(1))

	n1, err := tr.Node(id1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n1.Cost, test.ShouldEqual, 1.5)

	child2State := kinstate.KinState{Pose: kinstate.NewPose2D(3, 0, 0)}
	id2, err := tr.InsertNodeAndEdge(id1, child2State, Edge{PTGDist: 2.0})
	test.That(t, err, test.ShouldBeNil)

	n2, err := tr.Node(id2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n2.Cost, test.ShouldEqual, 3.5)

	test.That(t, tr.NumNodes(), test.ShouldEqual, 3)

	kids, edges, err := tr.EdgesFromParent(tr.RootId())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kids, test.ShouldResemble, []NodeId{id1})
	test.That(t, edges[0].PTGDist, test.ShouldEqual, 1.5)
}

func TestInsertNodeAndEdgeUnknownParent(t *testing.T) {
	tr := NewTree(kinstate.KinState{})
	_, err := tr.InsertNodeAndEdge(NodeId(99), kinstate.KinState{}, Edge{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err, test.ShouldHaveSameTypeAs, ErrUnknownNode{})
}

func TestReparentPropagatesCostToDescendants(t *testing.T) {
	tr := NewTree(kinstate.KinState{Pose: kinstate.NewPose2D(0, 0, 0)})

	a, err := tr.InsertNodeAndEdge(tr.RootId(), kinstate.KinState{Pose: kinstate.NewPose2D(1, 0, 0)}, Edge{PTGDist: 5})
	test.That(t, err, test.ShouldBeNil)
	b, err := tr.InsertNodeAndEdge(a, kinstate.KinState{Pose: kinstate.NewPose2D(2, 0, 0)}, Edge{PTGDist: 5})
	test.That(t, err, test.ShouldBeNil)
	c, err := tr.InsertNodeAndEdge(b, kinstate.KinState{Pose: kinstate.NewPose2D(3, 0, 0)}, Edge{PTGDist: 5})
	test.That(t, err, test.ShouldBeNil)

	// A cheaper alternate parent directly off the root.
	alt, err := tr.InsertNodeAndEdge(tr.RootId(), kinstate.KinState{Pose: kinstate.NewPose2D(1.5, 0, 0)}, Edge{PTGDist: 2})
	test.That(t, err, test.ShouldBeNil)

	err = tr.Reparent(b, alt, Edge{PTGDist: 1})
	test.That(t, err, test.ShouldBeNil)

	nb, err := tr.Node(b)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, nb.Cost, test.ShouldEqual, 3.0) // alt.cost(2) + 1

	nc, err := tr.Node(c)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, nc.Cost, test.ShouldEqual, 8.0) // propagated delta of -7

	// b should no longer be a's child.
	aKids, _, err := tr.EdgesFromParent(a)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, aKids, test.ShouldBeEmpty)

	altKids, _, err := tr.EdgesFromParent(alt)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, altKids, test.ShouldResemble, []NodeId{b})
}
