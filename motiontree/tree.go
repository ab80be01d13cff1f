// Package motiontree implements the planner's motion tree: a dense,
// array-indexed graph of kinematic states linked by PTG-generated edges.
// Nodes and edges live in flat slices indexed by dense integer NodeIds
// rather than by pointer, grounded on the "Graph ownership" design note:
// this makes cloning, serialization, and cache keys trivial and avoids
// cyclic-ownership concerns entirely.
package motiontree

import (
	"fmt"

	"github.com/selfdrive-go/tpsrrt/kinstate"
)

// NodeId is a dense, monotonically issued node identifier. The root is
// always id 0.
type NodeId int

// InvalidNodeId is returned where no node applies.
const InvalidNodeId NodeId = -1

// Node is a kinematic state plus its accumulated cost from the root.
type Node struct {
	State kinstate.KinState
	Cost  float64
}

// Edge is the PTG-generated primitive connecting a node to one of its
// children: the PTG and trajectory that produced it, the un-normalized
// path distance, a speed scaling factor, and an optional interpolated
// polyline for visualization.
type Edge struct {
	PTGIdx       int
	TrajIdx      int
	PTGDist      float64
	SpeedScale   float64
	Interpolated []kinstate.Pose2D
}

// Cost is the edge's contribution to its child's accumulated cost.
func (e Edge) Cost() float64 { return e.PTGDist }

// Tree is the planner's motion tree. The zero value is not usable; build
// one with NewTree.
type Tree struct {
	root NodeId

	states []kinstate.KinState
	costs  []float64

	// parent[i] is the parent of node i; parent[root] is InvalidNodeId.
	parent []NodeId
	// incoming[i] is the edge from parent[i] to i; zero Edge for the root.
	incoming []Edge
	// children[i] lists i's children in insertion order.
	children [][]NodeId
}

// ErrUnknownNode reports a reference to a NodeId the tree does not contain.
type ErrUnknownNode struct{ Id NodeId }

func (e ErrUnknownNode) Error() string {
	return fmt.Sprintf("motiontree: unknown node id %d", e.Id)
}

// NewTree builds a tree with a single root node of the given state and
// zero cost, satisfying invariant (a): exactly one root.
func NewTree(rootState kinstate.KinState) *Tree {
	t := &Tree{root: 0}
	t.states = append(t.states, rootState)
	t.costs = append(t.costs, 0)
	t.parent = append(t.parent, InvalidNodeId)
	t.incoming = append(t.incoming, Edge{})
	t.children = append(t.children, nil)
	return t
}

// RootId returns the tree's root node id.
func (t *Tree) RootId() NodeId { return t.root }

// NextFreeNodeId returns the id that the next InsertNodeAndEdge call will
// assign, preserving the dense, monotonically-increasing id invariant.
func (t *Tree) NextFreeNodeId() NodeId { return NodeId(len(t.states)) }

// NumNodes returns the number of nodes currently in the tree.
func (t *Tree) NumNodes() int { return len(t.states) }

// Node returns the node for id, or an error if id is out of range.
func (t *Tree) Node(id NodeId) (Node, error) {
	if int(id) < 0 || int(id) >= len(t.states) {
		return Node{}, ErrUnknownNode{Id: id}
	}
	return Node{State: t.states[id], Cost: t.costs[id]}, nil
}

// Nodes returns every node in the tree, ordered by NodeId.
func (t *Tree) Nodes() []Node {
	out := make([]Node, len(t.states))
	for i := range t.states {
		out[i] = Node{State: t.states[i], Cost: t.costs[i]}
	}
	return out
}

// Parent returns the parent of id. The root's parent is InvalidNodeId.
func (t *Tree) Parent(id NodeId) (NodeId, error) {
	if int(id) < 0 || int(id) >= len(t.parent) {
		return InvalidNodeId, ErrUnknownNode{Id: id}
	}
	return t.parent[id], nil
}

// IncomingEdge returns the edge from id's parent to id.
func (t *Tree) IncomingEdge(id NodeId) (Edge, error) {
	if int(id) < 0 || int(id) >= len(t.incoming) {
		return Edge{}, ErrUnknownNode{Id: id}
	}
	return t.incoming[id], nil
}

// EdgesFromParent returns the (childId, edge) pairs for every child of id,
// in insertion order.
func (t *Tree) EdgesFromParent(id NodeId) ([]NodeId, []Edge, error) {
	if int(id) < 0 || int(id) >= len(t.children) {
		return nil, nil, ErrUnknownNode{Id: id}
	}
	kids := t.children[id]
	edges := make([]Edge, len(kids))
	for i, c := range kids {
		edges[i] = t.incoming[c]
	}
	out := make([]NodeId, len(kids))
	copy(out, kids)
	return out, edges, nil
}

// InsertNodeAndEdge appends a new node with the given state, parented at
// parent via edge, and returns its freshly issued id. It preserves
// invariants (b)-(d): the child gets exactly one incoming edge, its cost
// is derived from the parent's cost plus the edge's cost, and ids remain
// dense and monotonically increasing.
func (t *Tree) InsertNodeAndEdge(parent NodeId, childState kinstate.KinState, edge Edge) (NodeId, error) {
	if int(parent) < 0 || int(parent) >= len(t.states) {
		return InvalidNodeId, ErrUnknownNode{Id: parent}
	}
	id := t.NextFreeNodeId()
	t.states = append(t.states, childState)
	t.costs = append(t.costs, t.costs[parent]+edge.Cost())
	t.parent = append(t.parent, parent)
	t.incoming = append(t.incoming, edge)
	t.children = append(t.children, nil)
	t.children[parent] = append(t.children[parent], id)
	return id, nil
}

// Reparent detaches child from its current parent, reattaches it under
// newParent via newEdge, and propagates the resulting cost change to every
// descendant of child.
func (t *Tree) Reparent(child, newParent NodeId, newEdge Edge) error {
	if int(child) < 0 || int(child) >= len(t.states) {
		return ErrUnknownNode{Id: child}
	}
	if int(newParent) < 0 || int(newParent) >= len(t.states) {
		return ErrUnknownNode{Id: newParent}
	}
	oldParent := t.parent[child]
	t.children[oldParent] = removeId(t.children[oldParent], child)
	t.children[newParent] = append(t.children[newParent], child)
	t.parent[child] = newParent
	t.incoming[child] = newEdge

	newCost := t.costs[newParent] + newEdge.Cost()
	delta := newCost - t.costs[child]
	t.propagateCostDelta(child, delta)
	return nil
}

func (t *Tree) propagateCostDelta(id NodeId, delta float64) {
	t.costs[id] += delta
	for _, c := range t.children[id] {
		t.propagateCostDelta(c, delta)
	}
}

func removeId(ids []NodeId, target NodeId) []NodeId {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
