// Package neighbors implements the ball-radius neighborhood query: given a
// candidate state, it finds every (node, ptg, trajectory) triple within a
// radius, ordered by exact distance, for use by the extend step of the RRT*
// loop.
package neighbors

import (
	"fmt"
	"sort"

	"github.com/selfdrive-go/tpsrrt/kinstate"
	"github.com/selfdrive-go/tpsrrt/motiontree"
	"github.com/selfdrive-go/tpsrrt/tpspace"
)

// Candidate is one accepted neighbor: the tree node it originates from, the
// PTG and trajectory index connecting it to the query state, and the exact
// distance along that trajectory.
type Candidate struct {
	Node    motiontree.NodeId
	PTGIdx  int
	TrajIdx int
	Dist    float64
}

// ErrDuplicateNode reports a candidate at zero distance from an existing
// tree node, i.e. a query state that duplicates a node already in the tree.
type ErrDuplicateNode struct{ Node motiontree.NodeId }

func (e ErrDuplicateNode) Error() string {
	return fmt.Sprintf("neighbors: duplicate zero-distance candidate at node %d", e.Node)
}

// Query finds every tree node within radius of target, over every PTG in
// ptgs, ordered by ascending exact distance (ties broken by node id, then
// PTG index, for determinism). Nodes are pre-filtered with each PTG's
// CannotBeNearerThan before the exact DistanceMetric is computed.
func Query(tree *motiontree.Tree, ptgs []tpspace.PTG, target kinstate.KinState, radius float64) ([]Candidate, error) {
	var out []Candidate

	for id := motiontree.NodeId(0); int(id) < tree.NumNodes(); id++ {
		n, err := tree.Node(id)
		if err != nil {
			return nil, err
		}
		for pIdx, ptg := range ptgs {
			if ptg.CannotBeNearerThan(n.State, target, radius) {
				continue
			}
			dist, trajIdx, ok := ptg.DistanceMetric(n.State, target)
			if !ok || dist > radius {
				continue
			}
			if dist <= 0 {
				return nil, ErrDuplicateNode{Node: id}
			}
			out = append(out, Candidate{Node: id, PTGIdx: pIdx, TrajIdx: trajIdx, Dist: dist})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Dist != out[j].Dist {
			return out[i].Dist < out[j].Dist
		}
		if out[i].Node != out[j].Node {
			return out[i].Node < out[j].Node
		}
		return out[i].PTGIdx < out[j].PTGIdx
	})
	return out, nil
}
