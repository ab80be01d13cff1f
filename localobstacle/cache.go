// Package localobstacle implements a per-node translated/clipped obstacle
// view: for a tree node, the subset of the global obstacle cloud within a
// square window around it, expressed in its local frame. The cache is
// owned exclusively by a single planner instance across one planning run.
package localobstacle

import (
	"github.com/golang/geo/r3"

	"github.com/selfdrive-go/tpsrrt/kinstate"
	"github.com/selfdrive-go/tpsrrt/motiontree"
)

type entry struct {
	pose   kinstate.Pose2D
	points []r3.Vector
}

// Cache is a local-obstacle view cache keyed by NodeId. It is not safe for
// concurrent use; each planner owns its own.
type Cache struct {
	halfSide float64
	entries  map[motiontree.NodeId]entry
}

// NewCache builds a cache that clips to a square window of the given
// half-side length around each node.
func NewCache(halfSide float64) *Cache {
	return &Cache{halfSide: halfSide, entries: make(map[motiontree.NodeId]entry)}
}

// Get returns the local-frame obstacle points for id at pose, recomputing
// and caching them from cloud if the cached entry is stale or absent. A
// cache hit requires the stored pose to exactly equal pose.
func (c *Cache) Get(id motiontree.NodeId, pose kinstate.Pose2D, cloud []r3.Vector) []r3.Vector {
	if e, ok := c.entries[id]; ok && e.pose == pose {
		return e.points
	}
	pts := c.recompute(pose, cloud)
	c.entries[id] = entry{pose: pose, points: pts}
	return pts
}

// Invalidate drops any cached view for id, forcing recomputation on the
// next Get. Used after a rewire changes a node's pose relationship to its
// new parent (the node's own global pose is unaffected by rewiring, so in
// practice this is rarely needed, but it is exposed for correctness).
func (c *Cache) Invalidate(id motiontree.NodeId) {
	delete(c.entries, id)
}

func (c *Cache) recompute(pose kinstate.Pose2D, cloud []r3.Vector) []r3.Vector {
	out := make([]r3.Vector, 0, len(cloud))
	for _, p := range cloud {
		dx := p.X - pose.Point.X
		dy := p.Y - pose.Point.Y
		if dx < -c.halfSide || dx > c.halfSide || dy < -c.halfSide || dy > c.halfSide {
			continue
		}
		out = append(out, kinstate.InverseComposePoint(pose, p))
	}
	return out
}
