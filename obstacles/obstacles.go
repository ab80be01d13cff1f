// Package obstacles defines the narrow contract the planner core needs from
// an obstacle map: the current point cloud, and a nearest-neighbor query
// against it. The concrete map representation (occupancy grid, point cloud
// store, etc.) is an external collaborator out of scope for this module; the
// PointCloud type below is a minimal reference implementation sufficient for
// tests and the demo CLI, grounded on mrpt::maps::CSimplePointsMap's role in
// TPS_RRTstar.cpp (kdTreeClosestPoint2D, getPointsBuffer).
package obstacles

import "github.com/golang/geo/r3"

// Source is the obstacle collaborator the planner consumes. Implementations
// are expected to be read-only and borrowed for the duration of a plan() call.
type Source interface {
	// Points returns the full 2D point cloud (Z is ignored/zero).
	Points() []r3.Vector
	// Nearest returns the closest obstacle point to (x, y) and whether the
	// cloud was non-empty.
	Nearest(x, y float64) (r3.Vector, bool)
}

// PointCloud is a flat, read-only obstacle source doing a linear-scan nearest
// neighbor query. It is adequate reference behavior for the contract above;
// production deployments are expected to supply their own spatially indexed
// implementation.
type PointCloud struct {
	points []r3.Vector
}

// NewPointCloud copies pts into a new PointCloud.
func NewPointCloud(pts []r3.Vector) *PointCloud {
	cp := make([]r3.Vector, len(pts))
	copy(cp, pts)
	return &PointCloud{points: cp}
}

// Points implements Source.
func (pc *PointCloud) Points() []r3.Vector {
	return pc.points
}

// Nearest implements Source.
func (pc *PointCloud) Nearest(x, y float64) (r3.Vector, bool) {
	if len(pc.points) == 0 {
		return r3.Vector{}, false
	}
	best := pc.points[0]
	bestDistSqr := sqrDist(best, x, y)
	for _, p := range pc.points[1:] {
		if d := sqrDist(p, x, y); d < bestDistSqr {
			bestDistSqr = d
			best = p
		}
	}
	return best, true
}

func sqrDist(p r3.Vector, x, y float64) float64 {
	dx, dy := p.X-x, p.Y-y
	return dx*dx + dy*dy
}
