// Package rrtstar implements the TPS-RRT* extend/rewire loop: the planner
// samples candidate poses, finds neighboring tree nodes via a PTG-aware
// ball query, extends the tree along the best collision-free primitive,
// and rewires nearby nodes whose cost improves through the new node.
package rrtstar

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"

	"github.com/selfdrive-go/tpsrrt/kinstate"
	"github.com/selfdrive-go/tpsrrt/localobstacle"
	"github.com/selfdrive-go/tpsrrt/logging"
	"github.com/selfdrive-go/tpsrrt/motiontree"
	"github.com/selfdrive-go/tpsrrt/neighbors"
	"github.com/selfdrive-go/tpsrrt/obstacles"
	"github.com/selfdrive-go/tpsrrt/sampler"
	"github.com/selfdrive-go/tpsrrt/tpspace"
)

// Params carries the planner's tunable knobs.
type Params struct {
	MaxIterations                    int
	InitialSearchRadius              float64
	GoalBias                         float64
	DrawInTPS                        bool
	MinStepLength                    float64
	MaxStepLength                    float64
	RenderPathInterpolatedSegments   int
	SaveDebugVisualizationDecimation int
	Seed                             int64
	// GoalTolerance is the distance at which the goal is considered reached
	// for path extraction. Callers must state a tolerance explicitly rather
	// than have the planner guess one.
	GoalTolerance float64
}

// Input is the planner's full input: the start and goal states, the world
// bounds sampling draws from, the PTG set, the obstacle source, and the
// tunable parameters.
type Input struct {
	StateStart, StateGoal       kinstate.KinState
	WorldBboxMin, WorldBboxMax  kinstate.Pose2D
	PTGs                        []tpspace.PTG
	Obstacles                   obstacles.Source
	Params                      Params
}

// Output is the planner's full output: the built tree plus whatever the
// caller needs to extract a path from it.
type Output struct {
	OriginalInput Input
	Tree          *motiontree.Tree
	// Success reports whether a node within Params.GoalTolerance of the
	// goal pose was found and BestPath is populated.
	Success  bool
	GoalNode motiontree.NodeId
	// BestPath is the sequence of node ids from root to GoalNode, populated
	// only when Success is true.
	BestPath []motiontree.NodeId
}

// ErrConfig reports a violated precondition on Plan's input.
type ErrConfig struct{ Reason string }

func (e ErrConfig) Error() string { return "rrtstar: configuration error: " + e.Reason }

// ErrDuplicateNode is re-exported for callers matching on the neighborhood
// query's zero-distance invariant violation.
type ErrDuplicateNode = neighbors.ErrDuplicateNode

// DebugSink is the narrow external-collaborator contract for periodic scene
// snapshots during planning. Rendering the snapshot itself is out of scope
// for this module; callers that want it implement this interface and pass
// it to Plan.
type DebugSink interface {
	// SaveIteration is called on iterations divisible by
	// Params.SaveDebugVisualizationDecimation, with the tree state after
	// insertion and the id of the newly inserted node.
	SaveIteration(iter int, tree *motiontree.Tree, newNode motiontree.NodeId) error
}

// Plan runs the TPS-RRT* extend/rewire loop to completion and returns the
// resulting tree, or a fatal configuration/exhaustion/invariant error. sink
// may be nil, in which case debug snapshots are skipped regardless of
// Params.SaveDebugVisualizationDecimation.
func Plan(in Input, log logging.Logger, sink DebugSink) (Output, error) {
	if err := validate(in); err != nil {
		return Output{}, err
	}
	if log == nil {
		log = logging.NewLogger("rrtstar")
	}

	tree := motiontree.NewTree(in.StateStart)
	maxRefDist := 0.0
	for _, p := range in.PTGs {
		if p.RefDistance() > maxRefDist {
			maxRefDist = p.RefDistance()
		}
	}
	localCache := localobstacle.NewCache(maxRefDist)
	cloud := in.Obstacles.Points()

	firstPTG := in.PTGs[0]
	samp := sampler.New(
		sampler.Bounds{MinX: in.WorldBboxMin.Point.X, MaxX: in.WorldBboxMax.Point.X, MinY: in.WorldBboxMin.Point.Y, MaxY: in.WorldBboxMax.Point.Y},
		in.Params.GoalBias, in.StateGoal.Pose, in.Params.Seed,
	)

	accept := func(cand kinstate.Pose2D) bool {
		return freeOfObstacles(cand, in.Obstacles, firstPTG)
	}
	acceptTPSpace := func(cand kinstate.Pose2D) bool {
		return inBox(cand, in.WorldBboxMin, in.WorldBboxMax) && freeOfObstacles(cand, in.Obstacles, firstPTG)
	}

	out := Output{OriginalInput: in, Tree: tree, GoalNode: motiontree.InvalidNodeId}
	bestGoalDist := math.Inf(1)

	for iter := 0; iter < in.Params.MaxIterations; iter++ {
		var qi kinstate.Pose2D
		var err error
		if in.Params.DrawInTPS {
			qi, err = samp.SampleTPSpace(tree, in.PTGs, in.Params.MinStepLength, in.Params.MaxStepLength, acceptTPSpace)
		} else {
			qi, err = samp.SampleAccept(accept)
		}
		if err != nil {
			return Output{}, err
		}
		target := kinstate.KinState{Pose: qi}

		cands, err := neighbors.Query(tree, in.PTGs, target, in.Params.InitialSearchRadius)
		if err != nil {
			return Output{}, err
		}
		if len(cands) == 0 {
			continue
		}

		bestChild, bestEdge, bestParent, ok := bestExtension(tree, in.PTGs, cands, localCache, cloud, in.Params.RenderPathInterpolatedSegments, log)
		if !ok {
			continue
		}

		childId, err := tree.InsertNodeAndEdge(bestParent, bestChild, bestEdge)
		if err != nil {
			return Output{}, err
		}

		rewire(tree, in.PTGs, childId, in.Params.InitialSearchRadius, localCache, cloud)

		if sink != nil && in.Params.SaveDebugVisualizationDecimation > 0 && iter%in.Params.SaveDebugVisualizationDecimation == 0 {
			if err := sink.SaveIteration(iter, tree, childId); err != nil {
				log.Warnf("debug snapshot failed at iteration %d: %v", iter, err)
			}
		}

		d := bestChild.Pose.Point.Sub(in.StateGoal.Pose.Point).Norm()
		if d <= in.Params.GoalTolerance && d < bestGoalDist {
			bestGoalDist = d
			out.Success = true
			out.GoalNode = childId
		}
	}

	if out.Success {
		out.BestPath = pathTo(tree, out.GoalNode)
	}
	return out, nil
}

// interpolatePath samples n evenly spaced intermediate poses along
// trajectory trajIdx up to finalStep, for an edge's optional visualization
// polyline. It returns nil when n <= 0.
func interpolatePath(ptg tpspace.PTG, trajIdx, finalStep, n int) []kinstate.Pose2D {
	if n <= 0 || finalStep <= 0 {
		return nil
	}
	out := make([]kinstate.Pose2D, 0, n)
	for i := 1; i <= n; i++ {
		step := finalStep * i / n
		pose, err := ptg.GetPathPose(trajIdx, step)
		if err != nil {
			continue
		}
		out = append(out, pose)
	}
	return out
}

func freeOfObstacles(pose kinstate.Pose2D, obs obstacles.Source, ptg tpspace.PTG) bool {
	nearest, ok := obs.Nearest(pose.Point.X, pose.Point.Y)
	if !ok {
		return true
	}
	local := kinstate.InverseComposePoint(pose, nearest)
	return !ptg.IsPointInsideRobotShape(local.X, local.Y)
}

// bestExtension narrows every candidate's free distance against the local
// obstacle view, discards colliding candidates, and returns the surviving
// one with the lowest parent-plus-edge cost.
func bestExtension(
	tree *motiontree.Tree,
	ptgs []tpspace.PTG,
	cands []neighbors.Candidate,
	localCache *localobstacle.Cache,
	cloud []r3.Vector,
	renderSegments int,
	log logging.Logger,
) (child kinstate.KinState, edge motiontree.Edge, parent motiontree.NodeId, ok bool) {
	bestCost := math.Inf(1)

	for _, c := range cands {
		parentNode, err := tree.Node(c.Node)
		if err != nil {
			continue
		}
		ptg := ptgs[c.PTGIdx]

		localPts := localCache.Get(c.Node, parentNode.State.Pose, cloud)

		ptg.UpdateDynamicState(tpspace.DynamicState{
			CurVelLocal:    parentNode.State.Vel.Rotate(-parentNode.State.Pose.Phi),
			RelTarget:      kinstate.NewPose2D(1, 0, 0),
			TargetRelSpeed: 1,
		})

		freeDist := ptg.InitTPObstacleSingle(c.TrajIdx)
		for _, p := range localPts {
			ptg.UpdateTPObstacleSingle(p.X, p.Y, c.TrajIdx, &freeDist)
		}
		if c.Dist >= freeDist {
			continue
		}

		step, err := ptg.GetPathStepForDist(c.TrajIdx, c.Dist)
		if err != nil {
			if log != nil {
				log.Debugf("discarding candidate: %v", err)
			}
			continue
		}

		relPose, err := ptg.GetPathPose(c.TrajIdx, step)
		if err != nil {
			continue
		}
		relTwist, err := ptg.GetPathTwist(c.TrajIdx, step)
		if err != nil {
			continue
		}

		childPose := kinstate.Compose(parentNode.State.Pose, relPose)
		childVel := relTwist.Rotate(parentNode.State.Pose.Phi)
		cost := parentNode.Cost + c.Dist
		if cost >= bestCost {
			continue
		}

		bestCost = cost
		child = kinstate.KinState{Pose: childPose, Vel: childVel}
		edge = motiontree.Edge{
			PTGIdx:       c.PTGIdx,
			TrajIdx:      c.TrajIdx,
			PTGDist:      c.Dist,
			SpeedScale:   1,
			Interpolated: interpolatePath(ptg, c.TrajIdx, step, renderSegments),
		}
		parent = c.Node
		ok = true
	}
	return child, edge, parent, ok
}

// rewire reparents every node within searchRadius of the newly inserted
// node if routing through the new node lowers its cost and the connecting
// primitive is collision-free.
func rewire(tree *motiontree.Tree, ptgs []tpspace.PTG, newId motiontree.NodeId, searchRadius float64, localCache *localobstacle.Cache, cloud []r3.Vector) {
	newNode, err := tree.Node(newId)
	if err != nil {
		return
	}

	for id := motiontree.NodeId(0); int(id) < tree.NumNodes(); id++ {
		if id == newId {
			continue
		}
		node, err := tree.Node(id)
		if err != nil {
			continue
		}

		for pIdx, ptg := range ptgs {
			if ptg.CannotBeNearerThan(newNode.State, node.State, searchRadius) {
				continue
			}
			dist, trajIdx, isOk := ptg.DistanceMetric(newNode.State, node.State)
			if !isOk || dist <= 0 || dist > searchRadius {
				continue
			}
			candidateCost := newNode.Cost + dist
			if candidateCost >= node.Cost {
				continue
			}

			localPts := localCache.Get(newId, newNode.State.Pose, cloud)
			ptg.UpdateDynamicState(tpspace.DynamicState{
				CurVelLocal:    newNode.State.Vel.Rotate(-newNode.State.Pose.Phi),
				RelTarget:      kinstate.NewPose2D(1, 0, 0),
				TargetRelSpeed: 1,
			})
			freeDist := ptg.InitTPObstacleSingle(trajIdx)
			for _, p := range localPts {
				ptg.UpdateTPObstacleSingle(p.X, p.Y, trajIdx, &freeDist)
			}
			if dist >= freeDist {
				continue
			}

			step, err := ptg.GetPathStepForDist(trajIdx, dist)
			if err != nil {
				continue
			}
			relPose, err := ptg.GetPathPose(trajIdx, step)
			if err != nil {
				continue
			}
			expectedPose := kinstate.Compose(newNode.State.Pose, relPose)
			if expectedPose.Point.Sub(node.State.Pose.Point).Norm() > 1e-3 {
				// The primitive doesn't land where this node actually sits;
				// the two poses are only metrically close, not reachable by
				// this exact trajectory. Skip rather than distort the tree.
				continue
			}

			edge := motiontree.Edge{PTGIdx: pIdx, TrajIdx: trajIdx, PTGDist: dist, SpeedScale: 1}
			_ = tree.Reparent(id, newId, edge)
			localCache.Invalidate(id)
			break
		}
	}
}

func pathTo(tree *motiontree.Tree, id motiontree.NodeId) []motiontree.NodeId {
	var rev []motiontree.NodeId
	for cur := id; cur != motiontree.InvalidNodeId; {
		rev = append(rev, cur)
		parent, err := tree.Parent(cur)
		if err != nil {
			break
		}
		if parent == motiontree.InvalidNodeId {
			break
		}
		cur = parent
	}
	out := make([]motiontree.NodeId, len(rev))
	for i, id := range rev {
		out[len(rev)-1-i] = id
	}
	return out
}

func validate(in Input) error {
	var errs error
	if len(in.PTGs) == 0 {
		errs = multierr.Append(errs, ErrConfig{Reason: "at least one PTG is required"})
	}
	for i, p := range in.PTGs {
		if p.RefDistance() <= 0 {
			errs = multierr.Append(errs, ErrConfig{Reason: fmt.Sprintf("ptg %d: refDistance must be positive", i)})
		}
	}
	if in.WorldBboxMin.Point.X >= in.WorldBboxMax.Point.X ||
		in.WorldBboxMin.Point.Y >= in.WorldBboxMax.Point.Y ||
		in.WorldBboxMin.Phi >= in.WorldBboxMax.Phi {
		errs = multierr.Append(errs, ErrConfig{Reason: "world bounding box must satisfy min < max component-wise"})
	}
	if !inBox(in.StateStart.Pose, in.WorldBboxMin, in.WorldBboxMax) {
		errs = multierr.Append(errs, ErrConfig{Reason: "start pose outside world bounding box"})
	}
	if !inBox(in.StateGoal.Pose, in.WorldBboxMin, in.WorldBboxMax) {
		errs = multierr.Append(errs, ErrConfig{Reason: "goal pose outside world bounding box"})
	}
	if in.Obstacles == nil {
		errs = multierr.Append(errs, ErrConfig{Reason: "obstacle source is required"})
	}
	if in.Params.MaxIterations <= 0 {
		errs = multierr.Append(errs, ErrConfig{Reason: "maxIterations must be positive"})
	}
	if in.Params.InitialSearchRadius <= 0 {
		errs = multierr.Append(errs, ErrConfig{Reason: "initialSearchRadius must be positive"})
	}
	if in.Params.GoalBias < 0 || in.Params.GoalBias > 1 {
		errs = multierr.Append(errs, ErrConfig{Reason: "goalBias must be in [0,1]"})
	}
	return errs
}

func inBox(p kinstate.Pose2D, min, max kinstate.Pose2D) bool {
	return p.Point.X >= min.Point.X && p.Point.X <= max.Point.X &&
		p.Point.Y >= min.Point.Y && p.Point.Y <= max.Point.Y
}
