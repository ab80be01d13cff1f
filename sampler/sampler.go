// Package sampler implements goal-biased sampling: with a fixed Bernoulli
// probability, the goal itself is returned; the remainder of the time, a
// state is drawn uniformly at random from either Euclidean workspace or
// trajectory-parameter space.
package sampler

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/selfdrive-go/tpsrrt/kinstate"
	"github.com/selfdrive-go/tpsrrt/motiontree"
	"github.com/selfdrive-go/tpsrrt/tpspace"
)

// Bounds is an axis-aligned sampling box in the plane.
type Bounds struct {
	MinX, MaxX, MinY, MaxY float64
}

// ErrExhausted reports that no sample satisfying the acceptance predicate
// could be found within the attempt budget.
type ErrExhausted struct{ Attempts int }

func (e ErrExhausted) Error() string {
	return "sampler: exhausted sampling attempts without an acceptable draw"
}

// maxAttempts bounds the retry loop when an Accept predicate is supplied, so
// a persistently unsatisfiable predicate fails rather than looping forever.
const maxAttempts = 1_000_000

// Sampler draws goal-biased random states. The zero value is not usable;
// build one with New.
type Sampler struct {
	bounds   Bounds
	goalBias float64
	goal     kinstate.Pose2D
	rng      *rand.Rand
}

// New builds a Sampler. goalBias must be in [0, 1]. The internal RNG is
// always seeded explicitly, never time-seeded, so plans are reproducible.
func New(bounds Bounds, goalBias float64, goal kinstate.Pose2D, seed int64) *Sampler {
	return &Sampler{
		bounds:   bounds,
		goalBias: goalBias,
		goal:     goal,
		rng:      rand.New(rand.NewSource(uint64(seed))),
	}
}

// Sample draws a single candidate state uniformly from the workspace
// bounding box, applying the goal bias first.
func (s *Sampler) Sample() kinstate.Pose2D {
	if s.rng.Float64() < s.goalBias {
		return s.goal
	}
	return s.drawUniform()
}

// SampleAccept draws states until accept returns true or the attempt budget
// is exhausted, in which case it returns ErrExhausted.
func (s *Sampler) SampleAccept(accept func(kinstate.Pose2D) bool) (kinstate.Pose2D, error) {
	for i := 0; i < maxAttempts; i++ {
		cand := s.Sample()
		if accept(cand) {
			return cand, nil
		}
	}
	return kinstate.Pose2D{}, ErrExhausted{Attempts: maxAttempts}
}

func (s *Sampler) drawUniform() kinstate.Pose2D {
	ux := distuv.Uniform{Min: s.bounds.MinX, Max: s.bounds.MaxX, Src: s.rng}
	uy := distuv.Uniform{Min: s.bounds.MinY, Max: s.bounds.MaxY, Src: s.rng}
	uphi := distuv.Uniform{Min: -math.Pi, Max: math.Pi, Src: s.rng}
	return kinstate.NewPose2D(ux.Rand(), uy.Rand(), uphi.Rand())
}

// SampleTPSpace draws a candidate pose in trajectory-parameter space: with
// the goal bias applied first, it repeatedly picks a uniformly random tree
// node, a uniformly random PTG and alpha index, and a distance drawn from
// U(minStepLength, maxStepLength); sets that PTG's dynamic state to the
// source node's local velocity; and queries the resulting (k, distance)
// pose, composed onto the source node's pose. It retries, like SampleAccept,
// until accept returns true or the attempt budget is exhausted.
func (s *Sampler) SampleTPSpace(
	tree *motiontree.Tree,
	ptgs []tpspace.PTG,
	minStepLength, maxStepLength float64,
	accept func(kinstate.Pose2D) bool,
) (kinstate.Pose2D, error) {
	for i := 0; i < maxAttempts; i++ {
		if s.rng.Float64() < s.goalBias {
			if accept(s.goal) {
				return s.goal, nil
			}
			continue
		}

		n := tree.NumNodes()
		if n == 0 {
			continue
		}
		node, err := tree.Node(motiontree.NodeId(s.rng.Intn(n)))
		if err != nil {
			continue
		}

		ptg := ptgs[s.rng.Intn(len(ptgs))]
		k := s.rng.Intn(ptg.AlphaCount())
		udist := distuv.Uniform{Min: minStepLength, Max: maxStepLength, Src: s.rng}
		dist := udist.Rand()

		ptg.UpdateDynamicState(tpspace.DynamicState{CurVelLocal: node.State.Vel.Rotate(-node.State.Pose.Phi)})

		step, err := ptg.GetPathStepForDist(k, dist)
		if err != nil {
			continue
		}
		relPose, err := ptg.GetPathPose(k, step)
		if err != nil {
			continue
		}

		cand := kinstate.Compose(node.State.Pose, relPose)
		if accept(cand) {
			return cand, nil
		}
	}
	return kinstate.Pose2D{}, ErrExhausted{Attempts: maxAttempts}
}
