// Command planrrt runs the TPS-RRT* planner against a small synthetic
// empty-world scenario and reports whether it reached the goal, for manual
// smoke-testing of the planner core.
package main

import (
	"fmt"
	"os"

	"github.com/golang/geo/r3"

	"github.com/selfdrive-go/tpsrrt/kinstate"
	"github.com/selfdrive-go/tpsrrt/logging"
	"github.com/selfdrive-go/tpsrrt/obstacles"
	"github.com/selfdrive-go/tpsrrt/robotshape"
	"github.com/selfdrive-go/tpsrrt/rrtstar"
	"github.com/selfdrive-go/tpsrrt/tpspace"
)

func main() {
	log := logging.NewLogger("planrrt")

	holo, err := tpspace.NewHolonomicBlend(tpspace.HolonomicBlendConfig{
		NumPaths:      31,
		RefDistance:   2,
		TRampMax:      0.6,
		VMax:          1,
		WMaxDegPerSec: 90,
		Shape:         robotshape.NewCircular(0.2),
	})
	if err != nil {
		fail(err)
	}

	diff, err := tpspace.NewDiffDriveC(tpspace.DiffDriveCConfig{
		NumPaths: 31,
		VMax:     1,
		WMax:     1,
		K:        1,
		Rref:     0.1,
		Shape:    robotshape.NewCircular(0.2),
	})
	if err != nil {
		fail(err)
	}

	in := rrtstar.Input{
		StateStart:   kinstate.KinState{Pose: kinstate.NewPose2D(0, 0, 0)},
		StateGoal:    kinstate.KinState{Pose: kinstate.NewPose2D(5, 0, 0)},
		WorldBboxMin: kinstate.Pose2D{Point: r3.Vector{X: -10, Y: -10}, Phi: -3.141592653589793},
		WorldBboxMax: kinstate.Pose2D{Point: r3.Vector{X: 10, Y: 10}, Phi: 3.141592653589793},
		PTGs:         []tpspace.PTG{holo, diff},
		Obstacles:    obstacles.NewPointCloud(nil),
		Params: rrtstar.Params{
			MaxIterations:       500,
			InitialSearchRadius: 3,
			GoalBias:            0.1,
			DrawInTPS:           false,
			MinStepLength:       0.2,
			MaxStepLength:       2,
			Seed:                42,
			GoalTolerance:       0.3,
		},
	}

	out, err := rrtstar.Plan(in, log, nil)
	if err != nil {
		fail(err)
	}

	fmt.Printf("nodes=%d success=%v\n", out.Tree.NumNodes(), out.Success)
	if out.Success {
		fmt.Printf("path length (nodes)=%d\n", len(out.BestPath))
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "planrrt:", err)
	os.Exit(1)
}
