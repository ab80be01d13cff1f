package tpspace

import "github.com/selfdrive-go/tpsrrt/kinstate"

func stateAt(x, y, phi float64) kinstate.KinState {
	return kinstate.KinState{Pose: kinstate.NewPose2D(x, y, phi)}
}
