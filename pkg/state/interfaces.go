package state

import "github.com/looplab/fsm"

type FSMCreator interface {
	NewSupportFSM() *fsm.FSM
}
