package fsm

import (
	"telegramsupportbot/pkg/state"

	"github.com/looplab/fsm"
)

type fsmCreatorImpl struct {
	withConsent bool
}

func (fc *fsmCreatorImpl) NewSupportFSM() *fsm.FSM {
	return NewSupportFSM(state.StateIdle, fc.withConsent)
}

func NewFSMCreator(withConsent bool) state.FSMCreator {
	return &fsmCreatorImpl{withConsent: withConsent}
}
