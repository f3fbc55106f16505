package blockchain

import (
	"github.com/looplab/fsm"
)

// The chain state machine has two states. Empty means the store holds no
// blocks and the only permitted operation is Initialize; Active means a
// genesis block exists and blocks can be accepted. A node restarted over a
// populated store comes up Active directly.
const (
	FSMStateEmpty  = "Empty"
	FSMStateActive = "Active"

	FSMEventInitialize = "Initialize"
)

func newFiniteStateMachine(initial string) *fsm.FSM {
	return fsm.NewFSM(
		initial,
		fsm.Events{
			{
				Name: FSMEventInitialize,
				Src:  []string{FSMStateEmpty},
				Dst:  FSMStateActive,
			},
		},
		fsm.Callbacks{},
	)
}
