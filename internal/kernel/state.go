// Package kernel holds the startup orchestration, the one-shot state
// manager, and the panic handler, the way original_source's
// kernel/src/main.rs and kernel/src/state.rs split those three concerns.
package kernel

import "fmt"

// State is the kernel's coarse lifecycle stage.
type State int

const (
	// Init is the state from entry until the fixed startup sequence
	// completes.
	Init State = iota
	// SingleCoreMain is entered exactly once, after local IRQs are
	// unmasked; later code may assert it has been reached.
	SingleCoreMain
)

func (s State) String() string {
	switch s {
	case Init:
		return "Init"
	case SingleCoreMain:
		return "SingleCoreMain"
	default:
		return "Unknown"
	}
}

// StateManager tracks the one-shot Init -> SingleCoreMain transition.
type StateManager struct {
	state State
}

// NewStateManager returns a StateManager in the Init state.
func NewStateManager() *StateManager {
	return &StateManager{state: Init}
}

// State reports the current lifecycle stage.
func (m *StateManager) State() State { return m.state }

// TransitionToSingleCoreMain performs the one-shot Init -> SingleCoreMain
// transition. Calling it a second time is an error: nothing in this
// kernel's startup order calls it more than once, so a second call means
// startup orchestration was driven out of order.
func (m *StateManager) TransitionToSingleCoreMain() error {
	if m.state != Init {
		return fmt.Errorf("kernel: invalid state transition from %s", m.state)
	}
	m.state = SingleCoreMain
	return nil
}
