package controller

import (
	"fmt"

	werrors "github.com/vango-dev/weft/internal/errors"
)

// State is a controller's lifecycle state.
type State uint8

const (
	StateNone         State = iota // created, never activated
	StateActivating                // beforeBind running
	StateBinding                   // binding, mounting, activating children
	StateActivated                 // fully active
	StateDeactivating              // beforeDetach running, or activation unwinding
	StateUnbinding                 // unmounting, unbinding, deactivating children
	StateDeactivated               // inactive, may be activated again
	StateDisposed                  // torn down for good
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateActivating:
		return "activating"
	case StateBinding:
		return "binding"
	case StateActivated:
		return "activated"
	case StateDeactivating:
		return "deactivating"
	case StateUnbinding:
		return "unbinding"
	case StateDeactivated:
		return "deactivated"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// transitions lists every legal state change. Activating and Binding may
// go straight to Deactivating when an activation is canceled or fails.
var transitions = map[State][]State{
	StateNone:         {StateActivating, StateDisposed},
	StateActivating:   {StateBinding, StateDeactivating},
	StateBinding:      {StateActivated, StateDeactivating},
	StateActivated:    {StateDeactivating},
	StateDeactivating: {StateUnbinding},
	StateUnbinding:    {StateDeactivated},
	StateDeactivated:  {StateActivating, StateDisposed},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// active reports whether the controller is between the start of an
// activation and the end of a deactivation.
func (s State) active() bool {
	return s != StateNone && s != StateDeactivated && s != StateDisposed
}

func assertion(code string, c *Controller, state State) *werrors.WeftError {
	return werrors.New(code).WithDetailf("controller %s (%s) is %s", c.Name, c.ID, state)
}
