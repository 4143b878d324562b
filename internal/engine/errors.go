package engine

import (
	"errors"
	"fmt"

	"github.com/plantasur/tablero/pkg/board"
)

// TransitionError reports a (role, state) combination that is not in the
// transition table. It is raised before any store call is made.
type TransitionError struct {
	Role board.Role
	From board.StateKey
	To   board.StateKey
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition not allowed: role %s cannot move %s -> %s", e.Role, e.From, e.To)
}

// IsTransitionNotAllowed returns true if the error is a table-level
// transition rejection.
func IsTransitionNotAllowed(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// ErrRoleNotAllowed is returned when a role other than operations attempts a
// restricted maintenance action (abort, history clearing).
var ErrRoleNotAllowed = errors.New("action restricted to the operations role")

// ErrNothingToAbort is returned when an abort is requested while the board
// is already at the initial state.
var ErrNothingToAbort = errors.New("cannot abort: board is already at the initial state")
