package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCycle indicates the ordering constraints form a cycle.
	ErrCycle = errors.New("ordering cycle")

	// ErrUnknownModule indicates a constraint names a module that is not scheduled.
	ErrUnknownModule = errors.New("unknown module")

	// ErrDuplicateModule indicates a module was scheduled twice.
	ErrDuplicateModule = errors.New("duplicate module")
)

// CycleError reports a cycle among ordering constraints. Cycle starts and
// ends with the same module.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v detected: %s", ErrCycle, strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCycle
}
