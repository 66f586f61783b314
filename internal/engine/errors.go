package engine

import (
	"errors"
	"fmt"

	"github.com/danieljhkim/modlay/internal/policy"
	"github.com/danieljhkim/modlay/internal/scheduler"
)

var (
	// ErrConfiguration classifies errors that are fatal to the configuration phase.
	ErrConfiguration = errors.New("configuration error")

	// ErrMissingCapability indicates a mandated module never attached a capability.
	ErrMissingCapability = errors.New("missing capability")

	// ErrValidation indicates the engine was constructed with invalid input.
	ErrValidation = errors.New("validation failed")
)

// MissingCapabilityError reports the first mandate violation of a flush.
// Violations holds every violation found at the same checkpoint.
type MissingCapabilityError struct {
	Module     string
	Item       string
	Violations []Violation
}

// Violation is one module/item pair of a MissingCapabilityError.
type Violation struct {
	Module string `json:"module"`
	Item   string `json:"item"`
}

func (e *MissingCapabilityError) Error() string {
	msg := fmt.Sprintf("%v: module %s has no capability required by %s", ErrMissingCapability, e.Module, e.Item)
	if n := len(e.Violations) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more)", n)
	}
	return msg
}

func (e *MissingCapabilityError) Unwrap() []error {
	return []error{ErrMissingCapability, ErrConfiguration}
}

// IsConfigError reports whether err is fatal to the configuration phase:
// ordering cycles, unknown modules in ordering, policy conflicts and mandate
// violations.
func IsConfigError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrConfiguration),
		errors.Is(err, scheduler.ErrCycle),
		errors.Is(err, scheduler.ErrUnknownModule),
		errors.Is(err, policy.ErrConflict),
		errors.Is(err, policy.ErrInvalidPolicy):
		return true
	}
	return false
}
