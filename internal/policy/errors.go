package policy

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict indicates two policy sources disagree on a value.
	ErrConflict = errors.New("policy conflict")

	// ErrInvalidPolicy indicates a malformed or inconsistent policy source.
	ErrInvalidPolicy = errors.New("invalid policy")
)

// ConflictError reports two sources assigning different values to the same
// attribute. Module is empty when the attribute applies to every module.
type ConflictError struct {
	Module    string
	Attribute string
	Existing  string
	Incoming  string
	Sources   [2]string
}

func (e *ConflictError) Error() string {
	target := "all modules"
	if e.Module != "" {
		target = "module " + e.Module
	}
	return fmt.Sprintf("%v: %s for %s: %s (%s) vs %s (%s)",
		ErrConflict, e.Attribute, target, e.Existing, e.Sources[0], e.Incoming, e.Sources[1])
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
