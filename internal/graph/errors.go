package graph

import "errors"

var (
	// ErrInvalidName indicates a module name that cannot be used.
	ErrInvalidName = errors.New("invalid module name")

	// ErrDuplicateModule indicates a module name was added twice.
	ErrDuplicateModule = errors.New("duplicate module")

	// ErrUnknownModule indicates a module name that is not part of the graph.
	ErrUnknownModule = errors.New("unknown module")

	// ErrAlreadyAttached indicates a second capability attachment to a module.
	ErrAlreadyAttached = errors.New("capability already attached")

	// ErrInvalidExtension indicates a malformed extension or capability kind.
	ErrInvalidExtension = errors.New("invalid extension")
)
