package graph

import (
	"fmt"
	"strings"
	"sync"
)

// Kind is the type of build capability attached to a module.
type Kind int

const (
	KindNone Kind = iota
	KindApplication
	KindLibrary
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindApplication:
		return "application"
	case KindLibrary:
		return "library"
	default:
		return "none"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name or plugin id.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind parses a capability kind. Plugin ids are accepted as aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return KindNone, nil
	case "application", "app", "com.android.application":
		return KindApplication, nil
	case "library", "lib", "com.android.library":
		return KindLibrary, nil
	default:
		return KindNone, fmt.Errorf("%w: unknown capability kind %q", ErrInvalidExtension, s)
	}
}

// Attributes are the build attributes carried by a capability extension.
// A zero value means the attribute is unset.
type Attributes struct {
	CompileSDK int    `json:"compileSdk,omitempty"`
	TargetSDK  int    `json:"targetSdk,omitempty"`
	MinSDK     int    `json:"minSdk,omitempty"`
	OutputDir  string `json:"outputDir,omitempty"`
}

// Extension is the configuration surface a capability exposes once attached.
type Extension struct {
	kind Kind

	mu    sync.Mutex
	attrs Attributes
}

// NewExtension creates an extension of the given kind with its capability
// defaults.
func NewExtension(kind Kind, defaults Attributes) *Extension {
	return &Extension{kind: kind, attrs: defaults}
}

// Kind returns the capability kind.
func (e *Extension) Kind() Kind {
	return e.kind
}

// Attributes returns a copy of the current attributes.
func (e *Extension) Attributes() Attributes {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attrs
}

// Update mutates the attributes while holding the extension lock.
func (e *Extension) Update(fn func(a *Attributes)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.attrs)
}
