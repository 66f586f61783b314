// Package policy holds the override policy applied to every module of a build.
//
// A Set is immutable once built. It carries:
//   - version pins: library coordinate -> forced version, consulted for every
//     direct and transitive dependency
//   - the attribute overlay: compile/target/minimum platform versions forced
//     onto every capability extension
//   - output relocation: a shared base directory with one subdirectory per module
//   - ordering constraints between module configuration phases
//
// Sets are built from one or more Documents (YAML or HCL). Later documents may
// repeat earlier values but never contradict them; a contradiction is a
// ConflictError at load time.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/danieljhkim/modlay/internal/graph"
)

// Per-module policy items tracked by the overlay engine.
const (
	ItemAttributes = "attributes"
	ItemOutputDir  = "output-dir"
)

// Wildcard matches every non-root module in an ordering edge.
const Wildcard = "*"

// Coordinate identifies a library by group and name.
type Coordinate struct {
	Group string `json:"group"`
	Name  string `json:"name"`
}

func (c Coordinate) String() string {
	return c.Group + ":" + c.Name
}

// ParseCoordinate parses "group:name" or "group:name:version".
func ParseCoordinate(s string) (Coordinate, string, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Coordinate{}, "", fmt.Errorf("%w: coordinate %q must be group:name[:version]", ErrInvalidPolicy, s)
	}
	for _, p := range parts {
		if p == "" {
			return Coordinate{}, "", fmt.Errorf("%w: coordinate %q has an empty segment", ErrInvalidPolicy, s)
		}
	}
	c := Coordinate{Group: parts[0], Name: parts[1]}
	if len(parts) == 3 {
		return c, parts[2], nil
	}
	return c, "", nil
}

// Overlay is the set of attributes forced onto every extension. Zero fields
// are not part of the overlay.
type Overlay struct {
	CompileSDK int `json:"compileSdk,omitempty"`
	TargetSDK  int `json:"targetSdk,omitempty"`
	MinSDK     int `json:"minSdk,omitempty"`
}

// IsZero reports whether the overlay forces nothing.
func (o Overlay) IsZero() bool {
	return o == Overlay{}
}

func (o Overlay) String() string {
	var parts []string
	if o.CompileSDK != 0 {
		parts = append(parts, fmt.Sprintf("compileSdk=%d", o.CompileSDK))
	}
	if o.TargetSDK != 0 {
		parts = append(parts, fmt.Sprintf("targetSdk=%d", o.TargetSDK))
	}
	if o.MinSDK != 0 {
		parts = append(parts, fmt.Sprintf("minSdk=%d", o.MinSDK))
	}
	return strings.Join(parts, ",")
}

// Relocation moves every module's output under a shared base directory.
type Relocation struct {
	Base string `json:"base,omitempty"`
}

// Edge states that Before's configuration completes before After's begins.
// A mandatory edge additionally requires both modules to attach a capability.
type Edge struct {
	Before    string `json:"before"`
	After     string `json:"after"`
	Mandatory bool   `json:"mandatory,omitempty"`
}

func (e Edge) String() string {
	return e.Before + "->" + e.After
}

// Pin is a single version pin.
type Pin struct {
	Coordinate Coordinate `json:"coordinate"`
	Version    string     `json:"version"`
}

// Set is an immutable, validated override policy.
type Set struct {
	pins        map[Coordinate]string
	overlay     Overlay
	relocation  Relocation
	ordering    []Edge
	sources     []string
	fingerprint string
}

// Build merges documents in order into a Set.
func Build(docs ...Document) (*Set, error) {
	b := newBuilder()
	for i, doc := range docs {
		source := doc.Source
		if source == "" {
			source = fmt.Sprintf("document %d", i+1)
		}
		if err := b.add(source, doc); err != nil {
			return nil, err
		}
	}
	return b.build()
}

// Pin returns the pinned version of c.
func (s *Set) Pin(c Coordinate) (string, bool) {
	v, ok := s.pins[c]
	return v, ok
}

// Pins returns all pins sorted by coordinate.
func (s *Set) Pins() []Pin {
	out := make([]Pin, 0, len(s.pins))
	for c, v := range s.pins {
		out = append(out, Pin{Coordinate: c, Version: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Coordinate.String() < out[j].Coordinate.String()
	})
	return out
}

// ResolveVersion returns the pinned version of c, or requested when c is not
// pinned. The pin wins regardless of the requested version.
func (s *Set) ResolveVersion(c Coordinate, requested string) string {
	if v, ok := s.pins[c]; ok {
		return v
	}
	return requested
}

// Overlay returns the attribute overlay.
func (s *Set) Overlay() Overlay {
	return s.overlay
}

// OverlayAttributes forces the overlay onto ext and returns the resulting
// attributes. Set fields always overwrite the capability's values.
func (s *Set) OverlayAttributes(ext *graph.Extension) graph.Attributes {
	var out graph.Attributes
	ext.Update(func(a *graph.Attributes) {
		if s.overlay.CompileSDK != 0 {
			a.CompileSDK = s.overlay.CompileSDK
		}
		if s.overlay.TargetSDK != 0 {
			a.TargetSDK = s.overlay.TargetSDK
		}
		if s.overlay.MinSDK != 0 {
			a.MinSDK = s.overlay.MinSDK
		}
		out = *a
	})
	return out
}

// Relocation returns the output relocation rule.
func (s *Set) Relocation() Relocation {
	return s.relocation
}

// RelocatedOutputPath returns the output directory of a module, or "" when
// no relocation is configured.
func (s *Set) RelocatedOutputPath(module string) string {
	if s.relocation.Base == "" {
		return ""
	}
	return filepath.Join(s.relocation.Base, module)
}

// Ordering returns the ordering constraints.
func (s *Set) Ordering() []Edge {
	return append([]Edge(nil), s.ordering...)
}

// Items returns the per-module items this policy applies.
func (s *Set) Items() []string {
	var items []string
	if !s.overlay.IsZero() {
		items = append(items, ItemAttributes)
	}
	if s.relocation.Base != "" {
		items = append(items, ItemOutputDir)
	}
	return items
}

// Sources lists the documents the set was built from.
func (s *Set) Sources() []string {
	return append([]string(nil), s.sources...)
}

// Fingerprint is a SHA-256 of the canonical policy content.
func (s *Set) Fingerprint() string {
	return s.fingerprint
}

type builder struct {
	pins       map[Coordinate]string
	pinSource  map[Coordinate]string
	overlay    Overlay
	attrSource map[string]string
	base       string
	baseSource string
	ordering   []Edge
	edgeIndex  map[[2]string]int
	sources    []string
}

func newBuilder() *builder {
	return &builder{
		pins:       make(map[Coordinate]string),
		pinSource:  make(map[Coordinate]string),
		attrSource: make(map[string]string),
		edgeIndex:  make(map[[2]string]int),
	}
}

func (b *builder) add(source string, doc Document) error {
	b.sources = append(b.sources, source)

	keys := make([]string, 0, len(doc.Pins))
	for k := range doc.Pins {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, raw := range keys {
		if err := b.addPin(source, raw, doc.Pins[raw]); err != nil {
			return err
		}
	}

	if a := doc.Attributes; a != nil {
		if err := b.mergeInt(source, "compileSdk", &b.overlay.CompileSDK, a.Compile); err != nil {
			return err
		}
		if err := b.mergeInt(source, "targetSdk", &b.overlay.TargetSDK, a.Target); err != nil {
			return err
		}
		if err := b.mergeInt(source, "minSdk", &b.overlay.MinSDK, a.Minimum); err != nil {
			return err
		}
	}

	if doc.Output != nil && doc.Output.Base != "" {
		base := filepath.Clean(doc.Output.Base)
		if b.base != "" && b.base != base {
			return &ConflictError{
				Attribute: "output.base",
				Existing:  b.base,
				Incoming:  base,
				Sources:   [2]string{b.baseSource, source},
			}
		}
		b.base = base
		b.baseSource = source
	}

	for _, e := range doc.Ordering {
		if err := b.addEdge(source, e); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) addPin(source, raw, version string) error {
	c, inline, err := ParseCoordinate(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}
	if inline != "" {
		return fmt.Errorf("%w: %s: pin key %q must not carry a version", ErrInvalidPolicy, source, raw)
	}
	version = strings.TrimSpace(version)
	if _, err := semver.NewVersion(version); err != nil {
		return fmt.Errorf("%w: %s: pin %s has invalid version %q: %v", ErrInvalidPolicy, source, c, version, err)
	}
	if existing, ok := b.pins[c]; ok && existing != version {
		return &ConflictError{
			Attribute: "pin " + c.String(),
			Existing:  existing,
			Incoming:  version,
			Sources:   [2]string{b.pinSource[c], source},
		}
	}
	b.pins[c] = version
	b.pinSource[c] = source
	return nil
}

func (b *builder) mergeInt(source, attr string, dst *int, incoming *int) error {
	if incoming == nil {
		return nil
	}
	if *incoming <= 0 {
		return fmt.Errorf("%w: %s: %s must be positive, got %d", ErrInvalidPolicy, source, attr, *incoming)
	}
	if *dst != 0 && *dst != *incoming {
		return &ConflictError{
			Attribute: attr,
			Existing:  fmt.Sprint(*dst),
			Incoming:  fmt.Sprint(*incoming),
			Sources:   [2]string{b.attrSource[attr], source},
		}
	}
	*dst = *incoming
	b.attrSource[attr] = source
	return nil
}

func (b *builder) addEdge(source string, doc EdgeDoc) error {
	before := strings.TrimSpace(doc.Before)
	after := strings.TrimSpace(doc.After)
	if before == "" || after == "" {
		return fmt.Errorf("%w: %s: ordering entries need both before and after", ErrInvalidPolicy, source)
	}
	if before == Wildcard {
		return fmt.Errorf("%w: %s: wildcard is only allowed in after", ErrInvalidPolicy, source)
	}
	if before == after {
		return fmt.Errorf("%w: %s: module %s cannot be ordered before itself", ErrInvalidPolicy, source, before)
	}
	if after == Wildcard && doc.Mandatory {
		return fmt.Errorf("%w: %s: wildcard edge %s->* cannot be mandatory", ErrInvalidPolicy, source, before)
	}

	key := [2]string{before, after}
	if i, ok := b.edgeIndex[key]; ok {
		b.ordering[i].Mandatory = b.ordering[i].Mandatory || doc.Mandatory
		return nil
	}
	b.edgeIndex[key] = len(b.ordering)
	b.ordering = append(b.ordering, Edge{Before: before, After: after, Mandatory: doc.Mandatory})
	return nil
}

func (b *builder) build() (*Set, error) {
	o := b.overlay
	if o.MinSDK != 0 && o.TargetSDK != 0 && o.MinSDK > o.TargetSDK {
		return nil, fmt.Errorf("%w: minSdk %d is above targetSdk %d", ErrInvalidPolicy, o.MinSDK, o.TargetSDK)
	}
	if o.TargetSDK != 0 && o.CompileSDK != 0 && o.TargetSDK > o.CompileSDK {
		return nil, fmt.Errorf("%w: targetSdk %d is above compileSdk %d", ErrInvalidPolicy, o.TargetSDK, o.CompileSDK)
	}

	s := &Set{
		pins:       b.pins,
		overlay:    o,
		relocation: Relocation{Base: b.base},
		ordering:   b.ordering,
		sources:    b.sources,
	}
	fp, err := fingerprint(s)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint policy: %w", err)
	}
	s.fingerprint = fp
	return s, nil
}

func fingerprint(s *Set) (string, error) {
	canonical := struct {
		Pins       []Pin      `json:"pins"`
		Overlay    Overlay    `json:"overlay"`
		Relocation Relocation `json:"relocation"`
		Ordering   []Edge     `json:"ordering"`
	}{
		Pins:       s.Pins(),
		Overlay:    s.overlay,
		Relocation: s.relocation,
		Ordering:   s.ordering,
	}
	data, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
