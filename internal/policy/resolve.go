package policy

import (
	"github.com/Masterminds/semver/v3"
)

// Dependency is a requested library with its own transitive dependencies.
type Dependency struct {
	Coordinate   Coordinate
	Version      string
	Dependencies []Dependency
}

// Change describes how resolution altered a requested version.
type Change string

const (
	ChangeUnchanged Change = "unchanged"
	ChangePinned    Change = "pinned"
	ChangeUpgrade   Change = "pinned-up"
	ChangeDowngrade Change = "pinned-down"
)

// Resolution is the outcome of resolving one dependency edge.
type Resolution struct {
	Coordinate Coordinate `json:"coordinate"`
	Requested  string     `json:"requested,omitempty"`
	Resolved   string     `json:"resolved"`
	Pinned     bool       `json:"pinned"`
	Change     Change     `json:"change"`
	Depth      int        `json:"depth"`
}

// Resolve walks deps depth-first, direct edges at depth 0, and resolves every
// edge through ResolveVersion.
func (s *Set) Resolve(deps []Dependency) []Resolution {
	var out []Resolution
	var walk func(ds []Dependency, depth int)
	walk = func(ds []Dependency, depth int) {
		for _, d := range ds {
			out = append(out, s.resolveOne(d, depth))
			walk(d.Dependencies, depth+1)
		}
	}
	walk(deps, 0)
	return out
}

func (s *Set) resolveOne(d Dependency, depth int) Resolution {
	r := Resolution{
		Coordinate: d.Coordinate,
		Requested:  d.Version,
		Resolved:   s.ResolveVersion(d.Coordinate, d.Version),
		Depth:      depth,
		Change:     ChangeUnchanged,
	}
	_, r.Pinned = s.pins[d.Coordinate]
	if !r.Pinned || r.Resolved == r.Requested {
		return r
	}

	r.Change = ChangePinned
	requested, err := semver.NewVersion(r.Requested)
	if err != nil {
		return r
	}
	resolved, err := semver.NewVersion(r.Resolved)
	if err != nil {
		return r
	}
	switch resolved.Compare(requested) {
	case 1:
		r.Change = ChangeUpgrade
	case -1:
		r.Change = ChangeDowngrade
	default:
		// "1.12" and "1.12.0" compare equal.
		r.Change = ChangeUnchanged
	}
	return r
}
