package planner

import (
	"fmt"

	"github.com/danieljhkim/modlay/internal/policy"
)

// MandateChecker checks mandatory ordering edges against delivered modules.
type MandateChecker struct {
	edges []policy.Edge
}

// NewMandateChecker creates a new MandateChecker over the mandatory subset of edges.
func NewMandateChecker(edges []policy.Edge) *MandateChecker {
	c := &MandateChecker{}
	for _, e := range edges {
		if e.Mandatory {
			c.edges = append(c.edges, e)
		}
	}
	return c
}

// Check returns one Violation per endpoint of a mandatory edge that has no
// delivered capability. Each (module, edge) pair is reported once.
func (c *MandateChecker) Check(delivered map[string]bool) []Violation {
	var out []Violation
	for _, e := range c.edges {
		item := "ordering " + e.String()
		for _, m := range []string{e.Before, e.After} {
			if delivered[m] {
				continue
			}
			out = append(out, Violation{
				Module: m,
				Item:   item,
				Reason: fmt.Sprintf("module %s has no capability but is mandated by %s", m, item),
			})
		}
	}
	return out
}

// Mandated reports whether module appears in any mandatory edge.
func (c *MandateChecker) Mandated(module string) bool {
	for _, e := range c.edges {
		if e.Before == module || e.After == module {
			return true
		}
	}
	return false
}
