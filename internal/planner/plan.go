package planner

import (
	"github.com/danieljhkim/modlay/internal/graph"
	"github.com/danieljhkim/modlay/internal/policy"
)

// Target is a module whose capability was delivered to the engine.
type Target struct {
	Module string
	Kind   graph.Kind
	Root   bool
}

// Ledger is the read side of the application record.
type Ledger interface {
	Applied(module, item string) bool
}

// BuildFlushPlan generates a deterministic plan for one settle checkpoint.
// Targets are planned in the order given, items in policy order.
func BuildFlushPlan(checkpoint int, targets []Target, set *policy.Set, ledger Ledger) *FlushPlan {
	plan := NewFlushPlan(checkpoint)
	checker := NewMandateChecker(set.Ordering())

	delivered := make(map[string]bool, len(targets))
	for _, t := range targets {
		delivered[t.Module] = true
		plan.Modules = append(plan.Modules, t.Module)
	}

	for _, v := range checker.Check(delivered) {
		plan.AddViolation(v)
	}

	items := set.Items()
	for _, t := range targets {
		for _, item := range items {
			if ledger.Applied(t.Module, item) {
				continue
			}
			plan.AddOperation(Operation{
				Module: t.Module,
				Kind:   t.Kind,
				Item:   item,
				Value:  RenderValue(set, t, item),
			})
		}
	}

	return plan
}

// RenderValue returns the value item writes on target.
func RenderValue(set *policy.Set, t Target, item string) string {
	switch item {
	case policy.ItemAttributes:
		return set.Overlay().String()
	case policy.ItemOutputDir:
		if t.Root {
			return set.RelocatedOutputPath("")
		}
		return set.RelocatedOutputPath(t.Module)
	}
	return ""
}
