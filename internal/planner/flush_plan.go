package planner

import "github.com/danieljhkim/modlay/internal/graph"

// FlushPlan represents the work of one settle checkpoint.
type FlushPlan struct {
	// Checkpoint is the settle checkpoint the plan was built for
	Checkpoint int `json:"checkpoint"`

	// Modules is the ordered list of delivered modules considered
	Modules []string `json:"modules"`

	// Operations is the ordered list of items to apply
	Operations []Operation `json:"operations"`

	// Violations lists mandates that cannot be satisfied (empty if none)
	Violations []Violation `json:"violations"`
}

// Operation applies one policy item to one module.
type Operation struct {
	// Module is the target module name
	Module string `json:"module"`

	// Kind is the capability kind the module attached
	Kind graph.Kind `json:"kind"`

	// Item is the policy item: "attributes" or "output-dir"
	Item string `json:"item"`

	// Value is the rendered value that will be written and recorded
	Value string `json:"value"`
}

// Violation is a mandated policy item that targets a module without a
// delivered capability.
type Violation struct {
	// Module is the offending module
	Module string `json:"module"`

	// Item names the mandating policy item, e.g. "ordering app->plugin_z"
	Item string `json:"item"`

	// Reason is a human-readable explanation
	Reason string `json:"reason"`
}

// NewFlushPlan creates a new empty FlushPlan.
func NewFlushPlan(checkpoint int) *FlushPlan {
	return &FlushPlan{
		Checkpoint: checkpoint,
		Modules:    []string{},
		Operations: []Operation{},
		Violations: []Violation{},
	}
}

// HasViolations returns true if the plan has any mandate violations.
func (p *FlushPlan) HasViolations() bool {
	return len(p.Violations) > 0
}

// IsEmpty returns true if the plan neither applies nor reports anything.
func (p *FlushPlan) IsEmpty() bool {
	return len(p.Operations) == 0 && len(p.Violations) == 0
}

// AddOperation adds an operation to the plan.
func (p *FlushPlan) AddOperation(op Operation) {
	p.Operations = append(p.Operations, op)
}

// AddViolation adds a violation to the plan.
func (p *FlushPlan) AddViolation(v Violation) {
	p.Violations = append(p.Violations, v)
}
