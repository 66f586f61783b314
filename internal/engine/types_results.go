package engine

import (
	"github.com/danieljhkim/modlay/internal/graph"
	"github.com/danieljhkim/modlay/internal/planner"
	"github.com/danieljhkim/modlay/internal/state"
)

// FlushResult represents the result of one settle checkpoint.
type FlushResult struct {
	// Checkpoint is the observer checkpoint number
	Checkpoint int `json:"checkpoint"`

	// Delivered is the number of listener callbacks run at this checkpoint
	Delivered int `json:"delivered"`

	// Plan is the generated plan
	Plan *planner.FlushPlan `json:"plan"`

	// Applied is the list of records written (empty for dry runs and violations)
	Applied []state.Record `json:"applied"`
}

// Report summarises a configuration run.
type Report struct {
	// Root is the root module name
	Root string `json:"root"`

	// Fingerprint identifies the policy that was applied
	Fingerprint string `json:"fingerprint"`

	// Sources lists the policy documents
	Sources []string `json:"sources"`

	// Checkpoints is the number of settle checkpoints that ran
	Checkpoints int `json:"checkpoints"`

	// Order is the module configuration order of the last Run (empty if none)
	Order []string `json:"order,omitempty"`

	// Modules holds one entry per module in graph order
	Modules []ModuleReport `json:"modules"`

	// Records is the full application ledger in application order
	Records []state.Record `json:"records"`
}

// ModuleReport describes one module after configuration.
type ModuleReport struct {
	// Name is the module name
	Name string `json:"name"`

	// Path is the colon-separated module path
	Path string `json:"path"`

	// Kind is the attached capability kind ("none" if nothing attached)
	Kind graph.Kind `json:"kind"`

	// Attached indicates whether any capability attached
	Attached bool `json:"attached"`

	// Attributes are the final extension attributes (nil if not attached)
	Attributes *graph.Attributes `json:"attributes,omitempty"`

	// State is the scheduler state of the last Run (empty if none)
	State string `json:"state,omitempty"`

	// Items lists the policy items recorded for this module
	Items []string `json:"items"`
}

// Overlaid reports whether any policy item was applied to the module.
func (m ModuleReport) Overlaid() bool {
	return len(m.Items) > 0
}
