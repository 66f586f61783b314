// Package planner handles the planning phase of an overlay flush.
//
// The planner is pure: given the modules delivered at a settle checkpoint, the
// policy and the ledger of items already applied, it produces a deterministic
// FlushPlan. It never touches an extension or the ledger.
//
// Key responsibilities:
//   - Generate FlushPlan with one Operation per (module, item) not yet recorded
//   - Detect mandate violations (mandatory ordering edges naming a module
//     without a delivered capability)
//   - Render the value each operation will write
package planner
