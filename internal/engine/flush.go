package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/danieljhkim/modlay/internal/graph"
	"github.com/danieljhkim/modlay/internal/metrics"
	"github.com/danieljhkim/modlay/internal/planner"
	"github.com/danieljhkim/modlay/internal/policy"
	"github.com/danieljhkim/modlay/internal/state"
)

// Flush runs one settle checkpoint: the observer delivers buffered
// attachments, the planner computes every (module, item) pair without a
// record, and the items are applied and recorded. If any mandate is violated
// nothing is applied and a *MissingCapabilityError is returned together with
// the result describing the plan.
func (e *Engine) Flush(ctx context.Context) (*FlushResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.Start()

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	result, targets := e.plan()
	plan := result.Plan
	defer func() {
		e.recorder.ObserveFlushDuration(time.Since(start))
		e.recorder.SetPendingDeliveries(e.observer.Pending())
	}()

	if plan.HasViolations() {
		e.recorder.IncFlushOutcome(metrics.FlushViolation)
		err := violationError(plan.Violations)
		e.logger.Error("overlay flush rejected", "checkpoint", plan.Checkpoint, "module", err.Module, "item", err.Item)
		return result, err
	}

	if len(plan.Operations) == 0 {
		e.recorder.IncFlushOutcome(metrics.FlushNoop)
		e.logger.Debug("overlay flush", "checkpoint", plan.Checkpoint, "delivered", result.Delivered, "applied", 0)
		return result, nil
	}

	for _, op := range plan.Operations {
		rec, err := e.executeOperation(targets[op.Module], op, plan.Checkpoint)
		if err != nil {
			return result, fmt.Errorf("failed to apply %s to module %s: %w", op.Item, op.Module, err)
		}
		result.Applied = append(result.Applied, rec)
		e.recorder.IncItemApplied(op.Item)
	}

	e.recorder.IncFlushOutcome(metrics.FlushApplied)
	e.logger.Info("overlay flush", "checkpoint", plan.Checkpoint, "delivered", result.Delivered, "applied", len(result.Applied))
	return result, nil
}

// Plan settles the observer and returns the plan the next Flush would
// execute, without applying it.
func (e *Engine) Plan(ctx context.Context) (*FlushResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.Start()

	e.mu.Lock()
	defer e.mu.Unlock()

	result, _ := e.plan()
	return result, nil
}

// plan must be called with e.mu held.
func (e *Engine) plan() (*FlushResult, map[string]target) {
	delivered := e.observer.Settle()
	checkpoint := e.observer.Checkpoints()

	all := e.snapshotTargets()
	byName := make(map[string]target, len(all))
	targets := make([]planner.Target, 0, len(all))
	for _, t := range all {
		byName[t.module.Name()] = t
		targets = append(targets, planner.Target{
			Module: t.module.Name(),
			Kind:   t.ext.Kind(),
			Root:   t.module.IsRoot(),
		})
	}

	return &FlushResult{
		Checkpoint: checkpoint,
		Delivered:  delivered,
		Plan:       planner.BuildFlushPlan(checkpoint, targets, e.policy, e.ledger),
		Applied:    []state.Record{},
	}, byName
}

// executeOperation writes one item onto the target's extension and records it.
func (e *Engine) executeOperation(t target, op planner.Operation, checkpoint int) (state.Record, error) {
	if t.ext == nil {
		return state.Record{}, fmt.Errorf("module %s has no delivered capability", op.Module)
	}

	switch op.Item {
	case policy.ItemAttributes:
		e.policy.OverlayAttributes(t.ext)
	case policy.ItemOutputDir:
		t.ext.Update(func(a *graph.Attributes) {
			a.OutputDir = op.Value
		})
	default:
		return state.Record{}, fmt.Errorf("unknown policy item: %s", op.Item)
	}

	rec, _ := e.ledger.Mark(op.Module, op.Item, op.Value, checkpoint)
	e.logger.Debug("item applied", "module", op.Module, "item", op.Item, "value", op.Value)
	return rec, nil
}

func violationError(vs []planner.Violation) *MissingCapabilityError {
	err := &MissingCapabilityError{
		Module: vs[0].Module,
		Item:   vs[0].Item,
	}
	for _, v := range vs {
		err.Violations = append(err.Violations, Violation{Module: v.Module, Item: v.Item})
	}
	return err
}
