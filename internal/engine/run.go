package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/danieljhkim/modlay/internal/graph"
	"github.com/danieljhkim/modlay/internal/policy"
	"github.com/danieljhkim/modlay/internal/scheduler"
)

// Configurer runs a module's own configuration. Capabilities attach to the
// graph from inside Configure.
type Configurer interface {
	Configure(ctx context.Context, m *graph.Module) error
}

// ConfigurerFunc adapts a function to Configurer.
type ConfigurerFunc func(ctx context.Context, m *graph.Module) error

func (f ConfigurerFunc) Configure(ctx context.Context, m *graph.Module) error {
	return f(ctx, m)
}

// Run executes the full protocol: listeners are registered, ordering is
// validated, every module is configured by host in dependency order, and a
// settle checkpoint flushes the policy. The report is returned even when the
// run fails after scheduling.
func (e *Engine) Run(ctx context.Context, host Configurer) (*Report, error) {
	if err := e.Configure(ctx, host); err != nil {
		if e.scheduler() == nil {
			return nil, err
		}
		return e.Report(), err
	}

	if _, err := e.Flush(ctx); err != nil {
		return e.Report(), err
	}
	return e.Report(), nil
}

// Configure registers listeners, validates ordering and configures every
// module with host in dependency order. It does not flush.
func (e *Engine) Configure(ctx context.Context, host Configurer) error {
	e.Start()

	sched, err := e.Schedule()
	if err != nil {
		return err
	}

	e.logger.Info("configuring modules", "modules", len(sched.Order()), "concurrency", e.concurrency)
	err = sched.Run(ctx, func(ctx context.Context, name string) error {
		m, ok := e.graph.Module(name)
		if !ok {
			return fmt.Errorf("%w: %s", graph.ErrUnknownModule, name)
		}
		start := time.Now()
		err := host.Configure(ctx, m)
		e.recorder.ObserveModuleDuration(name, time.Since(start), err == nil)
		if err == nil {
			e.logger.Debug("module configured", "module", name, "duration", time.Since(start))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to configure modules: %w", err)
	}
	return nil
}

// Schedule builds the scheduler for the current graph and policy ordering.
// Cycles and unknown modules are configuration errors.
func (e *Engine) Schedule() (*scheduler.Scheduler, error) {
	edges := OrderingEdges(e.graph, e.policy.Ordering())
	sched, err := scheduler.New(e.graph.Names(), edges, scheduler.WithConcurrency(e.concurrency))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	e.smu.Lock()
	e.sched = sched
	e.smu.Unlock()
	return sched, nil
}

func (e *Engine) scheduler() *scheduler.Scheduler {
	e.smu.Lock()
	defer e.smu.Unlock()
	return e.sched
}

// OrderingEdges expands policy ordering into scheduler edges.
//
// Every module is ordered after its parent. A wildcard edge "before -> *"
// orders before ahead of every non-root module that cannot already reach it
// through parent edges, explicit edges or earlier wildcard expansions, so the
// expansion never closes a cycle. Endpoints are not checked here; the
// scheduler rejects unknown modules.
func OrderingEdges(g *graph.Graph, ordering []policy.Edge) []scheduler.Edge {
	var edges []scheduler.Edge
	for m := range g.Modules() {
		if p := m.Parent(); p != nil {
			edges = append(edges, scheduler.Edge{Before: p.Name(), After: m.Name()})
		}
	}
	for _, oe := range ordering {
		if oe.After != policy.Wildcard {
			edges = append(edges, scheduler.Edge{Before: oe.Before, After: oe.After})
		}
	}

	for _, oe := range ordering {
		if oe.After != policy.Wildcard {
			continue
		}
		upstream := upstreamOf(oe.Before, edges)
		for m := range g.Modules() {
			if m.IsRoot() || upstream[m.Name()] {
				continue
			}
			edges = append(edges, scheduler.Edge{Before: oe.Before, After: m.Name()})
		}
	}
	return edges
}

// upstreamOf returns module and every module from which it is reachable.
func upstreamOf(module string, edges []scheduler.Edge) map[string]bool {
	preds := make(map[string][]string)
	for _, e := range edges {
		preds[e.After] = append(preds[e.After], e.Before)
	}
	seen := map[string]bool{module: true}
	stack := []string{module}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range preds[cur] {
			if !seen[p] {
				seen[p] = true
				stack = append(stack, p)
			}
		}
	}
	return seen
}
