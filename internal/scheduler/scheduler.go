// Package scheduler orders module configuration.
//
// A Scheduler is built from the modules of a build and ordering edges between
// them. Construction rejects unknown endpoints and cycles, so a Scheduler that
// exists can always run to completion. Run starts a module only after every
// predecessor has settled; independent modules may configure concurrently.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Edge orders Before's configuration ahead of After's.
type Edge struct {
	Before string
	After  string
}

// State is the scheduling state of one module.
type State int

const (
	StatePending State = iota
	StateWaiting
	StateConfiguring
	StateSettled
	StateFailed
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateWaiting:
		return "waiting"
	case StateConfiguring:
		return "configuring"
	case StateSettled:
		return "settled"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ConfigureFunc configures a single module.
type ConfigureFunc func(ctx context.Context, module string) error

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithConcurrency caps the number of modules configured at once. Values below
// one mean sequential configuration.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n < 1 {
			n = 1
		}
		s.limit = n
	}
}

// Scheduler runs module configuration in dependency order.
type Scheduler struct {
	modules    []string
	index      map[string]int
	preds      map[string][]string
	dependents map[string][]string
	order      []string
	limit      int

	mu     sync.Mutex
	states map[string]State
}

// New validates the edges and computes a stable topological order.
func New(modules []string, edges []Edge, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		index:      make(map[string]int, len(modules)),
		preds:      make(map[string][]string),
		dependents: make(map[string][]string),
		states:     make(map[string]State, len(modules)),
		limit:      1,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, m := range modules {
		if _, ok := s.index[m]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateModule, m)
		}
		s.index[m] = len(s.modules)
		s.modules = append(s.modules, m)
		s.states[m] = StatePending
	}

	seen := make(map[Edge]bool, len(edges))
	for _, e := range edges {
		if _, ok := s.index[e.Before]; !ok {
			return nil, fmt.Errorf("%w: %s (in %s->%s)", ErrUnknownModule, e.Before, e.Before, e.After)
		}
		if _, ok := s.index[e.After]; !ok {
			return nil, fmt.Errorf("%w: %s (in %s->%s)", ErrUnknownModule, e.After, e.Before, e.After)
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		s.preds[e.After] = append(s.preds[e.After], e.Before)
		s.dependents[e.Before] = append(s.dependents[e.Before], e.After)
	}

	if cycle := s.findCycle(); cycle != nil {
		return nil, &CycleError{Cycle: cycle}
	}
	s.order = s.topoOrder()
	return s, nil
}

// findCycle runs a depth-first search with temporary and permanent marks and
// returns the first cycle found, or nil.
func (s *Scheduler) findCycle() []string {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)
	var stack []string
	var cycle []string

	var visit func(m string) bool
	visit = func(m string) bool {
		if permanent[m] {
			return false
		}
		if temporary[m] {
			start := 0
			for i, n := range stack {
				if n == m {
					start = i
					break
				}
			}
			cycle = append(append([]string{}, stack[start:]...), m)
			return true
		}

		temporary[m] = true
		stack = append(stack, m)
		for _, d := range s.dependents[m] {
			if visit(d) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		delete(temporary, m)
		permanent[m] = true
		return false
	}

	for _, m := range s.modules {
		if visit(m) {
			return cycle
		}
	}
	return nil
}

// topoOrder is Kahn's algorithm, always picking the ready module that was
// declared first.
func (s *Scheduler) topoOrder() []string {
	remaining := make(map[string]int, len(s.modules))
	for _, m := range s.modules {
		remaining[m] = len(s.preds[m])
	}

	order := make([]string, 0, len(s.modules))
	done := make(map[string]bool, len(s.modules))
	for len(order) < len(s.modules) {
		for _, m := range s.modules {
			if done[m] || remaining[m] > 0 {
				continue
			}
			done[m] = true
			order = append(order, m)
			for _, d := range s.dependents[m] {
				remaining[d]--
			}
			break
		}
	}
	return order
}

// Order returns the modules in the order Run launches them.
func (s *Scheduler) Order() []string {
	return append([]string(nil), s.order...)
}

// Predecessors returns the modules that must settle before module starts.
func (s *Scheduler) Predecessors(module string) []string {
	return append([]string(nil), s.preds[module]...)
}

// State returns the current state of module.
func (s *Scheduler) State(module string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[module]
}

// States returns a snapshot of every module's state.
func (s *Scheduler) States() map[string]State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]State, len(s.states))
	for k, v := range s.states {
		out[k] = v
	}
	return out
}

func (s *Scheduler) setState(module string, st State) {
	s.mu.Lock()
	s.states[module] = st
	s.mu.Unlock()
}

// Run configures every module with fn. A module starts only after all of its
// predecessors settled. The first failure cancels the run; modules that have
// not started are marked skipped.
func (s *Scheduler) Run(ctx context.Context, fn ConfigureFunc) error {
	settled := make(map[string]chan struct{}, len(s.modules))
	for _, m := range s.modules {
		settled[m] = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)

	// Launching in topological order keeps every goroutine holding a slot
	// waiting only on modules launched before it.
	for _, m := range s.order {
		g.Go(func() error {
			s.setState(m, StateWaiting)
			for _, p := range s.preds[m] {
				select {
				case <-settled[p]:
				case <-gctx.Done():
					s.setState(m, StateSkipped)
					return gctx.Err()
				}
			}
			if err := gctx.Err(); err != nil {
				s.setState(m, StateSkipped)
				return err
			}

			s.setState(m, StateConfiguring)
			if err := fn(gctx, m); err != nil {
				s.setState(m, StateFailed)
				return fmt.Errorf("failed to configure module %s: %w", m, err)
			}
			s.setState(m, StateSettled)
			close(settled[m])
			return nil
		})
	}

	return g.Wait()
}
