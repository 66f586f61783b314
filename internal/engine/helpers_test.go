package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/danieljhkim/modlay/internal/graph"
	"github.com/danieljhkim/modlay/internal/observer"
	"github.com/danieljhkim/modlay/internal/policy"
)

func intp(v int) *int { return &v }

func overlayPolicy(t *testing.T, extra ...policy.Document) *policy.Set {
	t.Helper()
	docs := append([]policy.Document{{
		Source:     "test",
		Attributes: &policy.AttributeDoc{Compile: intp(36), Target: intp(36), Minimum: intp(21)},
	}}, extra...)
	s, err := policy.Build(docs...)
	if err != nil {
		t.Fatalf("policy.Build() error = %v", err)
	}
	return s
}

// newGraph builds root "android" with the given top-level modules.
func newGraph(t *testing.T, modules ...string) *graph.Graph {
	t.Helper()
	g := graph.New("android")
	for _, m := range modules {
		if _, err := g.AddModule(m, ""); err != nil {
			t.Fatalf("AddModule(%s) error = %v", m, err)
		}
	}
	return g
}

func newEngine(t *testing.T, g *graph.Graph, set *policy.Set, mode observer.Mode) *Engine {
	t.Helper()
	e, err := New(Config{
		Graph:    g,
		Policy:   set,
		Observer: observer.New(g, mode, nil),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

// capability describes what fakeHost attaches to a module.
type capability struct {
	kind     graph.Kind
	defaults graph.Attributes
	finalize func(*graph.Attributes)
}

// fakeHost attaches capabilities the way a build plugin would: attach with
// defaults, then keep writing its own values.
type fakeHost struct {
	g    *graph.Graph
	caps map[string]capability

	mu         sync.Mutex
	configured []string
}

func (h *fakeHost) Configure(ctx context.Context, m *graph.Module) error {
	h.mu.Lock()
	h.configured = append(h.configured, m.Name())
	h.mu.Unlock()

	c, ok := h.caps[m.Name()]
	if !ok {
		return nil
	}
	ext := graph.NewExtension(c.kind, c.defaults)
	if err := h.g.Attach(m.Name(), ext); err != nil {
		return err
	}
	if c.finalize != nil {
		ext.Update(c.finalize)
	}
	return nil
}

func attach(t *testing.T, g *graph.Graph, name string, kind graph.Kind) *graph.Extension {
	t.Helper()
	ext := graph.NewExtension(kind, graph.Attributes{CompileSDK: 34, TargetSDK: 34, MinSDK: 19})
	if err := g.Attach(name, ext); err != nil {
		t.Fatalf("Attach(%s) error = %v", name, err)
	}
	return ext
}
