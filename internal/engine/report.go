package engine

import (
	"github.com/danieljhkim/modlay/internal/graph"
)

// Report builds the per-module outcome of the engine so far.
func (e *Engine) Report() *Report {
	r := &Report{
		Root:        e.graph.Root().Name(),
		Fingerprint: e.policy.Fingerprint(),
		Sources:     e.policy.Sources(),
		Checkpoints: e.observer.Checkpoints(),
		Records:     e.ledger.Snapshot(),
	}

	sched := e.scheduler()
	if sched != nil {
		r.Order = sched.Order()
	}

	for m := range e.graph.Modules() {
		mr := ModuleReport{
			Name:  m.Name(),
			Path:  m.Path(),
			Kind:  graph.KindNone,
			Items: []string{},
		}
		if ext, ok := m.Extension(); ok {
			attrs := ext.Attributes()
			mr.Attached = true
			mr.Kind = ext.Kind()
			mr.Attributes = &attrs
		}
		if sched != nil {
			mr.State = sched.State(m.Name()).String()
		}
		for _, rec := range e.ledger.ForModule(m.Name()) {
			mr.Items = append(mr.Items, rec.Item)
		}
		r.Modules = append(r.Modules, mr)
	}
	return r
}

// Module returns the report entry of name.
func (r *Report) Module(name string) (ModuleReport, bool) {
	for _, m := range r.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return ModuleReport{}, false
}
