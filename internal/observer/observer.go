// Package observer delivers capability attachment notifications.
//
// Capabilities attach to modules at unpredictable points of the configuration
// phase, and a capability keeps writing its own defaults for a while after it
// attaches. The observer therefore never invokes listeners at attach time.
// Attachments are buffered and delivered only when Settle is called, the
// checkpoint at which every module's own configuration is final:
//
//   - a listener registered before an attachment sees it at the next Settle
//   - a listener registered after an attachment sees it at the next Settle
//   - a listener sees each matching attachment exactly once
//
// Two sources feed the buffer. ModePush subscribes to graph attach hooks;
// ModePoll re-scans the graph at every Settle for hosts that cannot call
// hooks. Both produce the same deliveries at the same checkpoints.
package observer

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/danieljhkim/modlay/internal/graph"
)

// Mode selects how attachments are discovered.
type Mode string

const (
	ModePush Mode = "push"
	ModePoll Mode = "poll"
)

// ParseMode parses an observer mode name. Empty means push.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModePush:
		return ModePush, nil
	case ModePoll:
		return ModePoll, nil
	default:
		return "", fmt.Errorf("unknown observer mode %q (want push or poll)", s)
	}
}

// Predicate selects the attachments a listener is interested in.
type Predicate func(m *graph.Module, ext *graph.Extension) bool

// Callback receives a settled attachment.
type Callback func(m *graph.Module, ext *graph.Extension)

// KindIs matches extensions of any of the given kinds.
func KindIs(kinds ...graph.Kind) Predicate {
	return func(_ *graph.Module, ext *graph.Extension) bool {
		for _, k := range kinds {
			if ext.Kind() == k {
				return true
			}
		}
		return false
	}
}

type event struct {
	module *graph.Module
	ext    *graph.Extension
}

type listener struct {
	pred      Predicate
	cb        Callback
	delivered map[string]bool
}

// Observer buffers attachments and flushes them to listeners at Settle.
type Observer struct {
	graph  *graph.Graph
	mode   Mode
	logger *slog.Logger

	mu          sync.Mutex
	events      []event
	seen        map[string]bool
	listeners   []*listener
	checkpoints int
}

// New creates an observer over g. In push mode it also ingests modules that
// were attached before the observer existed.
func New(g *graph.Graph, mode Mode, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	o := &Observer{
		graph:  g,
		mode:   mode,
		logger: logger,
		seen:   make(map[string]bool),
	}
	if mode == ModePush {
		g.OnAttach(o.record)
		o.scan()
	}
	return o
}

// Mode returns the discovery mode.
func (o *Observer) Mode() Mode {
	return o.mode
}

// OnAttach registers cb for every attachment matching pred.
func (o *Observer) OnAttach(pred Predicate, cb Callback) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, &listener{
		pred:      pred,
		cb:        cb,
		delivered: make(map[string]bool),
	})
}

// Settle is the delivery checkpoint. It returns the number of callbacks run.
// Calling Settle again without new attachments delivers nothing.
func (o *Observer) Settle() int {
	if o.mode == ModePoll {
		o.scan()
	}

	type delivery struct {
		cb Callback
		ev event
	}

	o.mu.Lock()
	o.checkpoints++
	checkpoint := o.checkpoints
	var pending []delivery
	for _, ev := range o.events {
		for _, l := range o.listeners {
			name := ev.module.Name()
			if l.delivered[name] {
				continue
			}
			if l.pred != nil && !l.pred(ev.module, ev.ext) {
				continue
			}
			l.delivered[name] = true
			pending = append(pending, delivery{cb: l.cb, ev: ev})
		}
	}
	o.mu.Unlock()

	for _, d := range pending {
		d.cb(d.ev.module, d.ev.ext)
	}

	o.logger.Debug("observer settled", "checkpoint", checkpoint, "delivered", len(pending))
	return len(pending)
}

// Pending returns the number of buffered attachments at least one listener
// has not received yet. Attachments no listener matches are not counted.
func (o *Observer) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := 0
	for _, ev := range o.events {
		for _, l := range o.listeners {
			if !l.delivered[ev.module.Name()] && (l.pred == nil || l.pred(ev.module, ev.ext)) {
				n++
				break
			}
		}
	}
	return n
}

// Checkpoints returns how many times Settle has run.
func (o *Observer) Checkpoints() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.checkpoints
}

func (o *Observer) record(m *graph.Module, ext *graph.Extension) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seen[m.Name()] {
		return
	}
	o.seen[m.Name()] = true
	o.events = append(o.events, event{module: m, ext: ext})
	o.logger.Debug("capability attached", "module", m.Name(), "kind", ext.Kind().String())
}

func (o *Observer) scan() {
	for m := range o.graph.Modules() {
		if ext, ok := m.Extension(); ok {
			o.record(m, ext)
		}
	}
}
