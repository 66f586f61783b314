// Package graph models the modules of a multi-module build.
//
// A Graph is an append-only tree: modules are added once and never removed.
// The only mutable part of a module is its capability extension, which is
// published exactly once by Attach when a build capability (an application or
// library plugin) is applied to the module. Attach hooks let interested parties
// learn about attachments without polling.
//
// Key types:
//   - Graph: module membership, stable traversal, attach hooks
//   - Module: named node with parent/children and an optional Extension
//   - Extension: mutable build attributes guarded by its own lock
//   - Kind: tagged capability kind resolved once at attach time
package graph

import (
	"fmt"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
)

// AttachHook is called after an extension has been attached to a module.
type AttachHook func(m *Module, ext *Extension)

// Module is a named unit of the build.
type Module struct {
	name     string
	parent   *Module
	children []*Module
	ext      atomic.Pointer[Extension]
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// Parent returns the parent module, or nil for the root.
func (m *Module) Parent() *Module {
	return m.parent
}

// IsRoot reports whether m is the root module.
func (m *Module) IsRoot() bool {
	return m.parent == nil
}

// Path returns the colon separated path of the module (":" for the root).
func (m *Module) Path() string {
	if m.parent == nil {
		return ":"
	}
	var parts []string
	for cur := m; cur.parent != nil; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteByte(':')
		b.WriteString(parts[i])
	}
	return b.String()
}

// Extension returns the attached capability extension, if any.
func (m *Module) Extension() (*Extension, bool) {
	ext := m.ext.Load()
	return ext, ext != nil
}

// Graph is the module tree of a single build invocation.
type Graph struct {
	mu     sync.RWMutex
	root   *Module
	byName map[string]*Module
	hooks  []AttachHook
}

// New creates a graph containing only the root module.
func New(rootName string) *Graph {
	root := &Module{name: rootName}
	return &Graph{
		root:   root,
		byName: map[string]*Module{rootName: root},
	}
}

// Root returns the root module.
func (g *Graph) Root() *Module {
	return g.root
}

// AddModule adds a module under parent. An empty parent means the root.
func (g *Graph) AddModule(name, parent string) (*Module, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.byName[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateModule, name)
	}

	p := g.root
	if parent != "" {
		var ok bool
		p, ok = g.byName[parent]
		if !ok {
			return nil, fmt.Errorf("%w: parent %s of %s", ErrUnknownModule, parent, name)
		}
	}

	m := &Module{name: name, parent: p}
	p.children = append(p.children, m)
	g.byName[name] = m
	return m, nil
}

// Module looks up a module by name.
func (g *Graph) Module(name string) (*Module, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.byName[name]
	return m, ok
}

// Len returns the number of modules, root included.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byName)
}

// Modules returns every module, parents before children and siblings in
// insertion order. Each iteration takes a fresh snapshot, so the sequence can
// be ranged over any number of times.
func (g *Graph) Modules() iter.Seq[*Module] {
	return func(yield func(*Module) bool) {
		for _, m := range g.snapshot() {
			if !yield(m) {
				return
			}
		}
	}
}

// Names returns module names in traversal order.
func (g *Graph) Names() []string {
	snap := g.snapshot()
	names := make([]string, 0, len(snap))
	for _, m := range snap {
		names = append(names, m.name)
	}
	return names
}

// ForEachModule calls fn for every module in traversal order and stops at the
// first error.
func (g *Graph) ForEachModule(fn func(*Module) error) error {
	for m := range g.Modules() {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

// Extension returns the extension attached to the named module.
func (g *Graph) Extension(name string) (*Extension, bool) {
	m, ok := g.Module(name)
	if !ok {
		return nil, false
	}
	return m.Extension()
}

// OnAttach registers a hook invoked after every successful Attach.
func (g *Graph) OnAttach(hook AttachHook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hooks = append(g.hooks, hook)
}

// Attach publishes ext as the capability extension of the named module.
// A module accepts exactly one extension.
func (g *Graph) Attach(name string, ext *Extension) error {
	if ext == nil {
		return fmt.Errorf("%w: nil extension for %s", ErrInvalidExtension, name)
	}

	g.mu.RLock()
	m, ok := g.byName[name]
	hooks := append([]AttachHook(nil), g.hooks...)
	g.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	if !m.ext.CompareAndSwap(nil, ext) {
		return fmt.Errorf("%w: %s", ErrAlreadyAttached, name)
	}

	// Hooks run outside the graph lock so they may query the graph.
	for _, hook := range hooks {
		hook(m, ext)
	}
	return nil
}

func (g *Graph) snapshot() []*Module {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Module, 0, len(g.byName))
	var walk func(m *Module)
	walk = func(m *Module) {
		out = append(out, m)
		for _, child := range m.children {
			walk(child)
		}
	}
	walk(g.root)
	return out
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, ": \t\n") {
		return fmt.Errorf("%w: %q must not contain ':' or whitespace", ErrInvalidName, name)
	}
	return nil
}
