// Package engine applies an override policy to the modules of a build.
//
// The engine is the orchestration layer between the CLI and the lower-level
// packages. It listens for capability attachments through the observer, and at
// each settle checkpoint plans and applies the policy items that have not yet
// been recorded for a module.
//
// Key components:
//   - Engine: main orchestrator, constructed from an explicit Config
//   - Flush/Plan: one settle checkpoint, applied or dry run
//   - Run: full configure, settle and flush protocol driven by the scheduler
//   - Report: per-module outcome of a run
package engine

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/danieljhkim/modlay/internal/graph"
	"github.com/danieljhkim/modlay/internal/metrics"
	"github.com/danieljhkim/modlay/internal/observer"
	"github.com/danieljhkim/modlay/internal/policy"
	"github.com/danieljhkim/modlay/internal/scheduler"
	"github.com/danieljhkim/modlay/internal/state"
)

// Config holds the engine's collaborators. Graph and Policy are required.
type Config struct {
	Graph    *graph.Graph
	Policy   *policy.Set
	Observer *observer.Observer
	Recorder metrics.Recorder
	Logger   *slog.Logger

	// Concurrency caps how many modules Run configures at once (default 1)
	Concurrency int
}

type target struct {
	module *graph.Module
	ext    *graph.Extension
}

// Engine orchestrates overlay application.
type Engine struct {
	graph       *graph.Graph
	policy      *policy.Set
	observer    *observer.Observer
	recorder    metrics.Recorder
	logger      *slog.Logger
	concurrency int
	ledger      *state.Ledger

	startOnce sync.Once

	// mu is the flush critical section: planning, extension writes and
	// ledger writes of one checkpoint happen under it.
	mu sync.Mutex

	tmu     sync.Mutex
	targets []target

	smu   sync.Mutex
	sched *scheduler.Scheduler
}

// New creates a new Engine. A nil Observer gets a push-mode observer over the
// graph; a nil Recorder or Logger gets a no-op.
func New(cfg Config) (*Engine, error) {
	if cfg.Graph == nil {
		return nil, fmt.Errorf("%w: graph is required", ErrValidation)
	}
	if cfg.Policy == nil {
		return nil, fmt.Errorf("%w: policy is required", ErrValidation)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	obs := cfg.Observer
	if obs == nil {
		obs = observer.New(cfg.Graph, observer.ModePush, logger)
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &Engine{
		graph:       cfg.Graph,
		policy:      cfg.Policy,
		observer:    obs,
		recorder:    recorder,
		logger:      logger,
		concurrency: concurrency,
		ledger:      state.NewLedger(),
	}, nil
}

// Start registers one listener per capability kind of interest. Calling it
// more than once has no further effect.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		for _, kind := range []graph.Kind{graph.KindApplication, graph.KindLibrary} {
			e.observer.OnAttach(observer.KindIs(kind), e.deliver)
		}
		e.logger.Debug("engine started", "policy", e.policy.Fingerprint(), "mode", string(e.observer.Mode()))
	})
}

// Ledger returns the application record.
func (e *Engine) Ledger() *state.Ledger {
	return e.ledger
}

// Policy returns the policy the engine applies.
func (e *Engine) Policy() *policy.Set {
	return e.policy
}

func (e *Engine) deliver(m *graph.Module, ext *graph.Extension) {
	e.tmu.Lock()
	e.targets = append(e.targets, target{module: m, ext: ext})
	e.tmu.Unlock()

	e.recorder.IncAttachment(ext.Kind().String())
	e.logger.Debug("capability delivered", "module", m.Name(), "kind", ext.Kind().String())
}

func (e *Engine) snapshotTargets() []target {
	e.tmu.Lock()
	defer e.tmu.Unlock()
	return append([]target(nil), e.targets...)
}
