package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/danieljhkim/modlay/internal/graph"
	"github.com/danieljhkim/modlay/internal/metrics"
	"github.com/danieljhkim/modlay/internal/observer"
	"github.com/danieljhkim/modlay/internal/policy"
	"github.com/danieljhkim/modlay/internal/scheduler"

	prom "github.com/prometheus/client_golang/prometheus"
)

var want36 = graph.Attributes{CompileSDK: 36, TargetSDK: 36, MinSDK: 21}

func TestNew_Validation(t *testing.T) {
	g := newGraph(t)
	if _, err := New(Config{Policy: policy.Default()}); !errors.Is(err, ErrValidation) {
		t.Errorf("New() without graph error = %v, want ErrValidation", err)
	}
	if _, err := New(Config{Graph: g}); !errors.Is(err, ErrValidation) {
		t.Errorf("New() without policy error = %v, want ErrValidation", err)
	}
	e, err := New(Config{Graph: g, Policy: policy.Default()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if e.observer == nil || e.recorder == nil || e.concurrency != 1 {
		t.Error("New() should fill defaults")
	}
}

func TestRun_ScenarioBothModulesOverlaid(t *testing.T) {
	g := newGraph(t, "app", "plugin_x")
	host := &fakeHost{g: g, caps: map[string]capability{
		"app":      {kind: graph.KindApplication, defaults: graph.Attributes{CompileSDK: 34, TargetSDK: 33, MinSDK: 24}},
		"plugin_x": {kind: graph.KindLibrary, defaults: graph.Attributes{CompileSDK: 33}},
	}}
	e := newEngine(t, g, overlayPolicy(t), observer.ModePush)

	report, err := e.Run(context.Background(), host)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, name := range []string{"app", "plugin_x"} {
		ext, _ := g.Extension(name)
		if got := ext.Attributes(); got != want36 {
			t.Errorf("%s attributes = %+v, want %+v", name, got, want36)
		}
		mr, _ := report.Module(name)
		if !mr.Overlaid() || mr.State != "settled" {
			t.Errorf("%s report = %+v", name, mr)
		}
	}
	if len(report.Records) != 2 {
		t.Errorf("Records = %+v, want 2", report.Records)
	}
	if report.Order[0] != "android" {
		t.Errorf("Order = %v, root should come first", report.Order)
	}
}

func TestRun_ScenarioNeverAttachedIsNotAnError(t *testing.T) {
	g := newGraph(t, "app", "plugin_y")
	host := &fakeHost{g: g, caps: map[string]capability{
		"app": {kind: graph.KindApplication},
	}}
	e := newEngine(t, g, overlayPolicy(t), observer.ModePush)

	report, err := e.Run(context.Background(), host)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if e.Ledger().Has("plugin_y") {
		t.Error("plugin_y has a record")
	}
	mr, _ := report.Module("plugin_y")
	if mr.Attached || mr.Overlaid() || mr.Kind != graph.KindNone {
		t.Errorf("plugin_y report = %+v", mr)
	}
	if !reflect.DeepEqual(host.configured, []string{"android", "app", "plugin_y"}) {
		t.Errorf("configured = %v", host.configured)
	}
}

func TestRun_ScenarioMissingMandatedCapability(t *testing.T) {
	g := newGraph(t, "app", "plugin_z")
	set := overlayPolicy(t, policy.Document{
		Source:   "ordering",
		Ordering: []policy.EdgeDoc{{Before: "app", After: "plugin_z", Mandatory: true}},
	})
	host := &fakeHost{g: g, caps: map[string]capability{
		"app": {kind: graph.KindApplication, defaults: graph.Attributes{CompileSDK: 34}},
	}}
	e := newEngine(t, g, set, observer.ModePush)

	report, err := e.Run(context.Background(), host)

	var mce *MissingCapabilityError
	if !errors.As(err, &mce) {
		t.Fatalf("Run() error = %v, want *MissingCapabilityError", err)
	}
	if mce.Module != "plugin_z" || mce.Item != "ordering app->plugin_z" {
		t.Errorf("MissingCapabilityError = %+v", mce)
	}
	if !errors.Is(err, ErrMissingCapability) || !errors.Is(err, ErrConfiguration) || !IsConfigError(err) {
		t.Errorf("error classification wrong for %v", err)
	}

	// nothing is applied when a mandate fails
	if e.Ledger().Len() != 0 {
		t.Errorf("ledger has %d records", e.Ledger().Len())
	}
	ext, _ := g.Extension("app")
	if ext.Attributes().CompileSDK != 34 {
		t.Errorf("app was overlaid despite the violation: %+v", ext.Attributes())
	}
	if report == nil {
		t.Error("Run() should still return a report")
	}
}

func TestRun_CycleConfiguresNothing(t *testing.T) {
	g := newGraph(t, "A", "B", "C")
	set := overlayPolicy(t, policy.Document{
		Source: "cycle",
		Ordering: []policy.EdgeDoc{
			{Before: "A", After: "B"},
			{Before: "B", After: "C"},
			{Before: "C", After: "A"},
		},
	})
	host := &fakeHost{g: g}
	e := newEngine(t, g, set, observer.ModePush)

	_, err := e.Run(context.Background(), host)

	var cycleErr *scheduler.CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Run() error = %v, want *scheduler.CycleError", err)
	}
	if !IsConfigError(err) {
		t.Error("cycle should be a configuration error")
	}
	if len(host.configured) != 0 {
		t.Errorf("configured %v despite the cycle", host.configured)
	}
}

func TestRun_UnknownModuleInOrdering(t *testing.T) {
	g := newGraph(t, "app")
	set := overlayPolicy(t, policy.Document{
		Source:   "ordering",
		Ordering: []policy.EdgeDoc{{Before: "app", After: "ghost"}},
	})
	e := newEngine(t, g, set, observer.ModePush)

	_, err := e.Run(context.Background(), &fakeHost{g: g})
	if !errors.Is(err, scheduler.ErrUnknownModule) || !errors.Is(err, ErrConfiguration) {
		t.Errorf("Run() error = %v, want unknown module configuration error", err)
	}
}

func TestRun_HostFailure(t *testing.T) {
	g := newGraph(t, "app")
	boom := errors.New("boom")
	host := ConfigurerFunc(func(ctx context.Context, m *graph.Module) error {
		if m.Name() == "app" {
			return boom
		}
		return nil
	})
	e := newEngine(t, g, overlayPolicy(t), observer.ModePush)

	report, err := e.Run(context.Background(), host)
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want boom", err)
	}
	if IsConfigError(err) {
		t.Error("host failures are not configuration errors")
	}
	mr, _ := report.Module("app")
	if mr.State != "failed" {
		t.Errorf("app state = %q, want failed", mr.State)
	}
}

func TestRun_CapabilityFinalizeIsOverridden(t *testing.T) {
	g := newGraph(t, "app")
	host := &fakeHost{g: g, caps: map[string]capability{
		"app": {
			kind:     graph.KindApplication,
			defaults: graph.Attributes{CompileSDK: 30},
			finalize: func(a *graph.Attributes) {
				a.CompileSDK = 35
				a.TargetSDK = 35
				a.MinSDK = 26
			},
		},
	}}
	e := newEngine(t, g, overlayPolicy(t), observer.ModePoll)

	if _, err := e.Run(context.Background(), host); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	ext, _ := g.Extension("app")
	if got := ext.Attributes(); got != want36 {
		t.Errorf("attributes = %+v, want overlay %+v", got, want36)
	}
}

func TestRun_Metrics(t *testing.T) {
	g := newGraph(t, "app", "lib")
	host := &fakeHost{g: g, caps: map[string]capability{
		"app": {kind: graph.KindApplication},
		"lib": {kind: graph.KindLibrary},
	}}
	reg := prom.NewRegistry()
	e, err := New(Config{
		Graph:       g,
		Policy:      overlayPolicy(t),
		Recorder:    metrics.NewPrometheusRecorder(reg),
		Concurrency: 4,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Run(context.Background(), host); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{"modlay_items_applied_total", "modlay_capability_attachments_total", "modlay_flush_outcomes_total"} {
		if !names[want] {
			t.Errorf("metric %s not recorded", want)
		}
	}
}

func TestIsConfigError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"conflict", &policy.ConflictError{Attribute: "compileSdk"}, true},
		{"cycle", &scheduler.CycleError{Cycle: []string{"a", "a"}}, true},
		{"missing capability", &MissingCapabilityError{Module: "m", Item: "i"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfigError(tt.err); got != tt.want {
				t.Errorf("IsConfigError() = %v, want %v", got, tt.want)
			}
		})
	}
}
