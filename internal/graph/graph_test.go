package graph

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func buildTestGraph(t *testing.T) *Graph {
	t.Helper()
	g := New("android")
	adds := []struct{ name, parent string }{
		{"app", ""},
		{"features", ""},
		{"login", "features"},
		{"plugin_x", ""},
		{"search", "features"},
	}
	for _, a := range adds {
		if _, err := g.AddModule(a.name, a.parent); err != nil {
			t.Fatalf("AddModule(%s) error = %v", a.name, err)
		}
	}
	return g
}

func TestGraph_TraversalOrder(t *testing.T) {
	g := buildTestGraph(t)

	want := []string{"android", "app", "features", "login", "search", "plugin_x"}
	if got := g.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	// The sequence is restartable.
	for i := 0; i < 2; i++ {
		var got []string
		for m := range g.Modules() {
			got = append(got, m.Name())
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("iteration %d = %v, want %v", i, got, want)
		}
	}
}

func TestGraph_ModulesStopsEarly(t *testing.T) {
	g := buildTestGraph(t)

	count := 0
	for range g.Modules() {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestGraph_AddModuleErrors(t *testing.T) {
	g := buildTestGraph(t)

	tests := []struct {
		name    string
		module  string
		parent  string
		wantErr error
	}{
		{name: "duplicate", module: "app", wantErr: ErrDuplicateModule},
		{name: "duplicate root", module: "android", wantErr: ErrDuplicateModule},
		{name: "unknown parent", module: "x", parent: "missing", wantErr: ErrUnknownModule},
		{name: "empty name", module: "", wantErr: ErrInvalidName},
		{name: "colon in name", module: "a:b", wantErr: ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.AddModule(tt.module, tt.parent)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddModule() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestModule_Path(t *testing.T) {
	g := buildTestGraph(t)

	tests := map[string]string{
		"android": ":",
		"app":     ":app",
		"login":   ":features:login",
	}
	for name, want := range tests {
		m, ok := g.Module(name)
		if !ok {
			t.Fatalf("module %s not found", name)
		}
		if got := m.Path(); got != want {
			t.Errorf("%s.Path() = %q, want %q", name, got, want)
		}
	}
}

func TestGraph_AttachOnce(t *testing.T) {
	g := buildTestGraph(t)

	if _, ok := g.Extension("app"); ok {
		t.Fatal("extension should be absent before attach")
	}

	ext := NewExtension(KindApplication, Attributes{CompileSDK: 33})
	if err := g.Attach("app", ext); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}

	got, ok := g.Extension("app")
	if !ok || got != ext {
		t.Fatalf("Extension() = %v, %v; want attached extension", got, ok)
	}

	err := g.Attach("app", NewExtension(KindLibrary, Attributes{}))
	if !errors.Is(err, ErrAlreadyAttached) {
		t.Errorf("second Attach() error = %v, want ErrAlreadyAttached", err)
	}
	if got, _ := g.Extension("app"); got.Kind() != KindApplication {
		t.Errorf("kind changed to %v after rejected attach", got.Kind())
	}

	if err := g.Attach("nope", ext); !errors.Is(err, ErrUnknownModule) {
		t.Errorf("Attach(unknown) error = %v, want ErrUnknownModule", err)
	}
	if err := g.Attach("plugin_x", nil); !errors.Is(err, ErrInvalidExtension) {
		t.Errorf("Attach(nil) error = %v, want ErrInvalidExtension", err)
	}
}

func TestGraph_AttachHooks(t *testing.T) {
	g := buildTestGraph(t)

	var seen []string
	g.OnAttach(func(m *Module, ext *Extension) {
		// Hooks may read the graph.
		if _, ok := g.Extension(m.Name()); !ok {
			t.Errorf("hook for %s ran before extension was visible", m.Name())
		}
		seen = append(seen, m.Name()+"/"+ext.Kind().String())
	})

	_ = g.Attach("plugin_x", NewExtension(KindLibrary, Attributes{}))
	_ = g.Attach("app", NewExtension(KindApplication, Attributes{}))
	_ = g.Attach("app", NewExtension(KindApplication, Attributes{}))

	want := []string{"plugin_x/library", "app/application"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("hook calls = %v, want %v", seen, want)
	}
}

func TestGraph_ConcurrentAttach(t *testing.T) {
	g := New("root")
	for i := 0; i < 50; i++ {
		if _, err := g.AddModule(fmt.Sprintf("m%d", i), ""); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := map[string]int{}
	for i := 0; i < 50; i++ {
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				name := fmt.Sprintf("m%d", i)
				if err := g.Attach(name, NewExtension(KindLibrary, Attributes{})); err == nil {
					mu.Lock()
					wins[name]++
					mu.Unlock()
				}
			}(i)
		}
	}
	wg.Wait()

	for name, n := range wins {
		if n != 1 {
			t.Errorf("%s attached %d times", name, n)
		}
	}
	if len(wins) != 50 {
		t.Errorf("attached modules = %d, want 50", len(wins))
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "application", want: KindApplication},
		{in: "com.android.application", want: KindApplication},
		{in: "Library", want: KindLibrary},
		{in: "com.android.library", want: KindLibrary},
		{in: "", want: KindNone},
		{in: "none", want: KindNone},
		{in: "kotlin", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestExtension_Update(t *testing.T) {
	ext := NewExtension(KindLibrary, Attributes{CompileSDK: 33, MinSDK: 19})
	ext.Update(func(a *Attributes) {
		a.CompileSDK = 36
	})

	got := ext.Attributes()
	want := Attributes{CompileSDK: 36, MinSDK: 19}
	if got != want {
		t.Errorf("Attributes() = %+v, want %+v", got, want)
	}
}
