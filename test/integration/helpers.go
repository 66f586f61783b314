package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danieljhkim/modlay/internal/engine"
	"github.com/danieljhkim/modlay/internal/fsops"
	"github.com/danieljhkim/modlay/internal/manifest"
	"github.com/danieljhkim/modlay/internal/observer"
	"github.com/danieljhkim/modlay/internal/policy"
)

// testFS is an in-memory fsops.FS.
type testFS struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
}

var _ fsops.FS = (*testFS)(nil)

func newTestFS() *testFS {
	return &testFS{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

func (fs *testFS) put(path, content string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = []byte(content)
	fs.dirs[filepath.Dir(path)] = true
}

func (fs *testFS) Exists(path string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, hasFile := fs.files[path]
	return hasFile || fs.dirs[path], nil
}

func (fs *testFS) Lstat(path string) (os.FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.dirs[path] {
		return &mockFileInfo{name: filepath.Base(path), isDir: true}, nil
	}
	if content, ok := fs.files[path]; ok {
		return &mockFileInfo{name: filepath.Base(path), size: int64(len(content))}, nil
	}
	return nil, os.ErrNotExist
}

func (fs *testFS) MkdirAll(path string, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for p := path; p != "." && p != string(filepath.Separator); p = filepath.Dir(p) {
		fs.dirs[p] = true
	}
	return nil
}

func (fs *testFS) RemoveAll(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	prefix := path + string(filepath.Separator)
	for p := range fs.files {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(fs.files, p)
		}
	}
	for p := range fs.dirs {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(fs.dirs, p)
		}
	}
	return nil
}

func (fs *testFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = append([]byte(nil), data...)
	return nil
}

func (fs *testFS) ReadFile(path string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if content, ok := fs.files[path]; ok {
		return append([]byte(nil), content...), nil
	}
	return nil, os.ErrNotExist
}

// ValidateRemovalTarget only inspects paths, so the real rules apply.
func (fs *testFS) ValidateRemovalTarget(target, root string) error {
	return fsops.NewRealFS().ValidateRemovalTarget(target, root)
}

// mockFileInfo implements os.FileInfo
type mockFileInfo struct {
	name  string
	size  int64
	isDir bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() os.FileMode  { return 0644 }
func (m *mockFileInfo) ModTime() time.Time { return time.Time{} }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() interface{}   { return nil }

// project is a manifest and layered policy files in a testFS.
type project struct {
	fs          *testFS
	root        string
	policyFiles []string
	env         map[string]string
}

func newProject(manifestYAML string) *project {
	p := &project{fs: newTestFS(), root: "/work/android", env: map[string]string{}}
	p.fs.put(p.path("modlay.yaml"), manifestYAML)
	return p
}

func (p *project) path(name string) string {
	return filepath.Join(p.root, name)
}

func (p *project) addPolicy(name, content string) {
	p.fs.put(p.path(name), content)
	p.policyFiles = append(p.policyFiles, p.path(name))
}

type runOptions struct {
	mode        observer.Mode
	concurrency int
}

// run loads the project and runs the full configure/settle/flush protocol.
func (p *project) run(t *testing.T, opts runOptions) (*engine.Report, error) {
	t.Helper()

	set := policy.Default()
	if len(p.policyFiles) > 0 {
		var err error
		set, err = policy.Load(p.fs, p.env, p.policyFiles...)
		if err != nil {
			t.Fatalf("policy.Load() error = %v", err)
		}
	}

	m, err := manifest.Load(p.fs, p.path("modlay.yaml"))
	if err != nil {
		t.Fatalf("manifest.Load() error = %v", err)
	}
	g, err := m.BuildGraph()
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}

	mode := opts.mode
	if mode == "" {
		mode = observer.ModePush
	}
	eng, err := engine.New(engine.Config{
		Graph:       g,
		Policy:      set,
		Observer:    observer.New(g, mode, nil),
		Concurrency: opts.concurrency,
	})
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	return eng.Run(context.Background(), manifest.NewHost(m, g, nil))
}
