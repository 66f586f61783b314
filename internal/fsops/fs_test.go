package fsops

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRealFS_ValidateRemovalTarget(t *testing.T) {
	r := NewRealFS()
	root := filepath.Join(t.TempDir(), "project", "android")

	tests := []struct {
		name    string
		target  string
		wantErr bool
	}{
		{"sibling build dir", "../build", false},
		{"nested build dir", "build", false},
		{"absolute outside", filepath.Join(filepath.Dir(root), "out"), false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"project root", ".", true},
		{"project root absolute", root, true},
		{"project root with trailing slash", root + string(filepath.Separator), true},
		{"parent of root", "..", true},
		{"grandparent of root", "../..", true},
		{"filesystem root", string(filepath.Separator), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ValidateRemovalTarget(tt.target, root)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRemovalTarget(%q) error = %v, wantErr %v", tt.target, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnsafeTarget) {
				t.Errorf("error %v should wrap ErrUnsafeTarget", err)
			}
		})
	}

	if home, err := os.UserHomeDir(); err == nil {
		if err := r.ValidateRemovalTarget(home, root); !errors.Is(err, ErrUnsafeTarget) {
			t.Errorf("home directory should be rejected, got %v", err)
		}
	}
}

func TestRealFS_AtomicWriteReport(t *testing.T) {
	r := NewRealFS()
	dir := t.TempDir()
	report := filepath.Join(dir, "out", "reports", "settle.json")

	if err := r.AtomicWrite(report, []byte(`{"checkpoints":1}`), 0600); err != nil {
		t.Fatalf("AtomicWrite() error = %v", err)
	}
	if err := r.AtomicWrite(report, []byte(`{"checkpoints":2}`), 0644); err != nil {
		t.Fatalf("second AtomicWrite() error = %v", err)
	}

	data, err := r.ReadFile(report)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != `{"checkpoints":2}` {
		t.Errorf("content = %q", data)
	}

	info, err := r.Lstat(report)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(report))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := []string{}
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("temp files left behind: %v", names)
	}
}

func TestRealFS_AtomicWriteIntoFile(t *testing.T) {
	r := NewRealFS()
	dir := t.TempDir()
	blocker := filepath.Join(dir, "metrics")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}

	if err := r.AtomicWrite(filepath.Join(blocker, "modlay.prom"), []byte("x"), 0644); err == nil {
		t.Error("expected error when a parent is a regular file")
	}
}

func TestRealFS_ExistsAndRemoveAll(t *testing.T) {
	r := NewRealFS()
	dir := t.TempDir()
	base := filepath.Join(dir, "build")
	apk := filepath.Join(base, "app", "outputs", "app.apk")

	if err := r.MkdirAll(filepath.Dir(apk), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(apk, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	dangling := filepath.Join(dir, "dangling")
	if err := os.Symlink(filepath.Join(dir, "missing"), dangling); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{apk, true},
		{base, true},
		{dangling, true},
		{filepath.Join(dir, "missing"), false},
	}
	for _, tt := range tests {
		got, err := r.Exists(tt.path)
		if err != nil || got != tt.want {
			t.Errorf("Exists(%s) = %v, %v; want %v", tt.path, got, err, tt.want)
		}
	}

	if err := r.RemoveAll(base); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}
	if ok, _ := r.Exists(base); ok {
		t.Error("build dir still exists")
	}
	if _, err := r.ReadFile(apk); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadFile() after removal error = %v", err)
	}
}
