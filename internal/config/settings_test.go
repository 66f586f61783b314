package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadWith_Defaults(t *testing.T) {
	root := t.TempDir()

	s, err := LoadWith(root, nil)
	if err != nil {
		t.Fatalf("LoadWith failed: %v", err)
	}

	if s.Root != root {
		t.Errorf("Root = %s, want %s", s.Root, root)
	}
	if s.Manifest != DefaultManifest || s.LogLevel != DefaultLogLevel || s.LogFormat != DefaultLogFormat {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.Mode != DefaultMode || s.Concurrency != DefaultConcurrency {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if len(s.PolicyFiles) != 0 {
		t.Errorf("PolicyFiles = %v, want none", s.PolicyFiles)
	}
	if s.ManifestPath() != filepath.Join(root, DefaultManifest) {
		t.Errorf("ManifestPath() = %s", s.ManifestPath())
	}
}

func TestLoadWith_Environment(t *testing.T) {
	root := t.TempDir()
	environ := []string{
		EnvPolicy + "=base.yaml" + string(os.PathListSeparator) + "/abs/extra.hcl",
		EnvManifest + "=build/modules.yaml",
		EnvLogLevel + "=debug",
		EnvLogFormat + "=json",
		EnvMode + "=poll",
		EnvConcurrency + "=4",
	}

	s, err := LoadWith(root, environ)
	if err != nil {
		t.Fatalf("LoadWith failed: %v", err)
	}

	wantPolicies := []string{filepath.Join(root, "base.yaml"), "/abs/extra.hcl"}
	if !reflect.DeepEqual(s.PolicyPaths(), wantPolicies) {
		t.Errorf("PolicyPaths() = %v, want %v", s.PolicyPaths(), wantPolicies)
	}
	if s.ManifestPath() != filepath.Join(root, "build/modules.yaml") {
		t.Errorf("ManifestPath() = %s", s.ManifestPath())
	}
	if s.LogLevel != "debug" || s.LogFormat != "json" || s.Mode != "poll" || s.Concurrency != 4 {
		t.Errorf("environment not applied: %+v", s)
	}
}

func TestLoadWith_RootFromEnvironment(t *testing.T) {
	root := t.TempDir()
	s, err := LoadWith("", []string{EnvRoot + "=" + root})
	if err != nil {
		t.Fatalf("LoadWith failed: %v", err)
	}
	if s.Root != root {
		t.Errorf("Root = %s, want %s", s.Root, root)
	}
}

func TestLoadWith_DotEnv(t *testing.T) {
	root := t.TempDir()
	dotenv := "MODLAY_MODE=poll\nMODLAY_LOG_LEVEL=info\nBUILD_ROOT=/srv\n"
	if err := os.WriteFile(filepath.Join(root, DotEnvFile), []byte(dotenv), 0644); err != nil {
		t.Fatal(err)
	}

	// process environment wins over .env
	s, err := LoadWith(root, []string{EnvLogLevel + "=error"})
	if err != nil {
		t.Fatalf("LoadWith failed: %v", err)
	}
	if s.Mode != "poll" {
		t.Errorf("Mode = %s, want poll from .env", s.Mode)
	}
	if s.LogLevel != "error" {
		t.Errorf("LogLevel = %s, want error from the environment", s.LogLevel)
	}
	if s.Env["BUILD_ROOT"] != "/srv" {
		t.Errorf("Env[BUILD_ROOT] = %q", s.Env["BUILD_ROOT"])
	}
}

func TestLoadWith_InvalidConcurrency(t *testing.T) {
	for _, v := range []string{"0", "-1", "many"} {
		if _, err := LoadWith(t.TempDir(), []string{EnvConcurrency + "=" + v}); err == nil {
			t.Errorf("concurrency %q should be rejected", v)
		}
	}
}

func TestSettings_Resolve(t *testing.T) {
	s := &Settings{Root: "/project"}
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/abs/file", "/abs/file"},
		{"rel/file", "/project/rel/file"},
	}
	for _, tt := range tests {
		if got := s.Resolve(tt.in); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
