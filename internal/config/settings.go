// Package config resolves modlay settings.
//
// Settings come from three layers, lowest first: built-in defaults, a .env
// file in the project root, and the process environment. Command-line flags
// are applied on top by the CLI. Variables:
//   - MODLAY_ROOT: project root (default: current directory)
//   - MODLAY_POLICY: policy files, separated like PATH (default: built-in policy)
//   - MODLAY_MANIFEST: module manifest (default: modlay.yaml)
//   - MODLAY_LOG_LEVEL, MODLAY_LOG_FORMAT: debug|info|warn|error, text|json
//   - MODLAY_MODE: observer mode, push|poll
//   - MODLAY_CONCURRENCY: modules configured at once
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvRoot        = "MODLAY_ROOT"
	EnvPolicy      = "MODLAY_POLICY"
	EnvManifest    = "MODLAY_MANIFEST"
	EnvLogLevel    = "MODLAY_LOG_LEVEL"
	EnvLogFormat   = "MODLAY_LOG_FORMAT"
	EnvMode        = "MODLAY_MODE"
	EnvConcurrency = "MODLAY_CONCURRENCY"
)

// Defaults.
const (
	DefaultManifest    = "modlay.yaml"
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "text"
	DefaultMode        = "push"
	DefaultConcurrency = 1
	DotEnvFile         = ".env"
)

// Settings contains everything the CLI needs to assemble a run.
type Settings struct {
	// Root is the project root; relative paths resolve against it
	Root string

	// PolicyFiles are layered in order (empty: built-in policy)
	PolicyFiles []string

	// Manifest is the module manifest path
	Manifest string

	// LogLevel and LogFormat configure the slog handler
	LogLevel  string
	LogFormat string

	// Mode is the observer mode
	Mode string

	// Concurrency caps concurrent module configuration
	Concurrency int

	// Env is the merged environment (.env below process env), exposed to
	// HCL policies as env.*
	Env map[string]string
}

// Load resolves settings from the process environment. An empty root falls
// back to MODLAY_ROOT and then the working directory.
func Load(root string) (*Settings, error) {
	return LoadWith(root, os.Environ())
}

// LoadWith resolves settings from environ ("KEY=value" entries).
func LoadWith(root string, environ []string) (*Settings, error) {
	env := parseEnviron(environ)

	if root == "" {
		root = env[EnvRoot]
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}

	dotenv, err := readDotEnv(filepath.Join(root, DotEnvFile))
	if err != nil {
		return nil, err
	}
	for k, v := range dotenv {
		if _, ok := env[k]; !ok {
			env[k] = v
		}
	}

	s := &Settings{
		Root:        root,
		Manifest:    DefaultManifest,
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		Mode:        DefaultMode,
		Concurrency: DefaultConcurrency,
		Env:         env,
	}
	if v := env[EnvPolicy]; v != "" {
		s.PolicyFiles = filepath.SplitList(v)
	}
	if v := env[EnvManifest]; v != "" {
		s.Manifest = v
	}
	if v := env[EnvLogLevel]; v != "" {
		s.LogLevel = v
	}
	if v := env[EnvLogFormat]; v != "" {
		s.LogFormat = v
	}
	if v := env[EnvMode]; v != "" {
		s.Mode = v
	}
	if v := env[EnvConcurrency]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid %s %q: must be a positive integer", EnvConcurrency, v)
		}
		s.Concurrency = n
	}
	return s, nil
}

// Resolve returns path relative to the project root unless it is absolute.
func (s *Settings) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.Root, path)
}

// PolicyPaths returns the policy files resolved against the root.
func (s *Settings) PolicyPaths() []string {
	out := make([]string, 0, len(s.PolicyFiles))
	for _, p := range s.PolicyFiles {
		out = append(out, s.Resolve(p))
	}
	return out
}

// ManifestPath returns the manifest path resolved against the root.
func (s *Settings) ManifestPath() string {
	return s.Resolve(s.Manifest)
}

func readDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return values, nil
}

func parseEnviron(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
