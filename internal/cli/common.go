package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/modlay/internal/config"
	"github.com/danieljhkim/modlay/internal/engine"
	"github.com/danieljhkim/modlay/internal/fsops"
	"github.com/danieljhkim/modlay/internal/manifest"
	"github.com/danieljhkim/modlay/internal/metrics"
	"github.com/danieljhkim/modlay/internal/observer"
	"github.com/danieljhkim/modlay/internal/policy"
)

var (
	settings *config.Settings
	logger   *slog.Logger
	fs       fsops.FS = fsops.NewRealFS()
)

// setup binds output writers, resolves settings and applies flag overrides.
func setup(cmd *cobra.Command) error {
	stdout = cmd.OutOrStdout()
	stderr = cmd.ErrOrStderr()

	s, err := config.Load(rootFlag)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if len(policyFlags) > 0 {
		s.PolicyFiles = policyFlags
	}
	if manifestFlag != "" {
		s.Manifest = manifestFlag
	}
	if logLevelFlag != "" {
		s.LogLevel = logLevelFlag
	}
	if logFormatFlag != "" {
		s.LogFormat = logFormatFlag
	}

	settings = s
	logger = newLogger(s.LogLevel, s.LogFormat, stderr)
	return nil
}

// loadPolicy loads the layered policy files, or the built-in policy when
// none are configured.
func loadPolicy() (*policy.Set, error) {
	paths := settings.PolicyPaths()
	if len(paths) == 0 {
		logger.Debug("using built-in policy")
		return policy.Default(), nil
	}
	set, err := policy.Load(fs, settings.Env, paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	logger.Debug("policy loaded", "sources", len(paths), "fingerprint", set.Fingerprint())
	return set, nil
}

// loadManifest loads the module manifest.
func loadManifest() (*manifest.Manifest, error) {
	return manifest.Load(fs, settings.ManifestPath())
}

// newEngine creates an engine and a host for the manifest's modules.
func newEngine(m *manifest.Manifest, set *policy.Set, recorder metrics.Recorder) (*engine.Engine, *manifest.Host, error) {
	g, err := m.BuildGraph()
	if err != nil {
		return nil, nil, err
	}
	mode, err := observer.ParseMode(settings.Mode)
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.New(engine.Config{
		Graph:       g,
		Policy:      set,
		Observer:    observer.New(g, mode, logger),
		Recorder:    recorder,
		Logger:      logger,
		Concurrency: settings.Concurrency,
	})
	if err != nil {
		return nil, nil, err
	}
	return eng, manifest.NewHost(m, g, logger), nil
}

// applyRunFlags overrides observer mode and concurrency when set.
func applyRunFlags(mode string, concurrency int) error {
	if mode != "" {
		settings.Mode = mode
	}
	if concurrency < 0 {
		return fmt.Errorf("invalid concurrency %d", concurrency)
	}
	if concurrency > 0 {
		settings.Concurrency = concurrency
	}
	return nil
}

// printViolations lists every mandate violation carried by err.
func printViolations(err error) {
	var mce *engine.MissingCapabilityError
	if !errors.As(err, &mce) {
		return
	}
	PrintSection("Mandate Violations")
	for _, v := range mce.Violations {
		PrintError(fmt.Sprintf("%s: no capability attached, required by %s", v.Module, v.Item))
	}
}

// printConflict explains a policy conflict.
func printConflict(err error) {
	var ce *policy.ConflictError
	if !errors.As(err, &ce) {
		return
	}
	PrintSection("Policy Conflict")
	PrintLabelValue("Attribute", ce.Attribute)
	PrintLabelValue(ce.Sources[0], ce.Existing)
	PrintLabelValue(ce.Sources[1], ce.Incoming)
}

// writeJSONFile writes v as indented JSON to path (resolved against the root).
func writeJSONFile(path string, v interface{}) error {
	data, err := formatJSON(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := fs.AtomicWrite(settings.Resolve(path), []byte(data+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// formatJSON formats a value as JSON.
func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatError formats an error for display.
func FormatError(err error) string {
	return errorColor.Sprintf("Error: %v", err)
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
