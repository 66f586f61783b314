package manifest

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/danieljhkim/modlay/internal/graph"
)

// Host configures modules the way their build plugins would: when a module
// declares a capability, an extension is attached with the capability
// defaults and then the capability's own finalize values are written.
type Host struct {
	manifest *Manifest
	graph    *graph.Graph
	logger   *slog.Logger
}

// NewHost creates a host for modules of g described by m.
func NewHost(m *Manifest, g *graph.Graph, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Host{manifest: m, graph: g, logger: logger}
}

// Configure runs the module's plugin.
func (h *Host) Configure(ctx context.Context, m *graph.Module) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	spec, ok := h.manifest.Spec(m.Name())
	if !ok || !spec.HasCapability() {
		h.logger.Debug("module has no capability", "module", m.Name())
		return nil
	}

	var attrs graph.Attributes
	spec.Defaults.apply(&attrs)
	ext := graph.NewExtension(spec.Kind(), attrs)
	if err := h.graph.Attach(m.Name(), ext); err != nil {
		return fmt.Errorf("failed to attach %s capability: %w", spec.Kind(), err)
	}
	ext.Update(spec.Finalize.apply)

	h.logger.Debug("capability attached", "module", m.Name(), "kind", spec.Kind().String())
	return nil
}
