package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/modlay/internal/metrics"
)

type validateResult struct {
	Fingerprint string   `json:"fingerprint"`
	Sources     []string `json:"sources"`
	Items       []string `json:"items"`
	Pins        int      `json:"pins"`
	Edges       int      `json:"edges"`
	Order       []string `json:"order,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the policy and the module ordering",
	Long: `Load and merge every policy source, reporting conflicts between them.

When a manifest is present, the ordering constraints are also checked against
the module graph: unknown modules and ordering cycles are reported, and the
configuration order is printed. No module is configured.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := loadPolicy()
		if err != nil {
			printConflict(err)
			return err
		}

		result := validateResult{
			Fingerprint: set.Fingerprint(),
			Sources:     set.Sources(),
			Items:       set.Items(),
			Pins:        len(set.Pins()),
			Edges:       len(set.Ordering()),
		}

		exists, err := fs.Exists(settings.ManifestPath())
		if err != nil {
			return fmt.Errorf("failed to check manifest: %w", err)
		}
		if exists {
			m, err := loadManifest()
			if err != nil {
				return err
			}
			eng, _, err := newEngine(m, set, metrics.NoopRecorder{})
			if err != nil {
				return err
			}
			sched, err := eng.Schedule()
			if err != nil {
				return err
			}
			result.Order = sched.Order()
		}

		if jsonOutput {
			return outputJSON(result)
		}

		PrintSection("Policy")
		PrintLabelValue("Fingerprint", shortFingerprint(result.Fingerprint))
		PrintLabelValue("Sources", strings.Join(result.Sources, ", "))
		PrintLabelValue("Pins", fmt.Sprint(result.Pins))
		PrintLabelValue("Ordering edges", fmt.Sprint(result.Edges))
		if len(result.Items) > 0 {
			PrintLabelValue("Module items", strings.Join(result.Items, ", "))
		}
		fmt.Fprintln(stdout)

		if !exists {
			PrintWarning(fmt.Sprintf("No manifest at %s, ordering not checked", settings.Manifest))
			return nil
		}
		PrintSubsection("Configuration order:")
		PrintList(result.Order, 1)
		fmt.Fprintln(stdout)
		PrintSuccess("Policy is valid")
		return nil
	},
}
