package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/modlay/internal/metrics"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what settle would apply without applying it",
	Long: `Configure every module and settle capability attachments, then list the
policy items that would be applied and any mandate violations. Nothing is
written to the modules.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyRunFlags(runMode, runConcurrency); err != nil {
			return err
		}
		set, err := loadPolicy()
		if err != nil {
			printConflict(err)
			return err
		}
		m, err := loadManifest()
		if err != nil {
			return err
		}
		eng, host, err := newEngine(m, set, metrics.NoopRecorder{})
		if err != nil {
			return err
		}

		ctx := context.Background()
		if err := eng.Configure(ctx, host); err != nil {
			return err
		}
		result, err := eng.Plan(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(result.Plan)
		}

		plan := result.Plan
		PrintSection("Dry Run")
		PrintInfo(fmt.Sprintf("Would apply %s to %s",
			PrintCount(len(plan.Operations), "item", "items"),
			PrintCount(len(plan.Modules), "module", "modules")))
		if len(plan.Operations) > 0 {
			PrintSubsection("Operations:")
			ops := make([]string, 0, len(plan.Operations))
			for _, op := range plan.Operations {
				ops = append(ops, fmt.Sprintf("%s (%s): %s = %s", op.Module, op.Kind, op.Item, op.Value))
			}
			PrintList(ops, 1)
		}
		if plan.HasViolations() {
			fmt.Fprintln(stdout)
			PrintSubsection("Violations:")
			for _, v := range plan.Violations {
				PrintError(fmt.Sprintf("%s: %s", v.Module, v.Reason))
			}
			PrintWarning("settle would fail and apply nothing")
		}
		return nil
	},
}

func init() {
	planCmd.Flags().StringVar(&runMode, "mode", "", "Observer mode: push or poll (default: $MODLAY_MODE or push)")
	planCmd.Flags().IntVarP(&runConcurrency, "concurrency", "c", 0, "Modules configured at once (default: $MODLAY_CONCURRENCY or 1)")
}
