package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/modlay/internal/engine"
	"github.com/danieljhkim/modlay/internal/metrics"
)

var (
	settleReport   string
	settleMetrics  string
	runMode        string
	runConcurrency int
)

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Configure every module and apply the policy",
	Long: `Configure every module of the manifest in dependency order, settle
capability attachments and apply the override policy.

Every module whose capability attached receives the attribute overlay (and its
relocated output directory when the policy sets an output base). Modules
without a capability are left alone. A mandatory ordering constraint naming a
module without a capability fails the run and nothing is applied.`,
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

		var recorder metrics.Recorder = metrics.NoopRecorder{}
		var prom *metrics.PrometheusRecorder
		if settleMetrics != "" {
			prom = metrics.NewPrometheusRecorder(nil)
			recorder = prom
		}

		eng, host, err := newEngine(m, set, recorder)
		if err != nil {
			return err
		}

		report, runErr := eng.Run(context.Background(), host)

		if settleReport != "" && report != nil {
			if err := writeJSONFile(settleReport, report); err != nil {
				return err
			}
		}
		if prom != nil {
			path := settings.Resolve(settleMetrics)
			if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("failed to create metrics directory: %w", err)
			}
			if err := prom.WriteTextfile(path); err != nil {
				return err
			}
		}

		if runErr != nil {
			printViolations(runErr)
			return runErr
		}

		if jsonOutput {
			return outputJSON(report)
		}
		printReport(report)
		return nil
	},
}

func printReport(report *engine.Report) {
	PrintSection("Modules")
	rows := make([][]string, 0, len(report.Modules))
	for _, m := range report.Modules {
		row := []string{m.Path, m.Kind.String(), "-", "-", "-", "-", "-"}
		if m.Attributes != nil {
			row[2] = sdk(m.Attributes.CompileSDK)
			row[3] = sdk(m.Attributes.TargetSDK)
			row[4] = sdk(m.Attributes.MinSDK)
			if m.Attributes.OutputDir != "" {
				row[5] = m.Attributes.OutputDir
			}
		}
		if m.Overlaid() {
			row[6] = strings.Join(m.Items, ",")
		}
		rows = append(rows, row)
	}
	PrintTable([]string{"MODULE", "KIND", "COMPILE", "TARGET", "MIN", "OUTPUT", "APPLIED"}, rows)
	fmt.Fprintln(stdout)

	PrintSuccess(fmt.Sprintf("Applied %s at %s",
		PrintCount(len(report.Records), "item", "items"),
		PrintCount(report.Checkpoints, "checkpoint", "checkpoints")))
	PrintLabelValue("Policy", shortFingerprint(report.Fingerprint))
}

func sdk(v int) string {
	if v == 0 {
		return "-"
	}
	return strconv.Itoa(v)
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func init() {
	settleCmd.Flags().StringVar(&settleReport, "report", "", "Write the JSON report to this file")
	settleCmd.Flags().StringVar(&settleMetrics, "metrics", "", "Write Prometheus metrics in textfile format to this file")
	settleCmd.Flags().StringVar(&runMode, "mode", "", "Observer mode: push or poll (default: $MODLAY_MODE or push)")
	settleCmd.Flags().IntVarP(&runConcurrency, "concurrency", "c", 0, "Modules configured at once (default: $MODLAY_CONCURRENCY or 1)")
}
