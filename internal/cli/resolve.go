package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/modlay/internal/policy"
)

// resolution is one resolved dependency edge together with the module that
// declared it ("" for coordinates given on the command line).
type resolution struct {
	Module string `json:"module,omitempty"`
	policy.Resolution
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [coordinate...]",
	Short: "Show library versions after pinning",
	Long: `Resolve library versions through the policy's pins.

With arguments, each argument is a group:artifact[:version] coordinate. Without
arguments, every dependency declared in the manifest is resolved, including
transitive ones. A pinned coordinate resolves to its pinned version no matter
what was requested or at what depth.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := loadPolicy()
		if err != nil {
			printConflict(err)
			return err
		}

		var out []resolution
		if len(args) > 0 {
			deps := make([]policy.Dependency, 0, len(args))
			for _, arg := range args {
				c, v, err := policy.ParseCoordinate(arg)
				if err != nil {
					return err
				}
				deps = append(deps, policy.Dependency{Coordinate: c, Version: v})
			}
			for _, r := range set.Resolve(deps) {
				out = append(out, resolution{Resolution: r})
			}
		} else {
			m, err := loadManifest()
			if err != nil {
				return err
			}
			for _, spec := range m.Modules {
				for _, r := range set.Resolve(spec.DeclaredDependencies()) {
					out = append(out, resolution{Module: spec.Name, Resolution: r})
				}
			}
		}

		if jsonOutput {
			if out == nil {
				out = []resolution{}
			}
			return outputJSON(out)
		}

		PrintSection("Resolved Dependencies")
		if len(out) == 0 {
			PrintEmptyState("No dependencies declared")
			return nil
		}
		rows := make([][]string, 0, len(out))
		pinned := 0
		for _, r := range out {
			requested := r.Requested
			if requested == "" {
				requested = "-"
			}
			change := string(r.Change)
			if r.Change == policy.ChangeUnchanged {
				change = ""
			} else {
				pinned++
			}
			rows = append(rows, []string{
				r.Module,
				strings.Repeat("  ", r.Depth) + r.Coordinate.String(),
				requested,
				r.Resolved,
				change,
			})
		}
		PrintTable([]string{"MODULE", "COORDINATE", "REQUESTED", "RESOLVED", "CHANGE"}, rows)
		fmt.Fprintln(stdout)
		PrintInfo(fmt.Sprintf("%s rewritten by pins", PrintCount(pinned, "dependency", "dependencies")))
		return nil
	},
}
