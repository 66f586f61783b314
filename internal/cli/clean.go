package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanDryRun bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the relocated output directory",
	Long: `Remove the shared output directory the policy relocates module outputs to.

The directory is resolved against the project root. The project root, its
ancestors, the home directory and filesystem roots are never removed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := loadPolicy()
		if err != nil {
			printConflict(err)
			return err
		}

		base := set.Relocation().Base
		if base == "" {
			PrintInfo("Policy does not relocate outputs, nothing to clean")
			return nil
		}
		if err := fs.ValidateRemovalTarget(base, settings.Root); err != nil {
			return err
		}
		target := settings.Resolve(base)

		exists, err := fs.Exists(target)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", target, err)
		}
		if !exists {
			PrintInfo(fmt.Sprintf("%s does not exist", target))
			return nil
		}

		if cleanDryRun {
			PrintInfo(fmt.Sprintf("Would remove %s", target))
			return nil
		}

		logger.Info("removing output directory", "path", target)
		if err := fs.RemoveAll(target); err != nil {
			return fmt.Errorf("failed to remove %s: %w", target, err)
		}
		PrintSuccess(fmt.Sprintf("Removed %s", target))
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "Show what would be removed without removing it")
}
