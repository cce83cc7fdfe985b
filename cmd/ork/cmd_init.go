package main

import (
	"fmt"
	"os"

	"ork/internal/paths"
	"ork/pkg/config"

	"github.com/spf13/cobra"
)

// defaultBundlesYAML is the commented starting point for bundle overrides.
// The shipped handlers all run without this file; it exists so users have
// somewhere obvious to disable or retarget them.
const defaultBundlesYAML = `# Bundle overrides. Handlers not listed here keep their shipped settings.
#
# bundles:
#   post-tool:
#     handlers:
#       - id: track-usage
#         enabled: false
#   pre-tool:
#     handlers:
#       - id: guard-destructive
#         matcher: "*"
bundles: {}
`

// newInitCmd creates the "ork init" subcommand.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the state dir with default config files",
		Long:  "Creates the ork state directory and writes default config.toml and\nbundles.yaml. Existing files are left untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := paths.Resolve()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			if err := p.EnsureHome(); err != nil {
				return err
			}

			w := cmd.OutOrStdout()

			if _, err := os.Stat(p.ConfigPath); os.IsNotExist(err) {
				if err := config.Write(p.ConfigPath, config.Default()); err != nil {
					return err
				}
				fmt.Fprintf(w, "wrote %s\n", p.ConfigPath)
			} else {
				fmt.Fprintf(w, "kept existing %s\n", p.ConfigPath)
			}

			if _, err := os.Stat(p.BundlesPath); os.IsNotExist(err) {
				if err := os.WriteFile(p.BundlesPath, []byte(defaultBundlesYAML), 0o644); err != nil {
					return fmt.Errorf("write bundles config: %w", err)
				}
				fmt.Fprintf(w, "wrote %s\n", p.BundlesPath)
			} else {
				fmt.Fprintf(w, "kept existing %s\n", p.BundlesPath)
			}

			return nil
		},
	}
}
