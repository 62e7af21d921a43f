package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCmd creates the version command
func NewVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := app.versionInfo
			if v.Version == "" {
				v.Version = "dev"
			}
			if v.Commit == "" {
				v.Commit = "unknown"
			}
			if v.Date == "" {
				v.Date = "unknown"
			}

			fmt.Fprintf(cmd.OutOrStdout(), "replier version %s\n", v.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", v.Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "built: %s\n", v.Date)
			return nil
		},
	}
}
