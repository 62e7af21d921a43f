// Package cli implements the replier command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// VersionInfo holds build metadata
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// App represents the CLI application with all wired dependencies
type App struct {
	rootCmd *cobra.Command

	configPath string
	verbose    bool

	versionInfo VersionInfo
}

// New creates a new CLI application
func New() *App {
	app := &App{}
	app.setupRootCmd()
	return app
}

// Execute runs the CLI application
func (a *App) Execute() error {
	return a.rootCmd.Execute()
}

// SetVersion sets the version string for the version command
func (a *App) SetVersion(version, commit, date string) {
	a.versionInfo = VersionInfo{Version: version, Commit: commit, Date: date}
}

func (a *App) setupRootCmd() {
	a.rootCmd = &cobra.Command{
		Use:   "replier",
		Short: "Automated replies to food-delivery reviews",
		Long: `replier discovers unanswered reviews on delivery storefronts, decides
which can be answered automatically, writes policy-compliant replies and
tracks every review across runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.configPath != "" {
				os.Setenv("CONFIG_PATH", a.configPath)
			}
			if a.verbose {
				os.Setenv("LOG_LEVEL", "DEBUG")
			}
		},
	}

	a.rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"Path to the config file (default: $CONFIG_PATH or config.yaml)")
	a.rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false,
		"Verbose output")

	a.rootCmd.AddCommand(
		NewServeCmd(a),
		NewRunCmd(a),
		NewRecordCmd(a),
		NewIdentityCmd(a),
		NewVersionCmd(a),
	)
}
