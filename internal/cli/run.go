package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"review-reply-automation/internal/runner"
)

// NewRunCmd creates the run command
func NewRunCmd(app *App) *cobra.Command {
	var stores []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one pass over the selected stores",
		Long: `Run one pass over the selected stores and print a summary.
All active stores are processed when no --store flag is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := wire(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			codes := runner.StoreCodes(e.cfg, stores...)
			if len(codes) == 0 {
				return errors.New("no active store matches the selection")
			}

			results := runner.RunAll(ctx, e.runner, codes, e.cfg.Schedule.ParallelStores)
			fmt.Fprint(cmd.OutOrStdout(), renderSummary(codes, results, useColor(cmd.OutOrStdout())))

			failed := 0
			for _, res := range results {
				if res.Err != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d stores failed", failed, len(codes))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&stores, "store", "s", nil, "Store code to process (repeatable)")
	return cmd
}
