package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"review-reply-automation/internal/domain"
	"review-reply-automation/internal/storage"
)

// NewRecordCmd creates the record command group
func NewRecordCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Inspect and repair review records",
	}
	cmd.AddCommand(newRecordGetCmd(), newRecordClearCmd(), newRecordListCmd(), newRecordErrorsCmd())
	return cmd
}

func newRecordGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <identity>",
		Short: "Show the record stored for an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd, func(repo storage.Repository) error {
				rec, err := repo.Get(cmd.Context(), args[0])
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("no record for %s", args[0])
				}
				if err != nil {
					return err
				}
				printRecord(cmd.OutOrStdout(), rec)
				return nil
			})
		},
	}
}

func newRecordClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <identity>",
		Short: "Reset the retry count so the review is attempted again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd, func(repo storage.Repository) error {
				if err := repo.ClearRetries(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared retries for %s\n", args[0])
				return nil
			})
		},
	}
}

func newRecordListCmd() *cobra.Command {
	var (
		store  string
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records of a store by status",
		Long: `List records of a store by status. Without --status every failure
status (FAILED, FORBIDDEN_CONTENT, SUBMISSION_ERROR) is listed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := listStatuses(status)
			if err != nil {
				return err
			}
			return withRepository(cmd, func(repo storage.Repository) error {
				w := cmd.OutOrStdout()
				for _, st := range statuses {
					recs, err := repo.ListByStatus(cmd.Context(), store, st, limit)
					if err != nil {
						return err
					}
					for _, rec := range recs {
						fmt.Fprintf(w, "%s  %-18s retries=%-2d %s  %s\n",
							rec.Identity, rec.Status, rec.RetryCount, rec.UpdatedAt.Format(time.RFC3339), rec.Author)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&store, "store", "", "Store code")
	cmd.Flags().StringVar(&status, "status", "", "Status to list (default: failure statuses)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum records per status")
	cmd.MarkFlagRequired("store")
	return cmd
}

func listStatuses(status string) ([]domain.Status, error) {
	if status != "" {
		st, err := domain.ParseStatus(strings.ToUpper(status))
		if err != nil {
			return nil, err
		}
		return []domain.Status{st}, nil
	}
	var out []domain.Status
	for _, st := range domain.Statuses() {
		if st.IsFailure() {
			out = append(out, st)
		}
	}
	return out, nil
}

func newRecordErrorsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "List the most recent error log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd, func(repo storage.Repository) error {
				entries, err := repo.ListRecentErrors(cmd.Context(), limit)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for _, e := range entries {
					fmt.Fprintf(w, "%s  %-10s %-8s %-22s %s  %s\n",
						e.CreatedAt.Format(time.RFC3339), e.Category, e.StoreCode, e.ErrorType, e.Identity, e.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries")
	return cmd
}

// withRepository opens storage without requiring model or store settings.
func withRepository(cmd *cobra.Command, fn func(storage.Repository) error) error {
	cfg, cleanup, err := loadConfig(false)
	if err != nil {
		return err
	}
	defer cleanup()

	repo, err := openRepository(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer repo.Close()
	return fn(repo)
}

func printRecord(w io.Writer, rec *domain.ReviewRecord) {
	answered := "-"
	if rec.AnsweredAt != nil {
		answered = rec.AnsweredAt.Format(time.RFC3339)
	}
	fmt.Fprintf(w, "identity:    %s\n", rec.Identity)
	fmt.Fprintf(w, "store:       %s (%s) on %s\n", rec.StoreCode, rec.StoreName, rec.PlatformCode)
	fmt.Fprintf(w, "author:      %s\n", rec.Author)
	fmt.Fprintf(w, "rating:      %d\n", rec.Rating)
	fmt.Fprintf(w, "review date: %s\n", rec.ReviewDate.Format("2006-01-02"))
	fmt.Fprintf(w, "status:      %s\n", rec.Status)
	fmt.Fprintf(w, "retries:     %d\n", rec.RetryCount)
	if rec.Category != "" || rec.Reason != "" {
		fmt.Fprintf(w, "reason:      %s %s\n", rec.Category, rec.Reason)
	}
	fmt.Fprintf(w, "updated:     %s\n", rec.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "answered:    %s\n", answered)
	fmt.Fprintf(w, "review:      %s\n", rec.ReviewText)
	if rec.AIReply != "" {
		fmt.Fprintf(w, "reply:       %s\n", rec.AIReply)
	}
}
