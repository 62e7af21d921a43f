package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"review-reply-automation/internal/config"
	"review-reply-automation/internal/domain"
	"review-reply-automation/internal/identity"
)

// NewIdentityCmd creates the identity command
func NewIdentityCmd(app *App) *cobra.Command {
	var (
		raw      domain.RawReview
		date     string
		platform string
	)

	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Print the fingerprint a review would be stored under",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := loadConfig(false)
			if err != nil {
				return err
			}
			defer cleanup()

			if date != "" {
				d, err := time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("invalid --date %q: %w", date, err)
				}
				raw.Date = d
			}

			fields, err := identityFields(cfg, platform, raw.StoreCode)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), identity.NewResolver(fields).Fingerprint(raw))
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "Platform code (default: the store's platform)")
	cmd.Flags().StringVar(&raw.StoreCode, "store", "", "Store code")
	cmd.Flags().StringVar(&raw.Author, "author", "", "Review author")
	cmd.Flags().StringVar(&raw.Text, "text", "", "Review text")
	cmd.Flags().StringVar(&raw.OrderID, "order", "", "Order id")
	cmd.Flags().StringVar(&date, "date", "", "Review date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&raw.Rating, "rating", 0, "Star rating")
	cmd.MarkFlagRequired("store")
	return cmd
}

// identityFields resolves the platform's identity field set. An explicit
// platform wins over the one configured for the store.
func identityFields(cfg *config.Config, platform, store string) (identity.Fields, error) {
	if platform == "" {
		s, ok := cfg.Store(store)
		if !ok {
			return identity.Fields{}, fmt.Errorf("unknown store %s, pass --platform", store)
		}
		platform = s.Platform
	}
	p, ok := cfg.Platforms[platform]
	if !ok {
		return identity.Fields{}, fmt.Errorf("unknown platform %s", platform)
	}
	return p.IdentityFields, nil
}
