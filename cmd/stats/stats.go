package stats

import (
	"github.com/spf13/cobra"

	"github.com/brixfix/brixfix-go/internal/analysis"
	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/detection"
)

// Command creates the stats command.
func Command(settings *conf.Settings) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print detection counts per damage level",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := analysis.OpenStore(settings, nil)
			if err != nil {
				return err
			}
			defer store.Close()

			var scope *string
			if email != "" {
				scope = &email
			}
			stats, err := store.AggregateByLabel(cmd.Context(), scope)
			if err != nil {
				return err
			}
			return analysis.WriteStats(cmd.OutOrStdout(), stats, detection.MatchLocale(settings.Dashboard.Locale))
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Only count detections of this user")
	return cmd
}
