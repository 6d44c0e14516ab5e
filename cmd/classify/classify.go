package classify

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brixfix/brixfix-go/internal/analysis"
	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/detection"
	"github.com/brixfix/brixfix-go/internal/logger"
)

// Command creates the classify command.
func Command(settings *conf.Settings) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "classify <image|directory>...",
		Short: "Classify building images",
		Long:  "Classify image files and directories of images and print the damage level of each. With --email the results are also recorded.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			files, err := analysis.CollectImages(args)
			if err != nil {
				return err
			}

			svc, err := analysis.Init(ctx, settings, nil)
			if err != nil {
				return err
			}
			defer func() {
				if err := svc.Close(); err != nil {
					analysis.GetLogger().Warn("failed to close services", logger.Error(err))
				}
			}()

			opts := analysis.FileOptions{StoreImages: settings.WebServer.StoreImages}
			if email != "" {
				opts.Email = email
				opts.Store = svc.Store
			}

			results, err := analysis.ClassifyFiles(ctx, svc.Classifier, files, opts)
			if werr := analysis.WriteResults(cmd.OutOrStdout(), results, detection.MatchLocale(settings.Dashboard.Locale)); werr != nil {
				return werr
			}
			if err != nil {
				return err
			}

			if failed := countFailed(results); failed > 0 {
				return fmt.Errorf("%d of %d images failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Record results for this user")
	return cmd
}

func countFailed(results []analysis.FileResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
