package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brixfix/brixfix-go/internal/analysis"
	"github.com/brixfix/brixfix-go/internal/conf"
)

// Command creates the migrate command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := analysis.OpenStore(settings, nil)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", store.Engine())
			return nil
		},
	}
}
