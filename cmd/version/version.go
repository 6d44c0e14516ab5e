package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brixfix/brixfix-go/internal/buildinfo"
)

// Command creates a new cobra.Command to print build information.
func Command(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), build.String())
			return nil
		},
	}
}
