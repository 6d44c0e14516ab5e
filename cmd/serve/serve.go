package serve

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brixfix/brixfix-go/internal/analysis"
	"github.com/brixfix/brixfix-go/internal/buildinfo"
	"github.com/brixfix/brixfix-go/internal/conf"
)

// Command creates the serve command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API and dashboard",
		Long:  "Start the web server with the REST API and dashboard. The metrics endpoint, MQTT publishing and notifications start when enabled.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.Serve(cmd.Context(), settings, build)
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// setupFlags binds serve flags to their config keys; a flag that is set
// overrides the config file.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("listen", "", "Listen address of the web server, e.g. :8080")
	cmd.Flags().String("model", "", "Path to the classification model")
	cmd.Flags().Bool("telemetry", false, "Enable the Prometheus metrics endpoint")

	bindings := map[string]string{
		"webserver.listen":     "listen",
		"classifier.modelpath": "model",
		"telemetry.enabled":    "telemetry",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}
	return nil
}
