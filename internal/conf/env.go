// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/bytes"
	"github.com/spf13/viper"
)

// envBinding maps one configuration key to its environment variable
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "BRIXFIX_DEBUG", validateEnvBool},

		{"classifier.backend", "BRIXFIX_CLASSIFIER_BACKEND", validateEnvBackend},
		{"classifier.modelpath", "BRIXFIX_CLASSIFIER_MODELPATH", nil},
		{"classifier.modelurl", "BRIXFIX_CLASSIFIER_MODELURL", validateEnvURL},
		{"classifier.modelsha256", "BRIXFIX_CLASSIFIER_MODELSHA256", validateEnvSHA256},
		{"classifier.threads", "BRIXFIX_CLASSIFIER_THREADS", validateEnvNonNegativeInt},
		{"classifier.usexnnpack", "BRIXFIX_CLASSIFIER_USEXNNPACK", validateEnvBool},
		{"classifier.resampler", "BRIXFIX_CLASSIFIER_RESAMPLER", validateEnvResampler},
		{"classifier.maxconcurrent", "BRIXFIX_CLASSIFIER_MAXCONCURRENT", validateEnvNonNegativeInt},
		{"classifier.timeout", "BRIXFIX_CLASSIFIER_TIMEOUT", validateEnvDuration},
		{"classifier.onnx.librarypath", "BRIXFIX_ONNX_LIBRARYPATH", nil},

		{"datastore.sqlite.enabled", "BRIXFIX_SQLITE_ENABLED", validateEnvBool},
		{"datastore.sqlite.path", "BRIXFIX_SQLITE_PATH", nil},
		{"datastore.mysql.enabled", "BRIXFIX_MYSQL_ENABLED", validateEnvBool},
		{"datastore.mysql.host", "BRIXFIX_MYSQL_HOST", nil},
		{"datastore.mysql.port", "BRIXFIX_MYSQL_PORT", validateEnvPort},
		{"datastore.mysql.username", "BRIXFIX_MYSQL_USERNAME", nil},
		{"datastore.mysql.password", "BRIXFIX_MYSQL_PASSWORD", nil},
		{"datastore.mysql.database", "BRIXFIX_MYSQL_DATABASE", nil},

		{"webserver.listen", "BRIXFIX_LISTEN", nil},
		{"webserver.maxupload", "BRIXFIX_MAXUPLOAD", validateEnvByteSize},
		{"webserver.storeimages", "BRIXFIX_STOREIMAGES", validateEnvBool},

		{"security.sessionsecret", "BRIXFIX_SESSION_SECRET", nil},
		{"security.securecookies", "BRIXFIX_SECURE_COOKIES", validateEnvBool},

		{"sentry.enabled", "BRIXFIX_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "BRIXFIX_SENTRY_DSN", validateEnvURL},

		{"mqtt.enabled", "BRIXFIX_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "BRIXFIX_MQTT_BROKER", validateEnvURL},
		{"mqtt.username", "BRIXFIX_MQTT_USERNAME", nil},
		{"mqtt.password", "BRIXFIX_MQTT_PASSWORD", nil},
	}
}

// bindEnvVars binds every environment variable and validates values that are set
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value: %v", binding.EnvVar, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("must be non-negative, got %d", n)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

func validateEnvBackend(value string) error {
	if !slices.Contains(validBackends, value) {
		return fmt.Errorf("must be one of: %s", strings.Join(validBackends, ", "))
	}
	return nil
}

func validateEnvResampler(value string) error {
	if !slices.Contains(validResamplers, value) {
		return fmt.Errorf("must be one of: %s", strings.Join(validResamplers, ", "))
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL must include scheme and host")
	}
	return nil
}

func validateEnvSHA256(value string) error {
	if len(value) != 64 {
		return fmt.Errorf("sha256 digest must be 64 hex characters, got %d", len(value))
	}
	for _, r := range value {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return fmt.Errorf("sha256 digest contains non-hex character %q", r)
		}
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvByteSize(value string) error {
	n, err := bytes.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid size: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("size must be positive")
	}
	return nil
}
