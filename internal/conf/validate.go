// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/labstack/gommon/bytes"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"
)

var (
	validBackends   = []string{"tflite", "onnx"}
	validResamplers = []string{"bicubic", "bilinear", "nearest", "lanczos3", "catmullrom"}
	validLocales    = []language.Tag{language.English, language.Indonesian}
)

// ValidationError collects every validation failure found in Settings
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateClassifierSettings,
		validateDatastoreSettings,
		validateWebServerSettings,
		validateSecuritySettings,
		validateDashboardSettings,
		validateMQTTSettings,
		validateNotificationSettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateClassifierSettings(s *Settings) error {
	c := &s.Classifier
	if c.ModelPath == "" {
		return fmt.Errorf("classifier.modelpath is required")
	}
	if c.Backend != "" && !slices.Contains(validBackends, c.Backend) {
		return fmt.Errorf("classifier.backend must be one of %v, got %q", validBackends, c.Backend)
	}
	if c.Resampler == "" {
		c.Resampler = "bicubic"
	}
	if !slices.Contains(validResamplers, c.Resampler) {
		return fmt.Errorf("classifier.resampler must be one of %v, got %q", validResamplers, c.Resampler)
	}
	if c.Threads < 0 || c.MaxConcurrent < 0 {
		return fmt.Errorf("classifier.threads and classifier.maxconcurrent must be non-negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("classifier.timeout must not be negative")
	}
	if c.ModelSHA256 != "" {
		if err := validateEnvSHA256(c.ModelSHA256); err != nil {
			return fmt.Errorf("classifier.modelsha256: %w", err)
		}
	}
	return nil
}

func validateDatastoreSettings(s *Settings) error {
	d := &s.Datastore
	switch {
	case d.SQLite.Enabled && d.MySQL.Enabled:
		return fmt.Errorf("only one of datastore.sqlite and datastore.mysql can be enabled")
	case !d.SQLite.Enabled && !d.MySQL.Enabled:
		return fmt.Errorf("one of datastore.sqlite or datastore.mysql must be enabled")
	case d.SQLite.Enabled && d.SQLite.Path == "":
		return fmt.Errorf("datastore.sqlite.path is required")
	case d.MySQL.Enabled && (d.MySQL.Host == "" || d.MySQL.Database == ""):
		return fmt.Errorf("datastore.mysql.host and datastore.mysql.database are required")
	}
	if d.MaxOpenConns < 0 || d.MaxIdleConns < 0 {
		return fmt.Errorf("datastore connection pool sizes must be non-negative")
	}
	return nil
}

func validateWebServerSettings(s *Settings) error {
	w := &s.WebServer
	if _, _, err := net.SplitHostPort(w.Listen); err != nil {
		return fmt.Errorf("webserver.listen %q is not a valid address: %w", w.Listen, err)
	}
	if w.MaxUpload != "" {
		if err := validateEnvByteSize(w.MaxUpload); err != nil {
			return fmt.Errorf("webserver.maxupload: %w", err)
		}
	}
	if w.AutoTLS && w.Host == "" {
		return fmt.Errorf("webserver.host is required when webserver.autotls is enabled")
	}
	return nil
}

func validateSecuritySettings(s *Settings) error {
	sec := &s.Security
	if sec.BcryptCost == 0 {
		sec.BcryptCost = bcrypt.DefaultCost
	}
	if sec.BcryptCost < bcrypt.MinCost || sec.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("security.bcryptcost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if sec.SessionMaxAge < 0 {
		return fmt.Errorf("security.sessionmaxage must not be negative")
	}
	if sec.LoginRate < 0 || sec.LoginBurst < 0 {
		return fmt.Errorf("security.loginrate and security.loginburst must not be negative")
	}
	return nil
}

func validateDashboardSettings(s *Settings) error {
	if s.Dashboard.Locale == "" {
		return nil
	}
	tag, err := language.Parse(s.Dashboard.Locale)
	if err != nil {
		return fmt.Errorf("dashboard.locale %q: %w", s.Dashboard.Locale, err)
	}
	matcher := language.NewMatcher(validLocales)
	if _, _, conf := matcher.Match(tag); conf == language.No {
		return fmt.Errorf("dashboard.locale %q is not supported", s.Dashboard.Locale)
	}
	return nil
}

func validateMQTTSettings(s *Settings) error {
	m := &s.MQTT
	if !m.Enabled {
		return nil
	}
	if err := validateEnvURL(m.Broker); err != nil {
		return fmt.Errorf("mqtt.broker: %w", err)
	}
	if strings.TrimSpace(m.Topic) == "" {
		return fmt.Errorf("mqtt.topic is required when mqtt is enabled")
	}
	return nil
}

func validateNotificationSettings(s *Settings) error {
	n := &s.Notification
	if !n.Enabled {
		return nil
	}
	if len(n.URLs) == 0 {
		return fmt.Errorf("notification.urls must not be empty when notifications are enabled")
	}
	if n.MinConfidence < 0 || n.MinConfidence > 100 {
		return fmt.Errorf("notification.minconfidence must be between 0 and 100")
	}
	return nil
}

// MaxUploadBytes returns the parsed upload limit, 0 when unset
func (w *WebServerSettings) MaxUploadBytes() int64 {
	if w.MaxUpload == "" {
		return 0
	}
	n, err := bytes.Parse(w.MaxUpload)
	if err != nil {
		return 0
	}
	return n
}
