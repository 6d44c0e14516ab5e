// config.go: settings struct for brixfix and the functions that load and save it.
package conf

import (
	"bytes"
	"crypto/rand"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/brixfix/brixfix-go/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// ONNXSettings configures the onnxruntime backend
type ONNXSettings struct {
	LibraryPath string // path to the onnxruntime shared library, empty uses the system default
	InputName   string // model input tensor name
	OutputName  string // model output tensor name
}

// ClassifierSettings contains settings for the inference adapter
type ClassifierSettings struct {
	Backend       string        // "tflite" or "onnx", empty infers from the model file extension
	ModelPath     string        // path to the model file
	ModelURL      string        // optional download location used when ModelPath does not exist
	ModelSHA256   string        // optional hex digest the downloaded model must match
	Threads       int           // interpreter threads, 0 uses the physical core count
	UseXNNPACK    bool          // enable the XNNPACK delegate for tflite
	Resampler     string        // bicubic, bilinear, nearest, lanczos3 or catmullrom
	MaxConcurrent int           // concurrent classifications admitted by the web server, 0 uses CPU count
	Timeout       time.Duration // upper bound for one classification
	ONNX          ONNXSettings
}

// SQLiteSettings configures the SQLite datastore
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings configures the MySQL datastore
type MySQLSettings struct {
	Enabled  bool
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DatastoreSettings contains database settings
type DatastoreSettings struct {
	SQLite          SQLiteSettings
	MySQL           MySQLSettings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	CacheTTL        time.Duration // lifetime of cached label aggregates
	SlowQuery       time.Duration // statements slower than this are logged at warn
}

// WebServerSettings contains settings for the REST API and dashboard
type WebServerSettings struct {
	Listen          string        // listen address, e.g. ":8080"
	MaxUpload       string        // upload body limit, e.g. "10MB"
	StoreImages     bool          // store the uploaded image with each detection
	ShutdownTimeout time.Duration // graceful shutdown bound
	AutoTLS         bool          // obtain certificates with ACME
	Host            string        // host name for AutoTLS
	CORSOrigins     []string      // allowed CORS origins, empty allows all
}

// SecuritySettings contains session and credential settings
type SecuritySettings struct {
	SessionSecret string        // cookie signing key, generated on first run
	SessionMaxAge time.Duration // session cookie lifetime
	SecureCookies bool          // set the Secure attribute on session cookies
	BcryptCost    int           // bcrypt work factor
	LoginRate     float64       // login attempts per second per client
	LoginBurst    int           // login burst size per client
}

// DashboardSettings contains settings for the server-rendered dashboard
type DashboardSettings struct {
	Enabled bool
	Locale  string // display language for labels, "en" or "id"
}

// TelemetrySettings configures the Prometheus endpoint
type TelemetrySettings struct {
	Enabled bool
	Listen  string
}

// SentrySettings configures error reporting
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64
}

// MQTTSettings configures detection event publishing
type MQTTSettings struct {
	Enabled  bool
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Username string
	Password string
	Topic    string
	Retain   bool
}

// NotificationSettings configures alerts for severe detections
type NotificationSettings struct {
	Enabled       bool
	URLs          []string // shoutrrr service URLs
	Labels        []string // labels that trigger an alert
	MinConfidence float64  // minimum confidence percentage
	Timeout       time.Duration
}

// Settings contains all configuration options for brixfix.
type Settings struct {
	Debug bool // true to enable debug mode

	Logging      logger.LoggingConfig
	Classifier   ClassifierSettings
	Datastore    DatastoreSettings
	WebServer    WebServerSettings
	Security     SecuritySettings
	Dashboard    DashboardSettings
	Telemetry    TelemetrySettings
	Sentry       SentrySettings
	MQTT         MQTTSettings
	Notification NotificationSettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file, environment variables and bound
// flags into a new Settings. An empty configFile searches the default
// config paths and writes the embedded default config when none exists.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	if settings.Security.SessionSecret == "" {
		if err := persistSessionSecret(settings); err != nil {
			return nil, err
		}
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper registers defaults and environment bindings and reads the config file.
func initViper(configFile string) error {
	SetDefaults()

	if err := bindEnvVars(); err != nil {
		return err
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config with a fresh
// session secret into dir and reads it back.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	secret := GenerateRandomSecret()
	out := bytes.Replace(data, []byte(`sessionsecret: ""`), []byte(`sessionsecret: "`+secret+`"`), 1)

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, out, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// persistSessionSecret generates a session secret for configs that lack
// one and writes it back so that sessions survive restarts.
func persistSessionSecret(settings *Settings) error {
	settings.Security.SessionSecret = GenerateRandomSecret()
	if settings.Security.SessionSecret == "" {
		return fmt.Errorf("unable to generate session secret")
	}

	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		return nil
	}
	if err := SaveYAMLConfig(configPath, settings); err != nil {
		GetLogger().Warn("session secret not persisted, sessions will not survive restart",
			logger.String("path", configPath), logger.Error(err))
	}
	return nil
}

// GetSettings returns the most recently loaded settings
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath. The file is replaced
// atomically; comments and ordering are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}

// GenerateRandomSecret returns 32 random bytes encoded as unpadded
// URL-safe base64 (43 characters).
func GenerateRandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		GetLogger().Error("failed to generate random secret", logger.Error(err))
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
