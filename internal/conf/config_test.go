package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tests in this file share the global viper instance and must not run in parallel

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadEmbeddedDefaults(t *testing.T) {
	resetViper(t)

	data, err := configFiles.ReadFile("config.yaml")
	require.NoError(t, err)
	path := writeConfig(t, string(data))

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "model/damage_classifier.tflite", settings.Classifier.ModelPath)
	assert.Equal(t, "bicubic", settings.Classifier.Resampler)
	assert.Equal(t, 30*time.Second, settings.Classifier.Timeout)
	assert.True(t, settings.Datastore.SQLite.Enabled)
	assert.Equal(t, time.Minute, settings.Datastore.CacheTTL)
	assert.Equal(t, ":8080", settings.WebServer.Listen)
	assert.True(t, settings.WebServer.StoreImages)
	assert.Equal(t, int64(10*1024*1024), settings.WebServer.MaxUploadBytes())
	assert.Equal(t, 168*time.Hour, settings.Security.SessionMaxAge)
	assert.Equal(t, []string{"Severe Damage"}, settings.Notification.Labels)
	assert.Equal(t, "info", settings.Logging.DefaultLevel)
	require.NotNil(t, settings.Logging.FileOutput)
	assert.Equal(t, 10, settings.Logging.FileOutput.MaxRotatedFiles)
	assert.Contains(t, settings.Logging.ModuleOutputs, "auth")
	assert.Same(t, settings, GetSettings())
}

func TestLoadPersistsGeneratedSessionSecret(t *testing.T) {
	resetViper(t)

	path := writeConfig(t, "classifier:\n  modelpath: m.tflite\n")

	settings, err := Load(path)
	require.NoError(t, err)
	require.Len(t, settings.Security.SessionSecret, 43)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), settings.Security.SessionSecret)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	resetViper(t)

	t.Setenv("BRIXFIX_CLASSIFIER_BACKEND", "onnx")
	t.Setenv("BRIXFIX_MAXUPLOAD", "2MB")
	t.Setenv("BRIXFIX_SESSION_SECRET", "from-env")

	path := writeConfig(t, "classifier:\n  modelpath: m.onnx\n")

	settings, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "onnx", settings.Classifier.Backend)
	assert.Equal(t, int64(2*1024*1024), settings.WebServer.MaxUploadBytes())
	assert.Equal(t, "from-env", settings.Security.SessionSecret)
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	resetViper(t)

	t.Setenv("BRIXFIX_CLASSIFIER_RESAMPLER", "sinc")
	path := writeConfig(t, "classifier:\n  modelpath: m.tflite\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BRIXFIX_CLASSIFIER_RESAMPLER")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	resetViper(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestCreateDefaultConfig(t *testing.T) {
	resetViper(t)

	dir := filepath.Join(t.TempDir(), "brixfix")
	require.NoError(t, createDefaultConfig(dir))

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), `sessionsecret: ""`)
	assert.Contains(t, string(data), "# brixfix configuration")
	assert.Len(t, viper.GetString("security.sessionsecret"), 43)
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	resetViper(t)

	path := writeConfig(t, "")
	settings := &Settings{}
	settings.Classifier.ModelPath = "models/x.onnx"
	settings.Classifier.Timeout = 5 * time.Second
	settings.Datastore.SQLite.Enabled = true
	settings.Datastore.SQLite.Path = "x.db"
	settings.Security.SessionSecret = "s3cret"
	settings.WebServer.Listen = ":9000"

	require.NoError(t, SaveYAMLConfig(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "models/x.onnx", loaded.Classifier.ModelPath)
	assert.Equal(t, 5*time.Second, loaded.Classifier.Timeout)
	assert.Equal(t, "s3cret", loaded.Security.SessionSecret)
}

func TestGenerateRandomSecretUnique(t *testing.T) {
	a, b := GenerateRandomSecret(), GenerateRandomSecret()
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
