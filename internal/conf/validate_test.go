package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Classifier.ModelPath = "model.tflite"
	s.Datastore.SQLite.Enabled = true
	s.Datastore.SQLite.Path = "brixfix.db"
	s.WebServer.Listen = ":8080"
	s.WebServer.MaxUpload = "10MB"
	s.Dashboard.Locale = "en"
	return s
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{name: "valid", mutate: func(*Settings) {}},
		{name: "indonesian locale", mutate: func(s *Settings) { s.Dashboard.Locale = "id" }},
		{name: "missing model path", mutate: func(s *Settings) { s.Classifier.ModelPath = "" }, wantErr: "classifier.modelpath"},
		{name: "unknown backend", mutate: func(s *Settings) { s.Classifier.Backend = "torch" }, wantErr: "classifier.backend"},
		{name: "unknown resampler", mutate: func(s *Settings) { s.Classifier.Resampler = "sinc" }, wantErr: "classifier.resampler"},
		{name: "bad digest", mutate: func(s *Settings) { s.Classifier.ModelSHA256 = "xyz" }, wantErr: "modelsha256"},
		{name: "two databases", mutate: func(s *Settings) { s.Datastore.MySQL.Enabled = true }, wantErr: "only one"},
		{name: "no database", mutate: func(s *Settings) { s.Datastore.SQLite.Enabled = false }, wantErr: "must be enabled"},
		{name: "bad listen", mutate: func(s *Settings) { s.WebServer.Listen = "8080" }, wantErr: "webserver.listen"},
		{name: "bad upload size", mutate: func(s *Settings) { s.WebServer.MaxUpload = "lots" }, wantErr: "maxupload"},
		{name: "autotls without host", mutate: func(s *Settings) { s.WebServer.AutoTLS = true }, wantErr: "webserver.host"},
		{name: "bcrypt cost too high", mutate: func(s *Settings) { s.Security.BcryptCost = 40 }, wantErr: "bcryptcost"},
		{name: "unsupported locale", mutate: func(s *Settings) { s.Dashboard.Locale = "zz-invalid-tag" }, wantErr: "dashboard.locale"},
		{name: "mqtt without topic", mutate: func(s *Settings) {
			s.MQTT.Enabled = true
			s.MQTT.Broker = "tcp://localhost:1883"
		}, wantErr: "mqtt.topic"},
		{name: "notification without urls", mutate: func(s *Settings) { s.Notification.Enabled = true }, wantErr: "notification.urls"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(s)

			err := ValidateSettings(s)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSettingsFillsDefaults(t *testing.T) {
	t.Parallel()

	s := validSettings()
	require.NoError(t, ValidateSettings(s))
	assert.Equal(t, "bicubic", s.Classifier.Resampler)
	assert.Equal(t, 10, s.Security.BcryptCost)
}

func TestEnvValidators(t *testing.T) {
	t.Parallel()

	require.NoError(t, validateEnvSHA256("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"))
	require.Error(t, validateEnvSHA256("e3b0"))
	require.NoError(t, validateEnvPort("3306"))
	require.Error(t, validateEnvPort("70000"))
	require.NoError(t, validateEnvURL("tcp://broker:1883"))
	require.Error(t, validateEnvURL("broker"))
	require.NoError(t, validateEnvDuration("250ms"))
	require.Error(t, validateEnvDuration("-1s"))
	require.NoError(t, validateEnvByteSize("512KB"))
	require.Error(t, validateEnvByteSize("huge"))
}
