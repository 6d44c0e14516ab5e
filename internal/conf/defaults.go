// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// SetDefaults registers default values for every configuration key.
// Commands call it before defining flags so that flag defaults match.
func SetDefaults() {
	viper.SetDefault("debug", false)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", true)
	viper.SetDefault("logging.file_output.path", "logs/brixfix.log")
	viper.SetDefault("logging.file_output.level", "info")
	viper.SetDefault("logging.file_output.max_size", 100)
	viper.SetDefault("logging.file_output.max_age", 30)
	viper.SetDefault("logging.file_output.max_rotated_files", 10)

	viper.SetDefault("classifier.backend", "")
	viper.SetDefault("classifier.modelpath", "model/damage_classifier.tflite")
	viper.SetDefault("classifier.modelurl", "")
	viper.SetDefault("classifier.modelsha256", "")
	viper.SetDefault("classifier.threads", 0)
	viper.SetDefault("classifier.usexnnpack", true)
	viper.SetDefault("classifier.resampler", "bicubic")
	viper.SetDefault("classifier.maxconcurrent", 0)
	viper.SetDefault("classifier.timeout", 30*time.Second)
	viper.SetDefault("classifier.onnx.librarypath", "")
	viper.SetDefault("classifier.onnx.inputname", "input")
	viper.SetDefault("classifier.onnx.outputname", "output")

	viper.SetDefault("datastore.sqlite.enabled", true)
	viper.SetDefault("datastore.sqlite.path", "brixfix.db")
	viper.SetDefault("datastore.mysql.enabled", false)
	viper.SetDefault("datastore.mysql.host", "localhost")
	viper.SetDefault("datastore.mysql.port", "3306")
	viper.SetDefault("datastore.mysql.username", "brixfix")
	viper.SetDefault("datastore.mysql.database", "brixfix")
	viper.SetDefault("datastore.maxopenconns", 10)
	viper.SetDefault("datastore.maxidleconns", 5)
	viper.SetDefault("datastore.connmaxlifetime", time.Hour)
	viper.SetDefault("datastore.cachettl", time.Minute)
	viper.SetDefault("datastore.slowquery", 200*time.Millisecond)

	viper.SetDefault("webserver.listen", ":8080")
	viper.SetDefault("webserver.maxupload", "10MB")
	viper.SetDefault("webserver.storeimages", true)
	viper.SetDefault("webserver.shutdowntimeout", 10*time.Second)
	viper.SetDefault("webserver.autotls", false)
	viper.SetDefault("webserver.host", "")
	viper.SetDefault("webserver.corsorigins", []string{})

	viper.SetDefault("security.sessionsecret", "")
	viper.SetDefault("security.sessionmaxage", 7*24*time.Hour)
	viper.SetDefault("security.securecookies", false)
	viper.SetDefault("security.bcryptcost", 10)
	viper.SetDefault("security.loginrate", 1.0)
	viper.SetDefault("security.loginburst", 5)

	viper.SetDefault("dashboard.enabled", true)
	viper.SetDefault("dashboard.locale", "en")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")
	viper.SetDefault("sentry.samplerate", 1.0)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientid", "brixfix")
	viper.SetDefault("mqtt.topic", "brixfix/detections")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urls", []string{})
	viper.SetDefault("notification.labels", []string{"Severe Damage"})
	viper.SetDefault("notification.minconfidence", 50.0)
	viper.SetDefault("notification.timeout", 10*time.Second)
}
