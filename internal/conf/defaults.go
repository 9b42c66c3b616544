// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers the default value of every setting.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "farm-advisor")
	viper.SetDefault("main.environment", "production")

	viper.SetDefault("webserver.host", "")
	viper.SetDefault("webserver.port", 8080)
	viper.SetDefault("webserver.readtimeout", 30*time.Second)
	viper.SetDefault("webserver.writetimeout", 60*time.Second)
	viper.SetDefault("webserver.idletimeout", 120*time.Second)
	viper.SetDefault("webserver.shutdowntimeout", 10*time.Second)
	viper.SetDefault("webserver.bodylimit", "10M")
	viper.SetDefault("webserver.allowedorigins", []string{})

	viper.SetDefault("security.sessionsecret", "")
	viper.SetDefault("security.sessionmaxage", 7*24*time.Hour)
	viper.SetDefault("security.securecookies", false)
	viper.SetDefault("security.bcryptcost", 10)

	viper.SetDefault("models.dir", "models")
	viper.SetDefault("models.irrigation", "irrigation_model.tflite")
	viper.SetDefault("models.pesticide", "pesticide_model.tflite")
	viper.SetDefault("models.health", "health_model.tflite")
	viper.SetDefault("models.yield", "yield_model.tflite")
	viper.SetDefault("models.leaf", "banana_disease_model.tflite")
	viper.SetDefault("models.threads", 0)
	viper.SetDefault("models.usexnnpack", false)

	viper.SetDefault("datastore.type", "sqlite")
	viper.SetDefault("datastore.sqlite.path", "farm-advisor.db")
	viper.SetDefault("datastore.mysql.host", "localhost")
	viper.SetDefault("datastore.mysql.port", 3306)
	viper.SetDefault("datastore.mysql.username", "")
	viper.SetDefault("datastore.mysql.password", "")
	viper.SetDefault("datastore.mysql.database", "smart_farming")
	viper.SetDefault("datastore.mongodb.uri", "mongodb://localhost:27017")
	viper.SetDefault("datastore.mongodb.database", "smart_farming")
	viper.SetDefault("datastore.mongodb.collection", "users")
	viper.SetDefault("datastore.mongodb.timeout", 10*time.Second)

	viper.SetDefault("leafscan.cachettl", 30*time.Minute)
	viper.SetDefault("leafscan.maxbytes", 8<<20)

	viper.SetDefault("seed.enabled", true)
	viper.SetDefault("seed.username", "admin")
	viper.SetDefault("seed.password", "1234")

	viper.SetDefault("notification.queuesize", 64)
	viper.SetDefault("notification.shoutrrr.enabled", false)
	viper.SetDefault("notification.shoutrrr.urls", []string{})
	viper.SetDefault("notification.shoutrrr.timeout", 10*time.Second)
	viper.SetDefault("notification.mqtt.enabled", false)
	viper.SetDefault("notification.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("notification.mqtt.clientid", "farm-advisor")
	viper.SetDefault("notification.mqtt.topic", "farm-advisor/advisories")
	viper.SetDefault("notification.mqtt.retain", false)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("logging.defaultlevel", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.fileoutput.enabled", false)
	viper.SetDefault("logging.fileoutput.path", "logs/farm-advisor.log")
	viper.SetDefault("logging.fileoutput.level", "info")
}
