// defaults.go: default values of every run setting
package conf

import "github.com/spf13/viper"

// setDefaultConfig registers a default for every key so environment
// overrides apply to all of them.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("params", "")
	v.SetDefault("paramsfile", "")
	v.SetDefault("input", StdStream)
	v.SetDefault("output", StdStream)
	v.SetDefault("skip", 0)
	v.SetDefault("timezone", DefaultTimezone)
	v.SetDefault("queuesize", DefaultQueueSize)

	v.SetDefault("log.level", "")
	v.SetDefault("log.file", "")

	v.SetDefault("metrics.listen", "")

	v.SetDefault("sqlite.path", "")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", DefaultMQTTTopic)
	v.SetDefault("mqtt.clientid", DefaultClientID)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")

	v.SetDefault("sentry.dsn", "")
}
