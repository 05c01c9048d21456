// conf/consts.go hard coded constants
package conf

const (
	EnvPrefix        = "ANOMALYSTREAM" // prefix of environment overrides, ANOMALYSTREAM_QUEUESIZE etc.
	DefaultTimezone  = "UTC"
	DefaultQueueSize = 1024
	DefaultMQTTTopic = "anomalystream/scores"
	DefaultClientID  = "anomalystream"
	StdStream        = "-" // input or output path selecting stdin or stdout
)
