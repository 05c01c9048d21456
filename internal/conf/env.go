// env.go - environment variable overrides
package conf

import (
	"strings"

	"github.com/spf13/viper"
)

// bindEnv maps every key to ANOMALYSTREAM_<KEY>, with dots turned into
// underscores: mqtt.broker is read from ANOMALYSTREAM_MQTT_BROKER.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}
