// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/tphakala/anomalystream/internal/errors"
	"github.com/tphakala/anomalystream/internal/logger"
)

var mqttSchemes = []string{"tcp", "ssl", "tls", "mqtt", "mqtts", "ws", "wss"}

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("invalid settings: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct. All problems are
// collected into one ValidationError, wrapped as a validation category error.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if settings.Skip < 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("skip must not be negative, got %d", settings.Skip))
	}
	if settings.QueueSize <= 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("queue size must be positive, got %d", settings.QueueSize))
	}
	if _, err := resolveLocation(settings.Timezone); err != nil {
		ve.Errors = append(ve.Errors, fmt.Sprintf("unknown timezone %q", settings.Timezone))
	}
	if settings.Log.Level != "" && !logger.ValidLevel(settings.Log.Level) {
		ve.Errors = append(ve.Errors, fmt.Sprintf("unknown log level %q", settings.Log.Level))
	}
	if err := validateMQTTSettings(&settings.MQTT); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateListenAddress(settings.Metrics.Listen); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return errors.New(ve).
			Category(errors.CategoryValidation).
			Context("problems", len(ve.Errors)).
			Build()
	}
	return nil
}

func validateMQTTSettings(settings *MQTTSettings) error {
	if settings.Broker == "" {
		return nil
	}
	u, err := url.Parse(settings.Broker)
	if err != nil {
		return fmt.Errorf("malformed MQTT broker URL %q: %w", settings.Broker, err)
	}
	if !slices.Contains(mqttSchemes, u.Scheme) || u.Host == "" {
		return fmt.Errorf("malformed MQTT broker URL %q: want scheme://host:port with scheme one of %s",
			settings.Broker, strings.Join(mqttSchemes, ", "))
	}
	if settings.Topic == "" {
		return fmt.Errorf("MQTT topic must not be empty")
	}
	return nil
}

func validateListenAddress(addr string) error {
	if addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid metrics listen address %q: %w", addr, err)
	}
	return nil
}
