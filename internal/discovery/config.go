package discovery

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Canonical config field names used by the decoder and classifier.
const (
	FieldName                    = "name"
	FieldDevice                  = "device"
	FieldDeviceClass             = "device_class"
	FieldCommandTopic            = "command_topic"
	FieldStateTopic              = "state_topic"
	FieldAvailabilityTopic       = "availability_topic"
	FieldBrightnessCommandTopic  = "brightness_command_topic"
	FieldBrightnessStateTopic    = "brightness_state_topic"
	FieldBrightnessScale         = "brightness_scale"
	FieldBrightnessValueTemplate = "brightness_value_template"
	FieldColorTempCommandTopic   = "color_temp_command_topic"
	FieldColorTempStateTopic     = "color_temp_state_topic"
	FieldColorTempValueTemplate  = "color_temp_value_template"
	FieldRGBCommandTopic         = "rgb_command_topic"
	FieldRGBStateTopic           = "rgb_state_topic"
	FieldRGBValueTemplate        = "rgb_value_template"
	FieldWhiteValueCommandTopic  = "white_value_command_topic"
	FieldPositionTopic           = "position_topic"
	FieldSetPositionTopic        = "set_position_topic"
	FieldPositionOpen            = "position_open"
	FieldPositionClosed          = "position_closed"
	FieldPositionTemplate        = "position_template"
	FieldValueTemplate           = "value_template"
	FieldAvailabilityTemplate    = "availability_template"
	FieldTemperatureTemplate     = "temperature_template"
	FieldHumidityTemplate        = "humidity_template"
	FieldPayloadOn               = "payload_on"
	FieldPayloadOff              = "payload_off"
	FieldStateOn                 = "state_on"
	FieldStateOff                = "state_off"
	FieldPayloadOpen             = "payload_open"
	FieldPayloadClose            = "payload_close"
	FieldPayloadStop             = "payload_stop"
	FieldStateOpen               = "state_open"
	FieldStateClosed             = "state_closed"
	FieldPayloadAvailable        = "payload_available"
	FieldPayloadNotAvailable     = "payload_not_available"
	FieldTelemetryTopic          = "tasmota_tele_topic"

	// TopicBaseKey is the reserved key holding the shared base topic.
	TopicBaseKey = "~"

	topicSuffix = "_topic"
)

// Config is a canonical discovery config: abbreviations expanded and every
// *_topic field fully resolved.
type Config map[string]Value

// ParseConfig decodes a serialized config, as stored by the host registry.
func ParseConfig(raw []byte) (Config, error) {
	v, ok := ParseObject(raw)
	if !ok {
		return nil, fmt.Errorf("parsing config: %w", ErrNotConfigMessage)
	}
	return Config(v.Fields()), nil
}

// Marshal serializes the config as JSON with sorted keys.
func (c Config) Marshal() ([]byte, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]Value(c))
}

// String returns the string value of key.
func (c Config) String(key string) (string, bool) {
	v, ok := c[key]
	if !ok {
		return "", false
	}
	return v.Str()
}

// Float returns the numeric value of key.
func (c Config) Float(key string) (float64, bool) {
	v, ok := c[key]
	if !ok {
		return 0, false
	}
	return v.Float()
}

// Text returns the scalar value of key as text.
func (c Config) Text(key string) (string, bool) {
	v, ok := c[key]
	if !ok {
		return "", false
	}
	return v.Text()
}

// Has reports whether key is present with a non-empty string value, or any
// other non-null value.
func (c Config) Has(key string) bool {
	v, ok := c[key]
	if !ok || v.IsNull() {
		return false
	}
	if s, isStr := v.Str(); isStr {
		return s != ""
	}
	return true
}

// Clone returns a deep copy of the config.
func (c Config) Clone() Config {
	if c == nil {
		return nil
	}
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v.Clone()
	}
	return out
}

// Equal reports whether both configs hold the same fields and values.
func (c Config) Equal(o Config) bool {
	if len(c) != len(o) {
		return false
	}
	for k, v := range c {
		w, ok := o[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}

// Topics returns every non-empty *_topic field, keyed by field name.
func (c Config) Topics() map[string]string {
	topics := make(map[string]string)
	for k, v := range c {
		if !strings.HasSuffix(k, topicSuffix) {
			continue
		}
		if s, ok := v.Str(); ok && s != "" {
			topics[k] = s
		}
	}
	return topics
}

// FieldsForTopic returns the names of the topic fields whose value is
// exactly topic, sorted.
func (c Config) FieldsForTopic(topic string) []string {
	var fields []string
	for k, t := range c.Topics() {
		if t == topic {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	return fields
}

// DisplayName returns the config's name, or fallback when none is declared.
func (c Config) DisplayName(fallback string) string {
	if name, ok := c.String(FieldName); ok && strings.TrimSpace(name) != "" {
		return name
	}
	return fallback
}
