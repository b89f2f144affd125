package device

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength     = 100
	maxIdentityLength = 200
	maxConfigBytes    = 64 * 1024
	maxDescriptionLen = 1024
)

// Category names accepted by the registry, with the modes each kind allows.
var validCategories = map[string][]string{
	"switch":         nil,
	"dimmer":         nil,
	"color_light":    {"ww", "rgb", "rgbw", "rgbww"},
	"binary_sensor":  nil,
	"numeric_sensor": {"temperature", "humidity", "temperature_humidity"},
	"cover":          {"toggle", "percent"},
}

// ValidateDevice performs validation on a device.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}
	if err := ValidateIdentity(d.Identity); err != nil {
		return err
	}
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if strings.TrimSpace(d.Component) == "" {
		return fmt.Errorf("%w: component is required", ErrInvalidDevice)
	}
	if err := ValidateCategory(d.Category); err != nil {
		return err
	}
	if err := ValidateConfig(d.Config); err != nil {
		return err
	}
	if len(d.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidDevice, maxDescriptionLen)
	}
	if d.BatteryLevel != BatteryUnknown && (d.BatteryLevel < 0 || d.BatteryLevel > 100) {
		return fmt.Errorf("%w: battery level %d out of range", ErrInvalidDevice, d.BatteryLevel)
	}
	return nil
}

// ValidateName checks if a device name is valid.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateIdentity checks a discovery identity: "object" or "node/object",
// with no empty segments, wildcards or whitespace.
func ValidateIdentity(identity string) error {
	if identity == "" {
		return fmt.Errorf("%w: identity cannot be empty", ErrInvalidIdentity)
	}
	if len(identity) > maxIdentityLength {
		return fmt.Errorf("%w: identity exceeds %d characters", ErrInvalidIdentity, maxIdentityLength)
	}
	if strings.ContainsAny(identity, "+#") {
		return fmt.Errorf("%w: identity %q contains a topic wildcard", ErrInvalidIdentity, identity)
	}
	if strings.IndexFunc(identity, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: identity %q contains whitespace", ErrInvalidIdentity, identity)
	}
	parts := strings.Split(identity, "/")
	if len(parts) > 2 {
		return fmt.Errorf("%w: identity %q has more than two segments", ErrInvalidIdentity, identity)
	}
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("%w: identity %q has an empty segment", ErrInvalidIdentity, identity)
		}
	}
	return nil
}

// ValidateCategory checks a category string of the form "kind" or
// "kind:mode".
func ValidateCategory(category string) error {
	kind, mode, hasMode := strings.Cut(category, ":")
	modes, ok := validCategories[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	if !hasMode {
		if len(modes) > 0 {
			return fmt.Errorf("%w: %q requires a mode", ErrInvalidCategory, category)
		}
		return nil
	}
	for _, m := range modes {
		if m == mode {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
}

// ValidateConfig checks that config is a JSON object within the size limit.
func ValidateConfig(config json.RawMessage) error {
	if len(config) == 0 {
		return fmt.Errorf("%w: config is required", ErrInvalidDevice)
	}
	if len(config) > maxConfigBytes {
		return fmt.Errorf("%w: config exceeds %d bytes", ErrInvalidDevice, maxConfigBytes)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(config, &obj); err != nil {
		return fmt.Errorf("%w: config is not a JSON object: %v", ErrInvalidDevice, err)
	}
	return nil
}

// GenerateID creates a new UUID for a device.
func GenerateID() string {
	return uuid.New().String()
}
