package device

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "valid name",
			input:   "Living Room Dimmer",
			wantErr: nil,
		},
		{
			name:    "valid name with special characters",
			input:   "Kitchen (Main) Light",
			wantErr: nil,
		},
		{
			name:    "empty name",
			input:   "",
			wantErr: ErrInvalidName,
		},
		{
			name:    "whitespace only",
			input:   "   ",
			wantErr: ErrInvalidName,
		},
		{
			name:    "max length",
			input:   strings.Repeat("a", maxNameLength),
			wantErr: nil,
		},
		{
			name:    "too long",
			input:   strings.Repeat("a", maxNameLength+1),
			wantErr: ErrInvalidName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateName(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateIdentity(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"light_1", false},
		{"dev1/light_1", false},
		{"tasmota_ABC123/tasmota_ABC123_LI_1", false},
		{"", true},
		{"a/b/c", true},
		{"/light_1", true},
		{"dev1/", true},
		{"dev1/+", true},
		{"dev#", true},
		{"dev 1/light", true},
		{strings.Repeat("x", maxIdentityLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateIdentity(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIdentity) {
					t.Errorf("ValidateIdentity(%q) error = %v, want ErrInvalidIdentity", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateIdentity(%q) unexpected error = %v", tt.input, err)
			}
		})
	}
}

func TestValidateCategory(t *testing.T) {
	valid := []string{
		"switch",
		"dimmer",
		"binary_sensor",
		"color_light:ww",
		"color_light:rgb",
		"color_light:rgbw",
		"color_light:rgbww",
		"numeric_sensor:temperature",
		"numeric_sensor:humidity",
		"numeric_sensor:temperature_humidity",
		"cover:toggle",
		"cover:percent",
	}
	for _, c := range valid {
		if err := ValidateCategory(c); err != nil {
			t.Errorf("ValidateCategory(%q) unexpected error = %v", c, err)
		}
	}

	invalid := []string{
		"",
		"fan",
		"color_light",
		"color_light:cmyk",
		"switch:toggle",
		"numeric_sensor",
		"cover:",
	}
	for _, c := range invalid {
		if err := ValidateCategory(c); !errors.Is(err, ErrInvalidCategory) {
			t.Errorf("ValidateCategory(%q) error = %v, want ErrInvalidCategory", c, err)
		}
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		input   json.RawMessage
		wantErr bool
	}{
		{"object", json.RawMessage(`{"stat_t":"stat/dev1/POWER"}`), false},
		{"empty object", json.RawMessage(`{}`), false},
		{"missing", nil, true},
		{"array", json.RawMessage(`[]`), true},
		{"string", json.RawMessage(`"x"`), true},
		{"malformed", json.RawMessage(`{"a":`), true},
		{"too large", json.RawMessage(`{"a":"` + strings.Repeat("x", maxConfigBytes) + `"}`), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDevice) {
				t.Errorf("ValidateConfig() error = %v, want ErrInvalidDevice", err)
			}
		})
	}
}

func TestValidateDevice(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Device)
		wantErr error
	}{
		{
			name:    "valid",
			mutate:  func(*Device) {},
			wantErr: nil,
		},
		{
			name:    "missing component",
			mutate:  func(d *Device) { d.Component = "" },
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "bad identity",
			mutate:  func(d *Device) { d.Identity = "a/b/c" },
			wantErr: ErrInvalidIdentity,
		},
		{
			name:    "bad category",
			mutate:  func(d *Device) { d.Category = "dimmer:rgb" },
			wantErr: ErrInvalidCategory,
		},
		{
			name:    "description too long",
			mutate:  func(d *Device) { d.Description = strings.Repeat("d", maxDescriptionLen+1) },
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "battery in range",
			mutate:  func(d *Device) { d.BatteryLevel = 100 },
			wantErr: nil,
		},
		{
			name:    "battery unknown",
			mutate:  func(d *Device) { d.BatteryLevel = BatteryUnknown },
			wantErr: nil,
		},
		{
			name:    "battery out of range",
			mutate:  func(d *Device) { d.BatteryLevel = 101 },
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "battery negative",
			mutate:  func(d *Device) { d.BatteryLevel = -1 },
			wantErr: ErrInvalidDevice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDevice("dev1/light_1")
			tt.mutate(d)
			err := ValidateDevice(d)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDevice() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := ValidateDevice(nil); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("ValidateDevice(nil) error = %v, want ErrInvalidDevice", err)
	}
}

func TestGenerateID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateID()
		if len(id) != 36 {
			t.Errorf("GenerateID() = %q, want 36 characters", id)
		}
		if seen[id] {
			t.Errorf("GenerateID() produced duplicate %q", id)
		}
		seen[id] = true
	}
}
