package device

import (
	"encoding/json"
	"time"
)

// Host value defaults for devices that have not reported yet.
const (
	// SignalUnknown is the signal level stored before a device reports one.
	SignalUnknown = 12

	// BatteryUnknown is the battery level of mains powered devices and of
	// devices that reported an out-of-range level.
	BatteryUnknown = 255
)

// Device is one host registry record for a discovered device.
// This matches the devices table in migrations/20260301_090000_create_devices.up.sql.
type Device struct {
	// Identity
	ID       string `json:"id"`
	Identity string `json:"identity"`
	Name     string `json:"name"`

	// Classification
	Component   string `json:"component"`
	Category    string `json:"category"`
	TypeCode    int    `json:"type_code"`
	SubtypeCode int    `json:"subtype_code"`
	SwitchType  int    `json:"switch_type"`

	// Config is the canonical discovery config as JSON text.
	Config json.RawMessage `json:"config"`

	// Used marks devices added as active.
	Used bool `json:"used"`

	// Current value
	NValue int    `json:"n_value"`
	SValue string `json:"s_value"`
	Color  string `json:"color,omitempty"`

	// Link health
	SignalLevel  int    `json:"signal_level"`
	BatteryLevel int    `json:"battery_level"`
	TimedOut     bool   `json:"timed_out"`
	Description  string `json:"description"`

	// Timestamps
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Device.
// The config bytes are cloned so modifications to the copy do not affect
// the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d
	if d.Config != nil {
		cpy.Config = make(json.RawMessage, len(d.Config))
		copy(cpy.Config, d.Config)
	}
	if d.LastSeen != nil {
		t := *d.LastSeen
		cpy.LastSeen = &t
	}
	return &cpy
}

// DeviceUpdate is a partial update of a Device. Nil fields are left
// unchanged.
type DeviceUpdate struct {
	Name        *string
	Category    *string
	TypeCode    *int
	SubtypeCode *int
	SwitchType  *int
	Config      json.RawMessage

	NValue *int
	SValue *string
	Color  *string

	SignalLevel  *int
	BatteryLevel *int
	TimedOut     *bool
	Description  *string

	// SuppressTriggers marks a write that must not fire host automations.
	// It is not persisted.
	SuppressTriggers bool
}

// IsEmpty reports whether the update changes nothing.
func (u DeviceUpdate) IsEmpty() bool {
	return u.Name == nil && u.Category == nil && u.TypeCode == nil &&
		u.SubtypeCode == nil && u.SwitchType == nil && u.Config == nil &&
		!u.touchesState()
}

// touchesState reports whether the update carries a reading from the
// device itself, which refreshes LastSeen.
func (u DeviceUpdate) touchesState() bool {
	return u.NValue != nil || u.SValue != nil || u.Color != nil ||
		u.SignalLevel != nil || u.BatteryLevel != nil || u.TimedOut != nil ||
		u.Description != nil
}

// Apply writes the set fields of u onto d.
func (u DeviceUpdate) Apply(d *Device, now time.Time) {
	setIf(&d.Name, u.Name)
	setIf(&d.Category, u.Category)
	setIf(&d.TypeCode, u.TypeCode)
	setIf(&d.SubtypeCode, u.SubtypeCode)
	setIf(&d.SwitchType, u.SwitchType)
	if u.Config != nil {
		d.Config = append(json.RawMessage(nil), u.Config...)
	}
	setIf(&d.NValue, u.NValue)
	setIf(&d.SValue, u.SValue)
	setIf(&d.Color, u.Color)
	setIf(&d.SignalLevel, u.SignalLevel)
	setIf(&d.BatteryLevel, u.BatteryLevel)
	setIf(&d.TimedOut, u.TimedOut)
	setIf(&d.Description, u.Description)

	if u.touchesState() {
		seen := now
		d.LastSeen = &seen
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Stats holds registry statistics for monitoring.
type Stats struct {
	TotalDevices int            `json:"total_devices"`
	ByCategory   map[string]int `json:"by_category"`
	TimedOut     int            `json:"timed_out"`
}
