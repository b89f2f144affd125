package discovery

import (
	"encoding/json"
	"testing"
)

func TestComputeHostValue(t *testing.T) {
	var (
		sw       = Category{Kind: CategorySwitch}
		dimmer   = Category{Kind: CategoryDimmer}
		pct      = Category{Kind: CategoryCover, Cover: CoverPercent}
		toggle   = Category{Kind: CategoryCover, Cover: CoverToggleOnly}
		temp     = Category{Kind: CategoryNumericSensor, Sensor: SensorTemperature}
		hum      = Category{Kind: CategoryNumericSensor, Sensor: SensorHumidity}
		combined = Category{Kind: CategoryNumericSensor, Sensor: SensorTemperatureHumidity}
	)

	tests := []struct {
		name   string
		cat    Category
		state  StateUpdate
		want   HostValue
		wantOK bool
	}{
		{name: "switch on", cat: sw, state: StateUpdate{On: ptr(true)}, want: HostValue{NValue: 1}, wantOK: true},
		{name: "switch off", cat: sw, state: StateUpdate{On: ptr(false)}, want: HostValue{NValue: 0}, wantOK: true},
		{name: "switch without state", cat: sw, state: StateUpdate{Signal: ptr(7)}},
		{name: "dimmer level", cat: dimmer, state: StateUpdate{On: ptr(true), Level: ptr(40)}, want: HostValue{NValue: 2, SValue: "40"}, wantOK: true},
		{name: "dimmer full", cat: dimmer, state: StateUpdate{On: ptr(true), Level: ptr(100)}, want: HostValue{NValue: 1, SValue: "100"}, wantOK: true},
		{name: "dimmer off keeps level", cat: dimmer, state: StateUpdate{On: ptr(false), Level: ptr(40)}, want: HostValue{NValue: 0, SValue: "40"}, wantOK: true},
		{name: "level implies on", cat: dimmer, state: StateUpdate{Level: ptr(10)}, want: HostValue{NValue: 2, SValue: "10"}, wantOK: true},
		{name: "cover position", cat: pct, state: StateUpdate{Position: ptr(30)}, want: HostValue{NValue: 2, SValue: "30"}, wantOK: true},
		{name: "cover fully open", cat: pct, state: StateUpdate{Position: ptr(100)}, want: HostValue{NValue: 1, SValue: "100"}, wantOK: true},
		{name: "cover closed", cat: toggle, state: StateUpdate{Cover: ptr(CoverClosed)}, want: HostValue{NValue: 0, SValue: "Closed"}, wantOK: true},
		{name: "cover stopped", cat: toggle, state: StateUpdate{Cover: ptr(CoverStopped)}, want: HostValue{NValue: 2, SValue: "Stopped"}, wantOK: true},
		{name: "temperature", cat: temp, state: StateUpdate{Temperature: ptr(21.5)}, want: HostValue{SValue: "21.5"}, wantOK: true},
		{name: "humidity comfortable", cat: hum, state: StateUpdate{Humidity: ptr(49.6)}, want: HostValue{NValue: 50, SValue: "1"}, wantOK: true},
		{name: "humidity dry", cat: hum, state: StateUpdate{Humidity: ptr(20.0)}, want: HostValue{NValue: 20, SValue: "2"}, wantOK: true},
		{name: "humidity wet", cat: hum, state: StateUpdate{Humidity: ptr(80.0)}, want: HostValue{NValue: 80, SValue: "3"}, wantOK: true},
		{name: "humidity normal", cat: hum, state: StateUpdate{Humidity: ptr(60.0)}, want: HostValue{NValue: 60, SValue: "0"}, wantOK: true},
		{name: "combined", cat: combined, state: StateUpdate{Temperature: ptr(19.0), Humidity: ptr(65.0)}, want: HostValue{SValue: "19;65;0"}, wantOK: true},
		{name: "combined waits for both", cat: combined, state: StateUpdate{Temperature: ptr(19.0)}},
		{name: "unknown category", cat: Category{}, state: StateUpdate{On: ptr(true)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ComputeHostValue(tt.cat, tt.state)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ComputeHostValue() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestComputeHostValue_Color(t *testing.T) {
	cat := Category{Kind: CategoryColorLight, Color: ColorModeRGB}
	state := StateUpdate{
		On:    ptr(true),
		Level: ptr(80),
		Color: &Color{Mode: ColorModeRGB, R: 255, G: 128},
	}

	got, ok := ComputeHostValue(cat, state)
	if !ok {
		t.Fatal("no value for color light")
	}
	if got.NValue != nValueSetLevel || got.SValue != "80" {
		t.Errorf("value = %d/%q, want 2/80", got.NValue, got.SValue)
	}

	var hc hostColor
	if err := json.Unmarshal([]byte(got.Color), &hc); err != nil {
		t.Fatalf("color is not JSON: %v (%q)", err, got.Color)
	}
	if hc.R != 255 || hc.G != 128 || hc.B != 0 || hc.T != nil {
		t.Errorf("color = %+v", hc)
	}

	noColor, _ := ComputeHostValue(Category{Kind: CategoryDimmer}, state)
	if noColor.Color != "" {
		t.Errorf("dimmer carries color %q", noColor.Color)
	}
}
