package discovery

import (
	"encoding/json"
	"math"
	"strconv"
)

// Host switch values.
const (
	nValueOff      = 0
	nValueOn       = 1
	nValueSetLevel = 2
)

// Humidity status codes understood by the host registry.
const (
	humidityNormal      = 0
	humidityComfortable = 1
	humidityDry         = 2
	humidityWet         = 3
)

// HostValue is the host registry's representation of a device value.
type HostValue struct {
	NValue int
	SValue string

	// Color is the JSON encoded color of a color light, empty otherwise.
	Color string
}

// ComputeHostValue renders the merged state of a device as the host value
// for its category. The second result is false when the state does not yet
// hold enough to produce a value.
func ComputeHostValue(c Category, s StateUpdate) (HostValue, bool) {
	switch c.Kind {
	case CategorySwitch, CategoryBinarySensor:
		if s.On == nil {
			return HostValue{}, false
		}
		return HostValue{NValue: onValue(*s.On)}, true

	case CategoryDimmer, CategoryColorLight:
		return dimmerValue(c, s)

	case CategoryCover:
		return coverValue(c, s)

	case CategoryNumericSensor:
		return sensorValue(c, s)
	}
	return HostValue{}, false
}

func onValue(on bool) int {
	if on {
		return nValueOn
	}
	return nValueOff
}

func dimmerValue(c Category, s StateUpdate) (HostValue, bool) {
	if s.On == nil && s.Level == nil && s.Color == nil {
		return HostValue{}, false
	}
	v := HostValue{NValue: nValueOn}
	if s.On != nil && !*s.On {
		v.NValue = nValueOff
	}
	if s.Level != nil {
		v.SValue = strconv.Itoa(*s.Level)
		if v.NValue == nValueOn && *s.Level > 0 && *s.Level < 100 {
			v.NValue = nValueSetLevel
		}
	}
	if c.Kind == CategoryColorLight && (s.Color != nil || s.ColorTemp != nil) {
		v.Color = encodeColor(c.Color, s)
	}
	return v, true
}

// hostColor is the JSON color document stored with a color light.
type hostColor struct {
	Mode string `json:"m"`
	T    *int   `json:"t,omitempty"`
	R    int    `json:"r"`
	G    int    `json:"g"`
	B    int    `json:"b"`
	CW   int    `json:"cw"`
	WW   int    `json:"ww"`
}

func encodeColor(mode ColorMode, s StateUpdate) string {
	hc := hostColor{Mode: colorNames[mode], T: s.ColorTemp}
	if s.Color != nil {
		hc.R, hc.G, hc.B, hc.CW, hc.WW = s.Color.R, s.Color.G, s.Color.B, s.Color.CW, s.Color.WW
	}
	raw, err := json.Marshal(hc)
	if err != nil {
		return ""
	}
	return string(raw)
}

func coverValue(c Category, s StateUpdate) (HostValue, bool) {
	if c.Cover == CoverPercent && s.Position != nil {
		v := HostValue{NValue: nValueSetLevel, SValue: strconv.Itoa(*s.Position)}
		switch *s.Position {
		case 0:
			v.NValue = nValueOff
		case 100:
			v.NValue = nValueOn
		}
		return v, true
	}
	if s.Cover == nil {
		return HostValue{}, false
	}
	switch *s.Cover {
	case CoverOpen:
		return HostValue{NValue: nValueOn, SValue: "Open"}, true
	case CoverClosed:
		return HostValue{NValue: nValueOff, SValue: "Closed"}, true
	case CoverStopped:
		return HostValue{NValue: nValueSetLevel, SValue: "Stopped"}, true
	}
	return HostValue{}, false
}

func sensorValue(c Category, s StateUpdate) (HostValue, bool) {
	switch c.Sensor {
	case SensorTemperature:
		if s.Temperature == nil {
			return HostValue{}, false
		}
		return HostValue{SValue: formatFloat(*s.Temperature)}, true
	case SensorHumidity:
		if s.Humidity == nil {
			return HostValue{}, false
		}
		h := int(math.Round(*s.Humidity))
		return HostValue{NValue: h, SValue: strconv.Itoa(humidityStatus(h))}, true
	case SensorTemperatureHumidity:
		if s.Temperature == nil || s.Humidity == nil {
			return HostValue{}, false
		}
		h := int(math.Round(*s.Humidity))
		return HostValue{
			SValue: formatFloat(*s.Temperature) + ";" + strconv.Itoa(h) + ";" + strconv.Itoa(humidityStatus(h)),
		}, true
	}
	return HostValue{}, false
}

func humidityStatus(h int) int {
	switch {
	case h < 30:
		return humidityDry
	case h > 70:
		return humidityWet
	case h >= 45 && h <= 55:
		return humidityComfortable
	default:
		return humidityNormal
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
