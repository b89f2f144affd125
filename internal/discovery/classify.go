package discovery

import (
	"fmt"
	"strings"
)

// Component types that appear in discovery topics.
const (
	ComponentLight        = "light"
	ComponentSwitch       = "switch"
	ComponentBinarySensor = "binary_sensor"
	ComponentCover        = "cover"
	ComponentSensor       = "sensor"
)

// CategoryKind is the capability class of a discovered device.
type CategoryKind uint8

// Category kinds. CategoryNone marks a config that matched no rule.
const (
	CategoryNone CategoryKind = iota
	CategorySwitch
	CategoryDimmer
	CategoryColorLight
	CategoryBinarySensor
	CategoryNumericSensor
	CategoryCover
)

// ColorMode is the channel layout of a color light.
type ColorMode uint8

// Color modes.
const (
	ColorModeNone ColorMode = iota
	ColorModeWW
	ColorModeRGB
	ColorModeRGBW
	ColorModeRGBWW
)

// SensorKind is the measured quantity of a numeric sensor.
type SensorKind uint8

// Sensor kinds. SensorTemperatureHumidity is a combined sensor.
const (
	SensorNone SensorKind = iota
	SensorTemperature
	SensorHumidity
	SensorTemperatureHumidity
)

// CoverMode is the control style of a cover.
type CoverMode uint8

// Cover modes.
const (
	CoverModeNone CoverMode = iota
	CoverToggleOnly
	CoverPercent
)

// Category is a derived device capability category.
type Category struct {
	Kind   CategoryKind
	Color  ColorMode
	Sensor SensorKind
	Cover  CoverMode
}

var (
	kindNames = map[CategoryKind]string{
		CategorySwitch:        "switch",
		CategoryDimmer:        "dimmer",
		CategoryColorLight:    "color_light",
		CategoryBinarySensor:  "binary_sensor",
		CategoryNumericSensor: "numeric_sensor",
		CategoryCover:         "cover",
	}
	colorNames = map[ColorMode]string{
		ColorModeWW:    "ww",
		ColorModeRGB:   "rgb",
		ColorModeRGBW:  "rgbw",
		ColorModeRGBWW: "rgbww",
	}
	sensorNames = map[SensorKind]string{
		SensorTemperature:         "temperature",
		SensorHumidity:            "humidity",
		SensorTemperatureHumidity: "temperature_humidity",
	}
	coverNames = map[CoverMode]string{
		CoverToggleOnly: "toggle",
		CoverPercent:    "percent",
	}
)

// String renders the category as "kind" or "kind:mode", e.g. "color_light:rgb".
// The zero Category renders as "".
func (c Category) String() string {
	name, ok := kindNames[c.Kind]
	if !ok {
		return ""
	}
	var mode string
	switch c.Kind {
	case CategoryColorLight:
		mode = colorNames[c.Color]
	case CategoryNumericSensor:
		mode = sensorNames[c.Sensor]
	case CategoryCover:
		mode = coverNames[c.Cover]
	}
	if mode == "" {
		return name
	}
	return name + ":" + mode
}

// IsZero reports whether no category was assigned.
func (c Category) IsZero() bool { return c.Kind == CategoryNone }

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	kindName, mode, _ := strings.Cut(s, ":")

	var c Category
	for k, name := range kindNames {
		if name == kindName {
			c.Kind = k
		}
	}
	if c.Kind == CategoryNone {
		return Category{}, fmt.Errorf("unknown category %q", s)
	}
	if mode == "" {
		return c, nil
	}

	found := false
	switch c.Kind {
	case CategoryColorLight:
		for m, name := range colorNames {
			if name == mode {
				c.Color, found = m, true
			}
		}
	case CategoryNumericSensor:
		for m, name := range sensorNames {
			if name == mode {
				c.Sensor, found = m, true
			}
		}
	case CategoryCover:
		for m, name := range coverNames {
			if name == mode {
				c.Cover, found = m, true
			}
		}
	}
	if !found {
		return Category{}, fmt.Errorf("unknown mode in category %q", s)
	}
	return c, nil
}

// MoreSpecificThan reports whether c carries strictly more capability than o
// for the same kind of device. A combined temperature and humidity sensor is
// more specific than either single-quantity sensor.
func (c Category) MoreSpecificThan(o Category) bool {
	if c.Kind != CategoryNumericSensor || o.Kind != CategoryNumericSensor {
		return false
	}
	return c.Sensor == SensorTemperatureHumidity &&
		(o.Sensor == SensorTemperature || o.Sensor == SensorHumidity)
}

// Legacy host registry codes.
const (
	TypeLightSwitch = 244
	TypeColorSwitch = 241
	TypeTemp        = 80
	TypeHumidity    = 81
	TypeTempHum     = 82

	SubtypeSwitch      = 73
	SubtypeColorRGBW   = 1
	SubtypeColorRGB    = 2
	SubtypeColorRGBWW  = 4
	SubtypeColorWW     = 8
	SubtypeTempDefault = 5
	SubtypeHumDefault  = 1
	SubtypeTHDefault   = 1

	SwitchTypeOnOff       = 0
	SwitchTypeContact     = 2
	SwitchTypeSmoke       = 5
	SwitchTypeDimmer      = 7
	SwitchTypeMotion      = 8
	SwitchTypeDoorContact = 11
	SwitchTypeBlindsPct   = 13
	SwitchTypeBlindsStop  = 15
)

// Classification is a classifier proposal: a category plus the codes the
// host registry needs to create a matching record.
type Classification struct {
	Category    Category
	TypeCode    int
	SubtypeCode int
	SwitchType  int
}

// Dimming capability weights, summed into a bitmask-like score.
const (
	weightWhiteValue = 1
	weightColorTemp  = 2
	weightRGB        = 3
)

// Classify maps a component type and canonical config to a category.
//
// Rules, in precedence order:
//  1. light or switch with a brightness, color temperature or RGB command
//     topic is a dimmer or color light.
//  2. light or switch without dimming is an on/off switch.
//  3. binary_sensor is a read-only switch.
//  4. cover with a set-position topic is a percent cover, otherwise up/down/stop.
//  5. sensor with device_class temperature or humidity is a numeric sensor.
//
// The second return value is false when no rule matches.
func Classify(component string, cfg Config) (Classification, bool) {
	switch component {
	case ComponentLight, ComponentSwitch:
		return classifyLight(cfg), true
	case ComponentBinarySensor:
		return Classification{
			Category:    Category{Kind: CategoryBinarySensor},
			TypeCode:    TypeLightSwitch,
			SubtypeCode: SubtypeSwitch,
			SwitchType:  binarySwitchType(cfg),
		}, true
	case ComponentCover:
		if cfg.Has(FieldSetPositionTopic) {
			return Classification{
				Category:    Category{Kind: CategoryCover, Cover: CoverPercent},
				TypeCode:    TypeLightSwitch,
				SubtypeCode: SubtypeSwitch,
				SwitchType:  SwitchTypeBlindsPct,
			}, true
		}
		return Classification{
			Category:    Category{Kind: CategoryCover, Cover: CoverToggleOnly},
			TypeCode:    TypeLightSwitch,
			SubtypeCode: SubtypeSwitch,
			SwitchType:  SwitchTypeBlindsStop,
		}, true
	case ComponentSensor:
		return classifySensor(cfg)
	}
	return Classification{}, false
}

func classifyLight(cfg Config) Classification {
	hasBrightness := cfg.Has(FieldBrightnessCommandTopic)
	hasColorTemp := cfg.Has(FieldColorTempCommandTopic)
	hasRGB := cfg.Has(FieldRGBCommandTopic)

	if !hasBrightness && !hasColorTemp && !hasRGB {
		return Classification{
			Category:    Category{Kind: CategorySwitch},
			TypeCode:    TypeLightSwitch,
			SubtypeCode: SubtypeSwitch,
			SwitchType:  SwitchTypeOnOff,
		}
	}

	score := 0
	if cfg.Has(FieldWhiteValueCommandTopic) {
		score += weightWhiteValue
	}
	if hasColorTemp {
		score += weightColorTemp
	}
	if hasRGB {
		score += weightRGB
	}

	var mode ColorMode
	var subtype int
	switch score {
	case 2:
		mode, subtype = ColorModeWW, SubtypeColorWW
	case 3:
		mode, subtype = ColorModeRGB, SubtypeColorRGB
	case 4:
		mode, subtype = ColorModeRGBW, SubtypeColorRGBW
	case 5, 6:
		mode, subtype = ColorModeRGBWW, SubtypeColorRGBWW
	default:
		return Classification{
			Category:    Category{Kind: CategoryDimmer},
			TypeCode:    TypeLightSwitch,
			SubtypeCode: SubtypeSwitch,
			SwitchType:  SwitchTypeDimmer,
		}
	}
	return Classification{
		Category:    Category{Kind: CategoryColorLight, Color: mode},
		TypeCode:    TypeColorSwitch,
		SubtypeCode: subtype,
		SwitchType:  SwitchTypeDimmer,
	}
}

func binarySwitchType(cfg Config) int {
	class, _ := cfg.String(FieldDeviceClass)
	switch class {
	case "motion", "occupancy", "presence":
		return SwitchTypeMotion
	case "door", "window", "opening", "garage_door":
		return SwitchTypeDoorContact
	case "smoke", "gas":
		return SwitchTypeSmoke
	default:
		return SwitchTypeContact
	}
}

func classifySensor(cfg Config) (Classification, bool) {
	class, _ := cfg.String(FieldDeviceClass)
	switch class {
	case "temperature":
		if cfg.Has(FieldHumidityTemplate) {
			return combinedSensor(), true
		}
		return Classification{
			Category:    Category{Kind: CategoryNumericSensor, Sensor: SensorTemperature},
			TypeCode:    TypeTemp,
			SubtypeCode: SubtypeTempDefault,
		}, true
	case "humidity":
		if cfg.Has(FieldTemperatureTemplate) {
			return combinedSensor(), true
		}
		return Classification{
			Category:    Category{Kind: CategoryNumericSensor, Sensor: SensorHumidity},
			TypeCode:    TypeHumidity,
			SubtypeCode: SubtypeHumDefault,
		}, true
	}
	return Classification{}, false
}

func combinedSensor() Classification {
	return Classification{
		Category:    Category{Kind: CategoryNumericSensor, Sensor: SensorTemperatureHumidity},
		TypeCode:    TypeTempHum,
		SubtypeCode: SubtypeTHDefault,
	}
}
