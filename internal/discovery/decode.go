package discovery

import (
	"encoding/hex"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Protocol defaults for literal payloads.
const (
	defaultPayloadOn           = "ON"
	defaultPayloadOff          = "OFF"
	defaultPayloadOpen         = "OPEN"
	defaultPayloadClose        = "CLOSE"
	defaultPayloadStop         = "STOP"
	defaultStateOpen           = "open"
	defaultStateClosed         = "closed"
	defaultPayloadAvailable    = "online"
	defaultPayloadNotAvailable = "offline"

	defaultBrightnessScale = 255
	defaultPositionOpen    = 100
	defaultPositionClosed  = 0

	miredsMin = 153
	miredsMax = 500
)

// Tasmota telemetry and status fields.
const (
	tasmotaVcc       = "Vcc"
	tasmotaWifi      = "Wifi"
	tasmotaRSSI      = "RSSI"
	tasmotaStatus    = "Status"
	tasmotaStatusNET = "StatusNET"
	tasmotaStatusSTS = "StatusSTS"
	tasmotaStatusSNS = "StatusSNS"
	tasmotaSensorSuf = "/SENSOR"
)

// Decoder turns state messages into StateUpdates using each device's
// config. It keeps no state of its own.
type Decoder struct {
	logger Logger
}

// NewDecoder creates a decoder. A nil logger discards diagnostics.
func NewDecoder(logger Logger) *Decoder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Decoder{logger: logger}
}

// Decode decodes a message received on topic for one device.
//
// Every config field of e that names topic contributes independently; a
// field whose template or payload does not fit is skipped without affecting
// the others. Updates that arrive only through the telemetry topic are
// marked Periodic. The second result is false when nothing was decoded.
func (d *Decoder) Decode(e Entry, topic string, payload []byte) (StateUpdate, bool) {
	body := ParsePayload(payload)

	var u StateUpdate
	viaState, viaTelemetry := false, false
	for _, field := range e.Config.FieldsForTopic(topic) {
		switch field {
		case FieldStateTopic:
			viaState = true
			d.decodeState(e, body, &u)
		case FieldTelemetryTopic:
			viaTelemetry = true
		case FieldBrightnessStateTopic:
			d.decodeBrightness(e, body, &u)
		case FieldRGBStateTopic:
			d.decodeRGB(e, body, &u)
		case FieldColorTempStateTopic:
			d.decodeColorTemp(e, body, &u)
		case FieldPositionTopic:
			d.decodePosition(e, body, &u)
		case FieldAvailabilityTopic:
			d.decodeAvailability(e, body, &u)
		}
	}

	if viaTelemetry {
		if !viaState {
			d.decodeTelemetryState(e, body, &u)
			u.Periodic = true
		}
		decodeTelemetry(body, &u)
	}
	return u, !u.IsEmpty()
}

// DecodeStatus decodes a Tasmota STATUS<n> response for a device whose
// telemetry topic matched the rerouted response topic.
//
// Status and StatusNET become the device description, StatusSTS is decoded
// like a telemetry message and StatusSNS like a message on a /SENSOR state
// topic. The update is periodic: it answers a poll rather than reporting a
// change made on the device.
func (d *Decoder) DecodeStatus(e Entry, payload []byte) (StateUpdate, bool) {
	body, ok := ParseObject(payload)
	if !ok {
		return StateUpdate{}, false
	}

	u := StateUpdate{Periodic: true}
	var desc []string
	if st, ok := body.Field(tasmotaStatus); ok {
		desc = append(desc, describeStatus(st)...)
	}
	if net, ok := body.Field(tasmotaStatusNET); ok {
		desc = append(desc, describeNetwork(net)...)
	}
	if len(desc) > 0 {
		u.Description = ptr(strings.Join(desc, ", "))
	}
	if sts, ok := body.Field(tasmotaStatusSTS); ok {
		d.decodeTelemetryState(e, sts, &u)
		decodeTelemetry(sts, &u)
	}
	if sns, ok := body.Field(tasmotaStatusSNS); ok {
		if st, _ := e.Config.String(FieldStateTopic); strings.HasSuffix(st, tasmotaSensorSuf) {
			d.decodeState(e, sns, &u)
		}
	}
	return u, !u.IsEmpty()
}

// extract applies the template in templateField to body, or returns body
// itself when the device declares no template.
func (d *Decoder) extract(e Entry, templateField string, body Value) (Value, bool) {
	src, ok := e.Config.String(templateField)
	if !ok || strings.TrimSpace(src) == "" {
		return body, true
	}
	tpl, err := ParseValueTemplate(src)
	if err != nil {
		if errors.Is(err, ErrInvalidTemplate) {
			d.logger.Debug("value template skipped",
				"identity", e.Identity,
				"field", templateField,
				"error", err,
			)
		}
		return Value{}, false
	}
	return tpl.Evaluate(body)
}

func (d *Decoder) decodeState(e Entry, body Value, u *StateUpdate) {
	switch e.Classification.Category.Kind {
	case CategorySwitch, CategoryDimmer, CategoryColorLight, CategoryBinarySensor:
		if v, ok := d.extract(e, FieldValueTemplate, body); ok {
			if on, ok := matchOnOff(e.Config, v); ok {
				u.On = ptr(on)
			}
		}
	case CategoryCover:
		if v, ok := d.extract(e, FieldValueTemplate, body); ok {
			if st, ok := matchCover(e.Config, v); ok {
				u.Cover = ptr(st)
			}
		}
	case CategoryNumericSensor:
		d.decodeSensor(e, body, u)
	}
}

// decodeTelemetryState reads the primary state out of a Tasmota telemetry
// document, which carries POWER and Dimmer alongside the link statistics.
func (d *Decoder) decodeTelemetryState(e Entry, body Value, u *StateUpdate) {
	d.decodeState(e, body, u)
	if e.Config.Has(FieldBrightnessValueTemplate) {
		d.decodeBrightness(e, body, u)
	}
}

func (d *Decoder) decodeSensor(e Entry, body Value, u *StateUpdate) {
	class, _ := e.Config.String(FieldDeviceClass)

	readFloat := func(field string) (float64, bool) {
		v, ok := d.extract(e, field, body)
		if !ok {
			return 0, false
		}
		return v.Float()
	}

	switch e.Classification.Category.Sensor {
	case SensorTemperature:
		if f, ok := readFloat(FieldValueTemplate); ok {
			u.Temperature = ptr(f)
		}
	case SensorHumidity:
		if f, ok := readFloat(FieldValueTemplate); ok {
			u.Humidity = ptr(f)
		}
	case SensorTemperatureHumidity:
		tempField, humField := FieldTemperatureTemplate, FieldHumidityTemplate
		if class == "temperature" && !e.Config.Has(FieldTemperatureTemplate) {
			tempField = FieldValueTemplate
		}
		if class == "humidity" && !e.Config.Has(FieldHumidityTemplate) {
			humField = FieldValueTemplate
		}
		if e.Config.Has(tempField) {
			if f, ok := readFloat(tempField); ok {
				u.Temperature = ptr(f)
			}
		}
		if e.Config.Has(humField) {
			if f, ok := readFloat(humField); ok {
				u.Humidity = ptr(f)
			}
		}
	}
}

func (d *Decoder) decodeBrightness(e Entry, body Value, u *StateUpdate) {
	v, ok := d.extract(e, FieldBrightnessValueTemplate, body)
	if !ok {
		return
	}
	raw, ok := v.Float()
	if !ok {
		return
	}
	scale, ok := e.Config.Float(FieldBrightnessScale)
	if !ok || scale <= 0 {
		scale = defaultBrightnessScale
	}
	u.Level = ptr(ScaleBrightness(raw, scale))
}

// ScaleBrightness rescales raw from 0..scale to 0..100, rounding down.
func ScaleBrightness(raw, scale float64) int {
	return clamp(int(math.Floor(raw*100/scale)), 0, 100)
}

func (d *Decoder) decodeRGB(e Entry, body Value, u *StateUpdate) {
	v, ok := d.extract(e, FieldRGBValueTemplate, body)
	if !ok {
		return
	}
	text, ok := v.Text()
	if !ok {
		return
	}
	if c, ok := ParseColor(text); ok {
		u.Color = &c
	}
}

// ParseColor parses a hex color of 6, 8 or 10 digits (RRGGBB, RRGGBBCC,
// RRGGBBCCWW) or a comma separated "r,g,b" triple.
func ParseColor(s string) (Color, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")

	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		if len(parts) != 3 {
			return Color{}, false
		}
		var ch [3]int
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || n < 0 || n > 255 {
				return Color{}, false
			}
			ch[i] = n
		}
		return Color{Mode: ColorModeRGB, R: ch[0], G: ch[1], B: ch[2]}, true
	}

	var mode ColorMode
	switch len(s) {
	case 6:
		mode = ColorModeRGB
	case 8:
		mode = ColorModeRGBW
	case 10:
		mode = ColorModeRGBWW
	default:
		return Color{}, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Color{}, false
	}
	c := Color{Mode: mode, R: int(b[0]), G: int(b[1]), B: int(b[2])}
	if len(b) > 3 {
		c.CW = int(b[3])
	}
	if len(b) > 4 {
		c.WW = int(b[4])
	}
	return c, true
}

func (d *Decoder) decodeColorTemp(e Entry, body Value, u *StateUpdate) {
	v, ok := d.extract(e, FieldColorTempValueTemplate, body)
	if !ok {
		return
	}
	mireds, ok := v.Float()
	if !ok {
		return
	}
	u.ColorTemp = ptr(ScaleMireds(mireds))
}

// ScaleMireds rescales a color temperature from 153..500 mireds to 0..255.
func ScaleMireds(mireds float64) int {
	m := math.Min(math.Max(mireds, miredsMin), miredsMax)
	return clamp(int((m-miredsMin)*255/(miredsMax-miredsMin)), 0, 255)
}

func (d *Decoder) decodePosition(e Entry, body Value, u *StateUpdate) {
	v, ok := d.extract(e, FieldPositionTemplate, body)
	if !ok {
		return
	}
	raw, ok := v.Float()
	if !ok {
		return
	}
	open, ok := e.Config.Float(FieldPositionOpen)
	if !ok {
		open = defaultPositionOpen
	}
	closed, ok := e.Config.Float(FieldPositionClosed)
	if !ok {
		closed = defaultPositionClosed
	}
	if open == closed {
		return
	}
	u.Position = ptr(clamp(int(math.Round((raw-closed)*100/(open-closed))), 0, 100))
}

func (d *Decoder) decodeAvailability(e Entry, body Value, u *StateUpdate) {
	v, ok := d.extract(e, FieldAvailabilityTemplate, body)
	if !ok {
		return
	}
	text, ok := v.Text()
	if !ok {
		return
	}
	available := literalOr(e.Config, FieldPayloadAvailable, defaultPayloadAvailable)
	notAvailable := literalOr(e.Config, FieldPayloadNotAvailable, defaultPayloadNotAvailable)
	switch text {
	case available:
		u.Available = ptr(true)
	case notAvailable:
		u.Available = ptr(false)
	}
}

// decodeTelemetry reads Tasmota link statistics: Vcc in volts becomes a
// battery level of Vcc*10 and Wifi.RSSI (a percentage) a signal level.
func decodeTelemetry(body Value, u *StateUpdate) {
	if vcc, ok := body.Field(tasmotaVcc); ok {
		if f, ok := vcc.Float(); ok {
			u.Battery = ptr(NormalizeBattery(int(f * 10)))
		}
	}
	if wifi, ok := body.Field(tasmotaWifi); ok {
		if rssi, ok := wifi.Field(tasmotaRSSI); ok {
			if f, ok := rssi.Float(); ok {
				u.Signal = ptr(RSSIToSignal(f))
			}
		}
	}
}

// NormalizeBattery maps levels outside 0..100 to BatteryUnknown.
func NormalizeBattery(level int) int {
	if level < 0 || level > 100 {
		return BatteryUnknown
	}
	return level
}

// RSSIToSignal maps a 0..100 RSSI quality percentage onto the host's 0..10
// signal scale.
func RSSIToSignal(rssi float64) int {
	return clamp(int(rssi/10), 0, 10)
}

type labelledField struct{ key, label string }

func describeNetwork(net Value) []string {
	return describe(net, []labelledField{
		{"Hostname", "Hostname"},
		{"IPAddress", "IP"},
		{"Mac", "MAC"},
	})
}

// describeStatus reads the device naming section. FriendlyName is a list,
// one entry per relay; the first names the device.
func describeStatus(st Value) []string {
	parts := describe(st, []labelledField{{"DeviceName", "Device"}})
	if names, ok := st.Field("FriendlyName"); ok {
		if first, ok := names.Index(0); ok {
			names = first
		}
		if s, ok := names.Text(); ok && s != "" {
			parts = append(parts, "Name: "+s)
		}
	}
	return parts
}

func describe(section Value, fields []labelledField) []string {
	var parts []string
	for _, f := range fields {
		if v, ok := section.Field(f.key); ok {
			if s, ok := v.Text(); ok && s != "" {
				parts = append(parts, f.label+": "+s)
			}
		}
	}
	return parts
}

// matchOnOff compares v to the device's on and off literals. The protocol
// defaults apply only when the device declares none of them.
func matchOnOff(cfg Config, v Value) (bool, bool) {
	text, ok := v.Text()
	if !ok {
		return false, false
	}
	onLits := literals(cfg, FieldPayloadOn, FieldStateOn)
	offLits := literals(cfg, FieldPayloadOff, FieldStateOff)
	if len(onLits) == 0 && len(offLits) == 0 {
		onLits, offLits = []string{defaultPayloadOn}, []string{defaultPayloadOff}
	}
	for _, lit := range onLits {
		if text == lit {
			return true, true
		}
	}
	for _, lit := range offLits {
		if text == lit {
			return false, true
		}
	}
	return false, false
}

func matchCover(cfg Config, v Value) (CoverState, bool) {
	text, ok := v.Text()
	if !ok {
		return CoverUnknown, false
	}
	switch text {
	case literalOr(cfg, FieldStateOpen, defaultStateOpen), literalOr(cfg, FieldPayloadOpen, defaultPayloadOpen):
		return CoverOpen, true
	case literalOr(cfg, FieldStateClosed, defaultStateClosed), literalOr(cfg, FieldPayloadClose, defaultPayloadClose):
		return CoverClosed, true
	case literalOr(cfg, FieldPayloadStop, defaultPayloadStop):
		return CoverStopped, true
	}
	return CoverUnknown, false
}

func literals(cfg Config, fields ...string) []string {
	var out []string
	for _, f := range fields {
		if s, ok := cfg.Text(f); ok {
			out = append(out, s)
		}
	}
	return out
}

func literalOr(cfg Config, field, fallback string) string {
	if s, ok := cfg.Text(field); ok {
		return s
	}
	return fallback
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
