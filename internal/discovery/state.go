package discovery

// CoverState is the last reported motion state of a cover.
type CoverState uint8

// Cover states.
const (
	CoverUnknown CoverState = iota
	CoverOpen
	CoverClosed
	CoverStopped
)

// String returns the cover state name.
func (s CoverState) String() string {
	switch s {
	case CoverOpen:
		return "open"
	case CoverClosed:
		return "closed"
	case CoverStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Color holds the decoded channels of a color light. Channel values are 0..255.
type Color struct {
	Mode ColorMode `json:"-"`
	R    int       `json:"r"`
	G    int       `json:"g"`
	B    int       `json:"b"`
	CW   int       `json:"cw"`
	WW   int       `json:"ww"`
}

// Sentinel values understood by the host registry.
const (
	// BatteryUnknown marks a battery level outside 0..100.
	BatteryUnknown = 255

	// SignalUnknown is the signal level of a device that never reported one.
	SignalUnknown = 12
)

// StateUpdate is a normalised state change decoded from one message.
// Nil fields were not carried by the message.
type StateUpdate struct {
	On          *bool
	Level       *int // brightness 0..100
	Color       *Color
	ColorTemp   *int // 0..255, warm to cold
	Cover       *CoverState
	Position    *int // 0..100, 100 is fully open
	Temperature *float64
	Humidity    *float64
	Battery     *int
	Signal      *int
	Available   *bool
	Description *string

	// Periodic marks an update decoded from routine telemetry rather than
	// from the device's declared state topic.
	Periodic bool
}

// IsEmpty reports whether the update carries no fields.
func (u StateUpdate) IsEmpty() bool {
	return u.On == nil && u.Level == nil && u.Color == nil && u.ColorTemp == nil &&
		u.Cover == nil && u.Position == nil && u.Temperature == nil &&
		u.Humidity == nil && u.Battery == nil && u.Signal == nil &&
		u.Available == nil && u.Description == nil
}

// HasValue reports whether the update changes the device's primary value,
// as opposed to only its signal, battery, availability or description.
func (u StateUpdate) HasValue() bool {
	return u.On != nil || u.Level != nil || u.Color != nil || u.ColorTemp != nil ||
		u.Cover != nil || u.Position != nil || u.Temperature != nil || u.Humidity != nil
}

// merge folds u into s and returns the fields whose value actually changed.
func (s *StateUpdate) merge(u StateUpdate) StateUpdate {
	delta := StateUpdate{Periodic: u.Periodic}
	mergeField(&s.On, u.On, &delta.On)
	mergeField(&s.Level, u.Level, &delta.Level)
	mergeField(&s.Color, u.Color, &delta.Color)
	mergeField(&s.ColorTemp, u.ColorTemp, &delta.ColorTemp)
	mergeField(&s.Cover, u.Cover, &delta.Cover)
	mergeField(&s.Position, u.Position, &delta.Position)
	mergeField(&s.Temperature, u.Temperature, &delta.Temperature)
	mergeField(&s.Humidity, u.Humidity, &delta.Humidity)
	mergeField(&s.Battery, u.Battery, &delta.Battery)
	mergeField(&s.Signal, u.Signal, &delta.Signal)
	mergeField(&s.Available, u.Available, &delta.Available)
	mergeField(&s.Description, u.Description, &delta.Description)
	return delta
}

func mergeField[T comparable](dst **T, src *T, changed **T) {
	if src == nil {
		return
	}
	if *dst != nil && **dst == *src {
		return
	}
	v := *src
	*dst = &v
	c := v
	*changed = &c
}

// clone returns a copy that shares no pointers with s.
func (s StateUpdate) clone() StateUpdate {
	out := StateUpdate{Periodic: s.Periodic}
	out.merge(s)
	out.Periodic = s.Periodic
	return out
}

func ptr[T any](v T) *T { return &v }
