package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Logger defines the logging interface used by the discovery package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MessageDumper is implemented by loggers that can dump raw messages.
type MessageDumper interface {
	DumpsMessages() bool
	DumpMessage(topic string, payload []byte)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport is the bus the orchestrator drives. Requests are fire-and-forget.
type Transport interface {
	Subscribe(topics []string) error
	Publish(topic, payload string, retain bool) error
	IsConnected() bool
	IsConnecting() bool
	Ping() error
	Reconnect() error
}

// DeviceSpec describes a host record to create.
type DeviceSpec struct {
	Identity       string
	Name           string
	Component      string
	Classification Classification
	Config         []byte
	Active         bool
}

// HostUpdate is a partial update of a host record. Nil fields are unchanged.
type HostUpdate struct {
	Name           *string
	Classification *Classification
	Config         []byte
	NValue         *int
	SValue         *string
	Color          *string
	Signal         *int
	Battery        *int
	TimedOut       *bool
	Description    *string

	// SuppressTriggers asks the host not to fire automations for this write.
	SuppressTriggers bool
}

// IsEmpty reports whether the update changes nothing.
func (u HostUpdate) IsEmpty() bool {
	return u.Name == nil && u.Classification == nil && u.Config == nil &&
		u.NValue == nil && u.SValue == nil && u.Color == nil &&
		u.Signal == nil && u.Battery == nil && u.TimedOut == nil && u.Description == nil
}

// hostValue returns the value fields of u. Unset fields are zero.
func (u HostUpdate) hostValue() HostValue {
	var v HostValue
	if u.NValue != nil {
		v.NValue = *u.NValue
	}
	if u.SValue != nil {
		v.SValue = *u.SValue
	}
	if u.Color != nil {
		v.Color = *u.Color
	}
	return v
}

// StoredDevice is a host record as listed by the registry.
type StoredDevice struct {
	Handle         string
	Identity       string
	Component      string
	Classification Classification
	Config         []byte
	NValue         int
	SValue         string
	Color          string
}

// Registry is the host device registry.
type Registry interface {
	CreateDevice(ctx context.Context, spec DeviceSpec) (string, error)
	UpdateDevice(ctx context.Context, handle string, update HostUpdate) error
	ListDevices(ctx context.Context) ([]StoredDevice, error)
}

// Listener observes discovery events. Calls are made from the orchestrator
// goroutine and must not block.
type Listener interface {
	DeviceDiscovered(e Entry)
	StateChanged(e Entry, delta StateUpdate)
}

// ConnState is the orchestrator's view of the transport connection.
type ConnState int32

// Connection states.
const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateSubscribed
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// Settings is the static configuration snapshot the orchestrator runs with.
type Settings struct {
	// Prefix is the discovery topic prefix, e.g. "homeassistant".
	Prefix string

	// IgnoredTopics are dropped on exact match before any processing, and
	// devices with any *_topic starting with one of them are never created.
	IgnoredTopics []string

	// DefaultDeviceActive is the active flag given to created host records.
	DefaultDeviceActive bool

	// StatusPolls are the payloads published to a device's status command
	// topic when it is polled.
	StatusPolls []string

	// HeartbeatInterval is the connection check period.
	HeartbeatInterval time.Duration
}

// Stats counts orchestrator activity. Fields are read with atomic loads.
type Stats struct {
	MessagesReceived  atomic.Uint64
	ConfigMessages    atomic.Uint64
	IgnoredMessages   atomic.Uint64
	TopicLookups      atomic.Uint64
	StateUpdates      atomic.Uint64
	SuppressedUpdates atomic.Uint64
	DevicesCreated    atomic.Uint64
	DevicesUpdated    atomic.Uint64
	RegistryErrors    atomic.Uint64
	StatusPolls       atomic.Uint64
	Reconnects        atomic.Uint64
}

type eventKind uint8

const (
	eventConnected eventKind = iota
	eventDisconnected
	eventSubscribed
	eventMessage
)

type event struct {
	kind    eventKind
	topic   string
	payload []byte
	err     error
}

const defaultEventBuffer = 1024

// Orchestrator routes bus messages to config processing or state decoding
// and keeps the subscription set current.
//
// Transport callbacks (OnConnected, OnDisconnected, OnSubscribed, OnMessage)
// may be called from any goroutine; they enqueue events that Run processes
// one at a time, which makes Run the only writer of the Index.
type Orchestrator struct {
	settings  Settings
	transport Transport
	registry  Registry
	index     *Index
	decoder   *Decoder
	logger    Logger
	listeners []Listener

	ignored map[string]struct{}
	events  chan event
	done    chan struct{}
	stopped sync.Once

	state atomic.Int32
	stats Stats

	// Owned by the Run goroutine.
	subscribePending bool
	polled           map[string]struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithListener adds a listener.
func WithListener(l Listener) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.listeners = append(o.listeners, l)
		}
	}
}

// WithIndex sets the index instead of a fresh one.
func WithIndex(idx *Index) Option {
	return func(o *Orchestrator) {
		if idx != nil {
			o.index = idx
		}
	}
}

// NewOrchestrator creates an orchestrator.
//
// Parameters:
//   - settings: Static discovery settings
//   - transport: Bus transport, required
//   - registry: Host device registry, required
//
// Returns:
//   - *Orchestrator: Ready to Seed and Run
//   - error: ErrNilTransport or ErrNilRegistry
func NewOrchestrator(settings Settings, transport Transport, registry Registry, opts ...Option) (*Orchestrator, error) {
	if transport == nil {
		return nil, ErrNilTransport
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}

	settings.Prefix = strings.TrimSuffix(settings.Prefix, "/")
	if settings.HeartbeatInterval <= 0 {
		settings.HeartbeatInterval = 10 * time.Second
	}

	o := &Orchestrator{
		settings:  settings,
		transport: transport,
		registry:  registry,
		logger:    noopLogger{},
		ignored:   make(map[string]struct{}, len(settings.IgnoredTopics)),
		events:    make(chan event, defaultEventBuffer),
		done:      make(chan struct{}),
		polled:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.index == nil {
		o.index = NewIndex(settings.Prefix)
	}
	o.decoder = NewDecoder(o.logger)

	for _, t := range settings.IgnoredTopics {
		if t = strings.TrimSpace(t); t != "" {
			o.ignored[t] = struct{}{}
		}
	}
	return o, nil
}

// Index returns the device index. It is safe for concurrent reads.
func (o *Orchestrator) Index() *Index { return o.index }

// Stats returns the activity counters.
func (o *Orchestrator) Stats() *Stats { return &o.stats }

// State returns the connection state.
func (o *Orchestrator) State() ConnState { return ConnState(o.state.Load()) }

func (o *Orchestrator) setState(s ConnState) {
	if prev := ConnState(o.state.Swap(int32(s))); prev != s {
		o.logger.Debug("connection state changed", "from", prev.String(), "to", s.String())
	}
}

// Seed loads the devices already known to the registry into the index.
// Call it before Run so the first subscription covers stored devices.
func (o *Orchestrator) Seed(ctx context.Context) error {
	stored, err := o.registry.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("listing stored devices: %w", err)
	}

	for _, sd := range stored {
		cfg, err := ParseConfig(sd.Config)
		if err != nil {
			o.logger.Warn("skipping stored device with unreadable config",
				"identity", sd.Identity,
				"error", err,
			)
			continue
		}
		o.index.Seed(Entry{
			Identity:       sd.Identity,
			Component:      sd.Component,
			Classification: sd.Classification,
			Config:         cfg,
			Handle:         sd.Handle,
			Host:           &HostValue{NValue: sd.NValue, SValue: sd.SValue, Color: sd.Color},
		})
	}
	o.logger.Info("device index seeded", "count", o.index.Len())
	return nil
}

// OnConnected is the transport's connect callback.
func (o *Orchestrator) OnConnected() { o.enqueue(event{kind: eventConnected}) }

// OnDisconnected is the transport's connection-lost callback.
func (o *Orchestrator) OnDisconnected(err error) {
	o.enqueue(event{kind: eventDisconnected, err: err})
}

// OnSubscribed is the transport's subscription acknowledgement callback.
func (o *Orchestrator) OnSubscribed(_ []string, err error) {
	o.enqueue(event{kind: eventSubscribed, err: err})
}

// OnMessage is the transport's message callback.
func (o *Orchestrator) OnMessage(topic string, payload []byte) error {
	o.enqueue(event{kind: eventMessage, topic: topic, payload: payload})
	return nil
}

// enqueue blocks while the event buffer is full, and drops the event once
// Run has returned.
func (o *Orchestrator) enqueue(ev event) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

// Run processes events and heartbeats until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.stopped.Do(func() { close(o.done) })

	ticker := time.NewTicker(o.settings.HeartbeatInterval)
	defer ticker.Stop()

	o.logger.Info("discovery orchestrator running",
		"prefix", o.settings.Prefix,
		"heartbeat", o.settings.HeartbeatInterval,
	)
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("discovery orchestrator stopped")
			return nil
		case ev := <-o.events:
			o.handleEvent(ctx, ev)
		case <-ticker.C:
			o.heartbeat()
		}
	}
}

func (o *Orchestrator) handleEvent(ctx context.Context, ev event) {
	switch ev.kind {
	case eventConnected:
		o.handleConnected()
	case eventDisconnected:
		o.handleDisconnected(ev.err)
	case eventSubscribed:
		o.handleSubscribed(ev.err)
	case eventMessage:
		o.HandleMessage(ctx, ev.topic, ev.payload)
	}
}

func (o *Orchestrator) handleConnected() {
	o.logger.Info("bus connected")
	o.setState(StateConnected)
	o.polled = make(map[string]struct{})
	o.subscribePending = false
	o.resubscribe()
}

func (o *Orchestrator) handleDisconnected(err error) {
	if err != nil {
		o.logger.Warn("bus disconnected", "error", err)
	} else {
		o.logger.Info("bus disconnected")
	}
	o.setState(StateDisconnected)
	o.subscribePending = false
	o.polled = make(map[string]struct{})
}

func (o *Orchestrator) handleSubscribed(err error) {
	o.subscribePending = false
	if err != nil {
		o.logger.Warn("subscription failed", "error", err)
		return
	}
	if o.State() == StateDisconnected {
		return
	}
	o.setState(StateSubscribed)
	o.pollTelemetryDevices()
}

// resubscribe requests the current topic set.
func (o *Orchestrator) resubscribe() {
	if o.State() == StateDisconnected || o.State() == StateConnecting {
		return
	}
	topics := o.index.TopicsOfInterest()
	if err := o.transport.Subscribe(topics); err != nil {
		o.logger.Warn("subscribe request failed", "topics", len(topics), "error", err)
		return
	}
	o.subscribePending = true
	o.logger.Debug("subscribe requested", "topics", len(topics))
}

// pollTelemetryDevices asks every telemetry-capable device not yet polled
// on this connection for a status report, once per status command topic.
func (o *Orchestrator) pollTelemetryDevices() {
	for _, e := range o.index.TelemetryEntries() {
		tele, _ := e.TelemetryTopic()
		o.pollStatus(tele)
	}
}

func (o *Orchestrator) pollStatus(telemetryTopic string) {
	command, ok := StatusCommandTopic(telemetryTopic)
	if !ok {
		return
	}
	if _, done := o.polled[command]; done {
		return
	}
	o.polled[command] = struct{}{}

	for _, payload := range o.settings.StatusPolls {
		if err := o.transport.Publish(command, payload, false); err != nil {
			o.logger.Warn("status poll failed", "topic", command, "error", err)
			return
		}
	}
	o.stats.StatusPolls.Add(1)
	o.logger.Debug("status polled", "topic", command)
}

// HandleMessage processes one inbound message. Run calls it for every
// queued message; it is exported for callers that feed messages directly.
func (o *Orchestrator) HandleMessage(ctx context.Context, topic string, payload []byte) {
	o.stats.MessagesReceived.Add(1)
	if d, ok := o.logger.(MessageDumper); ok && d.DumpsMessages() {
		d.DumpMessage(topic, payload)
	}

	if _, ignored := o.ignored[topic]; ignored {
		o.stats.IgnoredMessages.Add(1)
		o.logger.Debug("message on ignored topic dropped", "topic", topic)
		return
	}

	if strings.HasPrefix(topic, o.settings.Prefix+"/") {
		o.handleDiscovery(ctx, topic, payload)
		return
	}
	o.handleState(ctx, topic, payload)
}

// DiscoveryTopic is a parsed discovery topic.
type DiscoveryTopic struct {
	Component string
	Node      string
	Object    string
	Action    string
}

// Identity returns the device identity: "node/object", or the object ID
// when the topic has no node segment.
func (t DiscoveryTopic) Identity() string {
	if t.Node == "" {
		return t.Object
	}
	return t.Node + "/" + t.Object
}

// ParseDiscoveryTopic splits prefix/component/[node/]object/action.
func ParseDiscoveryTopic(prefix, topic string) (DiscoveryTopic, error) {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	rest, ok := strings.CutPrefix(topic, prefix)
	if !ok {
		return DiscoveryTopic{}, fmt.Errorf("%w: %q outside prefix", ErrNotConfigMessage, topic)
	}

	parts := strings.Split(rest, "/")
	var t DiscoveryTopic
	switch len(parts) {
	case 3:
		t = DiscoveryTopic{Component: parts[0], Object: parts[1], Action: parts[2]}
	case 4:
		t = DiscoveryTopic{Component: parts[0], Node: parts[1], Object: parts[2], Action: parts[3]}
	default:
		return DiscoveryTopic{}, fmt.Errorf("%w: %q", ErrNotConfigMessage, topic)
	}
	if t.Object == "" {
		return DiscoveryTopic{}, fmt.Errorf("%w: %q", ErrEmptyIdentity, topic)
	}
	return t, nil
}

// NormalizeConfig runs the config pipeline on a raw config payload:
// abbreviation expansion, base topic resolution and quirk augmentation.
// It fails with ErrNotConfigMessage when the payload is not a JSON object
// declaring a command or state topic.
func NormalizeConfig(payload []byte) (Config, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrNotConfigMessage)
	}
	body, ok := ParseObject(payload)
	if !ok {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrNotConfigMessage)
	}

	cfg := ResolveTopicBase(ExpandAbbreviations(body.Fields()))
	if !cfg.Has(FieldCommandTopic) && !cfg.Has(FieldStateTopic) {
		return nil, fmt.Errorf("%w: no command or state topic", ErrNotConfigMessage)
	}
	return AugmentQuirks(cfg), nil
}

func (o *Orchestrator) handleDiscovery(ctx context.Context, topic string, payload []byte) {
	dt, err := ParseDiscoveryTopic(o.settings.Prefix, topic)
	if err != nil {
		o.logger.Debug("discovery topic skipped", "topic", topic, "error", err)
		return
	}
	if dt.Action != "config" {
		return
	}

	cfg, err := NormalizeConfig(payload)
	if err != nil {
		o.logger.Debug("discovery config skipped", "topic", topic, "error", err)
		return
	}
	o.stats.ConfigMessages.Add(1)

	identity := dt.Identity()
	if o.isDeviceIgnored(cfg) {
		o.stats.IgnoredMessages.Add(1)
		o.logger.Debug("device ignored by topic prefix", "identity", identity)
		return
	}

	proposal, classified := Classify(dt.Component, cfg)
	if !classified {
		o.logger.Debug("device not classified",
			"identity", identity,
			"component", dt.Component,
		)
	}

	result := o.index.Upsert(identity, dt.Component, proposal, cfg)
	if result.CategoryKept {
		o.logger.Debug("kept more specific category",
			"identity", identity,
			"category", result.Entry.Classification.Category.String(),
		)
	}

	switch result.Action {
	case ActionCreate:
		o.createDevice(ctx, result.Entry)
	case ActionUpdate:
		o.updateDeviceConfig(ctx, result)
	}

	if result.TopicsChanged {
		o.resubscribe()
	}
}

func (o *Orchestrator) isDeviceIgnored(cfg Config) bool {
	for _, t := range cfg.Topics() {
		for ignored := range o.ignored {
			if strings.HasPrefix(t, ignored) {
				return true
			}
		}
	}
	return false
}

func (o *Orchestrator) createDevice(ctx context.Context, e Entry) {
	raw, err := e.Config.Marshal()
	if err != nil {
		o.logger.Error("serializing device config", "identity", e.Identity, "error", err)
		o.index.ResetCreate(e.Identity)
		return
	}

	handle, err := o.registry.CreateDevice(ctx, DeviceSpec{
		Identity:       e.Identity,
		Name:           e.Config.DisplayName(e.Identity),
		Component:      e.Component,
		Classification: e.Classification,
		Config:         raw,
		Active:         o.settings.DefaultDeviceActive,
	})
	if err != nil {
		o.stats.RegistryErrors.Add(1)
		o.logger.Error("creating device", "identity", e.Identity, "error", err)
		o.index.ResetCreate(e.Identity)
		return
	}

	o.index.SetHandle(e.Identity, handle)
	e.Handle = handle
	o.stats.DevicesCreated.Add(1)
	o.logger.Info("device discovered",
		"identity", e.Identity,
		"category", e.Classification.Category.String(),
		"handle", handle,
	)
	for _, l := range o.listeners {
		l.DeviceDiscovered(e)
	}
}

func (o *Orchestrator) updateDeviceConfig(ctx context.Context, result UpsertResult) {
	e := result.Entry
	if e.Handle == "" {
		return
	}
	raw, err := e.Config.Marshal()
	if err != nil {
		o.logger.Error("serializing device config", "identity", e.Identity, "error", err)
		return
	}

	update := HostUpdate{
		Name:             ptr(e.Config.DisplayName(e.Identity)),
		Config:           raw,
		SuppressTriggers: true,
	}
	if result.CategoryChanged {
		update.Classification = ptr(e.Classification)
	}
	if err := o.registry.UpdateDevice(ctx, e.Handle, update); err != nil {
		o.stats.RegistryErrors.Add(1)
		o.logger.Error("updating device config", "identity", e.Identity, "error", err)
		return
	}
	o.stats.DevicesUpdated.Add(1)
	o.logger.Debug("device config updated",
		"identity", e.Identity,
		"category_changed", result.CategoryChanged,
	)
}

func (o *Orchestrator) handleState(ctx context.Context, topic string, payload []byte) {
	o.stats.TopicLookups.Add(1)
	for _, e := range o.index.LookupByTopic(topic) {
		if u, ok := o.decoder.Decode(e, topic, payload); ok {
			o.applyState(ctx, e, u)
		}
	}

	// Status responses are rerouted to the devices owning the matching
	// telemetry topic.
	tele, ok := StatusToTelemetryTopic(topic)
	if !ok {
		return
	}
	o.stats.TopicLookups.Add(1)
	for _, e := range o.index.LookupByTopic(tele) {
		if t, _ := e.TelemetryTopic(); t != tele {
			continue
		}
		if u, ok := o.decoder.DecodeStatus(e, payload); ok {
			o.applyState(ctx, e, u)
		}
	}
}

func (o *Orchestrator) applyState(ctx context.Context, e Entry, u StateUpdate) {
	delta, ok := o.index.ApplyState(e.Identity, u)
	if !ok {
		return
	}
	if delta.IsEmpty() {
		if u.Periodic {
			o.stats.SuppressedUpdates.Add(1)
			return
		}
		// A repeated non-periodic state is still written so the host sees
		// the device as alive.
		delta = u
	}

	current, _ := o.index.Lookup(e.Identity)
	for _, l := range o.listeners {
		l.StateChanged(current, delta)
	}

	if current.Handle == "" {
		return
	}
	update := hostUpdateFor(current, delta)
	if u.Periodic && update.NValue != nil && current.Host != nil && *current.Host == update.hostValue() {
		// Routine telemetry repeating the stored value: keep only the
		// link health part, if any.
		update.NValue, update.SValue, update.Color = nil, nil, nil
		update.SuppressTriggers = true
		if update.IsEmpty() {
			o.stats.SuppressedUpdates.Add(1)
			return
		}
	}

	o.stats.StateUpdates.Add(1)
	if err := o.registry.UpdateDevice(ctx, current.Handle, update); err != nil {
		o.stats.RegistryErrors.Add(1)
		o.logger.Error("updating device state", "identity", e.Identity, "error", err)
		return
	}
	if update.NValue != nil {
		o.index.SetHostValue(e.Identity, update.hostValue())
	}
}

// hostUpdateFor builds the host write for a state delta. The value fields
// are computed from the merged state so that, for example, a brightness
// change still carries the current on/off value.
func hostUpdateFor(e Entry, delta StateUpdate) HostUpdate {
	update := HostUpdate{
		Signal:      delta.Signal,
		Battery:     delta.Battery,
		Description: delta.Description,
	}
	if delta.Available != nil {
		update.TimedOut = ptr(!*delta.Available)
	}
	if delta.HasValue() {
		if v, ok := ComputeHostValue(e.Classification.Category, e.State); ok {
			update.NValue = ptr(v.NValue)
			update.SValue = ptr(v.SValue)
			if v.Color != "" {
				update.Color = ptr(v.Color)
			}
		}
	}
	update.SuppressTriggers = update.NValue == nil
	return update
}
