package discovery

import (
	"sort"
	"strings"
	"sync"
)

// stateTopicFields lists the topic fields a device is subscribed on.
// Command topics and other outbound fields are never subscribed.
var stateTopicFields = []string{
	FieldAvailabilityTopic,
	FieldStateTopic,
	FieldBrightnessStateTopic,
	FieldRGBStateTopic,
	FieldColorTempStateTopic,
	FieldPositionTopic,
}

// Entry is one known device as held by the Index.
type Entry struct {
	Identity       string
	Component      string
	Classification Classification
	Config         Config

	// Handle is the host registry record ID, empty until the record exists.
	Handle string

	// State is the last known normalised state.
	State StateUpdate

	// Host is the value last written to, or loaded from, the host record.
	Host *HostValue

	created bool
}

// Classified reports whether the device has a category.
func (e Entry) Classified() bool { return !e.Classification.Category.IsZero() }

// TelemetryTopic returns the synthetic telemetry topic, if any.
func (e Entry) TelemetryTopic() (string, bool) {
	t, ok := e.Config.String(FieldTelemetryTopic)
	return t, ok && t != ""
}

func (e Entry) clone() Entry {
	cpy := e
	cpy.Config = e.Config.Clone()
	cpy.State = e.State.clone()
	if e.Host != nil {
		h := *e.Host
		cpy.Host = &h
	}
	return cpy
}

// interestingTopics returns the topics this entry needs subscribed.
func (e Entry) interestingTopics() map[string]struct{} {
	topics := make(map[string]struct{})
	for _, field := range stateTopicFields {
		if t, ok := e.Config.String(field); ok && t != "" {
			topics[t] = struct{}{}
		}
	}
	if tele, ok := e.TelemetryTopic(); ok {
		topics[tele] = struct{}{}
		if wildcard, ok := StatusWildcard(tele); ok {
			topics[wildcard] = struct{}{}
		}
	}
	return topics
}

// UpsertAction is the host registry action an upsert calls for.
type UpsertAction uint8

// Upsert actions.
const (
	ActionNone UpsertAction = iota
	ActionCreate
	ActionUpdate
)

// String returns the action name.
func (a UpsertAction) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	default:
		return "none"
	}
}

// UpsertResult describes what an upsert changed.
type UpsertResult struct {
	Action UpsertAction

	// Entry is a copy of the stored entry after the upsert.
	Entry Entry

	// CategoryChanged is set on updates that change the classification.
	CategoryChanged bool

	// CategoryKept is set when the stored category was more specific than
	// the proposal and was retained.
	CategoryKept bool

	// TopicsChanged is set when the subscription set must be reissued.
	TopicsChanged bool
}

// Index maps device identities to their configs and topics to the devices
// that reference them.
//
// Mutations are expected from a single writer. Readers may run concurrently.
type Index struct {
	prefix string

	mu      sync.RWMutex
	devices map[string]*Entry
	topics  map[string]map[string]struct{} // topic -> identities
}

// NewIndex creates an empty index for the given discovery prefix.
func NewIndex(prefix string) *Index {
	return &Index{
		prefix:  strings.TrimSuffix(prefix, "/"),
		devices: make(map[string]*Entry),
		topics:  make(map[string]map[string]struct{}),
	}
}

// Upsert stores cfg under identity with the proposed classification.
//
// An unknown identity with a classification yields ActionCreate. An unknown
// identity without one is stored silently and is created by a later upsert
// that classifies it. A known identity yields ActionUpdate only when the
// classification or the config differs from what is stored.
//
// When the stored category is more specific than the proposal (a combined
// temperature and humidity sensor announced without its humidity field),
// the stored classification and config are kept and only value_template is
// refreshed from cfg.
func (idx *Index) Upsert(identity, component string, proposal Classification, cfg Config) UpsertResult {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	cfg = cfg.Clone()
	existing, known := idx.devices[identity]

	if !known {
		entry := &Entry{
			Identity:       identity,
			Component:      component,
			Classification: proposal,
			Config:         cfg,
		}
		idx.devices[identity] = entry
		idx.indexTopics(identity, nil, cfg)

		result := UpsertResult{TopicsChanged: len(entry.interestingTopics()) > 0}
		if entry.Classified() {
			entry.created = true
			result.Action = ActionCreate
		}
		result.Entry = entry.clone()
		return result
	}

	var result UpsertResult
	if proposal.Category.IsZero() {
		// An unclassifiable announcement never changes the host type.
		proposal = existing.Classification
	}
	if existing.Classification.Category.MoreSpecificThan(proposal.Category) {
		proposal = existing.Classification
		cfg = refreshValueTemplate(existing.Config, cfg)
		result.CategoryKept = true
	}

	before := existing.interestingTopics()
	oldCfg := existing.Config
	categoryChanged := existing.Classification != proposal
	configChanged := !oldCfg.Equal(cfg)

	existing.Component = component
	existing.Classification = proposal
	existing.Config = cfg
	if configChanged {
		idx.indexTopics(identity, oldCfg, cfg)
	}
	result.TopicsChanged = !sameTopicSet(before, existing.interestingTopics())

	switch {
	case !existing.created && existing.Classified():
		existing.created = true
		result.Action = ActionCreate
	case existing.created && (categoryChanged || configChanged):
		result.Action = ActionUpdate
		result.CategoryChanged = categoryChanged
	}
	result.Entry = existing.clone()
	return result
}

// refreshValueTemplate returns stored with value_template taken from next.
func refreshValueTemplate(stored, next Config) Config {
	out := stored.Clone()
	if v, ok := next[FieldValueTemplate]; ok {
		out[FieldValueTemplate] = v
	} else {
		delete(out, FieldValueTemplate)
	}
	return out
}

// indexTopics replaces the topic mappings of identity. Callers hold the lock.
func (idx *Index) indexTopics(identity string, oldCfg, newCfg Config) {
	for _, topic := range oldCfg.Topics() {
		if set, ok := idx.topics[topic]; ok {
			delete(set, identity)
			if len(set) == 0 {
				delete(idx.topics, topic)
			}
		}
	}
	for _, topic := range newCfg.Topics() {
		set, ok := idx.topics[topic]
		if !ok {
			set = make(map[string]struct{})
			idx.topics[topic] = set
		}
		set[identity] = struct{}{}
	}
}

func sameTopicSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for t := range a {
		if _, ok := b[t]; !ok {
			return false
		}
	}
	return true
}

// SetHandle records the host registry handle of a created device.
func (idx *Index) SetHandle(identity, handle string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if e, ok := idx.devices[identity]; ok {
		e.Handle = handle
		e.created = true
	}
}

// ResetCreate marks a device as not yet created so the next upsert retries
// the creation. It is called when the host registry rejected a create.
func (idx *Index) ResetCreate(identity string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if e, ok := idx.devices[identity]; ok && e.Handle == "" {
		e.created = false
	}
}

// Seed loads a device that already has a host record.
func (idx *Index) Seed(entry Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	stored := entry.clone()
	stored.created = true
	if old, ok := idx.devices[entry.Identity]; ok {
		idx.indexTopics(entry.Identity, old.Config, stored.Config)
	} else {
		idx.indexTopics(entry.Identity, nil, stored.Config)
	}
	idx.devices[entry.Identity] = &stored
}

// SetHostValue records the value the host record now holds.
func (idx *Index) SetHostValue(identity string, v HostValue) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if e, ok := idx.devices[identity]; ok {
		e.Host = &v
	}
}

// Lookup returns a copy of the entry for identity.
func (idx *Index) Lookup(identity string) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.devices[identity]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// LookupByTopic returns copies of every entry whose config references topic
// in any *_topic field, sorted by identity.
func (idx *Index) LookupByTopic(topic string) []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	set := idx.topics[topic]
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, idx.devices[id].clone())
	}
	return entries
}

// TopicsOfInterest returns the sorted subscription set: every state-bearing
// topic of every device, each telemetry topic and its status wildcard, and
// the discovery prefix wildcard.
func (idx *Index) TopicsOfInterest() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	all := map[string]struct{}{idx.prefix + "/#": {}}
	for _, e := range idx.devices {
		for t := range e.interestingTopics() {
			all[t] = struct{}{}
		}
	}

	topics := make([]string, 0, len(all))
	for t := range all {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// TelemetryEntries returns copies of every created device with a telemetry
// topic, sorted by identity.
func (idx *Index) TelemetryEntries() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var entries []Entry
	for _, e := range idx.devices {
		if _, ok := e.TelemetryTopic(); ok && e.created {
			entries = append(entries, e.clone())
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Identity < entries[j].Identity })
	return entries
}

// ApplyState merges update into the stored state of identity and returns
// only the fields that changed. The second result is false when identity
// is unknown.
func (idx *Index) ApplyState(identity string, update StateUpdate) (StateUpdate, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	e, ok := idx.devices[identity]
	if !ok {
		return StateUpdate{}, false
	}
	return e.State.merge(update), true
}

// Snapshot returns copies of all entries sorted by identity.
func (idx *Index) Snapshot() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entries := make([]Entry, 0, len(idx.devices))
	for _, e := range idx.devices {
		entries = append(entries, e.clone())
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Identity < entries[j].Identity })
	return entries
}

// Len returns the number of known devices.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.devices)
}
