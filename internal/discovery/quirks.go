package discovery

import (
	"regexp"
	"strings"
)

// Tasmota topic segments.
const (
	segmentTelemetry = "tele"
	segmentStatus    = "stat"
	segmentCommand   = "cmnd"
	suffixState      = "STATE"
	suffixStatus     = "STATUS"
	suffixLWT        = "LWT"
)

// statusResponse matches the last segment of a Tasmota STATUS<n> response.
var statusResponse = regexp.MustCompile(`^STATUS[0-9]+$`)

// QuirkRule recognises one firmware topic convention and derives an
// additional topic field from it.
//
// A rule matches when the topic in TopicField contains every marker in
// TopicMarkers and the availability topic contains every marker in
// AvailabilityMarkers. Markers are matched against the topic with a leading
// "/" so that "/stat/" also matches a topic starting with "stat/".
type QuirkRule struct {
	Name                string
	TopicField          string
	TopicMarkers        []string
	AvailabilityMarkers []string
	DerivedField        string
	Derive              func(availability string) (string, bool)
}

// tasmotaTelemetry swaps the trailing /LWT of an availability topic for /STATE.
func tasmotaTelemetry(availability string) (string, bool) {
	marker := "/" + suffixLWT
	i := strings.LastIndex(availability, marker)
	if i < 0 {
		return "", false
	}
	return availability[:i] + "/" + suffixState + availability[i+len(marker):], true
}

func tasmotaRule(name, field string, markers ...string) QuirkRule {
	return QuirkRule{
		Name:                name,
		TopicField:          field,
		TopicMarkers:        markers,
		AvailabilityMarkers: []string{"/" + segmentTelemetry + "/", "/" + suffixLWT},
		DerivedField:        FieldTelemetryTopic,
		Derive:              tasmotaTelemetry,
	}
}

// DefaultQuirkRules lists the known firmware conventions, checked in order.
// The first matching rule wins.
var DefaultQuirkRules = []QuirkRule{
	tasmotaRule("tasmota-result", FieldStateTopic, "/stat/", "/RESULT"),
	tasmotaRule("tasmota-state", FieldStateTopic, "/tele/", "/STATE"),
	tasmotaRule("tasmota-sensor", FieldStateTopic, "/tele/", "/SENSOR"),
	tasmotaRule("tasmota-power", FieldStateTopic, "/stat/", "/POWER"),
	tasmotaRule("tasmota-command", FieldCommandTopic, "/cmnd/", "/POWER"),
}

// AugmentQuirks applies DefaultQuirkRules to cfg.
func AugmentQuirks(cfg Config) Config {
	return AugmentWithRules(cfg, DefaultQuirkRules)
}

// AugmentWithRules returns a copy of cfg with the field derived by the
// first matching rule. Derived fields are always recomputed: a stale value
// carried in cfg is dropped before matching. A config that matches no rule
// comes back without derived fields and never produces an error.
func AugmentWithRules(cfg Config, rules []QuirkRule) Config {
	out := cfg.Clone()
	if out == nil {
		out = Config{}
	}
	for _, rule := range rules {
		delete(out, rule.DerivedField)
	}

	for _, rule := range rules {
		if derived, ok := rule.apply(out); ok {
			out[rule.DerivedField] = String(derived)
			break
		}
	}
	return out
}

func (r QuirkRule) apply(cfg Config) (string, bool) {
	topic, ok := cfg.String(r.TopicField)
	if !ok || !containsAll(topic, r.TopicMarkers) {
		return "", false
	}
	availability, ok := cfg.String(FieldAvailabilityTopic)
	if !ok || !containsAll(availability, r.AvailabilityMarkers) {
		return "", false
	}
	return r.Derive(availability)
}

func containsAll(topic string, markers []string) bool {
	anchored := "/" + topic
	for _, m := range markers {
		if !strings.Contains(anchored, m) {
			return false
		}
	}
	return true
}

// StatusToTelemetryTopic maps a Tasmota status response topic such as
// "stat/dev1/STATUS5" to the matching telemetry topic "tele/dev1/STATE".
func StatusToTelemetryTopic(topic string) (string, bool) {
	segments := strings.Split(topic, "/")
	last := len(segments) - 1
	if last < 1 || !statusResponse.MatchString(segments[last]) {
		return "", false
	}
	for i := 0; i < last; i++ {
		if segments[i] == segmentStatus {
			segments[i] = segmentTelemetry
			segments[last] = suffixState
			return strings.Join(segments, "/"), true
		}
	}
	return "", false
}

// StatusCommandTopic returns the topic that requests a status report for a
// device with the given telemetry topic: "tele/dev1/STATE" becomes
// "cmnd/dev1/STATUS".
func StatusCommandTopic(telemetry string) (string, bool) {
	return rewriteTelemetry(telemetry, segmentCommand, suffixStatus)
}

// StatusWildcard returns the subscription that captures a device's status
// responses: "tele/dev1/STATE" becomes "stat/dev1/#".
func StatusWildcard(telemetry string) (string, bool) {
	return rewriteTelemetry(telemetry, segmentStatus, "#")
}

func rewriteTelemetry(telemetry, segment, last string) (string, bool) {
	segments := strings.Split(telemetry, "/")
	n := len(segments) - 1
	if n < 1 || segments[n] != suffixState {
		return "", false
	}
	for i := 0; i < n; i++ {
		if segments[i] == segmentTelemetry {
			segments[i] = segment
			segments[n] = last
			return strings.Join(segments, "/"), true
		}
	}
	return "", false
}
