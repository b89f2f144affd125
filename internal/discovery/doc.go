// Package discovery interprets Home Assistant style MQTT discovery messages
// and decodes the state messages that follow them.
//
// A device announces itself with a JSON config document published under the
// discovery prefix:
//
//	homeassistant/light/kitchen/config
//	homeassistant/sensor/node1/climate/config
//
// The config is normalised in a fixed order:
//
//  1. ExpandAbbreviations replaces short keys such as "stat_t" with their
//     canonical names, using a separate table for the nested device object.
//  2. ResolveTopicBase substitutes the "~" base topic into every *_topic field.
//  3. AugmentQuirks adds a synthetic tasmota_tele_topic for Tasmota firmware.
//  4. Classify proposes a Category and the host registry's legacy codes.
//
// The result is stored in an Index, which also maps every topic to the set
// of devices that reference it. State messages are looked up by topic and
// handed to Decode, which produces a StateUpdate of normalised values.
//
// # Concurrency
//
// The Orchestrator owns the Index and mutates it from a single goroutine
// (Run). Transport callbacks only enqueue events. The Index itself is safe
// for concurrent readers, which lets the HTTP API inspect it.
//
// # Errors
//
// Decode and classification failures are never returned to the transport:
// a malformed payload is treated as a string, a missing field is skipped and
// an unsupported value template is logged at debug level.
package discovery
