package mqtt

import "strings"

// TopicPrefixSystem is the base for the adapter's own topics.
const TopicPrefixSystem = "graylogic/discovery"

// Topics provides builders for the adapter's MQTT topics.
type Topics struct{}

// SystemStatus returns the retained online/offline status topic.
//
// Example: graylogic/discovery/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// DiscoveryWildcard returns the subscription covering every announcement
// under a discovery prefix.
//
// Example: homeassistant/#
func (Topics) DiscoveryWildcard(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/#"
}

// IsWildcard reports whether topic is a subscription filter rather than a
// concrete topic.
func IsWildcard(topic string) bool {
	return strings.ContainsAny(topic, "+#")
}
