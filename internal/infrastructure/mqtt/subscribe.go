package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Subscribe requests subscriptions for every topic in topics at the
// configured QoS. Messages are delivered to the handler set with
// SetMessageHandler.
//
// The request is fire-and-forget: Subscribe returns once the packet is
// queued, and the broker's acknowledgement (or the failure) is reported
// through the SetOnSubscribed callback.
//
// Topics can include MQTT wildcards:
//   - + (single-level): "homeassistant/+/+/config"
//   - # (multi-level): "homeassistant/#"
//
// Returns:
//   - error: Validation failures or ErrNotConnected
func (c *Client) Subscribe(topics []string) error {
	if len(topics) == 0 {
		return ErrInvalidTopic
	}
	qos := byte(c.cfg.QoS)
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	filters := make(map[string]byte, len(topics))
	for _, topic := range topics {
		if topic == "" {
			return ErrInvalidTopic
		}
		filters[topic] = qos
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	for topic := range filters {
		c.subscriptions[topic] = struct{}{}
	}
	c.subMu.Unlock()

	// A nil callback routes messages to the default publish handler.
	token := c.client.SubscribeMultiple(filters, nil)
	requested := append([]string(nil), topics...)
	go c.awaitSubscription(token, requested)

	return nil
}

// awaitSubscription waits on a subscribe token and reports the outcome.
func (c *Client) awaitSubscription(token pahomqtt.Token, topics []string) {
	var err error
	switch {
	case !token.WaitTimeout(defaultPublishTimeout):
		err = fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	case token.Error() != nil:
		err = fmt.Errorf("%w: %w", ErrSubscribeFailed, token.Error())
	}

	if err != nil {
		c.subMu.Lock()
		for _, topic := range topics {
			delete(c.subscriptions, topic)
		}
		c.subMu.Unlock()
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT subscribe failed", "topics", len(topics), "error", err)
		}
	}

	c.callbackMu.RLock()
	callback := c.onSubscribed
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(topics, err)
	}
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription checks if a subscription exists for the given topic.
//
// Note: This checks only the exact topic string, not pattern matching.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[topic]
	return exists
}
