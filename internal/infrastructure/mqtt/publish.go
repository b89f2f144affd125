package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Publish queues a message on the specified topic at the configured QoS.
//
// Publishing is fire-and-forget: the call does not wait for the broker.
// Delivery failures are logged when a logger is set.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "cmnd/sonoff-kitchen/STATUS")
//   - payload: The message payload (max 1MB)
//   - retain: Whether the broker should retain the message
//
// Returns:
//   - error: Validation failures or ErrNotConnected
func (c *Client) Publish(topic, payload string, retain bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	qos := byte(c.cfg.QoS)
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retain, payload)
	go c.awaitPublish(token, topic)
	return nil
}

// awaitPublish logs a failed or timed out publish.
func (c *Client) awaitPublish(token pahomqtt.Token, topic string) {
	logger := c.getLogger()
	if !token.WaitTimeout(defaultPublishTimeout) {
		if logger != nil {
			logger.Warn("MQTT publish timed out", "topic", topic, "timeout", defaultPublishTimeout)
		}
		return
	}
	if err := token.Error(); err != nil && logger != nil {
		logger.Warn("MQTT publish failed", "topic", topic, "error", fmt.Errorf("%w: %w", ErrPublishFailed, err))
	}
}
