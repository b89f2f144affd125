// Package mqtt is the bus transport for the discovery adapter.
//
// It wraps github.com/eclipse/paho.mqtt.golang and exposes the small surface
// the discovery core drives: Subscribe with a topic set, Publish, Ping and
// Reconnect, plus callbacks for connect, disconnect and subscription
// acknowledgement.
//
// # Delivery
//
// All requests are fire-and-forget. Publish and Subscribe queue the packet
// and return; outcomes are delivered via callbacks or logged. Every inbound
// message on every subscription reaches the single handler set with
// SetMessageHandler, in arrival order.
//
// # Reconnection
//
// paho's automatic reconnect is disabled. The owner checks IsConnected and
// IsConnecting on a schedule and calls Reconnect, which makes reconnection
// level-triggered rather than edge-triggered.
//
// # Status
//
// The client publishes a retained status document to
// graylogic/discovery/status on connect and on each Ping, and registers an
// offline Last Will on the same topic.
//
// # Usage
//
//	client, err := mqtt.New(cfg.MQTT)
//	client.SetMessageHandler(func(topic string, payload []byte) error { ... })
//	client.SetOnConnect(func() { ... })
//	if err := client.Connect(); err != nil { ... }
//	client.Subscribe([]string{"homeassistant/#"})
package mqtt
