package mqtt

import (
	"context"
	"fmt"
	"sort"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-discovery/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the discovery adapter.
//
// Publish and subscribe requests are fire-and-forget: they hand the packet to
// paho and return immediately, completion is reported through callbacks.
// Automatic reconnection is disabled; the caller drives reconnects by calling
// Reconnect on its own schedule.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	// handler receives every message on every subscribed topic.
	handler   MessageHandler
	handlerMu sync.RWMutex

	// subscriptions tracks topics requested since the last connect.
	subscriptions map[string]struct{}
	subMu         sync.RWMutex

	connected  bool
	connecting bool
	connMu     sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	onSubscribed func(topics []string, err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked by the paho router goroutine and should hand the
// message off quickly.
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// New builds a client from configuration without connecting.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Client: Disconnected client; call Connect or Reconnect
//   - error: If TLS material cannot be loaded
func New(cfg config.MQTTConfig) (*Client, error) {
	opts, err := buildClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	configureLWT(opts, cfg.Broker.ClientID)

	c := &Client{
		cfg:           cfg,
		options:       opts,
		subscriptions: make(map[string]struct{}),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(msg)
	})

	c.client = pahomqtt.NewClient(opts)
	return c, nil
}

// Connect performs a blocking connection attempt bounded by defaultConnectTimeout.
//
// Returns:
//   - error: ErrConnectionFailed wrapping the cause
func (c *Client) Connect() error {
	if !c.beginConnecting() {
		return nil
	}
	return c.finishConnect(c.client.Connect())
}

// Reconnect starts an asynchronous connection attempt if the client is
// neither connected nor already connecting. Failure is reported through
// the disconnect callback.
func (c *Client) Reconnect() error {
	if !c.beginConnecting() {
		return nil
	}
	token := c.client.Connect()
	go func() {
		if err := c.finishConnect(token); err != nil {
			c.handleDisconnect(err)
		}
	}()
	return nil
}

// beginConnecting marks a connection attempt in progress.
// It returns false when one is already running or the client is connected.
func (c *Client) beginConnecting() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.connecting || (c.connected && c.client.IsConnected()) {
		return false
	}
	c.connecting = true
	return true
}

// finishConnect waits on a connect token and clears the connecting flag.
func (c *Client) finishConnect(token pahomqtt.Token) error {
	ok := token.WaitTimeout(defaultConnectTimeout)

	c.connMu.Lock()
	c.connecting = false
	c.connMu.Unlock()

	if !ok {
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously; record the state here so
	// IsConnected is accurate as soon as Connect returns.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()
	return nil
}

// handleConnect is called when the connection is established.
func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	// Clean sessions start with no subscriptions on the broker side.
	c.subMu.Lock()
	c.subscriptions = make(map[string]struct{})
	c.subMu.Unlock()

	c.publishOnlineStatus()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when the connection is lost or a connect attempt fails.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// publishOnlineStatus publishes the adapter's online status to the system status topic.
func (c *Client) publishOnlineStatus() {
	topic := Topics{}.SystemStatus()
	payload := buildOnlinePayload(c.cfg.Broker.ClientID)
	c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
}

// Ping refreshes the retained online status. Broker keepalive pings are
// handled by paho itself; this is the application-level liveness mark.
func (c *Client) Ping() error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.publishOnlineStatus()
	return nil
}

// Close gracefully disconnects from the MQTT broker.
//
// It publishes a graceful offline status (different from the LWT crash
// status) and waits for it before disconnecting.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		topic := Topics{}.SystemStatus()
		payload := buildOfflinePayload(c.cfg.Broker.ClientID)
		token := c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// IsConnecting reports whether a connection attempt is in flight.
func (c *Client) IsConnecting() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connecting
}

// Subscriptions returns the topics requested since the last connect, sorted.
func (c *Client) Subscriptions() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	topics := make([]string, 0, len(c.subscriptions))
	for t := range c.subscriptions {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// SetMessageHandler sets the handler invoked for every inbound message.
func (c *Client) SetMessageHandler(handler MessageHandler) {
	c.handlerMu.Lock()
	c.handler = handler
	c.handlerMu.Unlock()
}

// SetOnConnect sets a callback invoked each time a connection is established.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost or a
// reconnect attempt fails.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetOnSubscribed sets a callback invoked when the broker acknowledges a
// subscription request (err is nil) or the request fails.
func (c *Client) SetOnSubscribed(callback func(topics []string, err error)) {
	c.callbackMu.Lock()
	c.onSubscribed = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for error and panic logging.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// dispatch hands a message to the configured handler with panic recovery.
func (c *Client) dispatch(msg pahomqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}
	}()

	c.handlerMu.RLock()
	handler := c.handler
	c.handlerMu.RUnlock()
	if handler == nil {
		return
	}

	if err := handler(msg.Topic(), msg.Payload()); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT handler returned error",
				"topic", msg.Topic(),
				"error", err,
			)
		}
	}
}
