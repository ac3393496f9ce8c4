package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dewansh/dewhome-core/internal/infrastructure/config"
)

// Logger is the logging interface used by the client.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler handles one inbound message. A returned error is logged.
// Handlers run on paho's goroutines and should not block.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client is the DEWHOME broker connection. It announces online/offline on
// dewhome/system/status and restores subscriptions after a reconnect.
// All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	mu            sync.RWMutex
	connected     bool
	subscriptions map[string]subscription
	logger        Logger
}

// Connect dials the broker with the offline status registered as last
// will and waits for the first connection.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })
	c.client = pahomqtt.NewClient(opts)

	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s:%d: timeout after %v",
			ErrConnectionFailed, cfg.Broker.Host, cfg.Broker.Port, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s:%d: %w", ErrConnectionFailed, cfg.Broker.Host, cfg.Broker.Port, err)
	}

	// onConnect runs asynchronously; callers may publish as soon as we return.
	c.setConnected(true)
	return c, nil
}

func (c *Client) onConnect() {
	c.setConnected(true)

	c.mu.RLock()
	for topic, sub := range c.subscriptions {
		c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
	restored := len(c.subscriptions)
	c.mu.RUnlock()

	c.announce("online", "")
	c.log().Info("mqtt connected",
		"broker", c.cfg.Broker.Host,
		"port", c.cfg.Broker.Port,
		"subscriptions", restored,
	)
}

func (c *Client) onConnectionLost(err error) {
	c.setConnected(false)
	c.log().Warn("mqtt connection lost", "error", err)
}

// announce publishes a retained status message for this client.
func (c *Client) announce(status, reason string) pahomqtt.Token {
	return c.client.Publish(Topics{}.SystemStatus(), c.qos(), true,
		statusPayload(c.cfg.Broker.ClientID, status, reason))
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Client) qos() byte {
	return byte(c.cfg.QoS) //nolint:gosec // G115: validated to 0..2 by config
}

// Close announces a graceful shutdown and disconnects.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	if c.IsConnected() {
		c.announce("offline", "graceful_shutdown").WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)
	return nil
}

// HealthCheck backs the "mqtt" entry of GET /health.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the broker connection is currently up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client != nil && c.client.IsConnected()
}

// SetLogger sets the logger for connection events and handler errors.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.logger == nil {
		return noopLogger{}
	}
	return c.logger
}

// wrapHandler recovers panics and logs handler errors.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log().Error("mqtt handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.log().Warn("mqtt handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
