package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tkfj/hass-dewpoint/internal/config"
	"github.com/tkfj/hass-dewpoint/internal/sensor"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	qos            = byte(1)
	publishTimeout = 5 * time.Second
)

var ErrNotConnected = errors.New("mqtt client not connected")

// Client feeds statestream messages into a StateWriter and publishes dew
// point sensors (discovery, state, availability) back to the broker.
type Client struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	states    StateWriter
	mu        sync.RWMutex
	connected bool
	onConnect func()

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(cfg config.Config, states StateWriter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:    cfg,
		logger: logger,
		states: states,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Sensors go unavailable in Home Assistant if the bridge dies.
	opts.SetWill(c.bridgeStatusTopic(), payloadOffline, qos, true)

	// Paho runs the OnConnect handler on its own goroutine, so it may block on
	// tokens. Subscriptions are redone here because the session is clean.
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		c.handleConnected()
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// SetOnConnect registers fn to run after every (re)connect, once the
// statestream subscription is in place. Must be called before Connect.
func (c *Client) SetOnConnect(fn func()) {
	c.onConnect = fn
}

// Connect establishes connection to the MQTT broker.
// This function waits for the initial connection, and respects ctx and Disconnect().
func (c *Client) Connect(ctx context.Context) error {
	// Fail fast if already stopped.
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	// Fast path.
	if c.IsConnected() {
		return nil
	}

	// Start connect attempt. With ConnectRetry(true), it may keep retrying internally.
	token := c.client.Connect()

	// Wait in a ctx/stop-aware loop.
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// OnConnectHandler sets connected=true.
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

func (c *Client) handleConnected() {
	if err := c.subscribe(); err != nil {
		c.logger.Error("statestream subscribe failed", "error", err)
	}
	if err := c.publish(c.bridgeStatusTopic(), true, []byte(payloadOnline)); err != nil {
		c.logger.Warn("publish bridge status failed", "error", err)
	}
	if c.onConnect != nil {
		c.onConnect()
	}
}

// subscribe waits for each filter before sending the next one so retained
// units reach the store ahead of the states they qualify.
func (c *Client) subscribe() error {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		c.handleMessage(msg.Topic(), msg.Payload())
	}
	for _, filter := range statestreamFilters(c.cfg.StatestreamTopic) {
		token := c.client.Subscribe(filter, qos, handler)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("subscribe timeout for %s", filter)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe to %s: %w", filter, err)
		}
	}

	c.logger.Info("subscribed to statestream", "prefix", c.cfg.StatestreamTopic, "qos", qos)
	return nil
}

func (c *Client) handleMessage(topic string, payload []byte) {
	c.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	if !applyStatestream(c.states, c.cfg.StatestreamTopic, topic, payload) {
		c.logger.Debug("ignored statestream message", "topic", topic)
	}
}

// PublishState publishes the sensor state followed by its availability.
// Unavailable sensors only publish "offline" and keep their last state.
func (c *Client) PublishState(s sensor.Snapshot) error {
	if s.Available {
		if err := c.publish(c.stateTopic(s.UniqueID), true, []byte(s.State)); err != nil {
			return fmt.Errorf("publish state: %w", err)
		}
		if err := c.publish(c.availabilityTopic(s.UniqueID), true, []byte(payloadOnline)); err != nil {
			return fmt.Errorf("publish availability: %w", err)
		}
		return nil
	}
	if err := c.publish(c.availabilityTopic(s.UniqueID), true, []byte(payloadOffline)); err != nil {
		return fmt.Errorf("publish availability: %w", err)
	}
	return nil
}

// PublishDiscovery announces the sensor to Home Assistant.
func (c *Client) PublishDiscovery(s sensor.Snapshot) error {
	data, err := json.Marshal(c.discoveryPayload(s))
	if err != nil {
		return fmt.Errorf("marshal discovery: %w", err)
	}
	if err := c.publish(c.discoveryTopic(s.UniqueID), true, data); err != nil {
		return fmt.Errorf("publish discovery: %w", err)
	}
	return nil
}

// Withdraw clears the retained discovery, state and availability topics of a
// removed sensor.
func (c *Client) Withdraw(uniqueID string) error {
	for _, topic := range []string{
		c.discoveryTopic(uniqueID),
		c.stateTopic(uniqueID),
		c.availabilityTopic(uniqueID),
	} {
		if err := c.publish(topic, true, nil); err != nil {
			return fmt.Errorf("withdraw %s: %w", uniqueID, err)
		}
	}
	return nil
}

// publish hands the message to paho without waiting for the broker ack; the
// outcome is logged. Messages are sent in call order.
func (c *Client) publish(topic string, retained bool, payload []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			c.logger.Warn("publish timeout", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			c.logger.Error("publish failed", "topic", topic, "error", err)
			return
		}
		c.logger.Debug("published", "topic", topic, "size", len(payload))
	}()
	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect marks the bridge offline, stops the client and closes the MQTT
// connection. Idempotent and safe to call multiple times.
// After Disconnect, Connect() will return "client stopped".
func (c *Client) Disconnect() {
	// Signal shutdown once (unblocks any Connect loops).
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.client != nil && c.IsConnected() {
		token := c.client.Publish(c.bridgeStatusTopic(), qos, true, payloadOffline)
		token.WaitTimeout(2 * time.Second)

		unsub := c.client.Unsubscribe(statestreamFilters(c.cfg.StatestreamTopic)...)
		unsub.WaitTimeout(2 * time.Second)
	}

	// Paho Disconnect quiesces in-flight work for the given ms.
	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
