// Package mqtt mirrors device views onto an MQTT broker and accepts
// commands from it.
package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KevinKickass/GiraIoTCore/internal/config"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	keepAlive      = 30 * time.Second
	quiesceMillis  = 250
)

var ErrConnectionFailed = errors.New("mqtt: connection failed")

// Client is a paho client with subscriptions restored on reconnect.
type Client struct {
	client pahomqtt.Client
	qos    byte
	status string
	logger *zap.Logger

	subMu         sync.RWMutex
	subscriptions map[string]func(topic string, payload []byte)
}

// Connect dials the broker. The retained status topic flips to "offline"
// through the last will when the connection drops.
func Connect(cfg config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	c := &Client{
		qos:           cfg.QoS,
		status:        cfg.TopicPrefix + "/status",
		logger:        logger.With(zap.String("component", "mqtt")),
		subscriptions: make(map[string]func(string, []byte)),
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	opts.SetWill(c.status, "offline", 1, true)

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.logger.Info("MQTT connected", zap.String("broker", cfg.Broker))
		c.restoreSubscriptions()
		c.client.Publish(c.status, 1, true, "online")
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.logger.Warn("MQTT connection lost", zap.Error(err))
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt: publish %s timed out", topic)
	}
	return token.Error()
}

func (c *Client) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	c.subMu.Lock()
	c.subscriptions[topic] = handler
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, qos, wrap(handler))
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt: subscribe %s timed out", topic)
	}
	return token.Error()
}

func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for topic, handler := range c.subscriptions {
		c.client.Subscribe(topic, c.qos, wrap(handler))
	}
}

func wrap(handler func(string, []byte)) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	}
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Disconnect publishes a graceful offline status and closes the connection.
func (c *Client) Disconnect(quiesce uint) {
	if c.client.IsConnectionOpen() {
		c.client.Publish(c.status, 1, true, "offline").WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(quiesce)
}
