// Package messaging publishes console snapshots to an MQTT broker or a Kafka
// cluster through a persistent outbox.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	kafkago "github.com/segmentio/kafka-go"

	"nodeconsole/config"
)

var ErrNotConnected = errors.New("messaging: not connected")

const defaultPublishTimeout = 10 * time.Second

// Publisher is the sending side the outbox drainer needs.
type Publisher interface {
	Publish(topic string, payload []byte) error
	IsConnected() bool
}

// transport is one broker connection.
type transport interface {
	send(ctx context.Context, topic string, payload []byte) error
	up() bool
	close()
}

// Client publishes to whichever backend the config names.
type Client struct {
	mu  sync.RWMutex
	cfg *config.MessagingConfig
	t   transport
}

func NewClient(cfg *config.MessagingConfig) *Client {
	return &Client{cfg: cfg}
}

// Connect dials the configured backend, replacing any earlier connection.
func (c *Client) Connect() error {
	var (
		t   transport
		err error
	)
	switch c.cfg.Backend {
	case "mqtt":
		t, err = dialMQTT(&c.cfg.MQTT)
	case "kafka":
		t, err = newKafkaTransport(&c.cfg.Kafka)
	default:
		err = fmt.Errorf("unknown messaging backend: %q", c.cfg.Backend)
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.t
	c.t = t
	c.mu.Unlock()
	if old != nil {
		old.close()
	}
	return nil
}

// Publish sends payload to topic, waiting at most the configured publish
// timeout for the broker to accept it.
func (c *Client) Publish(topic string, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.t == nil || !c.t.up() {
		return ErrNotConnected
	}
	timeout := c.cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.t.send(ctx, topic, payload); err != nil {
		return fmt.Errorf("%s publish %s: %w", c.cfg.Backend, topic, err)
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t != nil && c.t.up()
}

// Close drops the connection. The client can Connect again afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	t := c.t
	c.t = nil
	c.mu.Unlock()
	if t != nil {
		t.close()
	}
}

// --- MQTT ---

type mqttTransport struct {
	conn mqtt.Client
	qos  byte
}

func dialMQTT(cfg *config.MQTTConfig) (*mqttTransport, error) {
	broker := fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	conn := mqtt.NewClient(opts)
	token := conn.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return nil, fmt.Errorf("mqtt connect: timed out waiting for %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	return &mqttTransport{conn: conn, qos: cfg.QoS}, nil
}

func (m *mqttTransport) send(ctx context.Context, topic string, payload []byte) error {
	token := m.conn.Publish(topic, m.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mqttTransport) up() bool { return m.conn.IsConnected() }

func (m *mqttTransport) close() { m.conn.Disconnect(1000) }

// --- Kafka ---

// kafkaTransport has no connection to hold: the writer dials per batch, so it
// counts as up from construction until closed.
type kafkaTransport struct {
	w *kafkago.Writer
}

func newKafkaTransport(cfg *config.KafkaConfig) (*kafkaTransport, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	return &kafkaTransport{w: &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
	}}, nil
}

// send keys messages by topic so one console's snapshots stay ordered
// within a partition.
func (k *kafkaTransport) send(ctx context.Context, topic string, payload []byte) error {
	return k.w.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(topic),
		Value: payload,
	})
}

func (k *kafkaTransport) up() bool { return true }

func (k *kafkaTransport) close() { k.w.Close() }
