package emitter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 2 * time.Second
)

// ErrNotConnected is returned when publishing before the broker connection
// is up.
var ErrNotConnected = errors.New("mqtt not connected")

// MQTTConfig configures the MQTT emitter.
type MQTTConfig struct {
	Broker   string
	ClientID string
	// Topic is the prefix; events go to <Topic>/<garment>.
	Topic string
	QoS   byte
}

// MQTTEmitter publishes capture events to an MQTT broker.
type MQTTEmitter struct {
	cfg    MQTTConfig
	client mqtt.Client
	logger *zap.Logger

	mu        sync.RWMutex
	connected bool
	published uint64
}

// NewMQTTEmitter creates an unconnected emitter.
func NewMQTTEmitter(cfg MQTTConfig, logger *zap.Logger) *MQTTEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTEmitter{cfg: cfg, logger: logger.With(zap.String("component", "mqtt-emitter"))}
}

// Connect dials the broker. The client reconnects on its own afterwards.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		e.setConnected(true)
		e.logger.Info("mqtt connection established", zap.String("broker", e.cfg.Broker))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.setConnected(false)
		e.logger.Warn("mqtt connection lost, will auto-reconnect", zap.Error(err))
	}

	e.client = mqtt.NewClient(opts)

	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttConnectTimeout):
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

func (e *MQTTEmitter) Name() string { return "mqtt" }

// Topic returns the topic events for garment are published to.
func (e *MQTTEmitter) Topic(garment string) string {
	return fmt.Sprintf("%s/%s", e.cfg.Topic, garment)
}

func (e *MQTTEmitter) Emit(ctx context.Context, ev Event) error {
	if !e.isConnected() {
		return ErrNotConnected
	}

	payload, err := ev.Payload()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	token := e.client.Publish(e.Topic(string(ev.Garment)), e.cfg.QoS, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttPublishTimeout):
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()
	return nil
}

// Published returns how many events were acknowledged.
func (e *MQTTEmitter) Published() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.published
}

func (e *MQTTEmitter) Close() error {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
	}
	e.setConnected(false)
	return nil
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}
