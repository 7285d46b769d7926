package wled

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig describes how to reach WLED's MQTT API.
type MQTTConfig struct {
	Broker   string // tcp://host:1883
	ClientID string
	Username string
	Password string
	Topic    string // device topic, e.g. "wled/taxi"; states go to Topic+"/api"
}

// MQTTPublisher sends states to a WLED device through an MQTT broker.
type MQTTPublisher struct {
	topic   string
	client  pahomqtt.Client
	publish func(topic string, payload []byte) error
	logger  *slog.Logger
}

// NewMQTTPublisher builds a publisher. Call Connect before Send.
func NewMQTTPublisher(cfg MQTTConfig, logger *slog.Logger) *MQTTPublisher {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)

	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("jaxitaxi-%d", time.Now().Unix()))
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c pahomqtt.Client) {
		logger.Info("connected to mqtt broker", "broker", cfg.Broker)
	}
	opts.OnConnectionLost = func(c pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "err", err)
	}

	p := &MQTTPublisher{
		topic:  strings.TrimRight(cfg.Topic, "/"),
		client: pahomqtt.NewClient(opts),
		logger: logger,
	}
	p.publish = p.pahoPublish
	return p
}

// Connect waits for the broker connection or ctx.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	token := p.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("connect mqtt broker: %w", token.Error())
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connect mqtt broker: %w", ctx.Err())
	}
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	if p.client != nil {
		p.client.Disconnect(250)
	}
}

// Topic returns the API topic states are published to.
func (p *MQTTPublisher) Topic() string {
	return p.topic + "/api"
}

// Send publishes st as JSON on {topic}/api.
func (p *MQTTPublisher) Send(_ context.Context, st State) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := p.publish(p.Topic(), payload); err != nil {
		return err
	}
	p.logger.Debug("published state", "topic", p.Topic(), "size", len(payload))
	return nil
}

func (p *MQTTPublisher) pahoPublish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Fanout sends one state to every sender and joins the errors.
type Fanout []Sender

func (f Fanout) Send(ctx context.Context, st State) error {
	var errs []error
	for _, s := range f {
		if err := s.Send(ctx, st); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
