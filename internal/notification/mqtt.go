package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/agrisense/farm-advisor/internal/conf"
	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/logger"
)

const (
	mqttConnectTimeout = 30 * time.Second
	mqttPublishTimeout = 10 * time.Second
)

// mqttPublisher is the subset of mqtt.Client the provider uses.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// MQTTProvider publishes every event as JSON to a single topic.
type MQTTProvider struct {
	client mqttPublisher
	topic  string
	retain bool
}

// NewMQTTProvider connects to the broker in settings.
func NewMQTTProvider(settings conf.MQTTSettings) (*MQTTProvider, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(settings.Broker)
	opts.SetClientID(settings.ClientID)
	opts.SetUsername(settings.Username)
	opts.SetPassword(settings.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		GetLogger().Info("Connected to MQTT broker", logger.String("broker", settings.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		GetLogger().Warn("Connection to MQTT broker lost", logger.String("broker", settings.Broker), logger.Error(err))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, errors.Newf("timed out connecting to MQTT broker").
			Component("notification").
			Category(errors.CategoryNetwork).
			Context("provider", "mqtt").
			Build()
	}
	if err := token.Error(); err != nil {
		return nil, errors.New(err).
			Component("notification").
			Category(errors.CategoryNetwork).
			Context("provider", "mqtt").
			Build()
	}

	return newMQTTProvider(client, settings.Topic, settings.Retain), nil
}

func newMQTTProvider(client mqttPublisher, topic string, retain bool) *MQTTProvider {
	return &MQTTProvider{client: client, topic: topic, retain: retain}
}

func (p *MQTTProvider) Name() string { return "mqtt" }

// Supports accepts every event.
func (p *MQTTProvider) Supports(*Event) bool { return true }

// Send publishes e at QoS 0 under "<topic>/<kind>".
func (p *MQTTProvider) Send(ctx context.Context, e *Event) error {
	if !p.client.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("notification").
			Category(errors.CategoryNetwork).
			Context("provider", "mqtt").
			Build()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("provider", "mqtt").
			Build()
	}

	timeout := mqttPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	topic := fmt.Sprintf("%s/%s", p.topic, e.Kind)
	token := p.client.Publish(topic, 0, p.retain, payload)
	if !token.WaitTimeout(timeout) {
		return errors.Newf("publish to %s timed out", topic).
			Component("notification").
			Category(errors.CategoryNetwork).
			Context("provider", "mqtt").
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("provider", "mqtt").
			Context("topic", topic).
			Build()
	}
	return nil
}

// Close disconnects, allowing 250ms for in-flight work.
func (p *MQTTProvider) Close() error {
	p.client.Disconnect(250)
	return nil
}
