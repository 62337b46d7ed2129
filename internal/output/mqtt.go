package output

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chrisdamba/trafikcam/internal/models"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttWaitTimeout = 10 * time.Second

// StatePublisher mirrors every published camera state to an MQTT topic
// per location, retained so that new subscribers see the current state.
type StatePublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
}

func NewMQTTClient(cfg models.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttWaitTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttWaitTimeout) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", cfg.Broker, err)
	}
	return client, nil
}

func NewStatePublisher(client mqtt.Client, prefix string, qos byte) *StatePublisher {
	return &StatePublisher{client: client, prefix: strings.TrimRight(prefix, "/"), qos: qos}
}

// Topic is the state topic of a location.
func (p *StatePublisher) Topic(location string) string {
	return fmt.Sprintf("%s/%s/state", p.prefix, location)
}

func (p *StatePublisher) Publish(ctx context.Context, result *models.CycleResult, state models.CameraState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal camera state: %w", err)
	}

	token := p.client.Publish(p.Topic(result.Location), p.qos, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return token.Error()
}

func (p *StatePublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
