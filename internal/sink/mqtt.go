package sink

import (
	"context"
	"time"

	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/edge-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/edge-telemetry/internal/infrastructure/mqtt"
	"github.com/nerrad567/edge-telemetry/internal/telemetry"
)

// MQTT publishes envelopes to the configured broker topic with QoS 1.
type MQTT struct {
	now    func() time.Time
	logger *logging.Logger
}

// NewMQTT creates the MQTT sink kind.
func NewMQTT(logger *logging.Logger) *MQTT {
	return &MQTT{now: time.Now, logger: logger}
}

// Name implements Kind.
func (*MQTT) Name() string { return "mqtt" }

// Enabled implements Kind.
func (*MQTT) Enabled(s config.Settings) bool {
	return s.MQTT.Enabled && s.MQTT.Broker != ""
}

// Connect opens a new broker session with a fresh client identity.
func (m *MQTT) Connect(ctx context.Context, s config.Settings) (Transport, error) {
	clientID := mqtt.SessionClientID(s.MQTT.ClientID, m.now())
	client, err := mqtt.Connect(ctx, s.MQTT, clientID)
	if err != nil {
		return nil, err
	}
	if m.logger != nil {
		client.SetLogger(m.logger)
		m.logger.Info("mqtt session established",
			"broker", mqtt.BrokerURL(s.MQTT),
			"client_id", clientID,
			"topic", s.MQTT.Topic,
		)
	}
	return &mqttTransport{client: client, topic: s.MQTT.Topic}, nil
}

type mqttTransport struct {
	client *mqtt.Client
	topic  string
}

func (t *mqttTransport) Send(ctx context.Context, env telemetry.Envelope) error {
	return t.client.Publish(ctx, t.topic, env.Wire())
}

func (t *mqttTransport) IsConnected() bool {
	return t.client.IsConnected()
}

func (t *mqttTransport) Close() error {
	return t.client.Close()
}
