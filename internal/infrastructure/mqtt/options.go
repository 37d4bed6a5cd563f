package mqtt

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for a connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for a QoS 1 acknowledgement.
	defaultPublishTimeout = 10 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 30 * time.Second

	// publishQoS is at-least-once delivery.
	publishQoS = 1

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12

	// maxTopicLength is the MQTT limit on UTF-8 encoded topic names.
	maxTopicLength = 65535
)

// SessionClientID returns the client ID for one connection attempt: the
// configured base plus the current Unix milliseconds modulo 100000.
func SessionClientID(base string, now time.Time) string {
	return fmt.Sprintf("%s-%d", base, now.UnixMilli()%100000)
}

// BrokerURL returns the paho broker URL, ssl:// when TLS is on and tcp:// otherwise.
func BrokerURL(cfg config.MQTTSettings) string {
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker, cfg.Port)
}

// ValidateTopic reports whether topic can be published to.
func ValidateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidTopic, maxTopicLength)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards are not allowed in %q", ErrInvalidTopic, topic)
	}
	return nil
}

// buildClientOptions creates paho MQTT options for one session.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - The per-session client ID
//   - Authentication credentials (if provided)
//   - Clean session with no automatic reconnect or connect retry
//   - TLS verified against the system roots (if enabled)
func buildClientOptions(cfg config.MQTTSettings, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(BrokerURL(cfg))
	opts.SetClientID(clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)

	// The sink loop owns retries; a session that drops stays dropped.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetWriteTimeout(defaultPublishTimeout)

	if cfg.TLS {
		// nil RootCAs selects the host's system certificate pool.
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
			ServerName: cfg.Broker,
		})
	}

	return opts
}
