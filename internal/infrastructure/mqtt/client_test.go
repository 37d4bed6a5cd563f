package mqtt

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
)

func testSettings() config.MQTTSettings {
	return config.MQTTSettings{
		Enabled:  true,
		Broker:   "127.0.0.1",
		Port:     1883,
		TLS:      false,
		Topic:    "edgeagent/test",
		ClientID: "edgeagent-test",
	}
}

func TestSessionClientID(t *testing.T) {
	now := time.UnixMilli(1_700_000_123_456)

	got := SessionClientID("v3s-monitor", now)
	if got != "v3s-monitor-23456" {
		t.Errorf("SessionClientID() = %q, want v3s-monitor-23456", got)
	}

	later := SessionClientID("v3s-monitor", now.Add(time.Millisecond))
	if later == got {
		t.Errorf("successive attempts produced the same ID %q", got)
	}
}

func TestBrokerURL(t *testing.T) {
	cfg := testSettings()
	if got := BrokerURL(cfg); got != "tcp://127.0.0.1:1883" {
		t.Errorf("BrokerURL() = %q, want tcp://127.0.0.1:1883", got)
	}

	cfg.TLS = true
	cfg.Broker = "broker.emqx.io"
	cfg.Port = 8883
	if got := BrokerURL(cfg); got != "ssl://broker.emqx.io:8883" {
		t.Errorf("BrokerURL() = %q, want ssl://broker.emqx.io:8883", got)
	}
}

func TestValidateTopic(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		wantErr bool
	}{
		{"plain", "vienkmt/v3s", false},
		{"empty", "", true},
		{"single-level wildcard", "sensors/+/temp", true},
		{"multi-level wildcard", "sensors/#", true},
		{"too long", strings.Repeat("a", maxTopicLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTopic(tt.topic)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTopic() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTopic) {
				t.Errorf("ValidateTopic() error = %v, want ErrInvalidTopic", err)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testSettings()
	cfg.Username = "agent"
	cfg.Password = "secret"

	opts := buildClientOptions(cfg, "edgeagent-test-42")

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "edgeagent-test-42" {
		t.Errorf("ClientID = %q, want edgeagent-test-42", opts.ClientID)
	}
	if opts.AutoReconnect || opts.ConnectRetry {
		t.Error("automatic reconnect must be off; the sink loop owns retries")
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false, want true")
	}
	if opts.Username != "agent" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want agent/secret", opts.Username, opts.Password)
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig set without TLS enabled")
	}
}

func TestBuildClientOptions_TLSVerifiesAgainstSystemRoots(t *testing.T) {
	cfg := testSettings()
	cfg.TLS = true
	cfg.Broker = "broker.emqx.io"
	cfg.Port = 8883

	opts := buildClientOptions(cfg, "id")

	if opts.TLSConfig == nil {
		t.Fatal("TLSConfig = nil, want TLS settings")
	}
	if opts.TLSConfig.InsecureSkipVerify {
		t.Error("InsecureSkipVerify = true, certificate verification must stay on")
	}
	if opts.TLSConfig.RootCAs != nil {
		t.Error("RootCAs set, want nil to use the system pool")
	}
	if opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("MinVersion = %#x, want %#x", opts.TLSConfig.MinVersion, tlsMinVersion)
	}
	if opts.TLSConfig.ServerName != "broker.emqx.io" {
		t.Errorf("ServerName = %q, want broker.emqx.io", opts.TLSConfig.ServerName)
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testSettings()
	cfg.Port = 1 // nothing listens here

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := Connect(ctx, cfg, "edgeagent-refused")
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_CancelledContext(t *testing.T) {
	cfg := testSettings()
	cfg.Broker = "192.0.2.1" // TEST-NET-1, never routable
	cfg.Port = 1883

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, cfg, "edgeagent-cancelled")
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Errorf("Connect() error = %v, cancellation is not a timeout", err)
	}
}

func TestConnect_SilentBrokerTimesOut(t *testing.T) {
	// Accepts TCP but never answers CONNECT.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()
	go func() {
		var held []net.Conn
		defer func() {
			for _, c := range held {
				c.Close()
			}
		}()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			held = append(held, conn)
		}
	}()

	cfg := testSettings()
	cfg.Port = ln.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err = Connect(ctx, cfg, "edgeagent-silent")
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Connect() error = %v, want ErrTimeout", err)
	}
}

func TestPublish_NotConnected(t *testing.T) {
	c := &Client{}

	err := c.Publish(context.Background(), "edgeagent/test", []byte("{}"))
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestPublish_InvalidTopicCheckedFirst(t *testing.T) {
	c := &Client{}

	err := c.Publish(context.Background(), "", []byte("{}"))
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() error = %v, want ErrInvalidTopic", err)
	}
}

func TestPublish_PayloadTooLarge(t *testing.T) {
	c := &Client{}

	err := c.Publish(context.Background(), "edgeagent/test", make([]byte, maxPayloadSize+1))
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
}

func TestClose_NilAndUnconnected(t *testing.T) {
	var nilClient *Client
	if err := nilClient.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
