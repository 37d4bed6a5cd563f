package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Default runtime setting values.
const (
	DefaultMQTTPort     = 8883
	DefaultIntervalSecs = 3
	DefaultBaudRate     = 115200
	DefaultHTTPTimeout  = 10
)

// Settings is one generation of the hot-reloadable agent configuration.
//
// Settings is a plain value: every field is a scalar, so assigning it copies
// it completely. Generations are never mutated once handed to the Store.
type Settings struct {
	MQTT     MQTTSettings     `yaml:"mqtt" json:"mqtt"`
	HTTP     HTTPSettings     `yaml:"http" json:"http"`
	InfluxDB InfluxDBSettings `yaml:"influxdb" json:"influxdb"`
	General  GeneralSettings  `yaml:"general" json:"general"`
	UART     UARTSettings     `yaml:"uart" json:"uart"`
}

// MQTTSettings configures the message-broker sink.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Broker   string `yaml:"broker" json:"broker"`
	Port     int    `yaml:"port" json:"port"`
	TLS      bool   `yaml:"tls" json:"tls"`
	Topic    string `yaml:"topic" json:"topic"`
	ClientID string `yaml:"client_id" json:"client_id"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
}

// HTTPSettings configures the HTTP POST sink.
type HTTPSettings struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	URL         string `yaml:"url" json:"url"`
	TimeoutSecs int    `yaml:"timeout_secs" json:"timeout_secs"`
}

// InfluxDBSettings configures the InfluxDB sink.
type InfluxDBSettings struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url" json:"url"`
	Token   string `yaml:"token,omitempty" json:"token,omitempty"`
	Org     string `yaml:"org" json:"org"`
	Bucket  string `yaml:"bucket" json:"bucket"`
}

// GeneralSettings holds settings shared by all sinks.
type GeneralSettings struct {
	IntervalSecs int `yaml:"interval_secs" json:"interval_secs"`
}

// UARTSettings configures the serial device.
type UARTSettings struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Port     string `yaml:"port" json:"port"`
	BaudRate int    `yaml:"baudrate" json:"baudrate"`
}

// DefaultSettings returns the settings used when nothing has been persisted.
func DefaultSettings() Settings {
	return Settings{
		MQTT: MQTTSettings{
			Enabled:  true,
			Broker:   "broker.emqx.io",
			Port:     DefaultMQTTPort,
			TLS:      true,
			Topic:    "vienkmt/v3s",
			ClientID: "v3s-monitor",
		},
		HTTP: HTTPSettings{
			Enabled:     false,
			TimeoutSecs: DefaultHTTPTimeout,
		},
		InfluxDB: InfluxDBSettings{
			Enabled: false,
		},
		General: GeneralSettings{
			IntervalSecs: DefaultIntervalSecs,
		},
		UART: UARTSettings{
			Enabled:  true,
			Port:     "/dev/ttyS2",
			BaudRate: DefaultBaudRate,
		},
	}
}

// Normalize returns a copy with out-of-range numeric fields replaced by
// their defaults. Baud rates are left alone: the serial layer falls back
// to a safe rate itself.
func (s Settings) Normalize() Settings {
	if s.MQTT.Port < 1 || s.MQTT.Port > 65535 {
		s.MQTT.Port = DefaultMQTTPort
	}
	if s.General.IntervalSecs < 1 {
		s.General.IntervalSecs = 1
	}
	if s.HTTP.TimeoutSecs < 1 {
		s.HTTP.TimeoutSecs = DefaultHTTPTimeout
	}
	s.MQTT.Broker = strings.TrimSpace(s.MQTT.Broker)
	s.HTTP.URL = strings.TrimSpace(s.HTTP.URL)
	s.UART.Port = strings.TrimSpace(s.UART.Port)
	return s
}

// Validate reports settings that cannot work at all when their section is
// enabled. Disabled sections are never rejected.
func (s Settings) Validate() error {
	var errs []string

	if s.MQTT.Enabled {
		if s.MQTT.Broker == "" {
			errs = append(errs, "mqtt.broker is required")
		}
		if s.MQTT.Topic == "" {
			errs = append(errs, "mqtt.topic is required")
		}
		if s.MQTT.ClientID == "" {
			errs = append(errs, "mqtt.client_id is required")
		}
	}
	if s.HTTP.Enabled {
		if err := validateHTTPURL(s.HTTP.URL); err != nil {
			errs = append(errs, "http.url: "+err.Error())
		}
	}
	if s.InfluxDB.Enabled {
		if err := validateHTTPURL(s.InfluxDB.URL); err != nil {
			errs = append(errs, "influxdb.url: "+err.Error())
		}
		if s.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required")
		}
	}
	if s.UART.Enabled && s.UART.Port == "" {
		errs = append(errs, "uart.port is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("settings errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// Interval returns the snapshot sampling interval.
func (s Settings) Interval() time.Duration {
	if s.General.IntervalSecs < 1 {
		return time.Second
	}
	return time.Duration(s.General.IntervalSecs) * time.Second
}

// HTTPTimeout returns the HTTP sink request timeout.
func (s Settings) HTTPTimeout() time.Duration {
	if s.HTTP.TimeoutSecs < 1 {
		return DefaultHTTPTimeout * time.Second
	}
	return time.Duration(s.HTTP.TimeoutSecs) * time.Second
}

// redactedSecret replaces credentials in Redacted copies.
const redactedSecret = "********"

// Redacted returns a copy with the broker password and InfluxDB token masked.
// Empty secrets stay empty so a reader can tell whether one is set.
func (s Settings) Redacted() Settings {
	if s.MQTT.Password != "" {
		s.MQTT.Password = redactedSecret
	}
	if s.InfluxDB.Token != "" {
		s.InfluxDB.Token = redactedSecret
	}
	return s
}

// MergeSecrets returns s with any redacted secret replaced by the value held
// in prev. A client that edits settings it fetched in redacted form keeps the
// stored credentials unless it sends new ones.
func (s Settings) MergeSecrets(prev Settings) Settings {
	if s.MQTT.Password == redactedSecret {
		s.MQTT.Password = prev.MQTT.Password
	}
	if s.InfluxDB.Token == redactedSecret {
		s.InfluxDB.Token = prev.InfluxDB.Token
	}
	return s
}
