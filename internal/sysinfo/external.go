package sysinfo

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Defaults for the public-address lookup.
const (
	DefaultExternalIPURL = "https://ifconfig.me"
	externalIPTimeout    = 5 * time.Second
	maxExternalIPBytes   = 256
)

// ExternalIP looks up the host's public address once and caches the result
// for the life of the process, failures included.
//
// Thread Safety:
//   - IP is safe for concurrent use; the lookup runs at most once.
type ExternalIP struct {
	url    string
	client *http.Client

	once sync.Once
	ip   string
}

// NewExternalIP creates a resolver querying url. An empty url selects
// DefaultExternalIPURL.
func NewExternalIP(url string) *ExternalIP {
	if url == "" {
		url = DefaultExternalIPURL
	}
	return &ExternalIP{
		url:    url,
		client: &http.Client{Timeout: externalIPTimeout},
	}
}

// IP returns the cached public address, performing the lookup on first use.
func (e *ExternalIP) IP() string {
	e.once.Do(func() {
		e.ip = e.fetch()
	})
	return e.ip
}

func (e *ExternalIP) fetch() string {
	ctx, cancel := context.WithTimeout(context.Background(), externalIPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, http.NoBody)
	if err != nil {
		return NotAvailable
	}
	// ifconfig.me answers plain text only to command-line clients.
	req.Header.Set("User-Agent", "curl/8.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return NotAvailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NotAvailable
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxExternalIPBytes))
	if err != nil {
		return NotAvailable
	}
	ip := strings.TrimSpace(string(body))
	if net.ParseIP(ip) == nil {
		return NotAvailable
	}
	return ip
}
