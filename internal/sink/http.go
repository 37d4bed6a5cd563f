package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/edge-telemetry/internal/telemetry"
)

// maxDrainBytes bounds how much of a response body is read so the
// connection can be reused.
const maxDrainBytes = 64 << 10

// HTTP posts each envelope as a JSON body to the configured URL.
type HTTP struct {
	// Transport overrides the round tripper, for tests. nil uses a fresh
	// http.Transport per session.
	Transport http.RoundTripper
}

// NewHTTP creates the HTTP sink kind.
func NewHTTP() *HTTP {
	return &HTTP{}
}

// Name implements Kind.
func (*HTTP) Name() string { return "http" }

// Enabled implements Kind.
func (*HTTP) Enabled(s config.Settings) bool {
	return s.HTTP.Enabled && s.HTTP.URL != ""
}

// Connect builds a client for the configured URL. No request is made until
// the first Send.
func (h *HTTP) Connect(_ context.Context, s config.Settings) (Transport, error) {
	rt := h.Transport
	if rt == nil {
		rt = http.DefaultTransport.(*http.Transport).Clone()
	}
	return &httpTransport{
		client: &http.Client{Transport: rt, Timeout: s.HTTPTimeout()},
		url:    s.HTTP.URL,
	}, nil
}

type httpTransport struct {
	client *http.Client
	url    string
}

func (t *httpTransport) Send(ctx context.Context, env telemetry.Envelope) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(env.Wire()))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	return nil
}

func (t *httpTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
