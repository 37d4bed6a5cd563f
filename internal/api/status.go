package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/edge-telemetry/internal/sink"
)

// IngestState describes the serial ingestion loop.
type IngestState struct {
	State     string `json:"state"`
	LastError string `json:"last_error,omitempty"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Version string          `json:"version"`
	Token   uint64          `json:"token"`
	UART    *IngestState    `json:"uart,omitempty"`
	Sinks   []sink.Status   `json:"sinks"`
	Monitor json.RawMessage `json:"monitor,omitempty"`
}

// handleStatus reports the live state of every loop plus a fresh host snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	_, token := s.store.Snapshot()

	resp := StatusResponse{
		Version: s.version,
		Token:   token,
		Sinks:   make([]sink.Status, 0, len(s.sinks)),
	}

	if s.ingest != nil {
		st := &IngestState{State: s.ingest.State().String()}
		if err := s.ingest.LastError(); err != nil {
			st.LastError = err.Error()
		}
		resp.UART = st
	}

	for _, sk := range s.sinks {
		resp.Sinks = append(resp.Sinks, sk.Status())
	}

	if s.snapshot != nil {
		if raw := s.snapshot(); json.Valid(raw) {
			resp.Monitor = raw
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
