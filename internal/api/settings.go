package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/edge-telemetry/internal/history"
	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
)

// SettingsResponse is the body of GET and PUT /api/v1/config.
type SettingsResponse struct {
	Token    uint64          `json:"token"`
	Settings config.Settings `json:"settings"`
}

// handleGetConfig returns the current settings generation with secrets redacted.
// The generation token is also sent as the ETag.
func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	settings, token := s.store.Snapshot()
	w.Header().Set("ETag", generationETag(token))
	writeJSON(w, http.StatusOK, SettingsResponse{
		Token:    token,
		Settings: settings.Redacted(),
	})
}

// handlePutConfig replaces the settings.
//
// The body is decoded over the current settings, so omitted sections keep
// their values. Redacted secrets sent back unchanged keep the stored value.
// PUTs are applied one at a time so two partial updates cannot overwrite
// each other. A client that sends If-Match with the token it last read gets
// 409 if another write landed in between.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	s.putMu.Lock()
	defer s.putMu.Unlock()

	current, currentToken := s.store.Snapshot()

	if match := r.Header.Get("If-Match"); match != "" && match != "*" {
		if match != generationETag(currentToken) && match != strconv.FormatUint(currentToken, 10) {
			w.Header().Set("ETag", generationETag(currentToken))
			writeConflict(w, "settings changed since generation "+strings.Trim(match, `"`)+
				"; current generation is "+strconv.FormatUint(currentToken, 10))
			return
		}
	}

	next := current
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeTooLarge(w, "settings document exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	next = next.MergeSecrets(current).Normalize()
	if err := next.Validate(); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	token := s.replacer.Replace(r.Context(), next, history.SourceAPI)
	s.metrics.ConfigReplaced()
	s.logger.Info("settings replaced via API",
		"token", token,
		"mqtt_enabled", next.MQTT.Enabled,
		"http_enabled", next.HTTP.Enabled,
		"influxdb_enabled", next.InfluxDB.Enabled,
		"uart_enabled", next.UART.Enabled,
	)

	w.Header().Set("ETag", generationETag(token))
	writeJSON(w, http.StatusOK, SettingsResponse{
		Token:    token,
		Settings: next.Redacted(),
	})
}

func generationETag(token uint64) string {
	return `"` + strconv.FormatUint(token, 10) + `"`
}

// handleListHistory returns recorded settings generations, newest first.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "settings history is disabled")
		return
	}

	q := r.URL.Query()
	filter := history.Filter{Source: q.Get("source")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing settings history failed", "error", err)
		writeInternalError(w, "failed to list settings history")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetHistory returns one recorded generation.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "settings history is disabled")
		return
	}

	gen, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		writeNotFound(w, "generation not found")
		return
	}
	if err != nil {
		s.logger.Error("reading settings generation failed", "error", err)
		writeInternalError(w, "failed to read settings generation")
		return
	}
	writeJSON(w, http.StatusOK, gen)
}
