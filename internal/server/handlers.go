package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/hrm8/assistant/internal/agent"
	"github.com/hrm8/assistant/internal/audit"
	assistantotel "github.com/hrm8/assistant/internal/otel"
	"github.com/hrm8/assistant/internal/requestctx"
	"github.com/hrm8/assistant/internal/tools"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if r.URL.Query().Get("detail") == "true" {
		components := map[string]string{"tool_registry": "ok"}
		if s.auditStore == nil {
			components["audit_store"] = "disabled"
		} else {
			components["audit_store"] = "ok"
		}
		if s.mcpServer == nil {
			components["mcp"] = "disabled"
		} else {
			components["mcp"] = "ok"
		}
		if s.executor != nil && s.executor.Engine().Overlay() != nil {
			components["policy_overlay"] = s.executor.Engine().Overlay().VersionTag()
		} else {
			components["policy_overlay"] = "disabled"
		}
		resp["components"] = components
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// handleChat runs the buffered loop. Provider failures are reported as 400.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	a := requestctx.Actor(r.Context())
	var req agent.ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.orchestrator.Chat(r.Context(), a, req)
	if err != nil {
		status, code := errorStatus(err, http.StatusBadRequest)
		log.Error().Err(err).
			Str("user_id", a.UserID).
			Int("status", status).
			Func(assistantotel.LogTraceFields(r.Context())).
			Msg("assistant_chat_error")
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// streamWriter forwards deltas to the client, committing the 200 status and
// headers on the first write.
type streamWriter struct {
	w       http.ResponseWriter
	started bool
}

func (s *streamWriter) WriteDelta(text string) error {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/plain; charset=utf-8")
		h.Set("Cache-Control", "no-cache")
		h.Set("X-Content-Type-Options", "nosniff")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if _, err := io.WriteString(s.w, text); err != nil {
		return err
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// handleStream pipes model output as chunked text. Errors become a JSON
// response only while nothing has been written; afterwards the stream just
// ends.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	a := requestctx.Actor(r.Context())
	var req agent.StreamRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sw := &streamWriter{w: w}
	err := s.orchestrator.Stream(r.Context(), a, req, sw)
	if err == nil {
		return
	}
	if errors.Is(err, agent.ErrStreamClosed) || r.Context().Err() != nil {
		log.Info().Str("user_id", a.UserID).Msg("assistant_stream_client_closed")
		return
	}
	log.Error().Err(err).
		Str("user_id", a.UserID).
		Bool("partial", sw.started).
		Func(assistantotel.LogTraceFields(r.Context())).
		Msg("assistant_stream_error")
	if sw.started {
		return
	}
	status, code := errorStatus(err, http.StatusInternalServerError)
	writeError(w, status, code, err.Error())
}

type toolInfo struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Category    string            `json:"category,omitempty"`
	Sensitivity tools.Sensitivity `json:"sensitivity"`
	Parameters  json.RawMessage   `json:"parameters"`
}

func (s *Server) handleToolsList(w http.ResponseWriter, r *http.Request) {
	a := requestctx.Actor(r.Context())
	defs := s.executor.Engine().AllowedTools(r.Context(), s.executor.Registry(), a)
	out := make([]toolInfo, 0, len(defs)+1)
	for _, d := range defs {
		out = append(out, toolInfo{
			Name:        d.Name,
			Description: d.Description,
			Category:    d.Category,
			Sensitivity: d.Sensitivity,
			Parameters:  d.Parameters,
		})
	}
	batch := agent.BatchDeclaration()
	out = append(out, toolInfo{Name: batch.Name, Description: batch.Description, Parameters: batch.Parameters})
	writeJSON(w, http.StatusOK, map[string]any{"tools": out, "count": len(out)})
}

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := audit.ListFilter{
		PerformedBy: q.Get("performed_by"),
		ToolName:    q.Get("tool"),
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "from must be RFC3339")
			return
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "to must be RFC3339")
			return
		}
		f.To = t
	}
	entries, err := s.auditStore.List(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (s *Server) handleAuditGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	e, err := s.auditStore.Get(r.Context(), id)
	if errors.Is(err, audit.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleAuditVerify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	valid, err := s.auditStore.Verify(r.Context(), id)
	if errors.Is(err, audit.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "valid": valid})
}
