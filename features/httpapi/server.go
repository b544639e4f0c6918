// Package httpapi exposes internal/rca/chatapi.Service over HTTP: the
// admission endpoint, the Server-Sent Events stream endpoint, session/turn
// CRUD, /healthz, and /metrics. Mux layout and /healthz shape are grounded
// on haasonsaas-nexus/internal/gateway/http_server.go (plain
// http.ServeMux, promhttp.Handler mounted at /metrics, a dedicated
// handleHealthz); goa-ai's own HTTP surface is codegen'd from a design DSL
// this repository deliberately does not carry (spec.md describes a REST
// contract directly, not a design-first one).
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"goa.design/clue/health"
	goa "goa.design/goa/v3/pkg"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/chatapi"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/stream"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/telemetry"
)

// Server wraps a chatapi.Service as an http.Handler.
type Server struct {
	Service *chatapi.Service
	Logger  telemetry.Logger
	// DB is pinged from /healthz when set (features/store/mongo.Store
	// implements health.Pinger).
	DB  health.Pinger
	mux *http.ServeMux
}

// New builds a Server and registers its routes.
func New(svc *chatapi.Service, db health.Pinger, logger telemetry.Logger) *Server {
	s := &Server{Service: svc, DB: db, Logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) routes() {
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/healthz", s.handleHealthz)

	s.mux.HandleFunc("/chat", s.handleSendMessage)
	s.mux.HandleFunc("/turns/", s.handleTurns) // /turns/{id}, /turns/{id}/stream, /turns/{id}/feedback
	s.mux.HandleFunc("/sessions", s.handleSessions)
	s.mux.HandleFunc("/sessions/", s.handleSessionByID)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if s.DB != nil {
		if err := s.DB.Ping(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
			s.Logger.Warn(r.Context(), "healthz: db ping failed", telemetry.Str("error", err.Error()))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "ts": time.Now().UTC()})
}

type sendMessageRequest struct {
	Workspace string `json:"workspace"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, chatapi.Validation("body", "invalid JSON"))
		return
	}
	result, err := s.Service.SendMessage(r.Context(), chatapi.SendMessageInput{
		Workspace: req.Workspace, UserID: req.UserID, Message: req.Message, SessionID: req.SessionID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	id, rest := splitID(r.URL.Path, "/turns/")
	workspace := r.URL.Query().Get("workspace")
	switch {
	case rest == "/stream":
		s.handleStreamTurn(w, r, workspace, id)
	case rest == "/feedback" && r.Method == http.MethodPost:
		s.handleFeedback(w, r, workspace, id)
	case rest == "":
		s.handleGetTurn(w, r, workspace, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGetTurn(w http.ResponseWriter, r *http.Request, workspace, id string) {
	turn, err := s.Service.GetTurn(r.Context(), workspace, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

// handleStreamTurn implements the Stream Endpoint contract of spec.md §4.6
// as Server-Sent Events: one "event: <type>\ndata: <json>\n\n" frame per
// stream.Event, flushed as each frame is emitted.
func (s *Server) handleStreamTurn(w http.ResponseWriter, r *http.Request, workspace, id string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	err := s.Service.StreamTurn(r.Context(), workspace, id, func(evt stream.Event) error {
		payload, err := json.Marshal(evt.Payload())
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte("event: " + string(evt.Type()) + "\ndata: ")); err != nil {
			return err
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.Logger.Warn(r.Context(), "stream turn ended with error", telemetry.Str("error", err.Error()))
	}
}

type feedbackRequest struct {
	UserID  string `json:"user_id"`
	Score   int    `json:"score"`
	Comment string `json:"comment,omitempty"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request, workspace, id string) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, chatapi.Validation("body", "invalid JSON"))
		return
	}
	if err := s.Service.SubmitFeedback(r.Context(), workspace, id, req.UserID, req.Score, req.Comment); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	workspace := r.URL.Query().Get("workspace")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit == 0 {
		limit = 50
	}
	sessions, err := s.Service.ListSessions(r.Context(), workspace, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	id, _ := splitID(r.URL.Path, "/sessions/")
	workspace := r.URL.Query().Get("workspace")
	switch r.Method {
	case http.MethodGet:
		sess, err := s.Service.GetSession(r.Context(), workspace, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	case http.MethodPatch:
		var body struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, chatapi.Validation("body", "invalid JSON"))
			return
		}
		sess, err := s.Service.UpdateSession(r.Context(), workspace, id, body.Title)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	case http.MethodDelete:
		if err := s.Service.DeleteSession(r.Context(), workspace, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// splitID pulls the first path segment after prefix and returns it plus
// whatever trailing segment follows (e.g. "/stream", "/feedback").
func splitID(path, prefix string) (id, rest string) {
	trimmed := path[len(prefix):]
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] == '/' {
			return trimmed[:i], trimmed[i:]
		}
	}
	return trimmed, ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps a chatapi error-kind name to its spec.md §7 HTTP status.
var errorStatus = map[string]int{
	chatapi.KindValidation:           http.StatusBadRequest,
	chatapi.KindAuthn:                http.StatusUnauthorized,
	chatapi.KindAuthz:                http.StatusForbidden,
	chatapi.KindNotFound:             http.StatusNotFound,
	chatapi.KindPolicyViolation:      http.StatusUnprocessableEntity,
	chatapi.KindQuotaExceeded:        http.StatusTooManyRequests,
	chatapi.KindTransportUnavailable: http.StatusServiceUnavailable,
	chatapi.KindInternal:             http.StatusInternalServerError,
}

func writeError(w http.ResponseWriter, err error) {
	var svcErr *goa.ServiceError
	if !errors.As(err, &svcErr) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	status, ok := errorStatus[svcErr.Name]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": svcErr.Name, "message": svcErr.Message})
}
