package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/aretw0/arena"
	"github.com/aretw0/arena/internal/logging"
	"github.com/aretw0/arena/pkg/domain"
	"github.com/aretw0/arena/pkg/hub"
	"github.com/aretw0/arena/pkg/ports"
	"github.com/go-chi/chi/v5"
)

// TurnRequest is the body of POST /sessions/{key}/turns.
type TurnRequest struct {
	Type   string `json:"type,omitempty"`
	Sender string `json:"sender"`
	Text   string `json:"text,omitempty"`
}

// Turn maps the request to a domain turn. "typing" is accepted for status.
func (t TurnRequest) Turn() domain.Turn {
	kind := domain.TurnKind(t.Type)
	if t.Type == "typing" {
		kind = domain.KindStatus
	}
	return domain.Turn{Sender: t.Sender, Text: t.Text, Kind: kind}.Normalize()
}

// TranscriptResponse is the body of GET /sessions/{key}/transcript.
type TranscriptResponse struct {
	Session string        `json:"session"`
	Turns   []domain.Turn `json:"turns"`
}

// Server serves the arena HTTP and WebSocket API.
type Server struct {
	registry    *hub.Registry
	transcripts ports.TranscriptStore
	runs        ports.RunStore
	metrics     http.Handler
	logger      *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithTranscriptStore lets the API list and read sessions that are not loaded.
func WithTranscriptStore(store ports.TranscriptStore) Option {
	return func(s *Server) {
		s.transcripts = store
	}
}

// WithRunStore enables GET /runs/{id}.
func WithRunStore(store ports.RunStore) Option {
	return func(s *Server) {
		s.runs = store
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHandler creates the HTTP handler for the registry.
func NewHandler(registry *hub.Registry, opts ...Option) (http.Handler, error) {
	s := &Server{
		registry: registry,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	doc, err := GetSwagger()
	if err != nil {
		return nil, err
	}
	validator, err := newRequestValidator(doc, s.logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo(doc.Info.Version))
	r.Get("/websocket", s.serveWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(validator.middleware)
		r.Get("/sessions", s.listSessions)
		r.Post("/sessions/{key}/turns", s.postTurn)
		r.Get("/sessions/{key}/transcript", s.getTranscript)
		r.Get("/runs/{id}", s.getRun)
	})

	return enableCORS(r), nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Arena API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(apiVersion string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"app":         "arena-http",
			"version":     strings.TrimSpace(arena.Version),
			"api_version": apiVersion,
		})
	}
}

// postTurn is how out-of-process workers deliver results to a session.
func (s *Server) postTurn(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var body TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		s.logger.Warn("postTurn: invalid request body", "err", err)
		return
	}

	if err := s.registry.PostResult(r.Context(), key, body.Turn()); err != nil {
		writeError(w, statusFor(err), err.Error())
		s.logger.Error("postTurn failed", "session_id", key, "err", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getTranscript(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := hub.ValidateKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		turns []domain.Turn
		err   error
	)
	if h, ok := s.registry.Lookup(key); ok {
		turns, err = h.Snapshot(r.Context())
	} else if s.transcripts != nil {
		turns, err = s.transcripts.Load(r.Context(), key)
	} else {
		err = domain.ErrSessionNotFound
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	writeJSON(w, http.StatusOK, TranscriptResponse{Session: key, Turns: turns})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	seen := make(map[string]struct{})
	for _, k := range s.registry.Keys() {
		seen[k] = struct{}{}
	}
	if s.transcripts != nil {
		keys, err := s.transcripts.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			s.logger.Error("listSessions failed", "err", err)
			return
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
	}

	sessions := make([]string, 0, len(seen))
	for k := range seen {
		sessions = append(sessions, k)
	}
	sort.Strings(sessions)
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": sessions})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, domain.ErrRunNotFound.Error())
		return
	}
	run, err := s.runs.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// -- Helpers --

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, hub.ErrInvalidSessionKey):
		return http.StatusBadRequest
	case errors.Is(err, hub.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
