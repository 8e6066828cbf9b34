package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/arena"
	"github.com/aretw0/arena/internal/logging"
	"github.com/aretw0/arena/pkg/domain"
	"github.com/aretw0/arena/pkg/hub"
	"github.com/aretw0/arena/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const sessionsURI = "arena://sessions"

// TranscriptResponse is the structured result of get_transcript.
type TranscriptResponse struct {
	Session string        `json:"session" jsonschema_description:"The session key"`
	Turns   []domain.Turn `json:"turns" jsonschema_description:"Persisted turns in order"`
}

// StartResponse is the structured result of start_exchange.
type StartResponse struct {
	Session string `json:"session" jsonschema_description:"The session key"`
	Topic   string `json:"topic" jsonschema_description:"The accepted topic"`
	Turns   int    `json:"turns" jsonschema_description:"Transcript length after the topic was appended"`
}

// Server exposes sessions as an MCP server, so an assistant can start exchanges and read them.
type Server struct {
	registry    *hub.Registry
	transcripts ports.TranscriptStore
	mcpServer   *server.MCPServer
	logger      *slog.Logger
}

// NewServer creates a new MCP Server instance.
// transcripts may be nil; only live sessions are visible then.
func NewServer(registry *hub.Registry, transcripts ports.TranscriptStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		registry:    registry,
		transcripts: transcripts,
		mcpServer:   server.NewMCPServer("arena-mcp", strings.TrimSpace(arena.Version)),
		logger:      logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP server over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: start_exchange
	startTool := mcp.NewTool("start_exchange",
		mcp.WithDescription("Post a topic to a session. Agent A argues for it, then Agent B refutes A."),
		mcp.WithString("session", mcp.Description("Session key (defaults to global-default)")),
		mcp.WithString("topic", mcp.Required(), mcp.Description("The topic to debate")),
		mcp.WithOutputSchema[StartResponse](),
	)
	s.mcpServer.AddTool(startTool, mcp.NewStructuredToolHandler(s.handleStartExchange))

	// TOOL: get_transcript
	transcriptTool := mcp.NewTool("get_transcript",
		mcp.WithDescription("Read the transcript of a session."),
		mcp.WithString("session", mcp.Description("Session key (defaults to global-default)")),
		mcp.WithOutputSchema[TranscriptResponse](),
	)
	s.mcpServer.AddTool(transcriptTool, mcp.NewStructuredToolHandler(s.handleGetTranscript))
}

func sessionArg(args map[string]interface{}) string {
	key, _ := args["session"].(string)
	if strings.TrimSpace(key) == "" {
		return hub.DefaultSessionKey
	}
	return key
}

func (s *Server) handleStartExchange(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StartResponse, error) {
	key := sessionArg(args)
	topic, _ := args["topic"].(string)
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return StartResponse{}, fmt.Errorf("topic is required")
	}

	h, err := s.registry.Get(key)
	if err != nil {
		return StartResponse{}, err
	}
	if err := h.HandleInbound(ctx, domain.InboundEvent{Type: domain.EventStartExchange, Topic: topic}); err != nil {
		return StartResponse{}, fmt.Errorf("start exchange: %w", err)
	}

	turns, err := h.Snapshot(ctx)
	if err != nil {
		return StartResponse{}, err
	}
	s.logger.Info("MCP: exchange started", "session_id", key)
	return StartResponse{Session: key, Topic: topic, Turns: len(turns)}, nil
}

func (s *Server) handleGetTranscript(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TranscriptResponse, error) {
	key := sessionArg(args)
	if err := hub.ValidateKey(key); err != nil {
		return TranscriptResponse{}, err
	}

	var (
		turns []domain.Turn
		err   error
	)
	if h, ok := s.registry.Lookup(key); ok {
		turns, err = h.Snapshot(ctx)
	} else if s.transcripts != nil {
		turns, err = s.transcripts.Load(ctx, key)
	} else {
		err = domain.ErrSessionNotFound
	}
	if err != nil {
		return TranscriptResponse{}, fmt.Errorf("read transcript %q: %w", key, err)
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	return TranscriptResponse{Session: key, Turns: turns}, nil
}

func (s *Server) sessionKeys(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, k := range s.registry.Keys() {
		seen[k] = struct{}{}
	}
	if s.transcripts != nil {
		keys, err := s.transcripts.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Server) registerResources() {
	// EXPOSE: arena://sessions
	s.mcpServer.AddResource(mcp.NewResource(sessionsURI, "Known Sessions",
		mcp.WithMIMEType("application/json"),
	), s.readSessions)
}

func (s *Server) readSessions(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	keys, err := s.sessionKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	jsonBytes, _ := json.Marshal(map[string][]string{"sessions": keys})

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      sessionsURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
