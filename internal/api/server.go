// Package api exposes the expert panel over HTTP.
//
// Routes:
//
//	POST /chat/{session_type}               one chat turn
//	GET  /ws/chat/{session_type}            streamed chat turns over WebSocket
//	PUT  /edit-ai-message/                  replace the latest assistant reply
//	GET  /sessions                          list experts
//	GET  /sessions/{session_type}/history   a session's own log
//	POST /synonyms                          synonym helper
//	POST /transcribe                        diarized audio transcription
//	GET  /healthz, /readyz, /metrics
//
// Errors are returned as {"detail": "..."} with a 4xx or 5xx status.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/agent"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/health"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/observe"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/session"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/transcript"
)

const (
	maxJSONBody  = 1 << 20
	maxAudioBody = 25 << 20
)

// Conversation runs turns and edits. *orchestrator.Orchestrator satisfies it.
type Conversation interface {
	HandleTurn(ctx context.Context, id, userText string) (string, error)
	StreamTurn(ctx context.Context, id, userText string, onChunk func(string) error) (string, error)
	EditLastAssistantTurn(ctx context.Context, id, newText string) (session.Turn, error)
}

// Roster lists the experts. *agent.Roster satisfies it.
type Roster interface {
	Has(id string) bool
	IDs() []string
	Experts() []agent.Expert
	Suggest(id string) string
}

// History reads session logs. *session.Store satisfies it.
type History interface {
	View(id string) []session.Turn
	Len(id string) int
}

// SynonymGenerator is satisfied by *lexicon.Synonyms.
type SynonymGenerator interface {
	Generate(ctx context.Context, word string) (string, []string, error)
}

// Transcriber is satisfied by *transcript.Service.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (*transcript.Transcript, error)
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	conv    Conversation
	roster  Roster
	history History

	synonyms    SynonymGenerator
	transcriber Transcriber
	health      *health.Handler
	metrics     *observe.Metrics
	metricsPath string
	metricsH    http.Handler

	router chi.Router
}

// Option configures a [Server].
type Option func(*Server)

// WithSynonyms enables POST /synonyms.
func WithSynonyms(g SynonymGenerator) Option {
	return func(s *Server) { s.synonyms = g }
}

// WithTranscriber enables POST /transcribe. Without it the route answers 503.
func WithTranscriber(t Transcriber) Option {
	return func(s *Server) { s.transcriber = t }
}

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics sets the metrics used by the request middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMetricsHandler serves h (typically promhttp.Handler()) at path.
func WithMetricsHandler(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metricsH = h
	}
}

// NewServer builds the router.
func NewServer(conv Conversation, roster Roster, history History, opts ...Option) *Server {
	s := &Server{conv: conv, roster: roster, history: history}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(s.metrics))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Post("/chat/{session_type}", s.handleChat)
	r.Get("/ws/chat/{session_type}", s.handleChatWS)
	r.Put("/edit-ai-message", s.handleEdit)
	r.Put("/edit-ai-message/", s.handleEdit)
	r.Get("/sessions", s.handleSessions)
	r.Get("/sessions/{session_type}/history", s.handleHistory)
	r.Post("/synonyms", s.handleSynonyms)
	r.Post("/transcribe", s.handleTranscribe)

	if s.health != nil {
		s.health.Register(r)
	}
	if s.metricsH != nil {
		r.Method(http.MethodGet, s.metricsPath, s.metricsH)
	}
	return r
}
