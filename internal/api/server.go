package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nudgebot-io/nudgebot/internal/gateway"
	"github.com/nudgebot-io/nudgebot/internal/logbuf"
	"github.com/nudgebot-io/nudgebot/internal/sink"
	"github.com/nudgebot-io/nudgebot/internal/ticket"
)

// LogQuerier abstracts log entry querying to avoid coupling to logbuf directly.
type LogQuerier interface {
	Query(since time.Time, minLevel slog.Level, component string, limit int) []logbuf.Entry
}

// Completer resolves tickets from inbound signals.
type Completer interface {
	HandleReaction(channel, ts, reaction string) bool
	Complete(ctx context.Context, id string) bool
}

// Registrar accepts ticket registrations.
type Registrar interface {
	Register(ctx context.Context, req gateway.Request) error
}

// Config holds API server configuration.
type Config struct {
	Host string
	Port int
	// Key protects /api/* (Bearer auth). Empty means open: a warning
	// is logged once and requests pass through.
	Key string
	// SigningSecret authenticates the Slack endpoints. Empty means
	// open, with the same warn-and-allow behavior.
	SigningSecret string
}

// Server is the nudgebot HTTP surface: the ticketing webhook, the
// Slack event and interactivity endpoints, and a small admin API.
type Server struct {
	store     *ticket.Store
	registrar Registrar
	completer Completer
	sink      sink.Sink
	cfg       Config
	logger    *slog.Logger
	logs      LogQuerier
	srv       *http.Server

	warnNoKey    sync.Once
	warnNoSecret sync.Once
}

// NewServer creates the API server. logs may be nil.
func NewServer(store *ticket.Store, registrar Registrar, completer Completer, snk sink.Sink, cfg Config, logger *slog.Logger, logs LogQuerier) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:     store,
		registrar: registrar,
		completer: completer,
		sink:      snk,
		cfg:       cfg,
		logger:    logger,
		logs:      logs,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/tickets", s.requireAuth(s.handleRegister))
	mux.HandleFunc("POST /api/tickets/{id}/complete", s.requireAuth(s.handleComplete))
	mux.HandleFunc("GET /api/tickets", s.requireAuth(s.handleListTickets))
	mux.HandleFunc("GET /api/tickets/{id}", s.requireAuth(s.handleGetTicket))
	mux.HandleFunc("GET /api/logs", s.requireAuth(s.handleGetLogs))
	mux.HandleFunc("POST /slack/events", s.requireSlackSignature(s.handleSlackEvents))
	mux.HandleFunc("POST /slack/interactions", s.requireSlackSignature(s.handleSlackInteractions))

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.recoverMiddleware(s.requestIDMiddleware(s.corsMiddleware(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", rid)
		next.ServeHTTP(w, r)
	})
}

// recoverMiddleware converts handler panics into a 500 response. No
// unexpected condition may crash the process from a request handler.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panicked", "path", r.URL.Path, "panic", fmt.Sprintf("%v", rec))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Key == "" {
			s.warnNoKey.Do(func() {
				s.logger.Warn("no api key configured, admin endpoints are unauthenticated")
			})
			next(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.cfg.Key {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	slackStatus := "ok"
	pingCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := s.sink.Ping(pingCtx); err != nil {
		slackStatus = "unreachable"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"open_tickets": s.store.Len(),
		"slack":        slackStatus,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req gateway.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	err := s.registrar.Register(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, gateway.ErrMissingFields):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing required fields"})
	case errors.Is(err, gateway.ErrUnknownAssignee):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown assignee"})
	case errors.Is(err, gateway.ErrUpstream):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream failure"})
	default:
		s.logger.Error("registration failed", "ticket", req.TicketID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.completer.Complete(r.Context(), id) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	// Unknown ID is a neutral outcome, not a failure.
	writeJSON(w, http.StatusOK, map[string]string{"status": "not_found"})
}

func (s *Server) handleListTickets(w http.ResponseWriter, _ *http.Request) {
	open := s.store.ListOpen()
	if open == nil {
		open = []ticket.Ticket{}
	}
	writeJSON(w, http.StatusOK, open)
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	t, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ticket not found"})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []logbuf.Entry{})
		return
	}

	limit := 200
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	minLevel := slog.LevelDebug
	if lvl := r.URL.Query().Get("level"); lvl != "" {
		switch strings.ToLower(lvl) {
		case "info":
			minLevel = slog.LevelInfo
		case "warn":
			minLevel = slog.LevelWarn
		case "error":
			minLevel = slog.LevelError
		}
	}

	var since time.Time
	if q := r.URL.Query().Get("since"); q != "" {
		if ms, err := strconv.ParseInt(q, 10, 64); err == nil {
			since = time.UnixMilli(ms)
		}
	}

	entries := s.logs.Query(since, minLevel, r.URL.Query().Get("component"), limit)
	if entries == nil {
		entries = []logbuf.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
