package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/decoylabs/grift/internal/archive"
	"github.com/decoylabs/grift/internal/engage"
	"github.com/decoylabs/grift/internal/gateway"
	"github.com/decoylabs/grift/internal/session"
)

const serviceVersion = "1.0"

// Turner handles one conversation turn and exposes session debug views.
type Turner interface {
	HandleTurn(ctx context.Context, req engage.TurnRequest) engage.TurnReply
	SessionSnapshot(id string) *session.Snapshot
}

// SlotPool reports credential-slot liveness.
type SlotPool interface {
	Status() gateway.Status
}

// ReportLister lists archived reports.
type ReportLister interface {
	Recent(ctx context.Context, limit int) ([]archive.Record, error)
}

type Server struct {
	router  *chi.Mux
	port    int
	engine  Turner
	slots   SlotPool
	store   *session.Store
	reports ReportLister // nil when no archive is configured
	apiKey  string
	logger  *slog.Logger
}

func NewServer(port int, engine Turner, slots SlotPool, store *session.Store, reports ReportLister, apiKey string, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		port:    port,
		engine:  engine,
		slots:   slots,
		store:   store,
		reports: reports,
		apiKey:  apiKey,
		logger:  logger,
	}

	router.Get("/", s.root)
	router.Get("/health", s.health)
	router.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/honeypot", s.honeypot)
		r.Get("/api/v1/grift/status", s.status)
		r.Get("/api/v1/grift/session/{id}", s.session)
		r.Get("/api/v1/grift/reports", s.recentReports)
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// requireAPIKey rejects requests without the configured X-API-Key header.
// An empty configured key disables the check (local development).
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("X-API-Key") != s.apiKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "grift honeypot",
		"status":  "active",
		"version": serviceVersion,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// honeypot is the inbound turn endpoint. Only a malformed payload is
// rejected; everything past decoding always answers the success shape.
func (s *Server) honeypot(w http.ResponseWriter, r *http.Request) {
	var req engage.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed payload"})
		return
	}
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sessionId is required"})
		return
	}

	reply := s.engine.HandleTurn(r.Context(), req)
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":  "grift",
		"slots":    s.slots.Status(),
		"sessions": s.store.Len(),
	})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap := s.engine.SessionSnapshot(id)
	if snap == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) recentReports(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "report archive not configured"})
		return
	}
	records, err := s.reports.Recent(r.Context(), 50)
	if err != nil {
		s.logger.Error("failed to list reports", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list reports"})
		return
	}
	if records == nil {
		records = []archive.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
