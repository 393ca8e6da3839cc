// Package server wires the rule store, router, and forwarder into a
// single HTTP mux: the inbound webhook surface, the admin surface, and
// the health/metrics endpoints (spec.md §6).
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alertbridge/relay/internal/forwarder"
	"github.com/alertbridge/relay/internal/logging"
	"github.com/alertbridge/relay/internal/patterns"
	"github.com/alertbridge/relay/internal/router"
	"github.com/alertbridge/relay/internal/ruleset"
)

const (
	webhookPrefix   = "/webhook/"
	transformPrefix = "/api/transform/"
)

// Store is the subset of *ruleset.Store the server needs beyond what
// the router already uses: reading, replacing, and persisting rules for
// the admin surface.
type Store interface {
	router.Store
	SetRules(rs *ruleset.RuleSet)
	Persist(ctx context.Context, rs *ruleset.RuleSet) error
}

// TargetProber is the subset of *forwarder.Forwarder the target-status
// admin endpoint depends on.
type TargetProber interface {
	CheckTargetStatus(ctx context.Context, route ruleset.Route, defaults ruleset.Defaults) forwarder.Probe
}

// Server owns the process's single http.ServeMux plus the dependencies
// its handlers close over.
type Server struct {
	store  Store
	router *router.Router
	prober TargetProber
	logger *zap.Logger

	basicAuthUser     string
	basicAuthPassword string

	mux *http.ServeMux
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithBasicAuthFallback sets the BASIC_AUTH_USER/BASIC_AUTH_PASSWORD
// single-user fallback used when the rule document configures no
// auth.basic.users.
func WithBasicAuthFallback(user, password string) Option {
	return func(s *Server) {
		s.basicAuthUser = user
		s.basicAuthPassword = password
	}
}

// WithLogger overrides the server's logger; defaults to logging.New("server").
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds a Server and registers every route on its mux.
func New(store Store, rt *router.Router, prober TargetProber, opts ...Option) *Server {
	s := &Server{
		store:  store,
		router: rt,
		prober: prober,
		logger: logging.New("server"),
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", router.Healthz)
	s.mux.HandleFunc("/readyz", s.router.Readyz)
	s.mux.Handle("/metrics", promhttp.Handler())

	s.mux.HandleFunc(webhookPrefix, s.handleWebhook)
	s.mux.HandleFunc(transformPrefix, s.requireBasicAuth(s.handleTransformPreview))

	s.mux.HandleFunc("/api/rules", s.requireBasicAuth(s.handleRules))
	s.mux.HandleFunc("/api/target-status", s.requireBasicAuth(s.handleTargetStatus))
	s.mux.HandleFunc("/api/patterns/suggest", s.requireBasicAuth(s.handlePatternsSuggest))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	source, ok := router.SourceFromPath(r.URL.Path, webhookPrefix)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.router.ServeWebhook(w, r, source)
}

func (s *Server) handleTransformPreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	source, ok := router.SourceFromPath(r.URL.Path, transformPrefix)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.router.PreviewTransform(w, r, source)
}

// handleRules serves GET (return the current RuleSet) and PUT (replace
// and persist it) on /api/rules.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rs, err := s.store.GetRules()
		if err != nil {
			writeJSONError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeJSON(w, http.StatusOK, rs)
	case http.MethodPut:
		var rs ruleset.RuleSet
		if err := json.NewDecoder(r.Body).Decode(&rs); err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}
		if err := rs.Validate(); err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.store.Persist(r.Context(), &rs); err != nil {
			writeJSONError(w, http.StatusConflict, err)
			return
		}
		s.store.SetRules(&rs)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTargetStatus serves GET /api/target-status?route=<name>,
// running the two-phase health probe against that route's target.
func (s *Server) handleTargetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("route")
	rs, err := s.store.GetRules()
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err)
		return
	}
	route, ok := rs.RouteByName(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	probe := s.prober.CheckTargetStatus(ctx, route, rs.Defaults)
	writeJSON(w, http.StatusOK, probe)
}

// handlePatternsSuggest serves POST /api/patterns/suggest: given a
// sample alert body, return fuzzy-matched source->target mappings the
// admin UI can confirm before calling BuildTransform.
func (s *Server) handlePatternsSuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var sample any
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	mappings := patterns.Suggest(sample)
	writeJSON(w, http.StatusOK, map[string]any{"mappings": mappings})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
