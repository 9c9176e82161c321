// Package httpapi exposes the Legio HTTP surface: login against migrated
// WordPress credentials, the admin sync trigger, poll resolution, and a
// health probe.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/legionews/legio/auth"
	"github.com/legionews/legio/store"
	"github.com/legionews/legio/wpsync"
)

// Server holds the handler dependencies.
type Server struct {
	store   *store.Store
	secret  []byte
	syncCfg wpsync.Config
	logger  *slog.Logger
}

// New builds a Server. secret signs the session JWTs and must satisfy
// auth.MinSecretLen.
func New(st *store.Store, secret []byte, syncCfg wpsync.Config, logger *slog.Logger) *Server {
	return &Server{store: st, secret: secret, syncCfg: syncCfg, logger: logger}
}

// Router assembles the chi routing tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(TraceID)
	r.Use(RequestLog(s.logger))
	r.Use(SecureHeaders)
	r.Use(auth.Middleware(s.secret)) // soft parse; Require* gates enforce

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireCreator)
		r.Post("/api/polls/{id}/resolve", s.handleResolvePoll)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		r.Post("/api/admin/sync", s.handleSync)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
