// Package api implements the HTTP/push facade: a net/http.ServeMux
// wired with Go 1.22+ pattern routing, matching the route table exactly
// and mapping internal/apperr.Kind values to status codes. The router
// itself is deliberately stdlib — the HTTP router and request parsing
// are named as an out-of-scope external collaborator, so no third-party
// router is a candidate here.
//
// Grounded structurally on the teacher's internal/api/router.go: one
// Server struct holding references to every component, one
// mux.HandleFunc call per route, a thin CORS middleware wrapping the
// whole mux.
package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Lmdudester/Garcon/internal/backup"
	"github.com/Lmdudester/Garcon/internal/config"
	"github.com/Lmdudester/Garcon/internal/eventbus"
	"github.com/Lmdudester/Garcon/internal/orchestrator"
	"github.com/Lmdudester/Garcon/internal/template"
)

// Server holds every component the facade dispatches into.
type Server struct {
	orch      *orchestrator.Orchestrator
	templates *template.Registry
	backups   *backup.Manager
	hub       *eventbus.Hub
	cfg       config.Config
	log       zerolog.Logger
}

// New constructs the facade. cfg is the resolved environment
// configuration, echoed back (minus secrets) by GET /config.
func New(
	orch *orchestrator.Orchestrator,
	templates *template.Registry,
	backups *backup.Manager,
	hub *eventbus.Hub,
	cfg config.Config,
	log zerolog.Logger,
) *Server {
	return &Server{
		orch:      orch,
		templates: templates,
		backups:   backups,
		hub:       hub,
		cfg:       cfg,
		log:       log.With().Str("component", "api").Logger(),
	}
}

// Handler builds the routed, CORS-wrapped http.Handler. Kept separate
// from ListenAndServe so tests can drive it directly with
// httptest.NewRecorder.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /servers", s.handleListServers)
	mux.HandleFunc("POST /servers", s.handleImportServer)
	mux.HandleFunc("GET /servers/{id}", s.handleGetServer)
	mux.HandleFunc("PATCH /servers/{id}", s.handlePatchServer)
	mux.HandleFunc("DELETE /servers/{id}", s.handleDeleteServer)
	mux.HandleFunc("PUT /servers/order", s.handleSetOrder)

	mux.HandleFunc("POST /servers/{id}/start", s.handleStart)
	mux.HandleFunc("POST /servers/{id}/stop", s.handleStop)
	mux.HandleFunc("POST /servers/{id}/restart", s.handleRestart)
	mux.HandleFunc("POST /servers/{id}/acknowledge-crash", s.handleAcknowledgeCrash)

	mux.HandleFunc("POST /servers/{id}/update/initiate", s.handleUpdateInitiate)
	mux.HandleFunc("POST /servers/{id}/update/apply", s.handleUpdateApply)
	mux.HandleFunc("POST /servers/{id}/update/cancel", s.handleUpdateCancel)

	mux.HandleFunc("GET /templates", s.handleListTemplates)
	mux.HandleFunc("GET /templates/{id}", s.handleGetTemplate)

	mux.HandleFunc("GET /servers/{id}/backups", s.handleListBackups)
	mux.HandleFunc("POST /servers/{id}/backups", s.handleCreateBackup)
	mux.HandleFunc("DELETE /servers/{id}/backups/{timestamp}", s.handleDeleteBackup)
	mux.HandleFunc("POST /servers/{id}/backups/{timestamp}/restore", s.handleRestoreBackup)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /config", s.handleConfig)
	mux.HandleFunc("GET /import/folders", s.handleImportFolders)

	mux.HandleFunc("GET /ws", s.hub.ServeWs)

	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
