package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/crmops/crm-migrator/internal/migration"
)

// Server holds shared state for all API handlers.
type Server struct {
	Manager   *migration.Manager
	Validator *migration.Validator
	Analyzer  *migration.Analyzer
	Exporter  *migration.Exporter
}

// NewRouter builds the chi router with the full migration API.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/migration", func(r chi.Router) {
		r.Post("/validate", s.ValidateAccounts)
		r.Post("/analyze", s.AnalyzeAccount)
		r.Post("/export", s.ExportAccount)
		r.Post("/start", s.StartMigration)
		r.Get("/status/{jobId}", s.GetMigrationStatus)
		r.Delete("/status/{jobId}", s.CancelMigration)
		r.Get("/history", s.GetMigrationHistory)
	})

	// Live progress stream (outside /migration to avoid JSON content-type
	// assumptions on the websocket upgrade).
	r.Get("/ws/migration/{jobId}/progress", s.StreamProgress)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
