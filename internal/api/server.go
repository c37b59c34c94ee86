package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nwalsh/weathervault/internal/ingest"
	"github.com/nwalsh/weathervault/internal/store"
)

type Server struct {
	store       *store.Store
	orch        *ingest.Orchestrator
	addr        string
	corsOrigins []string
	logger      *slog.Logger
}

func NewServer(st *store.Store, orch *ingest.Orchestrator, addr string, corsOrigins []string, logger *slog.Logger) *Server {
	return &Server{
		store:       st,
		orch:        orch,
		addr:        addr,
		corsOrigins: corsOrigins,
		logger:      logger,
	}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/weather-requests", s.handleCreate).Methods("POST")
	r.HandleFunc("/weather-requests", s.handleList).Methods("GET")
	r.HandleFunc("/weather-requests/{id:[0-9]+}", s.handleGet).Methods("GET")
	r.HandleFunc("/weather-requests/{id:[0-9]+}", s.handleUpdate).Methods("PATCH")
	r.HandleFunc("/weather-requests/{id:[0-9]+}", s.handleDelete).Methods("DELETE")

	return s.corsMiddleware(s.logMiddleware(r))
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
