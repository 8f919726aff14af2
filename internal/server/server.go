package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/grailmeter/grail-meter/apimodels"
	"github.com/grailmeter/grail-meter/internal/analyzer"
	"github.com/grailmeter/grail-meter/internal/config"
	"github.com/grailmeter/grail-meter/internal/history"
)

const ipEchoEndpoint = "https://api.ipify.org?format=json"

// AnalysisService is the pipeline the handlers hand uploads to.
type AnalysisService interface {
	Analyze(ctx context.Context, uploads []analyzer.Upload) (*apimodels.AnalyzeResponse, error)
}

type Server struct {
	cfg      config.ServerConfig
	router   *chi.Mux
	server   *http.Server
	analyzer AnalysisService
	history  history.Store

	// echoes the caller's public IP; overridable in tests
	ipEndpoint string
	httpClient *http.Client
}

func New(cfg config.Config, analysisService AnalysisService, store history.Store) *Server {
	s := &Server{
		cfg:        cfg.Server,
		router:     chi.NewRouter(),
		analyzer:   analysisService,
		history:    store,
		ipEndpoint: ipEchoEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(2 * time.Minute))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	s.router.Get("/", s.handleRoot)
	s.router.Get("/test", s.handleTest)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ip", s.handleIP)
	s.router.Get("/history", s.handleHistory)
	s.router.Post("/analyze", s.handleAnalyze)
	s.router.Post("/upload", s.handleUpload)
}

// Run starts the server and blocks until a shutdown signal or listener
// error, then drains in-flight requests.
func (s *Server) Run() error {
	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("starting server", "address", s.server.Addr)
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info("starting shutdown", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	return nil
}
