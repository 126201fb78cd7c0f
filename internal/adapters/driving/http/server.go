package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openexams/paperd/internal/core/ports/driving"
	"golang.org/x/time/rate"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	version    string
	appName    string

	// Services
	paperService      driving.PaperService
	extractionService driving.ExtractionService

	// Infrastructure
	db    Pinger // PostgreSQL health check
	cache Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string
	AppName string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
		AppName: "sample-paper-server",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	paperService driving.PaperService,
	extractionService driving.ExtractionService,
	db Pinger,
	cache Pinger, // can be nil
) *Server {
	s := &Server{
		router:            http.NewServeMux(),
		version:           cfg.Version,
		appName:           cfg.AppName,
		paperService:      paperService,
		extractionService: extractionService,
		db:                db,
		cache:             cache,
	}

	s.setupRoutes()

	// Middleware chain: logging -> recovery -> cors -> router
	handler := NewCORSMiddleware([]string{"*"}).Handler(s.router)
	handler = NewRecoveryMiddleware().Handler(handler)
	handler = NewLoggingMiddleware().Handler(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// 10 requests per minute per endpoint group, same window the
	// public deployment enforces.
	paperLimit := NewRateLimitMiddleware(rate.Limit(10.0/60.0), 10)
	extractLimit := NewRateLimitMiddleware(rate.Limit(10.0/60.0), 10)

	// Health endpoints (no rate limit)
	s.router.HandleFunc("GET /{$}", s.handleRoot)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Sample paper endpoints
	s.router.Handle("POST /sample-papers/{$}",
		paperLimit.Handler(http.HandlerFunc(s.handleCreatePaper)))
	s.router.Handle("GET /sample-papers/ft/search",
		paperLimit.Handler(http.HandlerFunc(s.handleSearchPapers)))
	s.router.Handle("GET /sample-papers/{id}",
		paperLimit.Handler(http.HandlerFunc(s.handleGetPaper)))
	s.router.Handle("PUT /sample-papers/{id}",
		paperLimit.Handler(http.HandlerFunc(s.handleUpdatePaper)))
	s.router.Handle("DELETE /sample-papers/{id}",
		paperLimit.Handler(http.HandlerFunc(s.handleDeletePaper)))

	// Extraction endpoints
	s.router.Handle("POST /extract/pdf",
		extractLimit.Handler(http.HandlerFunc(s.handleExtractPDF)))
	s.router.Handle("POST /extract/text",
		extractLimit.Handler(http.HandlerFunc(s.handleExtractText)))
	s.router.Handle("GET /tasks/{task_id}",
		extractLimit.Handler(http.HandlerFunc(s.handleTaskStatus)))
}

// Handler returns the full middleware-wrapped handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-stop
	log.Println("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
