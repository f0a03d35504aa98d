// Package server provides HTTP server initialization and lifecycle
// management for the memory processing API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/config"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/engine"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/flags"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/storage"
	"github.com/stephabauva/wellness-ai-rep-sub006/web/handlers"
)

// Deps bundles the constructed engine components the server exposes. One
// instance of each is shared process-wide; the server never constructs its
// own.
type Deps struct {
	Store         storage.Store
	Processor     *engine.Processor
	Relationships *engine.RelationshipEngine
	Consolidator  *engine.Consolidator
	Breaker       *engine.CircuitBreaker
	Monitor       *engine.PerformanceMonitor
	Flags         *flags.Controller
}

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start initializes and starts the HTTP server.
// Returns the actual address being listened on (useful for testing with
// port 0) and the WebSocketHub for wiring task event broadcasts.
func Start(ctx context.Context, cfg *config.Config, deps Deps) (string, *handlers.WebSocketHub, error) {
	mux := NewMux(cfg, deps)

	wsHub := handlers.NewWebSocketHub()
	go wsHub.Run()
	mux.Handle("/ws", wsHub)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return "", nil, fmt.Errorf("listen on port %d: %w", cfg.Server.Port, err)
	}
	addr := listener.Addr().String()

	srv := &http.Server{
		Handler:      securityHeadersMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("ERROR: HTTP server failed: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("WARNING: HTTP shutdown failed: %v", err)
		}
		wsHub.Stop()
	}()

	log.Printf("HTTP server listening on %s", addr)
	return addr, wsHub, nil
}

// NewMux builds the API route table. Split out from Start so handler tests
// can exercise routing without a real listener.
func NewMux(cfg *config.Config, deps Deps) *http.ServeMux {
	processingHandler := handlers.NewProcessingHandler(deps.Processor)
	analysisHandler := handlers.NewAnalysisHandler(deps.Store, deps.Relationships, deps.Monitor, cfg.Engine)
	consolidationHandler := handlers.NewConsolidationHandler(deps.Consolidator)
	performanceHandler := handlers.NewPerformanceHandler(deps.Monitor)
	flagsHandler := handlers.NewFlagsHandler(deps.Flags)
	breakerHandler := handlers.NewBreakerHandler(deps.Breaker)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/memory/process", processingHandler.PostProcess)
	apiMux.HandleFunc("POST /api/memory/process/batch", processingHandler.PostProcessBatch)
	apiMux.HandleFunc("GET /api/memory/process/metrics", processingHandler.GetMetrics)
	apiMux.HandleFunc("POST /api/memory/consolidate", consolidationHandler.PostConsolidate)
	apiMux.HandleFunc("GET /api/memories/{id}/analysis", analysisHandler.GetAnalysis)
	apiMux.HandleFunc("GET /api/users/{user_id}/clusters", analysisHandler.GetClusters)
	apiMux.HandleFunc("GET /api/users/{user_id}/flags", flagsHandler.GetFlags)
	apiMux.HandleFunc("GET /api/performance", performanceHandler.GetReport)
	apiMux.HandleFunc("POST /api/breaker/probe", breakerHandler.PostProbe)

	rateLimiter := handlers.NewRateLimiter(10.0, 20)
	limited := handlers.RateLimitMiddleware(apiMux, rateLimiter)

	mux := http.NewServeMux()

	// Health endpoint is unauthenticated, used by monitoring.
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","version":"1.0.0"}`))
	})

	mux.Handle("/api/", handlers.RequireAuth(limited, cfg.Security))
	return mux
}
