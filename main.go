package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tuht/evsc-assistant/internal/adapter/dispatch"
	"github.com/tuht/evsc-assistant/internal/adapter/genai"
	"github.com/tuht/evsc-assistant/internal/config"
	"github.com/tuht/evsc-assistant/internal/conversation"
	"github.com/tuht/evsc-assistant/internal/forecast"
	"github.com/tuht/evsc-assistant/internal/policy"
	"github.com/tuht/evsc-assistant/internal/service"
	"github.com/tuht/evsc-assistant/internal/store"
	transporthttp "github.com/tuht/evsc-assistant/internal/transport/http"
	"github.com/tuht/evsc-assistant/internal/transport/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting assistant...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseDSN)
	log.Printf("GenAI URL: %s (model %s)", cfg.GenAIBaseURL, cfg.GenAIModel)
	log.Printf("Dispatch URL: %s", cfg.DispatchBaseURL)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize generative model client
	genaiClient := genai.NewClient(cfg.GenAIBaseURL, cfg.GenAIAPIKey, cfg.GenAITimeout)

	// Initialize dispatch client
	dispatchClient := dispatch.NewClient(cfg.DispatchBaseURL, cfg.AssignTimeout)

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize forecast engine and conversation store
	forecaster := forecast.NewEngine(db, genaiClient, cfg.ForecastModel)
	conversations := conversation.NewStore()

	// Initialize service
	svc := service.New(db, genaiClient, dispatchClient, policyEngine, forecaster, conversations, cfg)

	// HTTP server with the REST routes
	server := transporthttp.NewServer(svc)

	// WebSocket transport shares the same echo server
	hub := ws.NewHub()
	go hub.Run()
	wsServer := ws.NewServer(svc, hub)
	wsServer.RegisterRoutes(server)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Assistant API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down assistant...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Assistant stopped")
}
