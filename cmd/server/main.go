// Package main is the entry point for the incident classifier service.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sftools/incident-classifier/internal/api"
	"github.com/sftools/incident-classifier/internal/classifier"
	"github.com/sftools/incident-classifier/internal/config"
	"github.com/sftools/incident-classifier/internal/storage"
	"github.com/sftools/incident-classifier/internal/storage/snapshots"
)

func main() {
	log.Println("Starting incident classifier...")

	// Load classification config, falling back to built-in defaults
	cfg := config.Default()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			log.Printf("Failed to load config from %s: %v (using defaults)", path, err)
		} else {
			log.Printf("Loaded config from %s", path)
			cfg = loaded
		}
	}

	cls := classifier.New(cfg.ClassifierConfig())

	// Configure storage from environment
	storageCfg := storage.DefaultConfig()
	storageCfg.Backend = getEnv("STORAGE_BACKEND", storageCfg.Backend)
	storageCfg.SQLitePath = getEnv("SQLITE_PATH", storageCfg.SQLitePath)
	storageCfg.ClickHouseAddr = getEnv("CLICKHOUSE_ADDR", storageCfg.ClickHouseAddr)

	store, err := storage.NewStorage(storageCfg)
	if err != nil {
		log.Fatalf("Failed to create storage: %v", err)
	}
	log.Printf("Using %s storage backend", storageCfg.Backend)

	snapStore, err := snapshots.New()
	if err != nil {
		log.Fatalf("Failed to create snapshot store: %v", err)
	}

	// Create REST API server
	apiAddr := getEnv("API_ADDR", "0.0.0.0:8080")
	apiServer := api.NewServer(apiAddr, cls, cfg, store, snapStore)

	// Start pprof server for profiling (separate port)
	pprofAddr := getEnv("PPROF_ADDR", "localhost:6060")
	go func() {
		log.Printf("Starting pprof server on http://%s/debug/pprof", pprofAddr)
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			log.Printf("pprof server error: %v", err)
		}
	}()

	errChan := make(chan error, 1)

	go func() {
		log.Printf("Starting REST API server on %s", apiAddr)
		if err := apiServer.Start(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Give the server time to start
	time.Sleep(100 * time.Millisecond)
	log.Println("API endpoints:")
	log.Printf("  - Classify: http://%s/api/v1/classify", apiAddr)
	log.Printf("  - Cases: http://%s/api/v1/cases", apiAddr)
	log.Printf("  - Types: http://%s/api/v1/types", apiAddr)
	log.Printf("  - Lookups: http://%s/api/v1/lookups", apiAddr)
	log.Printf("  - Snapshots: http://%s/api/v1/snapshots", apiAddr)
	log.Printf("  - Health: http://%s/api/v1/health", apiAddr)
	log.Println("Profiling:")
	log.Printf("  - pprof: http://%s/debug/pprof", pprofAddr)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal: %v, shutting down...", sig)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Println("Shutting down server...")
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down API server: %v", err)
	}

	log.Println("Closing storage...")
	if err := store.Close(); err != nil {
		log.Printf("Error closing storage: %v", err)
	}

	log.Println("Shutdown complete")
}

// getEnv gets an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
