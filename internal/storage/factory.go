package storage

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/sftools/incident-classifier/internal/storage/clickhouse"
	"github.com/sftools/incident-classifier/internal/storage/memory"
	"github.com/sftools/incident-classifier/internal/storage/sqlite"
)

// Config holds storage configuration.
type Config struct {
	// Backend selects the storage backend: "memory", "sqlite" or "clickhouse"
	Backend string

	// SQLite-specific config
	SQLitePath string

	// ClickHouse-specific config
	ClickHouseAddr string
}

// DefaultConfig returns default storage configuration.
func DefaultConfig() Config {
	return Config{
		Backend:        "sqlite",
		SQLitePath:     "./data/cases.db",
		ClickHouseAddr: "localhost:9000",
	}
}

// NewStorage creates a storage implementation based on configuration.
func NewStorage(cfg Config) (Storage, error) {
	switch cfg.Backend {
	case "memory":
		log.Println("Using in-memory storage")
		return memory.New(), nil

	case "sqlite":
		log.Printf("Using SQLite storage: %s", cfg.SQLitePath)
		store, err := sqlite.New(sqlite.DefaultConfig(cfg.SQLitePath))
		if err != nil {
			return nil, fmt.Errorf("creating SQLite store: %w", err)
		}
		return store, nil

	case "clickhouse":
		log.Printf("Using ClickHouse storage: %s", cfg.ClickHouseAddr)

		chCfg := clickhouse.DefaultConfig()
		chCfg.Addr = cfg.ClickHouseAddr

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		store, err := clickhouse.NewStore(context.Background(), chCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("creating ClickHouse store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, sqlite, clickhouse)", cfg.Backend)
	}
}
