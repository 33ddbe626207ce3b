//go:build integration
// +build integration

package clickhouse

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sftools/incident-classifier/pkg/models"
)

// TestClickHouseIntegration tests basic ClickHouse operations
// Run with: go test -tags=integration ./internal/storage/clickhouse -v
func TestClickHouseIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	config := DefaultConfig()
	if addr := os.Getenv("CLICKHOUSE_ADDR"); addr != "" {
		config.Addr = addr
	}

	store, err := NewStore(ctx, config, logger)
	if err != nil {
		t.Skipf("ClickHouse not available: %v", err)
	}
	defer store.Close()

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Failed to clear store: %v", err)
	}

	t.Run("StoreAndGetCase", func(t *testing.T) {
		record := &models.CaseRecord{
			ID:            uuid.NewString(),
			RawTitle:      "royalmail_prd trep query NoEventsFound for 2 hours",
			Matched:       true,
			Subject:       "MP ALL|PD|NoEventsFound for carrier royalmail",
			AlertTypeName: "MPM NoEventsFound",
			FormDefaults: []models.FormField{
				{FieldLabel: "Type", Value: "Allocation"},
				{FieldLabel: "Team", Value: "Support"},
				{FieldLabel: "Severity", Value: "3"},
			},
			CreatedAt: time.Now().UTC(),
		}

		if err := store.StoreCase(ctx, record); err != nil {
			t.Fatalf("Failed to store case: %v", err)
		}

		if err := store.Flush(); err != nil {
			t.Fatalf("Failed to flush: %v", err)
		}

		retrieved, err := store.GetCase(ctx, record.ID)
		if err != nil {
			t.Fatalf("Failed to get case: %v", err)
		}

		if retrieved.Subject != record.Subject {
			t.Errorf("Expected subject %q, got %q", record.Subject, retrieved.Subject)
		}
		if !retrieved.Matched {
			t.Error("Expected matched record")
		}
		if len(retrieved.FormDefaults) != 3 {
			t.Errorf("Expected 3 form defaults, got %d", len(retrieved.FormDefaults))
		}
	})

	t.Run("ListCasesAndTypeStats", func(t *testing.T) {
		base := time.Now().UTC()
		records := []*models.CaseRecord{
			{
				ID:            uuid.NewString(),
				RawTitle:      "matched title",
				Matched:       true,
				Subject:       "DM|PD|Some alert body",
				AlertTypeName: "DM Web Transaction",
				CreatedAt:     base.Add(-time.Minute),
			},
			{
				ID:        uuid.NewString(),
				RawTitle:  "unmatched title",
				Subject:   "unmatched title",
				CreatedAt: base,
			},
		}
		for _, rec := range records {
			if err := store.StoreCase(ctx, rec); err != nil {
				t.Fatalf("Failed to store case: %v", err)
			}
		}

		if err := store.Flush(); err != nil {
			t.Fatalf("Failed to flush: %v", err)
		}

		matched, err := store.ListCases(ctx, "", true)
		if err != nil {
			t.Fatalf("Failed to list cases: %v", err)
		}
		for _, rec := range matched {
			if !rec.Matched {
				t.Errorf("Expected only matched records, got %q", rec.ID)
			}
		}

		byType, err := store.ListCases(ctx, "DM Web Transaction", false)
		if err != nil {
			t.Fatalf("Failed to list cases by type: %v", err)
		}
		if len(byType) == 0 {
			t.Error("Expected at least one DM Web Transaction record")
		}

		stats, err := store.TypeStats(ctx)
		if err != nil {
			t.Fatalf("Failed to get type stats: %v", err)
		}
		if len(stats) == 0 {
			t.Error("Expected non-empty type stats")
		}
		for i := 1; i < len(stats); i++ {
			if stats[i].Count > stats[i-1].Count {
				t.Error("Expected stats sorted by count descending")
			}
		}
	})

	t.Run("Clear", func(t *testing.T) {
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("Failed to clear: %v", err)
		}

		all, err := store.ListCases(ctx, "", false)
		if err != nil {
			t.Fatalf("Failed to list cases: %v", err)
		}
		if len(all) != 0 {
			t.Errorf("Expected empty store after clear, got %d records", len(all))
		}
	})
}
