// Package storage defines the storage interface for classification history.
package storage

import (
	"context"

	"github.com/sftools/incident-classifier/pkg/models"
)

// Storage is the interface for storing and retrieving classification
// records. Implementations must be safe for concurrent use.
type Storage interface {
	// StoreCase records a classification outcome
	StoreCase(ctx context.Context, rec *models.CaseRecord) error

	// GetCase retrieves a record by ID
	GetCase(ctx context.Context, id string) (*models.CaseRecord, error)

	// ListCases returns records newest first, optionally filtered by
	// alert type name ("" = all) and matched status
	ListCases(ctx context.Context, alertType string, matchedOnly bool) ([]*models.CaseRecord, error)

	// TypeStats returns classification counts per alert type, descending
	TypeStats(ctx context.Context) ([]models.TypeCount, error)

	// Clear all data
	Clear(ctx context.Context) error

	// Close the storage (for cleanup, e.g., DB connections)
	Close() error
}
