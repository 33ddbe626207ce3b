// Package snapshots provides file-based storage for saving and restoring
// classification history exports.
package snapshots

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sftools/incident-classifier/pkg/models"
)

// Default configuration values
const (
	DefaultSnapshotDir     = "./data/snapshots"
	DefaultMaxSnapshotSize = 100 * 1024 * 1024 // 100MB
	DefaultMaxSnapshots    = 50
	SnapshotFileExtension  = ".json.gz"
	CurrentVersion         = 1
)

// Config contains snapshot storage configuration.
type Config struct {
	// SnapshotDir is the directory where snapshots are stored
	SnapshotDir string

	// MaxSnapshotSize is the maximum size of a single snapshot in bytes
	MaxSnapshotSize int64

	// MaxSnapshots is the maximum number of snapshots to keep
	MaxSnapshots int
}

// DefaultConfig returns the default snapshot storage configuration.
func DefaultConfig() Config {
	return Config{
		SnapshotDir:     getEnvOrDefault("SNAPSHOT_DIR", DefaultSnapshotDir),
		MaxSnapshotSize: getEnvInt64OrDefault("SNAPSHOT_MAX_SIZE", DefaultMaxSnapshotSize),
		MaxSnapshots:    getEnvIntOrDefault("SNAPSHOT_MAX_COUNT", DefaultMaxSnapshots),
	}
}

// Store is a file-based snapshot storage.
type Store struct {
	config Config
	mu     sync.RWMutex
}

// New creates a new snapshot store with default configuration.
func New() (*Store, error) {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new snapshot store with the given configuration.
func NewWithConfig(config Config) (*Store, error) {
	// Ensure snapshot directory exists
	if err := os.MkdirAll(config.SnapshotDir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	return &Store{
		config: config,
	}, nil
}

// Save saves a snapshot to disk.
func (s *Store) Save(ctx context.Context, snapshot *models.Snapshot) error {
	if snapshot == nil {
		return errors.New("snapshot cannot be nil")
	}

	if err := models.ValidateSnapshotName(snapshot.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check if we've reached the snapshot limit
	snapshots, err := s.listMetadataLocked()
	if err != nil {
		return fmt.Errorf("listing snapshots: %w", err)
	}

	// Check for existing snapshot with same name
	exists := false
	for _, meta := range snapshots {
		if meta.ID == snapshot.ID {
			exists = true
			break
		}
	}

	if !exists && len(snapshots) >= s.config.MaxSnapshots {
		return models.ErrTooManySnapshots
	}

	// Set version and timestamp
	snapshot.Version = CurrentVersion
	if snapshot.Created.IsZero() {
		snapshot.Created = time.Now().UTC()
	}

	// Serialize to JSON
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	// Check size limit
	if int64(len(data)) > s.config.MaxSnapshotSize {
		return models.ErrSnapshotTooLarge
	}

	// Write to gzip file
	filePath := s.snapshotPath(snapshot.ID)
	if err := s.writeGzip(filePath, data); err != nil {
		return fmt.Errorf("writing snapshot file: %w", err)
	}

	return nil
}

// Load loads a snapshot from disk and verifies its checksum.
func (s *Store) Load(ctx context.Context, name string) (*models.Snapshot, error) {
	if err := models.ValidateSnapshotName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filePath := s.snapshotPath(name)

	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, models.ErrSnapshotNotFound
	}

	// Read gzip file
	data, err := s.readGzip(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}

	// Deserialize
	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}

	if err := VerifySnapshot(&snapshot); err != nil {
		return nil, err
	}

	return &snapshot, nil
}

// Delete removes a snapshot from disk.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := models.ValidateSnapshotName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := s.snapshotPath(name)

	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return models.ErrSnapshotNotFound
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("removing snapshot file: %w", err)
	}

	return nil
}

// List returns metadata for all saved snapshots.
func (s *Store) List(ctx context.Context) ([]*models.SnapshotMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listMetadataLocked()
}

// GetMetadata returns metadata for a specific snapshot without the records.
func (s *Store) GetMetadata(ctx context.Context, name string) (*models.SnapshotMetadata, error) {
	if err := models.ValidateSnapshotName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filePath := s.snapshotPath(name)

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, models.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stat snapshot file: %w", err)
	}

	data, err := s.readGzip(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}

	return &models.SnapshotMetadata{
		ID:          snapshot.ID,
		Description: snapshot.Description,
		Created:     snapshot.Created,
		RecordCount: len(snapshot.Records),
		SizeBytes:   info.Size(),
	}, nil
}

// Exists checks if a snapshot exists.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	if err := models.ValidateSnapshotName(name); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filePath := s.snapshotPath(name)
	_, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// snapshotPath returns the file path for a snapshot.
func (s *Store) snapshotPath(name string) string {
	return filepath.Join(s.config.SnapshotDir, name+SnapshotFileExtension)
}

// listMetadataLocked lists all snapshot metadata (must hold lock).
func (s *Store) listMetadataLocked() ([]*models.SnapshotMetadata, error) {
	entries, err := os.ReadDir(s.config.SnapshotDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot directory: %w", err)
	}

	var snapshots []*models.SnapshotMetadata

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, SnapshotFileExtension) {
			continue
		}

		snapshotID := strings.TrimSuffix(name, SnapshotFileExtension)

		info, err := entry.Info()
		if err != nil {
			continue // Skip files we can't stat
		}

		filePath := filepath.Join(s.config.SnapshotDir, name)
		data, err := s.readGzip(filePath)
		if err != nil {
			continue // Skip corrupted files
		}

		var snapshot models.Snapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			continue // Skip corrupted files
		}

		snapshots = append(snapshots, &models.SnapshotMetadata{
			ID:          snapshotID,
			Description: snapshot.Description,
			Created:     snapshot.Created,
			RecordCount: len(snapshot.Records),
			SizeBytes:   info.Size(),
		})
	}

	// Sort by created time, newest first
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Created.After(snapshots[j].Created)
	})

	return snapshots, nil
}

// writeGzip writes data to a gzip-compressed file.
func (s *Store) writeGzip(path string, data []byte) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	gw := gzip.NewWriter(file)
	defer gw.Close()

	if _, err := gw.Write(data); err != nil {
		return err
	}

	return gw.Close()
}

// readGzip reads data from a gzip-compressed file.
func (s *Store) readGzip(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gr, err := gzip.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}

// Helper functions for environment variable configuration

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		var i int64
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
