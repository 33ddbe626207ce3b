// Package sqlite provides a SQLite-backed storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sftools/incident-classifier/pkg/models"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.up.sql
var migrationSQL string

// Store is a SQLite-backed storage for classified case records.
type Store struct {
	db *sql.DB

	// Batch writer
	writeCh   chan writeOp
	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// writeOp represents a write operation to be batched.
type writeOp struct {
	record *models.CaseRecord
	done   chan error
}

// Config holds SQLite store configuration.
type Config struct {
	DBPath        string
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig returns default SQLite configuration.
func DefaultConfig(dbPath string) Config {
	return Config{
		DBPath:        dbPath,
		BatchSize:     100,
		FlushInterval: 100 * time.Millisecond,
	}
}

// New creates a new SQLite store with the given configuration.
func New(cfg Config) (*Store, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 100 * time.Millisecond
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set pragmas for performance
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000", // 64MB cache
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	// Run migrations
	if _, err := db.Exec(migrationSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	store := &Store{
		db:      db,
		writeCh: make(chan writeOp, 1000),
		closeCh: make(chan struct{}),
	}

	// Start batch writer goroutine
	store.wg.Add(1)
	go store.batchWriter(cfg.BatchSize, cfg.FlushInterval)

	return store, nil
}

// batchWriter runs in a goroutine and batches write operations.
func (s *Store) batchWriter(batchSize int, flushInterval time.Duration) {
	defer s.wg.Done()

	batch := make([]writeOp, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		err := s.executeBatch(batch)

		for i := range batch {
			if batch[i].done != nil {
				batch[i].done <- err
				close(batch[i].done)
			}
		}

		batch = batch[:0]
	}

	for {
		select {
		case op := <-s.writeCh:
			batch = append(batch, op)
			if len(batch) >= batchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-s.closeCh:
			// Drain remaining ops
			close(s.writeCh)
			for op := range s.writeCh {
				batch = append(batch, op)
			}
			flush()
			return
		}
	}
}

// executeBatch runs a batch of write operations in a single transaction.
func (s *Store) executeBatch(batch []writeOp) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, op := range batch {
		if err := s.storeCaseTx(tx, op.record); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// StoreCase stores a classified case record. The write is batched but the
// call does not return until the record is committed.
func (s *Store) StoreCase(ctx context.Context, record *models.CaseRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	done := make(chan error, 1)

	select {
	case s.writeCh <- writeOp{record: record, done: done}:
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closeCh:
		return errors.New("store is closed")
	}
}

// storeCaseTx inserts a case record within a transaction.
func (s *Store) storeCaseTx(tx *sql.Tx, record *models.CaseRecord) error {
	formDefaults, err := encodeJSON(record.FormDefaults)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO cases (id, raw_title, matched, subject, alert_type, carrier_module, form_defaults, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			raw_title = excluded.raw_title,
			matched = excluded.matched,
			subject = excluded.subject,
			alert_type = excluded.alert_type,
			carrier_module = excluded.carrier_module,
			form_defaults = excluded.form_defaults
	`, record.ID, record.RawTitle, boolToInt(record.Matched), record.Subject,
		record.AlertTypeName, record.CarrierModule, formDefaults,
		record.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting case: %w", err)
	}

	return nil
}

// GetCase retrieves a case record by ID.
func (s *Store) GetCase(ctx context.Context, id string) (*models.CaseRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, raw_title, matched, subject, alert_type, carrier_module, form_defaults, created_at
		FROM cases WHERE id = ?
	`, id)

	record, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("case %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return record, nil
}

// ListCases returns stored cases, newest first, optionally filtered.
func (s *Store) ListCases(ctx context.Context, alertType string, matchedOnly bool) ([]*models.CaseRecord, error) {
	query := `
		SELECT id, raw_title, matched, subject, alert_type, carrier_module, form_defaults, created_at
		FROM cases WHERE 1=1
	`
	args := []interface{}{}

	if alertType != "" {
		query += " AND alert_type = ?"
		args = append(args, alertType)
	}
	if matchedOnly {
		query += " AND matched = 1"
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying cases: %w", err)
	}
	defer rows.Close()

	var records []*models.CaseRecord
	for rows.Next() {
		record, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cases: %w", err)
	}

	return records, nil
}

// TypeStats returns per-alert-type case counts, highest count first.
func (s *Store) TypeStats(ctx context.Context) ([]models.TypeCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT CASE WHEN alert_type = '' THEN 'Unmatched' ELSE alert_type END AS name,
		       COUNT(*) AS cnt
		FROM cases
		GROUP BY name
		ORDER BY cnt DESC, name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying type stats: %w", err)
	}
	defer rows.Close()

	var stats []models.TypeCount
	for rows.Next() {
		var tc models.TypeCount
		if err := rows.Scan(&tc.AlertTypeName, &tc.Count); err != nil {
			return nil, fmt.Errorf("scanning type stats: %w", err)
		}
		stats = append(stats, tc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating type stats: %w", err)
	}

	return stats, nil
}

// Clear removes all stored data.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cases"); err != nil {
		return fmt.Errorf("clearing cases: %w", err)
	}
	return nil
}

// Close closes the store and releases resources.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// scanner abstracts sql.Row and sql.Rows for scanning.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanCase scans a case row into a record.
func scanCase(row scanner) (*models.CaseRecord, error) {
	var (
		record       models.CaseRecord
		matched      int
		formDefaults string
		createdAt    string
	)

	err := row.Scan(&record.ID, &record.RawTitle, &matched, &record.Subject,
		&record.AlertTypeName, &record.CarrierModule, &formDefaults, &createdAt)
	if err != nil {
		return nil, err
	}

	record.Matched = matched != 0

	if formDefaults != "" && formDefaults != "null" {
		if err := decodeJSON(formDefaults, &record.FormDefaults); err != nil {
			return nil, err
		}
	}

	record.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &record, nil
}

// encodeJSON encodes data as JSON string.
func encodeJSON(data interface{}) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encoding JSON: %w", err)
	}
	return string(b), nil
}

// decodeJSON decodes JSON string to target.
func decodeJSON(data string, target interface{}) error {
	if err := json.Unmarshal([]byte(data), target); err != nil {
		return fmt.Errorf("decoding JSON: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
