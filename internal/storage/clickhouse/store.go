package clickhouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sftools/incident-classifier/pkg/models"
)

// Store implements the storage.Storage interface using ClickHouse
type Store struct {
	conn   driver.Conn
	buffer *BatchBuffer
	logger *slog.Logger
}

// NewStore creates a new ClickHouse storage instance
func NewStore(ctx context.Context, config *ConnectionConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Connect to ClickHouse
	conn, err := Connect(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to ClickHouse: %w", err)
	}

	// Initialize schema
	if err := InitializeSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	// Create batch buffer
	buffer := NewBatchBuffer(conn, logger)

	return &Store{
		conn:   conn,
		buffer: buffer,
		logger: logger,
	}, nil
}

// StoreCase buffers a case record for insertion. Records become visible to
// reads after the next buffer flush.
func (s *Store) StoreCase(ctx context.Context, record *models.CaseRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	formDefaults, err := json.Marshal(record.FormDefaults)
	if err != nil {
		return fmt.Errorf("encoding form defaults: %w", err)
	}

	matched := uint8(0)
	if record.Matched {
		matched = 1
	}

	row := CaseRow{
		ID:            record.ID,
		RawTitle:      record.RawTitle,
		Matched:       matched,
		Subject:       record.Subject,
		AlertType:     record.AlertTypeName,
		CarrierModule: record.CarrierModule,
		FormDefaults:  string(formDefaults),
		CreatedAt:     record.CreatedAt,
	}

	return s.buffer.AddCase(row)
}

// GetCase retrieves a case record by ID.
func (s *Store) GetCase(ctx context.Context, id string) (*models.CaseRecord, error) {
	query := `
		SELECT id, raw_title, matched, subject, alert_type, carrier_module, form_defaults, created_at
		FROM case_records FINAL
		WHERE id = ?
		LIMIT 1
	`

	row := s.conn.QueryRow(ctx, query, id)

	record, err := scanCaseRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("case %s: %w", id, models.ErrNotFound)
		}
		return nil, err
	}

	return record, nil
}

// ListCases returns stored cases, newest first, optionally filtered.
func (s *Store) ListCases(ctx context.Context, alertType string, matchedOnly bool) ([]*models.CaseRecord, error) {
	query := `
		SELECT id, raw_title, matched, subject, alert_type, carrier_module, form_defaults, created_at
		FROM case_records FINAL
		WHERE 1 = 1
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

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying cases: %w", err)
	}
	defer rows.Close()

	var records []*models.CaseRecord
	for rows.Next() {
		record, err := scanCaseRow(rows)
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
	query := `
		SELECT if(alert_type = '', 'Unmatched', alert_type) AS name, count() AS cnt
		FROM case_records FINAL
		GROUP BY name
		ORDER BY cnt DESC, name
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying type stats: %w", err)
	}
	defer rows.Close()

	var stats []models.TypeCount
	for rows.Next() {
		var (
			name string
			cnt  uint64
		)
		if err := rows.Scan(&name, &cnt); err != nil {
			return nil, fmt.Errorf("scanning type stats: %w", err)
		}
		stats = append(stats, models.TypeCount{AlertTypeName: name, Count: int64(cnt)})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating type stats: %w", err)
	}

	return stats, nil
}

// Flush forces any buffered rows to be written.
func (s *Store) Flush() error {
	s.buffer.mu.Lock()
	defer s.buffer.mu.Unlock()
	return s.buffer.flushCasesLocked()
}

// Clear removes all stored data.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.conn.Exec(ctx, "TRUNCATE TABLE case_records"); err != nil {
		return fmt.Errorf("truncating table case_records: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	// Flush remaining buffer
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.buffer.Close(ctx); err != nil {
		s.logger.Error("error flushing buffer on close", "error", err)
	}

	return s.conn.Close()
}

// rowScanner abstracts driver.Row and driver.Rows for scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCaseRow(row rowScanner) (*models.CaseRecord, error) {
	var (
		record       models.CaseRecord
		matched      uint8
		formDefaults string
		createdAt    time.Time
	)

	err := row.Scan(&record.ID, &record.RawTitle, &matched, &record.Subject,
		&record.AlertTypeName, &record.CarrierModule, &formDefaults, &createdAt)
	if err != nil {
		return nil, err
	}

	record.Matched = matched == 1
	record.CreatedAt = createdAt

	if formDefaults != "" && formDefaults != "null" {
		if err := json.Unmarshal([]byte(formDefaults), &record.FormDefaults); err != nil {
			return nil, fmt.Errorf("decoding form defaults: %w", err)
		}
	}

	return &record, nil
}
