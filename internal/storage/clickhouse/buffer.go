package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const (
	defaultBatchSize     = 1000
	defaultFlushInterval = 5 * time.Second
	defaultShutdownWait  = 10 * time.Second
	maxRetries           = 3
)

// CaseRow represents a row in the case_records table
type CaseRow struct {
	ID            string
	RawTitle      string
	Matched       uint8
	Subject       string
	AlertType     string
	CarrierModule string
	FormDefaults  string
	CreatedAt     time.Time
}

// BatchBuffer manages batched writes to ClickHouse with automatic flushing
type BatchBuffer struct {
	conn driver.Conn

	mu       sync.Mutex
	caseRows []CaseRow

	batchSize     int
	flushInterval time.Duration
	shutdownWait  time.Duration

	flushTimer *time.Timer
	stopCh     chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// NewBatchBuffer creates a new batch buffer
func NewBatchBuffer(conn driver.Conn, logger *slog.Logger) *BatchBuffer {
	if logger == nil {
		logger = slog.Default()
	}

	b := &BatchBuffer{
		conn:          conn,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		shutdownWait:  defaultShutdownWait,
		stopCh:        make(chan struct{}),
		logger:        logger,
	}

	b.flushTimer = time.NewTimer(b.flushInterval)

	// Start flush goroutine
	b.wg.Add(1)
	go b.flushLoop()

	return b
}

// AddCase adds a case row to the buffer
func (b *BatchBuffer) AddCase(row CaseRow) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.caseRows = append(b.caseRows, row)

	if len(b.caseRows) >= b.batchSize {
		return b.flushCasesLocked()
	}

	return nil
}

// flushLoop periodically flushes buffers on timer
func (b *BatchBuffer) flushLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.flushTimer.C:
			b.mu.Lock()
			_ = b.flushCasesLocked()
			b.mu.Unlock()
			b.flushTimer.Reset(b.flushInterval)

		case <-b.stopCh:
			return
		}
	}
}

// flushCasesLocked flushes case rows (must hold lock)
func (b *BatchBuffer) flushCasesLocked() error {
	if len(b.caseRows) == 0 {
		return nil
	}

	start := time.Now()
	rows := b.caseRows
	b.caseRows = nil

	// Release lock during insert
	b.mu.Unlock()
	err := b.insertCases(rows)
	b.mu.Lock()

	if err != nil {
		b.logger.Error("failed to flush cases",
			"error", err,
			"row_count", len(rows),
		)
		return err
	}

	b.logger.Debug("flushed cases",
		"row_count", len(rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Close gracefully shuts down the buffer, flushing remaining data
func (b *BatchBuffer) Close(ctx context.Context) error {
	var finalErr error

	b.closeOnce.Do(func() {
		// Stop flush loop
		close(b.stopCh)

		// Create shutdown context with timeout
		shutdownCtx, cancel := context.WithTimeout(ctx, b.shutdownWait)
		defer cancel()

		// Wait for flush loop to stop
		done := make(chan struct{})
		go func() {
			b.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			// Flush loop stopped
		case <-shutdownCtx.Done():
			b.logger.Warn("flush loop did not stop within timeout")
		}

		// Final flush
		b.mu.Lock()
		defer b.mu.Unlock()

		finalErr = b.flushCasesLocked()
	})

	return finalErr
}

func (b *BatchBuffer) insertCases(rows []CaseRow) error {
	return b.retryInsert(func(ctx context.Context) error {
		batch, err := b.conn.PrepareBatch(ctx, "INSERT INTO case_records")
		if err != nil {
			return err
		}

		for _, row := range rows {
			err = batch.Append(
				row.ID,
				row.RawTitle,
				row.Matched,
				row.Subject,
				row.AlertType,
				row.CarrierModule,
				row.FormDefaults,
				row.CreatedAt,
			)
			if err != nil {
				return err
			}
		}

		return batch.Send()
	})
}

// retryInsert retries insert operation with exponential backoff
func (b *BatchBuffer) retryInsert(fn func(context.Context) error) error {
	var err error
	retryDelay := 100 * time.Millisecond

	for attempt := 1; attempt <= maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = fn(ctx)
		cancel()

		if err == nil {
			return nil
		}

		if attempt < maxRetries {
			time.Sleep(retryDelay)
			retryDelay *= 2
		}
	}

	return fmt.Errorf("insert failed after %d attempts: %w", maxRetries, err)
}
