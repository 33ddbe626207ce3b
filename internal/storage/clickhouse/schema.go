package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const schemaVersion = "1.0.0"

// InitializeSchema creates all required tables if they don't exist
func InitializeSchema(ctx context.Context, conn driver.Conn) error {
	// Create schema_version table first
	if err := createSchemaVersionTable(ctx, conn); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	// Check current schema version
	currentVersion, err := getCurrentSchemaVersion(ctx, conn)
	if err != nil {
		return fmt.Errorf("checking schema version: %w", err)
	}

	if currentVersion != "" && currentVersion != schemaVersion {
		return fmt.Errorf("schema version mismatch: database has %s, code expects %s", currentVersion, schemaVersion)
	}

	if err := conn.Exec(ctx, caseRecordsTableDDL); err != nil {
		return fmt.Errorf("creating table case_records: %w", err)
	}

	// Update schema version
	if currentVersion == "" {
		if err := setSchemaVersion(ctx, conn, schemaVersion); err != nil {
			return fmt.Errorf("setting schema version: %w", err)
		}
	}

	return nil
}

func createSchemaVersionTable(ctx context.Context, conn driver.Conn) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS schema_version (
			version String,
			applied_at DateTime64(3) DEFAULT now64(3)
		) ENGINE = MergeTree()
		ORDER BY applied_at
	`
	return conn.Exec(ctx, ddl)
}

func getCurrentSchemaVersion(ctx context.Context, conn driver.Conn) (string, error) {
	var version string
	row := conn.QueryRow(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1")
	err := row.Scan(&version)
	if err != nil && err.Error() != "sql: no rows in result set" {
		return "", err
	}
	return version, nil
}

func setSchemaVersion(ctx context.Context, conn driver.Conn, version string) error {
	return conn.Exec(ctx, "INSERT INTO schema_version (version) VALUES (?)", version)
}

const caseRecordsTableDDL = `
CREATE TABLE IF NOT EXISTS case_records (
    -- Identity
    id String,

    -- Classification input and outcome
    raw_title String,
    matched UInt8,
    subject String,
    alert_type LowCardinality(String),
    carrier_module LowCardinality(String),

    -- Form defaults as JSON
    form_defaults String,

    -- Timestamps
    created_at DateTime64(3)

) ENGINE = ReplacingMergeTree(created_at)
ORDER BY id
SETTINGS index_granularity = 8192
`
