package snapshots

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sftools/incident-classifier/pkg/models"
)

// BuildSnapshot assembles a snapshot from the given records and computes
// the integrity checksum.
func BuildSnapshot(name, description string, records []*models.CaseRecord) (*models.Snapshot, error) {
	if err := models.ValidateSnapshotName(name); err != nil {
		return nil, err
	}

	checksum, err := recordsChecksum(records)
	if err != nil {
		return nil, err
	}

	return &models.Snapshot{
		Version:     CurrentVersion,
		ID:          name,
		Description: description,
		Created:     time.Now().UTC(),
		Checksum:    checksum,
		Records:     records,
	}, nil
}

// VerifySnapshot recomputes the record checksum and compares it against the
// stored one. Snapshots written before checksums were added pass through.
func VerifySnapshot(snapshot *models.Snapshot) error {
	if snapshot.Checksum == "" {
		return nil
	}

	checksum, err := recordsChecksum(snapshot.Records)
	if err != nil {
		return err
	}

	if checksum != snapshot.Checksum {
		return models.ErrSnapshotCorrupt
	}

	return nil
}

// recordsChecksum computes the hex SHA-256 of the JSON-encoded records.
func recordsChecksum(records []*models.CaseRecord) (string, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("marshaling records: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
