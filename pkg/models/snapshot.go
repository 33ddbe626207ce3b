package models

import (
	"errors"
	"regexp"
	"time"
)

// Snapshot naming validation
var snapshotNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]*[a-z0-9]$|^[a-z0-9]$`)

// Snapshot errors
var (
	ErrSnapshotNotFound    = errors.New("snapshot not found")
	ErrInvalidSnapshotName = errors.New("invalid snapshot name: must be lowercase alphanumeric with hyphens")
	ErrSnapshotTooLarge    = errors.New("snapshot exceeds size limit")
	ErrTooManySnapshots    = errors.New("maximum number of snapshots reached")
	ErrSnapshotCorrupt     = errors.New("snapshot checksum mismatch")
)

// ValidateSnapshotName checks if a snapshot name is valid.
// Names must be lowercase alphanumeric with hyphens, no spaces or special chars.
func ValidateSnapshotName(name string) error {
	if name == "" {
		return ErrInvalidSnapshotName
	}
	if len(name) > 128 {
		return ErrInvalidSnapshotName
	}
	if !snapshotNameRegex.MatchString(name) {
		return ErrInvalidSnapshotName
	}
	return nil
}

// SnapshotMetadata contains information about a saved snapshot without the
// full record payload.
type SnapshotMetadata struct {
	// ID is the unique snapshot identifier (name)
	ID string `json:"id"`

	// Description is an optional user-provided description
	Description string `json:"description,omitempty"`

	// Created is when the snapshot was saved
	Created time.Time `json:"created"`

	// RecordCount is the number of case records in the snapshot
	RecordCount int `json:"record_count"`

	// SizeBytes is the on-disk (compressed) size
	SizeBytes int64 `json:"size_bytes"`
}

// Snapshot is a complete export of classification history.
type Snapshot struct {
	// Version is the snapshot format version
	Version int `json:"version"`

	ID          string    `json:"id"`
	Description string    `json:"description,omitempty"`
	Created     time.Time `json:"created"`

	// Checksum is the hex SHA-256 of the JSON-encoded records
	Checksum string `json:"checksum"`

	Records []*CaseRecord `json:"records"`
}
