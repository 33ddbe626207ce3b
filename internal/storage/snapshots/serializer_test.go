package snapshots

import (
	"context"
	"errors"
	"testing"

	"github.com/sftools/incident-classifier/pkg/models"
)

func TestBuildSnapshot_Checksum(t *testing.T) {
	records := testRecords(4)

	snapshot, err := BuildSnapshot("checksum-test", "", records)
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}

	if snapshot.Checksum == "" {
		t.Fatal("Expected non-empty checksum")
	}
	if len(snapshot.Checksum) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(snapshot.Checksum))
	}

	if err := VerifySnapshot(snapshot); err != nil {
		t.Errorf("VerifySnapshot failed on fresh snapshot: %v", err)
	}
}

func TestBuildSnapshot_InvalidName(t *testing.T) {
	_, err := BuildSnapshot("Bad Name", "", nil)
	if !errors.Is(err, models.ErrInvalidSnapshotName) {
		t.Errorf("Expected ErrInvalidSnapshotName, got %v", err)
	}
}

func TestVerifySnapshot_Tampered(t *testing.T) {
	snapshot, err := BuildSnapshot("tamper-test", "", testRecords(2))
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}

	snapshot.Records[0].Subject = "altered subject"

	if err := VerifySnapshot(snapshot); !errors.Is(err, models.ErrSnapshotCorrupt) {
		t.Errorf("Expected ErrSnapshotCorrupt, got %v", err)
	}
}

func TestVerifySnapshot_NoChecksum(t *testing.T) {
	snapshot := &models.Snapshot{
		ID:      "legacy",
		Records: testRecords(1),
	}

	if err := VerifySnapshot(snapshot); err != nil {
		t.Errorf("Expected legacy snapshot without checksum to pass, got %v", err)
	}
}

func TestSaveLoad_ChecksumRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	snapshot, err := BuildSnapshot("round-trip", "", testRecords(3))
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}
	if err := store.Save(ctx, snapshot); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "round-trip")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Checksum != snapshot.Checksum {
		t.Errorf("Checksum changed across save/load: %s != %s", loaded.Checksum, snapshot.Checksum)
	}
}
