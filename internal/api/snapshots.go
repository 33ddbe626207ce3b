package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sftools/incident-classifier/internal/storage"
	"github.com/sftools/incident-classifier/internal/storage/snapshots"
	"github.com/sftools/incident-classifier/pkg/models"
)

// SnapshotHandler handles snapshot-related API requests.
type SnapshotHandler struct {
	snapStore *snapshots.Store
	mainStore storage.Storage
}

// NewSnapshotHandler creates a new snapshot handler.
func NewSnapshotHandler(snapStore *snapshots.Store, mainStore storage.Storage) *SnapshotHandler {
	return &SnapshotHandler{
		snapStore: snapStore,
		mainStore: mainStore,
	}
}

// SnapshotSaveRequest is the POST /snapshots request body.
type SnapshotSaveRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ListSnapshots returns metadata for all saved snapshots.
// GET /api/v1/snapshots
func (h *SnapshotHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.snapStore.List(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list snapshots: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": list,
		"total":     len(list),
	})
}

// GetSnapshotMetadata returns metadata for a specific snapshot.
// GET /api/v1/snapshots/{name}
func (h *SnapshotHandler) GetSnapshotMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name, ok := h.decodeName(w, r)
	if !ok {
		return
	}

	meta, err := h.snapStore.GetMetadata(ctx, name)
	if err != nil {
		if errors.Is(err, models.ErrSnapshotNotFound) {
			respondError(w, http.StatusNotFound, "Snapshot not found")
			return
		}
		if errors.Is(err, models.ErrInvalidSnapshotName) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to get snapshot: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, meta)
}

// CreateSnapshot exports the current case history as a new snapshot.
// POST /api/v1/snapshots
func (h *SnapshotHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SnapshotSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := models.ValidateSnapshotName(req.Name); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Check if snapshot already exists (unless force=true)
	force := r.URL.Query().Get("force") == "true"
	exists, _ := h.snapStore.Exists(ctx, req.Name)
	if exists && !force {
		respondError(w, http.StatusConflict, "Snapshot already exists. Use ?force=true to overwrite.")
		return
	}

	records, err := h.mainStore.ListCases(ctx, "", false)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to read case history: "+err.Error())
		return
	}

	snapshot, err := snapshots.BuildSnapshot(req.Name, req.Description, records)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to build snapshot: "+err.Error())
		return
	}

	if err := h.snapStore.Save(ctx, snapshot); err != nil {
		if errors.Is(err, models.ErrTooManySnapshots) {
			respondError(w, http.StatusConflict, "Maximum number of snapshots reached")
			return
		}
		if errors.Is(err, models.ErrSnapshotTooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Snapshot data too large")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to save snapshot: "+err.Error())
		return
	}

	meta, _ := h.snapStore.GetMetadata(ctx, req.Name)

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Snapshot created successfully",
		"snapshot": meta,
	})
}

// DeleteSnapshot removes a snapshot.
// DELETE /api/v1/snapshots/{name}
func (h *SnapshotHandler) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name, ok := h.decodeName(w, r)
	if !ok {
		return
	}

	if err := h.snapStore.Delete(ctx, name); err != nil {
		if errors.Is(err, models.ErrSnapshotNotFound) {
			respondError(w, http.StatusNotFound, "Snapshot not found")
			return
		}
		if errors.Is(err, models.ErrInvalidSnapshotName) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to delete snapshot: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RestoreSnapshot replaces the current case history with a snapshot's records.
// POST /api/v1/snapshots/{name}/restore
func (h *SnapshotHandler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name, ok := h.decodeName(w, r)
	if !ok {
		return
	}

	snapshot, err := h.snapStore.Load(ctx, name)
	if err != nil {
		if errors.Is(err, models.ErrSnapshotNotFound) {
			respondError(w, http.StatusNotFound, "Snapshot not found")
			return
		}
		if errors.Is(err, models.ErrSnapshotCorrupt) {
			respondError(w, http.StatusUnprocessableEntity, "Snapshot checksum mismatch")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load snapshot: "+err.Error())
		return
	}

	if err := h.mainStore.Clear(ctx); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to clear store: "+err.Error())
		return
	}

	restored := 0
	for _, record := range snapshot.Records {
		if err := h.mainStore.StoreCase(ctx, record); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to restore records: "+err.Error())
			return
		}
		restored++
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Snapshot restored successfully",
		"snapshot": snapshot.ID,
		"restored": restored,
	})
}

// ExportSnapshot downloads a snapshot as JSON.
// GET /api/v1/snapshots/{name}/export
func (h *SnapshotHandler) ExportSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name, ok := h.decodeName(w, r)
	if !ok {
		return
	}

	snapshot, err := h.snapStore.Load(ctx, name)
	if err != nil {
		if errors.Is(err, models.ErrSnapshotNotFound) {
			respondError(w, http.StatusNotFound, "Snapshot not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load snapshot: "+err.Error())
		return
	}

	// Set headers for download
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+".json\"")

	json.NewEncoder(w).Encode(snapshot)
}

// ImportSnapshot uploads a snapshot from JSON.
// POST /api/v1/snapshots/import
func (h *SnapshotHandler) ImportSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var snapshot models.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid snapshot JSON: "+err.Error())
		return
	}

	if err := models.ValidateSnapshotName(snapshot.ID); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid snapshot name: "+err.Error())
		return
	}

	// Reject imports with a bad checksum before they hit disk
	if err := snapshots.VerifySnapshot(&snapshot); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "Snapshot checksum mismatch")
		return
	}

	// Check if snapshot exists (unless force=true)
	force := r.URL.Query().Get("force") == "true"
	exists, _ := h.snapStore.Exists(ctx, snapshot.ID)
	if exists && !force {
		respondError(w, http.StatusConflict, "Snapshot already exists. Use ?force=true to overwrite.")
		return
	}

	if err := h.snapStore.Save(ctx, &snapshot); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save snapshot: "+err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Snapshot imported successfully",
		"snapshot": snapshot.ID,
	})
}

// decodeName extracts and URL-decodes the snapshot name parameter.
func (h *SnapshotHandler) decodeName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")

	decoded, err := url.QueryUnescape(name)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid snapshot name encoding")
		return "", false
	}
	return decoded, true
}
