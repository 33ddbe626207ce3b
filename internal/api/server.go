// Package api provides the REST API for alert-title classification and
// case history.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sftools/incident-classifier/internal/classifier"
	"github.com/sftools/incident-classifier/internal/config"
	"github.com/sftools/incident-classifier/internal/storage"
	"github.com/sftools/incident-classifier/internal/storage/snapshots"
	"github.com/sftools/incident-classifier/pkg/models"
)

// Server is the REST API server.
type Server struct {
	classifier *classifier.Classifier
	cfg        *config.Config
	store      storage.Storage
	router     *chi.Mux
	server     *http.Server
}

// PaginationParams contains pagination parameters from query string.
type PaginationParams struct {
	Limit  int
	Offset int
}

// PaginatedResponse wraps a paginated response with metadata.
type PaginatedResponse struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

// parsePaginationParams extracts pagination parameters from request.
// Defaults: limit=100, offset=0, max_limit=1000
func parsePaginationParams(r *http.Request) PaginationParams {
	const (
		defaultLimit = 100
		maxLimit     = 1000
	)

	limit := defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > maxLimit {
				limit = maxLimit
			}
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return PaginationParams{
		Limit:  limit,
		Offset: offset,
	}
}

// paginateSlice applies pagination to a slice.
func paginateSlice[T any](items []T, params PaginationParams) PaginatedResponse {
	total := len(items)
	start := params.Offset
	end := start + params.Limit

	if start >= total {
		return PaginatedResponse{
			Data:    []T{},
			Total:   total,
			Limit:   params.Limit,
			Offset:  params.Offset,
			HasMore: false,
		}
	}

	if end > total {
		end = total
	}

	return PaginatedResponse{
		Data:    items[start:end],
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
		HasMore: end < total,
	}
}

// NewServer creates a new API server.
func NewServer(addr string, cls *classifier.Classifier, cfg *config.Config, store storage.Storage, snapStore *snapshots.Store) *Server {
	s := &Server{
		classifier: cls,
		cfg:        cfg,
		store:      store,
		router:     chi.NewRouter(),
	}

	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	snapHandler := NewSnapshotHandler(snapStore, store)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Health endpoint
		r.Get("/health", s.HandleHealth)

		// Classification
		r.Post("/classify", s.classify)

		// Case history
		r.Get("/cases", s.listCases)
		r.Get("/cases/{id}", s.getCase)

		// Alert type stats
		r.Get("/types", s.listTypeStats)

		// Lookup-field defaults for the case form
		r.Get("/lookups", s.listLookupDefaults)

		// Snapshot endpoints
		r.Get("/snapshots", snapHandler.ListSnapshots)
		r.Post("/snapshots", snapHandler.CreateSnapshot)
		r.Post("/snapshots/import", snapHandler.ImportSnapshot)
		r.Get("/snapshots/{name}", snapHandler.GetSnapshotMetadata)
		r.Get("/snapshots/{name}/export", snapHandler.ExportSnapshot)
		r.Delete("/snapshots/{name}", snapHandler.DeleteSnapshot)
		r.Post("/snapshots/{name}/restore", snapHandler.RestoreSnapshot)

		// Admin endpoints
		r.Post("/admin/clear", s.clearAllData)
	})

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	return s
}

// Router returns the server's HTTP handler, useful for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the API server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ClassifyRequest is the POST /classify request body.
type ClassifyRequest struct {
	// Title is the raw alert title to classify
	Title string `json:"title"`

	// Details carries optional alert payload fields used for enrichment
	Details *AlertDetailsRequest `json:"details,omitempty"`

	// Store records the outcome in the case history when true
	Store bool `json:"store,omitempty"`
}

// AlertDetailsRequest mirrors the enrichment inputs.
type AlertDetailsRequest struct {
	ClientName    string `json:"client_name,omitempty"`
	ModuleName    string `json:"module_name,omitempty"`
	SingleCarrier bool   `json:"single_carrier,omitempty"`
}

// ClassifyResponse is the POST /classify response body.
type ClassifyResponse struct {
	Matched bool `json:"matched"`

	// Subject is the rendered subject, or the raw title when unmatched
	Subject string `json:"subject"`

	CaseInfo *models.CaseInfo `json:"case_info,omitempty"`

	// RecordID is set when the outcome was stored
	RecordID string `json:"record_id,omitempty"`
}

// classify runs a title through the rule table.
// POST /api/v1/classify
func (s *Server) classify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Title == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	info := s.classifier.Classify(req.Title)

	if info != nil && req.Details != nil {
		classifier.Enrich(info, &classifier.AlertDetails{
			ClientName:    req.Details.ClientName,
			ModuleName:    req.Details.ModuleName,
			SingleCarrier: req.Details.SingleCarrier,
		})
	}

	resp := ClassifyResponse{
		Matched: info != nil,
		Subject: req.Title,
	}
	if info != nil {
		resp.Subject = info.Subject
		resp.CaseInfo = info
	}

	if req.Store {
		record := models.NewCaseRecord(req.Title, info)
		if err := s.store.StoreCase(ctx, record); err != nil {
			s.respondError(w, http.StatusInternalServerError, "failed to store case: "+err.Error())
			return
		}
		resp.RecordID = record.ID
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// listCases returns stored cases, newest first.
// Supports ?type=NAME, ?matched=true and pagination via ?limit=N&offset=M.
func (s *Server) listCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alertType := r.URL.Query().Get("type")
	matchedOnly := r.URL.Query().Get("matched") == "true"
	params := parsePaginationParams(r)

	cases, err := s.store.ListCases(ctx, alertType, matchedOnly)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, paginateSlice(cases, params))
}

// getCase returns a specific case record by ID.
func (s *Server) getCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	record, err := s.store.GetCase(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "case not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, record)
}

// listTypeStats returns per-alert-type classification counts.
func (s *Server) listTypeStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.store.TypeStats(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  stats,
		"total": len(stats),
	})
}

// listLookupDefaults returns the lookup-field searches for the case form.
func (s *Server) listLookupDefaults(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  s.cfg.LookupDefaults,
		"total": len(s.cfg.LookupDefaults),
	})
}

// clearAllData clears all data from the storage.
// POST /api/v1/admin/clear
func (s *Server) clearAllData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.store.Clear(ctx); err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to clear data")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "All data cleared successfully",
	})
}

// respondJSON writes a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, data)
}

// respondError writes an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	respondError(w, status, message)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
