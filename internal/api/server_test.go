package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sftools/incident-classifier/internal/classifier"
	"github.com/sftools/incident-classifier/internal/config"
	"github.com/sftools/incident-classifier/internal/storage/memory"
	"github.com/sftools/incident-classifier/internal/storage/snapshots"
	"github.com/sftools/incident-classifier/pkg/models"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cls := classifier.New(cfg.ClassifierConfig())

	snapStore, err := snapshots.NewWithConfig(snapshots.Config{
		SnapshotDir:     t.TempDir(),
		MaxSnapshotSize: 10 * 1024 * 1024,
		MaxSnapshots:    10,
	})
	if err != nil {
		t.Fatalf("Failed to create snapshot store: %v", err)
	}

	return NewServer(":0", cls, cfg, memory.New(), snapStore)
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestClassifyEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/classify", ClassifyRequest{
		Title: "PRD DM-CARRIERS-DM4 ECS query result on '***CRITICAL*** - DM04 - High Web Transaction Time'",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ClassifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Matched {
		t.Fatal("Expected a match")
	}
	if resp.CaseInfo == nil {
		t.Fatal("Expected case info")
	}
	if resp.CaseInfo.AlertTypeName != "DM Web Transaction" {
		t.Errorf("Expected DM Web Transaction, got %q", resp.CaseInfo.AlertTypeName)
	}
	if resp.Subject != "DM|PD|High Web Transaction Time" {
		t.Errorf("Unexpected subject: %q", resp.Subject)
	}
}

func TestClassifyEndpoint_Unmatched(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/classify", ClassifyRequest{
		Title: "completely unrelated alert text",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp ClassifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Matched {
		t.Error("Expected no match")
	}
	if resp.Subject != "completely unrelated alert text" {
		t.Errorf("Expected raw title as subject, got %q", resp.Subject)
	}
	if resp.CaseInfo != nil {
		t.Error("Expected no case info")
	}
}

func TestClassifyEndpoint_MissingTitle(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/classify", ClassifyRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestClassifyEndpoint_WithDetails(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/classify", ClassifyRequest{
		Title: "PRD DM-SCHEDULER-DM4 query Failed Transfer for module",
		Details: &AlertDetailsRequest{
			ClientName: "Acme",
			ModuleName: "dpd",
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ClassifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Matched {
		t.Fatal("Expected a match")
	}
	if resp.Subject != "DM4|Acme|PD|Failed Transfer for dpd" {
		t.Errorf("Unexpected enriched subject: %q", resp.Subject)
	}
}

func TestClassifyAndStoreFlow(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/classify", ClassifyRequest{
		Title: "royalmail_prd trep query NoEventsFound for 2 hours",
		Store: true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ClassifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.RecordID == "" {
		t.Fatal("Expected a record ID")
	}

	// Fetch the stored case
	getRec := doJSON(t, srv, http.MethodGet, "/api/v1/cases/"+resp.RecordID, nil)
	if getRec.Code != http.StatusOK {
		t.Fatalf("Expected 200 fetching case, got %d", getRec.Code)
	}

	var record models.CaseRecord
	if err := json.Unmarshal(getRec.Body.Bytes(), &record); err != nil {
		t.Fatalf("Failed to decode case record: %v", err)
	}
	if record.Subject != resp.Subject {
		t.Errorf("Stored subject %q does not match response %q", record.Subject, resp.Subject)
	}
	if !record.Matched {
		t.Error("Expected stored record to be matched")
	}
}

func TestGetCase_NotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/cases/nonexistent", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestListCases_FilterAndPagination(t *testing.T) {
	srv := newTestServer(t)

	titles := []string{
		"royalmail_prd trep query NoEventsFound for 2 hours",
		"dhl_prd trep query NoEventsFound for 2 hours",
		"unmatched alert title",
	}
	for _, title := range titles {
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/classify", ClassifyRequest{Title: title, Store: true})
		if rec.Code != http.StatusOK {
			t.Fatalf("Classify failed for %q: %d", title, rec.Code)
		}
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/cases?matched=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var page PaginatedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("Expected 2 matched cases, got %d", page.Total)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/cases?limit=1&offset=0", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if page.Total != 3 || !page.HasMore {
		t.Errorf("Expected total 3 with more pages, got total=%d has_more=%v", page.Total, page.HasMore)
	}
}

func TestListTypeStats(t *testing.T) {
	srv := newTestServer(t)

	for _, carrier := range []string{"royalmail", "dhl"} {
		title := fmt.Sprintf("%s_prd trep query NoEventsFound for 2 hours", carrier)
		doJSON(t, srv, http.MethodPost, "/api/v1/classify", ClassifyRequest{Title: title, Store: true})
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/types", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data  []models.TypeCount `json:"data"`
		Total int                `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Total != 1 {
		t.Fatalf("Expected 1 type entry, got %d", resp.Total)
	}
	if resp.Data[0].AlertTypeName != "MPM NoEventsFound" || resp.Data[0].Count != 2 {
		t.Errorf("Unexpected stats entry: %+v", resp.Data[0])
	}
}

func TestListLookupDefaults(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/lookups", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data  []models.LookupDefault `json:"data"`
		Total int                    `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Total == 0 {
		t.Fatal("Expected at least one lookup default")
	}
	if resp.Data[0].FieldLabel != "Account Name" {
		t.Errorf("Unexpected first lookup default: %+v", resp.Data[0])
	}
}

func TestAdminClear(t *testing.T) {
	srv := newTestServer(t)

	doJSON(t, srv, http.MethodPost, "/api/v1/classify", ClassifyRequest{
		Title: "royalmail_prd trep query NoEventsFound for 2 hours",
		Store: true,
	})

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/admin/clear", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	listRec := doJSON(t, srv, http.MethodGet, "/api/v1/cases", nil)
	var page PaginatedResponse
	if err := json.Unmarshal(listRec.Body.Bytes(), &page); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("Expected empty case list after clear, got %d", page.Total)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Expected status ok, got %q", resp.Status)
	}
	if resp.Memory == nil {
		t.Error("Expected memory stats")
	}
}
