package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "test.db"))
	t.Setenv("DB_DSN", "")
	initDB()
	r := gin.New()
	setupRoutes(r)
	return r
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON body %q: %v", resp.Body.String(), err)
	}
	return out
}

func loginAdmin(t *testing.T, r *gin.Engine) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "admin123"})
	resp := performRequest(r, http.MethodPost, "/api/auth/login", bytes.NewBuffer(body), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	out := decodeBody(t, resp)
	token, _ := out["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", out)
	}
	return token
}

func submitCSV(t *testing.T, r *gin.Engine, name, csv string) int {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"file_name":    name,
		"file_content": csv,
		"file_type":    "csv",
		"uploaded_by":  "contributor@example.com",
	})
	resp := performRequest(r, http.MethodPost, "/api/upload", bytes.NewBuffer(body), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("upload failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	out := decodeBody(t, resp)
	id, ok := out["upload_id"].(float64)
	if !ok || id == 0 {
		t.Fatalf("missing upload_id in response: %+v", out)
	}
	return int(id)
}

func TestHealthAndAuth(t *testing.T) {
	r := setupTestServer(t)

	resp := performRequest(r, http.MethodGet, "/api/health", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("health check failed status=%d", resp.Code)
	}

	// bad credentials
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp = performRequest(r, http.MethodPost, "/api/auth/login", bytes.NewBuffer(body), "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad credentials got %d", resp.Code)
	}
	out := decodeBody(t, resp)
	if out["success"] != false || out["message"] != "Invalid credentials" {
		t.Fatalf("unexpected denial payload: %+v", out)
	}

	// missing fields
	body, _ = json.Marshal(map[string]string{"username": "admin"})
	resp = performRequest(r, http.MethodPost, "/api/auth/login", bytes.NewBuffer(body), "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password got %d", resp.Code)
	}

	token := loginAdmin(t, r)

	resp = performRequest(r, http.MethodGet, "/api/auth/check", nil, token)
	out = decodeBody(t, resp)
	if out["authenticated"] != true || out["username"] != "admin" {
		t.Fatalf("auth check with token: %+v", out)
	}

	resp = performRequest(r, http.MethodGet, "/api/auth/check", nil, "")
	out = decodeBody(t, resp)
	if out["authenticated"] != false {
		t.Fatalf("auth check without token: %+v", out)
	}

	resp = performRequest(r, http.MethodPost, "/api/auth/logout", nil, token)
	if resp.Code != http.StatusOK {
		t.Fatalf("logout failed status=%d", resp.Code)
	}
	out = decodeBody(t, resp)
	if out["message"] != "Logged out successfully" {
		t.Fatalf("unexpected logout payload: %+v", out)
	}
}

func TestUploadReviewFlow(t *testing.T) {
	r := setupTestServer(t)
	token := loginAdmin(t, r)

	csv := "Dataset Name,Description,Disease Type,Sample Size\n" +
		"ADNI-4,Longitudinal imaging cohort,Alzheimer's Disease,1200\n" +
		"NACC-UDS,Clinical visit records,Mixed Dementia,45000\n"
	id := submitCSV(t, r, "cohorts.csv", csv)

	// appears in the pending listing
	resp := performRequest(r, http.MethodGet, "/api/management/pending", nil, token)
	if resp.Code != http.StatusOK {
		t.Fatalf("pending list failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	out := decodeBody(t, resp)
	if out["status_filter"] != "pending" {
		t.Fatalf("unexpected status filter: %+v", out["status_filter"])
	}
	uploads, _ := out["uploads"].([]any)
	if len(uploads) != 1 {
		t.Fatalf("expected 1 pending upload, got %d", len(uploads))
	}
	summary, _ := uploads[0].(map[string]any)
	if _, present := summary["file_content"]; present {
		t.Fatal("listing must not include file content")
	}

	// detail includes parsed rows
	resp = performRequest(r, http.MethodGet, fmt.Sprintf("/api/management/pending/%d", id), nil, token)
	if resp.Code != http.StatusOK {
		t.Fatalf("detail failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	out = decodeBody(t, resp)
	rows, _ := out["file_content"].([]any)
	if len(rows) != 2 {
		t.Fatalf("expected 2 parsed rows, got %d", len(rows))
	}

	// approve ingests both rows
	notes, _ := json.Marshal(map[string]string{"review_notes": "looks good"})
	resp = performRequest(r, http.MethodPost, fmt.Sprintf("/api/management/pending/%d/approve", id), bytes.NewBuffer(notes), token)
	if resp.Code != http.StatusOK {
		t.Fatalf("approve failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	out = decodeBody(t, resp)
	if out["added_count"] != float64(2) || out["error_count"] != float64(0) {
		t.Fatalf("unexpected approve result: %+v", out)
	}
	if out["message"] != "Successfully added 2 dataset(s) to the database." {
		t.Fatalf("unexpected approve message: %q", out["message"])
	}

	// the datasets are now in the catalog
	resp = performRequest(r, http.MethodGet, "/api/datasets", nil, "")
	out = decodeBody(t, resp)
	if out["total"] != float64(2) {
		t.Fatalf("expected 2 datasets, got %+v", out["total"])
	}

	// gone from pending, visible under approved
	resp = performRequest(r, http.MethodGet, "/api/management/pending", nil, token)
	out = decodeBody(t, resp)
	if out["total"] != float64(0) {
		t.Fatalf("expected empty pending queue, got %+v", out["total"])
	}
	resp = performRequest(r, http.MethodGet, "/api/management/pending?status=approved", nil, token)
	out = decodeBody(t, resp)
	if out["total"] != float64(1) {
		t.Fatalf("expected 1 approved upload, got %+v", out["total"])
	}
	uploads, _ = out["uploads"].([]any)
	summary, _ = uploads[0].(map[string]any)
	if summary["reviewed_by"] != "admin" || summary["review_notes"] != "looks good" {
		t.Fatalf("review attribution missing: %+v", summary)
	}
	if summary["reviewed_at"] == nil {
		t.Fatal("reviewed_at not recorded")
	}

	// a decided upload cannot be decided again
	resp = performRequest(r, http.MethodPost, fmt.Sprintf("/api/management/pending/%d/approve", id), nil, token)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 re-approving, got %d", resp.Code)
	}
	resp = performRequest(r, http.MethodPost, fmt.Sprintf("/api/management/pending/%d/reject", id), nil, token)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 rejecting approved upload, got %d", resp.Code)
	}

	// the all filter spans every status
	submitCSV(t, r, "second.csv", "Dataset Name\nAIBL\n")
	resp = performRequest(r, http.MethodGet, "/api/management/pending?status=all", nil, token)
	out = decodeBody(t, resp)
	if out["status_filter"] != "all" || out["total"] != float64(2) {
		t.Fatalf("expected 2 uploads across all statuses, got %+v", out)
	}

	// an unknown filter is rejected
	resp = performRequest(r, http.MethodGet, "/api/management/pending?status=archived", nil, token)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status filter, got %d", resp.Code)
	}
}

func TestNonNumericIDSegments(t *testing.T) {
	r := setupTestServer(t)
	token := loginAdmin(t, r)

	id := submitCSV(t, r, "one.csv", "Dataset Name\nADNI\n")
	resp := performRequest(r, http.MethodPost, fmt.Sprintf("/api/management/pending/%d/approve", id), nil, token)
	if resp.Code != http.StatusOK {
		t.Fatalf("approve failed: %s", resp.Body.String())
	}

	// a path segment that is not an id must never match a record
	for _, path := range []string{
		"/api/datasets/1=1",
		"/api/datasets/1=1/publications",
		"/api/management/pending/1=1",
	} {
		resp = performRequest(r, http.MethodGet, path, nil, token)
		if resp.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for %s, got %d", path, resp.Code)
		}
	}
	resp = performRequest(r, http.MethodPost, "/api/management/pending/1=1/approve", nil, token)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 approving a non-id segment, got %d", resp.Code)
	}
}

func TestRejectFlow(t *testing.T) {
	r := setupTestServer(t)
	token := loginAdmin(t, r)

	id := submitCSV(t, r, "junk.csv", "Dataset Name\nSomething\n")

	notes, _ := json.Marshal(map[string]string{"review_notes": "duplicate submission"})
	resp := performRequest(r, http.MethodPost, fmt.Sprintf("/api/management/pending/%d/reject", id), bytes.NewBuffer(notes), token)
	if resp.Code != http.StatusOK {
		t.Fatalf("reject failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	out := decodeBody(t, resp)
	if out["message"] != "Upload rejected" {
		t.Fatalf("unexpected reject payload: %+v", out)
	}

	// nothing reached the catalog
	resp = performRequest(r, http.MethodGet, "/api/datasets", nil, "")
	out = decodeBody(t, resp)
	if out["total"] != float64(0) {
		t.Fatalf("rejected rows must not be ingested, got %+v", out["total"])
	}

	resp = performRequest(r, http.MethodGet, "/api/management/pending?status=rejected", nil, token)
	out = decodeBody(t, resp)
	if out["total"] != float64(1) {
		t.Fatalf("expected 1 rejected upload, got %+v", out["total"])
	}
}

func TestApproveWithRowErrors(t *testing.T) {
	r := setupTestServer(t)
	token := loginAdmin(t, r)

	// second row has no dataset name
	csv := "Dataset Name,Disease Type\nUK Biobank,Mixed\n,Parkinson's\n"
	id := submitCSV(t, r, "partial.csv", csv)

	resp := performRequest(r, http.MethodPost, fmt.Sprintf("/api/management/pending/%d/approve", id), nil, token)
	if resp.Code != http.StatusOK {
		t.Fatalf("approve failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	out := decodeBody(t, resp)
	if out["added_count"] != float64(1) || out["error_count"] != float64(1) {
		t.Fatalf("unexpected partial result: %+v", out)
	}
	if out["message"] != "Successfully added 1 dataset(s) to the database. 1 row(s) had errors." {
		t.Fatalf("unexpected message: %q", out["message"])
	}
	errs, _ := out["errors"].([]any)
	if len(errs) != 1 {
		t.Fatalf("expected 1 reported error, got %+v", errs)
	}

	// the upload is still marked approved despite the failing row
	resp = performRequest(r, http.MethodGet, "/api/management/pending?status=approved", nil, token)
	out = decodeBody(t, resp)
	if out["total"] != float64(1) {
		t.Fatalf("partial approve must still flip status, got %+v", out["total"])
	}
}

func TestApproveEmptyFile(t *testing.T) {
	r := setupTestServer(t)
	token := loginAdmin(t, r)

	// header only, no data rows
	id := submitCSV(t, r, "empty.csv", "Dataset Name,Disease Type\n")

	resp := performRequest(r, http.MethodPost, fmt.Sprintf("/api/management/pending/%d/approve", id), nil, token)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty file, got %d body=%s", resp.Code, resp.Body.String())
	}
	out := decodeBody(t, resp)
	if out["error"] != "No data found in file" {
		t.Fatalf("unexpected error payload: %+v", out)
	}

	// the record stays pending so the reviewer can still reject it
	resp = performRequest(r, http.MethodGet, "/api/management/pending", nil, token)
	out = decodeBody(t, resp)
	if out["total"] != float64(1) {
		t.Fatalf("empty approve must leave the record pending, got %+v", out["total"])
	}
}

func TestSubmitUploadValidation(t *testing.T) {
	r := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"file_name": "x.csv"})
	resp := performRequest(r, http.MethodPost, "/api/upload", bytes.NewBuffer(body), "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without content, got %d", resp.Code)
	}
	out := decodeBody(t, resp)
	if out["error"] != "File name and content required" {
		t.Fatalf("unexpected validation payload: %+v", out)
	}

	body, _ = json.Marshal(map[string]string{
		"file_name":    "doc.pdf",
		"file_content": "whatever",
		"file_type":    "pdf",
	})
	resp = performRequest(r, http.MethodPost, "/api/upload", bytes.NewBuffer(body), "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported type, got %d", resp.Code)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	r := setupTestServer(t)
	token := loginAdmin(t, r)

	csv := "Dataset Name,Description,Disease Type,Sample Size,Data Accessibility\n" +
		"ADNI-4,Imaging cohort,Alzheimer's Disease,1200,Open\n" +
		"PPMI,Progression markers,Parkinson's Disease,800,Restricted\n" +
		"ROSMAP,Aging study,Alzheimer's Disease,3000,Open\n"
	id := submitCSV(t, r, "catalog.csv", csv)
	resp := performRequest(r, http.MethodPost, fmt.Sprintf("/api/management/pending/%d/approve", id), nil, token)
	if resp.Code != http.StatusOK {
		t.Fatalf("approve failed: %s", resp.Body.String())
	}

	// list with filter
	resp = performRequest(r, http.MethodGet, "/api/datasets?disease_type=Alzheimer", nil, "")
	out := decodeBody(t, resp)
	if out["total"] != float64(2) {
		t.Fatalf("expected 2 Alzheimer datasets, got %+v", out["total"])
	}

	// pagination
	resp = performRequest(r, http.MethodGet, "/api/datasets?per_page=2&page=2", nil, "")
	out = decodeBody(t, resp)
	if out["pages"] != float64(2) || out["current_page"] != float64(2) {
		t.Fatalf("unexpected pagination: pages=%v current=%v", out["pages"], out["current_page"])
	}
	datasets, _ := out["datasets"].([]any)
	if len(datasets) != 1 {
		t.Fatalf("expected 1 dataset on page 2, got %d", len(datasets))
	}

	// advanced search by sample size
	resp = performRequest(r, http.MethodGet, "/api/datasets/search?min_sample_size=1000", nil, "")
	out = decodeBody(t, resp)
	if out["total"] != float64(2) {
		t.Fatalf("expected 2 datasets with n>=1000, got %+v", out["total"])
	}

	// stats
	resp = performRequest(r, http.MethodGet, "/api/stats", nil, "")
	out = decodeBody(t, resp)
	if out["total_datasets"] != float64(3) {
		t.Fatalf("unexpected stats: %+v", out)
	}
	dist, _ := out["disease_distribution"].([]any)
	if len(dist) != 2 {
		t.Fatalf("expected 2 disease groups, got %+v", dist)
	}

	// filters
	resp = performRequest(r, http.MethodGet, "/api/filters", nil, "")
	out = decodeBody(t, resp)
	types, _ := out["disease_types"].([]any)
	if len(types) != 2 {
		t.Fatalf("expected 2 disease types, got %+v", types)
	}
	mods, _ := out["modalities"].([]any)
	if len(mods) == 0 {
		t.Fatal("modalities list must not be empty")
	}

	// analytics
	resp = performRequest(r, http.MethodGet, "/api/analytics/overview", nil, "")
	out = decodeBody(t, resp)
	overview, _ := out["overview"].(map[string]any)
	if overview["max_sample_size"] != float64(3000) {
		t.Fatalf("unexpected analytics overview: %+v", overview)
	}

	// CSV export
	resp = performRequest(r, http.MethodGet, "/api/datasets/export", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("export failed status=%d", resp.Code)
	}
	if got := resp.Header().Get("Content-Disposition"); got != `attachment; filename="adrd_datasets.csv"` {
		t.Fatalf("unexpected disposition: %q", got)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("ADNI-4")) {
		t.Fatal("export missing dataset row")
	}

	// recent honors the limit
	resp = performRequest(r, http.MethodGet, "/api/datasets/recent?limit=2", nil, "")
	out = decodeBody(t, resp)
	datasets, _ = out["datasets"].([]any)
	if len(datasets) != 2 {
		t.Fatalf("expected 2 recent datasets, got %d", len(datasets))
	}

	// unknown dataset
	resp = performRequest(r, http.MethodGet, "/api/datasets/99999", nil, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown dataset, got %d", resp.Code)
	}
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "migrate.db"))
	t.Setenv("DB_DSN", "")
	initDB()
	if _, err := os.Stat(os.Getenv("DB_PATH")); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
}
