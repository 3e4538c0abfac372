package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glowcase/glowcase/internal/config"
	"github.com/glowcase/glowcase/internal/gallery"
	"github.com/go-chi/chi/v5"
)

// stubProvider returns a fixed embedding or error and records how it was called.
type stubProvider struct {
	vector     []float32
	err        error
	lastStrict bool
	calls      int
}

func (s *stubProvider) Embed(ctx context.Context, imageData []byte, strict bool) ([]float32, error) {
	s.calls++
	s.lastStrict = strict
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

// testConfig creates a minimal config for testing
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Gallery: config.GalleryConfig{Dir: t.TempDir()},
		Uploads: config.UploadsConfig{Dir: t.TempDir()},
		Match:   config.MatchConfig{TopK: 3},
		Procedures: config.ProceduresConfig{
			Names: map[string]string{"rhinoplasty": "Rhinoplasty (nose surgery)"},
		},
	}
}

// readyStore creates a store serving an index built from the given records
func readyStore(t *testing.T, records ...gallery.Record) *gallery.Store {
	t.Helper()
	store := gallery.NewStore()
	if !store.TryBeginBuild() {
		t.Fatal("failed to begin build on a fresh store")
	}
	store.CompleteBuild(gallery.NewIndex(records))
	return store
}

// multipartRequest builds a POST request with a single file field
func multipartRequest(t *testing.T, path, field, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertErrorType checks if the response is a failed envelope with the expected error type
func assertErrorType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	var result struct {
		Success   bool   `json:"success"`
		ErrorType string `json:"error_type"`
	}
	parseJSONResponse(t, recorder, &result)
	if result.Success {
		t.Error("expected success to be false")
	}
	if result.ErrorType != expected {
		t.Errorf("expected error_type '%s', got '%s'", expected, result.ErrorType)
	}
}
