package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glowcase/glowcase/internal/embedding"
	"github.com/glowcase/glowcase/internal/gallery"
	"github.com/glowcase/glowcase/internal/metadata"
)

func galleryRecords() []gallery.Record {
	return []gallery.Record{
		{
			ID:         "case-a",
			BeforePath: "before/case-a.jpg",
			AfterPath:  "after/case-a.jpg",
			Embedding:  []float32{1, 0},
			Meta:       metadata.Fields{"procedure_name": "rhinoplasty", "page_url": "https://example.com/a"},
		},
		{
			ID:         "case-b",
			BeforePath: "before/case-b.jpg",
			Embedding:  []float32{0, 1},
		},
	}
}

func TestMatch_Success(t *testing.T) {
	cfg := testConfig(t)
	provider := &stubProvider{vector: []float32{1, 0}}
	handler := NewMatchHandler(cfg, provider, readyStore(t, galleryRecords()...))

	req := multipartRequest(t, "/api/v1/match", "file", "selfie.jpg", []byte("fake image data"))
	rec := httptest.NewRecorder()
	handler.Match(rec, req)

	assertStatusCode(t, rec, http.StatusOK)

	var resp MatchResponse
	parseJSONResponse(t, rec, &resp)

	if !resp.Success {
		t.Error("expected success to be true")
	}
	if len(resp.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(resp.Matches))
	}
	if resp.Matches[0].BeforeURL != "/gallery/before/case-a.jpg" {
		t.Errorf("unexpected top match URL '%s'", resp.Matches[0].BeforeURL)
	}
	if resp.Matches[0].AfterURL == nil || *resp.Matches[0].AfterURL != "/gallery/after/case-a.jpg" {
		t.Errorf("expected after URL for the top match, got %v", resp.Matches[0].AfterURL)
	}
	if resp.Matches[1].AfterURL != nil {
		t.Errorf("expected null after URL for record without after image, got %v", resp.Matches[1].AfterURL)
	}
	if resp.Matches[0].Similarity < resp.Matches[1].Similarity {
		t.Error("matches not sorted by similarity")
	}
	if !provider.lastStrict {
		t.Error("query embedding must use strict face detection")
	}
}

func TestMatch_MetadataDisplayNames(t *testing.T) {
	cfg := testConfig(t)
	handler := NewMatchHandler(cfg, &stubProvider{vector: []float32{1, 0}}, readyStore(t, galleryRecords()...))

	req := multipartRequest(t, "/api/v1/match", "file", "selfie.jpg", []byte("fake image data"))
	rec := httptest.NewRecorder()
	handler.Match(rec, req)

	var resp MatchResponse
	parseJSONResponse(t, rec, &resp)

	if got := resp.Matches[0].Metadata["procedure_name"]; got != "Rhinoplasty (nose surgery)" {
		t.Errorf("expected procedure slug to be mapped to display name, got '%s'", got)
	}
	if got := resp.Matches[0].Metadata["page_url"]; got != "https://example.com/a" {
		t.Errorf("expected other metadata fields untouched, got '%s'", got)
	}
	if resp.Matches[1].Metadata != nil {
		t.Errorf("expected null metadata for record without an entry, got %v", resp.Matches[1].Metadata)
	}
}

func TestMatch_SavesUpload(t *testing.T) {
	cfg := testConfig(t)
	handler := NewMatchHandler(cfg, &stubProvider{vector: []float32{1, 0}}, readyStore(t, galleryRecords()...))

	req := multipartRequest(t, "/api/v1/match", "file", "selfie.jpg", []byte("fake image data"))
	rec := httptest.NewRecorder()
	handler.Match(rec, req)

	var resp MatchResponse
	parseJSONResponse(t, rec, &resp)

	if !strings.HasPrefix(resp.UploadedImageURL, "/uploads/") {
		t.Fatalf("expected an /uploads/ URL, got '%s'", resp.UploadedImageURL)
	}
	saved := filepath.Join(cfg.Uploads.Dir, strings.TrimPrefix(resp.UploadedImageURL, "/uploads/"))
	data, err := os.ReadFile(saved)
	if err != nil {
		t.Fatalf("uploaded photo was not persisted: %v", err)
	}
	if string(data) != "fake image data" {
		t.Error("persisted upload differs from the submitted photo")
	}
}

func TestMatch_NoFile(t *testing.T) {
	handler := NewMatchHandler(testConfig(t), &stubProvider{}, readyStore(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/match", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xxx")
	rec := httptest.NewRecorder()
	handler.Match(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
	assertErrorType(t, rec, ErrTypeInvalidUpload)
}

func TestMatch_WrongFieldName(t *testing.T) {
	handler := NewMatchHandler(testConfig(t), &stubProvider{}, readyStore(t))

	req := multipartRequest(t, "/api/v1/match", "photo", "selfie.jpg", []byte("data"))
	rec := httptest.NewRecorder()
	handler.Match(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
	assertErrorType(t, rec, ErrTypeInvalidUpload)
}

func TestMatch_UnsupportedExtension(t *testing.T) {
	provider := &stubProvider{vector: []float32{1, 0}}
	handler := NewMatchHandler(testConfig(t), provider, readyStore(t, galleryRecords()...))

	req := multipartRequest(t, "/api/v1/match", "file", "document.pdf", []byte("data"))
	rec := httptest.NewRecorder()
	handler.Match(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
	assertErrorType(t, rec, ErrTypeInvalidUpload)
	if provider.calls != 0 {
		t.Error("rejected upload must not reach the embedding service")
	}
}

func TestMatch_NoFaceDetected(t *testing.T) {
	provider := &stubProvider{err: embedding.ErrNoFaceDetected}
	handler := NewMatchHandler(testConfig(t), provider, readyStore(t, galleryRecords()...))

	req := multipartRequest(t, "/api/v1/match", "file", "landscape.jpg", []byte("no face here"))
	rec := httptest.NewRecorder()
	handler.Match(rec, req)

	assertStatusCode(t, rec, http.StatusUnprocessableEntity)
	assertErrorType(t, rec, ErrTypeNoFaceDetected)
}

func TestMatch_EmbeddingServiceError(t *testing.T) {
	provider := &stubProvider{err: errors.New("connection refused")}
	handler := NewMatchHandler(testConfig(t), provider, readyStore(t, galleryRecords()...))

	req := multipartRequest(t, "/api/v1/match", "file", "selfie.jpg", []byte("data"))
	rec := httptest.NewRecorder()
	handler.Match(rec, req)

	assertStatusCode(t, rec, http.StatusInternalServerError)
	assertErrorType(t, rec, ErrTypeInternal)
}

func TestMatch_IndexNotReady(t *testing.T) {
	handler := NewMatchHandler(testConfig(t), &stubProvider{vector: []float32{1, 0}}, gallery.NewStore())

	req := multipartRequest(t, "/api/v1/match", "file", "selfie.jpg", []byte("data"))
	rec := httptest.NewRecorder()
	handler.Match(rec, req)

	assertStatusCode(t, rec, http.StatusServiceUnavailable)
	assertErrorType(t, rec, ErrTypeIndexNotReady)
}

func TestMatch_NoComparableEntries(t *testing.T) {
	store := readyStore(t, gallery.Record{ID: "bad", Embedding: []float32{1, 0, 0}})
	handler := NewMatchHandler(testConfig(t), &stubProvider{vector: []float32{1, 0}}, store)

	req := multipartRequest(t, "/api/v1/match", "file", "selfie.jpg", []byte("data"))
	rec := httptest.NewRecorder()
	handler.Match(rec, req)

	assertStatusCode(t, rec, http.StatusInternalServerError)
	assertErrorType(t, rec, ErrTypeNoComparableEntries)
}

func TestMatch_LimitsToTopK(t *testing.T) {
	cfg := testConfig(t)
	cfg.Match.TopK = 1
	handler := NewMatchHandler(cfg, &stubProvider{vector: []float32{1, 0}}, readyStore(t, galleryRecords()...))

	req := multipartRequest(t, "/api/v1/match", "file", "selfie.jpg", []byte("data"))
	rec := httptest.NewRecorder()
	handler.Match(rec, req)

	var resp MatchResponse
	parseJSONResponse(t, rec, &resp)
	if len(resp.Matches) != 1 {
		t.Errorf("expected 1 match, got %d", len(resp.Matches))
	}
}
