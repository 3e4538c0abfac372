package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glowcase/glowcase/internal/gallery"
)

func testBuilder(t *testing.T, provider *stubProvider, store *gallery.Store, images map[string][]byte) *gallery.Builder {
	t.Helper()

	galleryDir := t.TempDir()
	beforeDir := filepath.Join(galleryDir, gallery.BeforeDirName)
	if err := os.MkdirAll(beforeDir, 0755); err != nil {
		t.Fatalf("failed to create before dir: %v", err)
	}
	for name, data := range images {
		if err := os.WriteFile(filepath.Join(beforeDir, name), data, 0644); err != nil {
			t.Fatalf("failed to write gallery image: %v", err)
		}
	}

	return gallery.NewBuilder(provider, store, galleryDir,
		filepath.Join(galleryDir, "missing.json"),
		filepath.Join(t.TempDir(), "gallery.snapshot"))
}

func TestStatus_NotStarted(t *testing.T) {
	handler := NewStatusHandler(gallery.NewStore(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	assertStatusCode(t, rec, http.StatusOK)

	var resp StatusResponse
	parseJSONResponse(t, rec, &resp)
	if resp.State != "not_started" || resp.Ready || resp.Records != 0 {
		t.Errorf("unexpected status for a fresh store: %+v", resp)
	}
}

func TestStatus_Ready(t *testing.T) {
	store := readyStore(t,
		gallery.Record{ID: "a", Embedding: []float32{1, 0}},
		gallery.Record{ID: "b", Embedding: []float32{0, 1}},
	)
	handler := NewStatusHandler(store, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	var resp StatusResponse
	parseJSONResponse(t, rec, &resp)
	if resp.State != "ready" || !resp.Ready {
		t.Errorf("expected ready state, got %+v", resp)
	}
	if resp.Records != 2 || resp.Dim != 2 {
		t.Errorf("unexpected index size: %+v", resp)
	}
}

func TestRebuild_StartsBackgroundBuild(t *testing.T) {
	store := gallery.NewStore()
	provider := &stubProvider{vector: []float32{1, 0}}
	builder := testBuilder(t, provider, store, map[string][]byte{"case-a.jpg": []byte("img")})
	handler := NewStatusHandler(store, builder)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rebuild", nil)
	rec := httptest.NewRecorder()
	handler.Rebuild(rec, req)

	assertStatusCode(t, rec, http.StatusAccepted)

	deadline := time.Now().Add(5 * time.Second)
	for !store.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("background rebuild did not complete in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if store.Current().Len() != 1 {
		t.Errorf("expected 1 record after rebuild, got %d", store.Current().Len())
	}
}

func TestRebuild_RefusedWhileBuilding(t *testing.T) {
	store := gallery.NewStore()
	if !store.TryBeginBuild() {
		t.Fatal("failed to begin build")
	}
	handler := NewStatusHandler(store, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rebuild", nil)
	rec := httptest.NewRecorder()
	handler.Rebuild(rec, req)

	assertStatusCode(t, rec, http.StatusConflict)
}
