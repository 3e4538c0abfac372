package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/glowcase/glowcase/internal/gallery"
	"github.com/go-chi/chi/v5"
)

// ImagesHandler serves gallery and uploaded images from disk.
type ImagesHandler struct {
	galleryDir string
	uploadsDir string
}

// NewImagesHandler creates a new images handler.
func NewImagesHandler(galleryDir, uploadsDir string) *ImagesHandler {
	return &ImagesHandler{
		galleryDir: galleryDir,
		uploadsDir: uploadsDir,
	}
}

// safeFilename rejects path traversal and unexpected file types.
func safeFilename(name string) bool {
	if name == "" || name != filepath.Base(name) {
		return false
	}
	return gallery.AllowedExtension(name)
}

// serveImage serves a single file from dir after validation.
func serveImage(w http.ResponseWriter, r *http.Request, dir, filename string) {
	if !safeFilename(filename) {
		respondError(w, http.StatusBadRequest, ErrTypeInvalidUpload, "invalid file name")
		return
	}

	full := filepath.Join(dir, filename)
	if info, err := os.Stat(full); err != nil || info.IsDir() {
		respondError(w, http.StatusNotFound, ErrTypeInternal, "image not found")
		return
	}

	http.ServeFile(w, r, full)
}

// GalleryImage serves an image from the before or after gallery directory.
func (h *ImagesHandler) GalleryImage(w http.ResponseWriter, r *http.Request) {
	subdir := chi.URLParam(r, "subdir")
	if subdir != gallery.BeforeDirName && subdir != gallery.AfterDirName {
		respondError(w, http.StatusNotFound, ErrTypeInternal, "image not found")
		return
	}
	serveImage(w, r, filepath.Join(h.galleryDir, subdir), chi.URLParam(r, "filename"))
}

// UploadedImage serves a previously uploaded query photo.
func (h *ImagesHandler) UploadedImage(w http.ResponseWriter, r *http.Request) {
	serveImage(w, r, h.uploadsDir, chi.URLParam(r, "filename"))
}
