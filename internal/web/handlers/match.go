package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/glowcase/glowcase/internal/config"
	"github.com/glowcase/glowcase/internal/embedding"
	"github.com/glowcase/glowcase/internal/gallery"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MatchResult represents a single gallery entry similar to the uploaded photo.
type MatchResult struct {
	Similarity float64           `json:"similarity"`
	BeforeURL  string            `json:"match_before_url"`
	AfterURL   *string           `json:"match_after_url"`
	Metadata   map[string]string `json:"metadata"`
}

// MatchResponse represents a successful similarity query.
type MatchResponse struct {
	Success          bool          `json:"success"`
	UploadedImageURL string        `json:"uploaded_image_url"`
	Matches          []MatchResult `json:"matches"`
}

// MatchHandler handles similarity queries against the gallery index.
type MatchHandler struct {
	config   *config.Config
	provider embedding.Provider
	store    *gallery.Store
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(cfg *config.Config, provider embedding.Provider, store *gallery.Store) *MatchHandler {
	return &MatchHandler{
		config:   cfg,
		provider: provider,
		store:    store,
	}
}

// readUploadedPhoto extracts and validates the query photo from the multipart form.
// Returns an error message suitable for the client when validation fails.
func readUploadedPhoto(r *http.Request) ([]byte, string, string) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "no file provided"
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." {
		return nil, "", "no file provided"
	}
	if !gallery.AllowedExtension(filename) {
		return nil, "", "unsupported file type"
	}

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		return nil, "", "failed to read uploaded file"
	}
	return data, filename, ""
}

// saveUpload persists the query photo under a fresh name and returns its public URL.
// A failed save is logged but does not abort the query.
func (h *MatchHandler) saveUpload(data []byte, filename string) string {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	dst := filepath.Join(h.config.Uploads.Dir, name)
	if err := os.WriteFile(dst, data, 0644); err != nil {
		logrus.WithError(err).WithField("file", sanitizeForLog(name)).Warn("failed to persist uploaded photo")
		return ""
	}
	return "/uploads/" + name
}

// formatMetadata converts record metadata for the response, replacing known
// procedure slugs with their display names. Returns nil for records without
// metadata so clients see an explicit null.
func (h *MatchHandler) formatMetadata(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	if slug, ok := out["procedure_name"]; ok {
		out["procedure_name"] = h.config.DisplayName(slug)
	}
	return out
}

// Match handles an uploaded face photo and responds with the most similar
// gallery entries. The face detection is strict: a photo without a
// recognizable face is rejected rather than matched against noise.
func (h *MatchHandler) Match(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, ErrTypeInvalidUpload, "failed to parse multipart form")
		return
	}

	data, filename, errMsg := readUploadedPhoto(r)
	if errMsg != "" {
		respondError(w, http.StatusBadRequest, ErrTypeInvalidUpload, errMsg)
		return
	}

	uploadedURL := h.saveUpload(data, filename)

	vector, err := h.provider.Embed(r.Context(), data, true)
	if err != nil {
		if errors.Is(err, embedding.ErrNoFaceDetected) {
			respondError(w, http.StatusUnprocessableEntity, ErrTypeNoFaceDetected,
				"no face detected in the uploaded photo")
			return
		}
		logrus.WithError(err).Error("embedding query photo failed")
		respondError(w, http.StatusInternalServerError, ErrTypeInternal, "embedding service unavailable")
		return
	}

	results, err := gallery.Match(vector, h.store.Current(), h.config.Match.TopK)
	if err != nil {
		switch {
		case errors.Is(err, gallery.ErrIndexNotReady):
			respondError(w, http.StatusServiceUnavailable, ErrTypeIndexNotReady,
				"gallery index is not ready yet, try again later")
		case errors.Is(err, gallery.ErrNoComparableEntries):
			logrus.Error("gallery index contains no comparable entries")
			respondError(w, http.StatusInternalServerError, ErrTypeNoComparableEntries,
				"gallery index contains no comparable entries")
		default:
			logrus.WithError(err).Error("similarity search failed")
			respondError(w, http.StatusInternalServerError, ErrTypeInternal, "similarity search failed")
		}
		return
	}

	matches := make([]MatchResult, 0, len(results))
	for _, scored := range results {
		m := MatchResult{
			Similarity: scored.Similarity,
			BeforeURL:  path.Join("/gallery", filepath.ToSlash(scored.Record.BeforePath)),
			Metadata:   h.formatMetadata(scored.Record.Meta),
		}
		if scored.Record.AfterPath != "" {
			after := path.Join("/gallery", filepath.ToSlash(scored.Record.AfterPath))
			m.AfterURL = &after
		}
		matches = append(matches, m)
	}

	logrus.WithFields(logrus.Fields{
		"file":    sanitizeForLog(filename),
		"matches": len(matches),
	}).Info("similarity query served")

	respondJSON(w, http.StatusOK, MatchResponse{
		Success:          true,
		UploadedImageURL: uploadedURL,
		Matches:          matches,
	})
}
