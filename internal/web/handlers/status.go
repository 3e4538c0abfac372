package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/glowcase/glowcase/internal/gallery"
	"github.com/sirupsen/logrus"
)

// StatusResponse describes the current state of the gallery index.
type StatusResponse struct {
	State   string `json:"state"`
	Ready   bool   `json:"ready"`
	Records int    `json:"records"`
	Dim     int    `json:"dim"`
}

// StatusHandler exposes index state and triggers rebuilds.
type StatusHandler struct {
	store   *gallery.Store
	builder *gallery.Builder
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(store *gallery.Store, builder *gallery.Builder) *StatusHandler {
	return &StatusHandler{
		store:   store,
		builder: builder,
	}
}

// Status reports the index build state and size.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	idx := h.store.Current()
	respondJSON(w, http.StatusOK, StatusResponse{
		State:   h.store.State().String(),
		Ready:   h.store.Ready(),
		Records: idx.Len(),
		Dim:     idx.Dim(),
	})
}

// Rebuild starts a full index rebuild in the background. A rebuild that is
// already running is reported instead of being started twice; the running
// build and the currently served index are left untouched.
func (h *StatusHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if h.store.State() == gallery.StateBuilding {
		respondJSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"message": "index build already in progress",
		})
		return
	}

	go func() {
		if _, _, err := h.builder.Build(context.Background()); err != nil {
			if errors.Is(err, gallery.ErrBuildInProgress) {
				logrus.Info("rebuild request lost the race to a concurrent build")
				return
			}
			logrus.WithError(err).Error("background index rebuild failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"message": "index rebuild started",
	})
}
