package gallery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/glowcase/glowcase/internal/embedding"
	"github.com/glowcase/glowcase/internal/metadata"
)

// Builder scans the gallery image tree, embeds every before image, joins the
// scraped metadata and assembles a new Index published through the Store.
type Builder struct {
	provider     embedding.Provider
	store        *Store
	galleryDir   string
	metadataPath string
	snapshotPath string

	// OnProgress, when set, is called after each before image is handled.
	// Used by the CLI to drive a progress bar.
	OnProgress func(done, total int)

	// ExpectedDim, when positive, fixes the embedding dimensionality and
	// excludes records of any other size. Zero means infer the size from
	// the first record.
	ExpectedDim int
}

// NewBuilder creates a builder publishing into store.
func NewBuilder(provider embedding.Provider, store *Store, galleryDir, metadataPath, snapshotPath string) *Builder {
	return &Builder{
		provider:     provider,
		store:        store,
		galleryDir:   galleryDir,
		metadataPath: metadataPath,
		snapshotPath: snapshotPath,
	}
}

// Build constructs a fresh index from the gallery directory and metadata
// file. Failures local to a single image are counted and skipped, never
// escalated. Returns ErrBuildInProgress without touching anything when
// another build is already running.
func (b *Builder) Build(ctx context.Context) (*Index, BuildStats, error) {
	if !b.store.TryBeginBuild() {
		return nil, BuildStats{}, ErrBuildInProgress
	}

	start := time.Now()
	stats := BuildStats{}

	mapping := b.loadMetadata()
	stats.MetadataEntries = mapping.Count()

	beforeDir := filepath.Join(b.galleryDir, BeforeDirName)
	files, err := listImageFiles(beforeDir)
	if err != nil {
		// Missing before directory is reported but not fatal: the service
		// starts with an empty index and queries get a not-ready response.
		logrus.WithError(err).WithField("dir", beforeDir).Error("before directory unavailable, serving empty index")
		stats.BeforeDirMissing = true
		stats.Duration = time.Since(start)
		b.store.CompleteBuild(NewIndex(nil))
		return b.store.Current(), stats, nil
	}

	records := make([]Record, 0, len(files))
	dim := b.ExpectedDim
	for i, name := range files {
		if err := ctx.Err(); err != nil {
			b.store.FailBuild()
			return nil, stats, fmt.Errorf("build canceled: %w", err)
		}

		rec, ok := b.buildRecord(ctx, beforeDir, name, mapping, &stats)
		if ok {
			if dim == 0 {
				dim = len(rec.Embedding)
			}
			if len(rec.Embedding) != dim {
				logrus.WithFields(logrus.Fields{
					"file": name,
					"dim":  len(rec.Embedding),
					"want": dim,
				}).Warn("embedding dimensionality mismatch, excluding record")
				stats.DimMismatch++
			} else {
				records = append(records, rec)
				stats.Processed++
			}
		}

		if b.OnProgress != nil {
			b.OnProgress(i+1, len(files))
		}
	}

	idx := NewIndex(records)
	b.store.CompleteBuild(idx)
	stats.Duration = time.Since(start)

	logrus.WithFields(logrus.Fields{
		"records":  stats.Processed,
		"no_face":  stats.NoFace,
		"failed":   stats.Failed,
		"duration": stats.Duration.Round(time.Millisecond),
	}).Info("gallery index build complete")

	if b.snapshotPath != "" {
		if err := SaveSnapshot(b.snapshotPath, idx); err != nil {
			// The in-memory index is valid and serving; losing the snapshot
			// only costs a rebuild on the next restart.
			logrus.WithError(err).Warn("failed to write gallery snapshot")
		}
	}

	return idx, stats, nil
}

// Restore tries to publish the index from a previously written snapshot.
// The metadata mapping is reloaded and re-joined because it is sourced
// independently of the snapshot and may have changed since the snapshot was
// written. Returns false when no usable snapshot exists, in which case the
// caller should fall back to Build.
func (b *Builder) Restore() (bool, error) {
	if b.snapshotPath == "" {
		return false, nil
	}

	idx, err := LoadSnapshot(b.snapshotPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		logrus.WithError(err).Warn("gallery snapshot unusable, falling back to full rebuild")
		return false, nil
	}

	if !b.store.TryBeginBuild() {
		return false, ErrBuildInProgress
	}

	mapping := b.loadMetadata()
	records := idx.Records()
	for i := range records {
		records[i].Meta = mapping.Get(records[i].ID)
	}

	b.store.CompleteBuild(idx)
	logrus.WithFields(logrus.Fields{
		"records":  idx.Len(),
		"metadata": mapping.Count(),
	}).Info("gallery index restored from snapshot")
	return true, nil
}

// buildRecord embeds a single before image and assembles its record.
// Returns ok=false when the image must be skipped.
func (b *Builder) buildRecord(ctx context.Context, beforeDir, name string, mapping *metadata.Mapping, stats *BuildStats) (Record, bool) {
	data, err := os.ReadFile(filepath.Join(beforeDir, name))
	if err != nil {
		logrus.WithError(err).WithField("file", name).Warn("failed to read gallery image")
		stats.Failed++
		return Record{}, false
	}

	vec, err := b.provider.Embed(ctx, data, false)
	if err != nil {
		if errors.Is(err, embedding.ErrNoFaceDetected) {
			logrus.WithField("file", name).Debug("no face detected, skipping")
			stats.NoFace++
		} else {
			logrus.WithError(err).WithField("file", name).Warn("embedding failed, skipping")
			stats.Failed++
		}
		return Record{}, false
	}

	id := strings.TrimSuffix(name, filepath.Ext(name))
	rec := Record{
		ID:         id,
		BeforePath: filepath.Join(BeforeDirName, name),
		Embedding:  vec,
		Meta:       mapping.Get(id),
	}

	// The after image shares the exact filename with the before image.
	// Its absence is a valid state, not an error.
	afterPath := filepath.Join(b.galleryDir, AfterDirName, name)
	if _, err := os.Stat(afterPath); err == nil {
		rec.AfterPath = filepath.Join(AfterDirName, name)
	}

	return rec, true
}

// loadMetadata loads the metadata mapping, degrading to an empty mapping on
// any failure.
func (b *Builder) loadMetadata() *metadata.Mapping {
	mapping, err := metadata.Load(b.metadataPath)
	if err != nil {
		logrus.WithError(err).Warn("could not load gallery metadata, proceeding without it")
		return metadata.Empty()
	}
	return mapping
}

// listImageFiles returns the allowed-extension filenames in dir, in
// filesystem enumeration order.
func listImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := allowedExtensions[ext]; ok {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}
