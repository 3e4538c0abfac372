package gallery

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/glowcase/glowcase/internal/metadata"
)

// Subdirectories of the gallery root holding the image pairs. An after image
// shares its filename with the corresponding before image.
const (
	BeforeDirName = "before"
	AfterDirName  = "after"
)

// allowedExtensions are the image types accepted into the gallery,
// compared case-insensitively.
var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
}

// AllowedExtension reports whether the filename carries an accepted image
// extension. The same rule applies to gallery images and query uploads.
func AllowedExtension(filename string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

var (
	// ErrIndexNotReady is returned when a query arrives before any build or
	// snapshot load has completed, or when the index is empty.
	ErrIndexNotReady = errors.New("gallery index is not ready")

	// ErrNoComparableEntries is returned when the index is nonempty but no
	// record could be compared against the query. This points at an index
	// integrity problem, not an empty search result.
	ErrNoComparableEntries = errors.New("no comparable entries in gallery index")

	// ErrBuildInProgress is returned when a build is requested while another
	// one is already running. The running build is left undisturbed.
	ErrBuildInProgress = errors.New("gallery index build already in progress")
)

// Record is one gallery entry: a before image, its optional after image,
// the face embedding of the before image, and scraped case metadata.
type Record struct {
	ID         string          // filename stem of the before image, unique per index
	BeforePath string          // path relative to the gallery root, always set
	AfterPath  string          // relative path, empty when no after image exists
	Embedding  []float32       // immutable once built
	Meta       metadata.Fields // nil when no metadata entry matched the ID
}

// BuildStats summarizes one index build.
type BuildStats struct {
	Processed        int           // records added to the index
	NoFace           int           // images skipped because no face was detected
	Failed           int           // images skipped due to other embedding errors
	DimMismatch      int           // images excluded due to inconsistent embedding size
	MetadataEntries  int           // entries in the metadata mapping
	BeforeDirMissing bool          // before directory did not exist
	Duration         time.Duration // wall time of the build
}
