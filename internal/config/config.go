package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed procedures.yaml
var proceduresYAML []byte

type Config struct {
	Gallery    GalleryConfig
	Embedding  EmbeddingConfig
	Uploads    UploadsConfig
	Match      MatchConfig
	Log        LogConfig
	Procedures ProceduresConfig
}

type GalleryConfig struct {
	Dir          string // root of the gallery image tree, contains before/ and after/
	MetadataPath string // JSON file produced by the scraper, keyed by case_id
	SnapshotPath string // serialized index written after each successful build
}

type EmbeddingConfig struct {
	URL          string // base URL of the face embedding server
	Dim          int    // expected embedding dimensionality (defaults to 512)
	MaxImageSize int    // max image edge in pixels before downscaling (defaults to 1920)
}

type UploadsConfig struct {
	Dir string // directory where query uploads are stored
}

type MatchConfig struct {
	TopK int // number of matches returned per query (defaults to 3)
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

type ProceduresConfig struct {
	Names map[string]string `yaml:"procedures"`
}

// DisplayName returns the human-readable name for a procedure slug.
// Falls back to the slug itself for procedures not in the embedded table.
func (c *Config) DisplayName(slug string) string {
	if name, ok := c.Procedures.Names[slug]; ok {
		return name
	}
	return slug
}

// envStr reads an environment variable with a default.
func envStr(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func Load() *Config {
	var procedures ProceduresConfig
	if err := yaml.Unmarshal(proceduresYAML, &procedures); err != nil {
		// Embedded file, so this can only fail on a bad edit caught in tests.
		panic("failed to unmarshal embedded procedures.yaml: " + err.Error())
	}

	return &Config{
		Gallery: GalleryConfig{
			Dir:          envStr("GALLERY_DIR", "database/images"),
			MetadataPath: envStr("GALLERY_METADATA", "database/scraped_data.json"),
			SnapshotPath: envStr("GALLERY_SNAPSHOT", "database/gallery.snapshot"),
		},
		Embedding: EmbeddingConfig{
			URL:          envStr("EMBEDDING_URL", "http://localhost:8000"),
			Dim:          envInt("EMBEDDING_DIM", 512),
			MaxImageSize: envInt("EMBEDDING_MAX_IMAGE_SIZE", 1920),
		},
		Uploads: UploadsConfig{
			Dir: envStr("UPLOADS_DIR", "uploads"),
		},
		Match: MatchConfig{
			TopK: envInt("MATCH_TOP_K", 3),
		},
		Log: LogConfig{
			Level:  envStr("LOG_LEVEL", "info"),
			Format: envStr("LOG_FORMAT", "text"),
		},
		Procedures: procedures,
	}
}
