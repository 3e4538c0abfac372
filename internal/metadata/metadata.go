package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// idField is the key that links a metadata entry to a gallery record.
const idField = "case_id"

// Fields holds the open string-keyed metadata of a single gallery case.
// The field set is determined by the external scrape, so no fixed struct.
type Fields map[string]string

// Mapping is an identifier-keyed collection of metadata entries.
type Mapping struct {
	byID map[string]Fields
}

// NormalizeID normalizes an identifier for lookup (lowercase, no diacritics).
// Filename-derived identifiers and scraped case IDs don't always agree on
// casing or accents, so both sides go through the same normalization.
func NormalizeID(id string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, id)
	return strings.ToLower(strings.TrimSpace(result))
}

// Load reads a JSON array of metadata objects from path and indexes them by
// their case identifier. Entries without a case_id are skipped. Scalar
// values are coerced to strings; nested objects and arrays are dropped.
func Load(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading metadata file: %w", err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing metadata file: %w", err)
	}

	m := &Mapping{byID: make(map[string]Fields, len(raw))}
	for _, entry := range raw {
		fields := coerceFields(entry)
		id, ok := fields[idField]
		if !ok || id == "" {
			continue
		}
		m.byID[NormalizeID(id)] = fields
	}

	return m, nil
}

// Empty returns a mapping with no entries. Used when the metadata source is
// missing or malformed, which is a non-fatal condition.
func Empty() *Mapping {
	return &Mapping{byID: make(map[string]Fields)}
}

// Get returns the metadata for an identifier, or nil if none exists.
func (m *Mapping) Get(id string) Fields {
	if m == nil {
		return nil
	}
	return m.byID[NormalizeID(id)]
}

// Count returns the number of metadata entries.
func (m *Mapping) Count() int {
	if m == nil {
		return 0
	}
	return len(m.byID)
}

// coerceFields converts a decoded JSON object to string-valued fields.
func coerceFields(entry map[string]any) Fields {
	fields := make(Fields, len(entry))
	for key, value := range entry {
		switch v := value.(type) {
		case string:
			fields[key] = v
		case float64:
			fields[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			fields[key] = strconv.FormatBool(v)
		case nil:
			// Skip nulls entirely.
		default:
			// Nested structures are not part of the metadata contract.
		}
	}
	return fields
}
