package gallery

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const snapshotVersion = 1

// snapshotMeta is the JSON sidecar written next to the gob-encoded record
// collection. It lets a loader reject stale or mismatched snapshots without
// decoding the full record data.
type snapshotMeta struct {
	RecordCount int       `json:"record_count"`
	Dim         int       `json:"dim"`
	BuiltAt     time.Time `json:"built_at"`
	Version     int       `json:"version"`
}

// SnapshotInfo describes a snapshot without decoding its record data.
type SnapshotInfo struct {
	RecordCount int
	Dim         int
	BuiltAt     time.Time
	Version     int
}

// ReadSnapshotInfo reads the metadata sidecar of a snapshot.
func ReadSnapshotInfo(path string) (SnapshotInfo, error) {
	metaData, err := os.ReadFile(path + ".meta")
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("failed to read snapshot metadata: %w", err)
	}
	var meta snapshotMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return SnapshotInfo{}, fmt.Errorf("failed to parse snapshot metadata: %w", err)
	}
	return SnapshotInfo(meta), nil
}

// SaveSnapshot persists the full record collection of idx to path, plus a
// metadata sidecar at path+".meta". Any previous snapshot is overwritten.
func SaveSnapshot(path string, idx *Index) error {
	meta := snapshotMeta{
		RecordCount: idx.Len(),
		Dim:         idx.Dim(),
		BuiltAt:     time.Now().UTC(),
		Version:     snapshotVersion,
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot metadata: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer f.Close()

	encoder := gob.NewEncoder(f)
	if err := encoder.Encode(idx.Records()); err != nil {
		return fmt.Errorf("failed to encode snapshot records: %w", err)
	}

	return nil
}

// LoadSnapshot deserializes a previously written snapshot. Any failure
// (missing files, corrupt data, version or record-count mismatch) returns an
// error; callers treat every error as "no snapshot" and fall back to a full
// rebuild. The metadata carried in the snapshot is the mapping captured at
// build time; callers that want fresh metadata must re-join it themselves.
func LoadSnapshot(path string) (*Index, error) {
	meta, err := ReadSnapshotInfo(path)
	if err != nil {
		return nil, err
	}
	if meta.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is not supported", meta.Version)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()

	var records []Record
	decoder := gob.NewDecoder(f)
	if err := decoder.Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot records: %w", err)
	}

	if len(records) != meta.RecordCount {
		return nil, fmt.Errorf("snapshot has %d records, metadata says %d", len(records), meta.RecordCount)
	}

	idx := NewIndex(records)
	if idx.Dim() != meta.Dim {
		return nil, fmt.Errorf("snapshot dimensionality %d does not match metadata %d", idx.Dim(), meta.Dim)
	}

	return idx, nil
}
