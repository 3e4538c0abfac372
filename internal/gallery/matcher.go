package gallery

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// ScoredRecord pairs a gallery record with its similarity to a query.
// Similarity is 1 - cosine distance: 1.0 means identical direction, 0.0
// orthogonal. Negative values are possible but not expected for face
// embeddings.
type ScoredRecord struct {
	Record     Record
	Similarity float64
}

// Match scores the query embedding against every record in the index and
// returns the top k by ascending cosine distance. There is no similarity
// threshold: the best k candidates are returned however weak they are, so an
// empty result can only mean no comparison was possible at all.
func Match(query []float32, idx *Index, k int) ([]ScoredRecord, error) {
	if k <= 0 {
		return nil, fmt.Errorf("match count must be positive, got %d", k)
	}
	if idx.Len() == 0 {
		return nil, ErrIndexNotReady
	}

	type scored struct {
		index    int
		distance float64
	}
	distances := make([]scored, 0, idx.Len())

	for i, rec := range idx.Records() {
		// Dimension mismatches should not exist given the index invariant,
		// but a bad record must not take the request down.
		if len(rec.Embedding) != len(query) {
			logrus.WithFields(logrus.Fields{
				"id":  rec.ID,
				"dim": len(rec.Embedding),
			}).Warn("skipping record with incompatible embedding size")
			continue
		}
		if isZeroVector(rec.Embedding) {
			logrus.WithField("id", rec.ID).Warn("skipping record with zero embedding")
			continue
		}
		distances = append(distances, scored{index: i, distance: CosineDistance(query, rec.Embedding)})
	}

	if len(distances) == 0 {
		return nil, ErrNoComparableEntries
	}

	// Stable sort keeps results deterministic when distances tie: ties break
	// by original index order.
	sort.SliceStable(distances, func(a, b int) bool {
		return distances[a].distance < distances[b].distance
	})

	if k > len(distances) {
		k = len(distances)
	}
	results := make([]ScoredRecord, 0, k)
	for _, d := range distances[:k] {
		results = append(results, ScoredRecord{
			Record:     idx.Records()[d.index],
			Similarity: 1 - d.distance,
		})
	}

	return results, nil
}
