package vector

import (
	"math"
	"sort"

	"cragflow/internal/models"
)

// CosineDistance is 1 - cosine similarity, matching pgvector's <=> operator.
// A zero vector is at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, x := range a {
		na += float64(x) * float64(x)
	}
	for _, x := range b {
		nb += float64(x) * float64(x)
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// Candidate is a stored chunk with its embedding, for brute-force ranking.
type Candidate struct {
	Document models.Document
	Vector   []float32
}

// TopK ranks candidates by ascending cosine distance to query. Ties keep
// chunk id order so results are stable across runs.
func TopK(query []float32, candidates []Candidate, k int) []models.ScoredDocument {
	scored := make([]models.ScoredDocument, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, models.ScoredDocument{Document: c.Document, Distance: CosineDistance(query, c.Vector)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Distance == scored[j].Distance {
			return scored[i].Metadata.ChunkID < scored[j].Metadata.ChunkID
		}
		return scored[i].Distance < scored[j].Distance
	})
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
