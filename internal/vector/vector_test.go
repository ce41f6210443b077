package vector

import (
	"testing"

	"cragflow/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestToLiteral(t *testing.T) {
	assert.Equal(t, "[0.5,-1,0.25]", ToLiteral([]float32{0.5, -1, 0.25}))
	assert.Equal(t, "[]", ToLiteral(nil))
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, CosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1, CosineDistance([]float32{1, 0}, []float32{0, 3}), 1e-9)
	assert.InDelta(t, 2, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 1.0, CosineDistance([]float32{0, 0}, []float32{1, 0}))
}

func TestTopKOrdersAscendingByDistance(t *testing.T) {
	doc := func(id string) models.Document {
		return models.Document{Metadata: models.Metadata{ChunkID: id}}
	}
	got := TopK([]float32{1, 0}, []Candidate{
		{Document: doc("far"), Vector: []float32{0, 1}},
		{Document: doc("b-near"), Vector: []float32{1, 0}},
		{Document: doc("a-near"), Vector: []float32{3, 0}},
		{Document: doc("mid"), Vector: []float32{1, 1}},
	}, 3)
	ids := make([]string, 0, len(got))
	for _, g := range got {
		ids = append(ids, g.Metadata.ChunkID)
	}
	assert.Equal(t, []string{"a-near", "b-near", "mid"}, ids)
	assert.LessOrEqual(t, got[0].Distance, got[1].Distance)
}
