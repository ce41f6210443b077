package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// MockProvider needs no network. Embeddings are unit vectors seeded from
// the input text, and generations are canned replies shaped for each
// grading operation so the answer loop converges in one pass.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 768
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(_ context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, len(req.Inputs))
	for i, input := range req.Inputs {
		vectors[i] = seededUnitVector(input, dim)
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

var mockReplies = map[string]string{
	"grade_relevance":     `{"score": "yes", "confidence": 1.0, "key_matches": ["mock"]}`,
	"grade_hallucination": `{"score": "yes", "explanation": "Mock grader treats every answer as grounded."}`,
	"grade_answer":        `{"score": "yes", "confidence": 1.0, "strengths": ["deterministic"], "weaknesses": []}`,
}

func (m *MockProvider) Generate(_ context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	op := strings.ToLower(req.Operation)
	if text, ok := mockReplies[op]; ok {
		return GenerateResponse{Text: text}, info, nil
	}
	switch op {
	case "rewrite_question":
		// Echo the question back unchanged.
		if _, q, ok := cutLast(req.Prompt, "Question: "); ok {
			return GenerateResponse{Text: strings.TrimSpace(q)}, info, nil
		}
	case "generate", "quick_answer":
		n := strings.Count(req.Prompt, "\n---\n") + 1
		return GenerateResponse{Text: fmt.Sprintf("Mock answer based on %d context chunk(s). Replace the mock provider for real answers.", n)}, info, nil
	}
	return GenerateResponse{Text: "Mock response."}, info, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

func seededUnitVector(input string, dim int) []float32 {
	sum := sha256.Sum256([]byte(input))
	rng := rand.New(rand.NewPCG(binary.LittleEndian.Uint64(sum[:8]), binary.LittleEndian.Uint64(sum[8:16])))
	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		x := rng.NormFloat64()
		vec[i] = float32(x)
		norm += x * x
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
