package providers

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockEmbedIsDeterministicUnitLength(t *testing.T) {
	m := NewMockProvider(16)
	a, _, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"deploy window", "deploy window", "rollback"}})
	require.NoError(t, err)
	require.Len(t, a, 3)
	require.Equal(t, a[0], a[1])
	require.NotEqual(t, a[0], a[2])

	var norm float64
	for _, x := range a[0] {
		norm += float64(x) * float64(x)
	}
	require.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestMockGenerateShapesReplies(t *testing.T) {
	m := NewMockProvider(8)
	ctx := context.Background()

	resp, _, err := m.Generate(ctx, GenerateRequest{Operation: "grade_answer"})
	require.NoError(t, err)
	require.Contains(t, resp.Text, `"weaknesses": []`)

	resp, _, err = m.Generate(ctx, GenerateRequest{Operation: "rewrite_question", Prompt: "Rewrite.\nQuestion: who owns billing?"})
	require.NoError(t, err)
	require.Equal(t, "who owns billing?", resp.Text)

	resp, info, err := m.Generate(ctx, GenerateRequest{Operation: "generate", Prompt: "a\n---\nb"})
	require.NoError(t, err)
	require.Equal(t, "mock", info.Name)
	require.Contains(t, resp.Text, "2 context chunk(s)")
}
