package grading

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cragflow/internal/models"
	"cragflow/internal/providers"

	"github.com/stretchr/testify/require"
)

func doc(id, content string) models.Document {
	return models.Document{Content: content, Metadata: models.Metadata{ChunkID: id}}
}

func TestFilterRelevantKeepsOrderAndReportsFailures(t *testing.T) {
	complete := func(_ context.Context, req providers.GenerateRequest) (string, error) {
		require.Equal(t, OpGradeRelevance, req.Operation)
		require.True(t, req.JSON)
		switch {
		case strings.Contains(req.Prompt, "alpha"):
			return `{"score":"yes"}`, nil
		case strings.Contains(req.Prompt, "beta"):
			return `{"score":["no"]}`, nil
		case strings.Contains(req.Prompt, "gamma"):
			return `{"verdict":"yes"}`, nil
		case strings.Contains(req.Prompt, "delta"):
			return "", errors.New("provider timeout")
		default:
			return `{"score":"yes"}`, nil
		}
	}
	g := NewGrader[context.Context](complete)
	docs := []models.Document{doc("1", "alpha"), doc("2", "beta"), doc("3", "gamma"), doc("4", "delta"), doc("5", "epsilon")}

	relevant, err := g.FilterRelevant(context.Background(), "q", docs)
	require.Equal(t, []string{"1", "5"}, models.ChunkIDs(relevant))

	var fe *FilterError
	require.True(t, errors.As(err, &fe))
	require.Len(t, fe.Failed, 2)
	require.Equal(t, "3", fe.Failed[0].ChunkID)
	require.Equal(t, "4", fe.Failed[1].ChunkID)

	var se *SchemaError
	require.True(t, errors.As(err, &se))
}

func TestFilterRelevantEmptyIsValid(t *testing.T) {
	g := NewGrader[context.Context](func(context.Context, providers.GenerateRequest) (string, error) {
		return `{"score":"no"}`, nil
	})
	relevant, err := g.FilterRelevant(context.Background(), "q", []models.Document{doc("1", "a")})
	require.NoError(t, err)
	require.Empty(t, relevant)
}

func TestGenerateIncludesFeedback(t *testing.T) {
	var prompts []string
	g := NewGrader[context.Context](func(_ context.Context, req providers.GenerateRequest) (string, error) {
		prompts = append(prompts, req.Prompt)
		return `{"answer":"done"}`, nil
	})
	out, err := g.Generate(context.Background(), "q", []models.Document{doc("a:0:0", "ctx")}, "")
	require.NoError(t, err)
	require.Equal(t, "done", out)
	require.NotContains(t, prompts[0], "Critique")
	require.Contains(t, prompts[0], "[a:0:0]")

	_, err = g.Generate(context.Background(), "q", nil, "missing dates")
	require.NoError(t, err)
	require.Contains(t, prompts[1], "missing dates")
}

func TestCheckAnswerSurfacesSchemaError(t *testing.T) {
	g := NewGrader[context.Context](func(context.Context, providers.GenerateRequest) (string, error) {
		return `{"useful":true}`, nil
	})
	_, err := g.CheckAnswer(context.Background(), "q", "a")
	var se *SchemaError
	require.True(t, errors.As(err, &se))
}

func TestRewriteFallsBackToOriginal(t *testing.T) {
	g := NewGrader[context.Context](func(context.Context, providers.GenerateRequest) (string, error) {
		return "", nil
	})
	q, err := g.Rewrite(context.Background(), "original")
	require.NoError(t, err)
	require.Equal(t, "original", q)
}
