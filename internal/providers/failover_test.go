package providers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	name  string
	errs  []error
	calls int
}

func (s *scriptedLLM) Generate(_ context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: s.name, Model: s.name + "-model"}
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return GenerateResponse{}, info, s.errs[i]
	}
	return GenerateResponse{Text: s.name + ":" + req.Operation}, info, nil
}

func namedLLM(p *scriptedLLM) NamedLLMProvider {
	return NamedLLMProvider{Ref: ProviderRef{Raw: p.name, Name: p.name}, Provider: p}
}

func TestGenerateFailsOverOnQuota(t *testing.T) {
	first := &scriptedLLM{name: "openai", errs: []error{errors.New("insufficient_quota")}}
	second := &scriptedLLM{name: "groq"}
	var records []CallRecord
	m := NewManagerWith([]NamedLLMProvider{namedLLM(first), namedLLM(second)}, nil, 8, time.Hour).
		WithCallObserver(func(r CallRecord) { records = append(records, r) })

	text, err := m.Complete(context.Background(), GenerateRequest{Operation: "generate"})
	require.NoError(t, err)
	require.Equal(t, "groq:generate", text)
	require.Len(t, records, 2)
	require.Equal(t, "failed", records[0].Status)
	require.Equal(t, ErrorQuota, records[0].ErrorType)
	require.Equal(t, "ok", records[1].Status)

	// The quota-exhausted provider stays cooled down for later calls.
	_, err = m.Complete(context.Background(), GenerateRequest{Operation: "generate"})
	require.NoError(t, err)
	require.Equal(t, 1, first.calls)
	require.Equal(t, 2, second.calls)
}

func TestGenerateStopsOnContextLength(t *testing.T) {
	first := &scriptedLLM{name: "openai", errs: []error{errors.New("context too long")}}
	second := &scriptedLLM{name: "groq"}
	m := NewManagerWith([]NamedLLMProvider{namedLLM(first), namedLLM(second)}, nil, 8, time.Hour)

	_, err := m.Complete(context.Background(), GenerateRequest{Operation: "generate"})
	require.Error(t, err)
	require.Equal(t, ErrorContext, ClassifyError(err))
	require.Zero(t, second.calls)
}

func TestGenerateReportsLastErrorWhenAllFail(t *testing.T) {
	bad := &scriptedLLM{name: "openai", errs: []error{errors.New("bad request"), errors.New("bad request")}}
	m := NewManagerWith([]NamedLLMProvider{namedLLM(bad)}, nil, 8, time.Hour)

	_, err := m.Complete(context.Background(), GenerateRequest{Operation: "generate"})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "bad request"))
	require.Equal(t, 1, bad.calls)
}

func TestMockOrderedLast(t *testing.T) {
	m := NewManagerWith([]NamedLLMProvider{
		namedLLM(&scriptedLLM{name: "mock"}),
		namedLLM(&scriptedLLM{name: "claude"}),
	}, nil, 8, 0)
	require.Equal(t, []int{1, 0}, m.PreferredLLMOrder())
}

func TestMockEmbedIsDeterministic(t *testing.T) {
	m := NewManagerWith(nil, nil, 16, 0)
	a, err := m.EmbedTexts(context.Background(), "embed", []string{"hello", "world"})
	require.NoError(t, err)
	b, err := m.EmbedTexts(context.Background(), "embed", []string{"hello"})
	require.NoError(t, err)
	require.Len(t, a, 2)
	require.Len(t, a[0], 16)
	require.Equal(t, a[0], b[0])
	require.NotEqual(t, a[0], a[1])
}

func TestMockGraderOutputs(t *testing.T) {
	p := NewMockProvider(8)
	for _, op := range []string{"grade_relevance", "grade_hallucination", "grade_answer"} {
		resp, _, err := p.Generate(context.Background(), GenerateRequest{Operation: op})
		require.NoError(t, err)
		require.Contains(t, resp.Text, `"score": "yes"`, op)
	}
	resp, _, err := p.Generate(context.Background(), GenerateRequest{Operation: "rewrite_question", Prompt: "Rewrite it.\n\nQuestion: how do I deploy?"})
	require.NoError(t, err)
	require.Equal(t, "how do I deploy?", resp.Text)
}
