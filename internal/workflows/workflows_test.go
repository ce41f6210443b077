package workflows

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"cragflow/internal/activities"
	"cragflow/internal/crag"
	"cragflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func registerAll(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "FetchClickUpDocsActivity", func(context.Context, activities.FetchDocsInput) (activities.FetchDocsOutput, error) {
		return activities.FetchDocsOutput{}, nil
	})
	registerActivityName(env, "LoadPDFActivity", func(context.Context, activities.LoadPDFInput) (activities.LoadPDFOutput, error) {
		return activities.LoadPDFOutput{}, nil
	})
	registerActivityName(env, "PrepareChunksActivity", func(context.Context, activities.PrepareChunksInput) (activities.PrepareChunksOutput, error) {
		return activities.PrepareChunksOutput{}, nil
	})
	registerActivityName(env, "EmbedChunksActivity", func(context.Context, activities.EmbedChunksInput) (activities.EmbedChunksOutput, error) {
		return activities.EmbedChunksOutput{}, nil
	})
	registerActivityName(env, "AddChunksActivity", func(context.Context, activities.AddChunksInput) error { return nil })
	registerActivityName(env, "EmbedQueryActivity", func(context.Context, activities.EmbedQueryInput) (activities.EmbedQueryOutput, error) {
		return activities.EmbedQueryOutput{}, nil
	})
	registerActivityName(env, "SearchChunksActivity", func(context.Context, activities.SearchChunksInput) (activities.SearchChunksOutput, error) {
		return activities.SearchChunksOutput{}, nil
	})
	registerActivityName(env, "LLMGenerateActivity", func(context.Context, activities.LLMGenerateInput) (activities.LLMGenerateOutput, error) {
		return activities.LLMGenerateOutput{}, nil
	})
	registerActivityName(env, "LogLLMCallActivity", func(context.Context, activities.LogLLMCallInput) error { return nil })
	registerActivityName(env, "RecordAnswerRunActivity", func(context.Context, models.AnswerRun) error { return nil })
	registerActivityName(env, "RecordSourceActivity", func(context.Context, models.Source) error { return nil })
	registerActivityName(env, "WriteAnswerArtifactsActivity", func(context.Context, activities.WriteAnswerArtifactsInput) (activities.WriteAnswerArtifactsOutput, error) {
		return activities.WriteAnswerArtifactsOutput{}, nil
	})
}

func chunk(id string) models.Document {
	return models.Document{Content: "content of " + id, Metadata: models.Metadata{Source: "42/d1/p1", ChunkID: id}}
}

func searchResults(ids ...string) activities.SearchChunksOutput {
	out := activities.SearchChunksOutput{}
	for _, id := range ids {
		out.Results = append(out.Results, models.ScoredDocument{Document: chunk(id), Distance: 0.1})
	}
	return out
}

func gradedReplies(overrides map[string]string) func(context.Context, activities.LLMGenerateInput) (activities.LLMGenerateOutput, error) {
	replies := map[string]string{
		"grade_relevance":     `{"score": "yes"}`,
		"generate":            "Deploys go out through the release train.",
		"grade_hallucination": `{"score": "yes"}`,
		"grade_answer":        `{"score": "yes", "weaknesses": []}`,
	}
	for k, v := range overrides {
		replies[k] = v
	}
	return func(_ context.Context, in activities.LLMGenerateInput) (activities.LLMGenerateOutput, error) {
		return activities.LLMGenerateOutput{Text: replies[in.Operation], ProviderName: "mock", Model: "mock-llm-v1"}, nil
	}
}

func TestIngestWorkflowAddsNewChunks(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(IngestWorkflow)
	registerAll(env)

	url := "https://app.clickup.com/42/v/dc/d1"
	env.OnActivity("FetchClickUpDocsActivity", mock.Anything, activities.FetchDocsInput{URL: url, Normalize: true}).
		Return(activities.FetchDocsOutput{WorkspaceID: "42", DocID: "d1", Documents: []models.Document{chunk("")}}, nil)
	env.OnActivity("PrepareChunksActivity", mock.Anything, mock.Anything).
		Return(activities.PrepareChunksOutput{Total: 3, Existing: 1, Chunks: []models.Document{chunk("a:0:1"), chunk("a:0:2")}}, nil)
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.Anything).
		Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1}, {0.2}}, ProviderName: "mock", Model: "mock"}, nil)
	env.OnActivity("AddChunksActivity", mock.Anything, mock.MatchedBy(func(in activities.AddChunksInput) bool {
		return len(in.Chunks) == 2 && len(in.Vectors) == 2
	})).Return(nil).Once()
	env.OnActivity("LogLLMCallActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("RecordSourceActivity", mock.Anything, mock.MatchedBy(func(s models.Source) bool {
		return s.URL == url && s.DocID == "d1" && s.LastStatus == "ok" && s.LastAdded == 2
	})).Return(nil).Once()

	env.ExecuteWorkflow(IngestWorkflow, IngestInput{URL: url, Normalize: true, EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out IngestResult
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.Equal(t, IngestResult{Documents: 1, Chunks: 3, Existing: 1, Added: 2}, out)
	env.AssertExpectations(t)
}

func TestIngestWorkflowFetchFailureIngestsNothing(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(IngestWorkflow)
	registerAll(env)

	env.OnActivity("FetchClickUpDocsActivity", mock.Anything, mock.Anything).
		Return(activities.FetchDocsOutput{WorkspaceID: "42", DocID: "d1", FetchFailed: true, FetchError: "status 401", Documents: []models.Document{}}, nil)
	env.OnActivity("RecordSourceActivity", mock.Anything, mock.MatchedBy(func(s models.Source) bool {
		return s.LastStatus == "fetch_failed" && s.LastAdded == 0
	})).Return(nil).Once()

	env.ExecuteWorkflow(IngestWorkflow, IngestInput{URL: "https://app.clickup.com/42/v/dc/d1", EmbedProviders: 1})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out IngestResult
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.True(t, out.FetchFailed)
	assert.Zero(t, out.Added)
	env.AssertExpectations(t)
}

func TestIngestWorkflowRequiresSource(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(IngestWorkflow)
	registerAll(env)

	env.ExecuteWorkflow(IngestWorkflow, IngestInput{})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}

func TestAnswerWorkflowConverges(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(AnswerWorkflow)
	registerAll(env)

	env.OnActivity("EmbedQueryActivity", mock.Anything, mock.Anything).Return(activities.EmbedQueryOutput{Vector: []float32{1, 0}, ProviderName: "mock"}, nil)
	env.OnActivity("SearchChunksActivity", mock.Anything, activities.SearchChunksInput{Vector: []float32{1, 0}, TopK: 2}).Return(searchResults("a:0:0", "a:0:1"), nil)
	env.OnActivity("LLMGenerateActivity", mock.Anything, mock.Anything).Return(gradedReplies(nil))
	env.OnActivity("LogLLMCallActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("RecordAnswerRunActivity", mock.Anything, mock.MatchedBy(func(r models.AnswerRun) bool {
		return r.RunID == "run-1" && r.Converged
	})).Return(nil).Once()
	env.OnActivity("WriteAnswerArtifactsActivity", mock.Anything, mock.MatchedBy(func(in activities.WriteAnswerArtifactsInput) bool {
		return len(in.Trace) == 4
	})).Return(activities.WriteAnswerArtifactsOutput{Dir: "/tmp/answers/run-1"}, nil).Once()

	env.ExecuteWorkflow(AnswerWorkflow, AnswerInput{
		RunID:          "run-1",
		Question:       "How do deploys work?",
		TopK:           2,
		Limits:         crag.DefaultLimits(),
		EmbedProviders: 1,
		LLMProviders:   1,
		WriteArtifacts: true,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var run models.AnswerRun
	require.NoError(t, env.GetWorkflowResult(&run))
	assert.True(t, run.Converged)
	assert.True(t, run.Grounded)
	assert.Equal(t, "Deploys go out through the release train.", run.Answer)
	assert.Equal(t, []string{"a:0:0", "a:0:1"}, run.Sources)
	assert.Equal(t, 1, run.Generations)
	assert.Equal(t, ModeLoop, run.Mode)

	val, err := env.QueryWorkflow(QueryGetProgress)
	require.NoError(t, err)
	var progress AnswerProgress
	require.NoError(t, val.Get(&progress))
	assert.True(t, progress.Done)
	assert.Equal(t, "completed", progress.Stage)
	env.AssertExpectations(t)
}

func TestAnswerWorkflowFailsOverOnQuota(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(AnswerWorkflow)
	registerAll(env)

	var firstProviderCalls atomic.Int32
	replies := gradedReplies(nil)
	env.OnActivity("EmbedQueryActivity", mock.Anything, mock.Anything).Return(activities.EmbedQueryOutput{Vector: []float32{1}}, nil)
	env.OnActivity("SearchChunksActivity", mock.Anything, mock.Anything).Return(searchResults("a:0:0"), nil)
	env.OnActivity("LLMGenerateActivity", mock.Anything, mock.Anything).Return(func(ctx context.Context, in activities.LLMGenerateInput) (activities.LLMGenerateOutput, error) {
		if in.ProviderIndex == 0 {
			firstProviderCalls.Add(1)
			return activities.LLMGenerateOutput{}, errors.New("insufficient_quota: billing limit reached")
		}
		return replies(ctx, in)
	})
	env.OnActivity("LogLLMCallActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("RecordAnswerRunActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(AnswerWorkflow, AnswerInput{
		RunID:           "run-2",
		Question:        "How do deploys work?",
		Limits:          crag.DefaultLimits(),
		EmbedProviders:  1,
		LLMProviders:    2,
		CooldownSeconds: 3600,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var run models.AnswerRun
	require.NoError(t, env.GetWorkflowResult(&run))
	assert.True(t, run.Converged)
	assert.Equal(t, int32(1), firstProviderCalls.Load())
}

func TestAnswerWorkflowSchemaErrorIsRecordedAndReturned(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(AnswerWorkflow)
	registerAll(env)

	env.OnActivity("EmbedQueryActivity", mock.Anything, mock.Anything).Return(activities.EmbedQueryOutput{Vector: []float32{1}}, nil)
	env.OnActivity("SearchChunksActivity", mock.Anything, mock.Anything).Return(searchResults("a:0:0"), nil)
	env.OnActivity("LLMGenerateActivity", mock.Anything, mock.Anything).Return(gradedReplies(map[string]string{
		"grade_relevance": `{"verdict": "maybe"}`,
	}))
	env.OnActivity("LogLLMCallActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("RecordAnswerRunActivity", mock.Anything, mock.MatchedBy(func(r models.AnswerRun) bool {
		return !r.Converged && r.Generations == 0 && r.StopReason != ""
	})).Return(nil).Once()

	env.ExecuteWorkflow(AnswerWorkflow, AnswerInput{RunID: "run-3", Question: "q?", Limits: crag.DefaultLimits(), EmbedProviders: 1, LLMProviders: 1})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestAnswerWorkflowQuickModeWidens(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(AnswerWorkflow)
	registerAll(env)

	var quickCalls atomic.Int32
	env.OnActivity("EmbedQueryActivity", mock.Anything, mock.Anything).Return(activities.EmbedQueryOutput{Vector: []float32{1}}, nil)
	env.OnActivity("SearchChunksActivity", mock.Anything, activities.SearchChunksInput{Vector: []float32{1}, TopK: 2}).Return(searchResults("a:0:0", "a:0:1"), nil).Once()
	env.OnActivity("SearchChunksActivity", mock.Anything, activities.SearchChunksInput{Vector: []float32{1}, TopK: 7}).Return(searchResults("a:0:0", "a:0:1", "a:0:2"), nil).Once()
	env.OnActivity("LLMGenerateActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.LLMGenerateInput) (activities.LLMGenerateOutput, error) {
		if quickCalls.Add(1) == 1 {
			return activities.LLMGenerateOutput{Text: "I don't know."}, nil
		}
		return activities.LLMGenerateOutput{Text: "Deploys ship through the release train."}, nil
	})
	env.OnActivity("LogLLMCallActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("RecordAnswerRunActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(AnswerWorkflow, AnswerInput{RunID: "run-4", Question: "How?", Mode: ModeQuick, TopK: 2, EmbedProviders: 1, LLMProviders: 1})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var run models.AnswerRun
	require.NoError(t, env.GetWorkflowResult(&run))
	assert.Equal(t, ModeQuick, run.Mode)
	assert.Equal(t, "Deploys ship through the release train.", run.Answer)
	assert.Equal(t, []string{"a:0:0", "a:0:1", "a:0:2"}, run.Sources)
	assert.Equal(t, int32(2), quickCalls.Load())
	env.AssertExpectations(t)
}
