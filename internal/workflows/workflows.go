package workflows

import (
	"fmt"
	"time"

	"cragflow/internal/activities"
	"cragflow/internal/providers"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	QueryGetProgress = "GetProgress"

	embedBatchSize = 64
)

func AnswerWorkflowID(runID string) string { return "answer-" + runID }
func IngestWorkflowID(id string) string    { return "ingest-" + id }

// providerState tracks cooldowns across the activities of one workflow run.
// Times come from workflow.Now so replays see the same decisions.
type providerState struct {
	disabledUntil map[string]time.Time
	retries       map[string]int
	calls         int
}

func newProviderState() *providerState {
	return &providerState{disabledUntil: map[string]time.Time{}, retries: map[string]int{}}
}

func withActivityDefaults(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 3 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	})
}

// withProviderCalls gives provider activities a single attempt; failover
// between providers is driven by the workflow instead.
func withProviderCalls(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
}

func callEmbedWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.EmbedChunksInput) (activities.EmbedChunksOutput, error) {
	providerCount = defaultCount(providerCount)
	var lastErr error
	for attempt := 0; attempt < providerCount*4; attempt++ {
		idx := attempt % providerCount
		key := fmt.Sprintf("embed-%d", idx)
		if isProviderDisabled(ctx, state, key) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.EmbedChunksOutput
		err := workflow.ExecuteActivity(withProviderCalls(ctx), "EmbedChunksActivity", input).Get(ctx, &out)
		if err == nil {
			logCall(ctx, state, activities.LogLLMCallInput{Operation: input.Operation, RunID: input.RunID, ProviderName: out.ProviderName, Model: out.Model, Status: "ok"}, attempt)
			return out, nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		logCall(ctx, state, activities.LogLLMCallInput{Operation: input.Operation, RunID: input.RunID, ProviderName: fmt.Sprintf("provider-%d", idx), Status: "failed", ErrorType: string(errType)}, attempt)
		if applyFailure(ctx, state, key, errType, cooldown) {
			attempt--
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all embed providers exhausted")
	}
	return activities.EmbedChunksOutput{}, lastErr
}

func callEmbedQueryWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.EmbedQueryInput) (activities.EmbedQueryOutput, error) {
	providerCount = defaultCount(providerCount)
	var lastErr error
	for attempt := 0; attempt < providerCount*4; attempt++ {
		idx := attempt % providerCount
		key := fmt.Sprintf("embed-%d", idx)
		if isProviderDisabled(ctx, state, key) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.EmbedQueryOutput
		err := workflow.ExecuteActivity(withProviderCalls(ctx), "EmbedQueryActivity", input).Get(ctx, &out)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if applyFailure(ctx, state, key, providers.ClassifyError(err), cooldown) {
			attempt--
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all embed query providers exhausted")
	}
	return activities.EmbedQueryOutput{}, lastErr
}

// callLLMWithFailover tries each LLM provider in turn. Context length
// errors are returned at once since no provider will accept the prompt.
func callLLMWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.LLMGenerateInput, promptHash string) (activities.LLMGenerateOutput, error) {
	providerCount = defaultCount(providerCount)
	var lastErr error
	for attempt := 0; attempt < providerCount*4; attempt++ {
		idx := attempt % providerCount
		key := fmt.Sprintf("llm-%d", idx)
		if isProviderDisabled(ctx, state, key) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.LLMGenerateOutput
		err := workflow.ExecuteActivity(withProviderCalls(ctx), "LLMGenerateActivity", input).Get(ctx, &out)
		if err == nil {
			logCall(ctx, state, activities.LogLLMCallInput{Operation: input.Operation, RunID: input.RunID, ProviderName: out.ProviderName, Model: out.Model, Status: "ok", PromptHash: promptHash}, attempt)
			return out, nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		logCall(ctx, state, activities.LogLLMCallInput{Operation: input.Operation, RunID: input.RunID, ProviderName: fmt.Sprintf("provider-%d", idx), Status: "failed", ErrorType: string(errType), PromptHash: promptHash}, attempt)
		if errType == providers.ErrorContext {
			return activities.LLMGenerateOutput{}, err
		}
		if applyFailure(ctx, state, key, errType, cooldown) {
			attempt--
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all llm providers exhausted")
	}
	return activities.LLMGenerateOutput{}, lastErr
}

// applyFailure records one failed attempt against key and reports whether
// the same provider should be tried again.
func applyFailure(ctx workflow.Context, state *providerState, key string, errType providers.ErrorType, cooldown time.Duration) bool {
	state.retries[key]++
	n := state.retries[key]
	switch errType {
	case providers.ErrorQuota:
		disableProviderUntil(ctx, state, key, cooldown)
	case providers.ErrorRate:
		if n <= 2 {
			_ = workflow.Sleep(ctx, time.Duration(n*2)*time.Second)
			return true
		}
		disableProviderUntil(ctx, state, key, 2*time.Minute)
	case providers.ErrorTransient:
		if n <= 2 {
			_ = workflow.Sleep(ctx, time.Duration(n)*time.Second)
			return true
		}
	default:
		disableProviderUntil(ctx, state, key, time.Minute)
	}
	return false
}

func logCall(ctx workflow.Context, state *providerState, in activities.LogLLMCallInput, attempt int) {
	state.calls++
	in.RequestID = fmt.Sprintf("%s-%d-%d", in.Operation, state.calls, attempt)
	if err := workflow.ExecuteActivity(withActivityDefaults(ctx), "LogLLMCallActivity", in).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("llm call audit failed", "operation", in.Operation, "error", err)
	}
}

func isProviderDisabled(ctx workflow.Context, state *providerState, key string) bool {
	until, ok := state.disabledUntil[key]
	if !ok {
		return false
	}
	return workflow.Now(ctx).Before(until)
}

func disableProviderUntil(ctx workflow.Context, state *providerState, key string, d time.Duration) {
	state.disabledUntil[key] = workflow.Now(ctx).Add(d)
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func defaultCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
