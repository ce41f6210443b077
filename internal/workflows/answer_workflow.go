package workflows

import (
	"strings"
	"time"

	"cragflow/internal/activities"
	"cragflow/internal/crag"
	"cragflow/internal/grading"
	"cragflow/internal/models"
	"cragflow/internal/providers"
	"cragflow/internal/util"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	ModeLoop  = "loop"
	ModeQuick = "quick"
)

// answerRuntime carries the per-run collaborators the answer loop calls
// through activities.
type answerRuntime struct {
	input    AnswerInput
	state    *providerState
	cooldown time.Duration
}

func (r *answerRuntime) Retrieve(ctx workflow.Context, question string) ([]models.Document, error) {
	return r.retrieve(ctx, question, r.input.TopK)
}

func (r *answerRuntime) retrieve(ctx workflow.Context, question string, k int) ([]models.Document, error) {
	q, err := callEmbedQueryWithFailover(ctx, r.state, r.input.EmbedProviders, r.cooldown, activities.EmbedQueryInput{
		RunID: r.input.RunID,
		Query: question,
	})
	if err != nil {
		return nil, err
	}
	var out activities.SearchChunksOutput
	if err := workflow.ExecuteActivity(withActivityDefaults(ctx), "SearchChunksActivity", activities.SearchChunksInput{
		Vector: q.Vector,
		TopK:   k,
	}).Get(ctx, &out); err != nil {
		return nil, err
	}
	docs := make([]models.Document, 0, len(out.Results))
	for _, s := range out.Results {
		docs = append(docs, s.Document)
	}
	return docs, nil
}

func (r *answerRuntime) complete(ctx workflow.Context, req providers.GenerateRequest) (string, error) {
	out, err := callLLMWithFailover(ctx, r.state, r.input.LLMProviders, r.cooldown, activities.LLMGenerateInput{
		Operation: req.Operation,
		RunID:     r.input.RunID,
		System:    req.System,
		Prompt:    req.Prompt,
		Context:   req.Context,
		JSON:      req.JSON,
	}, util.ShortHash(req.System+"\n"+req.Prompt))
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

// AnswerWorkflow runs the corrective answer loop with every retrieval and
// model call executed as an activity. The run is recorded even when the
// loop ends with an error.
func AnswerWorkflow(ctx workflow.Context, input AnswerInput) (models.AnswerRun, error) {
	if strings.TrimSpace(input.Question) == "" {
		return models.AnswerRun{}, temporal.NewNonRetryableApplicationError(util.ErrEmptyQuestion.Error(), "EmptyQuestion", nil)
	}
	if input.Mode == "" {
		input.Mode = ModeLoop
	}
	if input.TopK <= 0 {
		input.TopK = 5
	}
	progress := AnswerProgress{RunID: input.RunID, Mode: input.Mode, Stage: "started", Question: input.Question}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (AnswerProgress, error) {
		return progress, nil
	}); err != nil {
		return models.AnswerRun{}, err
	}
	logger := workflow.GetLogger(ctx)
	rt := &answerRuntime{
		input:    input,
		state:    newProviderState(),
		cooldown: durationOrDefault(input.CooldownSeconds, 900),
	}

	var (
		run    models.AnswerRun
		runErr error
	)
	if input.Mode == ModeQuick {
		run, runErr = quickAnswer(ctx, rt, &progress)
	} else {
		machine := crag.NewMachine[workflow.Context](rt, grading.NewGrader[workflow.Context](rt.complete), input.Limits).
			WithObserver(func(ev crag.Event) {
				progress.Stage = ev.State
				progress.Question = ev.Question
				progress.Generations = ev.Generations
				progress.Rewrites = ev.Rewrites
				progress.Trace = append(progress.Trace, ev)
				logger.Debug("answer loop step", "step", ev.Step, "state", ev.State, "decision", string(ev.Decision), "documents", ev.Documents)
			})
		var res crag.Result
		res, runErr = machine.Run(ctx, input.Question)
		run = models.AnswerRun{
			RunID:       input.RunID,
			Mode:        ModeLoop,
			Question:    input.Question,
			Answer:      res.Answer,
			Converged:   res.Converged,
			Grounded:    res.Grounded,
			StopReason:  res.StopReason,
			Generations: res.Generations,
			Rewrites:    res.Rewrites,
			Sources:     models.ChunkIDs(res.Documents),
		}
		if res.Question != input.Question {
			run.Rewritten = res.Question
		}
	}
	run.CreatedAt = workflow.Now(ctx).UTC()
	if runErr != nil && run.StopReason == "" {
		run.StopReason = runErr.Error()
	}

	actx := withActivityDefaults(ctx)
	if err := workflow.ExecuteActivity(actx, "RecordAnswerRunActivity", run).Get(ctx, nil); err != nil {
		logger.Error("record answer run failed", "run_id", input.RunID, "error", err)
	}
	if input.WriteArtifacts {
		var out activities.WriteAnswerArtifactsOutput
		if err := workflow.ExecuteActivity(actx, "WriteAnswerArtifactsActivity", activities.WriteAnswerArtifactsInput{
			Run:   run,
			Trace: progress.Trace,
		}).Get(ctx, &out); err != nil {
			logger.Warn("write answer artifacts failed", "run_id", input.RunID, "error", err)
		}
	}
	progress.Done = true
	if runErr != nil {
		progress.Stage = "failed"
		return run, runErr
	}
	progress.Stage = "completed"
	logger.Info("answer run finished", "run_id", input.RunID, "converged", run.Converged, "generations", run.Generations, "rewrites", run.Rewrites)
	return run, nil
}

func quickAnswer(ctx workflow.Context, rt *answerRuntime, progress *AnswerProgress) (models.AnswerRun, error) {
	question := rt.input.Question
	run := models.AnswerRun{RunID: rt.input.RunID, Mode: ModeQuick, Question: question}
	k := rt.input.TopK

	progress.Stage = "retrieve"
	docs, err := rt.retrieve(ctx, question, k)
	if err != nil {
		return run, err
	}
	progress.Stage = "generate"
	raw, err := rt.complete(ctx, grading.QuickAnswerRequest(question, docs))
	if err != nil {
		return run, err
	}
	answer := grading.AnswerText(raw)
	if !grading.Confident(answer) {
		progress.Stage = "widen"
		docs, err = rt.retrieve(ctx, question, k+grading.QuickWiden)
		if err != nil {
			return run, err
		}
		raw, err = rt.complete(ctx, grading.QuickAnswerRequest(question, docs))
		if err != nil {
			return run, err
		}
		answer = grading.AnswerText(raw)
	}
	progress.Generations = 1
	run.Answer = answer
	run.Converged = true
	run.Generations = 1
	run.Sources = models.ChunkIDs(docs)
	return run, nil
}
