package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.FetchClickUpDocsActivity)
	w.RegisterActivity(a.LoadPDFActivity)
	w.RegisterActivity(a.PrepareChunksActivity)
	w.RegisterActivity(a.EmbedChunksActivity)
	w.RegisterActivity(a.AddChunksActivity)
	w.RegisterActivity(a.EmbedQueryActivity)
	w.RegisterActivity(a.SearchChunksActivity)
	w.RegisterActivity(a.LLMGenerateActivity)
	w.RegisterActivity(a.LogLLMCallActivity)
	w.RegisterActivity(a.RecordAnswerRunActivity)
	w.RegisterActivity(a.RecordSourceActivity)
	w.RegisterActivity(a.WriteAnswerArtifactsActivity)
}
