package activities

import (
	"cragflow/internal/crag"
	"cragflow/internal/models"
)

type FetchDocsInput struct {
	URL       string `json:"url"`
	Normalize bool   `json:"normalize"`
}

type FetchDocsOutput struct {
	WorkspaceID string            `json:"workspace_id"`
	DocID       string            `json:"doc_id"`
	PageID      string            `json:"page_id,omitempty"`
	Documents   []models.Document `json:"documents"`
	// FetchFailed is set when the connector could not reach ClickUp; the
	// ingest continues with no documents.
	FetchFailed bool   `json:"fetch_failed,omitempty"`
	FetchError  string `json:"fetch_error,omitempty"`
}

type LoadPDFInput struct {
	Path string `json:"path"`
}

type LoadPDFOutput struct {
	Documents []models.Document `json:"documents"`
}

type PrepareChunksInput struct {
	Documents    []models.Document `json:"documents"`
	ChunkSize    int               `json:"chunk_size"`
	ChunkOverlap int               `json:"chunk_overlap"`
}

type PrepareChunksOutput struct {
	Total      int               `json:"total"`
	Existing   int               `json:"existing"`
	Duplicates int               `json:"duplicates"`
	Chunks     []models.Document `json:"chunks"`
}

type EmbedChunksInput struct {
	Operation     string            `json:"operation"`
	RunID         string            `json:"run_id"`
	ProviderIndex int               `json:"provider_index"`
	Input         []models.Document `json:"input"`
}

type EmbedChunksOutput struct {
	Vectors      [][]float32 `json:"vectors"`
	ProviderName string      `json:"provider_name"`
	Model        string      `json:"model"`
}

type AddChunksInput struct {
	Chunks  []models.Document `json:"chunks"`
	Vectors [][]float32       `json:"vectors"`
}

type EmbedQueryInput struct {
	RunID         string `json:"run_id"`
	Query         string `json:"query"`
	ProviderIndex int    `json:"provider_index"`
}

type EmbedQueryOutput struct {
	Vector       []float32 `json:"vector"`
	ProviderName string    `json:"provider_name"`
	Model        string    `json:"model"`
}

type SearchChunksInput struct {
	Vector []float32 `json:"vector"`
	TopK   int       `json:"top_k"`
}

type SearchChunksOutput struct {
	Results []models.ScoredDocument `json:"results"`
}

type LLMGenerateInput struct {
	Operation     string   `json:"operation"`
	RunID         string   `json:"run_id"`
	System        string   `json:"system,omitempty"`
	Prompt        string   `json:"prompt"`
	Context       []string `json:"context,omitempty"`
	JSON          bool     `json:"json,omitempty"`
	ProviderIndex int      `json:"provider_index"`
}

type LLMGenerateOutput struct {
	Text         string `json:"text"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
}

type LogLLMCallInput struct {
	CallID       string `json:"call_id"`
	RunID        string `json:"run_id"`
	Operation    string `json:"operation"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
	RequestID    string `json:"request_id"`
	Status       string `json:"status"`
	ErrorType    string `json:"error_type"`
	PromptHash   string `json:"prompt_hash,omitempty"`
}

type WriteAnswerArtifactsInput struct {
	Run   models.AnswerRun `json:"run"`
	Trace []crag.Event     `json:"trace"`
}

type WriteAnswerArtifactsOutput struct {
	Dir string `json:"dir"`
}
