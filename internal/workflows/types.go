package workflows

import (
	"cragflow/internal/crag"
)

type AnswerInput struct {
	RunID    string      `json:"run_id"`
	Question string      `json:"question"`
	Mode     string      `json:"mode,omitempty"`
	TopK     int         `json:"top_k,omitempty"`
	Limits   crag.Limits `json:"limits"`
	// Provider counts must match the worker's configured lists.
	EmbedProviders  int  `json:"embed_providers"`
	LLMProviders    int  `json:"llm_providers"`
	CooldownSeconds int  `json:"cooldown_seconds"`
	WriteArtifacts  bool `json:"write_artifacts,omitempty"`
}

type AnswerProgress struct {
	RunID       string       `json:"run_id"`
	Mode        string       `json:"mode"`
	Stage       string       `json:"stage"`
	Question    string       `json:"question"`
	Generations int          `json:"generations"`
	Rewrites    int          `json:"rewrites"`
	Done        bool         `json:"done"`
	Trace       []crag.Event `json:"trace"`
}

type IngestInput struct {
	URL             string `json:"url,omitempty"`
	PDFPath         string `json:"pdf_path,omitempty"`
	Normalize       bool   `json:"normalize"`
	ChunkSize       int    `json:"chunk_size,omitempty"`
	ChunkOverlap    int    `json:"chunk_overlap,omitempty"`
	EmbedProviders  int    `json:"embed_providers"`
	CooldownSeconds int    `json:"cooldown_seconds"`
}

type IngestResult struct {
	Documents   int  `json:"documents"`
	Chunks      int  `json:"chunks"`
	Existing    int  `json:"existing"`
	Duplicates  int  `json:"duplicates"`
	Added       int  `json:"added"`
	FetchFailed bool `json:"fetch_failed,omitempty"`
}

type IngestProgress struct {
	Stage    string       `json:"stage"`
	Embedded int          `json:"embedded"`
	Result   IngestResult `json:"result"`
}
