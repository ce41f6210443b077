package models

import (
	"errors"
	"strconv"
	"time"
)

// ErrNotFound is returned by every store when a keyed record is absent.
var ErrNotFound = errors.New("not found")

type Metadata struct {
	Source      string `json:"file_path"`
	Page        int    `json:"page"`
	ChunkID     string `json:"id,omitempty"`
	Title       string `json:"title,omitempty"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	DocID       string `json:"doc_id,omitempty"`
	PageID      string `json:"page_id,omitempty"`
}

// PageKey groups chunks that share a source and page.
func (m Metadata) PageKey() string {
	return m.Source + ":" + strconv.Itoa(m.Page)
}

type Document struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

type ScoredDocument struct {
	Document
	Distance float64 `json:"distance"`
}

type Source struct {
	URL            string    `json:"url"`
	WorkspaceID    string    `json:"workspace_id"`
	DocID          string    `json:"doc_id"`
	PageID         string    `json:"page_id,omitempty"`
	LastIngestedAt time.Time `json:"last_ingested_at"`
	LastAdded      int       `json:"last_added"`
	LastStatus     string    `json:"last_status"`
}

type AnswerRun struct {
	RunID       string    `json:"run_id"`
	Mode        string    `json:"mode"`
	Question    string    `json:"question"`
	Rewritten   string    `json:"rewritten,omitempty"`
	Answer      string    `json:"answer"`
	Converged   bool      `json:"converged"`
	Grounded    bool      `json:"grounded"`
	StopReason  string    `json:"stop_reason,omitempty"`
	Generations int       `json:"generations"`
	Rewrites    int       `json:"rewrites"`
	Sources     []string  `json:"sources"`
	CreatedAt   time.Time `json:"created_at"`
}

// LLMCall is one audited provider attempt.
type LLMCall struct {
	CallID     string    `json:"call_id"`
	RunID      string    `json:"run_id,omitempty"`
	Operation  string    `json:"operation"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	RequestID  string    `json:"request_id"`
	Status     string    `json:"status"`
	ErrorType  string    `json:"error_type,omitempty"`
	PromptHash string    `json:"prompt_hash,omitempty"`
	LatencyMS  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

func ChunkIDs(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Metadata.ChunkID)
	}
	return out
}
