package providers

import (
	"os"
	"strings"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// NewOllamaProvider serves chat and embeddings from a local Ollama through
// its OpenAI-compatible /v1 endpoint. The alias picks the embedding model:
// a known short name, a literal model tag, or CRAGFLOW_OLLAMA_EMBED_MODEL_{ALIAS}.
func NewOllamaProvider(alias string) *OpenAIProvider {
	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("CRAGFLOW_OLLAMA_BASE_URL")), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	chatModel := strings.TrimSpace(os.Getenv("CRAGFLOW_OLLAMA_CHAT_MODEL"))
	if chatModel == "" {
		chatModel = "llama3.1"
	}
	// Ollama ignores the key but the client refuses an empty one.
	return newOpenAICompatible("ollama", alias, "ollama", baseURL+"/v1", chatModel, ollamaEmbedModel(alias))
}

var ollamaShortNames = map[string]string{
	"nomic": "nomic-embed-text",
	"bge":   "bge-m3",
	"mxbai": "mxbai-embed-large",
}

func ollamaEmbedModel(alias string) string {
	alias = strings.TrimSpace(alias)
	if alias != "" {
		if v := strings.TrimSpace(os.Getenv("CRAGFLOW_OLLAMA_EMBED_MODEL_" + sanitizeEnvToken(alias))); v != "" {
			return v
		}
		if m, ok := ollamaShortNames[strings.ToLower(alias)]; ok {
			return m
		}
		if strings.ContainsAny(alias, "-/.:") {
			return alias
		}
	}
	if v := strings.TrimSpace(os.Getenv("CRAGFLOW_OLLAMA_EMBED_MODEL")); v != "" {
		return v
	}
	return "nomic-embed-text"
}

func sanitizeEnvToken(s string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", "/", "_", ":", "_").Replace(s))
}

// matchDimension truncates or zero-pads v so every backend sees one width.
func matchDimension(v []float32, target int) []float32 {
	switch {
	case target <= 0 || len(v) == target:
		return v
	case len(v) > target:
		return v[:target]
	}
	out := make([]float32, target)
	copy(out, v)
	return out
}
