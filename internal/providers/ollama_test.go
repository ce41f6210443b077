package providers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOllamaEmbedModel(t *testing.T) {
	t.Setenv("CRAGFLOW_OLLAMA_EMBED_MODEL", "")
	t.Setenv("CRAGFLOW_OLLAMA_EMBED_MODEL_TEAM", "snowflake-arctic-embed")
	require.Equal(t, "nomic-embed-text", ollamaEmbedModel(""))
	require.Equal(t, "mxbai-embed-large", ollamaEmbedModel("MXBAI"))
	require.Equal(t, "all-minilm:l6-v2", ollamaEmbedModel("all-minilm:l6-v2"))
	require.Equal(t, "snowflake-arctic-embed", ollamaEmbedModel("team"))
}

func TestOllamaProviderUsesLocalEndpoint(t *testing.T) {
	t.Setenv("CRAGFLOW_OLLAMA_BASE_URL", "http://gpu-box:11434/")
	p := NewOllamaProvider("nomic")
	require.Equal(t, "ollama", p.name)
	require.Equal(t, "nomic-embed-text", p.embedModel)
}

func TestMatchDimension(t *testing.T) {
	src := []float32{1, 2, 3}
	require.Equal(t, []float32{1, 2}, matchDimension(src, 2))
	require.Equal(t, []float32{1, 2, 3, 0, 0}, matchDimension(src, 5))
	require.Equal(t, src, matchDimension(src, 0))
}
