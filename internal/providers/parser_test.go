package providers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProviderList(t *testing.T) {
	refs := ParseProviderList("mock| OpenAI:key1 ,openai:key2|openai:key1")
	require.Len(t, refs, 3)
	require.Equal(t, ProviderRef{Raw: "OpenAI:key1", Name: "openai", KeyAlias: "key1"}, refs[1])
	require.Equal(t, "key2", refs[2].KeyAlias)
}

func TestParseProviderListKeepsModelTags(t *testing.T) {
	refs := ParseProviderList("ollama:all-minilm:l6-v2")
	require.Len(t, refs, 1)
	require.Equal(t, "all-minilm:l6-v2", refs[0].KeyAlias)
}

func TestParseProviderListDefaultsToMock(t *testing.T) {
	require.Equal(t, []ProviderRef{{Raw: "mock", Name: "mock"}}, ParseProviderList(" | "))
}
