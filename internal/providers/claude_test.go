package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"
)

func claudeAgainst(t *testing.T, body string) *ClaudeProvider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	client := anthropic.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(srv.URL+"/"),
		option.WithMaxRetries(0),
	)
	return &ClaudeProvider{keyName: "default", apiKey: "test-key", model: "claude-test", maxTokens: 64, messages: client.Messages}
}

func TestClaudeGenerateJoinsTextBlocks(t *testing.T) {
	p := claudeAgainst(t, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
		"content":[{"type":"text","text":"hello "},{"type":"thinking","thinking":"skip","signature":"sig"},{"type":"text","text":"world"}],
		"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`)

	resp, info, err := p.Generate(context.Background(), GenerateRequest{Operation: "generate", Prompt: "q"})
	require.NoError(t, err)
	require.Equal(t, "hello world", resp.Text)
	require.Equal(t, "claude", info.Name)
}

func TestClaudeGenerateRejectsNoText(t *testing.T) {
	p := claudeAgainst(t, `{"id":"msg_2","type":"message","role":"assistant","model":"claude-test",
		"content":[],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":0}}`)

	_, _, err := p.Generate(context.Background(), GenerateRequest{Operation: "generate", Prompt: "q"})
	require.ErrorContains(t, err, "no text content")
}

func TestClaudeGenerateWithoutKey(t *testing.T) {
	p := &ClaudeProvider{keyName: "missing", model: "claude-test"}
	_, _, err := p.Generate(context.Background(), GenerateRequest{Prompt: "q"})
	require.ErrorContains(t, err, `alias "missing"`)
}
