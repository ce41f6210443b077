package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeProvider is chat-only; Anthropic has no embeddings endpoint.
type ClaudeProvider struct {
	keyName   string
	apiKey    string
	model     string
	maxTokens int64
	messages  anthropic.MessageService
}

func NewClaudeProvider(keyName string) *ClaudeProvider {
	apiKey := resolveClaudeKey(keyName)
	model := strings.TrimSpace(os.Getenv("CRAGFLOW_CLAUDE_MODEL"))
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ClaudeProvider{
		keyName:   keyName,
		apiKey:    apiKey,
		model:     model,
		maxTokens: 4096,
		messages:  client.Messages,
	}
}

func (c *ClaudeProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "claude", Model: c.model, Key: c.keyName}
	if c.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("claude key missing for alias %q", c.keyName)
	}
	system := systemPrompt(req)
	if req.JSON {
		system += " Output only the JSON object."
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt(req))),
		},
		System:      []anthropic.TextBlockParam{{Text: system}},
		Temperature: anthropic.Float(0),
	}
	resp, err := c.messages.New(ctx, params)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("claude generate request failed: %w", err)
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return GenerateResponse{}, info, fmt.Errorf("claude returned no text content")
	}
	return GenerateResponse{Text: b.String()}, info, nil
}

func resolveClaudeKey(alias string) string {
	if alias != "" {
		if v := os.Getenv("CRAGFLOW_CLAUDE_KEY_" + sanitizeEnvToken(alias)); v != "" {
			return v
		}
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}
