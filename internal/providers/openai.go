package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to any OpenAI-compatible chat and embeddings API.
// Groq and Ollama's /v1 endpoint are served by the same client with a
// different base URL.
type OpenAIProvider struct {
	name       string
	keyName    string
	apiKey     string
	model      string
	embedModel string
	client     *openai.Client
}

func NewOpenAIProvider(keyName string) *OpenAIProvider {
	model := strings.TrimSpace(os.Getenv("CRAGFLOW_OPENAI_MODEL"))
	if model == "" {
		model = openai.GPT4oMini
	}
	return newOpenAICompatible("openai", keyName, resolveOpenAIKey(keyName), os.Getenv("CRAGFLOW_OPENAI_BASE_URL"), model, string(openai.SmallEmbedding3))
}

func newOpenAICompatible(name, keyName, apiKey, baseURL, model, embedModel string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIProvider{
		name:       name,
		keyName:    keyName,
		apiKey:     apiKey,
		model:      model,
		embedModel: embedModel,
		client:     openai.NewClientWithConfig(cfg),
	}
}

func (o *OpenAIProvider) info(model string) ProviderInfo {
	return ProviderInfo{Name: o.name, Model: model, Key: o.keyName}
}

func (o *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := o.info(o.embedModel)
	if o.apiKey == "" {
		return nil, info, fmt.Errorf("%s key missing for alias %q", o.name, o.keyName)
	}
	if o.embedModel == "" {
		return nil, info, fmt.Errorf("%s does not serve embeddings", o.name)
	}
	er := openai.EmbeddingRequest{
		Input: req.Inputs,
		Model: openai.EmbeddingModel(o.embedModel),
	}
	if req.Dimension > 0 && o.embedModel != string(openai.AdaEmbeddingV2) {
		er.Dimensions = req.Dimension
	}
	resp, err := o.client.CreateEmbeddings(ctx, er)
	if err != nil {
		return nil, info, fmt.Errorf("%s embedding request failed: %w", o.name, err)
	}
	out := make([][]float32, 0, len(resp.Data))
	for _, d := range resp.Data {
		out = append(out, matchDimension(d.Embedding, req.Dimension))
	}
	if len(out) != len(req.Inputs) {
		return nil, info, fmt.Errorf("%s returned %d embeddings for %d inputs", o.name, len(out), len(req.Inputs))
	}
	return out, info, nil
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := o.info(o.model)
	if o.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("%s key missing for alias %q", o.name, o.keyName)
	}
	cr := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
	}
	if req.JSON {
		cr.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	resp, err := o.client.CreateChatCompletion(ctx, cr)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("%s generate request failed: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return GenerateResponse{}, info, fmt.Errorf("%s returned empty choices", o.name)
	}
	return GenerateResponse{Text: resp.Choices[0].Message.Content}, info, nil
}

func resolveOpenAIKey(alias string) string {
	if alias != "" {
		k := os.Getenv("CRAGFLOW_OPENAI_KEY_" + sanitizeEnvToken(alias))
		if k != "" {
			return k
		}
	}
	return os.Getenv("OPENAI_API_KEY")
}
