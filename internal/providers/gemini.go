package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"google.golang.org/genai"
)

type GeminiProvider struct {
	keyName    string
	apiKey     string
	model      string
	embedModel string

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGeminiProvider(keyName string) *GeminiProvider {
	model := strings.TrimSpace(os.Getenv("CRAGFLOW_GEMINI_MODEL"))
	if model == "" {
		model = "gemini-2.0-flash"
	}
	embedModel := strings.TrimSpace(os.Getenv("CRAGFLOW_GEMINI_EMBED_MODEL"))
	if embedModel == "" {
		embedModel = "text-embedding-004"
	}
	return &GeminiProvider{keyName: keyName, apiKey: resolveGeminiKey(keyName), model: model, embedModel: embedModel}
}

// clientFor builds the genai client on first use; NewClient needs a context.
func (g *GeminiProvider) clientFor(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		if g.apiKey == "" {
			g.initErr = fmt.Errorf("gemini key missing for alias %q", g.keyName)
			return
		}
		g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return g.client, g.initErr
}

func (g *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.model, Key: g.keyName}
	client, err := g.clientFor(ctx)
	if err != nil {
		return GenerateResponse{}, info, err
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](0),
		SystemInstruction: genai.NewContentFromText(systemPrompt(req), genai.RoleUser),
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	contents := []*genai.Content{genai.NewContentFromText(userPrompt(req), genai.RoleUser)}
	resp, err := client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("gemini generate request failed: %w", err)
	}
	var b strings.Builder
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				b.WriteString(part.Text)
			}
		}
	}
	if b.Len() == 0 {
		return GenerateResponse{}, info, fmt.Errorf("gemini returned no text content")
	}
	return GenerateResponse{Text: b.String()}, info, nil
}

func (g *GeminiProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.embedModel, Key: g.keyName}
	client, err := g.clientFor(ctx)
	if err != nil {
		return nil, info, err
	}
	var cfg *genai.EmbedContentConfig
	if req.Dimension > 0 {
		dim := int32(req.Dimension)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}
	contents := make([]*genai.Content, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		contents = append(contents, genai.NewContentFromText(in, genai.RoleUser))
	}
	result, err := client.Models.EmbedContent(ctx, g.embedModel, contents, cfg)
	if err != nil {
		return nil, info, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if result == nil || len(result.Embeddings) != len(req.Inputs) {
		return nil, info, fmt.Errorf("gemini returned an unexpected number of embeddings")
	}
	out := make([][]float32, 0, len(result.Embeddings))
	for _, e := range result.Embeddings {
		out = append(out, matchDimension(e.Values, req.Dimension))
	}
	return out, info, nil
}

func resolveGeminiKey(alias string) string {
	if alias != "" {
		if v := os.Getenv("CRAGFLOW_GEMINI_KEY_" + sanitizeEnvToken(alias)); v != "" {
			return v
		}
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		return v
	}
	return os.Getenv("GOOGLE_API_KEY")
}
