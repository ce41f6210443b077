package providers

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"cragflow/internal/config"
)

// Named pairs a provider with the list entry it was built from.
type Named[P any] struct {
	Ref      ProviderRef
	Provider P
}

type (
	NamedLLMProvider   = Named[LLMProvider]
	NamedEmbedProvider = Named[EmbeddingProvider]
)

// Manager holds the ordered LLM and embedding providers and the cooldown
// state shared by every call made through it.
type Manager struct {
	llmProviders   []NamedLLMProvider
	embedProviders []NamedEmbedProvider
	dim            int
	cooldown       time.Duration

	mu            sync.Mutex
	disabledUntil map[string]time.Time
	observe       func(CallRecord)
}

var mockRef = ProviderRef{Raw: "mock", Name: "mock"}

func NewManager(cfg config.Config) (*Manager, error) {
	llm, err := buildAll[LLMProvider](ParseProviderList(cfg.LLMProviders), cfg.EmbedDim, "llm")
	if err != nil {
		return nil, err
	}
	embed, err := buildAll[EmbeddingProvider](ParseProviderList(cfg.EmbedProviders), cfg.EmbedDim, "embeddings")
	if err != nil {
		return nil, err
	}
	return NewManagerWith(llm, embed, cfg.EmbedDim, time.Duration(cfg.ProviderCooldownSecs)*time.Second), nil
}

// NewManagerWith builds a Manager from already constructed providers. An
// empty list falls back to the mock.
func NewManagerWith(llm []NamedLLMProvider, embed []NamedEmbedProvider, dim int, cooldown time.Duration) *Manager {
	if cooldown <= 0 {
		cooldown = 15 * time.Minute
	}
	if len(llm) == 0 {
		llm = []NamedLLMProvider{{Ref: mockRef, Provider: NewMockProvider(dim)}}
	}
	if len(embed) == 0 {
		embed = []NamedEmbedProvider{{Ref: mockRef, Provider: NewMockProvider(dim)}}
	}
	return &Manager{
		llmProviders:   llm,
		embedProviders: embed,
		dim:            dim,
		cooldown:       cooldown,
		disabledUntil:  map[string]time.Time{},
	}
}

func buildAll[P any](refs []ProviderRef, dim int, capability string) ([]Named[P], error) {
	out := make([]Named[P], 0, len(refs))
	for _, ref := range refs {
		p, err := buildProvider(ref, dim)
		if err != nil {
			return nil, err
		}
		typed, ok := p.(P)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support %s", ref.Raw, capability)
		}
		out = append(out, Named[P]{Ref: ref, Provider: typed})
	}
	return out, nil
}

func buildProvider(ref ProviderRef, dim int) (any, error) {
	switch ref.Name {
	case "mock":
		return NewMockProvider(dim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	case "ollama":
		return NewOllamaProvider(ref.KeyAlias), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias), nil
	case "claude", "anthropic":
		return NewClaudeProvider(ref.KeyAlias), nil
	case "gemini":
		return NewGeminiProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}

func pick[P any](list []Named[P], i int) (P, ProviderRef) {
	if i < 0 || i >= len(list) {
		i = 0
	}
	return list[i].Provider, list[i].Ref
}

// EmbedProviderByIndex returns the i-th embedding provider, or the first one
// when i is out of range.
func (m *Manager) EmbedProviderByIndex(i int) (EmbeddingProvider, ProviderRef) {
	return pick(m.embedProviders, i)
}

func (m *Manager) LLMProviderByIndex(i int) (LLMProvider, ProviderRef) {
	return pick(m.llmProviders, i)
}

func (m *Manager) EmbedCount() int { return len(m.embedProviders) }

func (m *Manager) LLMCount() int { return len(m.llmProviders) }

// PreferredLLMOrder lists provider indexes in configured order with the
// mock moved last.
func (m *Manager) PreferredLLMOrder() []int {
	return mockLast(m.llmProviders)
}

func (m *Manager) PreferredEmbedOrder() []int {
	return mockLast(m.embedProviders)
}

func mockLast[P any](list []Named[P]) []int {
	out := make([]int, len(list))
	for i := range out {
		out[i] = i
	}
	sort.SliceStable(out, func(a, b int) bool {
		return list[out[a]].Ref.Name != "mock" && list[out[b]].Ref.Name == "mock"
	})
	return out
}
