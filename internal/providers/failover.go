package providers

import (
	"context"
	"fmt"
	"time"
)

// CallRecord describes one provider attempt made by Manager.
type CallRecord struct {
	Operation string
	Kind      string
	Provider  string
	Model     string
	Attempt   int
	Status    string
	ErrorType ErrorType
	Latency   time.Duration
}

// WithCallObserver registers fn to receive every attempt, successful or not.
func (m *Manager) WithCallObserver(fn func(CallRecord)) *Manager {
	m.observe = fn
	return m
}

// Generate runs req against the configured LLM providers in preferred order,
// cooling down providers that report quota or permanent errors. Context
// length errors are returned immediately since another provider will not
// fix the prompt.
func (m *Manager) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	order := m.PreferredLLMOrder()
	retries := map[int]int{}
	var lastErr error
	for attempt := 0; attempt < len(order)*4; attempt++ {
		idx := order[attempt%len(order)]
		key := "llm-" + m.llmProviders[idx].Ref.Raw
		if m.disabled(key) {
			continue
		}
		start := time.Now()
		resp, info, err := m.llmProviders[idx].Provider.Generate(ctx, req)
		m.record(req.Operation, "llm", info, attempt, err, time.Since(start))
		if err == nil {
			return resp, info, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return GenerateResponse{}, info, ctx.Err()
		}
		errType := ClassifyError(err)
		if errType == ErrorContext {
			return GenerateResponse{}, info, err
		}
		retries[idx]++
		if retry, err := m.backoff(ctx, key, errType, retries[idx]); err != nil {
			return GenerateResponse{}, info, err
		} else if retry {
			attempt--
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all llm providers exhausted")
	}
	return GenerateResponse{}, ProviderInfo{}, lastErr
}

// Embed is Generate's counterpart for embedding providers.
func (m *Manager) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	if req.Dimension <= 0 {
		req.Dimension = m.dim
	}
	order := m.PreferredEmbedOrder()
	retries := map[int]int{}
	var lastErr error
	for attempt := 0; attempt < len(order)*4; attempt++ {
		idx := order[attempt%len(order)]
		key := "embed-" + m.embedProviders[idx].Ref.Raw
		if m.disabled(key) {
			continue
		}
		start := time.Now()
		vectors, info, err := m.embedProviders[idx].Provider.Embed(ctx, req)
		m.record(req.Operation, "embed", info, attempt, err, time.Since(start))
		if err == nil {
			return vectors, info, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, info, ctx.Err()
		}
		retries[idx]++
		if retry, err := m.backoff(ctx, key, ClassifyError(err), retries[idx]); err != nil {
			return nil, info, err
		} else if retry {
			attempt--
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all embed providers exhausted")
	}
	return nil, ProviderInfo{}, lastErr
}

// EmbedTexts adapts Embed to the indexer and retriever.
func (m *Manager) EmbedTexts(ctx context.Context, operation string, inputs []string) ([][]float32, error) {
	vectors, _, err := m.Embed(ctx, EmbedRequest{Operation: operation, Inputs: inputs, Dimension: m.dim})
	return vectors, err
}

// Complete adapts Generate to the grading package.
func (m *Manager) Complete(ctx context.Context, req GenerateRequest) (string, error) {
	resp, _, err := m.Generate(ctx, req)
	return resp.Text, err
}

func (m *Manager) Dimension() int {
	return m.dim
}

// backoff applies the cooldown policy for one failure and reports whether
// the same provider should be retried.
func (m *Manager) backoff(ctx context.Context, key string, errType ErrorType, retries int) (bool, error) {
	switch errType {
	case ErrorQuota:
		m.disable(key, m.cooldown)
	case ErrorRate:
		if retries <= 2 {
			return true, sleep(ctx, time.Duration(retries*2)*time.Second)
		}
		m.disable(key, 2*time.Minute)
	case ErrorTransient:
		if retries <= 2 {
			return true, sleep(ctx, time.Duration(retries)*time.Second)
		}
	default:
		m.disable(key, time.Minute)
	}
	return false, nil
}

func (m *Manager) disabled(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.disabledUntil[key]
	return ok && time.Now().Before(until)
}

func (m *Manager) disable(key string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabledUntil[key] = time.Now().Add(d)
}

func (m *Manager) record(operation, kind string, info ProviderInfo, attempt int, err error, latency time.Duration) {
	if m.observe == nil {
		return
	}
	rec := CallRecord{Operation: operation, Kind: kind, Provider: info.Name, Model: info.Model, Attempt: attempt, Status: "ok", Latency: latency}
	if err != nil {
		rec.Status = "failed"
		rec.ErrorType = ClassifyError(err)
	}
	m.observe(rec)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
