// Package weaviate stores chunks in a Weaviate class with caller-supplied
// vectors. Object ids are derived from chunk ids so writes stay idempotent.
package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cragflow/internal/models"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	wvmodels "github.com/weaviate/weaviate/entities/models"
)

const (
	batchSize = 200
	pageSize  = 500
)

// chunkNamespace seeds the name-based object ids.
var chunkNamespace = uuid.MustParse("6f1c1f4e-5d0b-4c43-9a55-2f1f0c7d9b11")

type Config struct {
	Host   string
	Scheme string
	APIKey string
	Class  string
}

type Store struct {
	client *weaviate.Client
	class  string
}

func Open(ctx context.Context, cfg Config) (*Store, error) {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "http"
	}
	wcfg := weaviate.Config{
		Host:   strings.TrimPrefix(strings.TrimPrefix(cfg.Host, "https://"), "http://"),
		Scheme: scheme,
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	class := cfg.Class
	if class == "" {
		class = "Chunk"
	}
	s := &Store{client: client, class: class}
	if err := s.ensureClass(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureClass(ctx context.Context) error {
	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return fmt.Errorf("get weaviate schema: %w", err)
	}
	for _, c := range schema.Classes {
		if c.Class == s.class {
			return nil
		}
	}
	class := &wvmodels.Class{
		Class:      s.class,
		Vectorizer: "none",
		Properties: []*wvmodels.Property{
			{Name: "chunkId", DataType: []string{"text"}},
			{Name: "content", DataType: []string{"text"}},
			{Name: "source", DataType: []string{"text"}},
			{Name: "page", DataType: []string{"int"}},
			{Name: "title", DataType: []string{"text"}},
			{Name: "workspaceId", DataType: []string{"text"}},
			{Name: "docId", DataType: []string{"text"}},
			{Name: "pageId", DataType: []string{"text"}},
		},
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]any{
			"distance": "cosine",
		},
	}
	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create weaviate class %s: %w", s.class, err)
	}
	return nil
}

// ObjectID maps a chunk id to its Weaviate object id.
func ObjectID(chunkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(chunkNamespace, []byte(chunkID)).String())
}

func (s *Store) Close() error { return nil }

// ExistingIDs pages through the class with the cursor API.
func (s *Store) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	after := ""
	for {
		q := s.client.GraphQL().Get().
			WithClassName(s.class).
			WithFields(graphql.Field{Name: "chunkId"}, graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}}).
			WithLimit(pageSize)
		if after != "" {
			q = q.WithAfter(after)
		}
		resp, err := q.Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("list weaviate chunk ids: %w", err)
		}
		if err := graphQLError(resp.Errors); err != nil {
			return nil, fmt.Errorf("list weaviate chunk ids: %w", err)
		}
		hits, err := decodeHits(resp.Data, "Get", s.class)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			out[h.ChunkID] = struct{}{}
		}
		if len(hits) < pageSize {
			return out, nil
		}
		after = hits[len(hits)-1].Additional.ID
	}
}

// Add batches the chunks, skipping any whose object already exists.
func (s *Store) Add(ctx context.Context, chunks []models.Document, vectors [][]float32) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("add chunks: %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))
		batcher := s.client.Batch().ObjectsBatcher()
		queued := 0
		for j := i; j < end; j++ {
			id := ObjectID(chunks[j].Metadata.ChunkID)
			exists, err := s.client.Data().Checker().WithClassName(s.class).WithID(id.String()).Do(ctx)
			if err != nil {
				return fmt.Errorf("check weaviate object %s: %w", chunks[j].Metadata.ChunkID, err)
			}
			if exists {
				continue
			}
			m := chunks[j].Metadata
			batcher = batcher.WithObjects(&wvmodels.Object{
				Class: s.class,
				ID:    id,
				Properties: map[string]any{
					"chunkId":     m.ChunkID,
					"content":     chunks[j].Content,
					"source":      m.Source,
					"page":        m.Page,
					"title":       m.Title,
					"workspaceId": m.WorkspaceID,
					"docId":       m.DocID,
					"pageId":      m.PageID,
				},
				Vector: vectors[j],
			})
			queued++
		}
		if queued == 0 {
			continue
		}
		resp, err := batcher.Do(ctx)
		if err != nil {
			return fmt.Errorf("insert weaviate batch %d-%d: %w", i, end, err)
		}
		for _, r := range resp {
			if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
				return fmt.Errorf("insert weaviate object %s: %s", r.ID, r.Result.Errors.Error[0].Message)
			}
		}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, query []float32, k int) ([]models.ScoredDocument, error) {
	if k <= 0 {
		k = 5
	}
	resp, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithFields(hitFields()...).
		WithNearVector(s.client.GraphQL().NearVectorArgBuilder().WithVector(query)).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate near vector search: %w", err)
	}
	if err := graphQLError(resp.Errors); err != nil {
		return nil, fmt.Errorf("weaviate near vector search: %w", err)
	}
	hits, err := decodeHits(resp.Data, "Get", s.class)
	if err != nil {
		return nil, err
	}
	out := make([]models.ScoredDocument, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.scored())
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	resp, err := s.client.GraphQL().Aggregate().
		WithClassName(s.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("weaviate count: %w", err)
	}
	if err := graphQLError(resp.Errors); err != nil {
		return 0, fmt.Errorf("weaviate count: %w", err)
	}
	var rows []struct {
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	if err := decodeClass(resp.Data, "Aggregate", s.class, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Meta.Count, nil
}

func hitFields() []graphql.Field {
	return []graphql.Field{
		{Name: "chunkId"},
		{Name: "content"},
		{Name: "source"},
		{Name: "page"},
		{Name: "title"},
		{Name: "workspaceId"},
		{Name: "docId"},
		{Name: "pageId"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
	}
}

type hit struct {
	ChunkID     string `json:"chunkId"`
	Content     string `json:"content"`
	Source      string `json:"source"`
	Page        int    `json:"page"`
	Title       string `json:"title"`
	WorkspaceID string `json:"workspaceId"`
	DocID       string `json:"docId"`
	PageID      string `json:"pageId"`
	Additional  struct {
		ID       string  `json:"id"`
		Distance float64 `json:"distance"`
	} `json:"_additional"`
}

func (h hit) scored() models.ScoredDocument {
	return models.ScoredDocument{
		Document: models.Document{
			Content: h.Content,
			Metadata: models.Metadata{
				Source:      h.Source,
				Page:        h.Page,
				ChunkID:     h.ChunkID,
				Title:       h.Title,
				WorkspaceID: h.WorkspaceID,
				DocID:       h.DocID,
				PageID:      h.PageID,
			},
		},
		Distance: h.Additional.Distance,
	}
}

func decodeHits(data map[string]wvmodels.JSONObject, op, class string) ([]hit, error) {
	var hits []hit
	if err := decodeClass(data, op, class, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

// decodeClass re-encodes data[op][class] into out.
func decodeClass(data map[string]wvmodels.JSONObject, op, class string, out any) error {
	byClass, ok := data[op].(map[string]any)
	if !ok {
		return fmt.Errorf("weaviate response has no %s section", op)
	}
	raw, ok := byClass[class]
	if !ok || raw == nil {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("re-encode weaviate %s result: %w", op, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode weaviate %s result: %w", op, err)
	}
	return nil
}

func graphQLError(errs []*wvmodels.GraphQLError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			msgs = append(msgs, e.Message)
		}
	}
	return fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))
}
