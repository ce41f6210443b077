package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cragflow/internal/config"
	"cragflow/internal/models"
	"cragflow/internal/providers"
	"cragflow/internal/storage/badger"
	"cragflow/internal/workflows"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

type jsonValue struct {
	v any
}

func (j jsonValue) HasValue() bool { return j.v != nil }

func (j jsonValue) Get(ptr interface{}) error {
	b, err := json.Marshal(j.v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ptr)
}

type fakeRun struct {
	id     string
	result any
	err    error
}

func (f fakeRun) GetID() string    { return f.id }
func (f fakeRun) GetRunID() string { return "run-" + f.id }
func (f fakeRun) Get(_ context.Context, ptr interface{}) error {
	if f.err != nil {
		return f.err
	}
	return jsonValue{f.result}.Get(ptr)
}
func (f fakeRun) GetWithOptions(ctx context.Context, ptr interface{}, _ tclient.WorkflowRunGetOptions) error {
	return f.Get(ctx, ptr)
}

type fakeTemporal struct {
	started  []tclient.StartWorkflowOptions
	args     []any
	result   any
	runErr   error
	progress map[string]any
}

func (f *fakeTemporal) ExecuteWorkflow(_ context.Context, options tclient.StartWorkflowOptions, _ interface{}, args ...interface{}) (tclient.WorkflowRun, error) {
	f.started = append(f.started, options)
	f.args = append(f.args, args...)
	return fakeRun{id: options.ID, result: f.result, err: f.runErr}, nil
}

func (f *fakeTemporal) QueryWorkflow(_ context.Context, workflowID string, _ string, queryType string, _ ...interface{}) (converter.EncodedValue, error) {
	if queryType != workflows.QueryGetProgress {
		return nil, errors.New("unknown query")
	}
	p, ok := f.progress[workflowID]
	if !ok {
		return nil, errors.New("workflow not found")
	}
	return jsonValue{p}, nil
}

func newTestServer(t *testing.T, tc *fakeTemporal) (*httptest.Server, *badger.Store) {
	t.Helper()
	store, err := badger.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	cfg := config.Defaults()
	pm := providers.NewManagerWith(nil, nil, 8, 0)
	srv := httptest.NewServer(NewServer(cfg, tc, store, store, pm).Routes())
	t.Cleanup(srv.Close)
	return srv, store
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error.Code
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTemporal{})
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAskRunsAnswerWorkflow(t *testing.T) {
	tc := &fakeTemporal{result: models.AnswerRun{RunID: "r1", Answer: "Deploys ship on Tuesdays.", Converged: true, Sources: []string{"a:0:0"}}}
	srv, _ := newTestServer(t, tc)

	resp, err := http.Post(srv.URL+"/ask?mode=quick", "application/json", strings.NewReader(`{"question":"When do deploys ship?"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run models.AnswerRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, "Deploys ship on Tuesdays.", run.Answer)
	assert.Equal(t, []string{"a:0:0"}, run.Sources)

	require.Len(t, tc.started, 1)
	assert.True(t, strings.HasPrefix(tc.started[0].ID, "answer-"))
	in, ok := tc.args[0].(workflows.AnswerInput)
	require.True(t, ok)
	assert.Equal(t, "quick", in.Mode)
	assert.Equal(t, 5, in.TopK)
	assert.Equal(t, 1, in.LLMProviders)
	assert.Equal(t, 4, in.Limits.MaxGenerations)
}

func TestAskValidation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTemporal{})
	for _, body := range []string{`{"question":"  "}`, `{"question":"q","mode":"fast"}`, `not json`} {
		resp, err := http.Post(srv.URL+"/ask", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, "CF-API-4001", decodeError(t, resp))
		resp.Body.Close()
	}
}

func TestAskWorkflowFailure(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTemporal{runErr: errors.New("all llm providers exhausted")})
	resp, err := http.Post(srv.URL+"/ask", "application/json", strings.NewReader(`{"question":"q"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "CF-API-5020", decodeError(t, resp))
}

func TestGetAnswer(t *testing.T) {
	tc := &fakeTemporal{progress: map[string]any{
		workflows.AnswerWorkflowID("running"): workflows.AnswerProgress{RunID: "running", Stage: "generate"},
	}}
	srv, store := newTestServer(t, tc)
	require.NoError(t, store.SaveAnswerRun(context.Background(), models.AnswerRun{RunID: "done", Answer: "a", CreatedAt: time.Now().UTC()}))

	resp, err := http.Get(srv.URL + "/answers/done")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/answers/running")
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var prog workflows.AnswerProgress
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&prog))
	assert.Equal(t, "generate", prog.Stage)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/answers/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "CF-API-4004", decodeError(t, resp))
	resp.Body.Close()
}

func TestIngestStartsWorkflow(t *testing.T) {
	tc := &fakeTemporal{}
	srv, _ := newTestServer(t, tc)

	resp, err := http.Post(srv.URL+"/ingest", "application/json", strings.NewReader(`{"url":"https://app.clickup.com/42/v/dc/d1/p1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, workflows.IngestWorkflowID(body["ingest_id"]), body["workflow_id"])
	in, ok := tc.args[0].(workflows.IngestInput)
	require.True(t, ok)
	assert.Equal(t, "https://app.clickup.com/42/v/dc/d1/p1", in.URL)
	assert.True(t, in.Normalize)
}

func TestIngestRejectsBadInput(t *testing.T) {
	tc := &fakeTemporal{}
	srv, _ := newTestServer(t, tc)
	for _, body := range []string{`{}`, `{"url":"https://app.clickup.com/42/docs/d1"}`} {
		resp, err := http.Post(srv.URL+"/ingest", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		resp.Body.Close()
	}
	assert.Empty(t, tc.started)
}

func TestIngestProgress(t *testing.T) {
	tc := &fakeTemporal{progress: map[string]any{
		workflows.IngestWorkflowID("abc"): workflows.IngestProgress{Stage: "embed", Embedded: 64},
	}}
	srv, _ := newTestServer(t, tc)

	resp, err := http.Get(srv.URL + "/ingest/abc")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var prog workflows.IngestProgress
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&prog))
	resp.Body.Close()
	assert.Equal(t, 64, prog.Embedded)

	resp, err = http.Get(srv.URL + "/ingest/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestSourcesAndCount(t *testing.T) {
	srv, store := newTestServer(t, &fakeTemporal{})
	ctx := context.Background()
	require.NoError(t, store.UpsertSource(ctx, models.Source{URL: "https://app.clickup.com/42/v/dc/d1", DocID: "d1", LastStatus: "ok"}))
	require.NoError(t, store.Add(ctx, []models.Document{{Content: "x", Metadata: models.Metadata{ChunkID: "a:0:0"}}}, [][]float32{{1}}))

	resp, err := http.Get(srv.URL + "/sources")
	require.NoError(t, err)
	var sources struct {
		Sources []models.Source `json:"sources"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sources))
	resp.Body.Close()
	require.Len(t, sources.Sources, 1)

	resp, err = http.Get(srv.URL + "/chunks/count")
	require.NoError(t, err)
	var count struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&count))
	resp.Body.Close()
	assert.Equal(t, 1, count.Count)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTemporal{})
	resp, err := http.Get(srv.URL + "/ask")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "CF-API-4005", decodeError(t, resp))
}
