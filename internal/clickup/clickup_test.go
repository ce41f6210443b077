package clickup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	ref, err := ParseURL("https://app.clickup.com/9012345/v/dc/8cdu8-1/8cdu8-42")
	require.NoError(t, err)
	assert.Equal(t, Ref{WorkspaceID: "9012345", DocID: "8cdu8-1", PageID: "8cdu8-42"}, ref)

	ref, err = ParseURL("https://app.clickup.com/9012345/v/dc/8cdu8-1/")
	require.NoError(t, err)
	assert.Equal(t, Ref{WorkspaceID: "9012345", DocID: "8cdu8-1"}, ref)

	ref, err = ParseURL("app.clickup.com/77/v/dc/doc?x=1")
	require.NoError(t, err)
	assert.Equal(t, "77/doc", ref.String())
}

func TestParseURLErrors(t *testing.T) {
	for _, raw := range []string{
		"https://app.clickup.com/9012345/docs/8cdu8-1",
		"https://app.clickup.com/9012345/v/dc/a/b/c",
		"https://app.clickup.com/v/dc/a",
		"https://app.clickup.com/1/v/dc/",
	} {
		_, err := ParseURL(raw)
		var pe *URLParseError
		require.True(t, errors.As(err, &pe), raw)
		assert.Equal(t, raw, pe.URL)
	}
}

const pageTree = `[
  {"id": "p1", "doc_id": "d1", "workspace_id": 42, "name": "Intro", "content": "hello",
   "pages": [
     {"id": "p1a", "doc_id": "d1", "workspace_id": 42, "name": "Child", "content": "child text",
      "pages": [{"id": "p1a1", "doc_id": "d1", "workspace_id": 42, "name": "Grandchild", "content": "deep"}]}
   ]},
  {"id": "p2", "doc_id": "d1", "workspace_id": 42, "name": "Second", "content": "more"}
]`

func TestFetchPagesFlattensParentsFirst(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(pageTree))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "pk_test", 600)
	pages, err := c.FetchPages(context.Background(), Ref{WorkspaceID: "42", DocID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, "pk_test", gotAuth)
	assert.Equal(t, "/workspaces/42/docs/d1/pages", gotPath)

	ids := make([]string, 0, len(pages))
	for _, p := range pages {
		ids = append(ids, p.ID.String())
		assert.Empty(t, p.Pages)
	}
	assert.Equal(t, []string{"p1", "p1a", "p1a1", "p2"}, ids)
	assert.Equal(t, "42", pages[0].WorkspaceID.String())
}

func TestFetchSubPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/workspaces/42/docs/d1/pages/p1a", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": "p1a", "doc_id": "d1", "workspace_id": "42", "name": "Child", "content": "x",
			"pages": [{"id": "p1a1", "name": "Grandchild", "content": "y"}]}`))
	}))
	defer srv.Close()

	ref := Ref{WorkspaceID: "42", DocID: "d1", PageID: "p1a"}
	docs, err := NewClient(srv.URL, "t", 600).Documents(context.Background(), ref, false)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "42/d1/p1a", docs[0].Metadata.Source)
	assert.Equal(t, "# Child\n\n\nx", docs[0].Content)
	// Missing ids fall back to the ref.
	assert.Equal(t, "42/d1/p1a1", docs[1].Metadata.Source)
	assert.Equal(t, 0, docs[1].Metadata.Page)
}

func TestRenderKeepsHeadingSeparator(t *testing.T) {
	p := Page{ID: "p9", Name: "Runbook\x00", Content: "\n\nStep one\r\n\n\n\n\nStep two"}
	doc := Render(Ref{WorkspaceID: "42", DocID: "d1"}, p, false)
	assert.Equal(t, "# Runbook\n\n\nStep one\n\nStep two", doc.Content)
	assert.Equal(t, "Runbook\x00", doc.Metadata.Title)
}

func TestDocumentsReturnsEmptyOnFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"err":"Token invalid"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	docs, err := NewClient(srv.URL, "bad", 600).Documents(context.Background(), Ref{WorkspaceID: "1", DocID: "2"}, true)
	require.Error(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
	var fe *SourceFetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusUnauthorized, fe.Status)
}

func TestFetchRejectsUnexpectedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"nope"`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "t", 600).FetchPages(context.Background(), Ref{WorkspaceID: "1", DocID: "2"})
	var fe *SourceFetchError
	require.True(t, errors.As(err, &fe))
}

func TestNormalize(t *testing.T) {
	in := "Deploys (weekly (on Fridays)) go out.[1] See [guide](https://x.io/a) now.[^2]\n" +
		"| Env | Owner |\n" +
		"|---|:---:|\n" +
		"| prod | ops, sre |\n"
	want := "Deploys (weekly) go out. See [guide](https://x.io/a) now.\n" +
		"Env,Owner\n" +
		"prod,\"ops, sre\"\n"
	assert.Equal(t, want, Normalize(in))
}

func TestStripNestedParensKeepsLinksInsideAsides(t *testing.T) {
	in := "x (see [doc](http://d/v2) first) y"
	assert.Equal(t, in, stripNestedParens(in))
}
