package clickup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.clickup.com/api/v3"

// SourceFetchError wraps any failure to reach or decode the docs API.
type SourceFetchError struct {
	Ref    Ref
	Status int
	Err    error
}

func (e *SourceFetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetch clickup doc %s: status %d: %v", e.Ref, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch clickup doc %s: %v", e.Ref, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// Page is one node of a doc's page tree. Children are flattened away by
// FetchPages.
type Page struct {
	ID          FlexID `json:"id"`
	DocID       FlexID `json:"doc_id"`
	WorkspaceID FlexID `json:"workspace_id"`
	Name        string `json:"name"`
	Content     string `json:"content"`
	Pages       []Page `json:"pages,omitempty"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a client allowing perMinute requests per minute.
func NewClient(baseURL, token string, perMinute int) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if perMinute <= 0 {
		perMinute = 100
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), max(1, perMinute/10)),
	}
}

// FetchPages returns the doc's pages in depth-first order, parents before
// children. With ref.PageID set only that page's subtree is returned.
func (c *Client) FetchPages(ctx context.Context, ref Ref) ([]Page, error) {
	endpoint := fmt.Sprintf("%s/workspaces/%s/docs/%s/pages", c.baseURL, url.PathEscape(ref.WorkspaceID), url.PathEscape(ref.DocID))
	if ref.PageID != "" {
		endpoint += "/" + url.PathEscape(ref.PageID)
	}
	endpoint += "?content_format=text%2Fmd"

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &SourceFetchError{Ref: ref, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &SourceFetchError{Ref: ref, Err: err}
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &SourceFetchError{Ref: ref, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SourceFetchError{Ref: ref, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 400 {
		return nil, &SourceFetchError{Ref: ref, Status: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}
	pages, err := decodePages(body)
	if err != nil {
		return nil, &SourceFetchError{Ref: ref, Status: resp.StatusCode, Err: err}
	}
	return Flatten(pages), nil
}

// decodePages accepts a list of pages or a single page object.
func decodePages(body []byte) ([]Page, error) {
	body = bytes.TrimSpace(body)
	switch {
	case len(body) > 0 && body[0] == '[':
		var pages []Page
		if err := json.Unmarshal(body, &pages); err != nil {
			return nil, fmt.Errorf("decode page list: %w", err)
		}
		return pages, nil
	case len(body) > 0 && body[0] == '{':
		var page Page
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode page: %w", err)
		}
		return []Page{page}, nil
	default:
		return nil, fmt.Errorf("response is neither a page list nor a page object")
	}
}

// Flatten walks the page tree depth-first, emitting each parent before its
// children. The returned pages carry no Pages of their own.
func Flatten(pages []Page) []Page {
	out := make([]Page, 0, len(pages))
	var walk func(p Page)
	walk = func(p Page) {
		children := p.Pages
		p.Pages = nil
		out = append(out, p)
		for _, child := range children {
			walk(child)
		}
	}
	for _, p := range pages {
		walk(p)
	}
	return out
}

// FlexID decodes ids that the API sends either as strings or numbers.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", string(b))
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }
