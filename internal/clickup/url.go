package clickup

import (
	"fmt"
	"net/url"
	"strings"
)

const docSeparator = "/v/dc/"

// Ref addresses a ClickUp doc, or one page subtree of it when PageID is set.
type Ref struct {
	WorkspaceID string `json:"workspace_id"`
	DocID       string `json:"doc_id"`
	PageID      string `json:"page_id,omitempty"`
}

func (r Ref) String() string {
	s := r.WorkspaceID + "/" + r.DocID
	if r.PageID != "" {
		s += "/" + r.PageID
	}
	return s
}

// URLParseError reports an ingestion URL that does not address a doc.
type URLParseError struct {
	URL    string
	Reason string
}

func (e *URLParseError) Error() string {
	return fmt.Sprintf("invalid clickup doc url %q: %s", e.URL, e.Reason)
}

// ParseURL accepts https://app.clickup.com/{workspace}/v/dc/{doc}[/{page}].
func ParseURL(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, &URLParseError{URL: raw, Reason: err.Error()}
	}
	path := u.Path
	if u.Host == "" {
		// Scheme-less input such as "app.clickup.com/123/v/dc/abc".
		if i := strings.Index(path, "/"); i >= 0 {
			path = path[i:]
		}
	}
	before, after, found := strings.Cut(path, docSeparator)
	if !found {
		return Ref{}, &URLParseError{URL: raw, Reason: "missing " + docSeparator + " separator"}
	}
	workspace := strings.Trim(before, "/")
	if workspace == "" || strings.Contains(workspace, "/") {
		return Ref{}, &URLParseError{URL: raw, Reason: "workspace id must be the only path segment before " + docSeparator}
	}
	ids := strings.Split(strings.TrimSuffix(after, "/"), "/")
	if len(ids) > 2 {
		return Ref{}, &URLParseError{URL: raw, Reason: fmt.Sprintf("expected doc id and optional page id, got %d segments", len(ids))}
	}
	ref := Ref{WorkspaceID: workspace, DocID: ids[0]}
	if len(ids) == 2 {
		ref.PageID = ids[1]
	}
	if ref.DocID == "" || (len(ids) == 2 && ref.PageID == "") {
		return Ref{}, &URLParseError{URL: raw, Reason: "empty doc or page id"}
	}
	return ref, nil
}
