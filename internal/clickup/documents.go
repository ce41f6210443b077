package clickup

import (
	"context"
	"errors"

	"cragflow/internal/models"
	"cragflow/internal/util"

	"github.com/phuslu/log"
)

// Render turns a page into the document that gets chunked. Every page is a
// single logical page, so Metadata.Page stays 0.
func Render(ref Ref, p Page, normalize bool) models.Document {
	workspace := p.WorkspaceID.String()
	if workspace == "" {
		workspace = ref.WorkspaceID
	}
	doc := p.DocID.String()
	if doc == "" {
		doc = ref.DocID
	}
	content := p.Content
	if normalize {
		content = Normalize(content)
	}
	return models.Document{
		Content: "# " + util.SanitizeText(p.Name) + "\n\n\n" + util.SanitizeText(content),
		Metadata: models.Metadata{
			Source:      workspace + "/" + doc + "/" + p.ID.String(),
			Title:       p.Name,
			WorkspaceID: workspace,
			DocID:       doc,
			PageID:      p.ID.String(),
		},
	}
}

// Documents fetches and renders every page under ref. A fetch failure is
// logged and yields no documents together with the *SourceFetchError, so
// callers can carry on with an empty ingest.
func (c *Client) Documents(ctx context.Context, ref Ref, normalize bool) ([]models.Document, error) {
	pages, err := c.FetchPages(ctx, ref)
	if err != nil {
		var fe *SourceFetchError
		if errors.As(err, &fe) {
			log.Warn().Str("doc", ref.String()).Int("status", fe.Status).Err(fe.Err).Msg("clickup fetch failed; continuing with no documents")
		}
		return []models.Document{}, err
	}
	docs := make([]models.Document, 0, len(pages))
	for _, p := range pages {
		docs = append(docs, Render(ref, p, normalize))
	}
	log.Info().Str("doc", ref.String()).Int("pages", len(docs)).Msg("clickup doc loaded")
	return docs, nil
}
