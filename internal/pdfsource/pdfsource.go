// Package pdfsource loads local PDF files as one document per page.
package pdfsource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cragflow/internal/models"
	"cragflow/internal/util"

	"github.com/ledongthuc/pdf"
)

// Load returns one document per non-empty page. Metadata.Page is the
// 0-based page ordinal and Metadata.Source is the path as given.
func Load(path string) ([]models.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	docs := make([]models.Document, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract text from page %d: %w", i, err)
		}
		text = util.SanitizeText(text)
		if text == "" {
			continue
		}
		docs = append(docs, models.Document{
			Content:  text,
			Metadata: models.Metadata{Source: path, Page: i - 1, Title: title},
		})
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, util.ErrNoExtractableText)
	}
	return docs, nil
}

// List returns the sorted .pdf files directly under dir.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	paths := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".pdf") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
