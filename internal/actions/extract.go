// internal/actions/extract.go
package actions

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/workspace"

	json "github.com/json-iterator/go"
)

// contentExtraction pulls the visible text of the current page (or of a
// selector-scoped fragment) and saves it as a saved-content record.
type contentExtraction struct {
	page       Page
	contentDir string
	log        *zap.Logger
}

var _ schemas.ActionDescriptor = (*contentExtraction)(nil)

func newContentExtraction(page Page, contentDir string, logger *zap.Logger) *contentExtraction {
	return &contentExtraction{
		page:       page,
		contentDir: contentDir,
		log:        logger.Named("content_extraction"),
	}
}

func (a *contentExtraction) Name() string { return NameContentExtraction }

func (a *contentExtraction) Description() string {
	return "Extract the readable text of the current page into the content directory. " +
		"A CSS selector narrows the extraction to matching elements."
}

func (a *contentExtraction) Execute(ctx context.Context, args schemas.ActionArgs) (string, error) {
	pageHTML, err := a.page.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse page HTML: %w", err)
	}

	selection := doc.Find("body")
	if sel := strings.TrimSpace(args.Selector); sel != "" {
		selection = doc.Find(sel)
		if selection.Length() == 0 {
			return "", fmt.Errorf("selector %q matched no elements", sel)
		}
	}

	text := strings.Join(strings.Fields(selection.Text()), " ")
	if text == "" {
		return "", fmt.Errorf("extraction produced no text")
	}

	sourceURL, err := a.page.CurrentURL(ctx)
	if err != nil {
		a.log.Warn("Could not determine page URL.", zap.Error(err))
	}

	record := schemas.SavedContent{
		Content:     text,
		SourceURL:   sourceURL,
		SavedAt:     time.Now().UTC().Format(time.RFC3339),
		ContentType: "text/plain",
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode extracted content: %w", err)
	}

	fallback := fmt.Sprintf("content_%d_%s.json", args.TaskSeq, workspace.Timestamp(time.Now()))
	name := safeFilename(args.Filename, fallback)
	if filepath.Ext(name) == "" {
		name += ".json"
	}
	path := filepath.Join(a.contentDir, name)
	if err := workspace.WriteFileAtomic(path, data); err != nil {
		return "", &schemas.PersistenceError{Path: path, Err: err}
	}

	a.log.Info("Content extracted.",
		zap.String("path", path), zap.Int("chars", len(text)))
	return fmt.Sprintf("extracted %d characters to %s", len(text), path), nil
}
