// internal/actions/table.go
package actions

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/workspace"
)

// tableExtraction parses every <table> on the current page and writes them
// into one xlsx workbook, one sheet per table.
type tableExtraction struct {
	page      Page
	tablesDir string
	log       *zap.Logger
}

var _ schemas.ActionDescriptor = (*tableExtraction)(nil)

func newTableExtraction(page Page, tablesDir string, logger *zap.Logger) *tableExtraction {
	return &tableExtraction{
		page:      page,
		tablesDir: tablesDir,
		log:       logger.Named("table_extraction"),
	}
}

func (a *tableExtraction) Name() string { return NameTableExtraction }

func (a *tableExtraction) Description() string {
	return "Extract every HTML table on the current page into an Excel workbook, " +
		"one sheet per table."
}

func (a *tableExtraction) Execute(ctx context.Context, args schemas.ActionArgs) (string, error) {
	pageHTML, err := a.page.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}

	tables, err := parseTables(strings.NewReader(pageHTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse page HTML: %w", err)
	}
	if len(tables) == 0 {
		return "", fmt.Errorf("page contains no tables")
	}

	book := excelize.NewFile()
	defer book.Close()

	for ti, table := range tables {
		sheet := fmt.Sprintf("Table%d", ti+1)
		if ti == 0 {
			// The new workbook starts with a default sheet; rename it instead
			// of leaving an empty one behind.
			if err := book.SetSheetName(book.GetSheetName(0), sheet); err != nil {
				return "", fmt.Errorf("failed to name sheet %s: %w", sheet, err)
			}
		} else {
			if _, err := book.NewSheet(sheet); err != nil {
				return "", fmt.Errorf("failed to add sheet %s: %w", sheet, err)
			}
		}
		for ri, row := range table {
			for ci, cell := range row {
				cellName, err := excelize.CoordinatesToCellName(ci+1, ri+1)
				if err != nil {
					return "", fmt.Errorf("invalid cell coordinates %d,%d: %w", ci+1, ri+1, err)
				}
				if err := book.SetCellValue(sheet, cellName, cell); err != nil {
					return "", fmt.Errorf("failed to set cell %s: %w", cellName, err)
				}
			}
		}
	}

	buf, err := book.WriteToBuffer()
	if err != nil {
		return "", fmt.Errorf("failed to serialize workbook: %w", err)
	}

	fallback := fmt.Sprintf("tables_%d_%s.xlsx", args.TaskSeq, workspace.Timestamp(time.Now()))
	name := safeFilename(args.Filename, fallback)
	if filepath.Ext(name) == "" {
		name += ".xlsx"
	}
	path := filepath.Join(a.tablesDir, name)
	if err := workspace.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return "", &schemas.PersistenceError{Path: path, Err: err}
	}

	a.log.Info("Tables extracted.",
		zap.String("path", path), zap.Int("tables", len(tables)))
	return fmt.Sprintf("extracted %d table(s) to %s", len(tables), path), nil
}

// parseTables walks the document and returns every top-level table as rows of
// cell texts. Nested tables are folded into their enclosing cell's text.
func parseTables(r *strings.Reader) ([][][]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var tables [][][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "table" {
			if rows := parseTableRows(n); len(rows) > 0 {
				tables = append(tables, rows)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return tables, nil
}

func parseTableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, nodeText(c))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows
}

// nodeText collapses the text content of a node into single-spaced form.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
