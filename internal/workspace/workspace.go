// internal/workspace/workspace.go
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/browserpilot/browserpilot/api/schemas"

	json "github.com/json-iterator/go"
)

// Subdirectory names under the output directory. Every artifact a run
// produces lands in exactly one of these.
const (
	resultsDirName     = "results"
	screenshotsDirName = "screenshots"
	contentDirName     = "content"
	tablesDirName      = "tables"
	downloadsDirName   = "downloads"
	recordingsDirName  = "recordings"
	tracesDirName      = "traces"

	logFileName = "browserpilot.log"

	dirPerm  = 0o755
	filePerm = 0o644
)

// Layout is the prepared output directory tree. All paths are absolute once
// Prepare has run; accessors never create directories themselves.
type Layout struct {
	root string
}

// Prepare resolves the configured output directory, creates the full
// artifact tree under it, and returns the resulting layout. It is safe to
// call against an already-prepared directory.
func Prepare(cfg *schemas.Configuration) (*Layout, error) {
	root, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory %q: %w", cfg.OutputDir, err)
	}

	l := &Layout{root: root}
	for _, dir := range []string{
		l.root,
		l.ResultsDir(),
		l.ScreenshotsDir(),
		l.ContentDir(),
		l.TablesDir(),
		l.DownloadsDir(),
		l.RecordingsDir(),
		l.TracesDir(),
	} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, fmt.Errorf("failed to create workspace directory %q: %w", dir, err)
		}
	}
	return l, nil
}

// Root returns the absolute output directory.
func (l *Layout) Root() string { return l.root }

// LogFile returns the path of the rotating main log inside the workspace.
func (l *Layout) LogFile() string { return filepath.Join(l.root, logFileName) }

// ResultsDir holds persisted task results and saved-result entries.
func (l *Layout) ResultsDir() string { return filepath.Join(l.root, resultsDirName) }

// ScreenshotsDir holds page and element screenshots.
func (l *Layout) ScreenshotsDir() string { return filepath.Join(l.root, screenshotsDirName) }

// ContentDir holds extracted page content.
func (l *Layout) ContentDir() string { return filepath.Join(l.root, contentDirName) }

// TablesDir holds extracted table workbooks.
func (l *Layout) TablesDir() string { return filepath.Join(l.root, tablesDirName) }

// DownloadsDir holds files fetched by the download action.
func (l *Layout) DownloadsDir() string { return filepath.Join(l.root, downloadsDirName) }

// RecordingsDir holds session recordings.
func (l *Layout) RecordingsDir() string { return filepath.Join(l.root, recordingsDirName) }

// TracesDir holds browser traces.
func (l *Layout) TracesDir() string { return filepath.Join(l.root, tracesDirName) }

// WriteConversation persists the per-task conversation transcript as
// indented JSON at conversation_<seq>_<timestamp>.json in the workspace root
// and returns the written path.
func (l *Layout) WriteConversation(seq uint64, payload any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode conversation for task %d: %w", seq, err)
	}
	name := fmt.Sprintf("conversation_%d_%s.json", seq, Timestamp(time.Now()))
	path := filepath.Join(l.root, name)
	if err := WriteFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// Timestamp renders t in the compact UTC form used in artifact filenames.
func Timestamp(t time.Time) string {
	return t.UTC().Format("20060102T150405.000000000")
}

// WriteFileAtomic writes data to path through a same-directory temp file
// with an fsync before the rename, so readers of the shared tree only ever
// observe complete files. The temp file is removed on every failure path.
func WriteFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}
	_, writeErr := file.Write(data)
	syncErr := file.Sync()
	closeErr := file.Close()
	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return writeErr
	}
	if syncErr != nil {
		_ = os.Remove(tmpPath)
		return syncErr
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return closeErr
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
