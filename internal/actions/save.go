// internal/actions/save.go
package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/workspace"

	json "github.com/json-iterator/go"
)

// savedEntry is one appended record in a session's saved-results file.
type savedEntry struct {
	TaskSeq uint64    `json:"task_seq"`
	SavedAt time.Time `json:"saved_at"`
	Text    string    `json:"text"`
}

// resultSaving appends agent-chosen snippets to an append-only JSON array
// keyed by session identifier. This is the only cross-invocation state an
// action is allowed to hold, and it lives on disk, not in the descriptor.
type resultSaving struct {
	resultsDir string
	log        *zap.Logger

	mu sync.Mutex // guards the read-append-write cycle per file
}

var _ schemas.ActionDescriptor = (*resultSaving)(nil)

func newResultSaving(resultsDir string, logger *zap.Logger) *resultSaving {
	return &resultSaving{
		resultsDir: resultsDir,
		log:        logger.Named("result_saving"),
	}
}

func (a *resultSaving) Name() string { return NameResultSaving }

func (a *resultSaving) Description() string {
	return "Save a piece of text found during the run into the session's results file. " +
		"Use when the task asks to collect or remember specific information."
}

func (a *resultSaving) Execute(ctx context.Context, args schemas.ActionArgs) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if args.Text == "" {
		return "", fmt.Errorf("result-saving requires text to save")
	}

	session := args.SessionID
	if session == "" {
		session = "default"
	}
	path := filepath.Join(a.resultsDir, fmt.Sprintf("saved_%s.json", safeFilename(session, "default")))

	a.mu.Lock()
	defer a.mu.Unlock()

	entries, err := a.readEntries(path)
	if err != nil {
		return "", err
	}
	entries = append(entries, savedEntry{
		TaskSeq: args.TaskSeq,
		SavedAt: time.Now().UTC(),
		Text:    args.Text,
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode saved results: %w", err)
	}
	if err := workspace.WriteFileAtomic(path, data); err != nil {
		return "", &schemas.PersistenceError{Path: path, Err: err}
	}

	a.log.Debug("Result entry saved.",
		zap.String("path", path), zap.Int("entries", len(entries)))
	return fmt.Sprintf("saved entry %d to %s", len(entries), filepath.Base(path)), nil
}

func (a *resultSaving) readEntries(path string) ([]savedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read saved results %s: %w", path, err)
	}
	var entries []savedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("saved results file %s is corrupt: %w", path, err)
	}
	return entries, nil
}
