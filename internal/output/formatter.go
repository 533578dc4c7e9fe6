// internal/output/formatter.go
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/workspace"

	json "github.com/json-iterator/go"
)

// Formatter shapes raw agent output into Results and owns their persistence
// inside the results directory. Task executions are serialized by the session
// loop, so the only write discipline needed here is the atomic rename.
type Formatter struct {
	resultsDir string
	log        *zap.Logger
}

// NewFormatter returns a formatter writing into resultsDir.
func NewFormatter(resultsDir string, logger *zap.Logger) *Formatter {
	return &Formatter{
		resultsDir: resultsDir,
		log:        logger.Named("output"),
	}
}

// Format shapes a raw agent result according to the configured output format.
// The empty format produces a textual Result with no structured records. A
// named format coerces the raw output record by record; each rejected record
// is logged, counted, and kept in raw form, and never aborts the batch. The
// caller owns TaskSeq, Elapsed, and any cancellation override of Status.
func (f *Formatter) Format(raw *schemas.RawResult, cfg *schemas.Configuration) *schemas.Result {
	result := &schemas.Result{Status: schemas.StatusFailure}
	if raw == nil {
		return result
	}
	if raw.Success {
		result.Status = schemas.StatusSuccess
	}
	result.Summary = raw.FinalAnswer

	if cfg.OutputFormat == schemas.FormatText {
		return result
	}

	records, rejects := coerceRecords(cfg.OutputFormat, raw.FinalAnswer)
	for _, cerr := range rejects {
		f.log.Warn("Record rejected during coercion.",
			zap.String("format", string(cerr.Format)),
			zap.Int("index", cerr.Index),
			zap.String("reason", cerr.Reason),
		)
	}
	result.Records = records
	result.CoercionFailures = len(rejects)
	return result
}

// Persist serializes the Result under a sequence- and timestamp-derived
// filename inside the results directory and records the path on the Result.
// Every persist of the same Result yields a distinct file; existing files are
// never overwritten. Failures come back as a PersistenceError so the caller
// can surface them and keep the session alive.
func (f *Formatter) Persist(result *schemas.Result) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", &schemas.PersistenceError{Path: f.resultsDir, Err: err}
	}

	name := fmt.Sprintf("result_%d_%s.json", result.TaskSeq, workspace.Timestamp(time.Now()))
	path := uniquePath(filepath.Join(f.resultsDir, name))
	if err := workspace.WriteFileAtomic(path, data); err != nil {
		return "", &schemas.PersistenceError{Path: path, Err: err}
	}

	result.SavedPath = path
	f.log.Debug("Result persisted.", zap.String("path", path))
	return path, nil
}

// ReadResult loads a persisted Result back from disk. Round-trips are
// lossless for the declared record shapes.
func ReadResult(path string) (*schemas.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result file %s: %w", path, err)
	}
	var result schemas.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode result file %s: %w", path, err)
	}
	return &result, nil
}

// uniquePath returns path itself when free, otherwise the first _<n> suffixed
// variant that is. Persisting twice within one timestamp granule still yields
// distinct names.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
