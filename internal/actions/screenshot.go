// internal/actions/screenshot.go
package actions

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/workspace"
)

// elementScreenshot captures a PNG of the current page, scoped to a CSS
// selector when one is supplied.
type elementScreenshot struct {
	page           Page
	screenshotsDir string
	log            *zap.Logger
}

var _ schemas.ActionDescriptor = (*elementScreenshot)(nil)

func newElementScreenshot(page Page, screenshotsDir string, logger *zap.Logger) *elementScreenshot {
	return &elementScreenshot{
		page:           page,
		screenshotsDir: screenshotsDir,
		log:            logger.Named("element_screenshot"),
	}
}

func (a *elementScreenshot) Name() string { return NameElementScreenshot }

func (a *elementScreenshot) Description() string {
	return "Capture a PNG screenshot of the current page, or of a single element " +
		"when a CSS selector is given."
}

func (a *elementScreenshot) Execute(ctx context.Context, args schemas.ActionArgs) (string, error) {
	var (
		data []byte
		err  error
	)
	if args.Selector != "" {
		data, err = a.page.CaptureElementScreenshot(ctx, args.Selector)
	} else {
		data, err = a.page.CaptureScreenshot(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("screenshot capture failed: %w", err)
	}

	fallback := fmt.Sprintf("screenshot_%d_%s.png", args.TaskSeq, workspace.Timestamp(time.Now()))
	name := safeFilename(args.Filename, fallback)
	if filepath.Ext(name) == "" {
		name += ".png"
	}
	path := filepath.Join(a.screenshotsDir, name)
	if err := workspace.WriteFileAtomic(path, data); err != nil {
		return "", &schemas.PersistenceError{Path: path, Err: err}
	}

	a.log.Info("Screenshot captured.",
		zap.String("path", path), zap.String("selector", args.Selector))
	return fmt.Sprintf("screenshot saved to %s (%d bytes)", path, len(data)), nil
}
