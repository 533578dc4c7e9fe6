// internal/actions/download.go
package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/browserpilot/browserpilot/api/schemas"
)

// maxConcurrentDownloads bounds the fan-out of one download invocation.
const maxConcurrentDownloads = 4

// fileDownload fetches one or more URLs into the downloads directory. Hosts
// are checked against the domain allow-list, bodies are transparently
// decompressed, and each file lands via a temp-file rename. A single failed
// URL does not fail the invocation as long as at least one succeeds.
type fileDownload struct {
	client       *http.Client
	cfg          *schemas.Configuration
	downloadsDir string
	log          *zap.Logger
}

var _ schemas.ActionDescriptor = (*fileDownload)(nil)

func newFileDownload(client *http.Client, cfg *schemas.Configuration, downloadsDir string, logger *zap.Logger) *fileDownload {
	if client == nil {
		client = &http.Client{Transport: NewCompressionMiddleware(nil)}
	}
	return &fileDownload{
		client:       client,
		cfg:          cfg,
		downloadsDir: downloadsDir,
		log:          logger.Named("file_download"),
	}
}

func (a *fileDownload) Name() string { return NameFileDownload }

func (a *fileDownload) Description() string {
	return "Download one or more URLs into the downloads directory. " +
		"Only hosts on the domain allow-list are fetched."
}

func (a *fileDownload) Execute(ctx context.Context, args schemas.ActionArgs) (string, error) {
	urls := args.URLs
	if len(urls) == 0 && args.URL != "" {
		urls = []string{args.URL}
	}
	if len(urls) == 0 {
		return "", fmt.Errorf("file-download requires at least one URL")
	}

	var (
		mu       sync.Mutex
		saved    []string
		failures []string
		claimed  = map[string]bool{}
	)

	// claim reserves a distinct target path per goroutine so two URLs with
	// the same base name never race on one file.
	claim := func(name string) string {
		mu.Lock()
		defer mu.Unlock()
		base := name
		for n := 2; ; n++ {
			p := filepath.Join(a.downloadsDir, name)
			if !claimed[p] {
				if _, err := os.Stat(p); os.IsNotExist(err) {
					claimed[p] = true
					return p
				}
			}
			ext := filepath.Ext(base)
			name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(base, ext), n, ext)
		}
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentDownloads)
	for i, rawURL := range urls {
		preferred := ""
		if len(urls) == 1 {
			preferred = args.Filename
		}
		g.Go(func() error {
			p, err := a.fetch(ctx, rawURL, i, args.TaskSeq, preferred, claim)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", rawURL, err))
				a.log.Warn("Download failed.", zap.String("url", rawURL), zap.Error(err))
				return nil
			}
			saved = append(saved, p)
			return nil
		})
	}
	_ = g.Wait()

	if len(saved) == 0 {
		return "", fmt.Errorf("all downloads failed: %s", strings.Join(failures, "; "))
	}

	ack := fmt.Sprintf("downloaded %d file(s) to %s", len(saved), a.downloadsDir)
	if len(failures) > 0 {
		ack += fmt.Sprintf("; %d failed (%s)", len(failures), strings.Join(failures, "; "))
	}
	a.log.Info("Download finished.",
		zap.Int("saved", len(saved)), zap.Int("failed", len(failures)))
	return ack, nil
}

func (a *fileDownload) fetch(ctx context.Context, rawURL string, index int, taskSeq uint64, preferred string, claim func(string) string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if !a.cfg.DomainAllowed(u.Hostname()) {
		return "", fmt.Errorf("host %q is outside the domain allow-list", u.Hostname())
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.PageLoadDuration())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	fallback := path.Base(u.Path)
	if fallback == "" || fallback == "." || fallback == "/" {
		fallback = fmt.Sprintf("download_%d_%d", taskSeq, index+1)
	}
	target := claim(safeFilename(preferred, fallback))

	if err := writeStream(target, resp.Body); err != nil {
		return "", err
	}
	return target, nil
}

// writeStream copies r into path through a same-directory temp file so a
// partial download never appears under the final name.
func writeStream(target string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, r)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, syncErr, closeErr); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
