// internal/browser/options.go
package browser

import (
	"context"
	"fmt"
	"sort"

	"github.com/chromedp/chromedp"

	"github.com/browserpilot/browserpilot/api/schemas"
)

// allocatorFlags computes the Chrome launch flags for connections that start
// a process (managed and local-path modes). Keys are flag names without the
// leading dashes; returned sorted-stable via flagOptions.
func allocatorFlags(cfg *schemas.Configuration) map[string]any {
	flags := map[string]any{
		// Required on hardened and containerized hosts.
		"no-sandbox":            true,
		"disable-dev-shm-usage": true,
		// Hide the automation banner and infobars.
		"disable-blink-features": "AutomationControlled",
		"disable-extensions":     true,
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		flags["window-size"] = fmt.Sprintf("%d,%d", cfg.ViewportWidth, cfg.ViewportHeight)
	}
	return flags
}

// flagOptions converts a flag map into allocator options in deterministic
// order.
func flagOptions(flags map[string]any) []chromedp.ExecAllocatorOption {
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]chromedp.ExecAllocatorOption, 0, len(names))
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}
	return opts
}

// execAllocatorOptions assembles the full launch option set on top of the
// chromedp defaults (headless, no-first-run, and friends).
func execAllocatorOptions(cfg *schemas.Configuration) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], flagOptions(allocatorFlags(cfg))...)
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}
	return opts
}

// newAllocator creates the allocator context for the configured connection
// mode. Remote modes attach to an existing browser; the other modes launch
// one. No connection is made until the first action runs.
func newAllocator(ctx context.Context, cfg *schemas.Configuration) (context.Context, context.CancelFunc) {
	switch cfg.ConnectionMode() {
	case schemas.ConnectRemoteCDP:
		// A DevTools HTTP endpoint; chromedp resolves the WebSocket URL
		// through /json/version.
		return chromedp.NewRemoteAllocator(ctx, cfg.CDPURL)
	case schemas.ConnectRemoteWSS:
		// Already a WebSocket URL, use it verbatim.
		return chromedp.NewRemoteAllocator(ctx, cfg.WSSURL, chromedp.NoModifyURL)
	default:
		return chromedp.NewExecAllocator(ctx, execAllocatorOptions(cfg)...)
	}
}
