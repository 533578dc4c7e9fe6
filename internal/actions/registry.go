// internal/actions/registry.go
package actions

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/workspace"
)

// Catalog identifiers of the built-in side-actions. Each is independently
// excludable through EXCLUDED_ACTIONS.
const (
	NameConfirmationGate  = "confirmation-gate"
	NameResultSaving      = "result-saving"
	NameElementScreenshot = "element-screenshot"
	NameContentExtraction = "content-extraction"
	NameTableExtraction   = "table-extraction"
	NameFileDownload      = "file-download"
)

// Page is the browser surface the capture and extraction actions consume.
// *browser.Session satisfies it.
type Page interface {
	HTML(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)
	CaptureScreenshot(ctx context.Context) ([]byte, error)
	CaptureElementScreenshot(ctx context.Context, selector string) ([]byte, error)
}

// Deps carries the collaborators of the built-in catalog.
type Deps struct {
	Layout   *workspace.Layout
	Page     Page
	Prompter schemas.Prompter
	Config   *schemas.Configuration
	// HTTPClient serves the download action. Nil selects a default client
	// with transparent decompression.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Registry holds the catalog of side-actions keyed by stable identifier.
// Registration happens once at startup before the session loop begins; the
// catalog is read-only afterwards, so lookups need no locking.
type Registry struct {
	log     *zap.Logger
	catalog map[string]schemas.ActionDescriptor
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		log:     logger.Named("actions"),
		catalog: make(map[string]schemas.ActionDescriptor),
	}
}

// Register adds a descriptor to the catalog. A second registration under an
// existing identifier fails with DuplicateActionError and leaves the catalog
// untouched.
func (r *Registry) Register(d schemas.ActionDescriptor) error {
	name := d.Name()
	if _, exists := r.catalog[name]; exists {
		return &schemas.DuplicateActionError{Name: name}
	}
	r.catalog[name] = d
	r.order = append(r.order, name)
	r.log.Debug("Action registered.", zap.String("action", name))
	return nil
}

// Catalog returns the registered identifiers in registration order.
func (r *Registry) Catalog() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// EnabledSet returns the catalog minus the configuration's exclusion set, in
// registration order. An exclusion naming an unknown identifier fails with
// UnknownActionError before any filtering happens, so operator typos surface
// at startup instead of being ignored. The catalog itself is never mutated.
func (r *Registry) EnabledSet(cfg *schemas.Configuration) ([]schemas.ActionDescriptor, error) {
	excluded := make(map[string]bool, len(cfg.ExcludedActions))
	for _, name := range cfg.ExcludedActions {
		name = strings.TrimSpace(name)
		if _, known := r.catalog[name]; !known {
			return nil, &schemas.UnknownActionError{Name: name, Catalog: r.Catalog()}
		}
		excluded[name] = true
	}

	enabled := make([]schemas.ActionDescriptor, 0, len(r.order)-len(excluded))
	for _, name := range r.order {
		if !excluded[name] {
			enabled = append(enabled, r.catalog[name])
		}
	}
	return enabled, nil
}

// NewBuiltinRegistry builds the fixed startup catalog: the six built-in
// actions, wired to their collaborators.
func NewBuiltinRegistry(deps Deps) (*Registry, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	r := NewRegistry(deps.Logger)

	builtins := []schemas.ActionDescriptor{
		newConfirmationGate(deps.Prompter, deps.Logger),
		newResultSaving(deps.Layout.ResultsDir(), deps.Logger),
		newElementScreenshot(deps.Page, deps.Layout.ScreenshotsDir(), deps.Logger),
		newContentExtraction(deps.Page, deps.Layout.ContentDir(), deps.Logger),
		newTableExtraction(deps.Page, deps.Layout.TablesDir(), deps.Logger),
		newFileDownload(deps.HTTPClient, deps.Config, deps.Layout.DownloadsDir(), deps.Logger),
	}
	for _, d := range builtins {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// safeFilename flattens an operator- or agent-supplied filename to a bare
// base name, falling back when nothing usable remains.
func safeFilename(name, fallback string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return fallback
	}
	return name
}
