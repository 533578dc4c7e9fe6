// internal/browser/session_test.go
package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/browserpilot/browserpilot/api/schemas"
)

// newDetachedSession builds a Session around plain contexts so the
// pre-flight paths (validation, closed-state, cancellation) are testable
// without a browser. Any operation that reaches chromedp fails fast.
func newDetachedSession(t *testing.T, cfg *schemas.Configuration) *Session {
	t.Helper()
	tabCtx, tabCancel := context.WithCancel(context.Background())
	allocCtx, allocCancel := context.WithCancel(context.Background())
	s := &Session{
		id:          "test-session-0000",
		cfg:         cfg,
		log:         zaptest.NewLogger(t),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNavigateValidation(t *testing.T) {
	t.Parallel()
	cfg := &schemas.Configuration{
		PageLoadTimeout:     5,
		NavigationTimeoutMS: 5000,
		AllowedDomains:      []string{"example.com"},
	}
	s := newDetachedSession(t, cfg)

	t.Run("scheme must be http or https", func(t *testing.T) {
		err := s.Navigate(context.Background(), "ftp://example.com/file")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported navigation scheme")
	})

	t.Run("host outside the allow-list is refused", func(t *testing.T) {
		err := s.Navigate(context.Background(), "https://evil.invalid/login")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside the domain allow-list")
	})

	t.Run("subdomains of allowed hosts pass validation", func(t *testing.T) {
		// Passes the pre-flight checks, then fails at the detached tab; the
		// failure must be a navigation error, not an allow-list refusal.
		err := s.Navigate(context.Background(), "https://docs.example.com/")
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "allow-list")
	})
}

func TestRunOnClosedSession(t *testing.T) {
	t.Parallel()
	s := newDetachedSession(t, &schemas.Configuration{PageLoadTimeout: 5, NavigationTimeoutMS: 5000})
	require.NoError(t, s.Close())

	_, err := s.HTML(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session is closed")
}

func TestRunHonorsCallerCancellation(t *testing.T) {
	t.Parallel()
	s := newDetachedSession(t, &schemas.Configuration{PageLoadTimeout: 5, NavigationTimeoutMS: 5000})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Title(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	s := newDetachedSession(t, &schemas.Configuration{PageLoadTimeout: 5, NavigationTimeoutMS: 5000})

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.tabCtx.Err(), context.Canceled)
	assert.ErrorIs(t, s.allocCtx.Err(), context.Canceled)
}
