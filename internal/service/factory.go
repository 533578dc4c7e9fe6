// internal/service/factory.go
package service

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/actions"
	"github.com/browserpilot/browserpilot/internal/agent"
	"github.com/browserpilot/browserpilot/internal/browser"
	"github.com/browserpilot/browserpilot/internal/llmclient"
	"github.com/browserpilot/browserpilot/internal/output"
	"github.com/browserpilot/browserpilot/internal/session"
	"github.com/browserpilot/browserpilot/internal/workspace"
)

// BrowserSession is the browser surface a session consumes: the agent's
// driving interface, the capture surface of the actions, and teardown.
// *browser.Session satisfies it.
type BrowserSession interface {
	agent.Browser
	actions.Page
	io.Closer
}

// newBrowserSession is swappable so factory tests assemble a session without
// launching Chrome.
var newBrowserSession = func(ctx context.Context, cfg *schemas.Configuration, logger *zap.Logger) (BrowserSession, error) {
	return browser.NewSession(ctx, cfg, logger)
}

// Deps carries what Build cannot make itself: the resolved configuration,
// the prepared workspace, the logger, and the terminal streams.
type Deps struct {
	Config *schemas.Configuration
	Layout *workspace.Layout
	Logger *zap.Logger
	// Stdin and Stdout default to the process streams when nil.
	Stdin  io.Reader
	Stdout io.Writer
}

// Build performs the dependency wiring of one interactive session: provider
// client, browser session, session loop, and the action catalog. The loop is
// constructed before the registry because the registry needs it as the
// confirmation gate's prompter; the resolved enabled set is handed back to
// the loop afterwards. On a mid-sequence failure the partially built
// components are shut down before the error returns.
func Build(ctx context.Context, deps Deps) (*Components, error) {
	c := &Components{log: deps.Logger.Named("service")}

	var initErr error
	defer func() {
		if initErr != nil {
			c.log.Warn("Session assembly failed; shutting down partially built components.", zap.Error(initErr))
			c.Shutdown()
		}
	}()

	llm, err := llmclient.New(deps.Config, deps.Logger)
	if err != nil {
		initErr = err
		return nil, initErr
	}
	c.LLM = llm

	sess, err := newBrowserSession(ctx, deps.Config, deps.Logger)
	if err != nil {
		initErr = err
		return nil, initErr
	}
	c.Browser = sess

	c.Loop = session.NewLoop(session.Deps{
		Config:    deps.Config,
		Runner:    agent.NewRunner(llm, sess, deps.Logger),
		Formatter: output.NewFormatter(deps.Layout.ResultsDir(), deps.Logger),
		Layout:    deps.Layout,
		Logger:    deps.Logger,
		Stdin:     deps.Stdin,
		Stdout:    deps.Stdout,
	})

	registry, err := actions.NewBuiltinRegistry(actions.Deps{
		Layout:   deps.Layout,
		Page:     sess,
		Prompter: c.Loop,
		Config:   deps.Config,
		Logger:   deps.Logger,
	})
	if err != nil {
		initErr = err
		return nil, initErr
	}
	enabled, err := registry.EnabledSet(deps.Config)
	if err != nil {
		initErr = err
		return nil, initErr
	}
	c.Loop.SetActions(enabled)
	c.Enabled = enabled

	return c, nil
}
