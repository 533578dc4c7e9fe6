// internal/agent/runner_test.go
package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/llmclient"
)

// fakeLLM replays a scripted sequence of replies and records every request.
type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	reqs    []llmclient.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llmclient.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return `{"action":"finish","answer":"out of script"}`, nil
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func (f *fakeLLM) Model() string { return "fake-model" }

func (f *fakeLLM) requests() []llmclient.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llmclient.Request(nil), f.reqs...)
}

// fakeBrowser records interactions and serves canned page state.
type fakeBrowser struct {
	url, title, text string
	shot             []byte
	shotErr          error
	navErr           error
	clickErr         error

	navigated []string
	clicked   []string
	typed     []string
	scrolled  []string
}

func (f *fakeBrowser) ID() string { return "sess-fake" }

func (f *fakeBrowser) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return f.navErr
}

func (f *fakeBrowser) CurrentURL(context.Context) (string, error) { return f.url, nil }
func (f *fakeBrowser) Title(context.Context) (string, error)      { return f.title, nil }
func (f *fakeBrowser) Text(context.Context) (string, error)       { return f.text, nil }

func (f *fakeBrowser) Click(_ context.Context, selector string) error {
	f.clicked = append(f.clicked, selector)
	return f.clickErr
}

func (f *fakeBrowser) Type(_ context.Context, selector, text string) error {
	f.typed = append(f.typed, selector+"="+text)
	return nil
}

func (f *fakeBrowser) Scroll(_ context.Context, direction string) error {
	f.scrolled = append(f.scrolled, direction)
	return nil
}

func (f *fakeBrowser) CaptureScreenshot(context.Context) ([]byte, error) {
	return f.shot, f.shotErr
}

// fakeAction implements schemas.ActionDescriptor and records invocations.
type fakeAction struct {
	name string
	ack  string
	err  error
	args []schemas.ActionArgs
}

func (f *fakeAction) Name() string        { return f.name }
func (f *fakeAction) Description() string { return "records invocations for tests" }

func (f *fakeAction) Execute(_ context.Context, args schemas.ActionArgs) (string, error) {
	f.args = append(f.args, args)
	return f.ack, f.err
}

func newTestRunner(t *testing.T, llm *fakeLLM, b *fakeBrowser) *Runner {
	t.Helper()
	r := NewRunner(llm, b, zaptest.NewLogger(t))
	r.limiter = rate.NewLimiter(rate.Inf, 1)
	return r
}

func testConfig() *schemas.Configuration {
	return &schemas.Configuration{
		Provider:     schemas.ProviderOpenAI,
		SystemPrompt: schemas.PromptDefault,
		MaxSteps:     10,
	}
}

func testTask() schemas.Task {
	return schemas.Task{Seq: 3, Text: "find the release notes", CreatedAt: time.Now()}
}

func TestRunNavigatesThenFinishes(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{replies: []string{
		`{"thought":"open the site","action":"navigate","url":"https://example.com"}`,
		`{"thought":"found it","action":"finish","answer":"v2.1 released"}`,
	}}
	b := &fakeBrowser{url: "about:blank", title: "blank"}
	r := newTestRunner(t, llm, b)

	res, err := r.Run(context.Background(), testTask(), testConfig(), nil)
	require.NoError(t, err)

	assert.Equal(t, "v2.1 released", res.FinalAnswer)
	assert.True(t, res.Success, "a finish without a success field counts as success")
	assert.Equal(t, 2, res.StepsUsed)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, "navigate", res.Steps[0].Action)
	assert.Equal(t, "navigated to https://example.com", res.Steps[0].Outcome)
	assert.Equal(t, []string{"https://example.com"}, b.navigated)

	reqs := llm.requests()
	require.Len(t, reqs, 2)
	assert.True(t, reqs[0].ForceJSON)
	assert.Contains(t, reqs[0].User, "find the release notes")
	assert.Contains(t, reqs[1].User, "navigated to https://example.com",
		"the second prompt must replay the first step's outcome")
}

func TestRunFeedsDispatchFailureBackToModel(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{replies: []string{
		`{"action":"click","selector":"#gone"}`,
		`{"action":"finish","answer":"gave up","success":false}`,
	}}
	b := &fakeBrowser{clickErr: errors.New("element not visible")}
	r := newTestRunner(t, llm, b)

	res, err := r.Run(context.Background(), testTask(), testConfig(), nil)
	require.NoError(t, err, "a failed click is an outcome, not a run failure")

	assert.False(t, res.Success)
	assert.Contains(t, res.Steps[0].Outcome, "click failed")

	reqs := llm.requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[1].User, "click failed: element not visible")
}

func TestRunInvokesEnabledAction(t *testing.T) {
	t.Parallel()

	action := &fakeAction{name: "table-extraction", ack: "extracted 2 tables to tables.xlsx"}
	llm := &fakeLLM{replies: []string{
		`{"action":"invoke-action","name":"table-extraction","args":{"filename":"tables"}}`,
		`{"action":"finish","answer":"done"}`,
	}}
	r := newTestRunner(t, llm, &fakeBrowser{})

	res, err := r.Run(context.Background(), testTask(), testConfig(), []schemas.ActionDescriptor{action})
	require.NoError(t, err)

	require.Len(t, action.args, 1)
	assert.Equal(t, "tables", action.args[0].Filename)
	assert.Equal(t, "sess-fake", action.args[0].SessionID, "the session key comes from the browser, not the model")
	assert.Equal(t, uint64(3), action.args[0].TaskSeq)
	assert.Equal(t, "extracted 2 tables to tables.xlsx", res.Steps[0].Outcome)
}

func TestRunReportsUnknownActionAsOutcome(t *testing.T) {
	t.Parallel()

	action := &fakeAction{name: "result-saving", ack: "saved"}
	llm := &fakeLLM{replies: []string{
		`{"action":"invoke-action","name":"file-download"}`,
		`{"action":"finish","answer":"done"}`,
	}}
	r := newTestRunner(t, llm, &fakeBrowser{})

	res, err := r.Run(context.Background(), testTask(), testConfig(), []schemas.ActionDescriptor{action})
	require.NoError(t, err)

	assert.Contains(t, res.Steps[0].Outcome, `no enabled action named "file-download"`)
	assert.Contains(t, res.Steps[0].Outcome, "result-saving")
	assert.Empty(t, action.args)
}

func TestRunMalformedDecisionConsumesAStep(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{replies: []string{
		"I think I should probably look around first.",
		`{"action":"finish","answer":"recovered"}`,
	}}
	r := newTestRunner(t, llm, &fakeBrowser{})

	res, err := r.Run(context.Background(), testTask(), testConfig(), nil)
	require.NoError(t, err)

	require.Len(t, res.Steps, 2)
	assert.Equal(t, "invalid", res.Steps[0].Action)
	assert.Equal(t, "recovered", res.FinalAnswer)
}

func TestRunStopsAtStepBudget(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{replies: []string{
		`{"action":"scroll"}`,
		`{"action":"scroll"}`,
		`{"action":"scroll"}`,
	}}
	b := &fakeBrowser{}
	r := newTestRunner(t, llm, b)
	cfg := testConfig()
	cfg.MaxSteps = 2

	res, err := r.Run(context.Background(), testTask(), cfg, nil)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, 2, res.StepsUsed)
	assert.Contains(t, res.FinalAnswer, "step limit")
	assert.Equal(t, []string{"down", "down"}, b.scrolled, "omitted direction defaults to down")
}

func TestRunWrapsProviderFailure(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{err: errors.New("upstream melted")}
	r := newTestRunner(t, llm, &fakeBrowser{})

	res, err := r.Run(context.Background(), testTask(), testConfig(), nil)
	require.Error(t, err)
	assert.Nil(t, res)

	var execErr *schemas.AgentExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, uint64(3), execErr.TaskSeq)
}

func TestRunSurfacesCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newTestRunner(t, &fakeLLM{}, &fakeBrowser{})

	_, err := r.Run(ctx, testTask(), testConfig(), nil)
	require.ErrorIs(t, err, context.Canceled)

	var execErr *schemas.AgentExecutionError
	assert.False(t, errors.As(err, &execErr), "cancellation must not read as an execution failure")
}

func TestRunVision(t *testing.T) {
	t.Parallel()

	t.Run("screenshot attached when enabled", func(t *testing.T) {
		t.Parallel()
		llm := &fakeLLM{replies: []string{`{"action":"finish","answer":"ok"}`}}
		b := &fakeBrowser{shot: []byte{0x89, 0x50, 0x4e, 0x47}}
		r := newTestRunner(t, llm, b)
		cfg := testConfig()
		cfg.UseVision = true

		_, err := r.Run(context.Background(), testTask(), cfg, nil)
		require.NoError(t, err)
		require.Len(t, llm.requests(), 1)
		assert.Equal(t, b.shot, llm.requests()[0].ImagePNG)
	})

	t.Run("screenshot failure degrades to text only", func(t *testing.T) {
		t.Parallel()
		llm := &fakeLLM{replies: []string{`{"action":"finish","answer":"ok"}`}}
		b := &fakeBrowser{shotErr: errors.New("tab crashed")}
		r := newTestRunner(t, llm, b)
		cfg := testConfig()
		cfg.UseVision = true

		res, err := r.Run(context.Background(), testTask(), cfg, nil)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Empty(t, llm.requests()[0].ImagePNG)
	})

	t.Run("no screenshot requested when disabled", func(t *testing.T) {
		t.Parallel()
		llm := &fakeLLM{replies: []string{`{"action":"finish","answer":"ok"}`}}
		b := &fakeBrowser{shot: []byte{0x01}}
		r := newTestRunner(t, llm, b)

		_, err := r.Run(context.Background(), testTask(), testConfig(), nil)
		require.NoError(t, err)
		assert.Empty(t, llm.requests()[0].ImagePNG)
	})
}

func TestRunTypesIntoFields(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{replies: []string{
		`{"action":"type","selector":"#search","text":"golang"}`,
		`{"action":"finish","answer":"typed"}`,
	}}
	b := &fakeBrowser{}
	r := newTestRunner(t, llm, b)

	res, err := r.Run(context.Background(), testTask(), testConfig(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"#search=golang"}, b.typed)
	assert.Equal(t, "typed 6 characters into #search", res.Steps[0].Outcome)
}
