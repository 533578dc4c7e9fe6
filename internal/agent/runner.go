// internal/agent/runner.go
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/llmclient"
	"github.com/browserpilot/browserpilot/internal/llmutil"
)

// Browser is the page surface the runner drives. *browser.Session satisfies
// it; tests substitute a fake.
type Browser interface {
	ID() string
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Scroll(ctx context.Context, direction string) error
	CaptureScreenshot(ctx context.Context) ([]byte, error)
}

// Completion rate limit shared across all providers. One decision per task
// step keeps the agent well under every provider's request quota.
var defaultRequestInterval = 500 * time.Millisecond

// maxObservedTextChars bounds the page-text excerpt included in each prompt
// so long documents cannot blow the context window.
const maxObservedTextChars = 6000

// historyLookbackSteps bounds how many prior steps each prompt replays.
const historyLookbackSteps = 10

// Runner drives one task to completion: observe the page, ask the model for
// a decision, dispatch it, repeat. It implements the automation contract the
// session loop depends on.
type Runner struct {
	llm     llmclient.Client
	browser Browser
	limiter *rate.Limiter
	log     *zap.Logger
}

// Statically assert that Runner satisfies the automation contract.
var _ schemas.AgentRunner = (*Runner)(nil)

// NewRunner wires the runner to its collaborators.
func NewRunner(llm llmclient.Client, b Browser, logger *zap.Logger) *Runner {
	return &Runner{
		llm:     llm,
		browser: b,
		limiter: rate.NewLimiter(rate.Every(defaultRequestInterval), 1),
		log:     logger.Named("agent"),
	}
}

// observation is one snapshot of the page handed to the model.
type observation struct {
	URL        string
	Title      string
	Text       string
	Screenshot []byte
}

// Run executes the decide/act loop for a single task, bounded by
// cfg.MaxSteps. Dispatch failures feed back into the next prompt so the
// model can adjust; only provider and observation failures abort the run.
// Cancellation returns ctx.Err() untouched so the caller can distinguish a
// stop request from a real failure.
func (r *Runner) Run(ctx context.Context, task schemas.Task, cfg *schemas.Configuration, actions []schemas.ActionDescriptor) (*schemas.RawResult, error) {
	log := r.log.With(zap.Uint64("task_seq", task.Seq))
	log.Info("Task run starting.",
		zap.String("model", r.llm.Model()),
		zap.Int("max_steps", cfg.MaxSteps),
		zap.Int("enabled_actions", len(actions)))

	catalog := make(map[string]schemas.ActionDescriptor, len(actions))
	for _, a := range actions {
		catalog[a.Name()] = a
	}
	system := buildSystemPrompt(cfg, actions)

	steps := make([]schemas.StepRecord, 0, cfg.MaxSteps)
	for step := 1; step <= cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		obs, err := r.observe(ctx, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &schemas.AgentExecutionError{TaskSeq: task.Seq, Err: fmt.Errorf("page observation failed at step %d: %w", step, err)}
		}

		if err := r.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &schemas.AgentExecutionError{TaskSeq: task.Seq, Err: fmt.Errorf("rate limit wait failed at step %d: %w", step, err)}
		}
		reply, err := r.llm.Complete(ctx, llmclient.Request{
			System:    system,
			User:      buildUserPrompt(task, obs, steps),
			ImagePNG:  obs.Screenshot,
			ForceJSON: true,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &schemas.AgentExecutionError{TaskSeq: task.Seq, Err: fmt.Errorf("completion failed at step %d: %w", step, err)}
		}

		d, err := llmutil.ParseJSONResponse[decision](reply)
		if err != nil || d.Action == "" {
			// Malformed decisions consume a step and are replayed to the
			// model through the history so it can correct itself.
			outcome := "response was not a single decision object"
			if err != nil {
				outcome = fmt.Sprintf("response was not a single decision object: %v", err)
			}
			log.Warn("Undecodable model decision.", zap.Int("step", step), zap.String("reply", truncate(reply, 200)))
			steps = append(steps, schemas.StepRecord{
				Step: step, Action: "invalid", Outcome: outcome, Timestamp: time.Now().UTC(),
			})
			continue
		}

		if d.Action == actionFinish {
			rec := schemas.StepRecord{
				Step:      step,
				Thought:   d.Thought,
				Action:    actionFinish,
				Outcome:   "task concluded",
				Timestamp: time.Now().UTC(),
			}
			steps = append(steps, rec)
			log.Info("Task concluded by the agent.", zap.Int("steps_used", step), zap.Bool("success", d.succeeded()))
			return &schemas.RawResult{
				FinalAnswer: d.Answer,
				Steps:       steps,
				Success:     d.succeeded(),
				StepsUsed:   step,
			}, nil
		}

		outcome := r.dispatch(ctx, d, catalog, task)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debug("Step dispatched.",
			zap.Int("step", step),
			zap.String("action", d.Action),
			zap.String("outcome", truncate(outcome, 200)))
		steps = append(steps, schemas.StepRecord{
			Step:      step,
			Thought:   d.Thought,
			Action:    d.Action,
			Argument:  d.argument(),
			Outcome:   outcome,
			Timestamp: time.Now().UTC(),
		})
	}

	log.Warn("Step budget exhausted before the agent concluded.", zap.Int("max_steps", cfg.MaxSteps))
	return &schemas.RawResult{
		FinalAnswer: fmt.Sprintf("stopped after reaching the %d step limit without concluding", cfg.MaxSteps),
		Steps:       steps,
		Success:     false,
		StepsUsed:   cfg.MaxSteps,
	}, nil
}

// observe snapshots the page. The screenshot is taken only when vision is
// enabled; its failure degrades to a text-only observation rather than
// aborting the step.
func (r *Runner) observe(ctx context.Context, cfg *schemas.Configuration) (observation, error) {
	var obs observation
	var err error

	if obs.URL, err = r.browser.CurrentURL(ctx); err != nil {
		return obs, fmt.Errorf("reading current url: %w", err)
	}
	if obs.Title, err = r.browser.Title(ctx); err != nil {
		return obs, fmt.Errorf("reading page title: %w", err)
	}
	if obs.Text, err = r.browser.Text(ctx); err != nil {
		return obs, fmt.Errorf("reading page text: %w", err)
	}
	obs.Text = truncate(obs.Text, maxObservedTextChars)

	if cfg.UseVision {
		shot, err := r.browser.CaptureScreenshot(ctx)
		if err != nil {
			r.log.Warn("Screenshot unavailable for this step, continuing text-only.", zap.Error(err))
		} else {
			obs.Screenshot = shot
		}
	}
	return obs, nil
}

// dispatch executes one decision and renders its outcome as the short text
// fed back to the model. Failures are outcomes, not errors: the model reads
// them in the next prompt and adjusts.
func (r *Runner) dispatch(ctx context.Context, d *decision, catalog map[string]schemas.ActionDescriptor, task schemas.Task) string {
	switch d.Action {
	case actionNavigate:
		if d.URL == "" {
			return "navigate requires a url"
		}
		if err := r.browser.Navigate(ctx, d.URL); err != nil {
			return fmt.Sprintf("navigation failed: %v", err)
		}
		return "navigated to " + d.URL

	case actionClick:
		if d.Selector == "" {
			return "click requires a selector"
		}
		if err := r.browser.Click(ctx, d.Selector); err != nil {
			return fmt.Sprintf("click failed: %v", err)
		}
		return "clicked " + d.Selector

	case actionType:
		if d.Selector == "" {
			return "type requires a selector"
		}
		if err := r.browser.Type(ctx, d.Selector, d.Text); err != nil {
			return fmt.Sprintf("typing failed: %v", err)
		}
		return fmt.Sprintf("typed %d characters into %s", len(d.Text), d.Selector)

	case actionScroll:
		direction := d.Direction
		if direction == "" {
			direction = "down"
		}
		if err := r.browser.Scroll(ctx, direction); err != nil {
			return fmt.Sprintf("scroll failed: %v", err)
		}
		return "scrolled " + direction

	case actionInvoke:
		desc, ok := catalog[d.Name]
		if !ok {
			return fmt.Sprintf("no enabled action named %q; available: %s", d.Name, strings.Join(catalogNames(catalog), ", "))
		}
		args := d.Args
		// The accumulation key and sequence are never the model's to choose.
		args.SessionID = r.browser.ID()
		args.TaskSeq = task.Seq
		ack, err := desc.Execute(ctx, args)
		if err != nil {
			return fmt.Sprintf("action %s failed: %v", d.Name, err)
		}
		return ack

	default:
		return fmt.Sprintf("unsupported action %q", d.Action)
	}
}

func catalogNames(catalog map[string]schemas.ActionDescriptor) []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// truncate bounds s to max bytes for prompts and log fields without
// splitting a multi-byte rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
