// internal/session/loop.go
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/output"
	"github.com/browserpilot/browserpilot/internal/workspace"
)

// State names one phase of the session lifecycle.
type State string

const (
	StateAwaitingInput State = "awaiting_input"
	StateRunning       State = "running"
	StateReporting     State = "reporting"
	StateStopped       State = "stopped"
)

const promptText = "browserpilot > "

// Deps carries the collaborators of the session loop.
type Deps struct {
	Config    *schemas.Configuration
	Runner    schemas.AgentRunner
	Actions   []schemas.ActionDescriptor
	Formatter *output.Formatter
	Layout    *workspace.Layout
	Logger    *zap.Logger
	// Stdin and Stdout default to the process streams when nil.
	Stdin  io.Reader
	Stdout io.Writer
}

// Loop is the interactive control loop: it reads one task at a time, hands
// it to the agent contract, reports the result, and repeats until the
// operator quits. Exactly one task is ever in flight, and every read of the
// input stream goes through the single reader goroutine so the task prompt
// and the confirmation gate never compete for lines.
type Loop struct {
	cfg     *schemas.Configuration
	runner  schemas.AgentRunner
	actions []schemas.ActionDescriptor
	fmtr    *output.Formatter
	layout  *workspace.Layout
	log     *zap.Logger

	in  io.Reader
	out io.Writer

	state State
	seq   uint64

	lines      chan string
	readerDone chan struct{}
	readerOnce sync.Once
	closeOnce  sync.Once

	// interrupts receives SIGINT/SIGTERM in production; tests feed it
	// directly.
	interrupts chan os.Signal
	// notify and denotify are swappable so tests do not touch process
	// signal handling.
	notify   func(chan<- os.Signal)
	denotify func()
}

// Statically assert that the loop serves the confirmation gate as its
// operator prompt.
var _ schemas.Prompter = (*Loop)(nil)

// NewLoop wires a session loop. The caller resolves configuration and builds
// the collaborators once at startup.
func NewLoop(deps Deps) *Loop {
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	interrupts := make(chan os.Signal, 1)
	return &Loop{
		cfg:        deps.Config,
		runner:     deps.Runner,
		actions:    deps.Actions,
		fmtr:       deps.Formatter,
		layout:     deps.Layout,
		log:        deps.Logger.Named("session"),
		in:         deps.Stdin,
		out:        deps.Stdout,
		state:      StateAwaitingInput,
		lines:      make(chan string),
		readerDone: make(chan struct{}),
		interrupts: interrupts,
		notify: func(ch chan<- os.Signal) {
			signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		},
		denotify: func() { signal.Stop(interrupts) },
	}
}

// State reports the current lifecycle phase.
func (l *Loop) State() State { return l.state }

// SetActions installs the enabled side-actions. The registry needs the loop
// as its operator prompter before it can produce the enabled set, so the
// actions arrive in a second wiring step. Must be called before Run.
func (l *Loop) SetActions(actions []schemas.ActionDescriptor) {
	l.actions = actions
}

// startReader launches the single goroutine that feeds input lines into the
// channel. The channel closes at EOF or when the session tears down.
func (l *Loop) startReader() {
	l.readerOnce.Do(func() {
		go func() {
			defer close(l.lines)
			scanner := bufio.NewScanner(l.in)
			for scanner.Scan() {
				select {
				case l.lines <- scanner.Text():
				case <-l.readerDone:
					return
				}
			}
		}()
	})
}

// stopReader releases the reader goroutine once the session is over.
func (l *Loop) stopReader() {
	l.closeOnce.Do(func() { close(l.readerDone) })
}

// Ask implements the operator prompt used by the confirmation gate. It is
// only ever called from inside a running task, while the loop itself is
// parked awaiting that task, so the two never compete for a line.
func (l *Loop) Ask(prompt string) (string, error) {
	l.startReader()
	fmt.Fprintf(l.out, "\n%s", prompt)
	line, ok := <-l.lines
	if !ok {
		return "", errors.New("operator input closed")
	}
	return strings.TrimSpace(line), nil
}

// Run drives the interactive session until exit/quit, EOF, or an interrupt
// at the prompt. Per-task failures never terminate it.
func (l *Loop) Run(ctx context.Context) error {
	l.notify(l.interrupts)
	defer l.denotify()
	l.startReader()
	defer l.stopReader()

	for {
		l.setState(StateAwaitingInput)
		fmt.Fprint(l.out, promptText)

		select {
		case <-ctx.Done():
			fmt.Fprintln(l.out)
			l.stop("shutdown requested")
			return nil

		case <-l.interrupts:
			// Interrupt while waiting for input ends the session.
			fmt.Fprintln(l.out)
			l.stop("interrupted at prompt")
			return nil

		case line, ok := <-l.lines:
			if !ok {
				fmt.Fprintln(l.out)
				l.stop("end of input")
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if isExitCommand(text) {
				l.stop("operator quit")
				return nil
			}

			l.seq++
			task := schemas.Task{Seq: l.seq, Text: text, CreatedAt: time.Now().UTC()}
			l.executeTask(ctx, task)
		}
	}
}

func isExitCommand(text string) bool {
	return strings.EqualFold(text, "exit") || strings.EqualFold(text, "quit")
}

func (l *Loop) setState(s State) {
	if l.state == s {
		return
	}
	l.log.Debug("Session state changed.", zap.String("from", string(l.state)), zap.String("to", string(s)))
	l.state = s
}

func (l *Loop) stop(reason string) {
	l.setState(StateStopped)
	l.log.Info("Session stopped.", zap.String("reason", reason), zap.Uint64("tasks_run", l.seq))
	fmt.Fprintln(l.out, "Exiting browserpilot.")
}

// executeTask runs one task through the agent contract, converts whatever
// comes back into a Result, and reports it. It returns the result and
// whether an interrupt fired during the run.
func (l *Loop) executeTask(ctx context.Context, task schemas.Task) (*schemas.Result, bool) {
	l.setState(StateRunning)
	l.log.Info("Task starting.", zap.Uint64("task_seq", task.Seq), zap.String("task", task.Text))
	start := time.Now()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	type runOutcome struct {
		raw *schemas.RawResult
		err error
	}
	outcomes := make(chan runOutcome, 1)
	go func() {
		raw, err := l.runner.Run(runCtx, task, l.cfg, l.actions)
		outcomes <- runOutcome{raw: raw, err: err}
	}()

	// Await the agent; an interrupt here is a best-effort stop request for
	// the current task only. The loop keeps waiting for the contract to
	// return so no run is ever abandoned mid-flight.
	var out runOutcome
	interrupted := false
	for waiting := true; waiting; {
		select {
		case out = <-outcomes:
			waiting = false
		case <-l.interrupts:
			interrupted = true
			fmt.Fprintln(l.out, "\nStopping the current task...")
			cancelRun()
		case <-ctx.Done():
			cancelRun()
			out = <-outcomes
			waiting = false
		}
	}

	l.setState(StateReporting)
	result := l.buildResult(task, out.raw, out.err, interrupted, time.Since(start))
	l.report(task, result, out.raw)
	return result, interrupted
}

// buildResult folds the agent outcome, interrupt state, and elapsed time
// into the Result reported to the operator.
func (l *Loop) buildResult(task schemas.Task, raw *schemas.RawResult, err error, interrupted bool, elapsed time.Duration) *schemas.Result {
	var result *schemas.Result
	switch {
	case err != nil && (interrupted || errors.Is(err, context.Canceled)):
		result = &schemas.Result{
			Status:  schemas.StatusCancelled,
			Summary: "task cancelled before completion",
		}
	case err != nil:
		l.log.Error("Agent execution failed.", zap.Uint64("task_seq", task.Seq), zap.Error(err))
		result = &schemas.Result{
			Status:  schemas.StatusFailure,
			Summary: err.Error(),
		}
	default:
		result = l.fmtr.Format(raw, l.cfg)
		if interrupted {
			// The stop request lost the race with completion; the operator
			// asked for cancellation and that is what gets reported.
			result.Status = schemas.StatusCancelled
		}
	}
	result.TaskSeq = task.Seq
	result.Elapsed = elapsed
	return result
}

// conversation is the per-task transcript persisted next to the results.
type conversation struct {
	Task    schemas.Task         `json:"task"`
	Steps   []schemas.StepRecord `json:"steps,omitempty"`
	Status  schemas.ResultStatus `json:"status"`
	Summary string               `json:"summary,omitempty"`
}

// report persists the result and the conversation transcript, then prints
// the summary. Persistence failures are surfaced and swallowed; subsequent
// tasks are independent.
func (l *Loop) report(task schemas.Task, result *schemas.Result, raw *schemas.RawResult) {
	if _, err := l.fmtr.Persist(result); err != nil {
		l.log.Error("Result persistence failed.", zap.Uint64("task_seq", task.Seq), zap.Error(err))
		fmt.Fprintf(l.out, "warning: could not save the result: %v\n", err)
	}

	conv := conversation{Task: task, Status: result.Status, Summary: result.Summary}
	if raw != nil {
		conv.Steps = raw.Steps
	}
	if _, err := l.layout.WriteConversation(task.Seq, conv); err != nil {
		l.log.Error("Conversation persistence failed.", zap.Uint64("task_seq", task.Seq), zap.Error(err))
		fmt.Fprintf(l.out, "warning: could not save the conversation: %v\n", err)
	}

	l.printSummary(result, raw)
}

func (l *Loop) printSummary(result *schemas.Result, raw *schemas.RawResult) {
	fmt.Fprintf(l.out, "\n[task %d] %s (%.1fs", result.TaskSeq, result.Status, result.Elapsed.Seconds())
	if raw != nil {
		fmt.Fprintf(l.out, ", %d steps", raw.StepsUsed)
	}
	fmt.Fprintln(l.out, ")")

	if result.Summary != "" {
		fmt.Fprintln(l.out, result.Summary)
	}
	if n := result.Records.Len(); n > 0 {
		fmt.Fprintf(l.out, "%d structured record(s)", n)
		if result.CoercionFailures > 0 {
			fmt.Fprintf(l.out, ", %d rejected", result.CoercionFailures)
		}
		fmt.Fprintln(l.out)
	}
	if result.SavedPath != "" {
		fmt.Fprintf(l.out, "saved to %s\n", result.SavedPath)
	}
}

// RunBatch executes every task from a task file through the same per-task
// body as the interactive loop. The first interrupt cancels the current task
// and skips the rest of the batch.
func (l *Loop) RunBatch(ctx context.Context, tasksPath string) error {
	tasks, err := LoadTasks(tasksPath)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return fmt.Errorf("task file %s contains no tasks", tasksPath)
	}

	l.notify(l.interrupts)
	defer l.denotify()
	defer l.stopReader()

	succeeded := 0
	executed := 0
	for i, text := range tasks {
		if ctx.Err() != nil {
			break
		}
		l.seq++
		task := schemas.Task{Seq: l.seq, Text: text, CreatedAt: time.Now().UTC()}
		fmt.Fprintf(l.out, "\nProcessing task %d/%d: %s\n", i+1, len(tasks), text)

		result, interrupted := l.executeTask(ctx, task)
		executed++
		if result.Status == schemas.StatusSuccess {
			succeeded++
		}
		if interrupted {
			fmt.Fprintln(l.out, "Batch interrupted; skipping the remaining tasks.")
			break
		}
	}

	l.setState(StateStopped)
	fmt.Fprintf(l.out, "\nBatch complete: %d/%d task(s) successful.\n", succeeded, executed)
	l.log.Info("Batch finished.", zap.Int("executed", executed), zap.Int("succeeded", succeeded), zap.Int("total", len(tasks)))
	return nil
}
