// api/schemas/contracts.go
package schemas

import "context"

// -- External Collaborator Contracts --

// AgentRunner is the automation contract: it accepts one task together with
// the resolved configuration and the enabled side-actions, drives the browser
// and the LLM, and returns a raw result. The session loop depends only on
// this interface, never on a concrete runner. Run must honor ctx
// cancellation as its best-effort stop request and return promptly when the
// context is cancelled.
type AgentRunner interface {
	Run(ctx context.Context, task Task, cfg *Configuration, actions []ActionDescriptor) (*RawResult, error)
}

// ActionDescriptor is one optional side-action the agent may invoke during a
// run: a stable identifier, a human-readable description the agent prompt
// advertises, and the callable itself. Implementations must be safe to invoke
// zero or many times per run and must not retain cross-invocation mutable
// state beyond append-only accumulation keyed by the session identifier in
// ActionArgs.
type ActionDescriptor interface {
	// Name returns the stable catalog identifier (e.g. "element-screenshot").
	Name() string
	// Description explains the action to the agent and to the operator.
	Description() string
	// Execute performs the side effect and returns a short textual
	// acknowledgment for the agent's history.
	Execute(ctx context.Context, args ActionArgs) (string, error)
}

// ActionArgs carries the caller-supplied arguments of one action invocation.
// Fields are populated as relevant to the invoked action; unused fields stay
// zero.
type ActionArgs struct {
	SessionID string   `json:"session_id,omitempty"` // session-scoped accumulation key
	TaskSeq   uint64   `json:"task_seq,omitempty"`
	Selector  string   `json:"selector,omitempty"` // CSS selector for element-scoped actions
	URL       string   `json:"url,omitempty"`
	URLs      []string `json:"urls,omitempty"` // file-download accepts several
	Text      string   `json:"text,omitempty"` // payload for result-saving / content
	Question  string   `json:"question,omitempty"`
	Filename  string   `json:"filename,omitempty"`
}

// Prompter abstracts the interactive terminal so actions that need operator
// input (the confirmation gate) stay testable. The session loop provides the
// real implementation bound to stdin.
type Prompter interface {
	// Ask prints the prompt and returns one trimmed line of operator input.
	Ask(prompt string) (string, error)
}
