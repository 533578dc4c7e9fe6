// internal/agent/prompt.go
package agent

import (
	"fmt"
	"strings"

	"github.com/browserpilot/browserpilot/api/schemas"
)

// Decision verbs the model may emit. One verb per step.
const (
	actionNavigate = "navigate"
	actionClick    = "click"
	actionType     = "type"
	actionScroll   = "scroll"
	actionInvoke   = "invoke-action"
	actionFinish   = "finish"
)

// decision is the single JSON object the model must answer with each step.
type decision struct {
	Thought   string             `json:"thought,omitempty"`
	Action    string             `json:"action"`
	URL       string             `json:"url,omitempty"`
	Selector  string             `json:"selector,omitempty"`
	Text      string             `json:"text,omitempty"`
	Direction string             `json:"direction,omitempty"`
	Name      string             `json:"name,omitempty"`
	Args      schemas.ActionArgs `json:"args,omitempty"`
	Answer    string             `json:"answer,omitempty"`
	// Success is a pointer so a finish decision that omits the field counts
	// as successful rather than silently failing.
	Success *bool `json:"success,omitempty"`
}

// succeeded reports the finish verdict, defaulting to success when omitted.
func (d *decision) succeeded() bool {
	return d.Success == nil || *d.Success
}

// argument renders the distinguishing parameter of a decision for the step
// record.
func (d *decision) argument() string {
	switch d.Action {
	case actionNavigate:
		return d.URL
	case actionClick:
		return d.Selector
	case actionType:
		return d.Selector
	case actionScroll:
		return d.Direction
	case actionInvoke:
		return d.Name
	default:
		return ""
	}
}

// buildSystemPrompt assembles the instruction set: the base contract, the
// behavior policy selected by configuration, the verb list, the enabled
// side-action catalog, and the output-format shaping when one is selected.
func buildSystemPrompt(cfg *schemas.Configuration, actions []schemas.ActionDescriptor) string {
	basePrompt := `You are the decision engine of a browser automation agent.
You receive the task objective, a snapshot of the current page, and the history of your previous steps.
Each turn you must answer with exactly one JSON object describing your next step. No prose, no markdown outside the JSON.`

	return basePrompt +
		behaviorPolicyPrompt(cfg.SystemPrompt) +
		verbListPrompt() +
		actionCatalogPrompt(actions) +
		outputFormatPrompt(cfg.OutputFormat) +
		closingPrompt()
}

// behaviorPolicyPrompt maps the configured system-prompt mode to its policy
// segment. Unknown modes were rejected at configuration time.
func behaviorPolicyPrompt(mode schemas.SystemPromptMode) string {
	switch mode {
	case schemas.PromptSafetyFirst:
		return `

Behavior policy (safety-first):
- Never submit forms that create accounts, make purchases, or post content.
- Never enter credentials, payment details, or personal data.
- When a step looks irreversible or destructive, prefer the confirmation-gate action or finish with an explanation instead.`
	case schemas.PromptDataCollection:
		return `

Behavior policy (data-collection):
- Your priority is thorough, accurate extraction of the requested data.
- Prefer the extraction actions (content-extraction, table-extraction) over summarizing from memory.
- Scroll to load lazy content before concluding a page has been fully read.`
	default:
		return `

Behavior policy (default):
- Work efficiently toward the objective and conclude as soon as it is met.
- Do not wander to pages unrelated to the task.`
	}
}

func verbListPrompt() string {
	return `

Available actions:
- {"action": "navigate", "url": "https://..."} - load a page.
- {"action": "click", "selector": "css-selector"} - click the first matching element.
- {"action": "type", "selector": "css-selector", "text": "..."} - clear the field, then type into it.
- {"action": "scroll", "direction": "down"} - scroll one viewport ("up" or "down").
- {"action": "invoke-action", "name": "action-name", "args": {...}} - run one of the optional actions listed below.
- {"action": "finish", "answer": "...", "success": true} - conclude the task with your final answer.

Every decision may carry a "thought" field with your reasoning; keep it short.`
}

// actionCatalogPrompt advertises the enabled side-actions. With none enabled
// the segment states that explicitly so the model does not invent names.
func actionCatalogPrompt(actions []schemas.ActionDescriptor) string {
	if len(actions) == 0 {
		return `

Optional actions: none are enabled for this session.`
	}
	var b strings.Builder
	b.WriteString(`

Optional actions (invoke by name):`)
	for _, a := range actions {
		fmt.Fprintf(&b, "\n- %s: %s", a.Name(), a.Description())
	}
	b.WriteString(`

Argument fields for "args": selector, url, urls, text, question, filename. Supply only the ones the action needs.`)
	return b.String()
}

// outputFormatPrompt shapes the final answer when a structured format is
// selected, naming the exact field set the coercion layer expects.
func outputFormatPrompt(format schemas.OutputFormat) string {
	switch format {
	case schemas.FormatPosts:
		return `

Final answer format: a JSON array of post objects, each with post_title (string), post_url (string), num_comments (integer), hours_since_post (integer).`
	case schemas.FormatSearchResults:
		return `

Final answer format: a JSON array of search result objects, each with title (string) and url (string); include description and timestamp when available.`
	case schemas.FormatSavedContent:
		return `

Final answer format: a JSON array of saved content objects, each with content (string), source_url (string), saved_at (ISO 8601 string); include content_type when known.`
	default:
		return ""
	}
}

func closingPrompt() string {
	return `

Inspect the page snapshot and the step history, then decide your next step.
Answer with the single JSON decision object only.`
}

// buildUserPrompt renders the per-step turn: objective, page snapshot, and
// the recent step history (bounded by historyLookbackSteps).
func buildUserPrompt(task schemas.Task, obs observation, steps []schemas.StepRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n\n", task.Text)
	fmt.Fprintf(&b, "Current page:\nURL: %s\nTitle: %s\n", obs.URL, obs.Title)
	if obs.Text != "" {
		fmt.Fprintf(&b, "Visible text:\n%s\n", obs.Text)
	}

	if len(steps) > 0 {
		start := 0
		if len(steps) > historyLookbackSteps {
			start = len(steps) - historyLookbackSteps
			fmt.Fprintf(&b, "\nSteps so far (last %d of %d):\n", historyLookbackSteps, len(steps))
		} else {
			b.WriteString("\nSteps so far:\n")
		}
		for _, s := range steps[start:] {
			fmt.Fprintf(&b, "%d. %s %s -> %s\n", s.Step, s.Action, s.Argument, s.Outcome)
		}
	}

	b.WriteString("\nDecide the next step.")
	return b.String()
}
