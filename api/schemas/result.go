// api/schemas/result.go
package schemas

import "time"

// ResultStatus is the terminal status of one task run.
type ResultStatus string

const (
	StatusSuccess   ResultStatus = "success"
	StatusFailure   ResultStatus = "failure"
	StatusCancelled ResultStatus = "cancelled"
)

// StepRecord captures one decide/act cycle of the agent: what it thought,
// what it did, and what came back. The sequence of records forms the
// conversation history persisted per task.
type StepRecord struct {
	Step      int       `json:"step"`
	Thought   string    `json:"thought,omitempty"`
	Action    string    `json:"action"`
	Argument  string    `json:"argument,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RawResult is what the agent contract hands back for one task: the final
// textual answer, the per-step history, and whether the agent considers the
// objective met. The orchestrator treats the answer as opaque text until the
// output formatter shapes it.
type RawResult struct {
	FinalAnswer string       `json:"final_answer"`
	Steps       []StepRecord `json:"steps,omitempty"`
	Success     bool         `json:"success"`
	StepsUsed   int          `json:"steps_used"`
}

// RecordSet holds the typed projections coerced from a raw result. Exactly
// the slice matching Format is populated. Records that failed coercion keep
// their raw textual form in Rejected so no agent output is ever dropped.
type RecordSet struct {
	Format        OutputFormat   `json:"format"`
	Posts         []Post         `json:"posts,omitempty"`
	SearchResults []SearchResult `json:"search_results,omitempty"`
	SavedContents []SavedContent `json:"saved_content,omitempty"`
	Rejected      []string       `json:"rejected_raw,omitempty"`
}

// Len returns the number of well-formed records in whichever slice is
// populated. Rejected raw forms do not count.
func (rs *RecordSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Posts) + len(rs.SearchResults) + len(rs.SavedContents)
}

// Result is the outcome of one Task as reported to the operator and persisted
// by the output formatter. The session loop owns it until hand-off to the
// formatter, which then owns persistence.
type Result struct {
	TaskSeq          uint64        `json:"task_seq"`
	Status           ResultStatus  `json:"status"`
	Summary          string        `json:"summary"`
	Records          *RecordSet    `json:"records,omitempty"`
	CoercionFailures int           `json:"coercion_failures,omitempty"`
	Elapsed          time.Duration `json:"elapsed_ns"`

	// SavedPath is set after persistence and intentionally excluded from the
	// serialized form so that repeated persists of the same Result produce
	// byte-identical files.
	SavedPath string `json:"-"`
}
