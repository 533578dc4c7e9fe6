// api/schemas/task.go
package schemas

import "time"

// Task is a single free-text instruction for the automation agent. The
// session loop creates one per non-empty prompt read; the sequence number
// increases monotonically within a session and correlates log lines,
// conversation files and persisted results. Tasks are immutable once created
// and discarded after their Result is recorded.
type Task struct {
	Seq       uint64    `json:"seq"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
