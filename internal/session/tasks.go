// internal/session/tasks.go
package session

import (
	"fmt"
	"os"
	"strings"

	json "github.com/json-iterator/go"
)

// taskEntry is one element of the task file's "tasks" array. Entries are
// either plain strings or objects carrying an explicit task text, or a
// website plus search prompt pair that composes into one.
type taskEntry struct {
	Task         string `json:"task"`
	Website      string `json:"website"`
	SearchPrompt string `json:"search_prompt"`
}

// text renders the entry as the free-text task the agent receives.
func (e taskEntry) text() string {
	switch {
	case e.Task != "":
		return e.Task
	case e.Website != "" && e.SearchPrompt != "":
		return fmt.Sprintf("Go to %s and %s", e.Website, e.SearchPrompt)
	case e.Website != "":
		return "Go to " + e.Website
	default:
		return e.SearchPrompt
	}
}

// LoadTasks reads a batch task file: a JSON object with a "tasks" array of
// strings or task objects. Entry order is preserved; an entry that yields no
// text is an error so silent no-ops never reach the agent.
func LoadTasks(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}

	var file struct {
		Tasks []json.RawMessage `json:"tasks"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("task file %s is not valid JSON: %w", path, err)
	}

	texts := make([]string, 0, len(file.Tasks))
	for i, raw := range file.Tasks {
		var text string

		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			text = s
		} else {
			var entry taskEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				return nil, fmt.Errorf("task entry %d is neither a string nor a task object: %w", i+1, err)
			}
			text = entry.text()
		}

		text = strings.TrimSpace(text)
		if text == "" {
			return nil, fmt.Errorf("task entry %d is empty", i+1)
		}
		texts = append(texts, text)
	}
	return texts, nil
}
