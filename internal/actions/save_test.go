// internal/actions/save_test.go
package actions_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/actions"

	json "github.com/json-iterator/go"
)

func TestResultSaving(t *testing.T) {
	t.Parallel()

	t.Run("entries accumulate append-only per session", func(t *testing.T) {
		t.Parallel()
		deps := newTestDeps(t)
		save := builtin(t, deps, actions.NameResultSaving)

		_, err := save.Execute(context.Background(), schemas.ActionArgs{
			SessionID: "sess-1", TaskSeq: 1, Text: "first finding",
		})
		require.NoError(t, err)
		ack, err := save.Execute(context.Background(), schemas.ActionArgs{
			SessionID: "sess-1", TaskSeq: 2, Text: "second finding",
		})
		require.NoError(t, err)
		assert.Contains(t, ack, "entry 2")

		data, err := os.ReadFile(filepath.Join(deps.Layout.ResultsDir(), "saved_sess-1.json"))
		require.NoError(t, err)

		var entries []struct {
			TaskSeq uint64 `json:"task_seq"`
			Text    string `json:"text"`
		}
		require.NoError(t, json.Unmarshal(data, &entries))
		require.Len(t, entries, 2)
		assert.Equal(t, "first finding", entries[0].Text)
		assert.Equal(t, uint64(2), entries[1].TaskSeq)
	})

	t.Run("sessions do not share files", func(t *testing.T) {
		t.Parallel()
		deps := newTestDeps(t)
		save := builtin(t, deps, actions.NameResultSaving)

		_, err := save.Execute(context.Background(), schemas.ActionArgs{SessionID: "a", Text: "one"})
		require.NoError(t, err)
		_, err = save.Execute(context.Background(), schemas.ActionArgs{SessionID: "b", Text: "two"})
		require.NoError(t, err)

		_, errA := os.Stat(filepath.Join(deps.Layout.ResultsDir(), "saved_a.json"))
		_, errB := os.Stat(filepath.Join(deps.Layout.ResultsDir(), "saved_b.json"))
		assert.NoError(t, errA)
		assert.NoError(t, errB)
	})

	t.Run("empty text is rejected", func(t *testing.T) {
		t.Parallel()
		deps := newTestDeps(t)
		save := builtin(t, deps, actions.NameResultSaving)

		_, err := save.Execute(context.Background(), schemas.ActionArgs{SessionID: "s"})
		require.Error(t, err)
	})

	t.Run("corrupt results file surfaces an error", func(t *testing.T) {
		t.Parallel()
		deps := newTestDeps(t)
		save := builtin(t, deps, actions.NameResultSaving)

		path := filepath.Join(deps.Layout.ResultsDir(), "saved_broken.json")
		require.NoError(t, os.WriteFile(path, []byte("{not an array"), 0o644))

		_, err := save.Execute(context.Background(), schemas.ActionArgs{SessionID: "broken", Text: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "corrupt")
	})
}
