// internal/actions/gate_test.go
package actions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/actions"
)

func TestConfirmationGate(t *testing.T) {
	t.Parallel()

	t.Run("yes answers confirm", func(t *testing.T) {
		t.Parallel()
		for _, answer := range []string{"y", "Y", "yes", " YES "} {
			deps := newTestDeps(t)
			prompter := &fakePrompter{answer: answer}
			deps.Prompter = prompter
			gate := builtin(t, deps, actions.NameConfirmationGate)

			ack, err := gate.Execute(context.Background(), schemas.ActionArgs{
				Question: "Submit the order?",
			})
			require.NoError(t, err)
			assert.Equal(t, "confirmed by operator", ack)
			require.Len(t, prompter.asked, 1)
			assert.Contains(t, prompter.asked[0], "Submit the order?")
		}
	})

	t.Run("anything else refuses", func(t *testing.T) {
		t.Parallel()
		for _, answer := range []string{"n", "no", "", "maybe"} {
			deps := newTestDeps(t)
			deps.Prompter = &fakePrompter{answer: answer}
			gate := builtin(t, deps, actions.NameConfirmationGate)

			ack, err := gate.Execute(context.Background(), schemas.ActionArgs{})
			require.NoError(t, err)
			assert.Contains(t, ack, "refused")
		}
	})

	t.Run("prompter failure surfaces", func(t *testing.T) {
		t.Parallel()
		deps := newTestDeps(t)
		deps.Prompter = &fakePrompter{err: errors.New("stdin closed")}
		gate := builtin(t, deps, actions.NameConfirmationGate)

		_, err := gate.Execute(context.Background(), schemas.ActionArgs{})
		require.Error(t, err)
	})

	t.Run("cancelled context short-circuits", func(t *testing.T) {
		t.Parallel()
		deps := newTestDeps(t)
		prompter := &fakePrompter{answer: "y"}
		deps.Prompter = prompter
		gate := builtin(t, deps, actions.NameConfirmationGate)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := gate.Execute(ctx, schemas.ActionArgs{})
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, prompter.asked, "a cancelled gate must not prompt")
	})
}
