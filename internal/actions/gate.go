// internal/actions/gate.go
package actions

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/browserpilot/browserpilot/api/schemas"
)

// confirmationGate pauses the run and asks the operator for an explicit
// go-ahead before the agent proceeds with a sensitive step.
type confirmationGate struct {
	prompter schemas.Prompter
	log      *zap.Logger
}

var _ schemas.ActionDescriptor = (*confirmationGate)(nil)

func newConfirmationGate(prompter schemas.Prompter, logger *zap.Logger) *confirmationGate {
	return &confirmationGate{
		prompter: prompter,
		log:      logger.Named("confirmation_gate"),
	}
}

func (a *confirmationGate) Name() string { return NameConfirmationGate }

func (a *confirmationGate) Description() string {
	return "Ask the human operator for a yes/no confirmation before continuing. " +
		"Use before irreversible steps such as submitting forms or placing orders."
}

func (a *confirmationGate) Execute(ctx context.Context, args schemas.ActionArgs) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	question := strings.TrimSpace(args.Question)
	if question == "" {
		question = "Proceed with the next step?"
	}

	answer, err := a.prompter.Ask(fmt.Sprintf("[confirmation] %s [y/N]: ", question))
	if err != nil {
		return "", fmt.Errorf("failed to read operator confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		a.log.Info("Operator confirmed.", zap.Uint64("task_seq", args.TaskSeq))
		return "confirmed by operator", nil
	default:
		a.log.Info("Operator refused.", zap.Uint64("task_seq", args.TaskSeq))
		return "refused by operator; do not perform the gated step", nil
	}
}
