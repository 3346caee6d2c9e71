package flows

import (
	"context"
	"strconv"
	"strings"

	"github.com/FuncStore/FuncBot/internal/flow"
	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/util"
)

const (
	passwordPrompt = "Desired length (8-64)? Add `difficult` for symbols, e.g. `16 difficult`."

	passwordMinLength = 8
	passwordMaxLength = 64
	passwordBatch     = 3
)

func (r *Registry) registerPassword(d *flow.Dispatcher) {
	d.Handle(models.FlowPassword, models.StateIdle, "/password", r.startPassword)
	d.Handle(models.FlowPassword, models.StatePasswordLength, "", r.generatePasswords)
}

func (r *Registry) startPassword(ctx context.Context, conversationID, _ string) error {
	if err := r.Dispatcher.EnterFlow(ctx, conversationID, models.FlowPassword, models.StatePasswordLength); err != nil {
		return err
	}
	r.send(ctx, conversationID, passwordPrompt)
	return nil
}

// generatePasswords runs entirely locally, so there is no busy state to
// guard and no external call to fail.
func (r *Registry) generatePasswords(ctx context.Context, conversationID, input string) error {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		r.Dispatcher.Reprompt(ctx, conversationID, "That is not a valid length.", passwordPrompt)
		return nil
	}

	length, err := strconv.Atoi(fields[0])
	if err != nil || length < passwordMinLength || length > passwordMaxLength {
		r.Dispatcher.Reprompt(ctx, conversationID, "That is not a valid length.", passwordPrompt)
		return nil
	}
	difficult := len(fields) > 1 && fields[1] == "difficult"

	passwords, err := util.GeneratePasswords(passwordBatch, length, difficult)
	if err != nil {
		return err
	}

	r.send(ctx, conversationID, strings.Join(passwords, "\n"))
	return r.finish(ctx, conversationID)
}
