package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/FuncStore/FuncBot/internal/flow"
	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/providers"
	"github.com/FuncStore/FuncBot/internal/render"
)

const ipInfoPrompt = "Send an IPv4 or IPv6 address."

func (r *Registry) registerIPInfo(d *flow.Dispatcher) {
	d.Handle(models.FlowIPInfo, models.StateIdle, "/ipinfo", r.startIPInfo)
	d.Handle(models.FlowIPInfo, models.StateIPInfoAddr, "", r.lookupIP)
	d.SetBusyState(models.StateIPInfoBusy)
}

func (r *Registry) startIPInfo(ctx context.Context, conversationID, _ string) error {
	if err := r.Dispatcher.EnterFlow(ctx, conversationID, models.FlowIPInfo, models.StateIPInfoAddr); err != nil {
		return err
	}
	r.send(ctx, conversationID, ipInfoPrompt)
	return nil
}

func (r *Registry) lookupIP(ctx context.Context, conversationID, input string) error {
	addr := strings.TrimSpace(input)

	if err := r.States.SetCurrentState(ctx, conversationID, models.FlowIPInfo, models.StateIPInfoBusy); err != nil {
		return err
	}

	report, err := r.IPInfo.Lookup(ctx, addr)
	switch {
	case errors.Is(err, providers.ErrInvalidIP):
		if err := r.States.SetCurrentState(ctx, conversationID, models.FlowIPInfo, models.StateIPInfoAddr); err != nil {
			return err
		}
		r.Dispatcher.Reprompt(ctx, conversationID, "That does not look like an IP address.", ipInfoPrompt)
		return nil
	case err != nil:
		r.send(ctx, conversationID, err.Error())
		return r.finish(ctx, conversationID)
	}

	r.send(ctx, conversationID, render.IPReport(report))
	return r.finish(ctx, conversationID)
}
