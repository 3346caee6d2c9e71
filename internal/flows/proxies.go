package flows

import (
	"context"

	"github.com/FuncStore/FuncBot/internal/flow"
	"github.com/FuncStore/FuncBot/internal/models"
)

func (r *Registry) registerProxies(d *flow.Dispatcher) {
	d.Handle(models.FlowProxies, models.StateIdle, "/proxies", r.fetchProxies)
	d.SetBusyState(models.StateProxiesBusy)
}

// fetchProxies needs no user input beyond the command, so it enters the busy
// state directly and runs the chained fetch inline.
func (r *Registry) fetchProxies(ctx context.Context, conversationID, _ string) error {
	if err := r.Dispatcher.EnterFlow(ctx, conversationID, models.FlowProxies, models.StateProxiesBusy); err != nil {
		return err
	}

	list, err := r.Proxies.List(ctx)
	if err != nil {
		r.send(ctx, conversationID, err.Error())
		return r.finish(ctx, conversationID)
	}

	r.send(ctx, conversationID, list)
	return r.finish(ctx, conversationID)
}
