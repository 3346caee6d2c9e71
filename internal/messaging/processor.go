package messaging

import (
	"context"
	"log/slog"

	"github.com/FuncStore/FuncBot/internal/flow"
	"github.com/FuncStore/FuncBot/internal/models"
)

// Processor consumes transport events and feeds inbound messages into the
// dispatcher. Each message is dispatched on its own goroutine so one
// conversation's in-flight handler never stalls another's input; the
// dispatcher holds a per-conversation lock, so two quick messages from the
// same sender are still handled one at a time.
type Processor struct {
	service    Service
	dispatcher *flow.Dispatcher
}

// NewProcessor creates a processor bridging service into dispatcher.
func NewProcessor(service Service, dispatcher *flow.Dispatcher) *Processor {
	return &Processor{service: service, dispatcher: dispatcher}
}

// Start runs the event loop until ctx is cancelled or the transport's
// channels close.
func (p *Processor) Start(ctx context.Context) error {
	if err := p.service.Start(ctx); err != nil {
		return err
	}
	go p.loop(ctx)
	slog.Info("Processor event loop started")
	return nil
}

func (p *Processor) loop(ctx context.Context) {
	responses := p.service.Responses()
	receipts := p.service.Receipts()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Processor event loop stopping")
			return
		case response, ok := <-responses:
			if !ok {
				return
			}
			ev := models.Event{
				ConversationID: response.From,
				Kind:           models.EventText,
				Payload:        response.Body,
				Time:           response.Time,
			}
			go p.dispatcher.Dispatch(ctx, ev)
		case receipt, ok := <-receipts:
			if !ok {
				return
			}
			slog.Debug("Processor receipt", "to", receipt.To, "status", receipt.Status)
		}
	}
}
