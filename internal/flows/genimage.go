package flows

import (
	"context"
	"strings"

	"github.com/FuncStore/FuncBot/internal/flow"
	"github.com/FuncStore/FuncBot/internal/models"
)

const genImagePrompt = "Pick a model and describe the image: `<model> <prompt>`. Models: dall-e-3, gpt-image-1, neuroimg."

func (r *Registry) registerGenImage(d *flow.Dispatcher) {
	d.Handle(models.FlowGenImage, models.StateIdle, "/genimage", r.startGenImage)

	// One prefix route per supported model tag; the argument is the prompt.
	for _, model := range r.ImageGen.Models() {
		d.HandlePrefix(models.FlowGenImage, models.StateGenImagePrompt, model, r.generateImage(model))
	}
	d.Handle(models.FlowGenImage, models.StateGenImagePrompt, "", r.unknownImageModel)

	d.SetBusyState(models.StateGenImageBusy)
}

func (r *Registry) startGenImage(ctx context.Context, conversationID, _ string) error {
	if err := r.Dispatcher.EnterFlow(ctx, conversationID, models.FlowGenImage, models.StateGenImagePrompt); err != nil {
		return err
	}
	r.send(ctx, conversationID, genImagePrompt)
	return nil
}

func (r *Registry) unknownImageModel(ctx context.Context, conversationID, _ string) error {
	r.Dispatcher.Reprompt(ctx, conversationID, "Unknown model.", genImagePrompt)
	return nil
}

func (r *Registry) generateImage(model string) flow.HandlerFunc {
	return func(ctx context.Context, conversationID, input string) error {
		prompt := strings.TrimSpace(input)
		if prompt == "" {
			r.Dispatcher.Reprompt(ctx, conversationID, "Prompt cannot be empty.", genImagePrompt)
			return nil
		}

		if err := r.States.SetCurrentState(ctx, conversationID, models.FlowGenImage, models.StateGenImageBusy); err != nil {
			return err
		}

		dir, err := r.workDir(conversationID)
		if err != nil {
			return err
		}
		defer cleanupDir(dir)

		path, err := r.ImageGen.Generate(ctx, model, prompt, dir)
		if err != nil {
			r.send(ctx, conversationID, err.Error())
			return r.finish(ctx, conversationID)
		}

		if err := r.Render.SendDocument(ctx, conversationID, path, prompt); err != nil {
			r.send(ctx, conversationID, "Could not deliver the image, please try again.")
		}
		return r.finish(ctx, conversationID)
	}
}
