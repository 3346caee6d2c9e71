package flows

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/FuncStore/FuncBot/internal/flow"
	"github.com/FuncStore/FuncBot/internal/models"
)

const (
	describeImagePrompt = "Send the path to the image you want analyzed."
	describeFormatMsg   = "The image must be a jpg, jpeg, png or gif file."
	describeWorkingMsg  = "Analyzing the image..."
)

func (r *Registry) registerDescribe(d *flow.Dispatcher) {
	d.Handle(models.FlowDescribe, models.StateIdle, "/describe", r.startDescribe)
	d.Handle(models.FlowDescribe, models.StateDescribeImage, "", r.describeImage)
	d.SetBusyState(models.StateDescribeBusy)
}

func (r *Registry) startDescribe(ctx context.Context, conversationID, _ string) error {
	if err := r.Dispatcher.EnterFlow(ctx, conversationID, models.FlowDescribe, models.StateDescribeImage); err != nil {
		return err
	}
	r.send(ctx, conversationID, describeImagePrompt)
	return nil
}

func (r *Registry) describeImage(ctx context.Context, conversationID, input string) error {
	path := strings.TrimSpace(input)
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "jpg", "jpeg", "png", "gif":
	default:
		r.Dispatcher.Reprompt(ctx, conversationID, describeFormatMsg, describeImagePrompt)
		return nil
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		r.Dispatcher.Reprompt(ctx, conversationID, "No image file at that path.", describeImagePrompt)
		return nil
	}

	if err := r.States.SetCurrentState(ctx, conversationID, models.FlowDescribe, models.StateDescribeBusy); err != nil {
		return err
	}
	r.send(ctx, conversationID, describeWorkingMsg)

	tags, err := r.Tagger.Tags(ctx, path)
	if err != nil {
		// Any tagging failure asks for another image, with the failing
		// step's message shown verbatim.
		if stateErr := r.States.SetCurrentState(ctx, conversationID, models.FlowDescribe, models.StateDescribeImage); stateErr != nil {
			return stateErr
		}
		r.Dispatcher.Reprompt(ctx, conversationID, err.Error(), describeImagePrompt)
		return nil
	}

	r.send(ctx, conversationID, tags)
	return r.finish(ctx, conversationID)
}
