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

const (
	findVideoNamePrompt  = "Which film or series?"
	findVideoSearchLimit = 5
)

func (r *Registry) registerFindVideo(d *flow.Dispatcher) {
	d.Handle(models.FlowFindVideo, models.StateIdle, "/findvideo", r.startFindVideo)
	d.Handle(models.FlowFindVideo, models.StateFindVideoName, "", r.searchVideos)
	d.SetBusyState(models.StateFindVideoBusy)
}

func (r *Registry) startFindVideo(ctx context.Context, conversationID, _ string) error {
	if err := r.Dispatcher.EnterFlow(ctx, conversationID, models.FlowFindVideo, models.StateFindVideoName); err != nil {
		return err
	}
	r.send(ctx, conversationID, findVideoNamePrompt)
	return nil
}

func (r *Registry) searchVideos(ctx context.Context, conversationID, input string) error {
	name := strings.TrimSpace(input)
	if name == "" {
		r.Dispatcher.Reprompt(ctx, conversationID, "Title cannot be empty.", findVideoNamePrompt)
		return nil
	}

	if err := r.States.SetCurrentState(ctx, conversationID, models.FlowFindVideo, models.StateFindVideoBusy); err != nil {
		return err
	}

	movies, err := r.Movies.Search(ctx, name, findVideoSearchLimit)
	switch {
	case errors.Is(err, providers.ErrNoMoviesFound):
		if err := r.States.SetCurrentState(ctx, conversationID, models.FlowFindVideo, models.StateFindVideoName); err != nil {
			return err
		}
		r.Dispatcher.Reprompt(ctx, conversationID, "Nothing found under that title.", findVideoNamePrompt)
		return nil
	case err != nil:
		r.send(ctx, conversationID, err.Error())
		return r.finish(ctx, conversationID)
	}

	for _, m := range movies {
		r.send(ctx, conversationID, render.MovieDescription(m))
	}
	return r.finish(ctx, conversationID)
}
