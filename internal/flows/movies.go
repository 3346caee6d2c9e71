package flows

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/FuncStore/FuncBot/internal/flow"
	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/providers"
	"github.com/FuncStore/FuncBot/internal/render"
)

const (
	moviesNamePrompt  = "Name a film you liked."
	moviesLimitPrompt = "How many recommendations? (1-10)"
	moviesMaxLimit    = 10
)

func (r *Registry) registerMovies(d *flow.Dispatcher) {
	d.Handle(models.FlowMovies, models.StateIdle, "/movies", r.startMovies)
	d.Handle(models.FlowMovies, models.StateMoviesName, "", r.storeMovieName)
	d.Handle(models.FlowMovies, models.StateMoviesLimit, "", r.recommendMovies)
	d.SetBusyState(models.StateMoviesBusy)
}

func (r *Registry) startMovies(ctx context.Context, conversationID, _ string) error {
	if err := r.Dispatcher.EnterFlow(ctx, conversationID, models.FlowMovies, models.StateMoviesName); err != nil {
		return err
	}
	r.send(ctx, conversationID, moviesNamePrompt)
	return nil
}

func (r *Registry) storeMovieName(ctx context.Context, conversationID, input string) error {
	name := strings.TrimSpace(input)
	if name == "" {
		r.Dispatcher.Reprompt(ctx, conversationID, "Title cannot be empty.", moviesNamePrompt)
		return nil
	}
	if err := r.States.MergeData(ctx, conversationID, map[models.DataKey]string{models.DataKeyName: name}); err != nil {
		return err
	}
	if err := r.States.SetCurrentState(ctx, conversationID, models.FlowMovies, models.StateMoviesLimit); err != nil {
		return err
	}
	r.send(ctx, conversationID, moviesLimitPrompt)
	return nil
}

func (r *Registry) recommendMovies(ctx context.Context, conversationID, input string) error {
	limit, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || limit < 1 || limit > moviesMaxLimit {
		r.Dispatcher.Reprompt(ctx, conversationID, "That is not a valid count.", moviesLimitPrompt)
		return nil
	}

	name, err := r.States.GetData(ctx, conversationID, models.DataKeyName)
	if err != nil {
		return err
	}

	if err := r.States.SetCurrentState(ctx, conversationID, models.FlowMovies, models.StateMoviesBusy); err != nil {
		return err
	}

	movies, err := r.Movies.Recommend(ctx, name)
	switch {
	case errors.Is(err, providers.ErrNoMoviesFound):
		if err := r.States.SetCurrentState(ctx, conversationID, models.FlowMovies, models.StateMoviesName); err != nil {
			return err
		}
		r.Dispatcher.Reprompt(ctx, conversationID, "Could not find that film to start from.", moviesNamePrompt)
		return nil
	case err != nil:
		r.send(ctx, conversationID, err.Error())
		return r.finish(ctx, conversationID)
	}

	if len(movies) > limit {
		movies = movies[:limit]
	}
	for _, m := range movies {
		r.send(ctx, conversationID, render.MovieDescription(m))
	}
	return r.finish(ctx, conversationID)
}
