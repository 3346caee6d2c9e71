package flows

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/FuncStore/FuncBot/internal/archive"
	"github.com/FuncStore/FuncBot/internal/flow"
	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/providers"
	"github.com/FuncStore/FuncBot/internal/render"
)

const (
	findImageNamePrompt  = "What should I look for? Send a search phrase, or `posters <film>, <film>, ...` for movie posters."
	findImageCountPrompt = "How many images? (1-50)"
	findImageMaxCount    = 50
)

func (r *Registry) registerFindImage(d *flow.Dispatcher) {
	d.Handle(models.FlowFindImage, models.StateIdle, "/findimage", r.startFindImage)
	d.HandlePrefix(models.FlowFindImage, models.StateFindImageName, "posters", r.findPosters)
	d.Handle(models.FlowFindImage, models.StateFindImageName, "", r.storeImageName)
	d.Handle(models.FlowFindImage, models.StateFindImageCount, "", r.downloadImages)
	d.SetBusyState(models.StateFindImageBusy)
}

func (r *Registry) startFindImage(ctx context.Context, conversationID, _ string) error {
	if err := r.Dispatcher.EnterFlow(ctx, conversationID, models.FlowFindImage, models.StateFindImageName); err != nil {
		return err
	}
	r.send(ctx, conversationID, findImageNamePrompt)
	return nil
}

func (r *Registry) storeImageName(ctx context.Context, conversationID, input string) error {
	name := strings.TrimSpace(input)
	if name == "" {
		r.Dispatcher.Reprompt(ctx, conversationID, "Search phrase cannot be empty.", findImageNamePrompt)
		return nil
	}
	if err := r.States.MergeData(ctx, conversationID, map[models.DataKey]string{models.DataKeyName: name}); err != nil {
		return err
	}
	if err := r.States.SetCurrentState(ctx, conversationID, models.FlowFindImage, models.StateFindImageCount); err != nil {
		return err
	}
	r.send(ctx, conversationID, findImageCountPrompt)
	return nil
}

func (r *Registry) downloadImages(ctx context.Context, conversationID, input string) error {
	count, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || count < 1 || count > findImageMaxCount {
		r.Dispatcher.Reprompt(ctx, conversationID, "That is not a valid count.", findImageCountPrompt)
		return nil
	}

	name, err := r.States.GetData(ctx, conversationID, models.DataKeyName)
	if err != nil {
		return err
	}

	if err := r.States.SetCurrentState(ctx, conversationID, models.FlowFindImage, models.StateFindImageBusy); err != nil {
		return err
	}

	urls, err := r.Images.Search(ctx, name, count)
	switch {
	case errors.Is(err, providers.ErrNoImagesFound):
		if err := r.States.SetCurrentState(ctx, conversationID, models.FlowFindImage, models.StateFindImageName); err != nil {
			return err
		}
		r.Dispatcher.Reprompt(ctx, conversationID, "Nothing found for that search.", findImageNamePrompt)
		return nil
	case err != nil:
		r.send(ctx, conversationID, err.Error())
		return r.finish(ctx, conversationID)
	}

	return r.deliverImages(ctx, conversationID, urls, name)
}

// findPosters is the poster variant: the argument is a comma-separated list
// of film titles resolved to poster URLs through the movie catalog.
func (r *Registry) findPosters(ctx context.Context, conversationID, input string) error {
	var titles []string
	for _, t := range strings.Split(input, ",") {
		if t = strings.TrimSpace(t); t != "" {
			titles = append(titles, t)
		}
	}
	if len(titles) == 0 {
		r.Dispatcher.Reprompt(ctx, conversationID, "Send at least one film title.", findImageNamePrompt)
		return nil
	}

	if err := r.States.SetCurrentState(ctx, conversationID, models.FlowFindImage, models.StateFindImageBusy); err != nil {
		return err
	}

	posters, err := r.Movies.PosterURLs(ctx, titles)
	if err != nil {
		r.send(ctx, conversationID, err.Error())
		return r.finish(ctx, conversationID)
	}
	if len(posters) == 0 {
		if err := r.States.SetCurrentState(ctx, conversationID, models.FlowFindImage, models.StateFindImageName); err != nil {
			return err
		}
		r.Dispatcher.Reprompt(ctx, conversationID, "No posters found for those titles.", findImageNamePrompt)
		return nil
	}

	urls := make([]providers.NamedURL, 0, len(posters))
	for title, url := range posters {
		urls = append(urls, providers.NamedURL{URL: url, Name: title})
	}
	return r.deliverImages(ctx, conversationID, urls, "posters")
}

// deliverImages downloads the given URLs into the conversation's working
// directory, archives them, sends the archive, and always removes the
// directory afterwards, delivery failure included.
func (r *Registry) deliverImages(ctx context.Context, conversationID string, urls []providers.NamedURL, caption string) error {
	dir, err := r.workDir(conversationID)
	if err != nil {
		return err
	}
	defer cleanupDir(dir)

	msgID, sendErr := r.Render.SendMessage(ctx, conversationID, render.DownloadProgress(0, len(urls)))
	progress := func(done, total int) {
		if sendErr == nil {
			r.Render.EditMessage(ctx, conversationID, msgID, render.DownloadProgress(done, total))
		}
	}

	paths, err := r.Images.Download(ctx, urls, dir, progress)
	if err != nil {
		r.send(ctx, conversationID, err.Error())
		return r.finish(ctx, conversationID)
	}

	archivePath := filepath.Join(dir, "images.zip")
	if err := archive.Zip(archivePath, paths); err != nil {
		return err
	}

	if err := r.Render.SendDocument(ctx, conversationID, archivePath, caption); err != nil {
		r.send(ctx, conversationID, "Could not deliver the archive, please try again.")
	}
	return r.finish(ctx, conversationID)
}
