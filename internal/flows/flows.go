// Package flows wires the user-facing conversation flows onto the dispatcher.
//
// Each flow lives in its own file and registers its states, routes, and busy
// states through Register. Handlers hold no state of their own; everything a
// flow accumulates between steps goes through the state manager's data bag.
package flows

import (
	"context"
	"log/slog"
	"os"

	"github.com/FuncStore/FuncBot/internal/archive"
	"github.com/FuncStore/FuncBot/internal/flow"
	"github.com/FuncStore/FuncBot/internal/providers"
	"github.com/FuncStore/FuncBot/internal/task"
)

// WeatherProvider yields weather reports for a resolved city.
type WeatherProvider interface {
	Current(ctx context.Context, city string) (providers.WeatherReport, error)
	Forecast(ctx context.Context, city string) ([]providers.WeatherReport, error)
	AirQuality(ctx context.Context, city string) (providers.AirQualityReport, error)
}

// ImageSearcher finds and downloads images by search phrase.
type ImageSearcher interface {
	Search(ctx context.Context, name string, count int) ([]providers.NamedURL, error)
	Download(ctx context.Context, urls []providers.NamedURL, dir string, progress func(done, total int)) ([]string, error)
}

// MovieCatalog searches and recommends films.
type MovieCatalog interface {
	Search(ctx context.Context, name string, limit int) ([]providers.Movie, error)
	Recommend(ctx context.Context, name string) ([]providers.Movie, error)
	PosterURLs(ctx context.Context, titles []string) (map[string]string, error)
}

// ProxyLister fetches a formatted proxy address list.
type ProxyLister interface {
	List(ctx context.Context) (string, error)
}

// IPLookup resolves an IP address to a geolocation report.
type IPLookup interface {
	Lookup(ctx context.Context, ip string) (providers.IPReport, error)
}

// ImageGenerator produces AI-generated images under one of several models.
type ImageGenerator interface {
	Models() []string
	Generate(ctx context.Context, model, prompt, dir string) (string, error)
}

// VideoOperationMaker builds the long-running image-to-video operation.
type VideoOperationMaker interface {
	Operation(imagePath, prompt, outDir string, autoDescribe bool) task.Operation
}

// ImageTagger analyzes an image file and describes its contents.
type ImageTagger interface {
	Tags(ctx context.Context, imagePath string) (string, error)
}

// Deps carries everything the flows need: the dispatcher to register on, the
// state manager and renderer it already uses, the provider clients, and the
// coordinator for long-running work.
type Deps struct {
	Dispatcher  *flow.Dispatcher
	States      flow.StateManager
	Render      flow.Renderer
	Coordinator *task.Coordinator

	Weather  WeatherProvider
	Images   ImageSearcher
	Movies   MovieCatalog
	Proxies  ProxyLister
	IPInfo   IPLookup
	ImageGen ImageGenerator
	Video    VideoOperationMaker
	Tagger   ImageTagger

	// DataDir is the base directory for per-conversation working files.
	DataDir string
}

// Registry holds the registered flows' shared dependencies.
type Registry struct {
	Deps
}

const menuText = `Main menu:
/weather - weather reports
/findimage - search and download images
/findvideo - search films by name
/movies - movie recommendations
/proxies - fetch a proxy list
/ipinfo - IP address lookup
/password - generate passwords
/genimage - AI image generation
/genvideo - image-to-video generation
/describe - image content analysis

Send Cancel at any step to abort.`

// Register attaches every flow to the dispatcher and returns the registry.
func Register(deps Deps) *Registry {
	r := &Registry{Deps: deps}

	d := deps.Dispatcher
	d.Handle("", "", "/start", r.showMenu)
	d.Handle("", "", "/menu", r.showMenu)

	r.registerWeather(d)
	r.registerFindImage(d)
	r.registerFindVideo(d)
	r.registerMovies(d)
	r.registerProxies(d)
	r.registerIPInfo(d)
	r.registerPassword(d)
	r.registerGenImage(d)
	r.registerGenVideo(d)
	r.registerDescribe(d)

	return r
}

func (r *Registry) showMenu(ctx context.Context, conversationID, _ string) error {
	r.send(ctx, conversationID, menuText)
	return nil
}

// send delivers a message, logging rather than propagating transport errors.
func (r *Registry) send(ctx context.Context, conversationID, text string) {
	if _, err := r.Render.SendMessage(ctx, conversationID, text); err != nil {
		slog.Error("Flow send failed", "error", err, "conversationID", conversationID)
	}
}

// finish clears the conversation's flow state and shows the menu again.
func (r *Registry) finish(ctx context.Context, conversationID string) error {
	if err := r.States.Clear(ctx, conversationID); err != nil {
		return err
	}
	r.send(ctx, conversationID, menuText)
	return nil
}

// workDir creates and returns the conversation's working directory.
func (r *Registry) workDir(conversationID string) (string, error) {
	dir := archive.ConversationDir(r.DataDir, conversationID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// cleanupDir removes a working directory, logging any residual failure.
func cleanupDir(dir string) {
	if err := archive.Cleanup(dir); err != nil {
		slog.Error("Flow working directory cleanup failed", "error", err, "dir", dir)
	}
}
