package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/webapi"
)

// ErrNoImagesFound is returned when a search matches nothing or every
// download in a batch failed.
var ErrNoImagesFound = errors.New("no images were found")

const openverseSearchURL = "https://api.openverse.org/v1/images/"

// NamedURL pairs a downloadable URL with the file stem to save it under.
type NamedURL struct {
	URL  string
	Name string
}

// ImageClient searches for images by keyword and downloads image batches.
type ImageClient struct {
	api       *webapi.Client
	searchURL string
}

// NewImageClient creates an image client using the Openverse search API.
func NewImageClient(api *webapi.Client) *ImageClient {
	return &ImageClient{api: api, searchURL: openverseSearchURL}
}

// Search returns up to count image URLs matching name.
func (c *ImageClient) Search(ctx context.Context, name string, count int) ([]NamedURL, error) {
	var page struct {
		Results []struct {
			URL   string `json:"url"`
			Title string `json:"title"`
		} `json:"results"`
	}
	u := fmt.Sprintf("%s?q=%s&page_size=%d", c.searchURL, url.QueryEscape(name), count)
	if env := c.api.GetInto(ctx, u, nil, &page); !env.OK() {
		return nil, errors.New(env.Err)
	}
	if len(page.Results) == 0 {
		return nil, ErrNoImagesFound
	}

	urls := make([]NamedURL, 0, count)
	for i, result := range page.Results {
		if i == count {
			break
		}
		urls = append(urls, NamedURL{
			URL:  result.URL,
			Name: fmt.Sprintf("%06d", i+1),
		})
	}
	return urls, nil
}

// Download fetches each URL into dir as <name>.jpg. Individual fetch
// failures are skipped; progress, when non-nil, is called after each
// successful save with the running count and batch total. At least one
// image must survive or ErrNoImagesFound is returned.
func (c *ImageClient) Download(ctx context.Context, urls []NamedURL, dir string, progress func(done, total int)) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	var paths []string
	for _, item := range urls {
		env := c.api.Call(ctx, webapi.Request{URL: item.URL, Decode: models.DecodeBytes})
		if !env.OK() {
			continue
		}
		path := filepath.Join(dir, item.Name+".jpg")
		if err := os.WriteFile(path, env.Bytes(), 0o644); err != nil {
			return nil, fmt.Errorf("failed to save image %s: %w", path, err)
		}
		paths = append(paths, path)
		if progress != nil {
			progress(len(paths), len(urls))
		}
	}
	if len(paths) == 0 {
		return nil, ErrNoImagesFound
	}
	return paths, nil
}
