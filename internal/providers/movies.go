package providers

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strings"

	"github.com/FuncStore/FuncBot/internal/webapi"
)

// ErrNoMoviesFound is returned when a title search matches nothing.
var ErrNoMoviesFound = errors.New("no movies were found for that title")

// Default Kinopoisk endpoints.
const (
	kinopoiskSearchURL    = "https://api.kinopoisk.dev/v1.4/movie/search"
	kinopoiskUniversalURL = "https://api.kinopoisk.dev/v1.4/movie"
)

// Movie is the subset of a Kinopoisk record consumed by flows.
type Movie struct {
	Name            string `json:"name"`
	AlternativeName string `json:"alternativeName"`
	Type            string `json:"type"`
	Year            int    `json:"year"`
	Description     string `json:"description"`
	ShortDesc       string `json:"shortDescription"`
	LengthMinutes   int    `json:"movieLength"`
	Genres          []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Countries []struct {
		Name string `json:"name"`
	} `json:"countries"`
	Rating struct {
		KP   float64 `json:"kp"`
		IMDB float64 `json:"imdb"`
	} `json:"rating"`
	Poster struct {
		URL string `json:"url"`
	} `json:"poster"`
}

// GenreNames returns the movie's genre names in order.
func (m Movie) GenreNames() []string {
	names := make([]string, 0, len(m.Genres))
	for _, g := range m.Genres {
		names = append(names, g.Name)
	}
	return names
}

// CountryNames returns the movie's country names in order.
func (m Movie) CountryNames() []string {
	names := make([]string, 0, len(m.Countries))
	for _, c := range m.Countries {
		names = append(names, c.Name)
	}
	return names
}

// MovieClient searches and recommends movies through the Kinopoisk API.
type MovieClient struct {
	api    *webapi.Client
	apiKey string

	searchURL    string
	universalURL string
}

// NewMovieClient creates a movie client using the standard Kinopoisk
// endpoints.
func NewMovieClient(api *webapi.Client, apiKey string) *MovieClient {
	return &MovieClient{
		api:          api,
		apiKey:       apiKey,
		searchURL:    kinopoiskSearchURL,
		universalURL: kinopoiskUniversalURL,
	}
}

func (c *MovieClient) headers() map[string]string {
	return map[string]string{
		"accept":    "application/json",
		"X-API-KEY": c.apiKey,
	}
}

type kinopoiskPage struct {
	Docs []Movie `json:"docs"`
}

// Search returns up to limit movies matching name, best match first.
func (c *MovieClient) Search(ctx context.Context, name string, limit int) ([]Movie, error) {
	var page kinopoiskPage
	u := fmt.Sprintf("%s?page=1&limit=%d&query=%s", c.searchURL, limit, url.QueryEscape(name))
	if env := c.api.GetInto(ctx, u, c.headers(), &page); !env.OK() {
		return nil, errors.New(env.Err)
	}
	if len(page.Docs) == 0 {
		return nil, ErrNoMoviesFound
	}
	return page.Docs, nil
}

// Recommend builds a shuffled recommendation list seeded by the best match
// for name. Two of its genres are sampled at random and two rating bands are
// queried, a short low-rated slice and a longer high-rated one, so the list
// is not uniformly acclaimed titles.
func (c *MovieClient) Recommend(ctx context.Context, name string) ([]Movie, error) {
	matches, err := c.Search(ctx, name, 10)
	if err != nil {
		return nil, err
	}
	seed := matches[0]

	genres := seed.GenreNames()
	if len(genres) > 1 {
		rand.Shuffle(len(genres), func(i, j int) { genres[i], genres[j] = genres[j], genres[i] })
		genres = genres[:2]
	}

	lowRated, err := c.similar(ctx, genres, seed.Type, "1-5", 25)
	if err != nil {
		return nil, err
	}
	highRated, err := c.similar(ctx, genres, seed.Type, "6-10", 50)
	if err != nil {
		return nil, err
	}

	recommendations := append(lowRated, highRated...)
	if len(recommendations) == 0 {
		return nil, ErrNoMoviesFound
	}
	rand.Shuffle(len(recommendations), func(i, j int) {
		recommendations[i], recommendations[j] = recommendations[j], recommendations[i]
	})
	return recommendations, nil
}

func (c *MovieClient) similar(ctx context.Context, genres []string, movieType, rating string, limit int) ([]Movie, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s?page=1&limit=250", c.universalURL)
	for _, genre := range genres {
		fmt.Fprintf(&sb, "&genres.name=%s", url.QueryEscape(genre))
	}
	fmt.Fprintf(&sb, "&type=%s&rating.kp=%s", url.QueryEscape(movieType), rating)

	var page kinopoiskPage
	if env := c.api.GetInto(ctx, sb.String(), c.headers(), &page); !env.OK() {
		return nil, errors.New(env.Err)
	}
	docs := page.Docs
	rand.Shuffle(len(docs), func(i, j int) { docs[i], docs[j] = docs[j], docs[i] })
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// PosterURLs resolves each title to its best-match poster URL. Titles
// without a match or poster are skipped; an error is returned only when a
// lookup call itself fails or nothing resolved at all.
func (c *MovieClient) PosterURLs(ctx context.Context, titles []string) (map[string]string, error) {
	posters := make(map[string]string, len(titles))
	for _, title := range titles {
		movies, err := c.Search(ctx, title, 1)
		if errors.Is(err, ErrNoMoviesFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if u := movies[0].Poster.URL; u != "" {
			posters[movies[0].Name] = u
		}
	}
	if len(posters) == 0 {
		return nil, errors.New("no posters were found for those movies")
	}
	return posters, nil
}
