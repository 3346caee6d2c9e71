package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FuncStore/FuncBot/internal/webapi"
)

func TestWeatherCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/geo"):
			fmt.Fprint(w, `[{"lat":51.5,"lon":-0.1}]`)
		case strings.HasPrefix(r.URL.Path, "/current"):
			fmt.Fprint(w, `{"main":{"temp":18.4,"feels_like":17.0,"pressure":1012,"humidity":60},
				"weather":[{"main":"Clouds","description":"scattered clouds"}],
				"wind":{"speed":4.2},"clouds":{"all":40},"visibility":10000}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewWeatherClient(webapi.NewClient(srv.Client()), "test-key")
	c.geoURL = srv.URL + "/geo"
	c.currentURL = srv.URL + "/current"

	report, err := c.Current(context.Background(), "London")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.City != "London" || report.TempC != 18.4 || report.Description != "scattered clouds" {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestWeatherNoSuchCity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := NewWeatherClient(webapi.NewClient(srv.Client()), "test-key")
	c.geoURL = srv.URL

	_, err := c.Current(context.Background(), "Nowhereville")
	if !errors.Is(err, ErrNoSuchCity) {
		t.Fatalf("expected ErrNoSuchCity, got %v", err)
	}
}

func TestWeatherForecastNoonSamples(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/geo"):
			fmt.Fprint(w, `[{"lat":1,"lon":2}]`)
		default:
			fmt.Fprint(w, `{"list":[
				{"dt_txt":"2026-08-30 09:00:00","main":{"temp":20},"wind":{},"clouds":{}},
				{"dt_txt":"2026-08-30 12:00:00","main":{"temp":22},"wind":{},"clouds":{}},
				{"dt_txt":"2026-08-31 12:00:00","main":{"temp":19},"wind":{},"clouds":{}}]}`)
		}
	}))
	defer srv.Close()

	c := NewWeatherClient(webapi.NewClient(srv.Client()), "test-key")
	c.geoURL = srv.URL + "/geo"
	c.forecastURL = srv.URL + "/forecast"

	reports, err := c.Forecast(context.Background(), "London")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 noon samples, got %d", len(reports))
	}
	if reports[0].TempC != 22 || reports[1].TempC != 19 {
		t.Errorf("unexpected samples: %+v", reports)
	}
}

func TestProxyListChain(t *testing.T) {
	var sawAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/config"):
			sawAuth = r.Header.Get("Authorization")
			fmt.Fprint(w, `{"proxy_list_download_token":"tok123"}`)
		case strings.Contains(r.URL.Path, "tok123"):
			fmt.Fprint(w, "1.2.3.4:8080:alice:secret\r\n5.6.7.8:9090:bob:hunter2\r\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewProxyClient(webapi.NewClient(srv.Client()), "api-key")
	c.configURL = srv.URL + "/config"
	c.listURL = srv.URL + "/list/%s"

	out, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawAuth != "api-key" {
		t.Errorf("expected Authorization header, got %q", sawAuth)
	}
	want := "alice:secret@1.2.3.4:8080\nbob:hunter2@5.6.7.8:9090\n"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestProxyListFirstStepFails(t *testing.T) {
	var listCalled bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/config") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		listCalled = true
	}))
	defer srv.Close()

	c := NewProxyClient(webapi.NewClient(srv.Client()), "api-key")
	c.configURL = srv.URL + "/config"
	c.listURL = srv.URL + "/list/%s"

	_, err := c.List(context.Background())
	if err == nil {
		t.Fatal("expected an error from the failing first step")
	}
	if err.Error() != webapi.ErrAccessDenied {
		t.Errorf("expected the first step's error to propagate, got %q", err)
	}
	if listCalled {
		t.Error("second step ran after the first step failed")
	}
}

func TestIPInfoRejectsInvalidIP(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewIPInfoClient(webapi.NewClient(srv.Client()), "key")
	c.baseURL = srv.URL

	_, err := c.Lookup(context.Background(), "not-an-ip")
	if !errors.Is(err, ErrInvalidIP) {
		t.Fatalf("expected ErrInvalidIP, got %v", err)
	}
	if called {
		t.Error("remote call made for invalid input")
	}
}

func TestIPInfoLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ip":"8.8.8.8","country_name":"United States","city":"Mountain View",
			"location":{"capital":"Washington D.C.","calling_code":"1"}}`)
	}))
	defer srv.Close()

	c := NewIPInfoClient(webapi.NewClient(srv.Client()), "key")
	c.baseURL = srv.URL

	report, err := c.Lookup(context.Background(), "8.8.8.8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.CountryName != "United States" || report.Location.Capital != "Washington D.C." {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestMovieSearchEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"docs":[]}`)
	}))
	defer srv.Close()

	c := NewMovieClient(webapi.NewClient(srv.Client()), "key")
	c.searchURL = srv.URL

	_, err := c.Search(context.Background(), "nonexistent film", 10)
	if !errors.Is(err, ErrNoMoviesFound) {
		t.Fatalf("expected ErrNoMoviesFound, got %v", err)
	}
}

func TestMovieRecommend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/search") {
			fmt.Fprint(w, `{"docs":[{"name":"Inception","type":"movie",
				"genres":[{"name":"sci-fi"},{"name":"thriller"},{"name":"action"}],
				"rating":{"kp":8.7}}]}`)
			return
		}
		if !strings.Contains(r.URL.RawQuery, "genres.name=") {
			t.Errorf("expected genre filters in query %q", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"docs":[{"name":"Paprika","type":"movie","rating":{"kp":7.7}},
			{"name":"Primer","type":"movie","rating":{"kp":6.9}}]}`)
	}))
	defer srv.Close()

	c := NewMovieClient(webapi.NewClient(srv.Client()), "key")
	c.searchURL = srv.URL + "/search"
	c.universalURL = srv.URL + "/universal"

	movies, err := c.Recommend(context.Background(), "Inception")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(movies) != 4 {
		t.Errorf("expected both rating bands merged, got %d movies", len(movies))
	}
}

func TestImageSearchAndDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/search"):
			fmt.Fprintf(w, `{"results":[{"url":"%[1]s/img/a","title":"a"},{"url":"%[1]s/img/b","title":"b"}]}`,
				"http://"+r.Host)
		case strings.HasPrefix(r.URL.Path, "/img/"):
			w.Write([]byte("jpeg-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewImageClient(webapi.NewClient(srv.Client()))
	c.searchURL = srv.URL + "/search"

	urls, err := c.Search(context.Background(), "cats", 2)
	if err != nil {
		t.Fatalf("unexpected search error: %v", err)
	}
	if len(urls) != 2 || urls[0].Name != "000001" {
		t.Fatalf("unexpected search results: %+v", urls)
	}

	dir := filepath.Join(t.TempDir(), "conv-1")
	var progressCalls int
	paths, err := c.Download(context.Background(), urls, dir, func(done, total int) {
		progressCalls++
		if done > total {
			t.Errorf("progress %d exceeded total %d", done, total)
		}
	})
	if err != nil {
		t.Fatalf("unexpected download error: %v", err)
	}
	if len(paths) != 2 || progressCalls != 2 {
		t.Fatalf("expected 2 downloads with 2 progress calls, got %d/%d", len(paths), progressCalls)
	}
	raw, err := os.ReadFile(paths[0])
	if err != nil || string(raw) != "jpeg-bytes" {
		t.Errorf("unexpected file contents: %q err=%v", raw, err)
	}
}

func TestImageGenUnknownModel(t *testing.T) {
	c := NewImageGenClient(webapi.NewClient(nil), "", "")
	_, err := c.Generate(context.Background(), "stable-diffusion-9", "a cat", t.TempDir())
	if !errors.Is(err, ErrUnknownImageModel) {
		t.Fatalf("expected ErrUnknownImageModel, got %v", err)
	}
}

func TestImageGenNeuroimg(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/generate"):
			fmt.Fprintf(w, `{"image_url":"http://%s/download"}`, r.Host)
		case strings.HasPrefix(r.URL.Path, "/download"):
			w.Write([]byte("png-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewImageGenClient(webapi.NewClient(srv.Client()), "", "neuro-key")
	c.neuroimgURL = srv.URL + "/generate"

	path, err := c.Generate(context.Background(), ImageModelNeuroimg, "a fox", t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil || string(raw) != "png-bytes" {
		t.Errorf("unexpected saved image: %q err=%v", raw, err)
	}
}

func TestImaggaTagsChain(t *testing.T) {
	var tagsQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/uploads"):
			if r.Method != http.MethodPost || !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
				http.Error(w, "bad upload", http.StatusBadRequest)
				return
			}
			fmt.Fprint(w, `{"result":{"upload_id":"abc123"}}`)
		case strings.HasPrefix(r.URL.Path, "/tags"):
			tagsQuery = r.URL.RawQuery
			fmt.Fprint(w, `{"result":{"tags":[
				{"confidence":87.5,"tag":{"en":"fox"}},
				{"confidence":12.25,"tag":{"en":"snow"}}]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	image := filepath.Join(t.TempDir(), "src.jpg")
	if err := os.WriteFile(image, []byte("jpg"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewImaggaClient(webapi.NewClient(srv.Client()), "auth-key")
	c.uploadURL = srv.URL + "/uploads"
	c.tagsURL = srv.URL + "/tags"

	out, err := c.Tags(context.Background(), image)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Fox (87.500%)") || !strings.Contains(out, "Snow (12.250%)") {
		t.Errorf("unexpected tag listing: %q", out)
	}
	if !strings.Contains(tagsQuery, "image_upload_id=abc123") {
		t.Errorf("tags request missing the upload id, query %q", tagsQuery)
	}
}

func TestImaggaTagsUploadFails(t *testing.T) {
	var tagsCalled bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/tags") {
			tagsCalled = true
		}
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	image := filepath.Join(t.TempDir(), "src.jpg")
	if err := os.WriteFile(image, []byte("jpg"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewImaggaClient(webapi.NewClient(srv.Client()), "auth-key")
	c.uploadURL = srv.URL + "/uploads"
	c.tagsURL = srv.URL + "/tags"

	_, err := c.Tags(context.Background(), image)
	if err == nil || err.Error() != webapi.ErrAccessDenied {
		t.Fatalf("expected the first step's error unchanged, got %v", err)
	}
	if tagsCalled {
		t.Error("chain must stop at the failing step")
	}
}

func TestImaggaTagsEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/uploads") {
			fmt.Fprint(w, `{"result":{"upload_id":"abc123"}}`)
			return
		}
		fmt.Fprint(w, `{"result":{"tags":[]}}`)
	}))
	defer srv.Close()

	image := filepath.Join(t.TempDir(), "src.jpg")
	if err := os.WriteFile(image, []byte("jpg"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewImaggaClient(webapi.NewClient(srv.Client()), "auth-key")
	c.uploadURL = srv.URL + "/uploads"
	c.tagsURL = srv.URL + "/tags"

	_, err := c.Tags(context.Background(), image)
	if !errors.Is(err, ErrNoTagsFound) {
		t.Fatalf("expected ErrNoTagsFound, got %v", err)
	}
}
