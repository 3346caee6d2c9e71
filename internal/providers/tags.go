package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/webapi"
)

// Default Imagga endpoints. The upload call yields an upload id that
// parameterizes the tags request.
const (
	imaggaUploadURL = "https://api.imagga.com/v2/uploads"
	imaggaTagsURL   = "https://api.imagga.com/v2/tags"
)

// ErrNoTagsFound indicates the image produced no recognizable content.
var ErrNoTagsFound = errors.New("nothing recognizable was found in the image")

// ImaggaClient describes image contents through the Imagga tagging API. The
// call is a fixed two-step chain: upload the image for its upload id, then
// fetch the ranked tags. A failure at either step propagates that step's
// envelope error unchanged.
type ImaggaClient struct {
	api    *webapi.Client
	apiKey string

	uploadURL string
	tagsURL   string
	language  string
	tagLimit  int
}

// NewImaggaClient creates a tagging client using the standard Imagga
// endpoints. apiKey is the pre-encoded basic authorization credential.
func NewImaggaClient(api *webapi.Client, apiKey string) *ImaggaClient {
	return &ImaggaClient{
		api:       api,
		apiKey:    apiKey,
		uploadURL: imaggaUploadURL,
		tagsURL:   imaggaTagsURL,
		language:  "en",
		tagLimit:  20,
	}
}

// Tags returns a ranked description of the image's contents, one tag with
// its confidence per line.
func (c *ImaggaClient) Tags(ctx context.Context, imagePath string) (string, error) {
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read the image: %w", err)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return "", fmt.Errorf("failed to build the upload form: %w", err)
	}
	if _, err := part.Write(raw); err != nil {
		return "", fmt.Errorf("failed to build the upload form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to build the upload form: %w", err)
	}

	var uploaded struct {
		Result struct {
			UploadID string `json:"upload_id"`
		} `json:"result"`
	}
	env := c.api.Call(ctx, webapi.Request{
		Method: http.MethodPost,
		URL:    c.uploadURL,
		Body:   body.Bytes(),
		Headers: map[string]string{
			"Authorization": "Basic " + c.apiKey,
			"Content-Type":  form.FormDataContentType(),
		},
		Decode: models.DecodeBytes,
	})
	if !env.OK() {
		return "", errors.New(env.Err)
	}
	if err := json.Unmarshal(env.Bytes(), &uploaded); err != nil {
		return "", fmt.Errorf("unexpected upload response: %w", err)
	}
	if uploaded.Result.UploadID == "" {
		return "", errors.New("image provider returned no upload id")
	}

	var tagged struct {
		Result struct {
			Tags []struct {
				Confidence float64           `json:"confidence"`
				Tag        map[string]string `json:"tag"`
			} `json:"tags"`
		} `json:"result"`
	}
	tagsURL := fmt.Sprintf("%s?image_upload_id=%s&language=%s&limit=%d", c.tagsURL, uploaded.Result.UploadID, c.language, c.tagLimit)
	if env := c.api.GetInto(ctx, tagsURL, map[string]string{"Authorization": "Basic " + c.apiKey}, &tagged); !env.OK() {
		return "", errors.New(env.Err)
	}
	if len(tagged.Result.Tags) == 0 {
		return "", ErrNoTagsFound
	}

	var out strings.Builder
	out.WriteString("Likely contents of the image:\n")
	for _, tag := range tagged.Result.Tags {
		fmt.Fprintf(&out, "\n%s (%.3f%%)", titleWord(tag.Tag[c.language]), tag.Confidence)
	}
	return out.String(), nil
}

// titleWord upper-cases the first rune of a tag.
func titleWord(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
