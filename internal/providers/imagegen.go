package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/webapi"
)

// ErrUnknownImageModel is returned for a generation model outside the
// supported set.
var ErrUnknownImageModel = errors.New("unknown image generation model")

const neuroimgGenerateURL = "https://neuroimg.art/api/v1/free-generate"

// Supported generation model tags.
const (
	ImageModelDallE3   = "dall-e-3"
	ImageModelGPTImage = "gpt-image-1"
	ImageModelNeuroimg = "neuroimg"
)

// imageService is the slice of the OpenAI client used for generation.
type imageService interface {
	Generate(ctx context.Context, params openai.ImageGenerateParams) (*openai.ImagesResponse, error)
}

// chatService is the slice of the OpenAI client used for image description.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type openaiImages struct{ client openai.Client }

func (s openaiImages) Generate(ctx context.Context, params openai.ImageGenerateParams) (*openai.ImagesResponse, error) {
	return s.client.Images.Generate(ctx, params)
}

type openaiChat struct{ client openai.Client }

func (s openaiChat) New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return s.client.Chat.Completions.New(ctx, params)
}

// ImageGenClient generates images from text prompts. OpenAI models run
// through the official client; the neuroimg variant is a plain webapi call.
// Model dispatch is a lookup table, adding a variant means adding an entry.
type ImageGenClient struct {
	images      imageService
	chat        chatService
	api         *webapi.Client
	neuroimgKey string
	neuroimgURL string

	generators map[string]func(ctx context.Context, prompt string) ([]byte, error)
}

// NewImageGenClient creates a generation client. openaiKey enables the
// dall-e-3 and gpt-image-1 variants, neuroimgKey the neuroimg one; a
// variant whose key is empty fails at generation time with a provider error.
func NewImageGenClient(api *webapi.Client, openaiKey, neuroimgKey string) *ImageGenClient {
	cli := openai.NewClient(option.WithAPIKey(openaiKey))
	c := &ImageGenClient{
		images:      openaiImages{client: cli},
		chat:        openaiChat{client: cli},
		api:         api,
		neuroimgKey: neuroimgKey,
		neuroimgURL: neuroimgGenerateURL,
	}
	c.generators = map[string]func(ctx context.Context, prompt string) ([]byte, error){
		ImageModelDallE3:   c.generateDallE3,
		ImageModelGPTImage: c.generateGPTImage,
		ImageModelNeuroimg: c.generateNeuroimg,
	}
	return c
}

// Models lists the supported generation model tags.
func (c *ImageGenClient) Models() []string {
	return []string{ImageModelDallE3, ImageModelGPTImage, ImageModelNeuroimg}
}

// Generate produces one image for prompt with the given model and saves it
// into dir, returning the file path.
func (c *ImageGenClient) Generate(ctx context.Context, model, prompt, dir string) (string, error) {
	generate, ok := c.generators[model]
	if !ok {
		return "", ErrUnknownImageModel
	}
	raw, err := generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	path := filepath.Join(dir, model+".png")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("failed to save generated image: %w", err)
	}
	return path, nil
}

func (c *ImageGenClient) generateDallE3(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := c.images.Generate(ctx, openai.ImageGenerateParams{
		Model:          openai.ImageModelDallE3,
		Prompt:         prompt,
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	return decodeImageResponse(resp)
}

func (c *ImageGenClient) generateGPTImage(ctx context.Context, prompt string) ([]byte, error) {
	// gpt-image-1 always answers base64 and rejects the response_format
	// parameter.
	resp, err := c.images.Generate(ctx, openai.ImageGenerateParams{
		Model:  openai.ImageModelGPTImage1,
		Prompt: prompt,
		N:      openai.Int(1),
		Size:   openai.ImageGenerateParamsSize1024x1024,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	return decodeImageResponse(resp)
}

func (c *ImageGenClient) generateNeuroimg(ctx context.Context, prompt string) ([]byte, error) {
	env := c.api.PostJSON(ctx, c.neuroimgURL, map[string]any{
		"token":  c.neuroimgKey,
		"model":  "flux-schnell",
		"prompt": prompt,
		"width":  1024,
		"heigh":  1024,
	}, nil)
	if !env.OK() {
		return nil, errors.New(env.Err)
	}
	var result struct {
		ImageURL string `json:"image_url"`
	}
	if err := remarshal(env.Payload, &result); err != nil || result.ImageURL == "" {
		return nil, errors.New("image provider returned no download link")
	}

	download := c.api.Call(ctx, webapi.Request{URL: result.ImageURL, Decode: models.DecodeBytes})
	if !download.OK() {
		return nil, errors.New(download.Err)
	}
	return download.Bytes(), nil
}

// Describe returns a one-paragraph text description of the image at path,
// suitable as a generation prompt.
func (c *ImageGenClient) Describe(ctx context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw)

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModelGPT4oMini,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart("Describe this image in one detailed paragraph, as a prompt for a video generator."),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
	})
	if err != nil {
		return "", fmt.Errorf("image description failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no description returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// remarshal converts a loosely decoded JSON payload into a typed struct.
func remarshal(payload, target any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}

func decodeImageResponse(resp *openai.ImagesResponse) ([]byte, error) {
	if resp == nil || len(resp.Data) == 0 {
		return nil, errors.New("no image returned")
	}
	raw, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}
	return raw, nil
}
