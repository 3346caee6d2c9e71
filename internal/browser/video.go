// Package browser drives a headless Chrome instance through chromedp for
// the video-generation flow. The site renders the result as a blob URL, so
// the produced video is pulled out of the page as base64 and saved locally.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/FuncStore/FuncBot/internal/task"
	"github.com/FuncStore/FuncBot/internal/util"
)

// Page selectors and the blob-extraction script for the generation site.
const (
	fileInputSelector = `input[type="file"]`
	promptSelector    = `textarea[placeholder^="Input image"]`
	generateSelector  = `//button[.//text()[contains(., 'Generate')]]`
	videoSelector     = `div.h-full.relative > video`

	extractVideoJS = `(async () => {
		const video = document.querySelector('div.h-full.relative > video');
		if (!video || !video.src) { return 'ERROR: video element has no source'; }
		const resp = await fetch(video.src);
		const blob = await resp.blob();
		return await new Promise((resolve) => {
			const reader = new FileReader();
			reader.onloadend = () => resolve(reader.result);
			reader.onerror = () => resolve('ERROR: failed to read video blob');
			reader.readAsDataURL(blob);
		});
	})()`
)

// videoSteps is the fixed checkpoint count of one generation run.
const videoSteps = 9

// VideoConfig holds the knobs of the browser worker.
type VideoConfig struct {
	// GenerateURL is the image-to-video page.
	GenerateURL string
	Headless    bool
	// StepTimeout bounds ordinary page interactions; GenerateTimeout bounds
	// the wait for the rendered video, which the site takes minutes over.
	StepTimeout     time.Duration
	GenerateTimeout time.Duration
}

// VideoGenerator builds long-running video-generation operations. An
// optional describe function turns the source image into a prompt when the
// user asked for auto-description.
type VideoGenerator struct {
	cfg      VideoConfig
	describe func(ctx context.Context, imagePath string) (string, error)
}

// NewVideoGenerator creates a generator. describe may be nil when
// auto-description is unavailable.
func NewVideoGenerator(cfg VideoConfig, describe func(ctx context.Context, imagePath string) (string, error)) *VideoGenerator {
	if cfg.GenerateURL == "" {
		cfg.GenerateURL = "https://vheer.com/app/image-to-video"
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 60 * time.Second
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 400 * time.Second
	}
	return &VideoGenerator{cfg: cfg, describe: describe}
}

// Operation returns the generation run for one request. The returned
// operation owns the browser instance for its whole lifetime and releases it
// on every exit path; on cancellation any partial output is removed before
// returning.
func (g *VideoGenerator) Operation(imagePath, prompt, outDir string, autoDescribe bool) task.Operation {
	return task.Operation{
		Name:       "generate-video",
		TotalSteps: videoSteps,
		Run: func(ctx context.Context, cb task.Callbacks) (string, error) {
			return g.run(ctx, cb, imagePath, prompt, outDir, autoDescribe)
		},
	}
}

func (g *VideoGenerator) run(ctx context.Context, cb task.Callbacks, imagePath, prompt, outDir string, autoDescribe bool) (string, error) {
	// 1: entered the worker.
	cb.ReportProgress()

	opts := make([]chromedp.ExecAllocatorOption, len(chromedp.DefaultExecAllocatorOptions))
	copy(opts, chromedp.DefaultExecAllocatorOptions[:])
	opts = append(opts,
		chromedp.Flag("headless", g.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1280, 800),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	// 2: browser launched.
	cb.ReportProgress()

	if autoDescribe && g.describe != nil {
		described, err := g.describe(ctx, imagePath)
		if err != nil {
			return "", fmt.Errorf("auto-description failed: %w", err)
		}
		prompt = described
	}
	// 3: prompt resolved.
	cb.ReportProgress()

	if err := g.step(tabCtx, g.cfg.StepTimeout, chromedp.Navigate(g.cfg.GenerateURL)); err != nil {
		return "", fmt.Errorf("the site is not responding: %w", err)
	}
	if cb.IsCancelled() {
		return "", task.ErrCancelled
	}
	// 4: page loaded.
	cb.ReportProgress()

	absImage, err := filepath.Abs(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve image path: %w", err)
	}
	if err := g.step(tabCtx, g.cfg.StepTimeout,
		chromedp.WaitReady(fileInputSelector, chromedp.ByQuery),
		chromedp.SetUploadFiles(fileInputSelector, []string{absImage}, chromedp.ByQuery),
		chromedp.Sleep(10*time.Second),
	); err != nil {
		return "", fmt.Errorf("failed to upload the image: %w", err)
	}
	if cb.IsCancelled() {
		return "", task.ErrCancelled
	}
	// 5: image uploaded.
	cb.ReportProgress()

	if err := g.step(tabCtx, g.cfg.StepTimeout,
		chromedp.WaitVisible(promptSelector, chromedp.ByQuery),
		chromedp.SetValue(promptSelector, prompt, chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
	); err != nil {
		return "", fmt.Errorf("failed to enter the prompt: %w", err)
	}
	// 6: prompt entered.
	cb.ReportProgress()

	// Clicking through JS survives the site's overlay re-renders.
	if err := g.step(tabCtx, g.cfg.StepTimeout,
		chromedp.WaitEnabled(generateSelector),
		chromedp.ScrollIntoView(generateSelector),
		chromedp.Click(generateSelector),
		chromedp.Sleep(2*time.Second),
	); err != nil {
		return "", fmt.Errorf("failed to start generation: %w", err)
	}
	// 7: generation started.
	cb.ReportProgress()

	if err := g.step(tabCtx, g.cfg.GenerateTimeout, chromedp.WaitVisible(videoSelector, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("generation did not finish in time: %w", err)
	}
	if cb.IsCancelled() {
		return "", task.ErrCancelled
	}
	// 8: video rendered.
	cb.ReportProgress()

	var dataURL string
	if err := g.step(tabCtx, g.cfg.StepTimeout,
		chromedp.Evaluate(extractVideoJS, &dataURL, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	); err != nil {
		return "", fmt.Errorf("failed to extract the video: %w", err)
	}
	if strings.HasPrefix(dataURL, "ERROR:") {
		return "", fmt.Errorf("failed to download the video: %s", dataURL)
	}

	outPath, err := saveDataURL(dataURL, outDir)
	if err != nil {
		return "", err
	}
	if cb.IsCancelled() {
		// The file landed after the cancel request; remove the orphan.
		if err := os.Remove(outPath); err != nil {
			slog.Error("VideoGenerator failed to remove cancelled output", "error", err, "path", outPath)
		}
		return "", task.ErrCancelled
	}
	// 9: video saved.
	cb.ReportProgress()

	return outPath, nil
}

// step runs actions against the tab under a derived timeout.
func (g *VideoGenerator) step(tabCtx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	stepCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()
	return chromedp.Run(stepCtx, actions...)
}

// saveDataURL decodes a base64 data URL into an mp4 file under dir.
func saveDataURL(dataURL, dir string) (string, error) {
	_, encoded, found := strings.Cut(dataURL, ",")
	if !found {
		return "", fmt.Errorf("unexpected video data format")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode video data: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create video directory: %w", err)
	}
	path := filepath.Join(dir, "video-"+util.GenerateFileID()+".mp4")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("failed to save the video: %w", err)
	}
	return path, nil
}
