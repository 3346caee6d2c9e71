package browser

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestSaveDataURL(t *testing.T) {
	payload := []byte("mp4-bytes")
	dataURL := "data:video/mp4;base64," + base64.StdEncoding.EncodeToString(payload)

	path, err := saveDataURL(dataURL, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(path, ".mp4") {
		t.Errorf("expected an mp4 path, got %q", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil || string(raw) != "mp4-bytes" {
		t.Errorf("unexpected file contents: %q err=%v", raw, err)
	}
}

func TestSaveDataURLNamesOutputsUniquely(t *testing.T) {
	dir := t.TempDir()
	dataURL := "data:video/mp4;base64," + base64.StdEncoding.EncodeToString([]byte("x"))
	namePattern := regexp.MustCompile(`^video-[0-9a-f]{8}\.mp4$`)

	seen := make(map[string]bool)
	for i := 0; i < 8; i++ {
		path, err := saveDataURL(dataURL, dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		name := filepath.Base(path)
		if !namePattern.MatchString(name) {
			t.Fatalf("output name %q does not carry a random file id", name)
		}
		if seen[name] {
			t.Fatalf("duplicate output name %q", name)
		}
		seen[name] = true
	}
}

func TestSaveDataURLRejectsMalformed(t *testing.T) {
	if _, err := saveDataURL("no-comma-here", t.TempDir()); err == nil {
		t.Error("expected an error for a data URL without payload")
	}
	if _, err := saveDataURL("data:video/mp4;base64,!!!", t.TempDir()); err == nil {
		t.Error("expected an error for invalid base64")
	}
}

func TestOperationShape(t *testing.T) {
	g := NewVideoGenerator(VideoConfig{}, nil)
	op := g.Operation("/tmp/in.jpg", "a fox", t.TempDir(), false)
	if op.TotalSteps != videoSteps {
		t.Errorf("expected %d steps, got %d", videoSteps, op.TotalSteps)
	}
	if op.Name != "generate-video" {
		t.Errorf("unexpected operation name %q", op.Name)
	}
}

func TestConfigDefaults(t *testing.T) {
	g := NewVideoGenerator(VideoConfig{}, nil)
	if g.cfg.GenerateURL == "" {
		t.Error("expected a default generation URL")
	}
	if g.cfg.StepTimeout != 60*time.Second || g.cfg.GenerateTimeout != 400*time.Second {
		t.Errorf("unexpected timeout defaults: %v %v", g.cfg.StepTimeout, g.cfg.GenerateTimeout)
	}
}
