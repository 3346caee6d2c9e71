package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func TestZipPackagesFiles(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"000001.jpg", "000002.jpg"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("image "+name), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}

	archivePath := filepath.Join(t.TempDir(), "images.zip")
	if err := Zip(archivePath, paths); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer zr.Close()

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["000001.jpg"] || !names["000002.jpg"] {
		t.Errorf("archive entries missing, got %v", names)
	}
}

func TestZipMissingFile(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "bad.zip")
	err := Zip(archivePath, []string{filepath.Join(t.TempDir(), "absent.jpg")})
	if err == nil {
		t.Fatal("expected an error for a missing input file")
	}
}

func TestCleanupRemovesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "conv-1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Cleanup(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("directory still exists after cleanup")
	}
}

func TestCleanupMissingDirIsNoop(t *testing.T) {
	if err := Cleanup(filepath.Join(t.TempDir(), "never-created")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConversationDir(t *testing.T) {
	got := ConversationDir("/data/work", "conv-9")
	if got != filepath.Join("/data/work", "conv-9") {
		t.Errorf("unexpected path %q", got)
	}
}
