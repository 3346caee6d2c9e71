// Package archive handles the per-conversation working directories used by
// file-producing flows: zip packaging of downloaded batches and guaranteed
// cleanup of everything left behind.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const cleanupAttempts = 10

var cleanupBackoff = time.Second

// ConversationDir returns the working directory for one conversation.
func ConversationDir(baseDir, conversationID string) string {
	return filepath.Join(baseDir, conversationID)
}

// Zip writes the named files into a deflate-compressed archive at
// archivePath. Entries are stored under their base names.
func Zip(archivePath string, filePaths []string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, path := range filePaths {
		if err := addFile(zw, path); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s for archiving: %w", path, err)
	}
	defer in.Close()

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:   filepath.Base(path),
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("failed to create archive entry for %s: %w", path, err)
	}
	if _, err := io.Copy(entry, in); err != nil {
		return fmt.Errorf("failed to write archive entry for %s: %w", path, err)
	}
	return nil
}

// Cleanup removes dir and everything in it. Removal is retried a bounded
// number of times with a pause between attempts because files can still be
// held open briefly after delivery. A directory that survives all attempts
// is logged and reported, never silently leaked.
func Cleanup(dir string) error {
	var err error
	for attempt := 0; attempt < cleanupAttempts; attempt++ {
		err = os.RemoveAll(dir)
		if err == nil {
			return nil
		}
		time.Sleep(cleanupBackoff)
	}
	slog.Error("Archive cleanup failed to remove directory", "error", err, "dir", dir)
	return fmt.Errorf("failed to remove %s: %w", dir, err)
}
