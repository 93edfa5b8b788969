package relocate

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestRelocateMovesFinishedFileAndImages(t *testing.T) {
	dataDir := t.TempDir()
	finalDir := t.TempDir()

	finished := filepath.Join(dataDir, "12345", "标题_BV1xx411.mp4")
	writeFile(t, finished)
	writeFile(t, filepath.Join(dataDir, "12345", "900001_001.jpg"))
	writeFile(t, filepath.Join(dataDir, "12345", "900001_002.PNG"))
	writeFile(t, filepath.Join(dataDir, "12345", "12345.csv"))
	writeFile(t, filepath.Join(dataDir, "12345", "BV1xx411_video.tmp"))

	NewMover(dataDir, finalDir).Relocate(finished, "12345")

	for _, name := range []string{"标题_BV1xx411.mp4", "900001_001.jpg", "900001_002.PNG"} {
		if _, err := os.Stat(filepath.Join(finalDir, "12345", name)); err != nil {
			t.Errorf("Expected %s in final directory: %v", name, err)
		}
	}
	for _, name := range []string{"12345.csv", "BV1xx411_video.tmp"} {
		if _, err := os.Stat(filepath.Join(dataDir, "12345", name)); err != nil {
			t.Errorf("Expected %s to stay in working directory: %v", name, err)
		}
	}
	if _, err := os.Stat(finished); !os.IsNotExist(err) {
		t.Error("Expected finished file to be gone from working directory")
	}
}

func TestRelocateWithoutFinishedFileSweepsImagesOnly(t *testing.T) {
	dataDir := t.TempDir()
	finalDir := t.TempDir()

	writeFile(t, filepath.Join(dataDir, "12345", "900002_001.webp"))
	writeFile(t, filepath.Join(dataDir, "12345", "12345.csv"))

	NewMover(dataDir, finalDir).Relocate("", "12345")

	if _, err := os.Stat(filepath.Join(finalDir, "12345", "900002_001.webp")); err != nil {
		t.Errorf("Expected image in final directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "12345", "12345.csv")); err != nil {
		t.Errorf("Ledger must stay in working directory: %v", err)
	}
}

func TestRelocateMissingWorkingDirectory(t *testing.T) {
	dataDir := t.TempDir()
	finalDir := t.TempDir()

	// Must not panic or create noise when the producer has no working
	// directory yet.
	NewMover(dataDir, finalDir).Relocate("", "99999")

	if _, err := os.Stat(filepath.Join(finalDir, "99999")); err != nil {
		t.Errorf("Final directory should still be created: %v", err)
	}
}
