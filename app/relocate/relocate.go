// Package relocate moves finished media out of the working directory
// into the final directory tree, one subdirectory per producer. The
// ledger and temp files stay behind in the working directory.
package relocate

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

type Mover struct {
	dataDir  string
	finalDir string
}

func NewMover(dataDir, finalDir string) *Mover {
	return &Mover{dataDir: dataDir, finalDir: finalDir}
}

// Relocate moves finishedPath (when non-empty) and every image file in
// the producer's working directory into the final directory. Each move
// is best effort: one stuck file must not strand the rest.
func (m *Mover) Relocate(finishedPath, uid string) {
	dest := filepath.Join(m.finalDir, uid)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		slog.Warn("Failed to create final directory", "producer", uid, "dir", dest, "error", err)
		return
	}

	if finishedPath != "" {
		m.move(finishedPath, filepath.Join(dest, filepath.Base(finishedPath)))
	}

	workDir := filepath.Join(m.dataDir, uid)
	entries, err := os.ReadDir(workDir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read working directory", "producer", uid, "error", err)
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := imageExtensions[ext]; !ok {
			continue
		}
		m.move(filepath.Join(workDir, entry.Name()), filepath.Join(dest, entry.Name()))
	}
}

// move renames, falling back to copy-and-delete when the final
// directory sits on another filesystem.
func (m *Mover) move(src, dst string) {
	if err := os.Rename(src, dst); err == nil {
		return
	}

	if err := copyFile(src, dst); err != nil {
		slog.Warn("Failed to relocate file", "src", src, "dst", dst, "error", err)
		return
	}
	if err := os.Remove(src); err != nil {
		slog.Warn("Failed to remove relocated source", "src", src, "error", err)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
