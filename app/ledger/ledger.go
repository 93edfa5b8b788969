// Package ledger keeps the durable per-producer record of already
// processed item ids. The on-disk format is a compatibility contract:
// one GBK-encoded CSV per producer with a fixed column set, a header
// row on first creation and every value quoted, so ledgers written by
// older tooling keep working unchanged.
package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

var columns = []string{"id", "comment_target_id", "comment_type", "content_type", "title", "text", "image_paths", "video_path"}

// Entry is the persisted projection of a normalized feed record.
type Entry struct {
	ID              string
	CommentTargetID string
	CommentType     int
	ContentType     string
	Title           string
	Text            string
	ImagePaths      []string
	VideoPath       string
}

type Ledger struct {
	dataDir string

	mu       sync.RWMutex
	sets     map[string]map[string]struct{}
	firstRun map[string]bool
}

func New(dataDir string) *Ledger {
	return &Ledger{
		dataDir:  dataDir,
		sets:     make(map[string]map[string]struct{}),
		firstRun: make(map[string]bool),
	}
}

func (l *Ledger) filePath(uid string) string {
	return filepath.Join(l.dataDir, uid, uid+".csv")
}

// Load reads the producer's table into memory. A missing table is an
// empty set and marks the producer as first observation.
func (l *Ledger) Load(uid string) error {
	set := make(map[string]struct{})

	f, err := os.Open(l.filePath(uid))
	if os.IsNotExist(err) {
		l.mu.Lock()
		l.sets[uid] = set
		l.firstRun[uid] = true
		l.mu.Unlock()
		slog.Info("First observation for producer, no ledger yet", "producer", uid)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(transform.NewReader(f, simplifiedchinese.GBK.NewDecoder()))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		header = nil
	} else if err != nil {
		return fmt.Errorf("failed to read ledger header: %w", err)
	}

	idIdx := 0
	for i, col := range header {
		if col == "id" {
			idIdx = i
			break
		}
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read ledger row: %w", err)
		}
		if idIdx < len(row) && row[idIdx] != "" {
			set[row[idIdx]] = struct{}{}
		}
	}

	l.mu.Lock()
	l.sets[uid] = set
	l.firstRun[uid] = false
	l.mu.Unlock()

	slog.Debug("Ledger loaded", "producer", uid, "entries", len(set))
	return nil
}

// Reload refreshes the in-memory set from disk, capturing exactly what
// was durably recorded during a sync.
func (l *Ledger) Reload(uid string) error {
	return l.Load(uid)
}

// Contains is a pure membership check against the loaded set.
func (l *Ledger) Contains(uid, id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.sets[uid][id]
	return ok
}

// IsFirstRun reports whether the last Load found no table for the producer.
func (l *Ledger) IsFirstRun(uid string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.firstRun[uid]
}

// Size returns the number of loaded entries for the producer.
func (l *Ledger) Size(uid string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sets[uid])
}

// Append writes one row, creating the table with its header on first
// write. A locked or permission-denied table is logged and skipped; the
// in-memory set is still updated so the same run does not re-process
// the item.
func (l *Ledger) Append(uid string, e Entry) error {
	l.mu.Lock()
	if l.sets[uid] == nil {
		l.sets[uid] = make(map[string]struct{})
	}
	l.sets[uid][e.ID] = struct{}{}
	l.mu.Unlock()

	path := l.filePath(uid)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		slog.Warn("Failed to create ledger directory, entry not persisted", "producer", uid, "item", e.ID, "error", err)
		return nil
	}

	_, statErr := os.Stat(path)
	needHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("Failed to open ledger for append, entry not persisted", "producer", uid, "item", e.ID, "error", err)
		return nil
	}
	defer f.Close()

	w := transform.NewWriter(f, encoding.ReplaceUnsupported(simplifiedchinese.GBK.NewEncoder()))
	defer w.Close()

	if needHeader {
		if err := writeRow(w, columns); err != nil {
			return fmt.Errorf("failed to write ledger header: %w", err)
		}
	}

	row := []string{
		e.ID,
		e.CommentTargetID,
		strconv.Itoa(e.CommentType),
		e.ContentType,
		e.Title,
		e.Text,
		strings.Join(e.ImagePaths, ";"),
		e.VideoPath,
	}
	if err := writeRow(w, row); err != nil {
		return fmt.Errorf("failed to write ledger row: %w", err)
	}

	return nil
}

// writeRow emits one CSV row with every field quoted, matching the
// format of ledgers written by earlier tooling. encoding/csv only
// quotes when required, so quoting is done here.
func writeRow(w io.Writer, fields []string) error {
	quoted := make([]string, len(fields))
	for i, field := range fields {
		quoted[i] = `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	_, err := io.WriteString(w, strings.Join(quoted, ",")+"\r\n")
	return err
}
