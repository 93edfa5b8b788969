package feed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/bupcache/bupcache/app/download"
	"github.com/bupcache/bupcache/app/ledger"
	"github.com/bupcache/bupcache/app/producer"
	"github.com/bupcache/bupcache/app/retry"
)

// Walker pages through a producer's feed, classifies and ledgers new
// items and drives media acquisition for them. One Sync call is one
// pass over one producer.
type Walker struct {
	client     PageFetcher
	classifier *Classifier
	ledger     LedgerStore
	images     ImageFetcher
	videos     VideoAcquirer
	relocator  FileRelocator
	commenter  Commenter
	sessionCtl SessionControl

	dataDir     string
	relocate    bool
	pageSpacing time.Duration

	// Comments stay off during the first cycle after startup so a
	// backlog drain does not spam the reply endpoint.
	commentsOn atomic.Bool
}

type WalkerOpts struct {
	Client     PageFetcher
	Classifier *Classifier
	Ledger     LedgerStore
	Images     ImageFetcher
	Videos     VideoAcquirer
	Relocator  FileRelocator
	Commenter  Commenter
	SessionCtl SessionControl

	DataDir     string
	Relocate    bool
	PageSpacing time.Duration
}

func NewWalker(opts WalkerOpts) *Walker {
	return &Walker{
		client:      opts.Client,
		classifier:  opts.Classifier,
		ledger:      opts.Ledger,
		images:      opts.Images,
		videos:      opts.Videos,
		relocator:   opts.Relocator,
		commenter:   opts.Commenter,
		sessionCtl:  opts.SessionCtl,
		dataDir:     opts.DataDir,
		relocate:    opts.Relocate,
		pageSpacing: opts.PageSpacing,
	}
}

// EnableComments flips the post-first-cycle comment latch.
func (w *Walker) EnableComments() {
	w.commentsOn.Store(true)
}

type SyncResult struct {
	NewItems  int
	Downloads int
}

// Sync walks the producer's feed until the already-seen boundary or
// page exhaustion. Transport errors abort only this producer's cycle;
// a non-success feed status additionally re-initializes the session.
func (w *Walker) Sync(ctx context.Context, p *producer.Config) (SyncResult, error) {
	uid := p.UID
	var result SyncResult

	firstRun := w.ledger.IsFirstRun(uid)
	downloadsEnabled := p.Settings.AutoDownload
	if firstRun && !p.DownloadsAtFirst() {
		downloadsEnabled = false
	}

	offset := ""
	for {
		page, err := w.client.Page(ctx, uid, offset)
		if err != nil {
			return result, fmt.Errorf("page fetch for producer %s: %w", uid, err)
		}

		if page.Code != 0 {
			slog.Error("Feed page returned non-success status", "producer", uid, "code", page.Code, "message", page.Message)
			if reinitErr := w.sessionCtl.Reinit(); reinitErr != nil {
				slog.Error("Session re-initialization failed", "producer", uid, "error", reinitErr)
			}
			return result, fmt.Errorf("producer %s: %w (code %d)", uid, ErrFeedStatus, page.Code)
		}

		hasMore := page.Data.HasMore
		if page.Data.Offset != "" {
			offset = page.Data.Offset
		}

		if w.reachedBoundary(uid, page.Data.Items) {
			slog.Info("No new content before boundary", "producer", uid)
			if !hasMore {
				break
			}
			// A pinned entry can mask a truly new item on a later
			// page, so keep paging instead of stopping here.
			if err := retry.Sleep(ctx, w.pageSpacing); err != nil {
				return result, err
			}
			continue
		}

		w.drainPage(ctx, p, page.Data.Items, downloadsEnabled, &result)

		if !hasMore {
			break
		}
		if err := retry.Sleep(ctx, w.pageSpacing); err != nil {
			return result, err
		}
	}

	// Capture exactly what was durably recorded during this pass.
	if err := w.ledger.Reload(uid); err != nil {
		slog.Warn("Failed to reload ledger after sync", "producer", uid, "error", err)
	}

	return result, nil
}

// reachedBoundary reports whether the page starts with already-seen
// content. A pinned first entry is excluded from the test: positions 0
// and 1 are then inspected jointly, since the pinned entry stays at the
// top regardless of recency.
func (w *Walker) reachedBoundary(uid string, items []Item) bool {
	if len(items) == 0 || w.ledger.Size(uid) == 0 {
		return false
	}

	if items[0].IsPinned() {
		return len(items) > 1 &&
			w.ledger.Contains(uid, items[0].IDStr) &&
			w.ledger.Contains(uid, items[1].IDStr)
	}

	return w.ledger.Contains(uid, items[0].IDStr)
}

// drainPage scans the page in reverse so side effects run
// oldest-new-item-first.
func (w *Walker) drainPage(ctx context.Context, p *producer.Config, items []Item, downloadsEnabled bool, result *SyncResult) {
	uid := p.UID

	for i := len(items) - 1; i >= 0; i-- {
		item := &items[i]
		if w.ledger.Contains(uid, item.IDStr) {
			continue
		}

		rec, err := w.classifier.Classify(item)
		if err != nil {
			// Not ledgered: the item is retried on the next cycle
			// rather than silently lost to a transient parsing bug.
			slog.Warn("Classification failed, skipping item", "producer", uid, "item", item.IDStr, "type", item.Type, "error", err)
			continue
		}

		slog.Info("New item", "producer", uid, "item", rec.ID, "type", rec.RawType, "title", rec.Title)

		if err := w.ledger.Append(uid, toEntry(rec)); err != nil {
			slog.Warn("Failed to append ledger entry", "producer", uid, "item", rec.ID, "error", err)
		}
		result.NewItems++

		if w.commentsOn.Load() && p.Settings.AutoComment != "" {
			if err := w.commenter.Post(ctx, rec.CommentType, rec.CommentTargetID, p.Settings.AutoComment); err != nil {
				slog.Warn("Comment post failed", "producer", uid, "item", rec.ID, "error", err)
			}
		}

		if !downloadsEnabled {
			continue
		}

		w.downloadImages(ctx, uid, rec, result)

		if rec.ContentType != ContentVideo && w.relocate {
			w.relocator.Relocate("", uid)
		}

		if rec.VideoPageURL != "" {
			if err := w.videos.AcquireVideo(ctx, uid, rec.VideoPageURL); err != nil {
				slog.Error("Video acquisition failed", "producer", uid, "item", rec.ID, "url", rec.VideoPageURL, "error", err)
			} else {
				result.Downloads++
			}
		}
	}
}

func (w *Walker) downloadImages(ctx context.Context, uid string, rec Record, result *SyncResult) {
	if len(rec.ImagePaths) == 0 {
		return
	}

	dir := filepath.Join(w.dataDir, uid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("Failed to create producer directory", "producer", uid, "error", err)
		return
	}

	for idx, imgURL := range rec.ImagePaths {
		dest := download.ImageDest(dir, rec.ID, idx+1, imgURL)
		if err := w.images.FetchImage(ctx, imgURL, dest); err != nil {
			slog.Warn("Image download failed", "producer", uid, "item", rec.ID, "url", imgURL, "error", err)
			continue
		}
		result.Downloads++
	}
}

func toEntry(rec Record) ledger.Entry {
	return ledger.Entry{
		ID:              rec.ID,
		CommentTargetID: rec.CommentTargetID,
		CommentType:     rec.CommentType,
		ContentType:     rec.RawType,
		Title:           rec.Title,
		Text:            rec.Text,
		ImagePaths:      rec.ImagePaths,
		VideoPath:       rec.VideoPageURL,
	}
}
