// Package media turns a video page URL into a finished local file:
// fetch the page, extract the stream manifest, download the video and
// audio streams with resume, and mux them into one container.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bupcache/bupcache/app/retry"
)

// Requester issues requests carrying the shared session identity.
// Satisfied by *session.Session.
type Requester interface {
	NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error)
	Do(req *http.Request) (*http.Response, error)
}

// StreamFetcher streams a URL to a destination file with byte-range
// resume. Satisfied by *download.Fetcher.
type StreamFetcher interface {
	Fetch(ctx context.Context, referer, url, dest string, maxAttempts int, timeout time.Duration) error
}

// Relocator moves finished files into the final directory layout.
type Relocator interface {
	Relocate(finishedPath, uid string)
}

type Assembler struct {
	requester Requester
	fetcher   StreamFetcher
	muxer     Muxer
	relocator Relocator

	dataDir  string
	relocate bool

	// Pacing, overridable in tests.
	attempts       int
	backoffInitial time.Duration
	backoffMax     time.Duration
	pageRetryDelay time.Duration
	streamTimeout  time.Duration
}

func NewAssembler(requester Requester, fetcher StreamFetcher, muxer Muxer, relocator Relocator, dataDir string, relocate bool) *Assembler {
	return &Assembler{
		requester:      requester,
		fetcher:        fetcher,
		muxer:          muxer,
		relocator:      relocator,
		dataDir:        dataDir,
		relocate:       relocate,
		attempts:       3,
		backoffInitial: 10 * time.Second,
		backoffMax:     60 * time.Second,
		pageRetryDelay: 3 * time.Second,
		streamTimeout:  60 * time.Second,
	}
}

// AcquireVideo drives the whole acquisition for one video page. Each
// whole-video attempt restarts from the page fetch so a stale stream
// URL is re-resolved; temp stream files are removed after every
// attempt, failed or not, so an attempt never resumes from another
// attempt's possibly inconsistent bytes.
func (a *Assembler) AcquireVideo(ctx context.Context, uid, pageURL string) error {
	bvid := videoID(pageURL)
	if bvid == "" {
		return fmt.Errorf("cannot derive video id from %q", pageURL)
	}

	dir := filepath.Join(a.dataDir, uid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create producer directory: %w", err)
	}

	title := a.pageTitle(ctx, pageURL, bvid)

	videoTmp := filepath.Join(dir, bvid+"_video.tmp")
	audioTmp := filepath.Join(dir, bvid+"_audio.tmp")
	outPath := filepath.Join(dir, fmt.Sprintf("%s_%s.mp4", SanitizeFilename(title), SanitizeFilename(bvid)))

	err := retry.Do(ctx, a.attempts, retry.Exponential(a.backoffInitial, a.backoffMax), func() error {
		err := a.assemble(ctx, uid, pageURL, videoTmp, audioTmp, outPath)
		if err != nil {
			slog.Warn("Video assembly attempt failed", "producer", uid, "video", bvid, "error", err)
			removeTemps(videoTmp, audioTmp)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("video %s: %w", bvid, err)
	}

	slog.Info("Video assembled", "producer", uid, "video", bvid, "file", outPath)

	if a.relocate {
		a.relocator.Relocate(outPath, uid)
	}
	return nil
}

func (a *Assembler) assemble(ctx context.Context, uid, pageURL, videoTmp, audioTmp, outPath string) error {
	html, err := a.fetchPage(ctx, pageURL)
	if err != nil {
		return err
	}

	videoURL, audioURL, err := ExtractPlayInfo(html)
	if err != nil {
		return err
	}

	if err := a.fetcher.Fetch(ctx, pageURL, videoURL, videoTmp, 3, a.streamTimeout); err != nil {
		return fmt.Errorf("video stream: %w", err)
	}
	if err := a.fetcher.Fetch(ctx, pageURL, audioURL, audioTmp, 3, a.streamTimeout); err != nil {
		return fmt.Errorf("audio stream: %w", err)
	}

	if err := a.muxer.Mux(ctx, videoTmp, audioTmp, outPath); err != nil {
		return err
	}

	removeTemps(videoTmp, audioTmp)
	return nil
}

// fetchPage reads the video page HTML with its own short retry loop;
// page fetch failures are the cheap kind and should not burn a
// whole-video attempt's backoff.
func (a *Assembler) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	var html []byte
	err := retry.Do(ctx, 3, retry.Constant(a.pageRetryDelay), func() error {
		reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		req, err := a.requester.NewRequest(reqCtx, http.MethodGet, pageURL, nil)
		if err != nil {
			return err
		}
		resp, err := a.requester.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
		}
		html, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video page: %w", err)
	}
	return html, nil
}

// pageTitle is best effort: a page that yields no usable title gets the
// untitled_<id> fallback rather than failing the acquisition.
func (a *Assembler) pageTitle(ctx context.Context, pageURL, bvid string) string {
	html, err := a.fetchPage(ctx, pageURL)
	if err != nil {
		slog.Warn("Failed to fetch page title", "url", pageURL, "error", err)
		return "untitled_" + bvid
	}
	if title := ExtractTitle(html); title != "" {
		return title
	}
	return "untitled_" + bvid
}

// videoID is the last path segment of the page URL, tolerating a
// trailing slash.
func videoID(pageURL string) string {
	trimmed := strings.TrimSuffix(pageURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

func removeTemps(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove temp file", "file", p, "error", err)
		}
	}
}
