// Package download implements the byte-range fetch primitive used for
// video streams, audio streams and (via the simpler non-resuming
// variant) images. It knows nothing about muxing.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bupcache/bupcache/app/retry"
)

// ErrIntegrity marks a completed stream whose on-disk size does not
// match the expected total. The partial file is kept to seed the next
// attempt's resume.
var ErrIntegrity = errors.New("downloaded size mismatch")

const chunkSize = 1 << 20

// Requester issues requests carrying the shared session identity.
// Satisfied by *session.Session.
type Requester interface {
	NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error)
}

type Fetcher struct {
	requester Requester
	client    *http.Client

	// Retry pacing, overridable in tests.
	fixedDelay time.Duration
	linearStep time.Duration
	linearMax  time.Duration
}

// NewFetcher builds a fetcher with transport-level timeouts only: an
// overall client timeout would kill long stream downloads, so stalls
// are detected by a per-read watchdog instead.
func NewFetcher(requester Requester, connectTimeout time.Duration) *Fetcher {
	return &Fetcher{
		requester: requester,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
				TLSHandshakeTimeout:   connectTimeout,
				ResponseHeaderTimeout: connectTimeout,
			},
		},
		fixedDelay: 5 * time.Second,
		linearStep: 5 * time.Second,
		linearMax:  30 * time.Second,
	}
}

// Fetch streams url to dest with byte-range resume. The size of an
// existing partial file at dest is the resume offset; there is no
// separate state file. Timeouts back off linearly (attempt x 5s, capped
// at 30s), other errors wait a fixed 5s. The partial file is never
// deleted here — the caller decides after the last attempt.
func (f *Fetcher) Fetch(ctx context.Context, referer, url, dest string, maxAttempts int, timeout time.Duration) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	linear := retry.NewLinear(f.linearStep, f.linearMax)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := f.attempt(ctx, referer, url, dest, timeout)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		var delay time.Duration
		if isTimeout(err) {
			delay = linear.NextBackOff()
			slog.Warn("Download timed out, backing off", "url", url, "attempt", attempt, "max_attempts", maxAttempts, "delay", delay.String())
		} else {
			delay = f.fixedDelay
			slog.Warn("Download failed, retrying", "url", url, "attempt", attempt, "max_attempts", maxAttempts, "error", err)
		}
		if err := retry.Sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("download failed after %d attempts: %w", maxAttempts, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, referer, url, dest string, timeout time.Duration) error {
	var resumeFrom int64
	if info, err := os.Stat(dest); err == nil {
		resumeFrom = info.Size()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := f.requester.NewRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Referer", referer)
	if resumeFrom > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	expectedTotal := int64(0)
	if resp.ContentLength > 0 {
		expectedTotal = resp.ContentLength + resumeFrom
	}

	flags := os.O_CREATE | os.O_WRONLY
	if resumeFrom > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open destination: %w", err)
	}

	// Read timeout is twice the connect timeout; the watchdog cancels
	// the request when no chunk arrives in that window.
	readTimeout := 2 * timeout
	watchdog := time.AfterFunc(readTimeout, cancel)
	defer watchdog.Stop()

	buf := make([]byte, chunkSize)
	var copyErr error
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			watchdog.Reset(readTimeout)
			if _, werr := out.Write(buf[:n]); werr != nil {
				copyErr = fmt.Errorf("failed to write chunk: %w", werr)
				break
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			copyErr = fmt.Errorf("failed to read body: %w", rerr)
			break
		}
	}

	if cerr := out.Close(); cerr != nil && copyErr == nil {
		copyErr = fmt.Errorf("failed to close destination: %w", cerr)
	}
	if copyErr != nil {
		return copyErr
	}

	if expectedTotal > 0 {
		info, err := os.Stat(dest)
		if err != nil {
			return fmt.Errorf("failed to stat destination: %w", err)
		}
		if info.Size() != expectedTotal {
			return fmt.Errorf("%w: expected %d bytes, have %d", ErrIntegrity, expectedTotal, info.Size())
		}
	}

	return nil
}

// FetchImage is the non-resuming single-shot variant used for image
// posts and covers.
func (f *Fetcher) FetchImage(ctx context.Context, url, dest string) error {
	req, err := f.requester.NewRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("failed to write image: %w", err)
	}

	return out.Close()
}

// ImageDest names an image file the way the working directory layout
// expects: <itemID>_00<index>.<ext>, index starting at 1, extension
// taken from the URL.
func ImageDest(dir, itemID string, index int, url string) string {
	base := url
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	ext := "jpg"
	if i := strings.LastIndex(base, "."); i >= 0 && i < len(base)-1 {
		ext = base[i+1:]
	}
	return filepath.Join(dir, fmt.Sprintf("%s_00%d.%s", itemID, index, ext))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
