package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type httpRequester struct {
	client *http.Client
}

func (r *httpRequester) NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, url, body)
}

func (r *httpRequester) Do(req *http.Request) (*http.Response, error) {
	return r.client.Do(req)
}

type fakeStreamFetcher struct {
	failures int
	calls    []string
}

func (f *fakeStreamFetcher) Fetch(_ context.Context, _, url, dest string, _ int, _ time.Duration) error {
	f.calls = append(f.calls, url)
	if f.failures > 0 {
		f.failures--
		return errors.New("stream stalled")
	}
	return os.WriteFile(dest, []byte("stream-bytes"), 0o644)
}

type fakeMuxer struct {
	failures int
	calls    int
}

func (m *fakeMuxer) Mux(_ context.Context, _, _, outPath string) error {
	m.calls++
	if m.failures > 0 {
		m.failures--
		return errors.New("container error")
	}
	return os.WriteFile(outPath, []byte("muxed"), 0o644)
}

type fakeRelocator struct {
	calls []string
}

func (r *fakeRelocator) Relocate(finishedPath, uid string) {
	r.calls = append(r.calls, finishedPath)
}

const videoPageHTML = `<html><head><title>测试视频_哔哩哔哩_bilibili</title></head><body>` +
	`<script>window.__playinfo__=` + manifestJSON + `;</script></body></html>`

type assemblerFixture struct {
	assembler *Assembler
	fetcher   *fakeStreamFetcher
	muxer     *fakeMuxer
	relocator *fakeRelocator
	dataDir   string
	pageURL   string
}

func newAssemblerFixture(t *testing.T, html string, relocate bool) *assemblerFixture {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)

	fetcher := &fakeStreamFetcher{}
	muxer := &fakeMuxer{}
	relocator := &fakeRelocator{}
	dataDir := t.TempDir()

	a := NewAssembler(&httpRequester{client: srv.Client()}, fetcher, muxer, relocator, dataDir, relocate)
	a.attempts = 2
	a.backoffInitial = time.Millisecond
	a.backoffMax = 2 * time.Millisecond
	a.pageRetryDelay = time.Millisecond

	return &assemblerFixture{
		assembler: a,
		fetcher:   fetcher,
		muxer:     muxer,
		relocator: relocator,
		dataDir:   dataDir,
		pageURL:   srv.URL + "/video/BV1xx411/",
	}
}

func TestAcquireVideo(t *testing.T) {
	fx := newAssemblerFixture(t, videoPageHTML, true)

	if err := fx.assembler.AcquireVideo(context.Background(), "12345", fx.pageURL); err != nil {
		t.Fatalf("AcquireVideo failed: %v", err)
	}

	outPath := filepath.Join(fx.dataDir, "12345", "测试视频_BV1xx411.mp4")
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("Expected muxed output at %s: %v", outPath, err)
	}

	for _, tmp := range []string{"BV1xx411_video.tmp", "BV1xx411_audio.tmp"} {
		if _, err := os.Stat(filepath.Join(fx.dataDir, "12345", tmp)); !os.IsNotExist(err) {
			t.Errorf("Expected temp file %s to be removed", tmp)
		}
	}

	if len(fx.fetcher.calls) != 2 {
		t.Errorf("Expected 2 stream fetches, got %v", fx.fetcher.calls)
	}
	if fx.fetcher.calls[0] != "https://cdn.example.com/v.m4s" || fx.fetcher.calls[1] != "https://cdn.example.com/a.m4s" {
		t.Errorf("Streams fetched out of order: %v", fx.fetcher.calls)
	}

	if len(fx.relocator.calls) != 1 || fx.relocator.calls[0] != outPath {
		t.Errorf("Expected relocation of %s, got %v", outPath, fx.relocator.calls)
	}
}

func TestAcquireVideoWithoutRelocation(t *testing.T) {
	fx := newAssemblerFixture(t, videoPageHTML, false)

	if err := fx.assembler.AcquireVideo(context.Background(), "12345", fx.pageURL); err != nil {
		t.Fatalf("AcquireVideo failed: %v", err)
	}
	if len(fx.relocator.calls) != 0 {
		t.Errorf("Expected no relocation, got %v", fx.relocator.calls)
	}
}

func TestAcquireVideoRetriesAfterStreamFailure(t *testing.T) {
	fx := newAssemblerFixture(t, videoPageHTML, false)
	fx.fetcher.failures = 1

	if err := fx.assembler.AcquireVideo(context.Background(), "12345", fx.pageURL); err != nil {
		t.Fatalf("Expected second attempt to succeed: %v", err)
	}
	// First attempt: 1 failed video fetch. Second attempt: video + audio.
	if len(fx.fetcher.calls) != 3 {
		t.Errorf("Expected 3 stream fetches across attempts, got %d", len(fx.fetcher.calls))
	}
}

func TestAcquireVideoMuxFailureCleansTemps(t *testing.T) {
	fx := newAssemblerFixture(t, videoPageHTML, false)
	fx.muxer.failures = 2

	err := fx.assembler.AcquireVideo(context.Background(), "12345", fx.pageURL)
	if err == nil {
		t.Fatal("Expected acquisition to fail after exhausted attempts")
	}
	if fx.muxer.calls != 2 {
		t.Errorf("Expected 2 mux attempts, got %d", fx.muxer.calls)
	}

	entries, err := os.ReadDir(filepath.Join(fx.dataDir, "12345"))
	if err != nil {
		t.Fatalf("Failed to read producer directory: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected all temp files removed after failure, found %v", names)
	}
}

func TestAcquireVideoTitleFallback(t *testing.T) {
	html := `<html><head></head><body><script>window.__playinfo__=` + manifestJSON + `;</script></body></html>`
	fx := newAssemblerFixture(t, html, false)

	if err := fx.assembler.AcquireVideo(context.Background(), "12345", fx.pageURL); err != nil {
		t.Fatalf("AcquireVideo failed: %v", err)
	}

	outPath := filepath.Join(fx.dataDir, "12345", "untitled_BV1xx411_BV1xx411.mp4")
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("Expected fallback-named output at %s: %v", outPath, err)
	}
}

func TestVideoID(t *testing.T) {
	cases := []struct {
		url      string
		expected string
	}{
		{"https://www.bilibili.com/video/BV1xx411/", "BV1xx411"},
		{"https://www.bilibili.com/video/BV1xx411", "BV1xx411"},
	}
	for _, tc := range cases {
		if got := videoID(tc.url); got != tc.expected {
			t.Errorf("videoID(%q) = %q, expected %q", tc.url, got, tc.expected)
		}
	}
}

func TestFFmpegMuxerMissingInput(t *testing.T) {
	dir := t.TempDir()
	m := NewFFmpegMuxer("ffmpeg")
	err := m.Mux(context.Background(), filepath.Join(dir, "v.tmp"), filepath.Join(dir, "a.tmp"), filepath.Join(dir, "out.mp4"))
	if err == nil {
		t.Error("Expected error for missing input streams")
	}
}

func TestFFmpegMuxerNoOutputProduced(t *testing.T) {
	dir := t.TempDir()
	videoTmp := filepath.Join(dir, "v.tmp")
	audioTmp := filepath.Join(dir, "a.tmp")
	os.WriteFile(videoTmp, []byte("v"), 0o644)
	os.WriteFile(audioTmp, []byte("a"), 0o644)

	// "true" exits cleanly without writing anything, which must still be
	// treated as a mux failure.
	m := NewFFmpegMuxer("true")
	err := m.Mux(context.Background(), videoTmp, audioTmp, filepath.Join(dir, "out.mp4"))
	if err == nil {
		t.Error("Expected error when the tool produces no output file")
	}
}
