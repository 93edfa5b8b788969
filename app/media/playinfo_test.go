package media

import (
	"testing"
)

const manifestJSON = `{"data":{"dash":{"video":[{"baseUrl":"https://cdn.example.com/v.m4s"}],"audio":[{"baseUrl":"https://cdn.example.com/a.m4s"}]}}}`

func TestExtractPlayInfo(t *testing.T) {
	html := `<html><head><script>var x=1;</script></head><body>` +
		`<script>window.__playinfo__=` + manifestJSON + `;</script></body></html>`

	videoURL, audioURL, err := ExtractPlayInfo([]byte(html))
	if err != nil {
		t.Fatalf("ExtractPlayInfo failed: %v", err)
	}
	if videoURL != "https://cdn.example.com/v.m4s" {
		t.Errorf("Unexpected video URL: %q", videoURL)
	}
	if audioURL != "https://cdn.example.com/a.m4s" {
		t.Errorf("Unexpected audio URL: %q", audioURL)
	}
}

func TestExtractPlayInfoEscapesLiteralNewlines(t *testing.T) {
	// A raw newline inside a JSON string value is invalid JSON until
	// escaped.
	html := `<html><body><script>window.__playinfo__={"note":"line1` + "\n\r" +
		`line2","data":{"dash":{"video":[{"baseUrl":"https://v"}],"audio":[{"baseUrl":"https://a"}]}}}</script></body></html>`

	videoURL, _, err := ExtractPlayInfo([]byte(html))
	if err != nil {
		t.Fatalf("Expected newline-escape fallback to recover, got: %v", err)
	}
	if videoURL != "https://v" {
		t.Errorf("Unexpected video URL: %q", videoURL)
	}
}

func TestExtractPlayInfoMissingScript(t *testing.T) {
	if _, _, err := ExtractPlayInfo([]byte(`<html><body><script>var a=1;</script></body></html>`)); err == nil {
		t.Error("Expected error for page without playinfo script")
	}
}

func TestExtractPlayInfoMissingAudioStream(t *testing.T) {
	html := `<script>window.__playinfo__={"data":{"dash":{"video":[{"baseUrl":"https://v"}],"audio":[]}}};</script>`
	if _, _, err := ExtractPlayInfo([]byte(html)); err == nil {
		t.Error("Expected error for manifest without audio stream")
	}
}

func TestExtractTitleStripsSiteSuffix(t *testing.T) {
	cases := []struct {
		html     string
		expected string
	}{
		{`<html><head><title>测试视频_哔哩哔哩_bilibili</title></head></html>`, "测试视频"},
		{`<html><head><title>测试视频_哔哩哔哩</title></head></html>`, "测试视频"},
		{`<html><head><title>plain</title></head></html>`, "plain"},
		{`<html><head></head></html>`, ""},
	}

	for _, tc := range cases {
		if got := ExtractTitle([]byte(tc.html)); got != tc.expected {
			t.Errorf("ExtractTitle(%q) = %q, expected %q", tc.html, got, tc.expected)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{`a/b\c:d*e?f"g<h>i|j`, "a_b_c_d_e_f_g_h_i_j"},
		{"普通标题", "普通标题"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.expected {
			t.Errorf("SanitizeFilename(%q) = %q, expected %q", tc.in, got, tc.expected)
		}
	}
}
