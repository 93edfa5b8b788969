package media

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const playinfoMarker = "window.__playinfo__"

type playInfo struct {
	Data struct {
		Dash struct {
			Video []streamRef `json:"video"`
			Audio []streamRef `json:"audio"`
		} `json:"dash"`
	} `json:"data"`
}

type streamRef struct {
	BaseURL string `json:"baseUrl"`
}

// ExtractPlayInfo pulls the script-injected stream manifest out of a
// video page and returns the first listed video and audio stream URLs.
func ExtractPlayInfo(html []byte) (videoURL, audioURL string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse video page: %w", err)
	}

	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(text, playinfoMarker) {
			script = text
			return false
		}
		return true
	})
	if script == "" {
		return "", "", fmt.Errorf("video page has no playinfo script")
	}

	_, raw, found := strings.Cut(script, "=")
	if !found {
		return "", "", fmt.Errorf("playinfo script has no assignment")
	}
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, ";")

	var info playInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		// Some pages carry literal newlines inside string values;
		// escape them and try once more.
		escaped := strings.ReplaceAll(raw, "\n", `\n`)
		escaped = strings.ReplaceAll(escaped, "\r", `\r`)
		if err2 := json.Unmarshal([]byte(escaped), &info); err2 != nil {
			return "", "", fmt.Errorf("failed to parse playinfo JSON: %w", err)
		}
	}

	if len(info.Data.Dash.Video) == 0 || info.Data.Dash.Video[0].BaseURL == "" {
		return "", "", fmt.Errorf("playinfo has no video stream")
	}
	if len(info.Data.Dash.Audio) == 0 || info.Data.Dash.Audio[0].BaseURL == "" {
		return "", "", fmt.Errorf("playinfo has no audio stream")
	}

	return info.Data.Dash.Video[0].BaseURL, info.Data.Dash.Audio[0].BaseURL, nil
}

// ExtractTitle returns the page title with the site suffix variants
// stripped, or "" when the page has no title.
func ExtractTitle(html []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	for _, suffix := range []string{"_哔哩哔哩_bilibili", "_哔哩哔哩", "_bilibili"} {
		title = strings.ReplaceAll(title, suffix, "")
	}
	return title
}

var illegalFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// SanitizeFilename replaces characters illegal in file names with an
// underscore.
func SanitizeFilename(name string) string {
	return illegalFilenameChars.ReplaceAllString(name, "_")
}
