// Package session owns the authenticated HTTP client shared by every
// component that talks to the upstream API. Cookies come from a session
// file maintained externally (interactive login is out of scope); the
// walker asks for a re-initialization whenever the feed endpoint reports
// a protocol-level failure.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultNavURL = "https://api.bilibili.com/x/web-interface/nav"

type fileData struct {
	SESSDATA     string            `yaml:"sessdata"`
	BiliJct      string            `yaml:"bili_jct"`
	RefreshToken string            `yaml:"refresh_token"`
	Extra        map[string]string `yaml:"extra_cookies"`
}

type Session struct {
	// NavURL is the login-state probe endpoint. Overridable in tests.
	NavURL string

	filePath  string
	userAgent string
	client    *http.Client

	mu   sync.RWMutex
	data fileData
}

func New(filePath, userAgent string) (*Session, error) {
	s := &Session{
		NavURL:    DefaultNavURL,
		filePath:  filePath,
		userAgent: userAgent,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}

	if err := s.Reinit(); err != nil {
		return nil, err
	}

	return s, nil
}

// Reinit re-reads the session file and replaces the in-memory cookie set.
// Called at startup and on feed protocol errors.
func (s *Session) Reinit() error {
	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		return fmt.Errorf("failed to read session file: %w", err)
	}

	var data fileData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse session file: %w", err)
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()

	slog.Debug("Session reinitialized", "file", s.filePath)
	return nil
}

// CSRF returns the anti-forgery token cookie required by write endpoints.
func (s *Session) CSRF() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.BiliJct
}

// NewRequest builds a request carrying the session cookies and the default
// header set expected by the upstream API.
func (s *Session) NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Referer", "https://www.bilibili.com/")
	req.Header.Set("Origin", "https://www.bilibili.com")

	s.mu.RLock()
	if s.data.SESSDATA != "" {
		req.AddCookie(&http.Cookie{Name: "SESSDATA", Value: s.data.SESSDATA})
	}
	if s.data.BiliJct != "" {
		req.AddCookie(&http.Cookie{Name: "bili_jct", Value: s.data.BiliJct})
	}
	for name, value := range s.data.Extra {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	s.mu.RUnlock()

	return req, nil
}

func (s *Session) Do(req *http.Request) (*http.Response, error) {
	return s.client.Do(req)
}

type navResponse struct {
	Code int `json:"code"`
	Data struct {
		IsLogin bool `json:"isLogin"`
	} `json:"data"`
}

// Check verifies the stored cookies against the nav endpoint. An empty
// sessdata or refresh token fails immediately without a network call.
func (s *Session) Check(ctx context.Context) error {
	s.mu.RLock()
	sessdata, refreshToken := s.data.SESSDATA, s.data.RefreshToken
	s.mu.RUnlock()

	if sessdata == "" {
		return fmt.Errorf("session file has no sessdata, login required")
	}
	if refreshToken == "" {
		return fmt.Errorf("session file has no refresh token, login required")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := s.NewRequest(ctx, http.MethodGet, s.NavURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create nav request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("nav request failed: %w", err)
	}
	defer resp.Body.Close()

	var nav navResponse
	if err := json.NewDecoder(resp.Body).Decode(&nav); err != nil {
		return fmt.Errorf("failed to decode nav response: %w", err)
	}

	if !nav.Data.IsLogin {
		return fmt.Errorf("session cookies rejected by API (code %d)", nav.Code)
	}

	slog.Debug("Session check passed")
	return nil
}
