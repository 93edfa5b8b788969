package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeSessionFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write session file: %v", err)
	}
	return path
}

func TestNewLoadsSessionFile(t *testing.T) {
	path := writeSessionFile(t, "sessdata: abc\nbili_jct: csrf-token\nrefresh_token: rt\n")

	s, err := New(path, "test-agent")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if s.CSRF() != "csrf-token" {
		t.Errorf("Expected csrf 'csrf-token', got '%s'", s.CSRF())
	}
}

func TestNewRequestCarriesCookiesAndHeaders(t *testing.T) {
	path := writeSessionFile(t, "sessdata: abc\nbili_jct: tok\nrefresh_token: rt\nextra_cookies:\n  buvid3: xyz\n")

	s, err := New(path, "test-agent")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	req, err := s.NewRequest(context.Background(), http.MethodGet, "https://example.com/", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}

	if req.Header.Get("User-Agent") != "test-agent" {
		t.Errorf("Expected user agent 'test-agent', got '%s'", req.Header.Get("User-Agent"))
	}

	cookies := map[string]string{}
	for _, c := range req.Cookies() {
		cookies[c.Name] = c.Value
	}
	if cookies["SESSDATA"] != "abc" {
		t.Errorf("Expected SESSDATA cookie 'abc', got '%s'", cookies["SESSDATA"])
	}
	if cookies["buvid3"] != "xyz" {
		t.Errorf("Expected buvid3 cookie 'xyz', got '%s'", cookies["buvid3"])
	}
}

func TestCheckFailsWithoutSessdata(t *testing.T) {
	path := writeSessionFile(t, "sessdata: \"\"\nrefresh_token: rt\n")

	s, err := New(path, "test-agent")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := s.Check(context.Background()); err == nil {
		t.Error("Expected Check to fail with empty sessdata")
	}
}

func TestCheckAgainstNavEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("SESSDATA"); err != nil {
			w.Write([]byte(`{"code":-101,"data":{"isLogin":false}}`))
			return
		}
		w.Write([]byte(`{"code":0,"data":{"isLogin":true}}`))
	}))
	defer server.Close()

	path := writeSessionFile(t, "sessdata: abc\nbili_jct: tok\nrefresh_token: rt\n")
	s, err := New(path, "test-agent")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.NavURL = server.URL

	if err := s.Check(context.Background()); err != nil {
		t.Errorf("Expected Check to pass, got: %v", err)
	}
}

func TestReinitPicksUpNewCookies(t *testing.T) {
	path := writeSessionFile(t, "sessdata: old\nbili_jct: old-tok\nrefresh_token: rt\n")

	s, err := New(path, "test-agent")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("sessdata: new\nbili_jct: new-tok\nrefresh_token: rt\n"), 0o600); err != nil {
		t.Fatalf("failed to rewrite session file: %v", err)
	}

	if err := s.Reinit(); err != nil {
		t.Fatalf("Reinit failed: %v", err)
	}

	if s.CSRF() != "new-tok" {
		t.Errorf("Expected csrf 'new-tok' after reinit, got '%s'", s.CSRF())
	}
}
