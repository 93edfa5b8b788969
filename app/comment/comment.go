// Package comment posts the per-producer auto-reply under newly seen
// items.
package comment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultReplyURL = "https://api.bilibili.com/x/v2/reply/add"

// Requester issues requests carrying the shared session identity and
// exposes its anti-CSRF token. Satisfied by *session.Session.
type Requester interface {
	NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error)
	Do(req *http.Request) (*http.Response, error)
	CSRF() string
}

type Client struct {
	// ReplyURL is overridable in tests.
	ReplyURL string

	requester Requester
	now       func() time.Time
}

func NewClient(requester Requester) *Client {
	return &Client{
		ReplyURL:  DefaultReplyURL,
		requester: requester,
		now:       time.Now,
	}
}

type replyResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Post submits message under the target, stamped with the post time so
// repeated replies stay distinguishable.
func (c *Client) Post(ctx context.Context, commentType int, targetID, message string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	form := url.Values{}
	form.Set("type", strconv.Itoa(commentType))
	form.Set("oid", targetID)
	form.Set("message", message+"\n\n\n-------"+c.now().Format("01/02 15:04"))
	form.Set("plat", "1")
	form.Set("csrf", c.requester.CSRF())

	req, err := c.requester.NewRequest(ctx, http.MethodPost, c.ReplyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create comment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.requester.Do(req)
	if err != nil {
		return fmt.Errorf("comment request failed: %w", err)
	}
	defer resp.Body.Close()

	var result replyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode comment response: %w", err)
	}

	if result.Code != 0 {
		return fmt.Errorf("comment rejected: code %d, %s", result.Code, result.Message)
	}

	slog.Info("Comment posted", "target", targetID, "type", commentType)
	return nil
}
