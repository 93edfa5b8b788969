package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const DefaultFeedURL = "https://api.bilibili.com/x/polymer/web-dynamic/v1/feed/space"

// ErrFeedStatus marks a page whose top-level status is non-success.
// The walker reacts with a full session re-initialization.
var ErrFeedStatus = errors.New("feed returned non-success status")

// Requester issues requests carrying the shared session identity.
type Requester interface {
	NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error)
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	// FeedURL is the paginated feed endpoint. Overridable in tests.
	FeedURL string

	requester Requester
}

func NewClient(requester Requester) *Client {
	return &Client{
		FeedURL:   DefaultFeedURL,
		requester: requester,
	}
}

// Page fetches one feed page for the producer. offset is the opaque
// cursor from the previous page, empty for page one.
func (c *Client) Page(ctx context.Context, uid, offset string) (*PageResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	params := url.Values{}
	params.Set("host_mid", uid)
	params.Set("offset", offset)
	params.Set("page", "1")

	req, err := c.requester.NewRequest(ctx, http.MethodGet, c.FeedURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}

	resp, err := c.requester.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	var page PageResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode feed page: %w", err)
	}

	return &page, nil
}
