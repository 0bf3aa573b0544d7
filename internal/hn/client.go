package hn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/abelbrown/hnlive/internal/httpclient"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://hacker-news.firebaseio.com/v0"

// DefaultCacheSize bounds the number of items kept in memory.
const DefaultCacheSize = 2048

const userAgent = "hnlive/0.1 (+https://github.com/abelbrown/hnlive)"

// Client fetches items and identifier lists. It holds no feed state.
//
// Resolved items are cached: the API contract treats an item as immutable
// once fetched. Absent items are never cached because a freshly assigned
// identifier can briefly resolve to null. Concurrent requests for the same
// identifier share one HTTP round trip.
type Client struct {
	baseURL   string
	http      *http.Client
	sanitizer *Sanitizer
	cache     *lru.Cache[int, *Item]
	group     singleflight.Group
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient replaces the default rate-limited client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) error {
		cl.http = c
		return nil
	}
}

// WithCacheSize sets the item cache capacity. size <= 0 disables caching.
func WithCacheSize(size int) Option {
	return func(cl *Client) error {
		if size <= 0 {
			cl.cache = nil
			return nil
		}
		cache, err := lru.New[int, *Item](size)
		if err != nil {
			return fmt.Errorf("create item cache: %w", err)
		}
		cl.cache = cache
		return nil
	}
}

// NewClient creates a Client rooted at baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cache, err := lru.New[int, *Item](DefaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create item cache: %w", err)
	}

	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      httpclient.RateLimited(20, 10, 30*time.Second),
		sanitizer: NewSanitizer(),
		cache:     cache,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// FetchItem returns the item with the given identifier, or (nil, nil) when
// the API reports it as null (deleted or nonexistent).
func (c *Client) FetchItem(ctx context.Context, id int) (*Item, error) {
	if c.cache != nil {
		if item, ok := c.cache.Get(id); ok {
			return item, nil
		}
	}

	url := fmt.Sprintf("%s/item/%d.json", c.baseURL, id)
	if err := ctx.Err(); err != nil {
		return nil, &TransientFetchError{Op: "item", URL: url, Err: err}
	}
	// The round trip is shared, so one caller giving up must not fail the
	// others. The HTTP client's timeout still bounds it.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.Itoa(id), func() (any, error) {
		var item *Item
		if err := c.getJSON(shared, "item", url, &item); err != nil {
			return nil, err
		}
		if item == nil {
			return (*Item)(nil), nil
		}
		item.Text = c.sanitizer.Sanitize(item.Text)
		if c.cache != nil {
			c.cache.Add(id, item)
		}
		return item, nil
	})

	select {
	case <-ctx.Done():
		return nil, &TransientFetchError{Op: "item", URL: url, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Item), nil
	}
}

// FetchLatestID returns the highest identifier currently assigned.
func (c *Client) FetchLatestID(ctx context.Context) (int, error) {
	var id int
	if err := c.getJSON(ctx, "maxitem", c.baseURL+"/maxitem.json", &id); err != nil {
		return 0, err
	}
	return id, nil
}

// FetchFilteredIDs returns the identifier list published at /{list}.json,
// e.g. "newstories" or "jobstories", in remote order.
func (c *Client) FetchFilteredIDs(ctx context.Context, list string) ([]int, error) {
	var ids []int
	url := fmt.Sprintf("%s/%s.json", c.baseURL, list)
	if err := c.getJSON(ctx, "list", url, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// getJSON performs a GET and decodes the body into v. Every failure is
// reported as a TransientFetchError.
func (c *Client) getJSON(ctx context.Context, op, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &TransientFetchError{Op: op, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransientFetchError{Op: op, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransientFetchError{
			Op:         op,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &TransientFetchError{Op: op, URL: url, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
