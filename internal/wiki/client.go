package wiki

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the OSRS section of the RuneScape Wiki prices API.
const DefaultBaseURL = "https://prices.runescape.wiki/api/v1/osrs"

// StatusError is returned for non-2xx API responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wiki %d: %s", e.Code, e.Body)
}

// Observer receives one call per finished HTTP fetch; the metrics recorder implements it.
type Observer interface {
	ObserveFetch(resource string, d time.Duration, err error)
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	Concurrency int
	MaxRetries  int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	Observer    Observer
}

// Client is a rate-limited HTTP client for the prices API.
// Identical concurrent requests are coalesced into one round trip.
type Client struct {
	http       *http.Client
	baseURL    string
	userAgent  string
	sem        chan struct{}
	group      singleflight.Group
	maxRetries int
	backoffMin time.Duration
	backoffMax time.Duration
	observer   Observer

	// flight bounds a shared fetch, which outlives any single caller.
	flight time.Duration

	mu     sync.Mutex
	lastOK time.Time
}

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "osrs-flip/1.0 (github.com/SyfSchydea/osrs-flip)"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = 500 * time.Millisecond
	}
	if opts.BackoffMax < opts.BackoffMin {
		opts.BackoffMax = opts.BackoffMin
	}
	return &Client{
		http:       &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		sem:        make(chan struct{}, opts.Concurrency),
		maxRetries: opts.MaxRetries,
		backoffMin: opts.BackoffMin,
		backoffMax: opts.BackoffMax,
		observer:   opts.Observer,
		flight:     time.Duration(opts.MaxRetries+1)*(opts.Timeout+opts.BackoffMax),
	}
}

// HealthCheck requests a single item from /latest to verify connectivity.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.fetchOnce(ctx, c.baseURL+"/latest?id=2")
	return err == nil
}

// LastSuccess returns the time of the last successful fetch (zero if none).
func (c *Client) LastSuccess() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastOK
}

// get fetches a named resource and returns the raw body.
// Concurrent calls for the same resource share one request. The shared
// request is detached from ctx so that one caller giving up does not fail
// the others; each caller still returns as soon as its own ctx is done.
func (c *Client) get(ctx context.Context, resource string) ([]byte, error) {
	ch := c.group.DoChan(resource, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flight)
		defer cancel()
		start := time.Now()
		body, err := c.fetchWithRetry(fctx, c.baseURL+"/"+resource)
		if c.observer != nil {
			c.observer.ObserveFetch(resource, time.Since(start), err)
		}
		return body, err
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, fmt.Errorf("fetch %s: %w", resource, r.Err)
		}
		return r.Val.([]byte), nil
	}
}

func (c *Client) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		body, err := c.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		if attempt >= c.maxRetries || ctx.Err() != nil || !retryable(err) {
			return nil, err
		}
		t := time.NewTimer(c.backoff(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	// The wiki blocks default library user agents.
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > 200 {
			body = body[:200]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	c.mu.Lock()
	c.lastOK = time.Now()
	c.mu.Unlock()
	return body, nil
}

// backoff doubles from backoffMin per attempt, capped at backoffMax.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.backoffMin
	for i := 0; i < attempt && d < c.backoffMax; i++ {
		d *= 2
	}
	if d > c.backoffMax {
		d = c.backoffMax
	}
	return d
}

// retryable reports whether err is worth another attempt: transport
// failures, 429 and 5xx. Any other status is final.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}
