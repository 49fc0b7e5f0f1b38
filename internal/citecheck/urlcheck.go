package citecheck

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/veridexhq/veridex/internal/util"
)

// URLChecker verifies that reference URLs still resolve. It honors
// robots.txt before touching a host and caches verdicts per URL, so a
// bibliography citing the same source ten times costs one request.
type URLChecker struct {
	httpClient *http.Client
	robots     *util.RobotsChecker
	userAgent  string

	mu      sync.Mutex
	results map[string]error
}

// NewURLChecker creates a URL checker
func NewURLChecker(userAgent string, timeout time.Duration) *URLChecker {
	return &URLChecker{
		httpClient: &http.Client{Timeout: timeout},
		robots:     util.NewRobotsChecker(userAgent, timeout),
		userAgent:  userAgent,
		results:    make(map[string]error),
	}
}

// Check returns nil when the URL resolves, an error describing why not
// otherwise. Disallowed-by-robots hosts are skipped, not reported dead.
func (c *URLChecker) Check(ctx context.Context, rawURL string) error {
	c.mu.Lock()
	if err, ok := c.results[rawURL]; ok {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	err := c.checkOnce(ctx, rawURL)

	c.mu.Lock()
	c.results[rawURL] = err
	c.mu.Unlock()
	return err
}

func (c *URLChecker) checkOnce(ctx context.Context, rawURL string) error {
	if !c.robots.IsAllowed(ctx, rawURL) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("unreachable: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Some servers reject HEAD outright; retry those with GET
	if resp.StatusCode == http.StatusMethodNotAllowed {
		return c.checkGet(ctx, rawURL)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *URLChecker) checkGet(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("unreachable: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}
