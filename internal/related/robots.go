package related

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsChecker answers whether a lookup URL may be fetched under the host's
// robots.txt. Rules are cached per host.
type RobotsChecker struct {
	rules      map[string]*robotstxt.RobotsData
	mu         sync.RWMutex
	httpClient *http.Client
	agent      string
	userAgent  string
}

// NewRobotsChecker creates a checker identifying itself as userAgent
func NewRobotsChecker(userAgent string, timeout time.Duration) *RobotsChecker {
	return &RobotsChecker{
		rules:      make(map[string]*robotstxt.RobotsData),
		httpClient: &http.Client{Timeout: timeout},
		agent:      ProductToken(userAgent),
		userAgent:  userAgent,
	}
}

// CanFetch reports whether rawURL is allowed and the host's crawl delay. A
// robots.txt that cannot be retrieved allows everything.
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}

	data, err := r.rulesFor(ctx, parsed.Scheme, parsed.Host)
	if err != nil {
		return true, 0, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	var delay time.Duration
	if group := data.FindGroup(r.agent); group != nil {
		delay = group.CrawlDelay
	}
	return data.TestAgent(path, r.agent), delay, nil
}

func (r *RobotsChecker) rulesFor(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, ok := r.rules[host]
	r.mu.RUnlock()
	if ok {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scheme+"://"+host+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		data, _ = robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	} else if data, err = robotstxt.FromResponse(resp); err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.mu.Lock()
	r.rules[host] = data
	r.mu.Unlock()
	return data, nil
}

// ProductToken returns the product name of a User-Agent header, which is
// what robots.txt groups match against: "peerpanel/0.1 (+url)" -> "peerpanel"
func ProductToken(ua string) string {
	fields := strings.Fields(ua)
	if len(fields) == 0 {
		return ua
	}
	return strings.SplitN(fields[0], "/", 2)[0]
}
