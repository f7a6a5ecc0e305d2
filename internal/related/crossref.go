package related

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/ppiankov/peerpanel/internal/cache"
	"github.com/ppiankov/peerpanel/internal/model"
	"github.com/ppiankov/peerpanel/internal/worker"
)

const (
	fallbackTitleLen = 200
	lookupTTL        = 7 * 24 * time.Hour
)

var (
	// ErrNoMatch is returned when Crossref has no work for a citation
	ErrNoMatch = errors.New("no matching work")
	// ErrDisallowed is returned when robots.txt forbids the lookup
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

// Client looks citations up in the Crossref works API
type Client struct {
	baseURL string
	mailto  string
	fetcher *Fetcher
	robots  *RobotsChecker
	cache   cache.Cache
	limiter *worker.Limiter
	logger  *zap.Logger
}

// NewClient creates a Crossref client. c and limiter may be nil.
func NewClient(cfg model.RelatedConfig, c cache.Cache, limiter *worker.Limiter, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &Client{
		baseURL: strings.TrimRight(cfg.CrossrefURL, "/"),
		mailto:  cfg.Mailto,
		fetcher: NewFetcher(timeout, cfg.UserAgent, cfg.MaxBodyBytes),
		cache:   c,
		limiter: limiter,
		logger:  logger,
	}
	if cfg.RespectRobots {
		client.robots = NewRobotsChecker(cfg.UserAgent, timeout)
	}
	return client
}

// Lookup returns metadata for citation. Any failure degrades to a record
// carrying only a title cut from the citation text.
func (c *Client) Lookup(ctx context.Context, citation string) model.RelatedPaper {
	rec, err := c.Fetch(ctx, citation)
	if err != nil {
		c.logger.Warn("citation lookup failed, using title only",
			zap.String("citation", truncateRunes(citation, 80)),
			zap.Error(err))
		return TitleOnly(citation)
	}
	return rec
}

// TitleOnly is the degraded record for a citation that could not be resolved
func TitleOnly(citation string) model.RelatedPaper {
	return model.RelatedPaper{Title: truncateRunes(strings.TrimSpace(citation), fallbackTitleLen)}
}

// Fetch queries Crossref for the best match to citation
func (c *Client) Fetch(ctx context.Context, citation string) (model.RelatedPaper, error) {
	rawURL := c.queryURL(citation)
	key := cache.Key("crossref", rawURL)

	if c.cache != nil {
		if data, ok := c.cache.Get(key); ok {
			var rec model.RelatedPaper
			if err := json.Unmarshal(data, &rec); err == nil {
				return rec, nil
			}
		}
	}

	var delay time.Duration
	if c.robots != nil {
		allowed, crawlDelay, err := c.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return model.RelatedPaper{}, err
		}
		if !allowed {
			return model.RelatedPaper{}, ErrDisallowed
		}
		delay = crawlDelay
	}
	if c.limiter != nil {
		if err := c.limiter.WaitURL(ctx, rawURL, delay); err != nil {
			return model.RelatedPaper{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	res, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return model.RelatedPaper{}, err
	}

	var body worksResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return model.RelatedPaper{}, fmt.Errorf("decode response: %w", err)
	}
	if len(body.Message.Items) == 0 {
		return model.RelatedPaper{}, ErrNoMatch
	}

	rec := body.Message.Items[0].toRelated(citation)
	if c.cache != nil {
		if data, err := json.Marshal(rec); err == nil {
			_ = c.cache.Set(key, data, lookupTTL)
		}
	}
	return rec, nil
}

func (c *Client) queryURL(citation string) string {
	q := url.Values{}
	q.Set("query.bibliographic", citation)
	q.Set("rows", "1")
	if c.mailto != "" {
		q.Set("mailto", c.mailto)
	}
	return c.baseURL + "/works?" + q.Encode()
}

type worksResponse struct {
	Message struct {
		Items []work `json:"items"`
	} `json:"message"`
}

type work struct {
	Title          []string `json:"title"`
	URL            string   `json:"URL"`
	DOI            string   `json:"DOI"`
	Abstract       string   `json:"abstract"`
	ContainerTitle []string `json:"container-title"`
	Author         []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
		Name   string `json:"name"`
	} `json:"author"`
	Issued struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"issued"`
}

func (w work) toRelated(citation string) model.RelatedPaper {
	rec := model.RelatedPaper{
		Title:   strings.TrimSpace(strings.Join(w.Title, " ")),
		URL:     w.URL,
		DOI:     w.DOI,
		Summary: StripMarkup(w.Abstract),
	}
	if rec.Title == "" {
		rec.Title = TitleOnly(citation).Title
	}
	for _, a := range w.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name == "" {
			name = strings.TrimSpace(a.Name)
		}
		if name != "" {
			rec.Authors = append(rec.Authors, name)
		}
	}
	if len(w.Issued.DateParts) > 0 && len(w.Issued.DateParts[0]) > 0 {
		rec.Year = w.Issued.DateParts[0][0]
	}
	if len(w.ContainerTitle) > 0 {
		rec.Venue = strings.TrimSpace(w.ContainerTitle[0])
	}
	return rec
}

// StripMarkup returns the visible text of an HTML or JATS fragment with
// whitespace collapsed. Entities are decoded.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(b.String()), " ")
}

