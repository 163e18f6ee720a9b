package webfetch

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/aadityasp/agreegraph/config"
	"github.com/aadityasp/agreegraph/models"
)

// Fetcher looks up external context for a single entity. Implementations never
// fail the record as a whole: a lookup failure yields nil/empty fields so the
// caller always receives a stable shape.
type Fetcher interface {
	FetchEntity(ctx context.Context, name string) models.FetchRecord
}

// Client fetches Wikipedia summaries and Google News headlines over HTTP.
type Client struct {
	httpClient *http.Client
	userAgent  string
	maxNews    int
	logger     *log.Logger

	wikiBaseURL string
	newsBaseURL string
}

// NewClient creates a web fetcher from configuration.
func NewClient(cfg config.FetchConfig, logger *log.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxNews := cfg.MaxNewsArticles
	if maxNews <= 0 {
		maxNews = 3
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[FETCH] ", log.LstdFlags)
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		userAgent:   cfg.UserAgent,
		maxNews:     maxNews,
		logger:      logger,
		wikiBaseURL: wikipediaSummaryURL,
		newsBaseURL: googleNewsRSSURL,
	}
}

// FetchEntity gathers the Wikipedia summary and recent news for one entity.
// Each source fails independently: a Wikipedia miss still allows news and
// vice versa.
func (c *Client) FetchEntity(ctx context.Context, name string) models.FetchRecord {
	record := models.FetchRecord{Entity: name, News: []models.NewsArticle{}}

	wiki, err := c.fetchWikipedia(ctx, name)
	if err != nil {
		c.logger.Printf("wikipedia fetch for %q: %v", name, err)
	} else {
		record.Wikipedia = wiki
	}

	news, err := c.fetchNews(ctx, name)
	if err != nil {
		c.logger.Printf("news fetch for %q: %v", name, err)
	} else {
		record.News = news
	}

	return record
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.httpClient.Do(req)
}
