package webfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/aadityasp/agreegraph/models"
	"github.com/aadityasp/agreegraph/utils"
)

const wikipediaSummaryURL = "https://en.wikipedia.org/api/rest_v1/page/summary/"

// summaries are capped so enrichment text stays bounded
const maxSummaryChars = 500

type wikipediaResponse struct {
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// fetchWikipedia resolves an entity name against the Wikipedia REST summary
// endpoint. A 404 means the entity has no article; that is an error to the
// caller but a routine one.
func (c *Client) fetchWikipedia(ctx context.Context, name string) (*models.WikipediaSummary, error) {
	resp, err := c.get(ctx, c.wikiBaseURL+url.PathEscape(name))
	if err != nil {
		return nil, fmt.Errorf("wikipedia request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no wikipedia page for %q", name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wikipedia status %d", resp.StatusCode)
	}

	var out wikipediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("wikipedia decode: %w", err)
	}
	if out.Extract == "" {
		return nil, fmt.Errorf("empty wikipedia extract for %q", name)
	}

	return &models.WikipediaSummary{
		Summary: utils.Truncate(out.Extract, maxSummaryChars),
		URL:     out.ContentURLs.Desktop.Page,
	}, nil
}
