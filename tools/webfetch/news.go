package webfetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"

	"github.com/aadityasp/agreegraph/models"
)

const googleNewsRSSURL = "https://news.google.com/rss/search"

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
}

// fetchNews pulls recent headlines for an entity from the Google News RSS
// feed, capped at the configured article count.
func (c *Client) fetchNews(ctx context.Context, name string) ([]models.NewsArticle, error) {
	params := url.Values{}
	params.Add("q", name)
	params.Add("hl", "en-US")
	params.Add("gl", "US")
	params.Add("ceid", "US:en")

	resp, err := c.get(ctx, fmt.Sprintf("%s?%s", c.newsBaseURL, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("news request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news status %d", resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("news decode: %w", err)
	}

	articles := make([]models.NewsArticle, 0, c.maxNews)
	for _, item := range feed.Channel.Items {
		if len(articles) >= c.maxNews {
			break
		}
		articles = append(articles, models.NewsArticle{
			Title:     item.Title,
			Link:      item.Link,
			Published: item.PubDate,
		})
	}
	return articles, nil
}
