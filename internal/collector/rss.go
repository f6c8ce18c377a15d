package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

const rssMaxResponseBytes = 4 << 20 // 4MB

// RSSFetcher 拉取 RSS/Atom feed，解析交给 gofeed
type RSSFetcher struct {
	name   string
	url    string
	client *http.Client
	parser *gofeed.Parser
}

func NewRSSFetcher(name, url string, timeout time.Duration) *RSSFetcher {
	return &RSSFetcher{
		name:   name,
		url:    url,
		client: newHTTPClient(timeout),
		parser: gofeed.NewParser(),
	}
}

func (r *RSSFetcher) Name() string {
	return r.name
}

func (r *RSSFetcher) Fetch(ctx context.Context, limit int) ([]RawItem, error) {
	resp, err := get(ctx, r.client, r.url)
	if err != nil {
		return nil, fmt.Errorf("rss %s: %w", r.name, err)
	}
	defer resp.Body.Close()

	feed, err := r.parser.Parse(io.LimitReader(resp.Body, rssMaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: rss %s: %v", ErrParse, r.name, err)
	}

	n := len(feed.Items)
	if limit > 0 && n > limit {
		n = limit
	}
	items := make([]RawItem, 0, n)
	for _, entry := range feed.Items[:n] {
		items = append(items, RawItem{
			Title:       entry.Title,
			Link:        entry.Link,
			PublishedAt: entry.PublishedParsed,
			UpdatedAt:   entry.UpdatedParsed,
			SourceID:    r.name,
		})
	}
	return items, nil
}
