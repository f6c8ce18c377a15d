package collector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	hnBaseURL          = "https://hacker-news.firebaseio.com/v0"
	hnMaxItems         = 30
	hnMaxResponseBytes = 1 << 20 // 1MB
	hnConcurrency      = 10
	// Firebase API 没有公开配额，每秒 50 个 item 请求已足够覆盖 30 条
	hnItemsPerSecond = 50
)

// HackerNewsFetcher 通过官方 Firebase API 抓取 Hacker News 热门故事
type HackerNewsFetcher struct {
	name    string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewHackerNewsFetcher(name string, timeout time.Duration) *HackerNewsFetcher {
	if name == "" {
		name = "hackernews"
	}
	return &HackerNewsFetcher{
		name:    name,
		baseURL: hnBaseURL,
		client:  newHTTPClient(timeout),
		limiter: rate.NewLimiter(rate.Limit(hnItemsPerSecond), hnConcurrency),
	}
}

func (h *HackerNewsFetcher) Name() string {
	return h.name
}

type hnItem struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Score int    `json:"score"`
	Time  int64  `json:"time"`
	Type  string `json:"type"`
}

func (h *HackerNewsFetcher) Fetch(ctx context.Context, limit int) ([]RawItem, error) {
	var ids []int
	if err := getJSON(ctx, h.client, h.baseURL+"/topstories.json", hnMaxResponseBytes, &ids); err != nil {
		return nil, fmt.Errorf("hackernews: fetch top stories: %w", err)
	}

	n := hnMaxItems
	if limit > 0 && limit < n {
		n = limit
	}
	if len(ids) > n {
		ids = ids[:n]
	}

	// 按排名写入固定槽位，结果顺序与并发完成顺序无关
	slots := make([]*hnItem, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hnConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			if err := h.limiter.Wait(gctx); err != nil {
				return nil
			}
			var it hnItem
			if err := getJSON(gctx, h.client, fmt.Sprintf("%s/item/%d.json", h.baseURL, id), hnMaxResponseBytes, &it); err != nil {
				// 单条失败只跳过该条
				log.Debug().Err(err).Int("hn_id", id).Msg("hackernews: fetch item failed")
				return nil
			}
			if it.Title == "" || it.Type != "story" {
				return nil
			}
			slots[i] = &it
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("hackernews: %w", err)
	}

	results := make([]RawItem, 0, len(slots))
	for _, it := range slots {
		if it == nil {
			continue
		}
		link := it.URL
		if link == "" {
			link = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", it.ID)
		}
		var published *time.Time
		if it.Time > 0 {
			published = timePtr(time.Unix(it.Time, 0))
		}
		results = append(results, RawItem{
			Title:       it.Title,
			Link:        link,
			PublishedAt: published,
			SourceID:    h.name,
		})
	}

	if len(results) == 0 {
		log.Debug().Str("source", h.name).Msg("hackernews: no items fetched")
	}
	return results, nil
}
