package collector

import (
	"fmt"
	"time"

	"github.com/LJTian/DailyBrief/internal/config"
)

// NewFetcher 按配置的 kind 创建对应的新闻源
func NewFetcher(src config.Source, timeout time.Duration) (Fetcher, error) {
	switch src.Kind {
	case config.KindRSS, "":
		return NewRSSFetcher(src.Name, src.URL, timeout), nil
	case config.KindHackerNews:
		f := NewHackerNewsFetcher(src.Name, timeout)
		if src.URL != "" {
			f.baseURL = src.URL
		}
		return f, nil
	case config.KindHTML:
		return NewHTMLFetcher(src, timeout), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, src.Kind)
	}
}

// NewQuoter 解析 "kind:symbol" 并创建对应的单值数据源
func NewQuoter(candidate string, timeout time.Duration) (Quoter, error) {
	c, err := config.ParseCandidate(candidate)
	if err != nil {
		return nil, err
	}
	switch c.Kind {
	case config.QuoteYahoo:
		return NewYahooQuoter(c.Symbol), nil
	case config.QuoteGoldPrice:
		return NewGoldPriceQuoter(c.Symbol, timeout), nil
	case config.QuoteERAPI:
		return NewERAPIQuoter(c.Symbol, timeout), nil
	case config.QuoteFrankfurter:
		return NewFrankfurterQuoter(c.Symbol, timeout), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
}

// BuildFetchers 为配置中的每个 feed 创建 Fetcher，顺序与配置一致
func BuildFetchers(cfg *config.Config) ([]Fetcher, error) {
	out := make([]Fetcher, 0, len(cfg.Feeds))
	for _, src := range cfg.Feeds {
		f, err := NewFetcher(src, cfg.FetchTimeout)
		if err != nil {
			return nil, fmt.Errorf("feed %q: %w", src.Name, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// BuildQuoters 为一个单值查询的候选列表按优先级创建 Quoter
func BuildQuoters(q config.Quote, timeout time.Duration) ([]Quoter, error) {
	out := make([]Quoter, 0, len(q.Candidates))
	for _, raw := range q.Candidates {
		qt, err := NewQuoter(raw, timeout)
		if err != nil {
			return nil, fmt.Errorf("quote %q: %w", q.Name, err)
		}
		out = append(out, qt)
	}
	return out, nil
}
