package collector

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const userAgent = "DailyBriefBot/1.0"

// RawItem 数据源返回的原始条目，归一化之后即丢弃
type RawItem struct {
	Title       string
	Link        string
	PublishedAt *time.Time
	UpdatedAt   *time.Time
	SourceID    string
}

// Fetcher 抽象每一个多条目数据源（新闻 feed、热榜页面）。
// limit <= 0 表示不限制条数。
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, limit int) ([]RawItem, error)
}

// Quoter 抽象一个单值数据源，Name 返回候选描述（例如 yahoo:GC=F）
type Quoter interface {
	Name() string
	Quote(ctx context.Context) (decimal.Decimal, error)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
