// Package pipeline 编排多源新闻聚合（并发拉取 → 归一化 → 去重 → 排序截断）
// 以及单值查询的候选回退，并把结果打包成 Digest 交给下游消费者。
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/LJTian/DailyBrief/internal/collector"
	"github.com/LJTian/DailyBrief/internal/processor"
)

// 默认参数
const (
	DefaultPerSourceLimit = 5
	DefaultMaxItems       = 10
	DefaultFanOut         = 4
)

// Failure 是一次运行中某个源失败的摘要
type Failure struct {
	Source string           `json:"source"`
	Reason collector.Reason `json:"reason"`
	Error  string           `json:"error"`
}

// RunStats 每次运行的计数，供日志与指标使用
type RunStats struct {
	SourcesAttempted     int       `json:"sources_attempted"`
	SourcesFailed        int       `json:"sources_failed"`
	ItemsBeforeDedupe    int       `json:"items_before_dedupe"`
	ItemsAfterDedupe     int       `json:"items_after_dedupe"`
	ItemsAfterTruncation int       `json:"items_after_truncation"`
	Failures             []Failure `json:"failures,omitempty"`
}

type Options struct {
	// PerSourceLimit 每个源最多取多少条，<= 0 表示不限制
	PerSourceLimit int
	// MaxItems 聚合结果上限，0 表示结果必然为空
	MaxItems int
	// FanOut 同时进行的拉取数上限
	FanOut int
	// Timeout 每个源独立的超时
	Timeout time.Duration
	Now     func() time.Time
	Logger  zerolog.Logger
}

// Pipeline 多条目数据源的聚合流程。每次 Run 都使用全新的集合，没有跨运行的共享状态。
type Pipeline struct {
	fetchers []collector.Fetcher
	opts     Options
}

func New(fetchers []collector.Fetcher, opts Options) *Pipeline {
	if opts.FanOut < 1 {
		opts.FanOut = DefaultFanOut
	}
	if opts.Timeout <= 0 {
		opts.Timeout = collector.DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{fetchers: fetchers, opts: opts}
}

// Run 并发拉取所有源（单个源失败不影响其他源），随后同步完成归一化、去重、排序截断。
// 拼接顺序按配置中的源顺序而不是完成顺序，保证并发不会引入输出抖动。
func (p *Pipeline) Run(ctx context.Context) (processor.AggregationResult, RunStats) {
	stats := RunStats{SourcesAttempted: len(p.fetchers)}

	batches := make([][]collector.RawItem, len(p.fetchers))
	failures := make([]*collector.SourceFailure, len(p.fetchers))

	var g errgroup.Group
	g.SetLimit(p.opts.FanOut)
	for i, f := range p.fetchers {
		g.Go(func() error {
			batches[i], failures[i] = collector.FetchSafe(ctx, f, p.opts.PerSourceLimit, p.opts.Timeout)
			return nil
		})
	}
	_ = g.Wait()

	now := p.opts.Now()
	all := make([]processor.CanonicalItem, 0, max(p.opts.PerSourceLimit, 0)*len(p.fetchers))
	for i, batch := range batches {
		if failure := failures[i]; failure != nil {
			stats.SourcesFailed++
			stats.Failures = append(stats.Failures, Failure{
				Source: failure.SourceID,
				Reason: failure.Reason,
				Error:  failure.Err.Error(),
			})
			p.opts.Logger.Debug().
				Str("source", failure.SourceID).
				Str("reason", string(failure.Reason)).
				Err(failure.Err).
				Msg("source contributed no items")
			continue
		}
		all = append(all, processor.NormalizeAll(batch, now)...)
	}

	stats.ItemsBeforeDedupe = len(all)
	deduped := processor.Dedupe(all)
	stats.ItemsAfterDedupe = len(deduped)

	result := processor.Rank(deduped, p.opts.MaxItems)
	stats.ItemsAfterTruncation = len(result.Items)
	return result, stats
}
