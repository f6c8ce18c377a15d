package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/LJTian/DailyBrief/internal/collector"
	"github.com/LJTian/DailyBrief/internal/config"
	"github.com/LJTian/DailyBrief/internal/fallback"
	"github.com/LJTian/DailyBrief/internal/processor"
)

// QuoteResult 单值查询的结果，Available 用于区分“真实为 0”和“全部候选失败”
type QuoteResult struct {
	Name string `json:"name"`
	fallback.Result
	Available bool `json:"available"`
}

// Digest 一次运行交给下游消费者的完整结果
type Digest struct {
	GeneratedAt time.Time                   `json:"generated_at"`
	News        processor.AggregationResult `json:"news"`
	Quotes      []QuoteResult               `json:"quotes"`
	Stats       RunStats                    `json:"stats"`
}

// Quote 按名称查找单值查询结果
func (d Digest) Quote(name string) (QuoteResult, bool) {
	for _, q := range d.Quotes {
		if q.Name == name {
			return q, true
		}
	}
	return QuoteResult{}, false
}

// Builder 同时运行新闻聚合与各个单值查询，组装 Digest
type Builder struct {
	pipeline *Pipeline
	resolver *fallback.Resolver
	queries  []fallback.Query
	now      func() time.Time
	logger   zerolog.Logger
}

func NewBuilder(p *Pipeline, r *fallback.Resolver, queries []fallback.Query, logger zerolog.Logger) *Builder {
	return &Builder{pipeline: p, resolver: r, queries: queries, now: time.Now, logger: logger}
}

// NewBuilderFromConfig 按配置创建所有 Fetcher / Quoter 并组装 Builder
func NewBuilderFromConfig(cfg *config.Config, logger zerolog.Logger) (*Builder, error) {
	fetchers, err := collector.BuildFetchers(cfg)
	if err != nil {
		return nil, err
	}

	queries := make([]fallback.Query, 0, len(cfg.Quotes))
	for _, q := range cfg.Quotes {
		quoters, err := collector.BuildQuoters(q, cfg.FetchTimeout)
		if err != nil {
			return nil, err
		}
		candidates := make([]fallback.Candidate, 0, len(quoters))
		for _, qt := range quoters {
			candidates = append(candidates, qt)
		}
		queries = append(queries, fallback.Query{Name: q.Name, Candidates: candidates})
	}

	p := New(fetchers, Options{
		PerSourceLimit: cfg.PerSourceLimit,
		MaxItems:       cfg.MaxItems,
		FanOut:         cfg.FanOut,
		Timeout:        cfg.FetchTimeout,
		Logger:         logger,
	})
	r := fallback.NewResolver(fallback.WithTimeout(cfg.FetchTimeout), fallback.WithLogger(logger))
	return NewBuilder(p, r, queries, logger), nil
}

// Build 执行一次完整运行。新闻聚合与各查询互不依赖，并发进行；
// 每个查询内部的候选仍严格串行。
func (b *Builder) Build(ctx context.Context) Digest {
	started := b.now()
	d := Digest{
		GeneratedAt: started,
		Quotes:      make([]QuoteResult, len(b.queries)),
	}

	var g errgroup.Group
	g.Go(func() error {
		d.News, d.Stats = b.pipeline.Run(ctx)
		return nil
	})
	for i, q := range b.queries {
		g.Go(func() error {
			res := b.resolver.Resolve(ctx, q)
			d.Quotes[i] = QuoteResult{Name: q.Name, Result: res, Available: res.Available()}
			return nil
		})
	}
	_ = g.Wait()

	unavailable := 0
	for _, q := range d.Quotes {
		if !q.Available {
			unavailable++
			b.logger.Debug().Str("query", q.Name).Int("attempts", q.Attempts).Msg("all candidates failed")
		}
	}
	b.logger.Info().
		Int("sources", d.Stats.SourcesAttempted).
		Int("sources_failed", d.Stats.SourcesFailed).
		Int("items_before_dedupe", d.Stats.ItemsBeforeDedupe).
		Int("items_after_dedupe", d.Stats.ItemsAfterDedupe).
		Int("items", d.Stats.ItemsAfterTruncation).
		Int("quotes", len(d.Quotes)).
		Int("quotes_unavailable", unavailable).
		Dur("elapsed", time.Since(started)).
		Msg("digest built")
	return d
}

// Run 构建 Digest 并依次交给 consumers；消费失败不影响 Digest 本身的返回
func (b *Builder) Run(ctx context.Context, consumers ...Consumer) (Digest, error) {
	d := b.Build(ctx)
	var errs []error
	for _, c := range consumers {
		if err := c.Consume(ctx, d); err != nil {
			b.logger.Error().Err(err).Msg("consume digest failed")
			errs = append(errs, err)
		}
	}
	return d, errors.Join(errs...)
}
