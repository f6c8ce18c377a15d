// Package metrics 提供 DailyBrief 的 Prometheus 指标
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LJTian/DailyBrief/internal/pipeline"
)

var (
	// RunsTotal 聚合运行次数
	RunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dailybrief_runs_total",
			Help: "Total number of digest runs",
		},
	)

	// SourceFailuresTotal 按源与原因统计的失败次数
	SourceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailybrief_source_failures_total",
			Help: "Total number of source fetch failures",
		},
		[]string{"source", "reason"},
	)

	// PipelineItems 最近一次运行各阶段的条目数
	PipelineItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dailybrief_pipeline_items",
			Help: "Items at each pipeline stage in the last run",
		},
		[]string{"stage"},
	)

	// QuoteAvailable 单值查询是否拿到值（1=有值，0=全部候选失败）
	QuoteAvailable = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dailybrief_quote_available",
			Help: "Whether a quote query resolved (1=resolved, 0=exhausted)",
		},
		[]string{"query"},
	)

	// QuoteAttempts 单值查询在得到结果前尝试的候选数
	QuoteAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dailybrief_quote_attempts",
			Help:    "Candidates attempted per quote query",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
		[]string{"query"},
	)

	// QuoteSourceUsed 各候选被采用的次数
	QuoteSourceUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailybrief_quote_source_used_total",
			Help: "Total number of times a candidate supplied a quote",
		},
		[]string{"query", "source"},
	)

	// LastRunTimestamp 最近一次运行的 Unix 时间
	LastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dailybrief_last_run_timestamp",
			Help: "Unix timestamp of the last digest run",
		},
	)

	// HTTPRequestsTotal HTTP 请求计数
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration HTTP 请求耗时
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 15},
		},
		[]string{"endpoint"},
	)
)

var collectors = []prometheus.Collector{
	RunsTotal,
	SourceFailuresTotal,
	PipelineItems,
	QuoteAvailable,
	QuoteAttempts,
	QuoteSourceUsed,
	LastRunTimestamp,
	HTTPRequestsTotal,
	HTTPRequestDuration,
}

func init() {
	for _, c := range collectors {
		prometheus.MustRegister(c)
	}
}

// Handler 返回 /metrics 使用的 handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Record 把一次运行的 Digest 写入指标
func Record(d pipeline.Digest) {
	RunsTotal.Inc()
	LastRunTimestamp.Set(float64(d.GeneratedAt.Unix()))

	for _, f := range d.Stats.Failures {
		SourceFailuresTotal.WithLabelValues(f.Source, string(f.Reason)).Inc()
	}
	PipelineItems.WithLabelValues("sources_attempted").Set(float64(d.Stats.SourcesAttempted))
	PipelineItems.WithLabelValues("sources_failed").Set(float64(d.Stats.SourcesFailed))
	PipelineItems.WithLabelValues("before_dedupe").Set(float64(d.Stats.ItemsBeforeDedupe))
	PipelineItems.WithLabelValues("after_dedupe").Set(float64(d.Stats.ItemsAfterDedupe))
	PipelineItems.WithLabelValues("after_truncation").Set(float64(d.Stats.ItemsAfterTruncation))

	for _, q := range d.Quotes {
		QuoteAttempts.WithLabelValues(q.Name).Observe(float64(q.Attempts))
		if q.Available {
			QuoteAvailable.WithLabelValues(q.Name).Set(1)
			QuoteSourceUsed.WithLabelValues(q.Name, q.SourceUsed).Inc()
		} else {
			QuoteAvailable.WithLabelValues(q.Name).Set(0)
		}
	}
}

// Consumer 把 Record 包装成 pipeline.Consumer
func Consumer() pipeline.Consumer {
	return pipeline.ConsumerFunc(func(_ context.Context, d pipeline.Digest) error {
		Record(d)
		return nil
	})
}

// ObserveRequest 记录一次 HTTP 请求
func ObserveRequest(endpoint, status string, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}
