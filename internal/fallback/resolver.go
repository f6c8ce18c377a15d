// Package fallback 按固定优先级依次尝试候选源，返回第一个成功的值；
// 全部失败时返回零值哨兵，而不是错误。
package fallback

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/LJTian/DailyBrief/internal/collector"
)

// Candidate 是一个候选单值源，collector 中的 Quoter 均满足该接口
type Candidate interface {
	Name() string
	Quote(ctx context.Context) (decimal.Decimal, error)
}

// Query 是一次单值查询：名称加按优先级排列的候选源
type Query struct {
	Name       string
	Candidates []Candidate
}

// Result 是查询结果。SourceUsed 为空且 Value 为 0 表示所有候选都失败。
type Result struct {
	Value      decimal.Decimal `json:"value"`
	SourceUsed string          `json:"source_used,omitempty"`
	// Attempts 为实际尝试过的候选数
	Attempts int `json:"attempts"`
}

// Available 区分“确实取到了值（可能恰好为 0）”与“候选全部失败”
func (r Result) Available() bool {
	return r.SourceUsed != ""
}

// Unavailable 是全部候选失败时的哨兵结果
func Unavailable(attempts int) Result {
	return Result{Value: decimal.Zero, Attempts: attempts}
}

type Resolver struct {
	timeout time.Duration
	logger  zerolog.Logger
}

type Option func(*Resolver)

// WithTimeout 设置每个候选的独立超时
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{timeout: collector.DefaultTimeout, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve 运行状态机直到 Resolved 或 Exhausted。候选严格串行尝试。
func (r *Resolver) Resolve(ctx context.Context, q Query) Result {
	m := newMachine(q.Candidates)
	for !m.done() {
		m.step(ctx, r.timeout, func(name string, failure *collector.SourceFailure) {
			r.logger.Debug().
				Str("query", q.Name).
				Str("candidate", name).
				Str("reason", string(failure.Reason)).
				Err(failure.Err).
				Msg("fallback candidate failed")
		})
	}
	return m.result()
}
