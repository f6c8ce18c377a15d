package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTimeout 单次请求的超时上限
const DefaultTimeout = 15 * time.Second

// Reason 是 SourceFailure 的分类
type Reason string

const (
	ReasonTimeout   Reason = "timeout"
	ReasonTransport Reason = "transport_error"
	ReasonParse     Reason = "parse_error"
)

// SourceFailure 是数据源边界上唯一的错误类型，调用方据此把该源视为零贡献
type SourceFailure struct {
	SourceID string
	Reason   Reason
	Err      error
}

func (f *SourceFailure) Error() string {
	return fmt.Sprintf("source %s: %s: %v", f.SourceID, f.Reason, f.Err)
}

func (f *SourceFailure) Unwrap() error {
	return f.Err
}

// Classify 把底层错误归到 Timeout / TransportError / ParseError 三类之一
func Classify(ctx context.Context, err error) Reason {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ReasonTimeout
	}
	if errors.Is(err, ErrParse) {
		return ReasonParse
	}
	return ReasonTransport
}

// FetchSafe 在独立超时下调用 f.Fetch，保证不向调用方抛出 panic，
// 即使实现没有遵守 ctx 也会在超时后返回。
func FetchSafe(ctx context.Context, f Fetcher, limit int, timeout time.Duration) ([]RawItem, *SourceFailure) {
	name := f.Name()
	items, failure := guard(ctx, name, timeout, func(ctx context.Context) ([]RawItem, error) {
		return f.Fetch(ctx, limit)
	})
	if failure != nil {
		return nil, failure
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	for i := range items {
		if items[i].SourceID == "" {
			items[i].SourceID = name
		}
	}
	return items, nil
}

// QuoteSafe 与 FetchSafe 相同，用于单值数据源
func QuoteSafe(ctx context.Context, q Quoter, timeout time.Duration) (decimal.Decimal, *SourceFailure) {
	return guard(ctx, q.Name(), timeout, q.Quote)
}

func guard[T any](ctx context.Context, name string, timeout time.Duration, call func(context.Context) (T, error)) (T, *SourceFailure) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: panic: %v", ErrParse, r)}
			}
		}()
		v, err := call(ctx)
		done <- outcome{val: v, err: err}
	}()

	var zero T
	select {
	case o := <-done:
		if o.err != nil {
			return zero, &SourceFailure{SourceID: name, Reason: Classify(ctx, o.err), Err: o.err}
		}
		return o.val, nil
	case <-ctx.Done():
		// 结果与超时同时就绪时以结果为准
		select {
		case o := <-done:
			if o.err == nil {
				return o.val, nil
			}
		default:
		}
		return zero, &SourceFailure{SourceID: name, Reason: Classify(ctx, ctx.Err()), Err: ctx.Err()}
	}
}
