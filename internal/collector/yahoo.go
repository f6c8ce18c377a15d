package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/piquette/finance-go/future"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
)

// YahooQuoter 通过 finance-go 读取 Yahoo Finance 报价。
// 期货代码（GC=F 等）走 future 接口，其余（GLD、XAUUSD=X）走通用 quote 接口。
type YahooQuoter struct {
	symbol string
	lookup func(symbol string) (float64, error)
}

func NewYahooQuoter(symbol string) *YahooQuoter {
	return &YahooQuoter{symbol: strings.ToUpper(strings.TrimSpace(symbol)), lookup: yahooLookup}
}

func (y *YahooQuoter) Name() string {
	return "yahoo:" + y.symbol
}

// Quote 中 finance-go 不接受 ctx，超时由 QuoteSafe 兜底
func (y *YahooQuoter) Quote(ctx context.Context) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	price, err := y.lookup(y.symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("yahoo %s: %w", y.symbol, err)
	}
	if price <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %w: yahoo %s", ErrParse, ErrNoQuote, y.symbol)
	}
	return decimal.NewFromFloat(price), nil
}

func yahooLookup(symbol string) (float64, error) {
	if strings.HasSuffix(symbol, "=F") {
		f, err := future.Get(symbol)
		if err != nil {
			return 0, err
		}
		if f == nil {
			return 0, nil
		}
		return f.RegularMarketPrice, nil
	}
	q, err := quote.Get(symbol)
	if err != nil {
		return 0, err
	}
	if q == nil {
		return 0, nil
	}
	return q.RegularMarketPrice, nil
}
