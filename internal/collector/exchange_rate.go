package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	erAPIBaseURL       = "https://open.er-api.com/v6/latest"
	frankfurterBaseURL = "https://api.frankfurter.app/latest"
	rateMaxBytes       = 256 * 1024
)

// splitPair 把 "EUR/USD" 拆成大写的 base 与 quote
func splitPair(pair string) (string, string) {
	base, quote, _ := strings.Cut(pair, "/")
	return strings.ToUpper(strings.TrimSpace(base)), strings.ToUpper(strings.TrimSpace(quote))
}

// ERAPIQuoter 使用 open.er-api.com 的免费接口。
// 接口按 base 返回整张汇率表，每个查询各自请求一次，同一 base 的多个查询会重复下载；
// 查询之间不共享结果，换来的是每个查询的候选回退互相独立。
type ERAPIQuoter struct {
	base, quote string
	baseURL     string
	client      *http.Client
}

func NewERAPIQuoter(pair string, timeout time.Duration) *ERAPIQuoter {
	base, quote := splitPair(pair)
	return &ERAPIQuoter{base: base, quote: quote, baseURL: erAPIBaseURL, client: newHTTPClient(timeout)}
}

func (q *ERAPIQuoter) Name() string {
	return "erapi:" + q.base + "/" + q.quote
}

type erAPIResp struct {
	Result string                     `json:"result"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

func (q *ERAPIQuoter) Quote(ctx context.Context) (decimal.Decimal, error) {
	var data erAPIResp
	if err := getJSON(ctx, q.client, q.baseURL+"/"+url.PathEscape(q.base), rateMaxBytes, &data); err != nil {
		return decimal.Zero, fmt.Errorf("erapi: %w", err)
	}
	if data.Result != "" && data.Result != "success" {
		return decimal.Zero, fmt.Errorf("%w: erapi result %q", ErrParse, data.Result)
	}
	return pickRate(data.Rates, q.quote, "erapi")
}

// FrankfurterQuoter 使用 ECB 数据的 Frankfurter 接口（无需 key）
type FrankfurterQuoter struct {
	base, quote string
	baseURL     string
	client      *http.Client
}

func NewFrankfurterQuoter(pair string, timeout time.Duration) *FrankfurterQuoter {
	base, quote := splitPair(pair)
	return &FrankfurterQuoter{base: base, quote: quote, baseURL: frankfurterBaseURL, client: newHTTPClient(timeout)}
}

func (q *FrankfurterQuoter) Name() string {
	return "frankfurter:" + q.base + "/" + q.quote
}

type frankfurterResp struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

func (q *FrankfurterQuoter) Quote(ctx context.Context) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("from", q.base)
	params.Set("to", q.quote)

	var data frankfurterResp
	if err := getJSON(ctx, q.client, q.baseURL+"?"+params.Encode(), rateMaxBytes, &data); err != nil {
		return decimal.Zero, fmt.Errorf("frankfurter: %w", err)
	}
	return pickRate(data.Rates, q.quote, "frankfurter")
}

func pickRate(rates map[string]decimal.Decimal, quote, source string) (decimal.Decimal, error) {
	rate, ok := rates[quote]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %w: %s has no %s rate", ErrParse, ErrNoQuote, source, quote)
	}
	return rate, nil
}
