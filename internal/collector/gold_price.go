package collector

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	goldBaseURL          = "https://data-asg.goldprice.org/dbXRates"
	goldMaxResponseBytes = 64 * 1024 // 64KB，黄金 API 响应很小
)

// GoldPriceQuoter 从 goldprice.org 拉取现货黄金（XAU）每盎司价格，currency 为计价货币
type GoldPriceQuoter struct {
	currency string
	baseURL  string
	client   *http.Client
}

func NewGoldPriceQuoter(currency string, timeout time.Duration) *GoldPriceQuoter {
	return &GoldPriceQuoter{
		currency: strings.ToUpper(currency),
		baseURL:  goldBaseURL,
		client:   newHTTPClient(timeout),
	}
}

func (g *GoldPriceQuoter) Name() string {
	return "goldprice:" + g.currency
}

// 对应 data-asg.goldprice.org/dbXRates/<CCY> 的响应结构
type goldAPIResp struct {
	TSJ   int64 `json:"tsj"`
	Items []struct {
		Curr     string          `json:"curr"`
		XAUPrice decimal.Decimal `json:"xauPrice"`
	} `json:"items"`
}

func (g *GoldPriceQuoter) Quote(ctx context.Context) (decimal.Decimal, error) {
	var data goldAPIResp
	if err := getJSON(ctx, g.client, g.baseURL+"/"+g.currency, goldMaxResponseBytes, &data); err != nil {
		return decimal.Zero, fmt.Errorf("goldprice: %w", err)
	}

	for _, it := range data.Items {
		if strings.EqualFold(it.Curr, g.currency) && it.XAUPrice.IsPositive() {
			return it.XAUPrice, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: %w: goldprice %s", ErrParse, ErrNoQuote, g.currency)
}
