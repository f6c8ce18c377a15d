package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/DailyBrief/internal/config"
)

func TestGoldPriceQuoter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/USD", r.URL.Path)
		_, _ = w.Write([]byte(`{"ts":1,"tsj":1700000000000,"items":[{"curr":"USD","xauPrice":1950.25}]}`))
	}))
	defer server.Close()

	q := NewGoldPriceQuoter("usd", time.Second)
	q.baseURL = server.URL
	assert.Equal(t, "goldprice:USD", q.Name())

	v, err := q.Quote(context.Background())
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.RequireFromString("1950.25")), "got %s", v)
}

func TestGoldPriceQuoterEmptyItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	q := NewGoldPriceQuoter("USD", time.Second)
	q.baseURL = server.URL
	_, err := q.Quote(context.Background())
	assert.ErrorIs(t, err, ErrNoQuote)
	assert.Equal(t, ReasonParse, Classify(context.Background(), err))
}

func TestERAPIQuoter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/EUR", r.URL.Path)
		_, _ = w.Write([]byte(`{"result":"success","base_code":"EUR","rates":{"USD":1.0842,"CNY":7.81}}`))
	}))
	defer server.Close()

	q := NewERAPIQuoter("eur/usd", time.Second)
	q.baseURL = server.URL
	assert.Equal(t, "erapi:EUR/USD", q.Name())
	v, err := q.Quote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0842", v.String())

	missing := NewERAPIQuoter("EUR/SGD", time.Second)
	missing.baseURL = server.URL
	_, err = missing.Quote(context.Background())
	assert.ErrorIs(t, err, ErrNoQuote)
}

func TestERAPIQuoterErrorResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"error","error-type":"unsupported-code"}`))
	}))
	defer server.Close()

	q := NewERAPIQuoter("XXX/USD", time.Second)
	q.baseURL = server.URL
	_, err := q.Quote(context.Background())
	assert.ErrorIs(t, err, ErrParse)
}

func TestFrankfurterQuoter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "EUR", r.URL.Query().Get("from"))
		assert.Equal(t, "CNY", r.URL.Query().Get("to"))
		_, _ = w.Write([]byte(`{"amount":1.0,"base":"EUR","date":"2024-01-02","rates":{"CNY":7.8123}}`))
	}))
	defer server.Close()

	q := NewFrankfurterQuoter("EUR/CNY", time.Second)
	q.baseURL = server.URL
	v, err := q.Quote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7.8123", v.String())
}

func TestYahooQuoter(t *testing.T) {
	q := NewYahooQuoter("gc=f")
	assert.Equal(t, "yahoo:GC=F", q.Name())

	q.lookup = func(symbol string) (float64, error) {
		assert.Equal(t, "GC=F", symbol)
		return 2034.5, nil
	}
	v, err := q.Quote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2034.5", v.String())

	q.lookup = func(string) (float64, error) { return 0, nil }
	_, err = q.Quote(context.Background())
	assert.ErrorIs(t, err, ErrNoQuote)

	q.lookup = func(string) (float64, error) { return 0, errors.New("remote error") }
	_, err = q.Quote(context.Background())
	assert.Error(t, err)
	assert.Equal(t, ReasonTransport, Classify(context.Background(), err))
}

func TestRegistry(t *testing.T) {
	f, err := NewFetcher(config.Source{Name: "a", Kind: config.KindRSS, URL: "https://example.com"}, time.Second)
	require.NoError(t, err)
	assert.IsType(t, &RSSFetcher{}, f)

	f, err = NewFetcher(config.Source{Name: "hn", Kind: config.KindHackerNews, URL: "http://mirror.local"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "http://mirror.local", f.(*HackerNewsFetcher).baseURL)

	_, err = NewFetcher(config.Source{Name: "x", Kind: "gopher"}, time.Second)
	assert.ErrorIs(t, err, ErrUnknownKind)

	quoters, err := BuildQuoters(config.Quote{
		Name:       "gold",
		Candidates: []string{"yahoo:GC=F", "goldprice:USD", "erapi:EUR/USD", "frankfurter:EUR/USD"},
	}, time.Second)
	require.NoError(t, err)
	names := make([]string, 0, len(quoters))
	for _, q := range quoters {
		names = append(names, q.Name())
	}
	assert.Equal(t, []string{"yahoo:GC=F", "goldprice:USD", "erapi:EUR/USD", "frankfurter:EUR/USD"}, names)

	_, err = BuildQuoters(config.Quote{Name: "bad", Candidates: []string{"nope"}}, time.Second)
	assert.ErrorIs(t, err, config.ErrInvalidCandidate)
}
