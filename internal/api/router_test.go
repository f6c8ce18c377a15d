package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/DailyBrief/internal/collector"
	"github.com/LJTian/DailyBrief/internal/fallback"
	"github.com/LJTian/DailyBrief/internal/pipeline"
	"github.com/LJTian/DailyBrief/internal/processor"
	"github.com/LJTian/DailyBrief/internal/storage"
)

type stubRunner struct {
	digest  pipeline.Digest
	err     error
	calls   int
	started chan struct{}
	release chan struct{}
}

func (r *stubRunner) Run(ctx context.Context, consumers ...pipeline.Consumer) (pipeline.Digest, error) {
	r.calls++
	if r.started != nil {
		close(r.started)
	}
	if r.release != nil {
		<-r.release
	}
	for _, c := range consumers {
		_ = c.Consume(ctx, r.digest)
	}
	return r.digest, r.err
}

type failingStore struct{}

func (failingStore) LatestDigest(context.Context) (pipeline.Digest, error) {
	return pipeline.Digest{}, errors.New("connection refused")
}

func (failingStore) ListDigests(context.Context, int) ([]storage.DigestRun, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) ListQuoteHistory(context.Context, string, int) ([]storage.QuoteSnapshot, error) {
	return nil, errors.New("connection refused")
}

// slowRunner 模拟一次耗时的运行：ctx 提前结束时所有源记为超时，产出空 Digest
type slowRunner struct {
	delay    time.Duration
	digest   pipeline.Digest
	deadline time.Duration
}

func (r *slowRunner) Run(ctx context.Context, consumers ...pipeline.Consumer) (pipeline.Digest, error) {
	if dl, ok := ctx.Deadline(); ok {
		r.deadline = time.Until(dl)
	}
	d := r.digest
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		d = pipeline.Digest{
			GeneratedAt: time.Now(),
			News:        processor.AggregationResult{State: processor.StateEmpty, Items: []processor.CanonicalItem{}},
			Stats: pipeline.RunStats{
				SourcesAttempted: 1,
				SourcesFailed:    1,
				Failures:         []pipeline.Failure{{Source: "slow", Reason: collector.ReasonTimeout, Error: ctx.Err().Error()}},
			},
		}
	}
	for _, c := range consumers {
		_ = c.Consume(ctx, d)
	}
	return d, nil
}

func newTestRouter(store DigestStore, runner Runner, consumers ...pipeline.Consumer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewServer(store, runner, consumers, time.Second, zerolog.Nop()).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

type envelope struct {
	Code string          `json:"code"`
	Data json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func readyDigest() pipeline.Digest {
	at := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)
	return pipeline.Digest{
		GeneratedAt: at,
		News: processor.AggregationResult{
			State: processor.StateReady,
			Items: []processor.CanonicalItem{{Key: "markets rise", DisplayText: "Markets rise", Timestamp: at, SourceID: "f2"}},
		},
	}
}

func TestHealth(t *testing.T) {
	rec := do(newTestRouter(storage.NewMemoryStore(5), &stubRunner{}), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLatestDigestNotFound(t *testing.T) {
	rec := do(newTestRouter(storage.NewMemoryStore(5), &stubRunner{}), http.MethodGet, "/api/v1/digest/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunThenReadLatest(t *testing.T) {
	store := storage.NewMemoryStore(5)
	runner := &stubRunner{digest: readyDigest()}
	r := newTestRouter(store, runner, store)

	rec := do(r, http.MethodPost, "/api/v1/digest/run")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, runner.calls)

	rec = do(r, http.MethodGet, "/api/v1/digest/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var d pipeline.Digest
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &d))
	assert.Equal(t, processor.StateReady, d.News.State)
	assert.Equal(t, "Markets rise", d.News.Items[0].DisplayText)

	rec = do(r, http.MethodGet, "/api/v1/digests?limit=abc")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []storage.DigestRun
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "ready", runs[0].State)
}

func TestRunReturnsDigestDespiteConsumerError(t *testing.T) {
	runner := &stubRunner{digest: readyDigest(), err: errors.New("save digest: db down")}
	rec := do(newTestRouter(storage.NewMemoryStore(5), runner), http.MethodPost, "/api/v1/digest/run")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	runner := &stubRunner{digest: readyDigest(), started: make(chan struct{}), release: make(chan struct{})}
	r := newTestRouter(storage.NewMemoryStore(5), runner)

	done := make(chan int)
	go func() { done <- do(r, http.MethodPost, "/api/v1/digest/run").Code }()
	<-runner.started

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/v1/digest/run").Code)

	close(runner.release)
	assert.Equal(t, http.StatusOK, <-done)
}

// 请求方超时或断开不影响运行本身，上一次的 Digest 不会被空结果覆盖
func TestRunOutlivesClientDeadline(t *testing.T) {
	store := storage.NewMemoryStore(5)
	require.NoError(t, store.Consume(context.Background(), readyDigest()))

	fresh := readyDigest()
	fresh.GeneratedAt = fresh.GeneratedAt.Add(time.Hour)
	runner := &slowRunner{delay: 50 * time.Millisecond, digest: fresh}
	r := newTestRouter(store, runner, store)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/digest/run", nil).WithContext(ctx)
	r.ServeHTTP(httptest.NewRecorder(), req)

	latest, err := store.LatestDigest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, processor.StateReady, latest.News.State)
	assert.Empty(t, latest.Stats.Failures)
	assert.True(t, latest.GeneratedAt.Equal(fresh.GeneratedAt))

	// 运行仍有服务端上限
	assert.Greater(t, runner.deadline, 500*time.Millisecond)
	assert.LessOrEqual(t, runner.deadline, time.Second)
}

func TestRunDefaultTimeout(t *testing.T) {
	s := NewServer(storage.NewMemoryStore(5), &stubRunner{}, nil, 0, zerolog.Nop())
	assert.Equal(t, DefaultRunTimeout, s.runTimeout)
}

func TestQuoteHistory(t *testing.T) {
	store := storage.NewMemoryStore(5)
	d := readyDigest()
	d.Quotes = []pipeline.QuoteResult{{
		Name:      "gold",
		Result:    fallback.Result{Value: decimal.RequireFromString("1950.25"), SourceUsed: "goldprice:USD", Attempts: 3},
		Available: true,
	}}
	require.NoError(t, store.Consume(context.Background(), d))
	r := newTestRouter(store, &stubRunner{})

	rec := do(r, http.MethodGet, "/api/v1/quotes/gold/history?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var snaps []storage.QuoteSnapshot
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, "goldprice:USD", snaps[0].SourceUsed)
	assert.True(t, snaps[0].Value.Equal(decimal.RequireFromString("1950.25")))

	rec = do(r, http.MethodGet, "/api/v1/quotes/silver/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(decode(t, rec).Data))
}

func TestStoreErrors(t *testing.T) {
	r := newTestRouter(failingStore{}, &stubRunner{})
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodGet, "/api/v1/digest/latest").Code)
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodGet, "/api/v1/quotes/gold/history").Code)
	rec := do(r, http.MethodGet, "/api/v1/digests")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decode(t, rec).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(newTestRouter(storage.NewMemoryStore(5), &stubRunner{}), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dailybrief_runs_total")
}

func TestBasicAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BasicAuth("admin", "secret"))
	NewServer(storage.NewMemoryStore(5), &stubRunner{}, nil, time.Second, zerolog.Nop()).RegisterRoutes(r)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/v1/digests").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/digests", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
