package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/DailyBrief/internal/fallback"
	"github.com/LJTian/DailyBrief/internal/pipeline"
	"github.com/LJTian/DailyBrief/internal/processor"
)

func sampleDigest(at time.Time) pipeline.Digest {
	return pipeline.Digest{
		GeneratedAt: at,
		News: processor.AggregationResult{
			State: processor.StateReady,
			Items: []processor.CanonicalItem{{Key: "storm warning", DisplayText: "Storm warning", Timestamp: at, SourceID: "f1"}},
		},
		Quotes: []pipeline.QuoteResult{
			{Name: "gold", Result: fallback.Result{Value: decimal.RequireFromString("1950.25"), SourceUsed: "goldprice:USD", Attempts: 3}, Available: true},
			{Name: "eur_usd", Result: fallback.Unavailable(2)},
		},
		Stats: pipeline.RunStats{SourcesAttempted: 2, ItemsBeforeDedupe: 4, ItemsAfterDedupe: 3, ItemsAfterTruncation: 1},
	}
}

func TestDigestRunRoundTrip(t *testing.T) {
	at := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)
	d := sampleDigest(at)

	run, err := newDigestRun(d)
	require.NoError(t, err)
	assert.Equal(t, "ready", run.State)
	assert.Equal(t, 3, run.ItemsAfterDedupe)

	back, err := decodeDigest(run)
	require.NoError(t, err)
	assert.True(t, back.GeneratedAt.Equal(at))
	assert.Equal(t, processor.StateReady, back.News.State)
	assert.Equal(t, "Storm warning", back.News.Items[0].DisplayText)
	gold, ok := back.Quote("gold")
	require.True(t, ok)
	assert.True(t, gold.Value.Equal(decimal.RequireFromString("1950.25")))
	eur, _ := back.Quote("eur_usd")
	assert.False(t, eur.Available)
}

func TestQuoteSnapshots(t *testing.T) {
	snaps := newQuoteSnapshots(7, sampleDigest(time.Now()))
	require.Len(t, snaps, 2)
	assert.Equal(t, uint(7), snaps[0].RunID)
	assert.Equal(t, "goldprice:USD", snaps[0].SourceUsed)
	assert.True(t, snaps[0].Available)
	assert.Equal(t, "", snaps[1].SourceUsed)
	assert.True(t, snaps[1].Value.IsZero())
}

func TestDecodeDigestRejectsGarbage(t *testing.T) {
	_, err := decodeDigest(DigestRun{ID: 3, Payload: []byte("{")})
	assert.Error(t, err)
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "ab\uFFFDc", toValidUTF8("ab\xffc"))
	assert.Equal(t, "黄金价", truncateRunesDB(" 黄金价格 ", 3))
	assert.Equal(t, "", truncateRunesDB("abc", 0))
	assert.Equal(t, 20, clampLimit(0))
	assert.Equal(t, 20, clampLimit(1000))
	assert.Equal(t, 5, clampLimit(5))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(3)

	_, err := m.LatestDigest(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Consume(ctx, sampleDigest(base.Add(time.Duration(i)*time.Hour))))
	}

	latest, err := m.LatestDigest(ctx)
	require.NoError(t, err)
	assert.True(t, latest.GeneratedAt.Equal(base.Add(4*time.Hour)))

	runs, err := m.ListDigests(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for i, r := range runs {
		assert.Equal(t, uint(5-i), r.ID, fmt.Sprintf("run %d", i))
		assert.Nil(t, r.Payload)
	}

	runs, err = m.ListDigests(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	history, err := m.ListQuoteHistory(ctx, "gold", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, uint(5), history[0].RunID)
	assert.Equal(t, uint(4), history[1].RunID)
	assert.True(t, history[0].GeneratedAt.Equal(base.Add(4*time.Hour)))

	history, err = m.ListQuoteHistory(ctx, "silver", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}
