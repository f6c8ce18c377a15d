package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/LJTian/DailyBrief/internal/pipeline"
)

const latestCacheKey = "digest:latest"

// DigestRun 一次运行的归档，Payload 保存完整 Digest 以便原样返回
type DigestRun struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	GeneratedAt          time.Time      `gorm:"index" json:"generatedAt"`
	State                string         `gorm:"size:16" json:"state"`
	SourcesAttempted     int            `json:"sourcesAttempted"`
	SourcesFailed        int            `json:"sourcesFailed"`
	ItemsBeforeDedupe    int            `json:"itemsBeforeDedupe"`
	ItemsAfterDedupe     int            `json:"itemsAfterDedupe"`
	ItemsAfterTruncation int            `json:"itemsAfterTruncation"`
	Payload              datatypes.JSON `gorm:"type:jsonb" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

// QuoteSnapshot 单值查询的历史值，便于按名称查询走势
type QuoteSnapshot struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	RunID       uint            `gorm:"index" json:"runId"`
	Name        string          `gorm:"size:64;index" json:"name"`
	Value       decimal.Decimal `gorm:"type:numeric(24,8)" json:"value"`
	SourceUsed  string          `gorm:"size:128" json:"sourceUsed"`
	Available   bool            `json:"available"`
	Attempts    int             `json:"attempts"`
	GeneratedAt time.Time       `gorm:"index" json:"generatedAt"`
}

// Store 基于 Postgres 的 Digest 归档，Redis 可选，只缓存最近一次的 Digest
type Store struct {
	DB       *gorm.DB
	Redis    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
}

func NewStore(dsn, redisAddr string, cacheTTL time.Duration, logger zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.AutoMigrate(&DigestRun{}, &QuoteSnapshot{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Store{DB: db, cacheTTL: cacheTTL, logger: logger}
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", redisAddr).Msg("redis ping failed")
		}
		s.Redis = rdb
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Consume 归档一次运行并刷新最新缓存，实现 pipeline.Consumer
func (s *Store) Consume(ctx context.Context, d pipeline.Digest) error {
	run, err := newDigestRun(d)
	if err != nil {
		return err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		snaps := newQuoteSnapshots(run.ID, d)
		if len(snaps) == 0 {
			return nil
		}
		return tx.Create(&snaps).Error
	})
	if err != nil {
		return fmt.Errorf("save digest: %w", err)
	}

	// 缓存写失败只影响读性能，不算归档失败
	if s.Redis != nil {
		if err := s.Redis.Set(ctx, latestCacheKey, []byte(run.Payload), s.cacheTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("cache latest digest failed")
		}
	}
	s.logger.Debug().Uint("run_id", run.ID).Msg("digest archived")
	return nil
}

// LatestDigest 返回最近一次归档的 Digest，优先读 Redis
func (s *Store) LatestDigest(ctx context.Context) (pipeline.Digest, error) {
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, latestCacheKey).Bytes(); err == nil {
			var d pipeline.Digest
			if err := json.Unmarshal(bs, &d); err == nil {
				return d, nil
			}
		}
	}

	var run DigestRun
	err := s.DB.WithContext(ctx).Order("generated_at DESC").Order("id DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pipeline.Digest{}, ErrNotFound
	}
	if err != nil {
		return pipeline.Digest{}, err
	}
	return decodeDigest(run)
}

// ListDigests 按时间倒序返回运行摘要（不含 Payload）
func (s *Store) ListDigests(ctx context.Context, limit int) ([]DigestRun, error) {
	limit = clampLimit(limit)
	var runs []DigestRun
	err := s.DB.WithContext(ctx).
		Omit("payload").
		Order("generated_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// ListQuoteHistory 返回某个查询最近的历史值
func (s *Store) ListQuoteHistory(ctx context.Context, name string, limit int) ([]QuoteSnapshot, error) {
	limit = clampLimit(limit)
	var snaps []QuoteSnapshot
	err := s.DB.WithContext(ctx).
		Where("name = ?", name).
		Order("generated_at DESC").
		Limit(limit).
		Find(&snaps).Error
	return snaps, err
}

func newDigestRun(d pipeline.Digest) (DigestRun, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return DigestRun{}, fmt.Errorf("encode digest: %w", err)
	}
	return DigestRun{
		GeneratedAt:          d.GeneratedAt,
		State:                d.News.State.String(),
		SourcesAttempted:     d.Stats.SourcesAttempted,
		SourcesFailed:        d.Stats.SourcesFailed,
		ItemsBeforeDedupe:    d.Stats.ItemsBeforeDedupe,
		ItemsAfterDedupe:     d.Stats.ItemsAfterDedupe,
		ItemsAfterTruncation: d.Stats.ItemsAfterTruncation,
		Payload:              datatypes.JSON(payload),
	}, nil
}

func newQuoteSnapshots(runID uint, d pipeline.Digest) []QuoteSnapshot {
	snaps := make([]QuoteSnapshot, 0, len(d.Quotes))
	for _, q := range d.Quotes {
		snaps = append(snaps, QuoteSnapshot{
			RunID:       runID,
			Name:        truncateRunesDB(toValidUTF8(q.Name), 64),
			Value:       q.Value,
			SourceUsed:  truncateRunesDB(toValidUTF8(q.SourceUsed), 128),
			Available:   q.Available,
			Attempts:    q.Attempts,
			GeneratedAt: d.GeneratedAt,
		})
	}
	return snaps
}

func decodeDigest(run DigestRun) (pipeline.Digest, error) {
	var d pipeline.Digest
	if err := json.Unmarshal(run.Payload, &d); err != nil {
		return pipeline.Digest{}, fmt.Errorf("decode digest %d: %w", run.ID, err)
	}
	return d, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 20
	}
	return limit
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
