package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/LJTian/DailyBrief/internal/metrics"
	"github.com/LJTian/DailyBrief/internal/pipeline"
	"github.com/LJTian/DailyBrief/internal/storage"
)

// DigestStore 读取归档的 Digest
type DigestStore interface {
	LatestDigest(ctx context.Context) (pipeline.Digest, error)
	ListDigests(ctx context.Context, limit int) ([]storage.DigestRun, error)
	ListQuoteHistory(ctx context.Context, name string, limit int) ([]storage.QuoteSnapshot, error)
}

// DefaultRunTimeout 按需运行在未配置时的上限
const DefaultRunTimeout = 30 * time.Second

// Runner 按需执行一次运行
type Runner interface {
	Run(ctx context.Context, consumers ...pipeline.Consumer) (pipeline.Digest, error)
}

type Server struct {
	store     DigestStore
	runner    Runner
	consumers []pipeline.Consumer
	logger    zerolog.Logger
	// runTimeout 按需运行的服务端上限，与请求方的超时无关
	runTimeout time.Duration

	// 同一时刻只允许一次按需运行
	running sync.Mutex
}

func NewServer(store DigestStore, runner Runner, consumers []pipeline.Consumer, runTimeout time.Duration, logger zerolog.Logger) *Server {
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}
	return &Server{store: store, runner: runner, consumers: consumers, runTimeout: runTimeout, logger: logger}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.Use(s.observe)
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/digest/latest", s.latestDigest)
		v1.GET("/digests", s.listDigests)
		v1.POST("/digest/run", s.runDigest)
		v1.GET("/quotes/:name/history", s.quoteHistory)
	}
}

func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()
	endpoint := c.FullPath()
	if endpoint == "" {
		endpoint = "unmatched"
	}
	metrics.ObserveRequest(endpoint, strconv.Itoa(c.Writer.Status()), time.Since(start))
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) latestDigest(c *gin.Context) {
	d, err := s.store.LatestDigest(c.Request.Context())
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "not_found",
			"message": "no digest has been generated yet",
		})
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, d)
}

func (s *Server) listDigests(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	runs, err := s.store.ListDigests(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, runs)
}

func (s *Server) runDigest(c *gin.Context) {
	if !s.running.TryLock() {
		c.JSON(http.StatusConflict, gin.H{
			"code":    "busy",
			"message": "a digest run is already in progress",
		})
		return
	}
	defer s.running.Unlock()

	// 客户端断开不能让各源记为超时，也不能让空结果覆盖上一次的 Digest
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), s.runTimeout)
	defer cancel()

	d, err := s.runner.Run(ctx, s.consumers...)
	if err != nil {
		// Digest 已生成，只是有消费者失败，仍返回结果
		s.logger.Warn().Err(err).Msg("on-demand run finished with consumer errors")
	}
	ok(c, d)
}

func (s *Server) quoteHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	snaps, err := s.store.ListQuoteHistory(c.Request.Context(), c.Param("name"), limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, snaps)
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}
