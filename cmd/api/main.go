package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/LJTian/DailyBrief/internal/api"
	"github.com/LJTian/DailyBrief/internal/config"
	"github.com/LJTian/DailyBrief/internal/logging"
	"github.com/LJTian/DailyBrief/internal/metrics"
	"github.com/LJTian/DailyBrief/internal/pipeline"
	"github.com/LJTian/DailyBrief/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}

	logger, err := logging.Init(cfg.LogLevel, cfg.LogFormat, "stdout")
	if err != nil {
		log.Fatal().Err(err).Msg("init logger failed")
	}

	builder, err := pipeline.NewBuilderFromConfig(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init pipeline failed")
	}

	// 未配置 Postgres 时只在内存中保留最近的运行
	var (
		store     api.DigestStore
		consumers = []pipeline.Consumer{metrics.Consumer()}
	)
	if cfg.PostgresDSN != "" {
		pg, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, cfg.CacheTTL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("init store failed")
		}
		defer pg.Close()
		store = pg
		consumers = append(consumers, pg)
	} else {
		logger.Warn().Msg("POSTGRES_DSN not set, digests are kept in memory only")
		mem := storage.NewMemoryStore(20)
		store = mem
		consumers = append(consumers, mem)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	api.NewServer(store, builder, consumers, 2*cfg.FetchTimeout, logger).RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting api server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exit")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
	logger.Info().Msg("server stopped")
}
