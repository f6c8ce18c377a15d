package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/LJTian/DailyBrief/internal/config"
	"github.com/LJTian/DailyBrief/internal/logging"
	"github.com/LJTian/DailyBrief/internal/metrics"
	"github.com/LJTian/DailyBrief/internal/pipeline"
	"github.com/LJTian/DailyBrief/internal/storage"
)

var version = "dev"

type options struct {
	maxItems  int
	perSource int
	sources   string
	save      bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "dailybrief",
		Short:         "Build a daily brief of headlines and quotes",
		Long:          "dailybrief fetches the configured feeds, merges and ranks the headlines, resolves each quote through its fallback candidates and prints the digest as JSON.",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, opts)
		},
	}
	root.Flags().IntVar(&opts.maxItems, "max-items", 0, "maximum headlines in the digest (overrides MAX_ITEMS)")
	root.Flags().IntVar(&opts.perSource, "per-source", 0, "maximum headlines taken from each source (overrides PER_SOURCE_LIMIT)")
	root.Flags().StringVar(&opts.sources, "sources", "", "path to a sources YAML file (overrides SOURCES_FILE)")
	root.Flags().BoolVar(&opts.save, "save", false, "archive the digest to Postgres (requires POSTGRES_DSN)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dailybrief %s\n", version)
		},
	})
	return root
}

// loadConfig 读取环境配置并应用命令行覆盖
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("sources") {
		file, err := config.LoadSources(opts.sources)
		if err != nil {
			return nil, err
		}
		cfg.SourcesFile = opts.sources
		cfg.Feeds = file.Feeds
		cfg.Quotes = file.Quotes
	}
	if flags.Changed("max-items") {
		cfg.MaxItems = opts.maxItems
	}
	if flags.Changed("per-source") {
		cfg.PerSourceLimit = opts.perSource
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runOnce(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	// 日志写 stderr，stdout 只留给 Digest
	logger, err := logging.Init(cfg.LogLevel, cfg.LogFormat, "stderr")
	if err != nil {
		return err
	}

	builder, err := pipeline.NewBuilderFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	consumers := []pipeline.Consumer{metrics.Consumer()}
	if opts.save {
		store, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		consumers = append(consumers, store)
	}
	consumers = append(consumers, pipeline.JSONConsumer{W: cmd.OutOrStdout()})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = builder.Run(ctx, consumers...)
	return err
}

func openStore(cfg *config.Config, logger zerolog.Logger) (*storage.Store, error) {
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("--save requires POSTGRES_DSN")
	}
	return storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, cfg.CacheTTL, logger)
}
