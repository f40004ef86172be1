package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pagelift/internal/checkpoint"
	"github.com/xxxsen/pagelift/internal/config"
	"github.com/xxxsen/pagelift/internal/filestore"
	"github.com/xxxsen/pagelift/internal/idmap"
	"github.com/xxxsen/pagelift/internal/legacy"
	"github.com/xxxsen/pagelift/internal/media"
	"github.com/xxxsen/pagelift/internal/migrate"
	"github.com/xxxsen/pagelift/internal/platform"
	"github.com/xxxsen/pagelift/internal/schedule"
)

type runOptions struct {
	dryRun     bool
	resume     bool
	clearCache bool
	cronSpec   string
}

func main() {
	var (
		configPath string
		opts       runOptions
	)

	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "pagelift",
		Short: "migrate the legacy CMS into the content platform",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the migration pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runMigration(ctx, cfg, opts)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	runCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "validate both ends, write nothing")
	runCmd.Flags().BoolVar(&opts.resume, "resume", false, "continue from the saved checkpoint")
	runCmd.Flags().BoolVar(&opts.clearCache, "clear-cache", false, "wipe the converted media cache before running")
	runCmd.Flags().StringVar(&opts.cronSpec, "schedule", "", "re-sync on a cron schedule instead of running once")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "delete imported documents and clear local migration state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if opts.clearCache {
				if err := clearMediaCache(ctx, cfg); err != nil {
					return err
				}
			}
			m, cleanup, err := setup(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			return m.Reset(ctx)
		},
	}
	resetCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	resetCmd.Flags().BoolVar(&opts.clearCache, "clear-cache", false, "also wipe the converted media cache")

	rootCmd.AddCommand(runCmd, resetCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("migration failed", zap.Error(err))
	}
}

func initConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded",
		zap.String("config", path),
		zap.Strings("locales", cfg.Locales),
		zap.String("base_locale", cfg.BaseLocale))
	return cfg, nil
}

// setup connects both ends and assembles the migrator. Either connection
// failing is a startup-time fatal.
func setup(ctx context.Context, cfg *config.Config) (*migrate.Migrator, func(), error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, nil, err
	}
	source, err := legacy.Open(env.LegacyDatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open legacy source: %w", err)
	}
	files, err := filestore.New(cfg.Platform.FileStore)
	if err != nil {
		_ = source.Close()
		return nil, nil, fmt.Errorf("init file store: %w", err)
	}
	client, err := platform.NewMongo(ctx, env.PlatformMongoURI, cfg.Platform.Database, files)
	if err != nil {
		_ = source.Close()
		return nil, nil, fmt.Errorf("connect platform: %w", err)
	}
	ingestor := media.NewIngestor(client, mediaCacheDir(cfg), cfg.Media.JPEGQuality,
		time.Duration(cfg.Media.DownloadTimeoutSec)*time.Second)
	m := migrate.New(cfg, source, client, ingestor,
		checkpoint.NewStore(cfg.CacheDir), idmap.NewStore(cfg.CacheDir))
	cleanup := func() {
		_ = client.Close(context.Background())
		_ = source.Close()
	}
	return m, cleanup, nil
}

func runMigration(ctx context.Context, cfg *config.Config, opts runOptions) error {
	if opts.clearCache {
		if err := clearMediaCache(ctx, cfg); err != nil {
			return err
		}
	}
	m, cleanup, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.dryRun {
		return m.DryRun(ctx)
	}
	if opts.cronSpec != "" {
		return runScheduled(ctx, m, opts.cronSpec)
	}
	return m.Run(ctx, opts.resume)
}

func runScheduled(ctx context.Context, m *migrate.Migrator, spec string) error {
	sched := schedule.New()
	if err := sched.Schedule(spec, m); err != nil {
		return err
	}
	// first sync runs right away; the cron keeps the destination fresh afterwards
	if err := m.Resync(ctx); err != nil {
		return err
	}
	sched.Start(ctx)
	defer sched.Stop()

	<-ctx.Done()
	logutil.GetLogger(ctx).Info("scheduler stopping...")
	return nil
}

func clearMediaCache(ctx context.Context, cfg *config.Config) error {
	dir := mediaCacheDir(cfg)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear media cache: %w", err)
	}
	logutil.GetLogger(ctx).Info("media cache cleared", zap.String("dir", dir))
	return nil
}

func mediaCacheDir(cfg *config.Config) string {
	return filepath.Join(cfg.CacheDir, "media")
}
