package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/inkpress-dev/inkpress/internal/analytics"
	"github.com/inkpress-dev/inkpress/internal/auth"
	"github.com/inkpress-dev/inkpress/internal/config"
	"github.com/inkpress-dev/inkpress/internal/errors"
	"github.com/inkpress-dev/inkpress/internal/render"
	"github.com/inkpress-dev/inkpress/internal/store"
	"github.com/inkpress-dev/inkpress/internal/web"
	"github.com/inkpress-dev/inkpress/pkg/blob"
	"github.com/inkpress-dev/inkpress/pkg/media"
	"github.com/inkpress-dev/inkpress/pkg/session"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the blog server",
		Long: `Run the blog server: the public site, the admin area, and the
/metrics and /healthz endpoints.

The configuration file is found by searching the current directory and
its parents for inkpress.json, or can be given with --config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to inkpress.json")
	return cmd
}

func runServe(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions := session.NewSQLStore(st.DB())
	defer sessions.Close()

	mediaStore, err := openMediaStore(ctx, cfg)
	if err != nil {
		return err
	}

	mat, err := blob.NewFileMaterializer(cfg.ScratchDir())
	if err != nil {
		return errors.New("E600").Wrap(err)
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	registry := blob.NewRegistry(mat, blob.WithMetrics(metrics, "inkpress"))

	recorder := analytics.NewRecorder(st.DB(),
		analytics.WithTrustedProxies(cfg.TrustedProxies),
		analytics.WithViewMetrics(metrics, "inkpress"),
	)
	if cfg.Analytics.RetentionDays > 0 {
		if n, err := recorder.Prune(ctx, cfg.Analytics.RetentionDays); err != nil {
			logger.Warn("analytics prune failed", "error", err)
		} else if n > 0 {
			logger.Info("pruned old page views", "rows", n)
		}
	}

	provider := auth.New(sessions, st,
		auth.WithCookieName(cfg.Session.CookieName),
		auth.WithTTL(cfg.SessionTTL()),
		auth.WithSecureCookies(strings.HasPrefix(cfg.BaseURL, "https://")),
	)

	srv, err := web.New(web.Options{
		Config:    cfg,
		Store:     st,
		Media:     mediaStore,
		Registry:  registry,
		Pipeline:  render.NewPipeline(),
		Auth:      provider,
		Analytics: recorder,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		return errors.New("E600").Wrap(err)
	}

	return srv.Run(ctx)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path, err = config.Find(wd)
		if err != nil {
			return nil, err
		}
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath()), 0755); err != nil {
		return nil, errors.New("E100").Wrap(err)
	}
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	if err := st.InitSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func openMediaStore(ctx context.Context, cfg *config.Config) (media.Store, error) {
	switch cfg.Media.Backend {
	case "s3":
		awsOpts := []func(*awsconfig.LoadOptions) error{}
		if cfg.Media.Region != "" {
			awsOpts = append(awsOpts, awsconfig.WithRegion(cfg.Media.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
		if err != nil {
			return nil, errors.New("E500").Wrap(err)
		}
		client := s3.NewFromConfig(awsCfg)
		return media.NewS3Store(client, cfg.Media.Bucket, cfg.Media.Prefix), nil
	default:
		return media.NewDiskStore(cfg.MediaDir())
	}
}
