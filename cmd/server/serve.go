package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Brownie44l1/seedbot/internal/config"
	"github.com/Brownie44l1/seedbot/internal/handlers"
	"github.com/Brownie44l1/seedbot/internal/imageproc"
	"github.com/Brownie44l1/seedbot/internal/metrics"
	"github.com/Brownie44l1/seedbot/internal/model"
	"github.com/Brownie44l1/seedbot/internal/pipeline"
	"github.com/Brownie44l1/seedbot/internal/server"
	"github.com/Brownie44l1/seedbot/internal/telegram"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), cfg)
	},
}

func runServe(ctx context.Context, cfg config.Config) error {
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log := newLogger()

	if _, err := ensureModel(ctx, cfg, log); err != nil {
		return err
	}

	app := fx.New(
		fx.Supply(cfg, log),
		fx.Provide(
			provideRegistry,
			provideMetrics,
			provideModel,
			provideTelegramClient,
			providePipeline,
			provideServerHandler(provideHandler),
			provideServerHandler(provideWebhookHandler),
			provideServer,
		),
		fx.Invoke(startServer),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
	if err := app.Err(); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case sig := <-app.Done():
		log.Info("received signal", slog.String("signal", sig.String()))
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.Stop(stopCtx)
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideMetrics(reg *prometheus.Registry) *metrics.Pipeline {
	return metrics.NewPipeline(reg)
}

func provideModel(lc fx.Lifecycle, cfg config.Config, log *slog.Logger) (*model.Classifier, *imageproc.Preprocessor, error) {
	cls, pre, err := loadModel(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			cls.Close()
			return nil
		},
	})
	return cls, pre, nil
}

func provideTelegramClient(cfg config.Config, log *slog.Logger) (*telegram.Client, error) {
	return telegram.NewClient(telegram.ClientConfig{
		Token:        cfg.Telegram.Token,
		APIEndpoint:  cfg.Telegram.APIEndpoint,
		FileEndpoint: cfg.Telegram.FileEndpoint,
		Timeout:      cfg.Telegram.TimeoutDuration(),
		MaxFileBytes: cfg.Telegram.MaxFileBytes,
	}, log)
}

func providePipeline(cfg config.Config, log *slog.Logger, client *telegram.Client, pre *imageproc.Preprocessor, cls *model.Classifier, m *metrics.Pipeline) (*pipeline.Pipeline, error) {
	return pipeline.New(pipeline.Config{
		Files:        client,
		Preprocessor: pre,
		Classifier:   cls,
		Replies:      client,
		Labels:       model.Labels(cfg.Model.Labels),
		Metrics:      m,
		Logger:       log,
	})
}

func provideHandler(cfg config.Config, log *slog.Logger, pre *imageproc.Preprocessor, cls *model.Classifier) *handlers.Handler {
	return handlers.NewHandler(log, pre, cls, model.Labels(cfg.Model.Labels), cfg.Server.EnablePredict)
}

func provideWebhookHandler(cfg config.Config, log *slog.Logger, p *pipeline.Pipeline) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, cfg.Server.WebhookSecret, p)
}

type serverParams struct {
	fx.In

	Config   config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Config.Server.Addr, params.Logger, params.Registry, params.Handlers...)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, srv *server.Server, client *telegram.Client, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			log.Info("seedbot started",
				slog.String("version", version),
				slog.String("bot", client.Username()),
				slog.String("addr", srv.Addr()),
				slog.Bool("predict_endpoint", cfg.Server.EnablePredict),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
