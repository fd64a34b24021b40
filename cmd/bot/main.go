package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/getvoyage/summy/internal/config"
	"github.com/getvoyage/summy/internal/dedup"
	"github.com/getvoyage/summy/internal/eventlog"
	"github.com/getvoyage/summy/internal/handlers"
	"github.com/getvoyage/summy/internal/logger"
	"github.com/getvoyage/summy/internal/message"
	"github.com/getvoyage/summy/internal/pipeline"
	"github.com/getvoyage/summy/internal/platform"
	"github.com/getvoyage/summy/internal/poller"
	"github.com/getvoyage/summy/internal/reply"
	"github.com/getvoyage/summy/internal/server"
	"github.com/getvoyage/summy/internal/signature"
	"github.com/getvoyage/summy/internal/transcript"
	"github.com/getvoyage/summy/internal/version"
)

const indexPage = "public/index.html"

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func main() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,

			dedup.NewStore,
			reply.NewGenerator,
			provideEventLog,
			provideVerifier,
			provideNormalizer,
			provideClient,
			provideBook,
			providePipeline,
			providePoller,

			provideServerHandler(provideWebhookHandler),
			provideServerHandler(provideStatusHandler),
			provideServerHandler(provideMessagesHandler),

			provideServer,
		),
		fx.Invoke(
			startPoller,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideEventLog() *eventlog.Log {
	return eventlog.NewLog(eventlog.DefaultCapacity)
}

func provideVerifier(cfg config.Config) *signature.Verifier {
	return signature.NewVerifier(cfg.Instagram.AppSecret)
}

func provideNormalizer(log *slog.Logger) *message.Normalizer {
	return message.NewNormalizer(log)
}

func provideClient(log *slog.Logger, cfg config.Config) *platform.Client {
	return platform.NewClient(log, cfg.Instagram)
}

func provideBook(log *slog.Logger, cfg config.Config) *transcript.Book {
	return transcript.NewBook(log, cfg.Transcript.Path)
}

func providePipeline(log *slog.Logger, cfg config.Config, store *dedup.Store, replies *reply.Generator, client *platform.Client, book *transcript.Book) *pipeline.Pipeline {
	params := pipeline.Params{
		SelfID:                  cfg.Instagram.BusinessAccountID,
		MaxConversations:        cfg.Poller.MaxConvs,
		MessagesPerConversation: cfg.Poller.MessagesPerCnv,
	}
	return pipeline.New(log, params, store, replies, client, book)
}

func providePoller(log *slog.Logger, cfg config.Config, client *platform.Client, normalizer *message.Normalizer, pipe *pipeline.Pipeline) *poller.Poller {
	return poller.New(log, cfg.Poller, client, normalizer, pipe)
}

func provideWebhookHandler(log *slog.Logger, cfg config.Config, verifier *signature.Verifier, normalizer *message.Normalizer, pipe *pipeline.Pipeline, events *eventlog.Log) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, verifier, cfg.Webhook.VerifyToken, cfg.Webhook.StrictSignature, normalizer, pipe, events)
}

func provideStatusHandler(log *slog.Logger, cfg config.Config, store *dedup.Store, events *eventlog.Log, p *poller.Poller) *handlers.StatusHandler {
	return handlers.NewStatusHandler(log, cfg, store, events, p)
}

func provideMessagesHandler(log *slog.Logger, book *transcript.Book, replies *reply.Generator) *handlers.MessagesHandler {
	page := indexPage
	if _, err := os.Stat(page); err != nil {
		page = ""
	}
	return handlers.NewMessagesHandler(log, book, replies, page)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func startPoller(lc fx.Lifecycle, cfg config.Config, p *poller.Poller, logger *slog.Logger) {
	if !cfg.Poller.Enabled {
		logger.Info("polling disabled by config")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return p.Start()
		},
		OnStop: func(ctx context.Context) error {
			return p.Stop(ctx)
		},
	})
}

func startServer(
	lc fx.Lifecycle,
	logger *slog.Logger,
	srv *server.Server,
	shutdowner fx.Shutdowner,
) {
	fmt.Printf("Starting Summy %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil { // block until server is stopped
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown() // shutdown the application if the server fails to start
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// graceful shutdown
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
