package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"static-ads-backend/internal/campaign"
	"static-ads-backend/internal/config"
	"static-ads-backend/internal/falai"
	"static-ads-backend/internal/gemini"
	"static-ads-backend/internal/generation"
	"static-ads-backend/internal/httpapi"
	"static-ads-backend/internal/httpclient"
	"static-ads-backend/internal/imagegen"
	"static-ads-backend/internal/intelligence"
	"static-ads-backend/internal/leonardo"
	"static-ads-backend/internal/llm"
	"static-ads-backend/internal/mistral"
	"static-ads-backend/internal/settings"
	"static-ads-backend/internal/social"
	"static-ads-backend/internal/store"
	"static-ads-backend/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := store.Open(ctx, store.OpenOptions{
		Driver:      cfg.StoreDriver,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		Silent:      cfg.LogLevel != "debug",
	})
	if err != nil {
		logger.Error("store init failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer func() { _ = closeStore() }()

	var bus settings.Bus
	if cfg.RedisAddr != "" {
		rb, err := settings.NewRedisBus(ctx, settings.RedisBusOptions{
			Addr:    cfg.RedisAddr,
			Channel: cfg.RedisSettingsChannel,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("redis init failed", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}
		defer rb.Close()
		bus = rb
	}

	cfgSvc := settings.New(settings.Options{
		Repo:   st,
		TTL:    cfg.SettingsTTL,
		Bus:    bus,
		Logger: logger,
	})

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4:        cfg.PreferIPv4,
		Timeout:           cfg.HTTPTimeout,
		RequestsPerSecond: cfg.ProviderRPS,
		Burst:             cfg.ProviderBurst,
	})

	images := imagegen.NewOrchestrator(imagegen.Options{
		Providers: []imagegen.Provider{
			falai.New(falai.Options{
				HTTPClient: httpClient,
				Timeout:    cfg.FalTimeout,
				Logger:     logger,
			}),
			leonardo.New(leonardo.Options{
				HTTPClient:   httpClient,
				PollInterval: cfg.LeonardoPoll,
				Timeout:      cfg.LeonardoTimeout,
				Logger:       logger,
			}),
		},
		Logger: logger,
	})

	text := llm.New(llm.Options{
		Providers: []llm.TextProvider{
			gemini.New(gemini.Options{
				BaseURL:    cfg.GeminiBaseURL,
				APIVersion: cfg.GeminiAPIVersion,
				HTTPClient: httpClient,
				Logger:     logger,
			}),
			mistral.New(mistral.Options{
				HTTPClient: httpClient,
				Logger:     logger,
			}),
		},
		Settings: cfgSvc,
		Logger:   logger,
	})

	gens := generation.NewManager(generation.Options{
		Store:    st,
		Images:   images,
		Settings: cfgSvc,
		Logger:   logger,
	})

	var notifier campaign.Notifier
	if cfg.TelegramEnabled() {
		tg, err := telegram.New(telegram.Options{
			Token:      cfg.TelegramToken,
			ChatID:     cfg.TelegramChatID,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		if err != nil {
			logger.Warn("telegram notifier disabled", "err", err)
		} else {
			logger.Info("telegram notifier enabled", "username", tg.Username())
			notifier = tg
		}
	}

	campaigns := campaign.New(campaign.Options{
		Store:     st,
		Generator: gens,
		Text:      text,
		Notifier:  notifier,
		Logger:    logger,
	})

	brands := intelligence.New(intelligence.Options{
		Store:  st,
		Text:   text,
		Logger: logger,
	})

	posts := social.New(social.Options{
		Store:    st,
		Text:     text,
		Images:   images,
		Settings: cfgSvc,
		Logger:   logger,
	})

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(httpapi.Options{
		Generations: gens,
		Campaigns:   campaigns,
		Brands:      brands,
		Settings:    cfgSvc,
		Social:      posts,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("web started", "addr", cfg.WebAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return gens.RunReconciler(gctx, cfg.ReconcileInterval, cfg.StalePending)
	})

	g.Go(func() error {
		if err := cfgSvc.Listen(gctx); err != nil {
			logger.Error("settings listener stopped", "err", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
