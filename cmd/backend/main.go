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

	configloader "github.com/foxseedlab/vcthread/external/config"
	"github.com/foxseedlab/vcthread/external/discord"
	repositoryimpl "github.com/foxseedlab/vcthread/external/repository"
	webhookimpl "github.com/foxseedlab/vcthread/external/webhook"
	"github.com/foxseedlab/vcthread/internal/config"
	discordpkg "github.com/foxseedlab/vcthread/internal/discord"
	"github.com/foxseedlab/vcthread/internal/session"
	"github.com/foxseedlab/vcthread/internal/telemetry"
	"github.com/samber/do/v2"
	"golang.org/x/sync/errgroup"
)

const (
	discordConnectTimeout = 20 * time.Second
	shutdownTimeout       = 30 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching discord bot")
	if err := runBot(cfg, injector); err != nil {
		slog.Error("bot exited with error", "error", err)
		os.Exit(1)
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	telemetry.RegisterDI(injector)
	repositoryimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	session.RegisterDI(injector)

	return injector
}

func mustInvoke[T any](injector do.Injector, name string) T {
	v, err := do.Invoke[T](injector)
	if err != nil {
		slog.Error("failed to resolve "+name, "error", err)
		os.Exit(1)
	}
	return v
}

func runBot(cfg *config.Config, injector do.Injector) error {
	dc := mustInvoke[discordpkg.Client](injector, "discord client")
	coordinator := mustInvoke[*session.Coordinator](injector, "lifecycle coordinator")
	renamer := mustInvoke[*session.RenameHandler](injector, "rename handler")
	metrics := mustInvoke[*telemetry.Metrics](injector, "metrics")

	connectCtx, cancel := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancel()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(connectCtx); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected")

	botUserID, err := dc.GetBotUserID()
	if err != nil {
		slog.Error("failed to resolve bot user id", "error", err)
		os.Exit(1)
	}
	coordinator.SetBotUserID(botUserID)

	dc.RegisterVoiceStateUpdateHandler(coordinator.HandleVoiceStateUpdate)
	dc.RegisterChannelDeleteHandler(coordinator.HandleChannelDelete)
	dc.RegisterChannelUpdateHandler(coordinator.HandleChannelUpdate)
	dc.RegisterRenameHandlers(renamer.HandleRenameButton, renamer.HandleRenameSubmit)
	slog.Info("discord handlers registered",
		"guild_id", cfg.DiscordGuildID,
		"vc_category_id", cfg.VCCategoryID,
		"thread_channel_id", cfg.ThreadChannelID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("startup: entering discord run loop")
		return dc.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		return closeBot(dc, coordinator)
	})
	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux(metrics),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		g.Go(func() error {
			slog.Info("metrics endpoint listening", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

// closeBot stops the gateway first so no new events arrive, then drains
// queued lifecycle work.
func closeBot(dc discordpkg.Client, coordinator *session.Coordinator) error {
	if err := dc.Close(); err != nil {
		slog.Error("discord close failed", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := coordinator.Shutdown(ctx); err != nil {
		slog.Warn("lifecycle queue did not drain before shutdown", "error", err)
	}
	return nil
}

func metricsMux(metrics *telemetry.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
