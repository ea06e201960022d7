package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	apiPkg "github.com/nudgebot-io/nudgebot/internal/api"
	"github.com/nudgebot-io/nudgebot/internal/completion"
	"github.com/nudgebot-io/nudgebot/internal/config"
	"github.com/nudgebot-io/nudgebot/internal/directory"
	"github.com/nudgebot-io/nudgebot/internal/gateway"
	"github.com/nudgebot-io/nudgebot/internal/logbuf"
	"github.com/nudgebot-io/nudgebot/internal/reminder"
	slacksink "github.com/nudgebot-io/nudgebot/internal/sink/slack"
	"github.com/nudgebot-io/nudgebot/internal/source"
	zendesksrc "github.com/nudgebot-io/nudgebot/internal/source/zendesk"
	"github.com/nudgebot-io/nudgebot/internal/ticket"
)

func main() {
	// A local .env is optional; real deployments set env directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config JSON file")
	configURL := flag.String("config-url", os.Getenv("NUDGE_CONFIG_URL"), "URL to fetch config JSON from")
	configKey := flag.String("config-key", os.Getenv("NUDGE_CONFIG_KEY"), "Bearer token for -config-url")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	// Load config (3 modes: file, remote, env)
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else if *configURL != "" {
		logger.Info("loading config from remote", "url", *configURL)
		cfg, err = config.LoadFromRemote(config.RemoteOptions{
			URL:    *configURL,
			APIKey: *configKey,
		})
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("nudged starting", "channel", cfg.Channels.Default)

	// 1. Ticket store with JSON snapshot persistence
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	store := ticket.NewStore(filepath.Join(cfg.DataDir, "tickets.json"), logger.With("component", "store"))
	store.Load()
	logger.Info("ticket store ready", "open_tickets", store.Len())

	// 2. Slack sink
	snk, err := slacksink.New(cfg.Slack.BotToken, logger.With("component", "slack"))
	if err != nil {
		logger.Error("failed to init slack sink", "error", err)
		os.Exit(1)
	}

	// 3. Assignee directory + ingestion gateway
	dir := directory.New(cfg.Directory)
	logger.Info("assignee directory loaded", "entries", dir.Len())

	gw := gateway.New(store, dir, snk, gateway.Routes{
		Default:    cfg.Channels.Default,
		Escalation: cfg.Channels.Escalation,
	}, logger.With("component", "gateway"))

	// 4. Completion evaluator
	doneReaction := cfg.Slack.DoneReaction
	if doneReaction == "" {
		doneReaction = completion.DefaultDoneReaction
	}
	eval := completion.New(store, snk, doneReaction, logger.With("component", "completion"))

	// 5. Optional ticketing-system reconciliation source
	var src source.Source
	if cfg.Ticketing != nil {
		zd, err := zendesksrc.New(cfg.Ticketing.BaseURL, cfg.Ticketing.Email, cfg.Ticketing.APIToken)
		if err != nil {
			logger.Error("failed to init zendesk source", "error", err)
			os.Exit(1)
		}
		src = zd
		logger.Info("zendesk reconciliation enabled", "base_url", cfg.Ticketing.BaseURL)
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. Reminder scheduler
	sched := reminder.New(store, eval, snk, src, reminder.Policy{
		Normal:        cfg.Reminders.NormalInterval(),
		Escalation:    cfg.Reminders.EscalationInterval(),
		EscalateAfter: cfg.Reminders.EscalateAfter,
	}, cfg.Reminders.SweepPeriod(), logger.With("component", "reminder"))

	go safeGo(logger, "reminder", func() {
		if err := sched.Start(ctx); err != nil {
			logger.Error("reminder scheduler stopped", "error", err)
		}
	})
	logger.Info("reminder scheduler started", "period", cfg.Reminders.SweepPeriod().String())

	// 7. API server
	apiSrv := apiPkg.NewServer(store, gw, eval, snk, apiPkg.Config{
		Host:          cfg.API.Host,
		Port:          cfg.API.Port,
		Key:           cfg.API.Key,
		SigningSecret: cfg.Slack.SigningSecret,
	}, logger.With("component", "api"), logBuf)

	go safeGo(logger, "api-server", func() {
		if err := apiSrv.Start(ctx); err != nil {
			logger.Error("api server stopped", "error", err)
		}
	})
	logger.Info("api server started", "port", cfg.API.Port)

	// 8. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig.String())
	cancel()
	logger.Info("nudged stopped")
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
