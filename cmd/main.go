package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"texthelper/internal/actions"
	"texthelper/internal/bot"
	"texthelper/internal/config"
	"texthelper/internal/database"
	"texthelper/internal/gateway"
	"texthelper/internal/page"
	"texthelper/internal/scheduler"
	"texthelper/internal/summarizer"
	"texthelper/internal/toolbar"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	tracker := initGateway(ctx, cfg, log)

	chunked := summarizer.New(tracker, summarizer.Config{
		Bound:     cfg.SummaryBound,
		MaxPasses: cfg.SummaryMaxPasses,
		Observer: func(ctx context.Context, event summarizer.PassEvent) {
			log.DebugContext(ctx, "Summary pass is done",
				"pass", event.Pass,
				"chunks", event.Chunks,
				"inputLen", event.InputLen,
				"outputLen", event.OutputLen)
		},
	}, log)

	service := actions.New(tracker, chunked, page.NewFetcher(cfg.PageFetchTimeout, log), log)
	defer service.Close(context.WithoutCancel(ctx))

	botInst, err := bot.New(cfg.Token, db, service, toolbar.New(0, 0), cfg.Allowed, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize bot",
			"error", err,
			"allowedUsersCount", len(cfg.AllowedUsers))

		return
	}
	log.InfoContext(ctx, "Bot is initialized",
		"allowedUsersCount", len(cfg.AllowedUsers))

	sched := scheduler.New(ctx, tracker, db, scheduler.Config{
		SessionIdleTimeout: cfg.SessionIdleTimeout,
		HistoryRetention:   cfg.HistoryRetention,
	}, log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"reapSpec", scheduler.ReapIdleSessionsSpec,
		"pruneSpec", scheduler.PruneHistorySpec,
		"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

	go func() {
		botInst.Start(ctx)
	}()
	log.InfoContext(ctx, "Bot is started",
		"updateTimeoutSeconds", bot.BotUpdateTimeout)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	opened, closed := tracker.Stats()
	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"uptimeSeconds", time.Since(start).Seconds(),
		"sessionsOpened", opened,
		"sessionsClosed", closed)

	botInst.Stop()
	log.InfoContext(ctx, "Bot is stopped",
		"uptimeSeconds", time.Since(start).Seconds())
}

func initGateway(ctx context.Context, cfg config.Config, log *slog.Logger) *gateway.Tracker {
	if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
		log.WarnContext(ctx, "OPENAI_API_KEY and OPENAI_BASE_URL are missing so model actions are unavailable",
			"envVar", "OPENAI_API_KEY")
	}

	g := gateway.NewOpenAIGateway(gateway.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.Model,
	}, log)

	availability, err := g.Probe(ctx, gateway.CapabilityLanguageModel)
	if err != nil {
		log.WarnContext(ctx, "Failed to probe model",
			"error", err,
			"model", cfg.Model)
	} else {
		log.InfoContext(ctx, "Model gateway is initialized",
			"model", cfg.Model,
			"availability", availability,
			"baseURL", cfg.OpenAIBaseURL)
	}

	return gateway.NewTracker(g, log)
}
