package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/prime/internal/adapters"
	"github.com/iamwavecut/prime/internal/adapters/llm/gemini"
	"github.com/iamwavecut/prime/internal/adapters/llm/openai"
	"github.com/iamwavecut/prime/internal/config"
	"github.com/iamwavecut/prime/internal/db/sqlstore"
	"github.com/iamwavecut/prime/internal/discord"
	"github.com/iamwavecut/prime/internal/event"
	"github.com/iamwavecut/prime/internal/handlers/moderation"
	"github.com/iamwavecut/prime/internal/infra"
	"github.com/iamwavecut/prime/internal/lifecycle"
	"github.com/iamwavecut/prime/internal/moderation/appeal"
	"github.com/iamwavecut/prime/internal/moderation/classifier"
	"github.com/iamwavecut/prime/internal/moderation/ledger"
	"github.com/iamwavecut/prime/internal/moderation/sanction"
	"github.com/iamwavecut/prime/internal/observability"
	"github.com/iamwavecut/prime/internal/verification"
)

// stopTimeout bounds the shutdown of each component.
const stopTimeout = 10 * time.Second

func main() {
	cfg := config.Get()
	log.SetFormatter(&config.PrimeFormatter{DisableColors: cfg.LogNoColor})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatalln("prime stopped")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	dataDir, err := infra.DataDir(cfg.DotPath)
	if err != nil {
		return err
	}
	store, err := sqlstore.Open(ctx, cfg.Database.Driver, dataDir, cfg.Database.Path, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Warn("cant close store")
		}
	}()

	vision, text, closeModels := models(ctx, cfg.LLM)
	defer closeModels()

	detector, err := classifier.NewDefaultDetector()
	if err != nil {
		return fmt.Errorf("load word lists: %w", err)
	}

	bus := event.NewBus(event.DefaultQueueSize)
	violations := ledger.New(store, ledger.Options{
		SpamWindow:   cfg.Moderation.SpamWindow,
		MediaWindow:  cfg.Moderation.MediaWindow,
		TrackerSize:  cfg.Moderation.TrackerSize,
		VibeWindow:   cfg.Vibe.Window,
		VibeCooldown: cfg.Vibe.Cooldown,
		VibeHistory:  cfg.Vibe.History,

		RecordCacheSize: cfg.Moderation.TrackerSize,
	})

	adapter, err := discord.NewAdapter(discord.Config{Token: cfg.Token, MutedRoleID: cfg.Guild.MutedRoleID})
	if err != nil {
		return err
	}

	engine := sanction.NewEngine(adapter, violations, bus, sanction.Options{
		PurgeWindow: cfg.Moderation.PurgeWindow,
		NoticeTTL:   cfg.Moderation.NoticeTTL,
		WarnAppeal:  cfg.Moderation.WarnAppeal,
	})
	appeals := appeal.NewWorkflow(store, adapter.Appeals(), violations, bus, appeal.Options{
		ReviewChannelID: cfg.Guild.AppealChannelID,
	})
	verifier := verification.NewService(store, adapter, bus, verification.Options{
		TTL:              cfg.Verification.CaptchaTTL,
		MaxAttempts:      cfg.Verification.CaptchaMaxAttempts,
		AccountAge:       cfg.Verification.AccountAge,
		UnverifiedRoleID: cfg.Guild.UnverifiedRoleID,
		VerifiedRoleID:   cfg.Guild.VerifiedRoleID,
		MutedRoleID:      cfg.Guild.MutedRoleID,
	})

	var vibe moderation.VibeChecker
	if cfg.Vibe.Enabled && text != nil {
		vibe = moderation.NewVibeMonitor(classifier.NewVibeClassifier(text, cfg.Moderation.AITimeout), adapter, bus)
	}
	guard := moderation.NewGuard(moderation.GuardDeps{
		Sanctions: engine,
		Appeals:   appeals,
		Tracker:   violations,
		Detector:  detector,
		Media: classifier.NewMediaClassifier(vision, classifier.MediaOptions{
			Timeout:    cfg.Moderation.AITimeout,
			FailClosed: cfg.Moderation.AIFailClosed,
		}),
		Fetcher: moderation.NewFetcher(cfg.Moderation.MaxMediaBytes, cfg.Moderation.AITimeout),
		Replier: adapter,
		Vibe:    vibe,
	}, moderation.GuardOptions{
		AdminBypassMedia: cfg.Moderation.AdminBypassMedia,
		MaxMediaBytes:    cfg.Moderation.MaxMediaBytes,
		VibeBurst:        cfg.Vibe.Burst,
	})
	joins := moderation.NewJoinGuard(adapter, bus, moderation.JoinOptions{
		UnverifiedRoleID: cfg.Guild.UnverifiedRoleID,
		ModLogChannelID:  cfg.Guild.ModLogChannelID,
		RaidThreshold:    cfg.Moderation.RaidThreshold,
		RaidWindow:       cfg.Moderation.RaidWindow,
		NewAccountAge:    cfg.Moderation.NewAccountAge,
	})
	adapter.Bind(discord.Handlers{Guard: guard, Joins: joins, Appeals: appeals, Verifier: verifier})

	runtime := lifecycle.NewRuntime(lifecycle.Options{StopTimeout: stopTimeout},
		observability.NewServer(cfg.Metrics.Addr),
		event.NewWorker(bus, event.StoreSink(store), event.ChannelSink(adapter, cfg.Guild.ModLogChannelID)),
		verification.NewSweeper(verifier, 0),
		adapter,
	)
	if err := runtime.Start(ctx); err != nil {
		return err
	}
	log.Info("prime is running")

	var modified <-chan struct{}
	if exe, err := os.Executable(); err == nil {
		modified = infra.WatchExecutable(ctx, exe, infra.DefaultExecCheckInterval)
	}
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case <-modified:
		log.Warn("executable file was modified")
	}

	if err := runtime.Stop(context.WithoutCancel(ctx)); err != nil {
		log.WithError(err).Error("unclean shutdown")
	}
	if dropped := bus.Dropped(); dropped > 0 {
		log.WithField("dropped", dropped).Warn("activity records were dropped")
	}
	return nil
}

// models builds the vision and text backends. Either may be nil when its key
// is missing; classifiers then fall back to their default verdicts.
func models(ctx context.Context, cfg config.LLM) (adapters.Vision, adapters.LLM, func()) {
	var (
		vision adapters.Vision
		text   adapters.LLM
	)
	closeModels := func() {}

	if cfg.GeminiAPIKey != "" {
		g, err := gemini.NewGemini(ctx, cfg.GeminiAPIKey, cfg.VisionModels, log.WithField("object", "Gemini"))
		if err != nil {
			log.WithError(err).Warn("media classification disabled")
		} else {
			vision = g
			closeModels = func() { _ = g.Close() }
			if cfg.TextType == "gemini" {
				text = g
			}
		}
	} else {
		log.Warn("no gemini api key, media classification disabled")
	}

	if text == nil && cfg.TextAPIKey != "" {
		text = openai.NewOpenAI(cfg.TextAPIKey, cfg.TextModel, cfg.TextBaseURL, log.WithField("object", "OpenAI"))
	}
	if text == nil {
		log.Warn("no text model configured, vibe checks disabled")
	}
	return vision, text, closeModels
}
