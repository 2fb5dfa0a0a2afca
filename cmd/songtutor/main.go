// Songtutor - a language tutor that teaches through song lyrics, served
// over a Messenger webhook.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/starpy/songtutor/internal/agent"
	"github.com/starpy/songtutor/internal/bot"
	"github.com/starpy/songtutor/internal/brain"
	"github.com/starpy/songtutor/internal/config"
	"github.com/starpy/songtutor/internal/lesson"
	"github.com/starpy/songtutor/internal/logging"
	"github.com/starpy/songtutor/internal/lyrics"
	"github.com/starpy/songtutor/internal/messenger"
	"github.com/starpy/songtutor/internal/reminder"
	"github.com/starpy/songtutor/internal/store"
	"github.com/starpy/songtutor/internal/tools"
	"github.com/starpy/songtutor/internal/vocab"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("songtutor v%s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewWithConfig(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer logger.Close()
	logger.Info("Starting songtutor", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutting down...")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	brn, err := brain.NewOpenAIBrain(cfg.Brain)
	if err != nil {
		return err
	}
	if err := brn.Ping(ctx); err != nil {
		// Startup proceeds; the provider may come back before the first turn.
		logger.Warn("model provider unreachable", "error", err)
	} else {
		logger.Info("model provider reachable", "model", cfg.Brain.ChatModel)
	}

	analyzer, err := vocab.NewAnalyzer()
	if err != nil {
		return err
	}
	vocabSvc := vocab.NewService(st, brn, analyzer, logger.Component("vocab"))

	search := lyrics.NewTavilyClient(lyrics.TavilyConfig{
		APIKey:     cfg.Search.APIKey,
		MaxResults: cfg.Search.MaxResults,
	})
	fetcher := lyrics.NewFetcher(st, search, lyrics.NewScraper(0), logger.Component("lyrics"))

	registry := tools.NewRegistry()
	registry.Register(tools.NewFetchLyricsTool(fetcher, st, vocabSvc, logger.Component("tools")))
	registry.Register(tools.NewRecordLyricsTool(st, vocabSvc, logger.Component("tools")))

	loop := agent.New(agent.Config{
		Brain:         brn,
		Tools:         registry,
		MaxToolRounds: cfg.Brain.MaxToolRounds,
		Logger:        logger.Component("agent"),
	})

	closer := lesson.NewCloser(st, brn, vocabSvc, logger.Component("lesson"))

	client := messenger.NewClient(messenger.ClientConfig{
		BaseURL:     cfg.Messenger.GraphURL,
		AccessToken: cfg.Messenger.PageAccessToken,
	})

	b := bot.New(bot.Config{
		Store:       st,
		Loop:        loop,
		Closer:      closer,
		Transport:   client,
		TurnTimeout: time.Duration(cfg.Brain.TurnTimeout) * time.Second,
		ReminderTZ:  cfg.Reminders.Timezone,
		Logger:      logger.Component("bot"),
	})

	if cfg.Reminders.Enabled {
		sched, err := reminder.New(reminder.Config{
			Store:    st,
			Brain:    brn,
			Sender:   b,
			Times:    cfg.Reminders.Times,
			Timezone: cfg.Reminders.Timezone,
			Logger:   logger.Component("reminder"),
		})
		if err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
	}

	webhook := messenger.NewWebhook(cfg.Messenger.VerifyToken, b, client, logger.Component("webhook"))
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: webhook.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Webhook listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
