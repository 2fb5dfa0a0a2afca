// Package reminder sends the daily quiz messages to users who opted in.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/starpy/songtutor/internal/brain"
	"github.com/starpy/songtutor/internal/store"
)

// Sender delivers a message into a user's open thread.
type Sender interface {
	SendInto(ctx context.Context, psid, text string) error
}

// ReminderStore is the slice of the store the scheduler needs.
type ReminderStore interface {
	ActiveReminders(ctx context.Context) ([]store.Reminder, error)
	LatestThread(ctx context.Context, psid string) (*store.Thread, error)
	VocabFor(ctx context.Context, psid string) ([]store.VocabEntry, error)
}

// Scheduler runs the daily quiz jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	store     ReminderStore
	brain     brain.Brain
	sender    Sender
	times     []string
	log       *slog.Logger
}

// Config configures the scheduler.
type Config struct {
	Store    ReminderStore
	Brain    brain.Brain
	Sender   Sender
	Times    []string // "HH:MM", local to Timezone
	Timezone string
	Logger   *slog.Logger
}

// New creates a scheduler pinned to the configured timezone.
func New(cfg Config) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("bad reminder timezone %q: %w", cfg.Timezone, err)
	}
	times := cfg.Times
	if len(times) == 0 {
		times = []string{"07:00", "19:00"}
	}

	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		store:     cfg.Store,
		brain:     cfg.Brain,
		sender:    cfg.Sender,
		times:     times,
		log:       cfg.Logger,
	}, nil
}

// Start registers the daily jobs and runs the scheduler in the background.
func (s *Scheduler) Start() error {
	for _, at := range s.times {
		if _, err := s.scheduler.Every(1).Day().At(at).Do(s.sweep); err != nil {
			return fmt.Errorf("failed to schedule reminder at %s: %w", at, err)
		}
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates the scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

const quizInstruction = `You write one short quiz message for a language learner, to be sent as a chat reminder.
Based on the lesson material, ask about one or two words or a line: its meaning, reading or usage.
Keep it friendly and under three sentences. Do not include the answer.`

// sweep sends one quiz to every user with an enabled reminder. Per-user
// failures are logged and never stop the sweep.
func (s *Scheduler) sweep() {
	ctx := context.Background()

	reminders, err := s.store.ActiveReminders(ctx)
	if err != nil {
		s.log.Error("failed to load reminders", "error", err)
		return
	}

	for _, r := range reminders {
		if err := s.remind(ctx, r.PSID); err != nil {
			s.log.Warn("reminder failed", "psid", r.PSID, "error", err)
		}
	}
}

func (s *Scheduler) remind(ctx context.Context, psid string) error {
	thread, err := s.store.LatestThread(ctx, psid)
	if errors.Is(err, store.ErrNotFound) {
		// Opted in before any lesson; nothing to quiz yet.
		return nil
	}
	if err != nil {
		return err
	}
	if thread.Material == "" {
		return nil
	}

	prompt := fmt.Sprintf("Lesson topic: %s\n\nMaterial:\n%s", thread.Topic, thread.Material)
	if thread.VocabSnapshot != "" {
		prompt += "\n\nVocabulary of this learner:\n" + thread.VocabSnapshot
	}
	if entries, err := s.store.VocabFor(ctx, psid); err != nil {
		s.log.Warn("failed to load ledger for quiz", "psid", psid, "error", err)
	} else {
		var open []string
		for _, e := range entries {
			if e.Status == store.StatusIntroduced {
				open = append(open, e.Word)
			}
		}
		if len(open) > 0 {
			prompt += "\n\nWords the learner is still working on: " + strings.Join(open, ", ")
		}
	}

	quiz, err := s.brain.Complete(ctx, quizInstruction, prompt)
	if err != nil {
		return fmt.Errorf("quiz generation failed: %w", err)
	}
	return s.sender.SendInto(ctx, psid, quiz)
}
