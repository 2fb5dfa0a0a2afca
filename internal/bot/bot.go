// Package bot wires inbound events to the tutoring loop: user bootstrap,
// per-user serialization, lesson close detection and the send-then-persist
// delivery path.
package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/starpy/songtutor/internal/agent"
	"github.com/starpy/songtutor/internal/lesson"
	"github.com/starpy/songtutor/internal/messenger"
	"github.com/starpy/songtutor/internal/store"
)

const (
	defaultTurnTimeout   = 90 * time.Second
	defaultHistoryWindow = 30

	apologyText     = "Sorry, something went wrong on my end. Could you send that again?"
	closingText     = "Great lesson! I'm updating your vocabulary notes now. Talk to you soon!"
	greetingText    = "Hi! I teach languages through songs you love. Name a song and its artist and we'll learn from its lyrics."
	reminderSetText = "Done! I'll send you a little quiz every morning and evening."
)

// Transport delivers messages to the user.
type Transport interface {
	SendText(ctx context.Context, psid, text string, quickReplies []messenger.QuickReply) error
	SendTyping(ctx context.Context, psid string, on bool) error
	GetProfile(ctx context.Context, psid string) (*messenger.Profile, error)
}

// Responder produces the tutor's reply for a turn.
type Responder interface {
	Respond(ctx context.Context, req *agent.Request) (string, error)
}

// LessonCloser ends a lesson thread.
type LessonCloser interface {
	Close(ctx context.Context, threadID, psid string) error
}

// Bot dispatches inbound events.
type Bot struct {
	store         *store.Store
	loop          Responder
	closer        LessonCloser
	transport     Transport
	locks         *keyedMutex
	turnTimeout   time.Duration
	historyWindow int
	reminderTZ    string
	log           *slog.Logger
}

// Config configures the bot.
type Config struct {
	Store       *store.Store
	Loop        Responder
	Closer      LessonCloser
	Transport   Transport
	TurnTimeout time.Duration
	ReminderTZ  string
	Logger      *slog.Logger
}

// New creates a bot with defaults applied.
func New(cfg Config) *Bot {
	timeout := cfg.TurnTimeout
	if timeout <= 0 {
		timeout = defaultTurnTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Bot{
		store:         cfg.Store,
		loop:          cfg.Loop,
		closer:        cfg.Closer,
		transport:     cfg.Transport,
		locks:         newKeyedMutex(),
		turnTimeout:   timeout,
		historyWindow: defaultHistoryWindow,
		reminderTZ:    cfg.ReminderTZ,
		log:           log,
	}
}

// HandleText processes one inbound text message.
func (b *Bot) HandleText(ctx context.Context, psid, text string) {
	unlock := b.locks.Lock(psid)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, b.turnTimeout)
	defer cancel()

	if err := b.transport.SendTyping(ctx, psid, true); err != nil {
		b.log.Debug("typing indicator failed", "psid", psid, "error", err)
	}
	defer func() {
		if err := b.transport.SendTyping(context.WithoutCancel(ctx), psid, false); err != nil {
			b.log.Debug("typing indicator failed", "psid", psid, "error", err)
		}
	}()

	b.bootstrapUser(ctx, psid)

	thread, err := b.store.FindOrCreateOpenThread(ctx, psid)
	if err != nil {
		b.log.Error("thread lookup failed", "psid", psid, "error", err)
		b.send(ctx, psid, "", apologyText, nil)
		return
	}

	if err := b.store.AppendMessage(ctx, thread.ID, store.SenderUser, text); err != nil {
		b.log.Error("failed to persist inbound message", "thread", thread.ID, "error", err)
	}

	if lesson.IsCloseRequest(text) {
		b.send(ctx, psid, thread.ID, closingText, nil)
		if err := b.closer.Close(ctx, thread.ID, psid); err != nil {
			b.log.Error("lesson close failed", "thread", thread.ID, "error", err)
		}
		return
	}

	b.respond(ctx, psid, thread)
}

// respond runs one loop turn and delivers the result.
func (b *Bot) respond(ctx context.Context, psid string, thread *store.Thread) {
	history, err := b.store.RecentMessages(ctx, thread.ID, b.historyWindow)
	if err != nil {
		b.log.Error("failed to load history", "thread", thread.ID, "error", err)
		b.send(ctx, psid, thread.ID, apologyText, nil)
		return
	}

	turns := make([]agent.Turn, len(history))
	for i, m := range history {
		turns[i] = agent.Turn{At: m.CreatedAt, Sender: m.Sender, Text: m.Text}
	}

	// Re-read the thread: a fetch_lyrics call in a previous turn may have
	// set material after our copy was loaded.
	if fresh, err := b.store.GetThread(ctx, thread.ID); err == nil {
		thread = fresh
	}

	reply, err := b.loop.Respond(ctx, &agent.Request{
		ThreadID:      thread.ID,
		UserID:        psid,
		History:       turns,
		Material:      thread.Material,
		VocabSnapshot: thread.VocabSnapshot,
	})
	if err != nil {
		b.log.Error("loop turn failed", "thread", thread.ID, "error", err)
		b.send(ctx, psid, thread.ID, apologyText, nil)
		return
	}

	b.send(ctx, psid, thread.ID, reply, lessonQuickReplies())
}

// send delivers text and persists it only after the transport accepted it.
func (b *Bot) send(ctx context.Context, psid, threadID, text string, quickReplies []messenger.QuickReply) {
	if err := b.transport.SendText(ctx, psid, text, quickReplies); err != nil {
		b.log.Error("send failed", "psid", psid, "error", err)
		return
	}
	if threadID == "" {
		return
	}
	if err := b.store.AppendMessage(ctx, threadID, store.SenderBot, text); err != nil {
		b.log.Error("failed to persist bot message", "thread", threadID, "error", err)
	}
}

// HandleQuickReply translates a tapped chip into its canned utterance and
// runs the normal text path.
func (b *Bot) HandleQuickReply(ctx context.Context, psid, payload string) {
	utterance, ok := quickReplyUtterances[payload]
	if !ok {
		b.log.Debug("unknown quick reply", "psid", psid, "payload", payload)
		return
	}
	b.HandleText(ctx, psid, utterance)
}

var quickReplyUtterances = map[string]string{
	messenger.PayloadQuizMe:       "Quiz me on the words from this song.",
	messenger.PayloadYes:          "Yes",
	messenger.PayloadContinueSong: "Let's continue with the song.",
}

// HandlePostback processes a tapped button.
func (b *Bot) HandlePostback(ctx context.Context, psid, payload string) {
	unlock := b.locks.Lock(psid)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, b.turnTimeout)
	defer cancel()

	b.bootstrapUser(ctx, psid)

	switch payload {
	case messenger.PayloadGetStarted:
		thread, err := b.store.FindOrCreateOpenThread(ctx, psid)
		threadID := ""
		if err == nil {
			threadID = thread.ID
		}
		b.send(ctx, psid, threadID, greetingText, lessonQuickReplies())
	case messenger.PayloadSetDailyReminder:
		if err := b.store.SetReminder(ctx, psid, true, b.reminderTZ); err != nil {
			b.log.Error("failed to set reminder", "psid", psid, "error", err)
			b.send(ctx, psid, "", apologyText, nil)
			return
		}
		b.send(ctx, psid, "", reminderSetText, nil)
	default:
		b.log.Debug("unknown postback", "psid", psid, "payload", payload)
	}
}

// SendInto delivers text into the user's open thread, for the reminder
// jobs.
func (b *Bot) SendInto(ctx context.Context, psid, text string) error {
	unlock := b.locks.Lock(psid)
	defer unlock()

	thread, err := b.store.FindOrCreateOpenThread(ctx, psid)
	if err != nil {
		return err
	}
	b.send(ctx, psid, thread.ID, text, lessonQuickReplies())
	return nil
}

// bootstrapUser makes sure the user row exists, filling it from the Graph
// profile when reachable.
func (b *Bot) bootstrapUser(ctx context.Context, psid string) {
	if _, err := b.store.GetUser(ctx, psid); err == nil {
		return
	}

	u := &store.User{PSID: psid}
	if p, err := b.transport.GetProfile(ctx, psid); err == nil {
		u.FirstName = p.FirstName
		u.Locale = p.Locale
	} else {
		b.log.Debug("profile fetch failed", "psid", psid, "error", err)
	}
	if err := b.store.CreateUser(ctx, u); err != nil {
		b.log.Error("failed to create user", "psid", psid, "error", err)
	}
}

func lessonQuickReplies() []messenger.QuickReply {
	return []messenger.QuickReply{
		messenger.TextQuickReply("Quiz me", messenger.PayloadQuizMe),
		messenger.TextQuickReply("Continue song", messenger.PayloadContinueSong),
	}
}
