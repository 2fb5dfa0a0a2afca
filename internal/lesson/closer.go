// Package lesson implements closing a lesson thread: marking it closed and
// reconciling the vocabulary ledger from the full conversation.
package lesson

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starpy/songtutor/internal/brain"
	"github.com/starpy/songtutor/internal/store"
)

// CloseKeywords end a lesson when any appears in an inbound message,
// case-insensitively.
var CloseKeywords = []string{"close lesson", "end lesson", "finish lesson", "stop lesson"}

// IsCloseRequest reports whether text asks to end the lesson.
func IsCloseRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range CloseKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

const reviewBatchSize = 10

// ThreadStore is the slice of the store the closer needs.
type ThreadStore interface {
	GetThread(ctx context.Context, id string) (*store.Thread, error)
	Messages(ctx context.Context, threadID string) ([]store.Message, error)
	CloseThread(ctx context.Context, threadID string) error
	SetThreadVocabUpdate(ctx context.Context, threadID, update string) error
	SetThreadSnapshot(ctx context.Context, threadID, snapshot string) error
	UpsertVocab(ctx context.Context, e *store.VocabEntry) error
}

// Snapshotter rebuilds the vocabulary summary after reconciliation.
type Snapshotter interface {
	Snapshot(ctx context.Context, psid string, words []string) (string, error)
}

// Closer ends lessons and reconciles the vocabulary ledger.
type Closer struct {
	store ThreadStore
	brain brain.Brain
	snap  Snapshotter
	log   *slog.Logger
}

// NewCloser creates a lesson closer.
func NewCloser(st ThreadStore, b brain.Brain, snap Snapshotter, log *slog.Logger) *Closer {
	return &Closer{store: st, brain: b, snap: snap, log: log}
}

const reviewInstruction = `You review a fragment of a language lesson conversation and update the learner's vocabulary ledger.
For every word that was taught, quizzed or discussed, output its new status:
- "introduced": the default for a word the learner met in this lesson.
- "known": the learner said they already know it, or answered a quiz about it correctly.
- A wrong answer, re-asking or visible confusion makes a word "introduced" even if it was known.
The "Vocab before this lesson" block is the learner's ledger when the lesson started. A word it lists as known stays "known" unless this fragment shows a wrong answer or confusion about it; merely appearing in the lyrics does not demote it.
Write each word in dictionary form. For Chinese, Japanese and Korean use the native script and put the romanized reading in "note".
"language" must be one of: ` + "English, Chinese, Japanese, Korean, French, Italian" + `.
Respond with a JSON object: {"words":[{"word":"...","status":"introduced|known","note":"...","meaning":"...","language":"..."}]}.
If the fragment teaches no vocabulary, respond with {"words":[]}.`

type reviewedWord struct {
	Word     string `json:"word"`
	Status   string `json:"status"`
	Note     string `json:"note"`
	Meaning  string `json:"meaning"`
	Language string `json:"language"`
}

// Close marks the thread closed and reconciles the ledger from its entire
// history in batches. Reconciliation is best-effort: a failed batch is
// logged and skipped, and the close itself is never rolled back.
func (c *Closer) Close(ctx context.Context, threadID, psid string) error {
	// The lesson-start snapshot is the baseline the review judges against;
	// read it before anything overwrites it.
	baseline := ""
	if th, err := c.store.GetThread(ctx, threadID); err == nil {
		baseline = th.VocabSnapshot
	} else {
		c.log.Warn("failed to read thread baseline", "thread", threadID, "error", err)
	}

	if err := c.store.CloseThread(ctx, threadID); err != nil {
		return fmt.Errorf("failed to close thread: %w", err)
	}

	msgs, err := c.store.Messages(ctx, threadID)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	var changes []string
	var reviewed []string
	for start := 0; start < len(msgs); start += reviewBatchSize {
		end := start + reviewBatchSize
		if end > len(msgs) {
			end = len(msgs)
		}

		words, err := c.reviewBatch(ctx, baseline, msgs[start:end])
		if err != nil {
			c.log.Warn("batch review failed", "thread", threadID, "batch_start", start, "error", err)
			continue
		}

		for _, w := range words {
			if w.Word == "" {
				continue
			}
			status := w.Status
			if status != store.StatusKnown {
				status = store.StatusIntroduced
			}
			entry := &store.VocabEntry{
				PSID:     psid,
				Word:     w.Word,
				Note:     w.Note,
				Meaning:  w.Meaning,
				Language: w.Language,
				Status:   status,
			}
			if err := c.store.UpsertVocab(ctx, entry); err != nil {
				c.log.Warn("ledger upsert failed", "word", w.Word, "error", err)
				continue
			}
			changes = append(changes, fmt.Sprintf("%s: %s", w.Word, status))
			reviewed = append(reviewed, w.Word)
		}
	}

	if len(changes) > 0 {
		update := strings.Join(changes, "\n")
		if err := c.store.SetThreadVocabUpdate(ctx, threadID, update); err != nil {
			c.log.Warn("failed to store vocab update", "thread", threadID, "error", err)
		}
		if snapshot, err := c.snap.Snapshot(ctx, psid, reviewed); err == nil {
			if err := c.store.SetThreadSnapshot(ctx, threadID, snapshot); err != nil {
				c.log.Warn("failed to refresh snapshot", "thread", threadID, "error", err)
			}
		} else {
			c.log.Warn("failed to rebuild snapshot", "thread", threadID, "error", err)
		}
	}
	return nil
}

func (c *Closer) reviewBatch(ctx context.Context, baseline string, msgs []store.Message) ([]reviewedWord, error) {
	var b strings.Builder
	b.WriteString("Vocab before this lesson:\n")
	if baseline == "" {
		b.WriteString("none\n")
	} else {
		b.WriteString(baseline)
		b.WriteString("\n")
	}
	b.WriteString("\nConversation fragment:\n")
	for _, m := range msgs {
		fmt.Fprintf(&b, "At %s from %s: %s\n", m.CreatedAt.Format("2006-01-02 15:04"), m.Sender, m.Text)
	}

	var parsed struct {
		Words []reviewedWord `json:"words"`
	}
	if err := c.brain.CompleteJSON(ctx, reviewInstruction, b.String(), &parsed); err != nil {
		return nil, err
	}
	return parsed.Words, nil
}
