package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starpy/songtutor/internal/store"
)

// Vocabulary is the slice of the vocab service the tools need.
type Vocabulary interface {
	ExtractWords(ctx context.Context, text, language string) ([]string, error)
	MarkIntroduced(ctx context.Context, psid, language string, words []string) error
	Snapshot(ctx context.Context, psid string, words []string) (string, error)
}

// ThreadStore is the slice of the store the tools need.
type ThreadStore interface {
	SetThreadMaterial(ctx context.Context, threadID, topic, material, snapshot string) error
	UpsertSong(ctx context.Context, song *store.Song) error
}

// attachMaterial extracts the words of a lyric, snapshots them against the
// user's ledger and records topic, material and snapshot on the thread.
func attachMaterial(ctx context.Context, st ThreadStore, voc Vocabulary, log *slog.Logger,
	threadID, psid string, song *store.Song) (string, error) {

	topic := song.Title
	if song.Artist != "" {
		topic = fmt.Sprintf("%s by %s", song.Title, song.Artist)
	}

	words, err := voc.ExtractWords(ctx, song.Lyrics, song.Language)
	if err != nil {
		// Extraction failure degrades to a material-only thread update.
		log.Warn("word extraction failed", "thread", threadID, "error", err)
		words = nil
	}

	snapshot := ""
	if len(words) > 0 {
		if err := voc.MarkIntroduced(ctx, psid, song.Language, words); err != nil {
			log.Warn("failed to record introduced words", "thread", threadID, "error", err)
		}
		snapshot, err = voc.Snapshot(ctx, psid, words)
		if err != nil {
			log.Warn("vocab snapshot failed", "thread", threadID, "error", err)
			snapshot = ""
		}
	}

	if err := st.SetThreadMaterial(ctx, threadID, topic, song.Lyrics, snapshot); err != nil {
		return "", fmt.Errorf("failed to update thread: %w", err)
	}
	return snapshot, nil
}
