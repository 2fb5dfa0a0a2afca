package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starpy/songtutor/internal/store"
	"github.com/starpy/songtutor/internal/vocab"
)

// RecordLyricsTool saves user-provided lyrics into the catalog and attaches
// them to the lesson thread. The fallback path when fetch_lyrics misses.
type RecordLyricsTool struct {
	store ThreadStore
	vocab Vocabulary
	log   *slog.Logger
}

// NewRecordLyricsTool creates the record_lyrics tool.
func NewRecordLyricsTool(st ThreadStore, voc Vocabulary, log *slog.Logger) *RecordLyricsTool {
	return &RecordLyricsTool{store: st, vocab: voc, log: log}
}

func (t *RecordLyricsTool) Name() string { return "record_lyrics" }

func (t *RecordLyricsTool) Description() string {
	return "Save lyrics the user pasted into the chat so the song can be taught and found again later. Use this when fetch_lyrics could not find the song."
}

// Spec returns the tool specification for LLM function calling.
func (t *RecordLyricsTool) Spec() *ToolSpec {
	return &ToolSpec{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &ParamSchema{
			Type: "object",
			Properties: map[string]*ParamProp{
				"title": {
					Type:        "string",
					Description: "The song title",
				},
				"artist": {
					Type:        "string",
					Description: "The artist, empty if unknown",
				},
				"search_keywords": {
					Type:        "string",
					Description: "Keywords identifying the song for later catalog lookups",
				},
				"language": {
					Type:        "string",
					Description: "The language the song is sung in",
					Enum:        vocab.LanguageNames(),
				},
				"lyrics": {
					Type:        "string",
					Description: "The full lyric text the user provided",
				},
				"thread_id": {
					Type:        "string",
					Description: "The current lesson thread id from the context",
				},
				"user_id": {
					Type:        "string",
					Description: "The current user id from the context",
				},
			},
			Required: []string{"title", "search_keywords", "language", "lyrics", "thread_id", "user_id"},
		},
	}
}

// Execute upserts the catalog entry and updates the thread.
func (t *RecordLyricsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	song := &store.Song{
		Title:          stringArg(args, "title"),
		Artist:         stringArg(args, "artist"),
		SearchKeywords: stringArg(args, "search_keywords"),
		Lyrics:         stringArg(args, "lyrics"),
		Language:       stringArg(args, "language"),
	}
	threadID := stringArg(args, "thread_id")
	psid := stringArg(args, "user_id")
	if song.Title == "" || song.Lyrics == "" || threadID == "" || psid == "" {
		return "", fmt.Errorf("record_lyrics requires title, lyrics, thread_id and user_id")
	}

	if err := t.store.UpsertSong(ctx, song); err != nil {
		return "", fmt.Errorf("failed to save song: %w", err)
	}

	snapshot, err := attachMaterial(ctx, t.store, t.vocab, t.log, threadID, psid, song)
	if err != nil {
		return "", err
	}

	out := fmt.Sprintf("Saved the lyrics of %q. The lesson can start.", song.Title)
	if snapshot != "" {
		out += "\n\nVocabulary for this user:\n" + snapshot
	}
	return out, nil
}
