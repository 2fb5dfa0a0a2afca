package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starpy/songtutor/internal/lyrics"
	"github.com/starpy/songtutor/internal/store"
	"github.com/starpy/songtutor/internal/vocab"
)

// LyricsFetcher resolves a song request to a catalog entry.
type LyricsFetcher interface {
	Resolve(ctx context.Context, q lyrics.Query) (*store.Song, error)
}

// FetchLyricsTool looks up the lyrics of a song via the catalog, web search
// and the known lyric sites, and attaches the result to the lesson thread.
type FetchLyricsTool struct {
	fetcher LyricsFetcher
	store   ThreadStore
	vocab   Vocabulary
	log     *slog.Logger
}

// NewFetchLyricsTool creates the fetch_lyrics tool.
func NewFetchLyricsTool(fetcher LyricsFetcher, st ThreadStore, voc Vocabulary, log *slog.Logger) *FetchLyricsTool {
	return &FetchLyricsTool{fetcher: fetcher, store: st, vocab: voc, log: log}
}

func (t *FetchLyricsTool) Name() string { return "fetch_lyrics" }

func (t *FetchLyricsTool) Description() string {
	return "Fetch the lyrics of a song the user wants to learn from. Looks in the song catalog first, then searches the web. Call this before teaching any song."
}

// Spec returns the tool specification for LLM function calling.
func (t *FetchLyricsTool) Spec() *ToolSpec {
	return &ToolSpec{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &ParamSchema{
			Type: "object",
			Properties: map[string]*ParamProp{
				"title": {
					Type:        "string",
					Description: "The song title as the user gave it",
				},
				"artist": {
					Type:        "string",
					Description: "The artist, empty if the user did not name one",
				},
				"search_keywords": {
					Type:        "string",
					Description: "Keywords identifying the song, e.g. title plus artist in both English and the native script",
				},
				"language": {
					Type:        "string",
					Description: "The language the song is sung in",
					Enum:        vocab.LanguageNames(),
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
			Required: []string{"title", "search_keywords", "language", "thread_id", "user_id"},
		},
	}
}

// Execute resolves the lyrics and updates the thread. A miss is reported as
// text so the model can ask the user to paste the lyrics instead.
func (t *FetchLyricsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	q := lyrics.Query{
		Title:    stringArg(args, "title"),
		Artist:   stringArg(args, "artist"),
		Keywords: stringArg(args, "search_keywords"),
		Language: stringArg(args, "language"),
	}
	threadID := stringArg(args, "thread_id")
	psid := stringArg(args, "user_id")
	if q.Title == "" || threadID == "" || psid == "" {
		return "", fmt.Errorf("fetch_lyrics requires title, thread_id and user_id")
	}

	song, err := t.fetcher.Resolve(ctx, q)
	if errors.Is(err, lyrics.ErrNotFound) {
		return fmt.Sprintf("No lyrics found for %q. Ask the user to paste the lyrics, then save them with record_lyrics.", q.Title), nil
	}
	if err != nil {
		return "", fmt.Errorf("lyrics lookup failed: %w", err)
	}

	snapshot, err := attachMaterial(ctx, t.store, t.vocab, t.log, threadID, psid, song)
	if err != nil {
		return "", err
	}

	out := fmt.Sprintf("Lyrics of %s:\n\n%s", q.Title, song.Lyrics)
	if snapshot != "" {
		out += "\n\nVocabulary for this user:\n" + snapshot
	}
	return out, nil
}
