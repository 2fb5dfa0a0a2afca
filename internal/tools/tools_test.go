package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starpy/songtutor/internal/logging"
	"github.com/starpy/songtutor/internal/lyrics"
	"github.com/starpy/songtutor/internal/store"
)

type fakeFetcher struct {
	song *store.Song
	err  error
	got  lyrics.Query
}

func (f *fakeFetcher) Resolve(ctx context.Context, q lyrics.Query) (*store.Song, error) {
	f.got = q
	return f.song, f.err
}

type fakeVocab struct {
	words    []string
	snapshot string
	marked   []string
}

func (f *fakeVocab) ExtractWords(ctx context.Context, text, language string) ([]string, error) {
	return f.words, nil
}

func (f *fakeVocab) MarkIntroduced(ctx context.Context, psid, language string, words []string) error {
	f.marked = append(f.marked, words...)
	return nil
}

func (f *fakeVocab) Snapshot(ctx context.Context, psid string, words []string) (string, error) {
	return f.snapshot, nil
}

func setup(t *testing.T) (*store.Store, string) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	th, err := st.FindOrCreateOpenThread(context.Background(), "psid-1")
	if err != nil {
		t.Fatalf("FindOrCreateOpenThread: %v", err)
	}
	return st, th.ID
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	tool := NewFetchLyricsTool(&fakeFetcher{}, nil, nil, logging.New().Logger)
	reg.Register(tool)

	got, ok := reg.Get("fetch_lyrics")
	if !ok || got.Name() != "fetch_lyrics" {
		t.Fatalf("Get failed: %v %v", got, ok)
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("Get returned a missing tool")
	}

	specs := reg.Specs()
	if len(specs) != 1 || specs[0].Name != "fetch_lyrics" {
		t.Errorf("unexpected specs %+v", specs)
	}
	if len(specs[0].Parameters.Required) == 0 {
		t.Error("spec missing required parameters")
	}
}

func TestFetchLyricsSuccess(t *testing.T) {
	st, threadID := setup(t)
	fetcher := &fakeFetcher{song: &store.Song{
		Title: "Lemon", Artist: "Kenshi Yonezu", Lyrics: "夢ならば", Language: "Japanese",
	}}
	voc := &fakeVocab{words: []string{"夢"}, snapshot: "Known words: none\nIntroduced words: 夢"}
	tool := NewFetchLyricsTool(fetcher, st, voc, logging.New().Logger)

	out, err := tool.Execute(context.Background(), map[string]any{
		"title":           "Lemon",
		"artist":          "Kenshi Yonezu",
		"search_keywords": "lemon kenshi yonezu",
		"language":        "Japanese",
		"thread_id":       threadID,
		"user_id":         "psid-1",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "夢ならば") || !strings.Contains(out, "Introduced words: 夢") {
		t.Errorf("result missing lyrics or snapshot:\n%s", out)
	}
	if fetcher.got.Artist != "Kenshi Yonezu" || fetcher.got.Language != "Japanese" {
		t.Errorf("query not forwarded: %+v", fetcher.got)
	}

	th, err := st.GetThread(context.Background(), threadID)
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if th.Topic != "Lemon by Kenshi Yonezu" || th.Material != "夢ならば" {
		t.Errorf("thread not updated: %+v", th)
	}
	if th.VocabSnapshot != voc.snapshot {
		t.Errorf("snapshot not stored: %q", th.VocabSnapshot)
	}
	if len(voc.marked) != 1 || voc.marked[0] != "夢" {
		t.Errorf("extracted words not ledgered: %v", voc.marked)
	}
}

func TestFetchLyricsNotFound(t *testing.T) {
	st, threadID := setup(t)
	fetcher := &fakeFetcher{err: lyrics.ErrNotFound}
	tool := NewFetchLyricsTool(fetcher, st, &fakeVocab{}, logging.New().Logger)

	out, err := tool.Execute(context.Background(), map[string]any{
		"title": "Obscure", "search_keywords": "x", "language": "English",
		"thread_id": threadID, "user_id": "psid-1",
	})
	if err != nil {
		t.Fatalf("a miss must not be a tool error: %v", err)
	}
	if !strings.Contains(out, "record_lyrics") {
		t.Errorf("miss text should point at record_lyrics: %q", out)
	}

	th, _ := st.GetThread(context.Background(), threadID)
	if th.Material != "" {
		t.Errorf("thread updated on a miss: %+v", th)
	}
}

func TestFetchLyricsBackendError(t *testing.T) {
	st, threadID := setup(t)
	fetcher := &fakeFetcher{err: errors.New("search down")}
	tool := NewFetchLyricsTool(fetcher, st, &fakeVocab{}, logging.New().Logger)

	if _, err := tool.Execute(context.Background(), map[string]any{
		"title": "X", "thread_id": threadID, "user_id": "psid-1",
	}); err == nil {
		t.Error("expected error from backend failure")
	}
}

func TestFetchLyricsMissingArgs(t *testing.T) {
	tool := NewFetchLyricsTool(&fakeFetcher{}, nil, nil, logging.New().Logger)
	if _, err := tool.Execute(context.Background(), map[string]any{"title": "X"}); err == nil {
		t.Error("expected error for missing thread_id/user_id")
	}
}

func TestRecordLyrics(t *testing.T) {
	st, threadID := setup(t)
	voc := &fakeVocab{words: []string{"amour"}, snapshot: "Known words: none\nIntroduced words: amour"}
	tool := NewRecordLyricsTool(st, voc, logging.New().Logger)

	out, err := tool.Execute(context.Background(), map[string]any{
		"title":           "La Vie en Rose",
		"artist":          "Édith Piaf",
		"search_keywords": "la vie en rose piaf",
		"language":        "French",
		"lyrics":          "Des yeux qui font baisser les miens",
		"thread_id":       threadID,
		"user_id":         "psid-1",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Saved the lyrics") {
		t.Errorf("unexpected result %q", out)
	}

	song, err := st.SongByKeyword(context.Background(), "la vie en rose")
	if err != nil {
		t.Fatalf("song not in catalog: %v", err)
	}
	if song.Artist != "Édith Piaf" {
		t.Errorf("unexpected song %+v", song)
	}

	th, _ := st.GetThread(context.Background(), threadID)
	if !strings.Contains(th.Material, "Des yeux") {
		t.Errorf("thread material not set: %+v", th)
	}
}
