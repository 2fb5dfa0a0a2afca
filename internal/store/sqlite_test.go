package store

import (
	"context"
	"errors"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserFindOrCreate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.GetUser(ctx, "psid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.CreateUser(ctx, &User{PSID: "psid-1", FirstName: "Nok", Locale: "th_TH"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	// Duplicate create must not error or overwrite.
	if err := s.CreateUser(ctx, &User{PSID: "psid-1", FirstName: "Other"}); err != nil {
		t.Fatalf("duplicate CreateUser: %v", err)
	}

	u, err := s.GetUser(ctx, "psid-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.FirstName != "Nok" || u.Locale != "th_TH" {
		t.Errorf("unexpected user %+v", u)
	}
}

func TestOneOpenThreadPerUser(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	t1, err := s.FindOrCreateOpenThread(ctx, "psid-1")
	if err != nil {
		t.Fatalf("FindOrCreateOpenThread: %v", err)
	}
	t2, err := s.FindOrCreateOpenThread(ctx, "psid-1")
	if err != nil {
		t.Fatalf("second FindOrCreateOpenThread: %v", err)
	}
	if t1.ID != t2.ID {
		t.Errorf("expected same open thread, got %s and %s", t1.ID, t2.ID)
	}

	other, err := s.FindOrCreateOpenThread(ctx, "psid-2")
	if err != nil {
		t.Fatalf("FindOrCreateOpenThread other user: %v", err)
	}
	if other.ID == t1.ID {
		t.Error("different users must not share a thread")
	}

	if err := s.CloseThread(ctx, t1.ID); err != nil {
		t.Fatalf("CloseThread: %v", err)
	}
	t3, err := s.FindOrCreateOpenThread(ctx, "psid-1")
	if err != nil {
		t.Fatalf("FindOrCreateOpenThread after close: %v", err)
	}
	if t3.ID == t1.ID {
		t.Error("expected a new thread after close")
	}

	latest, err := s.LatestThread(ctx, "psid-1")
	if err != nil {
		t.Fatalf("LatestThread: %v", err)
	}
	if latest.ID != t3.ID {
		t.Errorf("LatestThread = %s, want %s", latest.ID, t3.ID)
	}
}

func TestThreadMaterialAndVocabUpdate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	th, err := s.FindOrCreateOpenThread(ctx, "psid-1")
	if err != nil {
		t.Fatalf("FindOrCreateOpenThread: %v", err)
	}

	if err := s.SetThreadMaterial(ctx, th.ID, "Lemon by Kenshi Yonezu", "lyrics here", "Known words: none"); err != nil {
		t.Fatalf("SetThreadMaterial: %v", err)
	}
	if err := s.SetThreadVocabUpdate(ctx, th.ID, "lemon: introduced"); err != nil {
		t.Fatalf("SetThreadVocabUpdate: %v", err)
	}

	got, err := s.GetThread(ctx, th.ID)
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if got.Topic != "Lemon by Kenshi Yonezu" || got.Material != "lyrics here" {
		t.Errorf("material not stored: %+v", got)
	}
	if got.VocabSnapshot != "Known words: none" || got.VocabUpdate != "lemon: introduced" {
		t.Errorf("vocab fields not stored: %+v", got)
	}
}

func TestMessagesOrdering(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	th, _ := s.FindOrCreateOpenThread(ctx, "psid-1")
	texts := []string{"hi", "hello there", "teach me a song", "sure, which one?", "Lemon"}
	senders := []string{SenderUser, SenderBot, SenderUser, SenderBot, SenderUser}
	for i, txt := range texts {
		if err := s.AppendMessage(ctx, th.ID, senders[i], txt); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	all, err := s.Messages(ctx, th.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(all) != len(texts) {
		t.Fatalf("expected %d messages, got %d", len(texts), len(all))
	}
	for i, m := range all {
		if m.Text != texts[i] || m.Sender != senders[i] {
			t.Errorf("message %d = %q from %s, want %q from %s", i, m.Text, m.Sender, texts[i], senders[i])
		}
	}

	recent, err := s.RecentMessages(ctx, th.ID, 2)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(recent) != 2 || recent[0].Text != "sure, which one?" || recent[1].Text != "Lemon" {
		t.Errorf("unexpected recent window: %+v", recent)
	}
}

func TestVocabUpsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	e := &VocabEntry{PSID: "psid-1", Word: "檸檬", Note: "remon", Meaning: "lemon", Language: "Japanese", Status: StatusIntroduced}
	if err := s.UpsertVocab(ctx, e); err != nil {
		t.Fatalf("UpsertVocab: %v", err)
	}

	// Status change with empty note/meaning must not clobber them.
	if err := s.UpsertVocab(ctx, &VocabEntry{PSID: "psid-1", Word: "檸檬", Status: StatusKnown}); err != nil {
		t.Fatalf("second UpsertVocab: %v", err)
	}

	entries, err := s.VocabFor(ctx, "psid-1")
	if err != nil {
		t.Fatalf("VocabFor: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.Status != StatusKnown {
		t.Errorf("status = %s, want known", got.Status)
	}
	if got.Note != "remon" || got.Meaning != "lemon" || got.Language != "Japanese" {
		t.Errorf("upsert clobbered fields: %+v", got)
	}
}

func TestVocabMatching(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seed := []VocabEntry{
		{PSID: "psid-1", Word: "夢", Note: "yume", Status: StatusKnown},
		{PSID: "psid-1", Word: "空", Note: "sora", Status: StatusIntroduced},
		{PSID: "psid-1", Word: "amour", Status: StatusIntroduced},
		{PSID: "psid-2", Word: "夢", Note: "yume", Status: StatusIntroduced},
	}
	for i := range seed {
		if err := s.UpsertVocab(ctx, &seed[i]); err != nil {
			t.Fatalf("UpsertVocab: %v", err)
		}
	}

	// Match by native word and by romanized note, scoped to the user.
	got, err := s.VocabMatching(ctx, "psid-1", []string{"夢", "sora", "unknown"})
	if err != nil {
		t.Fatalf("VocabMatching: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(got), got)
	}

	none, err := s.VocabMatching(ctx, "psid-1", nil)
	if err != nil || none != nil {
		t.Errorf("empty word list should match nothing, got %v, %v", none, err)
	}
}

func TestSongCatalog(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	song := &Song{
		Title:          "Lemon",
		Artist:         "Kenshi Yonezu",
		SearchKeywords: "lemon kenshi yonezu 米津玄師",
		Lyrics:         "夢ならばどれほどよかったでしょう",
		Language:       "Japanese",
	}
	if err := s.UpsertSong(ctx, song); err != nil {
		t.Fatalf("UpsertSong: %v", err)
	}

	got, err := s.SongByArtistTitle(ctx, "kenshi yonezu", "LEMON")
	if err != nil {
		t.Fatalf("SongByArtistTitle: %v", err)
	}
	if got.Lyrics != song.Lyrics {
		t.Errorf("unexpected lyrics %q", got.Lyrics)
	}

	if _, err := s.SongByArtistTitle(ctx, "someone else", "Lemon"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for wrong artist, got %v", err)
	}

	byKeyword, err := s.SongByKeyword(ctx, "米津玄師")
	if err != nil {
		t.Fatalf("SongByKeyword: %v", err)
	}
	if byKeyword.Title != "Lemon" {
		t.Errorf("unexpected song %+v", byKeyword)
	}

	// Upsert by (title, artist) replaces the lyric.
	song.Lyrics = "updated lyrics"
	if err := s.UpsertSong(ctx, song); err != nil {
		t.Fatalf("second UpsertSong: %v", err)
	}
	again, err := s.SongByKeyword(ctx, "lemon")
	if err != nil {
		t.Fatalf("SongByKeyword after upsert: %v", err)
	}
	if again.Lyrics != "updated lyrics" {
		t.Errorf("upsert did not replace lyrics: %q", again.Lyrics)
	}
}

func TestReminders(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SetReminder(ctx, "psid-1", true, "Asia/Bangkok"); err != nil {
		t.Fatalf("SetReminder: %v", err)
	}
	if err := s.SetReminder(ctx, "psid-2", true, "Asia/Bangkok"); err != nil {
		t.Fatalf("SetReminder: %v", err)
	}
	if err := s.SetReminder(ctx, "psid-2", false, "Asia/Bangkok"); err != nil {
		t.Fatalf("disable SetReminder: %v", err)
	}

	active, err := s.ActiveReminders(ctx)
	if err != nil {
		t.Fatalf("ActiveReminders: %v", err)
	}
	if len(active) != 1 || active[0].PSID != "psid-1" {
		t.Errorf("unexpected active reminders %+v", active)
	}
}
