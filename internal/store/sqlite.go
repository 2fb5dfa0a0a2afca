package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed persistence layer.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (or creates) the database at path and runs migrations.
// Use ":memory:" for an ephemeral database in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc.org/sqlite serializes writes itself, but a single connection
	// avoids SQLITE_BUSY on concurrent transactions.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		psid TEXT PRIMARY KEY,
		first_name TEXT NOT NULL DEFAULT '',
		locale TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		psid TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		topic TEXT NOT NULL DEFAULT '',
		material TEXT NOT NULL DEFAULT '',
		vocab_snapshot TEXT NOT NULL DEFAULT '',
		vocab_update TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_threads_one_open
		ON threads(psid) WHERE status = 'open';
	CREATE INDEX IF NOT EXISTS idx_threads_psid ON threads(psid);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		thread_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id);

	CREATE TABLE IF NOT EXISTS vocab_entries (
		psid TEXT NOT NULL,
		word TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		meaning TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'introduced',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(psid, word)
	);

	CREATE INDEX IF NOT EXISTS idx_vocab_psid ON vocab_entries(psid);

	CREATE TABLE IF NOT EXISTS songs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		artist TEXT NOT NULL DEFAULT '',
		search_keywords TEXT NOT NULL DEFAULT '',
		lyrics TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		UNIQUE(title, artist)
	);

	CREATE TABLE IF NOT EXISTS reminders (
		psid TEXT PRIMARY KEY,
		enabled INTEGER NOT NULL DEFAULT 1,
		tz TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetUser looks up a user by psid.
func (s *Store) GetUser(ctx context.Context, psid string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u := &User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT psid, first_name, locale, created_at FROM users WHERE psid = ?`, psid,
	).Scan(&u.PSID, &u.FirstName, &u.Locale, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// CreateUser inserts a user. An existing row is left untouched.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (psid, first_name, locale) VALUES (?, ?, ?)
		 ON CONFLICT(psid) DO NOTHING`,
		u.PSID, u.FirstName, u.Locale)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindOrCreateOpenThread returns the user's open thread, creating one if
// none exists. The partial unique index makes the create race-safe: a
// conflicting insert falls through to a re-select.
func (s *Store) FindOrCreateOpenThread(ctx context.Context, psid string) (*Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, err := s.openThread(ctx, psid); err == nil {
		return t, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO threads (id, psid, status) VALUES (?, ?, 'open')
		 ON CONFLICT DO NOTHING`, id, psid)
	if err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	return s.openThread(ctx, psid)
}

func (s *Store) openThread(ctx context.Context, psid string) (*Thread, error) {
	return s.scanThread(s.db.QueryRowContext(ctx,
		`SELECT id, psid, status, topic, material, vocab_snapshot, vocab_update, started_at
		 FROM threads WHERE psid = ? AND status = 'open'`, psid))
}

// LatestThread returns the user's most recently started thread, open or
// closed.
func (s *Store) LatestThread(ctx context.Context, psid string) (*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanThread(s.db.QueryRowContext(ctx,
		`SELECT id, psid, status, topic, material, vocab_snapshot, vocab_update, started_at
		 FROM threads WHERE psid = ? ORDER BY started_at DESC, id DESC LIMIT 1`, psid))
}

// GetThread returns a thread by id.
func (s *Store) GetThread(ctx context.Context, id string) (*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanThread(s.db.QueryRowContext(ctx,
		`SELECT id, psid, status, topic, material, vocab_snapshot, vocab_update, started_at
		 FROM threads WHERE id = ?`, id))
}

func (s *Store) scanThread(row *sql.Row) (*Thread, error) {
	t := &Thread{}
	err := row.Scan(&t.ID, &t.PSID, &t.Status, &t.Topic, &t.Material,
		&t.VocabSnapshot, &t.VocabUpdate, &t.StartedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan thread: %w", err)
	}
	return t, nil
}

// SetThreadMaterial records the lesson topic, lyric material and the
// vocabulary snapshot on a thread.
func (s *Store) SetThreadMaterial(ctx context.Context, threadID, topic, material, snapshot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE threads SET topic = ?, material = ?, vocab_snapshot = ? WHERE id = ?`,
		topic, material, snapshot, threadID)
	if err != nil {
		return fmt.Errorf("failed to set thread material: %w", err)
	}
	return nil
}

// CloseThread marks a thread closed.
func (s *Store) CloseThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE threads SET status = 'closed' WHERE id = ?`, threadID)
	if err != nil {
		return fmt.Errorf("failed to close thread: %w", err)
	}
	return nil
}

// SetThreadSnapshot refreshes the vocabulary snapshot on a thread.
func (s *Store) SetThreadSnapshot(ctx context.Context, threadID, snapshot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE threads SET vocab_snapshot = ? WHERE id = ?`, snapshot, threadID)
	if err != nil {
		return fmt.Errorf("failed to set thread snapshot: %w", err)
	}
	return nil
}

// SetThreadVocabUpdate stores the reconciliation change log on a thread.
func (s *Store) SetThreadVocabUpdate(ctx context.Context, threadID, update string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE threads SET vocab_update = ? WHERE id = ?`, update, threadID)
	if err != nil {
		return fmt.Errorf("failed to set vocab update: %w", err)
	}
	return nil
}

// AppendMessage appends one line of thread history.
func (s *Store) AppendMessage(ctx context.Context, threadID, sender, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (thread_id, sender, text) VALUES (?, ?, ?)`,
		threadID, sender, text)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// Messages returns all messages of a thread in chronological order.
func (s *Store) Messages(ctx context.Context, threadID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, sender, text, created_at
		 FROM messages WHERE thread_id = ? ORDER BY id ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// RecentMessages returns the last n messages of a thread in chronological
// order.
func (s *Store) RecentMessages(ctx context.Context, threadID string, n int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, sender, text, created_at FROM (
			SELECT id, thread_id, sender, text, created_at
			FROM messages WHERE thread_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`, threadID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Sender, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// VocabFor returns the user's full ledger ordered by word.
func (s *Store) VocabFor(ctx context.Context, psid string) ([]VocabEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT psid, word, note, meaning, language, status, created_at, updated_at
		 FROM vocab_entries WHERE psid = ? ORDER BY word ASC`, psid)
	if err != nil {
		return nil, fmt.Errorf("failed to query vocab: %w", err)
	}
	defer rows.Close()
	return scanVocab(rows)
}

// VocabMatching returns ledger entries whose word or note matches any of the
// given words.
func (s *Store) VocabMatching(ctx context.Context, psid string, words []string) ([]VocabEntry, error) {
	if len(words) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(words)), ",")
	args := make([]any, 0, 2*len(words)+1)
	args = append(args, psid)
	for _, w := range words {
		args = append(args, w)
	}
	for _, w := range words {
		args = append(args, w)
	}

	query := fmt.Sprintf(
		`SELECT psid, word, note, meaning, language, status, created_at, updated_at
		 FROM vocab_entries WHERE psid = ? AND (word IN (%s) OR note IN (%s))
		 ORDER BY word ASC`, placeholders, placeholders)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vocab: %w", err)
	}
	defer rows.Close()
	return scanVocab(rows)
}

func scanVocab(rows *sql.Rows) ([]VocabEntry, error) {
	var out []VocabEntry
	for rows.Next() {
		var e VocabEntry
		if err := rows.Scan(&e.PSID, &e.Word, &e.Note, &e.Meaning, &e.Language,
			&e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vocab entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertVocab inserts or updates a ledger entry by (psid, word). Empty
// note/meaning/language never clobber existing values.
func (s *Store) UpsertVocab(ctx context.Context, e *VocabEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vocab_entries (psid, word, note, meaning, language, status, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(psid, word) DO UPDATE SET
			status = excluded.status,
			note = CASE WHEN excluded.note != '' THEN excluded.note ELSE note END,
			meaning = CASE WHEN excluded.meaning != '' THEN excluded.meaning ELSE meaning END,
			language = CASE WHEN excluded.language != '' THEN excluded.language ELSE language END,
			updated_at = CURRENT_TIMESTAMP`,
		e.PSID, e.Word, e.Note, e.Meaning, e.Language, e.Status)
	if err != nil {
		return fmt.Errorf("failed to upsert vocab entry: %w", err)
	}
	return nil
}

// SongByArtistTitle finds a catalog entry by artist whose search keywords
// contain the title, case-insensitively.
func (s *Store) SongByArtistTitle(ctx context.Context, artist, title string) (*Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanSong(s.db.QueryRowContext(ctx,
		`SELECT id, title, artist, search_keywords, lyrics, language FROM songs
		 WHERE lower(artist) = lower(?)
		   AND instr(lower(search_keywords), lower(?)) > 0
		 LIMIT 1`, artist, title))
}

// SongByKeyword finds a catalog entry whose search keywords contain the
// given text, case-insensitively.
func (s *Store) SongByKeyword(ctx context.Context, keyword string) (*Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanSong(s.db.QueryRowContext(ctx,
		`SELECT id, title, artist, search_keywords, lyrics, language FROM songs
		 WHERE instr(lower(search_keywords), lower(?)) > 0
		 LIMIT 1`, keyword))
}

func (s *Store) scanSong(row *sql.Row) (*Song, error) {
	song := &Song{}
	err := row.Scan(&song.ID, &song.Title, &song.Artist, &song.SearchKeywords,
		&song.Lyrics, &song.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan song: %w", err)
	}
	return song, nil
}

// UpsertSong inserts or replaces a catalog entry by (title, artist).
func (s *Store) UpsertSong(ctx context.Context, song *Song) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO songs (title, artist, search_keywords, lyrics, language)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(title, artist) DO UPDATE SET
			search_keywords = excluded.search_keywords,
			lyrics = excluded.lyrics,
			language = excluded.language`,
		song.Title, song.Artist, song.SearchKeywords, song.Lyrics, song.Language)
	if err != nil {
		return fmt.Errorf("failed to upsert song: %w", err)
	}
	return nil
}

// SetReminder enables or disables a user's daily quiz reminder.
func (s *Store) SetReminder(ctx context.Context, psid string, enabled bool, tz string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (psid, enabled, tz) VALUES (?, ?, ?)
		 ON CONFLICT(psid) DO UPDATE SET enabled = excluded.enabled, tz = excluded.tz`,
		psid, boolToInt(enabled), tz)
	if err != nil {
		return fmt.Errorf("failed to set reminder: %w", err)
	}
	return nil
}

// ActiveReminders returns all enabled reminders.
func (s *Store) ActiveReminders(ctx context.Context) ([]Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT psid, enabled, tz, created_at FROM reminders WHERE enabled = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		var enabled int
		if err := rows.Scan(&r.PSID, &enabled, &r.Timezone, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		r.Enabled = enabled != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
