// Package store implements SQLite persistence for users, lesson threads,
// chat history, the vocabulary ledger, the song catalog and reminders.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Thread statuses.
const (
	ThreadOpen   = "open"
	ThreadClosed = "closed"
)

// Message senders.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Vocabulary statuses.
const (
	StatusIntroduced = "introduced"
	StatusKnown      = "known"
)

// User is a chat platform user keyed by their page-scoped id.
type User struct {
	PSID      string
	FirstName string
	Locale    string
	CreatedAt time.Time
}

// Thread is one lesson conversation. A user has at most one open thread.
type Thread struct {
	ID            string
	PSID          string
	Status        string
	Topic         string
	Material      string
	VocabSnapshot string
	VocabUpdate   string
	StartedAt     time.Time
}

// Message is one line of thread history, append-only.
type Message struct {
	ID        int64
	ThreadID  string
	Sender    string
	Text      string
	CreatedAt time.Time
}

// VocabEntry is one word in a user's ledger, unique per (psid, word).
type VocabEntry struct {
	PSID      string
	Word      string
	Note      string
	Meaning   string
	Language  string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Song is a cached lyric, unique per (title, artist).
type Song struct {
	ID             int64
	Title          string
	Artist         string
	SearchKeywords string
	Lyrics         string
	Language       string
}

// Reminder is a user's daily quiz opt-in.
type Reminder struct {
	PSID      string
	Enabled   bool
	Timezone  string
	CreatedAt time.Time
}
