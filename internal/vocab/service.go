package vocab

import (
	"context"
	"log/slog"

	"github.com/starpy/songtutor/internal/brain"
	"github.com/starpy/songtutor/internal/store"
)

// Ledger is the slice of the store the service needs.
type Ledger interface {
	VocabFor(ctx context.Context, psid string) ([]store.VocabEntry, error)
	VocabMatching(ctx context.Context, psid string, words []string) ([]store.VocabEntry, error)
	UpsertVocab(ctx context.Context, e *store.VocabEntry) error
}

// Service extracts words from lyrics and snapshots them against a user's
// ledger.
type Service struct {
	ledger   Ledger
	brain    brain.Brain
	analyzer *Analyzer
	log      *slog.Logger
}

// NewService creates the vocabulary service.
func NewService(ledger Ledger, b brain.Brain, analyzer *Analyzer, log *slog.Logger) *Service {
	return &Service{ledger: ledger, brain: b, analyzer: analyzer, log: log}
}

// ExtractWords lists the study words of a lyric. Japanese goes through the
// morphological analyzer locally, the other languages through the model.
func (s *Service) ExtractWords(ctx context.Context, text, language string) ([]string, error) {
	if language == string(Japanese) && s.analyzer != nil {
		return s.analyzer.BaseForms(text), nil
	}
	return s.extractLLM(ctx, text, language)
}

// MarkIntroduced records words entering a lesson in the ledger. Words the
// learner already has keep their status; only unseen ones are created.
func (s *Service) MarkIntroduced(ctx context.Context, psid, language string, words []string) error {
	entries, err := s.ledger.VocabMatching(ctx, psid, words)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.Word] = true
		if e.Note != "" {
			seen[e.Note] = true
		}
	}
	for _, w := range words {
		if seen[w] {
			continue
		}
		entry := &store.VocabEntry{
			PSID:     psid,
			Word:     w,
			Language: language,
			Status:   Apply("", EventIntroduce),
		}
		if err := s.ledger.UpsertVocab(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}
