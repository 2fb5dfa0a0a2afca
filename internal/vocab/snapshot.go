package vocab

import (
	"context"
	"fmt"
	"strings"

	"github.com/starpy/songtutor/internal/store"
)

// Snapshot summarizes how the given words relate to the user's ledger:
// which are already known and which are introduced (including words the
// ledger has never seen). The summary goes into the tutoring context.
func (s *Service) Snapshot(ctx context.Context, psid string, words []string) (string, error) {
	entries, err := s.ledger.VocabMatching(ctx, psid, words)
	if err != nil {
		return "", fmt.Errorf("failed to read ledger: %w", err)
	}

	status := make(map[string]string, len(entries))
	for _, e := range entries {
		status[e.Word] = e.Status
		if e.Note != "" {
			status[e.Note] = e.Status
		}
	}

	var known, introduced []string
	for _, w := range words {
		if status[w] == store.StatusKnown {
			known = append(known, w)
		} else {
			introduced = append(introduced, w)
		}
	}

	return fmt.Sprintf("Known words: %s\nIntroduced words: %s",
		joinOrNone(known), joinOrNone(introduced)), nil
}

func joinOrNone(words []string) string {
	if len(words) == 0 {
		return "none"
	}
	return strings.Join(words, ", ")
}
