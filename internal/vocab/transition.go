package vocab

import "github.com/starpy/songtutor/internal/store"

// Event is something that happened to a word during a lesson.
type Event string

const (
	// EventIntroduce marks a word taught in the material.
	EventIntroduce Event = "introduce"
	// EventSelfKnown marks a word the learner said they already know.
	EventSelfKnown Event = "self_known"
	// EventCorrect marks a correct quiz answer on the word.
	EventCorrect Event = "correct"
	// EventWrong marks a wrong answer, re-asking or confusion.
	EventWrong Event = "wrong"
)

// Apply computes the next ledger status for a word. current may be empty
// for a word the ledger has never seen. The result is always a valid
// status: new words default to introduced, demonstrated knowledge promotes,
// and confusion demotes even a known word.
func Apply(current string, event Event) string {
	switch event {
	case EventSelfKnown, EventCorrect:
		return store.StatusKnown
	case EventWrong:
		return store.StatusIntroduced
	default:
		if current == store.StatusKnown {
			return store.StatusKnown
		}
		return store.StatusIntroduced
	}
}
