package lesson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/starpy/songtutor/internal/brain"
	"github.com/starpy/songtutor/internal/logging"
	"github.com/starpy/songtutor/internal/store"
	"github.com/starpy/songtutor/internal/vocab"
)

// reviewBrain replays one JSON reply per CompleteJSON call.
type reviewBrain struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (r *reviewBrain) Chat(ctx context.Context, req *brain.ChatRequest) (*brain.ChatResponse, error) {
	return &brain.ChatResponse{}, nil
}

func (r *reviewBrain) Complete(ctx context.Context, system, user string) (string, error) {
	return "", nil
}

func (r *reviewBrain) CompleteJSON(ctx context.Context, system, user string, out any) error {
	i := r.calls
	r.calls++
	r.prompts = append(r.prompts, user)
	if i < len(r.errs) && r.errs[i] != nil {
		return r.errs[i]
	}
	reply := `{"words":[]}`
	if i < len(r.replies) && r.replies[i] != "" {
		reply = r.replies[i]
	}
	return json.Unmarshal([]byte(reply), out)
}

func (r *reviewBrain) Ping(ctx context.Context) error { return nil }

func setup(t *testing.T, msgCount int) (*store.Store, string) {
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
	for i := 0; i < msgCount; i++ {
		sender := store.SenderUser
		if i%2 == 1 {
			sender = store.SenderBot
		}
		if err := st.AppendMessage(context.Background(), th.ID, sender, fmt.Sprintf("line %d", i)); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}
	return st, th.ID
}

func newCloser(st *store.Store, brn brain.Brain) *Closer {
	log := logging.New().Logger
	snap := vocab.NewService(st, brn, nil, log)
	return NewCloser(st, brn, snap, log)
}

func TestIsCloseRequest(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"close lesson", true},
		{"Please END LESSON now", true},
		{"can we finish lesson here", true},
		{"stop lesson", true},
		{"let's continue the song", false},
		{"what does close mean", false},
	}
	for _, tt := range tests {
		if got := IsCloseRequest(tt.text); got != tt.want {
			t.Errorf("IsCloseRequest(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestCloseBatching(t *testing.T) {
	tests := []struct {
		msgs        int
		wantBatches int
	}{
		{0, 0},
		{1, 1},
		{10, 1},
		{11, 2},
		{25, 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_messages", tt.msgs), func(t *testing.T) {
			st, threadID := setup(t, tt.msgs)
			brn := &reviewBrain{}
			c := newCloser(st, brn)

			if err := c.Close(context.Background(), threadID, "psid-1"); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if brn.calls != tt.wantBatches {
				t.Errorf("review calls = %d, want %d", brn.calls, tt.wantBatches)
			}

			th, err := st.GetThread(context.Background(), threadID)
			if err != nil {
				t.Fatalf("GetThread: %v", err)
			}
			if th.Status != store.ThreadClosed {
				t.Errorf("thread not closed: %s", th.Status)
			}
		})
	}
}

func TestCloseReconcilesLedger(t *testing.T) {
	st, threadID := setup(t, 4)
	ctx := context.Background()

	// 夢 was known; a wrong answer in this lesson demotes it.
	if err := st.UpsertVocab(ctx, &store.VocabEntry{PSID: "psid-1", Word: "夢", Status: store.StatusKnown}); err != nil {
		t.Fatalf("UpsertVocab: %v", err)
	}

	brn := &reviewBrain{replies: []string{
		`{"words":[
			{"word":"夢","status":"introduced","note":"yume","meaning":"dream","language":"Japanese"},
			{"word":"空","status":"known","note":"sora","meaning":"sky","language":"Japanese"}
		]}`,
	}}
	c := newCloser(st, brn)

	if err := c.Close(ctx, threadID, "psid-1"); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := st.VocabFor(ctx, "psid-1")
	if err != nil {
		t.Fatalf("VocabFor: %v", err)
	}
	byWord := map[string]store.VocabEntry{}
	for _, e := range entries {
		byWord[e.Word] = e
	}
	if byWord["夢"].Status != store.StatusIntroduced {
		t.Errorf("夢 not demoted: %+v", byWord["夢"])
	}
	if byWord["空"].Status != store.StatusKnown {
		t.Errorf("空 not promoted: %+v", byWord["空"])
	}

	th, _ := st.GetThread(ctx, threadID)
	if !strings.Contains(th.VocabUpdate, "夢: introduced") || !strings.Contains(th.VocabUpdate, "空: known") {
		t.Errorf("change log incomplete: %q", th.VocabUpdate)
	}
	if !strings.Contains(th.VocabSnapshot, "空") {
		t.Errorf("snapshot not refreshed: %q", th.VocabSnapshot)
	}
}

func TestCloseSkipsFailedBatch(t *testing.T) {
	st, threadID := setup(t, 25)
	brn := &reviewBrain{
		replies: []string{
			`{"words":[{"word":"uno","status":"introduced","language":"Italian"}]}`,
			"",
			`{"words":[{"word":"due","status":"known","language":"Italian"}]}`,
		},
		errs: []error{nil, errors.New("model flaked"), nil},
	}
	c := newCloser(st, brn)

	if err := c.Close(context.Background(), threadID, "psid-1"); err != nil {
		t.Fatalf("failed batch must not fail the close: %v", err)
	}
	if brn.calls != 3 {
		t.Errorf("expected all 3 batches attempted, got %d", brn.calls)
	}

	entries, _ := st.VocabFor(context.Background(), "psid-1")
	if len(entries) != 2 {
		t.Errorf("expected entries from the surviving batches, got %+v", entries)
	}

	th, _ := st.GetThread(context.Background(), threadID)
	if th.Status != store.ThreadClosed {
		t.Error("close rolled back on batch failure")
	}
}

func TestCloseCarriesLessonStartVocab(t *testing.T) {
	st, threadID := setup(t, 15)
	ctx := context.Background()

	// 翼 was already known before the lesson; the review must see that.
	if err := st.UpsertVocab(ctx, &store.VocabEntry{PSID: "psid-1", Word: "翼", Status: store.StatusKnown}); err != nil {
		t.Fatalf("UpsertVocab: %v", err)
	}
	if err := st.SetThreadSnapshot(ctx, threadID, "Known words: 翼\nIntroduced words: none"); err != nil {
		t.Fatalf("SetThreadSnapshot: %v", err)
	}

	brn := &reviewBrain{}
	c := newCloser(st, brn)
	if err := c.Close(ctx, threadID, "psid-1"); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(brn.prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(brn.prompts))
	}
	for i, p := range brn.prompts {
		if !strings.Contains(p, "Vocab before this lesson") || !strings.Contains(p, "翼") {
			t.Errorf("batch %d prompt missing lesson-start vocab:\n%s", i, p)
		}
	}
}

func TestCloseHistoryOnPrompt(t *testing.T) {
	st, threadID := setup(t, 3)
	brn := &reviewBrain{}
	c := newCloser(st, brn)

	if err := c.Close(context.Background(), threadID, "psid-1"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(brn.prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(brn.prompts))
	}
	if !strings.Contains(brn.prompts[0], "from user: line 0") ||
		!strings.Contains(brn.prompts[0], "from bot: line 1") {
		t.Errorf("prompt missing history lines:\n%s", brn.prompts[0])
	}
}
