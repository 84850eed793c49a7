package appeal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iamwavecut/prime/internal/db"
	perrors "github.com/iamwavecut/prime/internal/errors"
	"github.com/iamwavecut/prime/internal/event"
)

type memoryStore struct {
	mu      sync.Mutex
	appeals map[string]*db.Appeal
}

func newMemoryStore() *memoryStore {
	return &memoryStore{appeals: make(map[string]*db.Appeal)}
}

func (s *memoryStore) CreateAppeal(_ context.Context, appeal *db.Appeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *appeal
	s.appeals[appeal.ID] = &clone
	return nil
}

func (s *memoryStore) GetAppeal(_ context.Context, id string) (*db.Appeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appeal, ok := s.appeals[id]
	if !ok {
		return nil, nil
	}
	clone := *appeal
	return &clone, nil
}

func (s *memoryStore) UpdateAppeal(_ context.Context, appeal *db.Appeal) error {
	return s.CreateAppeal(context.Background(), appeal)
}

func (s *memoryStore) HasOpenAppeal(_ context.Context, userID string, category db.AppealCategory) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, appeal := range s.appeals {
		if appeal.UserID == userID && appeal.Category == category && appeal.State == db.AppealSubmitted {
			return true, nil
		}
	}
	return false, nil
}

type fakeActions struct {
	calls    []string
	dms      []string
	reviews  []Review
	unbanErr error
}

func (f *fakeActions) Unban(_ context.Context, guildID, userID, reason string) error {
	f.calls = append(f.calls, "unban:"+guildID+":"+userID+":"+reason)
	return f.unbanErr
}

func (f *fakeActions) RemoveMute(_ context.Context, guildID, userID, reason string) error {
	f.calls = append(f.calls, "unmute:"+guildID+":"+userID+":"+reason)
	return nil
}

func (f *fakeActions) CreateInvite(_ context.Context, guildID string, maxAge time.Duration, maxUses int) (string, error) {
	if maxAge != 24*time.Hour || maxUses != 1 {
		return "", errors.New("unexpected invite limits")
	}
	f.calls = append(f.calls, "invite:"+guildID)
	return "https://discord.gg/abc", nil
}

func (f *fakeActions) SendDM(_ context.Context, userID, text string) error {
	f.dms = append(f.dms, text)
	return errors.New("closed dms")
}

func (f *fakeActions) PostReview(_ context.Context, channelID string, review Review) (string, error) {
	f.calls = append(f.calls, "review:"+channelID)
	f.reviews = append(f.reviews, review)
	return "review-msg", nil
}

func (f *fakeActions) CloseReview(_ context.Context, channelID, messageID string, review Review) error {
	f.calls = append(f.calls, "close:"+channelID+":"+messageID+":"+string(review.State))
	return nil
}

func (f *fakeActions) GuildName(context.Context, string) string {
	return "Prime"
}

type fakeWarnings struct {
	removed []string
}

func (f *fakeWarnings) RemoveLastWarning(_ context.Context, userID string) (int, error) {
	f.removed = append(f.removed, userID)
	return 0, nil
}

type recordingBus struct {
	actions []event.Action
}

func (b *recordingBus) Publish(record event.Record) {
	b.actions = append(b.actions, record.Action)
}

var (
	moderator = Moderator{ID: "mod", Name: "alice", CanManageGuild: true}
	member    = Moderator{ID: "bob", Name: "bob"}
)

func newTestWorkflow() (*Workflow, *memoryStore, *fakeActions, *fakeWarnings, *recordingBus) {
	store := newMemoryStore()
	actions := &fakeActions{}
	warnings := &fakeWarnings{}
	bus := &recordingBus{}
	w := NewWorkflow(store, actions, warnings, bus, Options{ReviewChannelID: "appeals"})
	return w, store, actions, warnings, bus
}

func submit(t *testing.T, w *Workflow, category db.AppealCategory) *db.Appeal {
	t.Helper()
	ctx := context.Background()
	if err := w.Begin(ctx, "u1", "g1", category); err != nil {
		t.Fatalf("begin: %v", err)
	}
	appeal, err := w.Submit(ctx, "u1", "mallory", "  it was a mistake  ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return appeal
}

func TestSubmitIsSingleShot(t *testing.T) {
	t.Parallel()

	w, store, actions, _, bus := newTestWorkflow()
	ctx := context.Background()

	if _, err := w.Submit(ctx, "u1", "mallory", "hi"); !errors.Is(err, ErrNoPendingAppeal) {
		t.Fatalf("message without pending state must not be captured: %v", err)
	}

	appeal := submit(t, w, db.AppealBan)
	if appeal.State != db.AppealSubmitted || appeal.Explanation != "it was a mistake" || appeal.ReviewMessageID != "review-msg" {
		t.Fatalf("unexpected appeal: %#v", appeal)
	}
	if stored, _ := store.GetAppeal(ctx, appeal.ID); stored == nil || stored.State != db.AppealSubmitted {
		t.Fatalf("appeal must be persisted: %#v", stored)
	}
	if w.Awaiting("u1") {
		t.Fatal("pending state must be cleared")
	}
	if _, err := w.Submit(ctx, "u1", "mallory", "again"); !errors.Is(err, ErrNoPendingAppeal) {
		t.Fatalf("second submit must fail: %v", err)
	}
	if len(actions.reviews) != 1 || actions.reviews[0].Category != db.AppealBan || actions.reviews[0].GuildName != "Prime" {
		t.Fatalf("unexpected reviews: %+v", actions.reviews)
	}
	if err := w.Begin(ctx, "u1", "g1", db.AppealBan); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("re-appeal while submitted must fail: %v", err)
	}
	if len(bus.actions) != 1 || bus.actions[0] != event.ActionAppealSubmitted {
		t.Fatalf("unexpected events: %v", bus.actions)
	}
}

func TestSubmitWithoutReviewChannel(t *testing.T) {
	t.Parallel()

	w := NewWorkflow(newMemoryStore(), &fakeActions{}, &fakeWarnings{}, nil, Options{})
	ctx := context.Background()
	if err := w.Begin(ctx, "u1", "g1", db.AppealMute); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := w.Submit(ctx, "u1", "mallory", "why"); !errors.Is(err, ErrNoReviewChannel) {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Awaiting("u1") {
		t.Fatal("pending state must be cleared")
	}
}

func TestPendingStateExpires(t *testing.T) {
	t.Parallel()

	w := NewWorkflow(newMemoryStore(), &fakeActions{}, &fakeWarnings{}, nil, Options{ReviewChannelID: "appeals", PendingTTL: 20 * time.Millisecond})
	if err := w.Begin(context.Background(), "u1", "g1", db.AppealBan); err != nil {
		t.Fatalf("begin: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if _, err := w.Submit(context.Background(), "u1", "mallory", "late"); !errors.Is(err, ErrNoPendingAppeal) {
		t.Fatalf("expired pending state must not be captured: %v", err)
	}
}

func TestAcceptByCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		category db.AppealCategory
		calls    []string
		dm       string
		removed  int
	}{
		{
			category: db.AppealBan,
			calls:    []string{"review:appeals", "unban:g1:u1:Ban Appeal Accepted by alice", "invite:g1", "close:appeals:review-msg:ACCEPTED"},
			dm:       "✅ Your appeal for **Prime** was **ACCEPTED**!\nYou have been unbanned. Here is your invite link to rejoin: https://discord.gg/abc",
		},
		{
			category: db.AppealMute,
			calls:    []string{"review:appeals", "unmute:g1:u1:Mute Appeal Accepted by alice", "close:appeals:review-msg:ACCEPTED"},
			dm:       "✅ Your appeal for **Prime** was **ACCEPTED**!\nYou have been unmuted.",
		},
		{
			category: db.AppealWarn,
			calls:    []string{"review:appeals", "close:appeals:review-msg:ACCEPTED"},
			dm:       "✅ Your appeal for **Prime** was **ACCEPTED**!\nYour last warning has been removed.",
			removed:  1,
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			t.Parallel()
			w, store, actions, warnings, _ := newTestWorkflow()
			appeal := submit(t, w, tt.category)

			decided, err := w.Accept(context.Background(), appeal.ID, moderator)
			if err != nil {
				t.Fatalf("accept: %v", err)
			}
			if decided.State != db.AppealAccepted || decided.ModeratorID != "mod" || decided.DecidedAt == nil {
				t.Fatalf("unexpected decided appeal: %#v", decided)
			}
			if strings.Join(actions.calls, "|") != strings.Join(tt.calls, "|") {
				t.Fatalf("unexpected calls: %v", actions.calls)
			}
			if len(actions.dms) != 1 || actions.dms[0] != tt.dm {
				t.Fatalf("unexpected dms: %q", actions.dms)
			}
			if len(warnings.removed) != tt.removed {
				t.Fatalf("unexpected removed warnings: %v", warnings.removed)
			}
			if stored, _ := store.GetAppeal(context.Background(), appeal.ID); stored.State != db.AppealAccepted {
				t.Fatalf("decision must be persisted: %#v", stored)
			}
		})
	}
}

func TestDecisionsRequirePermission(t *testing.T) {
	t.Parallel()

	w, _, actions, _, _ := newTestWorkflow()
	appeal := submit(t, w, db.AppealBan)

	if _, err := w.Accept(context.Background(), appeal.ID, member); !errors.Is(err, perrors.ErrNoPermission) {
		t.Fatalf("accept without permission: %v", err)
	}
	if _, err := w.Decline(context.Background(), appeal.ID, member); !errors.Is(err, perrors.ErrNoPermission) {
		t.Fatalf("decline without permission: %v", err)
	}
	if len(actions.calls) != 1 {
		t.Fatalf("no action may run without permission: %v", actions.calls)
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	t.Parallel()

	w, _, actions, _, bus := newTestWorkflow()
	appeal := submit(t, w, db.AppealMute)
	ctx := context.Background()

	if _, err := w.Decline(ctx, appeal.ID, moderator); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if actions.dms[0] != "❌ Your appeal for **Prime** was **DECLINED**." {
		t.Fatalf("unexpected dm: %q", actions.dms[0])
	}
	if _, err := w.Accept(ctx, appeal.ID, moderator); !errors.Is(err, ErrAppealClosed) {
		t.Fatalf("accept after decline: %v", err)
	}
	if _, err := w.Decline(ctx, appeal.ID, moderator); !errors.Is(err, ErrAppealClosed) {
		t.Fatalf("decline after decline: %v", err)
	}
	if _, err := w.Accept(ctx, "missing", moderator); !errors.Is(err, ErrAppealNotFound) {
		t.Fatalf("accept unknown appeal: %v", err)
	}
	if err := w.Begin(ctx, "u1", "g1", db.AppealMute); err != nil {
		t.Fatalf("a decided appeal does not block a new one: %v", err)
	}
	want := []event.Action{event.ActionAppealSubmitted, event.ActionAppealDeclined}
	if len(bus.actions) != 2 || bus.actions[0] != want[0] || bus.actions[1] != want[1] {
		t.Fatalf("unexpected events: %v", bus.actions)
	}
}

func TestFailedUnbanKeepsAppealOpen(t *testing.T) {
	t.Parallel()

	w, store, actions, _, _ := newTestWorkflow()
	actions.unbanErr = errors.New("unknown ban")
	appeal := submit(t, w, db.AppealBan)

	if _, err := w.Accept(context.Background(), appeal.ID, moderator); err == nil {
		t.Fatal("expected unban error")
	}
	if stored, _ := store.GetAppeal(context.Background(), appeal.ID); stored.State != db.AppealSubmitted {
		t.Fatalf("appeal must stay submitted: %#v", stored)
	}
}

func TestPrompt(t *testing.T) {
	t.Parallel()

	if got := Prompt(db.AppealMute); !strings.Contains(got, "**unmuted**") {
		t.Fatalf("unexpected prompt: %q", got)
	}
	if got := Prompt(db.AppealBan); !strings.Contains(got, "**unbanned**") {
		t.Fatalf("unexpected prompt: %q", got)
	}
}
