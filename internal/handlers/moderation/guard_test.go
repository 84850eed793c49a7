package moderation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iamwavecut/prime/internal/db"
	"github.com/iamwavecut/prime/internal/moderation/appeal"
	"github.com/iamwavecut/prime/internal/moderation/classifier"
	"github.com/iamwavecut/prime/internal/moderation/ledger"
	"github.com/iamwavecut/prime/internal/moderation/sanction"
)

type fakeSanctions struct {
	mu    sync.Mutex
	calls []string
	panic bool
}

func (f *fakeSanctions) add(call string) sanction.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return sanction.Outcome{Handled: true}
}

func (f *fakeSanctions) HandleUnderage(_ context.Context, t sanction.Target, reason string) sanction.Outcome {
	return f.add("underage:" + t.UserID + ":" + reason)
}

func (f *fakeSanctions) HandleProfanity(_ context.Context, t sanction.Target, res classifier.ProfanityResult) sanction.Outcome {
	if f.panic {
		panic("engine exploded")
	}
	return f.add("profanity:" + res.Term + ":" + string(res.Severity))
}

func (f *fakeSanctions) HandleMedia(_ context.Context, t sanction.Target, verdict classifier.MediaVerdict) sanction.Outcome {
	return f.add("media:" + string(verdict.Severity))
}

func (f *fakeSanctions) HandleDuplicateMedia(_ context.Context, t sanction.Target) sanction.Outcome {
	return f.add("duplicate:" + t.UserID)
}

func (f *fakeSanctions) HandleSpam(_ context.Context, t sanction.Target, reason string) sanction.Outcome {
	return f.add("spam:" + reason)
}

func (f *fakeSanctions) HandleInvite(_ context.Context, t sanction.Target) sanction.Outcome {
	return f.add("invite:" + t.MessageID)
}

type fakeAppeals struct {
	awaiting map[string]bool
	err      error
	texts    []string
}

func (f *fakeAppeals) Awaiting(userID string) bool {
	return f.awaiting[userID]
}

func (f *fakeAppeals) Submit(_ context.Context, userID, userName, explanation string) (*db.Appeal, error) {
	if !f.awaiting[userID] {
		return nil, appeal.ErrNoPendingAppeal
	}
	delete(f.awaiting, userID)
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, explanation)
	return &db.Appeal{UserID: userID}, nil
}

type fakeFetcher struct {
	files map[string][]byte
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls++
	data, ok := f.files[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

type fakeMedia struct {
	verdict classifier.MediaVerdict
	calls   int
}

func (f *fakeMedia) Classify(context.Context, []byte, classifier.MediaKind, string) classifier.MediaVerdict {
	f.calls++
	return f.verdict
}

type fakeReplier struct {
	mu      sync.Mutex
	replies []string
}

func (f *fakeReplier) PostToChannel(_ context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, channelID+":"+text)
	return nil
}

type fakeVibe struct {
	checks chan []classifier.ChatLine
}

func (f *fakeVibe) Check(_ context.Context, _, _ string, lines []classifier.ChatLine) {
	f.checks <- lines
}

type guardFixture struct {
	guard     *Guard
	sanctions *fakeSanctions
	appeals   *fakeAppeals
	fetcher   *fakeFetcher
	media     *fakeMedia
	replier   *fakeReplier
	vibe      *fakeVibe
}

func newGuardFixture(t *testing.T, opts GuardOptions) *guardFixture {
	t.Helper()
	detector, err := classifier.NewDefaultDetector()
	if err != nil {
		t.Fatalf("detector: %v", err)
	}
	f := &guardFixture{
		sanctions: &fakeSanctions{},
		appeals:   &fakeAppeals{awaiting: map[string]bool{}},
		fetcher:   &fakeFetcher{files: map[string][]byte{}},
		media:     &fakeMedia{},
		replier:   &fakeReplier{},
		vibe:      &fakeVibe{checks: make(chan []classifier.ChatLine, 4)},
	}
	f.guard = NewGuard(GuardDeps{
		Sanctions: f.sanctions,
		Appeals:   f.appeals,
		Tracker:   ledger.New(nil, ledger.Options{}),
		Detector:  detector,
		Media:     f.media,
		Fetcher:   f.fetcher,
		Replier:   f.replier,
		Vibe:      f.vibe,
	}, opts)
	return f
}

func message(text string) *Message {
	return &Message{ID: "m1", GuildID: "g1", ChannelID: "c1", AuthorID: "u1", AuthorName: "mallory", Text: text}
}

func TestGuardStages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		stage Stage
		call  string
	}{
		{name: "underage", text: "i am 12 years old lol", stage: StageAge, call: "underage:u1:User admitted to being 12 years old (Discord requires 13+)"},
		{name: "severe slur", text: "heil hitler", stage: StageProfanity, call: "profanity:heil hitler:SEVERE"},
		{name: "profanity", text: "what the fuck", stage: StageProfanity, call: "profanity:fuck:NORMAL"},
		{name: "spam", text: strings.Repeat("a", 25), stage: StageSpam, call: "spam:Repeated characters spam"},
		{name: "invite", text: "join discord.gg/abc123", stage: StageInvite, call: "invite:m1"},
		{name: "clean", text: "hello there everyone", stage: StageClean},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newGuardFixture(t, GuardOptions{})
			res, err := f.guard.HandleMessage(context.Background(), message(tt.text))
			if err != nil {
				t.Fatalf("handle: %v", err)
			}
			if res.Stage != tt.stage {
				t.Fatalf("unexpected stage: got %s want %s", res.Stage, tt.stage)
			}
			if tt.call == "" {
				if len(f.sanctions.calls) != 0 || res.Handled {
					t.Fatalf("clean message must not be sanctioned: %v", f.sanctions.calls)
				}
				return
			}
			if len(f.sanctions.calls) != 1 || f.sanctions.calls[0] != tt.call {
				t.Fatalf("unexpected calls: got %v want %s", f.sanctions.calls, tt.call)
			}
		})
	}
}

func TestGuardIgnoresBotsAndPrivileged(t *testing.T) {
	t.Parallel()

	f := newGuardFixture(t, GuardOptions{AdminBypassMedia: true})
	bot := message("what the fuck")
	bot.IsBot = true
	admin := message("what the fuck")
	admin.IsPrivileged = true

	for _, msg := range []*Message{bot, admin} {
		res, err := f.guard.HandleMessage(context.Background(), msg)
		if err != nil || res.Stage != StageIgnored {
			t.Fatalf("unexpected result: %+v %v", res, err)
		}
	}
	if len(f.sanctions.calls) != 0 {
		t.Fatalf("unexpected calls: %v", f.sanctions.calls)
	}
}

func TestGuardChecksPrivilegedMediaWithoutBypass(t *testing.T) {
	t.Parallel()

	f := newGuardFixture(t, GuardOptions{AdminBypassMedia: false})
	f.fetcher.files["https://cdn/x.png"] = []byte("png")
	f.media.verdict = classifier.MediaVerdict{IsBad: true, Severity: classifier.SeveritySevere, Reason: "gore"}

	msg := message("what the fuck")
	msg.IsPrivileged = true
	msg.Attachments = []Attachment{{URL: "https://cdn/x.png", Filename: "x.png", Size: 3}}

	res, err := f.guard.HandleMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Stage != StageMedia || len(f.sanctions.calls) != 1 || f.sanctions.calls[0] != "media:SEVERE" {
		t.Fatalf("unexpected result: %+v %v", res, f.sanctions.calls)
	}
}

func TestGuardMedia(t *testing.T) {
	t.Parallel()

	f := newGuardFixture(t, GuardOptions{MaxMediaBytes: 10})
	f.fetcher.files["https://cdn/a.jpg"] = []byte("image-a")

	msg := message("look")
	msg.Attachments = []Attachment{
		{URL: "https://cdn/doc.pdf", Filename: "doc.pdf", Size: 3},
		{URL: "https://cdn/huge.png", Filename: "huge.png", Size: 11},
		{URL: "https://cdn/a.jpg", Filename: "a.jpg", Size: 7},
	}
	res, err := f.guard.HandleMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Stage != StageClean {
		t.Fatalf("clean media must fall through: %+v", res)
	}
	if f.fetcher.calls != 1 || f.media.calls != 1 {
		t.Fatalf("only the supported small file is inspected: fetches=%d classifications=%d", f.fetcher.calls, f.media.calls)
	}

	f.media.verdict = classifier.MediaVerdict{IsBad: true, Severity: classifier.SeverityMedium, Reason: "scam"}
	res, _ = f.guard.HandleMessage(context.Background(), msg)
	if res.Stage != StageMedia || f.sanctions.calls[len(f.sanctions.calls)-1] != "media:MEDIUM" {
		t.Fatalf("unexpected result: %+v %v", res, f.sanctions.calls)
	}
}

func TestGuardDuplicateMediaBeatsVerdict(t *testing.T) {
	t.Parallel()

	f := newGuardFixture(t, GuardOptions{})
	f.fetcher.files["https://cdn/a.png"] = []byte("same")

	var res Result
	for i, user := range []string{"u1", "u2", "u1"} {
		msg := message("")
		msg.AuthorID = user
		msg.Attachments = []Attachment{{URL: "https://cdn/a.png", Filename: "a.png", Size: 4}}
		var err error
		res, err = f.guard.HandleMessage(context.Background(), msg)
		if err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
	}
	if res.Stage != StageMedia || len(f.sanctions.calls) != 1 || f.sanctions.calls[0] != "duplicate:u1" {
		t.Fatalf("unexpected result: %+v %v", res, f.sanctions.calls)
	}
	if f.media.calls != 2 {
		t.Fatalf("burst must be checked before the model: got %d classifications", f.media.calls)
	}
}

func TestGuardAppealExplanation(t *testing.T) {
	t.Parallel()

	f := newGuardFixture(t, GuardOptions{})
	f.appeals.awaiting["u1"] = true

	dm := message("please unban me, fuck")
	dm.IsDM = true
	dm.ChannelID = "dm1"
	res, err := f.guard.HandleMessage(context.Background(), dm)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Stage != StageAppeal || !res.Handled {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(f.appeals.texts) != 1 || len(f.sanctions.calls) != 0 {
		t.Fatalf("explanation must be submitted and not moderated: %v %v", f.appeals.texts, f.sanctions.calls)
	}
	if len(f.replier.replies) != 1 || f.replier.replies[0] != "dm1:"+appealSubmittedReply {
		t.Fatalf("unexpected replies: %v", f.replier.replies)
	}

	res, _ = f.guard.HandleMessage(context.Background(), dm)
	if res.Stage != StageIgnored || len(f.appeals.texts) != 1 {
		t.Fatalf("second message must not be captured: %+v", res)
	}
}

func TestGuardAppealWithoutReviewChannel(t *testing.T) {
	t.Parallel()

	f := newGuardFixture(t, GuardOptions{})
	f.appeals.awaiting["u1"] = true
	f.appeals.err = appeal.ErrNoReviewChannel

	dm := message("sorry")
	dm.IsDM = true
	if _, err := f.guard.HandleMessage(context.Background(), dm); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(f.replier.replies) != 1 || !strings.HasSuffix(f.replier.replies[0], appealNoReviewReply) {
		t.Fatalf("unexpected replies: %v", f.replier.replies)
	}
}

func TestGuardRecoversFromPanic(t *testing.T) {
	t.Parallel()

	f := newGuardFixture(t, GuardOptions{})
	f.sanctions.panic = true
	if _, err := f.guard.HandleMessage(context.Background(), message("what the fuck")); err == nil {
		t.Fatal("expected panic to surface as error")
	}
	if _, err := f.guard.HandleMessage(context.Background(), message("hello there")); err != nil {
		t.Fatalf("guard must keep working after a panic: %v", err)
	}
}

func TestGuardVibeTriggers(t *testing.T) {
	t.Parallel()

	f := newGuardFixture(t, GuardOptions{VibeBurst: 3})
	ctx := context.Background()

	for _, text := range []string{"hello there", "how are you"} {
		if _, err := f.guard.HandleMessage(ctx, message(text)); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	select {
	case <-f.vibe.checks:
		t.Fatal("no check below the burst threshold")
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := f.guard.HandleMessage(ctx, message("nice weather")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	select {
	case lines := <-f.vibe.checks:
		if len(lines) != 3 || lines[2].Text != "nice weather" {
			t.Fatalf("unexpected transcript: %+v", lines)
		}
	case <-time.After(time.Second):
		t.Fatal("burst must trigger a vibe check")
	}

	if _, err := f.guard.HandleMessage(ctx, message("another one")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	select {
	case <-f.vibe.checks:
		t.Fatal("cooldown must suppress a second burst check")
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := f.guard.HandleMessage(ctx, message("who wins the election")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	select {
	case <-f.vibe.checks:
	case <-time.After(time.Second):
		t.Fatal("political keyword must force a check")
	}
}
