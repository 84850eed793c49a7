package moderation

import (
	"context"
	"testing"

	"github.com/iamwavecut/prime/internal/event"
	"github.com/iamwavecut/prime/internal/moderation/classifier"
)

type stubVibe struct {
	verdict classifier.VibeVerdict
}

func (s stubVibe) Classify(context.Context, []classifier.ChatLine) classifier.VibeVerdict {
	return s.verdict
}

func TestVibeMonitor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		verdict classifier.VibeVerdict
		posted  bool
	}{
		{name: "safe", verdict: classifier.VibeVerdict{Status: classifier.VibeSafe, Intervention: "chill"}},
		{name: "political", verdict: classifier.VibeVerdict{Status: classifier.VibePolitical, Reason: "election", Intervention: "Let's change topic"}, posted: true},
		{name: "no text", verdict: classifier.VibeVerdict{Status: classifier.VibeChaotic}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			replier := &fakeReplier{}
			bus := &recordingBus{}
			NewVibeMonitor(stubVibe{verdict: tt.verdict}, replier, bus).Check(context.Background(), "g1", "c1", nil)

			if tt.posted != (len(replier.replies) == 1) {
				t.Fatalf("unexpected replies: %v", replier.replies)
			}
			if !tt.posted {
				return
			}
			if replier.replies[0] != "c1:🕊️ "+tt.verdict.Intervention {
				t.Fatalf("unexpected reply: %q", replier.replies[0])
			}
			if len(bus.records) != 1 || bus.records[0].Action != event.ActionVibeCheck {
				t.Fatalf("unexpected records: %+v", bus.records)
			}
		})
	}
}
