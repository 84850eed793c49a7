package moderation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/iamwavecut/prime/internal/event"
)

type fakeJoinActions struct {
	roles   []string
	posts   []string
	prompts []string
}

func (f *fakeJoinActions) AddRole(_ context.Context, guildID, userID, roleID string) error {
	f.roles = append(f.roles, guildID+":"+userID+":"+roleID)
	return nil
}

func (f *fakeJoinActions) PostToChannel(_ context.Context, channelID, text string) error {
	f.posts = append(f.posts, channelID+":"+text)
	return nil
}

func (f *fakeJoinActions) SendVerificationPrompt(_ context.Context, guildID, guildName, userID string) error {
	f.prompts = append(f.prompts, guildID+":"+userID)
	return nil
}

type recordingBus struct {
	records []event.Record
}

func (b *recordingBus) Publish(record event.Record) {
	b.records = append(b.records, record)
}

func TestJoinGuardRaidDetection(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	actions := &fakeJoinActions{}
	bus := &recordingBus{}
	guard := NewJoinGuard(actions, bus, JoinOptions{
		UnverifiedRoleID: "unverified",
		ModLogChannelID:  "modlog",
		Now:              func() time.Time { return now },
	})
	old := now.Add(-365 * 24 * time.Hour)

	var res JoinResult
	for i := range 5 {
		now = now.Add(10 * time.Second)
		res = guard.HandleJoin(context.Background(), Member{GuildID: "g1", UserID: string(rune('a' + i)), CreatedAt: old})
		if i < 4 && res.Raid {
			t.Fatalf("join %d must not raise a raid alert", i+1)
		}
	}
	if !res.Raid || res.RaidSize != 5 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(actions.roles) != 5 || len(actions.prompts) != 5 {
		t.Fatalf("every member is gated: roles=%v prompts=%v", actions.roles, actions.prompts)
	}
	if len(actions.posts) != 1 || !strings.Contains(actions.posts[0], "POTENTIAL RAID DETECTED") {
		t.Fatalf("unexpected posts: %v", actions.posts)
	}
	if len(bus.records) != 1 || bus.records[0].Action != event.ActionRaidAlert {
		t.Fatalf("unexpected records: %+v", bus.records)
	}

	now = now.Add(2 * time.Minute)
	if res := guard.HandleJoin(context.Background(), Member{GuildID: "g1", UserID: "late", CreatedAt: old}); res.Raid {
		t.Fatal("window must slide")
	}
	if res := guard.HandleJoin(context.Background(), Member{GuildID: "g2", UserID: "other", CreatedAt: old}); res.Raid {
		t.Fatal("guilds are tracked separately")
	}
}

func TestJoinGuardNewAccount(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	actions := &fakeJoinActions{}
	guard := NewJoinGuard(actions, nil, JoinOptions{ModLogChannelID: "modlog", Now: func() time.Time { return now }})

	res := guard.HandleJoin(context.Background(), Member{GuildID: "g1", UserID: "u1", CreatedAt: now.Add(-3 * 24 * time.Hour)})
	if !res.NewAccount {
		t.Fatal("young account must be flagged")
	}
	if len(actions.posts) != 1 || !strings.Contains(actions.posts[0], "**3-day-old** account") {
		t.Fatalf("unexpected posts: %v", actions.posts)
	}
	if len(actions.roles) != 0 {
		t.Fatalf("no role configured: %v", actions.roles)
	}

	if res := guard.HandleJoin(context.Background(), Member{GuildID: "g1", UserID: "bot", IsBot: true}); res != (JoinResult{}) {
		t.Fatalf("bots are ignored: %+v", res)
	}
	if len(actions.prompts) != 1 {
		t.Fatalf("bots get no prompt: %v", actions.prompts)
	}
}
