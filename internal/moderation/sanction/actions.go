package sanction

import (
	"context"
	"time"

	"github.com/iamwavecut/prime/internal/db"
	"github.com/iamwavecut/prime/internal/event"
)

// AppealOffer attaches an appeal button to a DM.
type AppealOffer struct {
	GuildID  string
	Category db.AppealCategory
}

// Actions is the moderation capability of the chat platform.
type Actions interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	TimeoutUser(ctx context.Context, guildID, userID string, d time.Duration, reason string) error
	BanUser(ctx context.Context, guildID, userID, reason string, purge time.Duration) error
	SendDM(ctx context.Context, userID, text string, offer *AppealOffer) error
	PostToChannel(ctx context.Context, channelID, text string) error
	PostTransient(ctx context.Context, channelID, text string, ttl time.Duration) error
}

// Ledger is the part of the violation ledger the engine writes to.
type Ledger interface {
	RecordWarning(ctx context.Context, userID, reason string) (int, error)
	RecordSpam(userID string) int
	ResetSpam(userID string)
}

type Publisher interface {
	Publish(record event.Record)
}

// Target is the message and author a decision applies to.
type Target struct {
	GuildID   string
	GuildName string
	ChannelID string
	MessageID string
	UserID    string
	UserName  string
}

func (t Target) Mention() string {
	return "<@" + t.UserID + ">"
}

func (t Target) guildName() string {
	if t.GuildName == "" {
		return "the server"
	}
	return t.GuildName
}

// Outcome describes what the engine did with a violation.
type Outcome struct {
	Handled bool
	Action  event.Action
	Count   int
	Reason  string
	Failed  bool
}
