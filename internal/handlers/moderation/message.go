package moderation

import (
	"time"

	"github.com/iamwavecut/prime/internal/moderation/sanction"
)

type Attachment struct {
	URL         string
	Filename    string
	ContentType string
	Size        int64
}

// Message is an inbound chat message as the guard sees it.
type Message struct {
	ID           string
	GuildID      string
	GuildName    string
	ChannelID    string
	AuthorID     string
	AuthorName   string
	Text         string
	Attachments  []Attachment
	IsBot        bool
	IsPrivileged bool
	IsDM         bool
	At           time.Time
}

func (m *Message) target() sanction.Target {
	return sanction.Target{
		GuildID:   m.GuildID,
		GuildName: m.GuildName,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		UserID:    m.AuthorID,
		UserName:  m.AuthorName,
	}
}

type Stage string

const (
	StageIgnored   Stage = "ignored"
	StageAge       Stage = "age"
	StageAppeal    Stage = "appeal"
	StageProfanity Stage = "profanity"
	StageMedia     Stage = "media"
	StageSpam      Stage = "spam"
	StageInvite    Stage = "invite"
	StageClean     Stage = "clean"
)

// Result tells which stage stopped the pipeline and what it did.
type Result struct {
	Stage      Stage
	Handled    bool
	Outcome    sanction.Outcome
	SkipReason string
}
