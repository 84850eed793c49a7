package event

import "time"

// Action names a moderation decision in the activity log.
type Action string

const (
	ActionWarn            Action = "warn"
	ActionTimeout         Action = "timeout"
	ActionBan             Action = "ban"
	ActionDelete          Action = "delete"
	ActionSpamStrike      Action = "spam_strike"
	ActionInviteRemoved   Action = "invite_removed"
	ActionUnverifiedMedia Action = "unverified_media"
	ActionVibeCheck       Action = "vibe_check"
	ActionAppealSubmitted Action = "appeal_submitted"
	ActionAppealAccepted  Action = "appeal_accepted"
	ActionAppealDeclined  Action = "appeal_declined"
	ActionCaptchaPassed   Action = "captcha_passed"
	ActionCaptchaFailed   Action = "captcha_failed"
	ActionRaidAlert       Action = "raid_alert"
	ActionNewAccount      Action = "new_account"
)

// Record is an action record published for every moderation decision.
type Record struct {
	ID           string
	GuildID      string
	ChannelID    string
	UserID       string
	UserName     string
	Action       Action
	Reason       string
	WarningCount int
	Failed       bool
	At           time.Time
}
