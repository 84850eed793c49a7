package db

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

type (
	// WarningEntry is one step of a user's warning history.
	WarningEntry struct {
		Reason string    `json:"reason"`
		At     time.Time `json:"timestamp"`
	}

	WarningHistory []WarningEntry

	// WarningRecord is the durable violation record of a user across guilds.
	WarningRecord struct {
		UserID    string         `db:"user_id"`
		Count     int            `db:"count"`
		History   WarningHistory `db:"history"`
		UpdatedAt time.Time      `db:"updated_at"`
	}

	AppealCategory string
	AppealState    string

	Appeal struct {
		ID              string         `db:"id"`
		UserID          string         `db:"user_id"`
		GuildID         string         `db:"guild_id"`
		Category        AppealCategory `db:"category"`
		Explanation     string         `db:"explanation"`
		State           AppealState    `db:"state"`
		ReviewChannelID string         `db:"review_channel_id"`
		ReviewMessageID string         `db:"review_message_id"`
		ModeratorID     string         `db:"moderator_id"`
		CreatedAt       time.Time      `db:"created_at"`
		DecidedAt       *time.Time     `db:"decided_at"`
	}

	CaptchaChallenge struct {
		UserID    string    `db:"user_id"`
		GuildID   string    `db:"guild_id"`
		Code      string    `db:"code"`
		Attempts  int       `db:"attempts"`
		CreatedAt time.Time `db:"created_at"`
		ExpiresAt time.Time `db:"expires_at"`
	}

	ModerationLogEntry struct {
		ID           string    `db:"id"`
		GuildID      string    `db:"guild_id"`
		UserID       string    `db:"user_id"`
		Action       string    `db:"action"`
		Reason       string    `db:"reason"`
		WarningCount int       `db:"warning_count"`
		Failed       bool      `db:"failed"`
		CreatedAt    time.Time `db:"created_at"`
	}
)

const (
	AppealWarn AppealCategory = "WARN"
	AppealMute AppealCategory = "MUTE"
	AppealBan  AppealCategory = "BAN"
)

const (
	AppealAwaitingExplanation AppealState = "AWAITING_EXPLANATION"
	AppealSubmitted           AppealState = "SUBMITTED"
	AppealAccepted            AppealState = "ACCEPTED"
	AppealDeclined            AppealState = "DECLINED"
)

// Terminal reports whether no further transitions are allowed.
func (s AppealState) Terminal() bool {
	return s == AppealAccepted || s == AppealDeclined
}

// ParseAppealCategory accepts the category names used in appeal buttons.
func ParseAppealCategory(s string) (AppealCategory, bool) {
	switch c := AppealCategory(s); c {
	case AppealWarn, AppealMute, AppealBan:
		return c, true
	}
	return "", false
}

func (h WarningHistory) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	return sonic.MarshalString(h)
}

func (h *WarningHistory) Scan(v interface{}) error {
	if v == nil {
		*h = nil
		return nil
	}
	switch data := v.(type) {
	case string:
		return sonic.UnmarshalString(data, h)
	case []byte:
		return sonic.Unmarshal(data, h)
	default:
		return fmt.Errorf("cannot scan type %T into WarningHistory", v)
	}
}

// Clone returns a deep copy safe to hand out of a lock.
func (r *WarningRecord) Clone() *WarningRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.History = append(WarningHistory(nil), r.History...)
	return &clone
}
