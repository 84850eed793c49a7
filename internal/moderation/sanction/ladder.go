package sanction

import (
	"fmt"
	"time"

	"github.com/iamwavecut/prime/internal/db"
	"github.com/iamwavecut/prime/internal/event"
)

// FinalWarning is the count at which the ladder bans.
const FinalWarning = 5

// Step is what the ladder does for a given warning count.
type Step struct {
	Count       int
	Action      event.Action
	Duration    time.Duration
	AuditReason string
	Appeal      db.AppealCategory
}

// Decide maps the count after increment to a ladder step.
func Decide(count int, reason string) Step {
	switch {
	case count <= 1:
		return Step{Count: count, Action: event.ActionWarn, AuditReason: reason, Appeal: db.AppealWarn}
	case count == 2:
		return Step{Count: count, Action: event.ActionTimeout, Duration: 12 * time.Hour, AuditReason: "2nd Warning: " + reason, Appeal: db.AppealMute}
	case count == 3:
		return Step{Count: count, Action: event.ActionTimeout, Duration: 24 * time.Hour, AuditReason: "3rd Warning: " + reason, Appeal: db.AppealMute}
	case count == 4:
		return Step{Count: count, Action: event.ActionTimeout, Duration: 168 * time.Hour, AuditReason: "4th Warning: " + reason, Appeal: db.AppealMute}
	default:
		return Step{Count: count, Action: event.ActionBan, AuditReason: "5th Warning (Final): " + reason, Appeal: db.AppealBan}
	}
}

// Notice is the channel text for a ladder step.
func (s Step) Notice(mention, reason string) string {
	switch {
	case s.Count <= 1:
		return fmt.Sprintf("⚠️ %s, this is your **first warning**. Please follow the rules.\n**Reason:** %s", mention, reason)
	case s.Count == 2:
		return fmt.Sprintf("⚠️⚠️ %s, second warning. You have been **muted for 12 hours**.\n**Reason:** %s", mention, reason)
	case s.Count == 3:
		return fmt.Sprintf("⚠️⚠️⚠️ %s, third warning. You have been **muted for 24 hours**.\n**Reason:** %s", mention, reason)
	case s.Count == 4:
		return fmt.Sprintf("🚨 %s, fourth warning! You have been **muted for 1 week**.\n**Reason:** %s", mention, reason)
	default:
		return fmt.Sprintf("🔨 %s has been **permanently banned** after %d warnings.\n**Reason:** %s", mention, FinalWarning, reason)
	}
}

const (
	banFailedSuffix     = "\n*(Failed to ban user due to permission error)*"
	timeoutFailedSuffix = "\n*(Failed to mute user due to permission error)*"
)
