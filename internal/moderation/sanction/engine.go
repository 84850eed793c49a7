package sanction

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/prime/internal/db"
	"github.com/iamwavecut/prime/internal/event"
	"github.com/iamwavecut/prime/internal/moderation/classifier"
	"github.com/iamwavecut/prime/internal/observability"
)

const (
	MassMediaReason = "Mass Image/Scam Spam detected across the server."
	InviteNotice    = "🔒 %s - Posting invite links is not allowed in this server."
)

type Options struct {
	PurgeWindow time.Duration
	NoticeTTL   time.Duration
	WarnAppeal  bool
}

// Engine turns classifier verdicts into sanctions.
type Engine struct {
	actions Actions
	ledger  Ledger
	bus     Publisher
	opts    Options
	logger  *log.Entry
}

func NewEngine(actions Actions, ledger Ledger, bus Publisher, opts Options) *Engine {
	if opts.PurgeWindow <= 0 {
		opts.PurgeWindow = 24 * time.Hour
	}
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = 15 * time.Second
	}
	return &Engine{
		actions: actions,
		ledger:  ledger,
		bus:     bus,
		opts:    opts,
		logger:  log.WithField("object", "SanctionEngine"),
	}
}

// Warn records a warning and applies the ladder step for the new count.
func (e *Engine) Warn(ctx context.Context, t Target, reason string) Outcome {
	entry := e.logger.WithFields(log.Fields{"user_id": t.UserID, "guild_id": t.GuildID})

	count, err := e.ledger.RecordWarning(ctx, t.UserID, reason)
	if err != nil {
		entry.WithError(err).Warn("warning recorded in memory only")
	}
	step := Decide(count, reason)
	notice := step.Notice(t.Mention(), reason)
	failed := false

	switch step.Action {
	case event.ActionTimeout:
		if err := e.actions.TimeoutUser(ctx, t.GuildID, t.UserID, step.Duration, step.AuditReason); err != nil {
			entry.WithError(err).Error("cant timeout user")
			notice += timeoutFailedSuffix
			failed = true
		}
	case event.ActionBan:
		e.dm(ctx, t.UserID, e.moderationDM(t, notice), &AppealOffer{GuildID: t.GuildID, Category: db.AppealBan})
		if err := e.actions.BanUser(ctx, t.GuildID, t.UserID, step.AuditReason, e.opts.PurgeWindow); err != nil {
			entry.WithError(err).Error("cant ban user")
			notice += banFailedSuffix
			failed = true
		}
	}

	e.post(ctx, t.ChannelID, notice)

	if step.Action != event.ActionBan {
		var offer *AppealOffer
		if step.Action == event.ActionTimeout || e.opts.WarnAppeal {
			offer = &AppealOffer{GuildID: t.GuildID, Category: step.Appeal}
		}
		e.dm(ctx, t.UserID, e.moderationDM(t, notice), offer)
	}

	entry.WithFields(log.Fields{"count": count, "action": step.Action, "failed": failed}).Info("warning applied")
	return e.record(t, Outcome{Handled: true, Action: step.Action, Count: count, Reason: reason, Failed: failed})
}

// HandleProfanity deletes the message and bans on severe slurs. A failed ban
// falls back to the ladder.
func (e *Engine) HandleProfanity(ctx context.Context, t Target, res classifier.ProfanityResult) Outcome {
	if !res.Found {
		return Outcome{}
	}
	observability.RecordViolation("profanity")
	e.deleteMessage(ctx, t)

	if res.Severity == classifier.SeveritySevere {
		reason := fmt.Sprintf("Zero tolerance policy: Use of severe slur (%s)", res.Term)
		if out, ok := e.immediateBan(ctx, t, reason, reason, banNotice(t, reason)); ok {
			return out
		}
	}
	return e.Warn(ctx, t, "Profanity/Inappropriate Language: "+res.Term)
}

// HandleMedia applies a media verdict.
func (e *Engine) HandleMedia(ctx context.Context, t Target, verdict classifier.MediaVerdict) Outcome {
	if !verdict.IsBad {
		return Outcome{}
	}
	observability.RecordViolation("media")
	e.deleteMessage(ctx, t)

	switch verdict.Severity {
	case classifier.SeverityUnverified:
		e.post(ctx, t.ChannelID, fmt.Sprintf("🔍 %s, your attachment could not be verified and was removed.", t.Mention()))
		return e.record(t, Outcome{Handled: true, Action: event.ActionUnverifiedMedia, Reason: verdict.Reason})
	case classifier.SeveritySevere:
		reason := "Zero tolerance policy: " + verdict.Reason
		if out, ok := e.immediateBan(ctx, t, reason, reason, banNotice(t, reason)); ok {
			return out
		}
	}
	return e.Warn(ctx, t, "Inappropriate Media: "+verdict.Reason)
}

// HandleDuplicateMedia bans for mass posting of identical media.
func (e *Engine) HandleDuplicateMedia(ctx context.Context, t Target) Outcome {
	observability.RecordViolation("duplicate_media")
	e.deleteMessage(ctx, t)

	notice := fmt.Sprintf("🔨 **%s** has been BANNED for image spam.", t.UserName)
	out, ok := e.immediateBan(ctx, t, MassMediaReason, MassMediaReason, notice)
	if !ok {
		e.post(ctx, t.ChannelID, notice+banFailedSuffix)
	}
	return out
}

// HandleUnderage bans a user that admitted being under 13.
func (e *Engine) HandleUnderage(ctx context.Context, t Target, reason string) Outcome {
	observability.RecordViolation("underage")
	e.deleteMessage(ctx, t)

	dmReason := fmt.Sprintf("Discord requires all users to be at least 13 years old. (%s)", reason)
	notice := fmt.Sprintf("🔨 **%s** has been BANNED. Reason: User is under 13.", t.Mention())
	out, ok := e.immediateBan(ctx, t, "Underage User (COPPA/TOS): "+reason, dmReason, notice)
	if !ok {
		e.post(ctx, t.ChannelID, notice+banFailedSuffix)
	}
	return out
}

// HandleSpam runs the spam sub-ladder: two transient warnings, then a real
// warning and a fresh strike counter.
func (e *Engine) HandleSpam(ctx context.Context, t Target, reason string) Outcome {
	observability.RecordViolation("spam")
	e.deleteMessage(ctx, t)

	strike := e.ledger.RecordSpam(t.UserID)
	switch strike {
	case 1:
		e.transient(ctx, t.ChannelID, fmt.Sprintf("⚠️ %s - First warning: Stop spamming! (%s)", t.Mention(), reason))
	case 2:
		e.transient(ctx, t.ChannelID, fmt.Sprintf("⚠️⚠️ %s - Second warning: One more and you'll receive a global warning!", t.Mention()))
	default:
		out := e.Warn(ctx, t, "Excessive Spamming: "+reason)
		e.ledger.ResetSpam(t.UserID)
		return out
	}
	return e.record(t, Outcome{Handled: true, Action: event.ActionSpamStrike, Count: strike, Reason: reason})
}

// HandleInvite removes a server invite without touching the ladder.
func (e *Engine) HandleInvite(ctx context.Context, t Target) Outcome {
	observability.RecordViolation("invite")
	e.deleteMessage(ctx, t)
	e.post(ctx, t.ChannelID, fmt.Sprintf(InviteNotice, t.Mention()))
	return e.record(t, Outcome{Handled: true, Action: event.ActionInviteRemoved, Reason: "Invite link"})
}

// immediateBan sends the appeal DM, bans with the purge window and posts the
// notice. ok is false when the ban call failed; the caller then either falls
// back to the ladder or posts the notice with the failure suffix.
func (e *Engine) immediateBan(ctx context.Context, t Target, auditReason, dmReason, notice string) (Outcome, bool) {
	entry := e.logger.WithFields(log.Fields{"user_id": t.UserID, "guild_id": t.GuildID, "reason": auditReason})

	dm := fmt.Sprintf("🚫 You have been **permanently banned** from **%s**.\n**Reason:** %s\n\nIf you believe this was a mistake, you can use the button below to appeal.",
		t.guildName(), dmReason)
	e.dm(ctx, t.UserID, dm, &AppealOffer{GuildID: t.GuildID, Category: db.AppealBan})

	if err := e.actions.BanUser(ctx, t.GuildID, t.UserID, auditReason, e.opts.PurgeWindow); err != nil {
		entry.WithError(err).Error("cant ban user")
		return e.record(t, Outcome{Handled: true, Action: event.ActionBan, Reason: auditReason, Failed: true}), false
	}
	e.post(ctx, t.ChannelID, notice)
	entry.Info("user banned")
	return e.record(t, Outcome{Handled: true, Action: event.ActionBan, Reason: auditReason}), true
}

func banNotice(t Target, reason string) string {
	return fmt.Sprintf("🔨 **%s** has been BANNED. Reason: %s", t.UserName, reason)
}

func (e *Engine) moderationDM(t Target, notice string) string {
	return fmt.Sprintf("**Moderation Action in %s**\n%s\n\nIf you believe this was a mistake, you can appeal below.",
		t.guildName(), strings.ReplaceAll(notice, t.Mention(), "You"))
}

func (e *Engine) record(t Target, out Outcome) Outcome {
	observability.RecordSanction(string(out.Action), out.Failed)
	if e.bus != nil {
		e.bus.Publish(event.Record{
			GuildID:      t.GuildID,
			ChannelID:    t.ChannelID,
			UserID:       t.UserID,
			UserName:     t.UserName,
			Action:       out.Action,
			Reason:       out.Reason,
			WarningCount: out.Count,
			Failed:       out.Failed,
		})
	}
	return out
}

func (e *Engine) deleteMessage(ctx context.Context, t Target) {
	if t.MessageID == "" {
		return
	}
	if err := e.actions.DeleteMessage(ctx, t.ChannelID, t.MessageID); err != nil {
		e.logger.WithError(err).WithField("message_id", t.MessageID).Warn("cant delete message")
	}
}

func (e *Engine) post(ctx context.Context, channelID, text string) {
	if channelID == "" {
		return
	}
	if err := e.actions.PostToChannel(ctx, channelID, text); err != nil {
		e.logger.WithError(err).WithField("channel_id", channelID).Warn("cant post notice")
	}
}

func (e *Engine) transient(ctx context.Context, channelID, text string) {
	if err := e.actions.PostTransient(ctx, channelID, text, e.opts.NoticeTTL); err != nil {
		e.logger.WithError(err).WithField("channel_id", channelID).Warn("cant post transient notice")
	}
}

func (e *Engine) dm(ctx context.Context, userID, text string, offer *AppealOffer) {
	if err := e.actions.SendDM(ctx, userID, text, offer); err != nil {
		e.logger.WithError(err).WithField("user_id", userID).Debug("cant dm user")
	}
}
