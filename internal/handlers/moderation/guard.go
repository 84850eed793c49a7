package moderation

import (
	"context"
	"errors"
	"time"

	perrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/prime/internal/db"
	"github.com/iamwavecut/prime/internal/infra"
	"github.com/iamwavecut/prime/internal/moderation/appeal"
	"github.com/iamwavecut/prime/internal/moderation/classifier"
	"github.com/iamwavecut/prime/internal/moderation/ledger"
	"github.com/iamwavecut/prime/internal/moderation/sanction"
)

const (
	appealSubmittedReply = "✅ Your appeal has been submitted to the moderators for review. Please wait for a decision."
	appealNoReviewReply  = "❌ Error: Appeal review channel not configured properly. Please contact an admin."
)

// Sanctions is the part of the sanction engine the guard dispatches to.
type Sanctions interface {
	HandleUnderage(ctx context.Context, t sanction.Target, reason string) sanction.Outcome
	HandleProfanity(ctx context.Context, t sanction.Target, res classifier.ProfanityResult) sanction.Outcome
	HandleMedia(ctx context.Context, t sanction.Target, verdict classifier.MediaVerdict) sanction.Outcome
	HandleDuplicateMedia(ctx context.Context, t sanction.Target) sanction.Outcome
	HandleSpam(ctx context.Context, t sanction.Target, reason string) sanction.Outcome
	HandleInvite(ctx context.Context, t sanction.Target) sanction.Outcome
}

type Appeals interface {
	Awaiting(userID string) bool
	Submit(ctx context.Context, userID, userName, explanation string) (*db.Appeal, error)
}

// Tracker holds the short-lived per-hash and per-channel counters.
type Tracker interface {
	RecordMediaHash(hash, userID string) ledger.MediaBurst
	RecordChannelMessage(channelID string, line classifier.ChatLine) (int, []classifier.ChatLine)
	ClaimVibeCheck(channelID string, forced bool) bool
}

type MediaClassifier interface {
	Classify(ctx context.Context, data []byte, kind classifier.MediaKind, mimeType string) classifier.MediaVerdict
}

type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type TextDetector interface {
	DetectProfanity(text string) classifier.ProfanityResult
	HasPoliticalKeyword(text string) bool
}

type Replier interface {
	PostToChannel(ctx context.Context, channelID, text string) error
}

// VibeChecker runs a vibe check for a channel transcript.
type VibeChecker interface {
	Check(ctx context.Context, guildID, channelID string, lines []classifier.ChatLine)
}

type GuardOptions struct {
	AdminBypassMedia bool
	MaxMediaBytes    int64
	VibeBurst        int
}

// GuardDeps groups the collaborators of the guard. Vibe may be nil.
type GuardDeps struct {
	Sanctions Sanctions
	Appeals   Appeals
	Tracker   Tracker
	Detector  TextDetector
	Media     MediaClassifier
	Fetcher   MediaFetcher
	Replier   Replier
	Vibe      VibeChecker
}

// Guard runs every inbound message through the moderation checks in a fixed
// order. The first check that acts stops the chain.
type Guard struct {
	deps   GuardDeps
	opts   GuardOptions
	logger *log.Entry
}

func NewGuard(deps GuardDeps, opts GuardOptions) *Guard {
	if opts.MaxMediaBytes <= 0 {
		opts.MaxMediaBytes = 25 << 20
	}
	if opts.VibeBurst <= 0 {
		opts.VibeBurst = 8
	}
	return &Guard{
		deps:   deps,
		opts:   opts,
		logger: log.WithField("object", "Guard"),
	}
}

// HandleMessage never panics; a panic in a check is returned as an error.
func (g *Guard) HandleMessage(ctx context.Context, msg *Message) (res Result, err error) {
	defer infra.Recover("guard", &err)

	if msg == nil || msg.IsBot {
		return skip(StageIgnored, "bot author"), nil
	}

	if msg.IsDM {
		return g.checkAppeal(ctx, msg)
	}

	if msg.IsPrivileged {
		if g.opts.AdminBypassMedia || len(msg.Attachments) == 0 {
			return skip(StageIgnored, "privileged author"), nil
		}
		return g.checkMedia(ctx, msg)
	}

	t := msg.target()

	if underage, reason := classifier.DetectAge(msg.Text); underage {
		return handled(StageAge, g.deps.Sanctions.HandleUnderage(ctx, t, reason)), nil
	}

	if g.deps.Appeals != nil && g.deps.Appeals.Awaiting(msg.AuthorID) {
		return g.checkAppeal(ctx, msg)
	}

	if found := g.deps.Detector.DetectProfanity(msg.Text); found.Found {
		return handled(StageProfanity, g.deps.Sanctions.HandleProfanity(ctx, t, found)), nil
	}

	if len(msg.Attachments) > 0 {
		if media, err := g.checkMedia(ctx, msg); err != nil || media.Handled {
			return media, err
		}
	}

	if spam, reason := classifier.DetectSpam(msg.Text); spam {
		return handled(StageSpam, g.deps.Sanctions.HandleSpam(ctx, t, reason)), nil
	}

	if classifier.DetectInviteLink(msg.Text) {
		return handled(StageInvite, g.deps.Sanctions.HandleInvite(ctx, t)), nil
	}

	g.observeActivity(ctx, msg)
	return Result{Stage: StageClean}, nil
}

func (g *Guard) checkAppeal(ctx context.Context, msg *Message) (Result, error) {
	if g.deps.Appeals == nil || !g.deps.Appeals.Awaiting(msg.AuthorID) {
		return skip(StageIgnored, "no pending appeal"), nil
	}
	_, err := g.deps.Appeals.Submit(ctx, msg.AuthorID, msg.AuthorName, msg.Text)
	switch {
	case err == nil:
		g.reply(ctx, msg.ChannelID, appealSubmittedReply)
	case errors.Is(err, appeal.ErrNoReviewChannel):
		g.reply(ctx, msg.ChannelID, appealNoReviewReply)
	case errors.Is(err, appeal.ErrNoPendingAppeal):
		return skip(StageIgnored, "no pending appeal"), nil
	default:
		return Result{Stage: StageAppeal}, perrors.Wrap(err, "submit appeal")
	}
	return Result{Stage: StageAppeal, Handled: true}, nil
}

func (g *Guard) checkMedia(ctx context.Context, msg *Message) (Result, error) {
	t := msg.target()
	entry := g.logger.WithFields(log.Fields{"user_id": msg.AuthorID, "message_id": msg.ID})

	for _, att := range msg.Attachments {
		kind, mime, ok := classifier.MediaKindOf(att.Filename)
		if !ok {
			continue
		}
		if att.Size > g.opts.MaxMediaBytes {
			entry.WithFields(log.Fields{"filename": att.Filename, "size": att.Size}).Debug("attachment too large to inspect")
			continue
		}
		data, err := g.deps.Fetcher.Fetch(ctx, att.URL)
		if err != nil {
			entry.WithError(err).WithField("filename", att.Filename).Warn("cant fetch attachment")
			continue
		}

		if burst := g.deps.Tracker.RecordMediaHash(classifier.HashMedia(data), msg.AuthorID); burst.Suspicious() {
			entry.WithFields(log.Fields{"count": burst.Count, "users": burst.Users}).Info("duplicate media burst")
			return handled(StageMedia, g.deps.Sanctions.HandleDuplicateMedia(ctx, t)), nil
		}

		if g.deps.Media == nil {
			continue
		}
		verdict := g.deps.Media.Classify(ctx, data, kind, mime)
		if verdict.IsBad {
			return handled(StageMedia, g.deps.Sanctions.HandleMedia(ctx, t, verdict)), nil
		}
	}
	return Result{Stage: StageMedia}, nil
}

func (g *Guard) observeActivity(ctx context.Context, msg *Message) {
	at := msg.At
	if at.IsZero() {
		at = time.Now()
	}
	burst, transcript := g.deps.Tracker.RecordChannelMessage(msg.ChannelID, classifier.ChatLine{
		Author: msg.AuthorName,
		Text:   msg.Text,
		At:     at,
	})
	if g.deps.Vibe == nil {
		return
	}
	political := g.deps.Detector.HasPoliticalKeyword(msg.Text)
	if !political && burst < g.opts.VibeBurst {
		return
	}
	if !g.deps.Tracker.ClaimVibeCheck(msg.ChannelID, political) {
		return
	}
	checkCtx := context.WithoutCancel(ctx)
	infra.Go("vibe:"+msg.ChannelID, func() {
		g.deps.Vibe.Check(checkCtx, msg.GuildID, msg.ChannelID, transcript)
	})
}

func (g *Guard) reply(ctx context.Context, channelID, text string) {
	if g.deps.Replier == nil {
		return
	}
	if err := g.deps.Replier.PostToChannel(ctx, channelID, text); err != nil {
		g.logger.WithError(err).WithField("channel_id", channelID).Debug("cant reply")
	}
}

func handled(stage Stage, out sanction.Outcome) Result {
	return Result{Stage: stage, Handled: out.Handled, Outcome: out}
}

func skip(stage Stage, reason string) Result {
	return Result{Stage: stage, SkipReason: reason}
}
