package appeal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/prime/internal/db"
	perrors "github.com/iamwavecut/prime/internal/errors"
	"github.com/iamwavecut/prime/internal/event"
)

var (
	ErrNoPendingAppeal  = errors.New("no pending appeal")
	ErrAppealNotFound   = errors.New("appeal not found")
	ErrAppealClosed     = errors.New("appeal already decided")
	ErrAlreadySubmitted = errors.New("appeal already submitted")
	ErrNoReviewChannel  = errors.New("appeal review channel is not configured")
)

const (
	DefaultPendingTTL = 24 * time.Hour
	inviteMaxAge      = 24 * time.Hour
	inviteMaxUses     = 1
)

// Review is what moderators see in the review channel.
type Review struct {
	AppealID    string
	UserID      string
	UserName    string
	GuildName   string
	Category    db.AppealCategory
	Explanation string
	State       db.AppealState
	ModeratorID string
}

type Store interface {
	CreateAppeal(ctx context.Context, appeal *db.Appeal) error
	GetAppeal(ctx context.Context, id string) (*db.Appeal, error)
	UpdateAppeal(ctx context.Context, appeal *db.Appeal) error
	HasOpenAppeal(ctx context.Context, userID string, category db.AppealCategory) (bool, error)
}

// Actions is the platform capability the workflow needs.
type Actions interface {
	Unban(ctx context.Context, guildID, userID, reason string) error
	RemoveMute(ctx context.Context, guildID, userID, reason string) error
	CreateInvite(ctx context.Context, guildID string, maxAge time.Duration, maxUses int) (string, error)
	SendDM(ctx context.Context, userID, text string) error
	PostReview(ctx context.Context, channelID string, review Review) (string, error)
	CloseReview(ctx context.Context, channelID, messageID string, review Review) error
	GuildName(ctx context.Context, guildID string) string
}

type WarningRemover interface {
	RemoveLastWarning(ctx context.Context, userID string) (int, error)
}

type Publisher interface {
	Publish(record event.Record)
}

// Moderator is the member pressing a review button.
type Moderator struct {
	ID             string
	Name           string
	CanManageGuild bool
}

type pending struct {
	guildID  string
	category db.AppealCategory
}

type Options struct {
	ReviewChannelID string
	PendingTTL      time.Duration
	PendingSize     int
	Now             func() time.Time
}

// Workflow moves appeals through
// NONE -> AWAITING_EXPLANATION -> SUBMITTED -> ACCEPTED | DECLINED.
// The awaiting state lives in memory; submitted appeals are persisted.
type Workflow struct {
	store    Store
	actions  Actions
	warnings WarningRemover
	bus      Publisher
	opts     Options
	pending  *expirable.LRU[string, pending]
	decideMu sync.Mutex
	logger   *log.Entry
}

func NewWorkflow(store Store, actions Actions, warnings WarningRemover, bus Publisher, opts Options) *Workflow {
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = DefaultPendingTTL
	}
	if opts.PendingSize <= 0 {
		opts.PendingSize = 10000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Workflow{
		store:    store,
		actions:  actions,
		warnings: warnings,
		bus:      bus,
		opts:     opts,
		pending:  expirable.NewLRU[string, pending](opts.PendingSize, nil, opts.PendingTTL),
		logger:   log.WithField("object", "AppealWorkflow"),
	}
}

// Prompt is the reply shown when the user presses an appeal button.
func Prompt(category db.AppealCategory) string {
	target := "unbanned"
	switch category {
	case db.AppealMute:
		target = "unmuted"
	case db.AppealWarn:
		target = "forgiven for this warning"
	}
	return fmt.Sprintf("Please explain why you should be **%s**. Send your explanation in a **single message** here.", target)
}

// Begin puts the user into the awaiting-explanation state.
func (w *Workflow) Begin(ctx context.Context, userID, guildID string, category db.AppealCategory) error {
	open, err := w.store.HasOpenAppeal(ctx, userID, category)
	if err != nil {
		w.logger.WithError(err).WithField("user_id", userID).Warn("cant check open appeals")
	}
	if open {
		return ErrAlreadySubmitted
	}
	w.pending.Add(userID, pending{guildID: guildID, category: category})
	w.logger.WithFields(log.Fields{"user_id": userID, "guild_id": guildID, "category": category}).Info("appeal started")
	return nil
}

// Awaiting reports whether the next message of the user is an explanation.
func (w *Workflow) Awaiting(userID string) bool {
	return w.pending.Contains(userID)
}

// Submit consumes the pending state and posts the review. The pending state
// is cleared even when posting fails.
func (w *Workflow) Submit(ctx context.Context, userID, userName, explanation string) (*db.Appeal, error) {
	p, ok := w.pending.Get(userID)
	if !ok {
		return nil, ErrNoPendingAppeal
	}
	w.pending.Remove(userID)

	if w.opts.ReviewChannelID == "" {
		return nil, ErrNoReviewChannel
	}

	appeal := &db.Appeal{
		ID:              uuid.New(),
		UserID:          userID,
		GuildID:         p.guildID,
		Category:        p.category,
		Explanation:     strings.TrimSpace(explanation),
		State:           db.AppealSubmitted,
		ReviewChannelID: w.opts.ReviewChannelID,
		CreatedAt:       w.opts.Now(),
	}
	review := w.review(ctx, appeal, userName)
	messageID, err := w.actions.PostReview(ctx, w.opts.ReviewChannelID, review)
	if err != nil {
		return nil, fmt.Errorf("post appeal review: %w", err)
	}
	appeal.ReviewMessageID = messageID

	if err := w.store.CreateAppeal(ctx, appeal); err != nil {
		return appeal, fmt.Errorf("persist appeal: %w", err)
	}

	w.publish(appeal, userName, event.ActionAppealSubmitted, string(appeal.Category))
	return appeal, nil
}

// Accept reverses the sanction the appeal is about.
func (w *Workflow) Accept(ctx context.Context, appealID string, mod Moderator) (*db.Appeal, error) {
	w.decideMu.Lock()
	defer w.decideMu.Unlock()

	appeal, err := w.open(ctx, appealID, mod)
	if err != nil {
		return nil, err
	}
	entry := w.logger.WithFields(log.Fields{"appeal_id": appeal.ID, "user_id": appeal.UserID, "category": appeal.Category})
	guildName := w.actions.GuildName(ctx, appeal.GuildID)

	var outcome string
	switch appeal.Category {
	case db.AppealBan:
		if err := w.actions.Unban(ctx, appeal.GuildID, appeal.UserID, "Ban Appeal Accepted by "+mod.Name); err != nil {
			return nil, fmt.Errorf("unban: %w", err)
		}
		outcome = "You have been unbanned."
		invite, err := w.actions.CreateInvite(ctx, appeal.GuildID, inviteMaxAge, inviteMaxUses)
		if err != nil {
			entry.WithError(err).Warn("cant create invite")
		} else if invite != "" {
			outcome += " Here is your invite link to rejoin: " + invite
		}
	case db.AppealMute:
		if err := w.actions.RemoveMute(ctx, appeal.GuildID, appeal.UserID, "Mute Appeal Accepted by "+mod.Name); err != nil {
			return nil, fmt.Errorf("remove mute: %w", err)
		}
		outcome = "You have been unmuted."
	case db.AppealWarn:
		if _, err := w.warnings.RemoveLastWarning(ctx, appeal.UserID); err != nil {
			entry.WithError(err).Warn("cant remove last warning")
		}
		outcome = "Your last warning has been removed."
	}

	if err := w.decide(ctx, appeal, db.AppealAccepted, mod); err != nil {
		return nil, err
	}
	w.dm(ctx, appeal.UserID, fmt.Sprintf("✅ Your appeal for **%s** was **ACCEPTED**!\n%s", guildName, outcome))
	w.publish(appeal, "", event.ActionAppealAccepted, "Accepted by "+mod.Name)
	entry.Info("appeal accepted")
	return appeal, nil
}

func (w *Workflow) Decline(ctx context.Context, appealID string, mod Moderator) (*db.Appeal, error) {
	w.decideMu.Lock()
	defer w.decideMu.Unlock()

	appeal, err := w.open(ctx, appealID, mod)
	if err != nil {
		return nil, err
	}
	if err := w.decide(ctx, appeal, db.AppealDeclined, mod); err != nil {
		return nil, err
	}
	guildName := w.actions.GuildName(ctx, appeal.GuildID)
	w.dm(ctx, appeal.UserID, fmt.Sprintf("❌ Your appeal for **%s** was **DECLINED**.", guildName))
	w.publish(appeal, "", event.ActionAppealDeclined, "Declined by "+mod.Name)
	w.logger.WithFields(log.Fields{"appeal_id": appeal.ID, "user_id": appeal.UserID}).Info("appeal declined")
	return appeal, nil
}

func (w *Workflow) open(ctx context.Context, appealID string, mod Moderator) (*db.Appeal, error) {
	if !mod.CanManageGuild {
		return nil, perrors.ErrNoPermission
	}
	appeal, err := w.store.GetAppeal(ctx, appealID)
	if err != nil {
		return nil, fmt.Errorf("load appeal: %w", err)
	}
	if appeal == nil {
		return nil, ErrAppealNotFound
	}
	if appeal.State.Terminal() {
		return nil, ErrAppealClosed
	}
	return appeal, nil
}

func (w *Workflow) decide(ctx context.Context, appeal *db.Appeal, state db.AppealState, mod Moderator) error {
	now := w.opts.Now()
	appeal.State = state
	appeal.ModeratorID = mod.ID
	appeal.DecidedAt = &now
	if err := w.store.UpdateAppeal(ctx, appeal); err != nil {
		return fmt.Errorf("persist decision: %w", err)
	}
	if appeal.ReviewMessageID != "" {
		review := w.review(ctx, appeal, "")
		if err := w.actions.CloseReview(ctx, appeal.ReviewChannelID, appeal.ReviewMessageID, review); err != nil {
			w.logger.WithError(err).WithField("appeal_id", appeal.ID).Warn("cant close review message")
		}
	}
	return nil
}

func (w *Workflow) review(ctx context.Context, appeal *db.Appeal, userName string) Review {
	return Review{
		AppealID:    appeal.ID,
		UserID:      appeal.UserID,
		UserName:    userName,
		GuildName:   w.actions.GuildName(ctx, appeal.GuildID),
		Category:    appeal.Category,
		Explanation: appeal.Explanation,
		State:       appeal.State,
		ModeratorID: appeal.ModeratorID,
	}
}

func (w *Workflow) dm(ctx context.Context, userID, text string) {
	if err := w.actions.SendDM(ctx, userID, text); err != nil {
		w.logger.WithError(err).WithField("user_id", userID).Debug("cant dm user")
	}
}

func (w *Workflow) publish(appeal *db.Appeal, userName string, action event.Action, reason string) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(event.Record{
		GuildID:  appeal.GuildID,
		UserID:   appeal.UserID,
		UserName: userName,
		Action:   action,
		Reason:   reason,
	})
}
