package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/prime/internal/event"
)

// Member is a user that just joined a guild.
type Member struct {
	GuildID   string
	GuildName string
	UserID    string
	UserName  string
	CreatedAt time.Time
	IsBot     bool
}

type JoinActions interface {
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	PostToChannel(ctx context.Context, channelID, text string) error
	SendVerificationPrompt(ctx context.Context, guildID, guildName, userID string) error
}

type JoinOptions struct {
	UnverifiedRoleID string
	ModLogChannelID  string
	RaidThreshold    int
	RaidWindow       time.Duration
	NewAccountAge    time.Duration
	Now              func() time.Time
}

// JoinResult reports which alerts a join raised.
type JoinResult struct {
	Raid       bool
	RaidSize   int
	NewAccount bool
}

// JoinGuard gates new members behind verification and watches for raids.
type JoinGuard struct {
	actions JoinActions
	bus     Publisher
	opts    JoinOptions

	mu    sync.Mutex
	joins map[string][]time.Time

	logger *log.Entry
}

func NewJoinGuard(actions JoinActions, bus Publisher, opts JoinOptions) *JoinGuard {
	if opts.RaidThreshold <= 0 {
		opts.RaidThreshold = 5
	}
	if opts.RaidWindow <= 0 {
		opts.RaidWindow = time.Minute
	}
	if opts.NewAccountAge <= 0 {
		opts.NewAccountAge = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &JoinGuard{
		actions: actions,
		bus:     bus,
		opts:    opts,
		joins:   make(map[string][]time.Time),
		logger:  log.WithField("object", "JoinGuard"),
	}
}

func (g *JoinGuard) HandleJoin(ctx context.Context, m Member) JoinResult {
	if m.IsBot {
		return JoinResult{}
	}
	entry := g.logger.WithFields(log.Fields{"guild_id": m.GuildID, "user_id": m.UserID})
	now := g.opts.Now()
	var res JoinResult

	if size := g.recordJoin(m.GuildID, now); size >= g.opts.RaidThreshold {
		res.Raid, res.RaidSize = true, size
		entry.WithField("joins", size).Warn("potential raid detected")
		g.alert(ctx, fmt.Sprintf("🚨 **POTENTIAL RAID DETECTED**\n**%d users joined simultaneously in the last minute**\n\nLatest: <@%s>", size, m.UserID))
		g.publish(m, event.ActionRaidAlert, fmt.Sprintf("%d joins in %s", size, g.opts.RaidWindow))
	}

	if g.opts.UnverifiedRoleID != "" {
		if err := g.actions.AddRole(ctx, m.GuildID, m.UserID, g.opts.UnverifiedRoleID); err != nil {
			entry.WithError(err).Error("cant assign unverified role")
		}
	}
	if err := g.actions.SendVerificationPrompt(ctx, m.GuildID, m.GuildName, m.UserID); err != nil {
		entry.WithError(err).Debug("cant send verification prompt")
	}

	if !m.CreatedAt.IsZero() {
		if age := now.Sub(m.CreatedAt); age < g.opts.NewAccountAge {
			res.NewAccount = true
			days := int(age.Hours() / 24)
			g.alert(ctx, fmt.Sprintf("⚠️ **New Account Join**\n<@%s> joined with a **%d-day-old** account", m.UserID, days))
			g.publish(m, event.ActionNewAccount, fmt.Sprintf("%d-day-old account", days))
			entry.WithField("days", days).Info("new account joined")
		}
	}
	return res
}

func (g *JoinGuard) recordJoin(guildID string, now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	since := now.Add(-g.opts.RaidWindow)
	recent := g.joins[guildID][:0]
	for _, at := range g.joins[guildID] {
		if at.After(since) {
			recent = append(recent, at)
		}
	}
	recent = append(recent, now)
	g.joins[guildID] = recent
	return len(recent)
}

func (g *JoinGuard) alert(ctx context.Context, text string) {
	if g.opts.ModLogChannelID == "" {
		return
	}
	if err := g.actions.PostToChannel(ctx, g.opts.ModLogChannelID, text); err != nil {
		g.logger.WithError(err).Warn("cant post join alert")
	}
}

func (g *JoinGuard) publish(m Member, action event.Action, reason string) {
	if g.bus == nil {
		return
	}
	g.bus.Publish(event.Record{GuildID: m.GuildID, UserID: m.UserID, UserName: m.UserName, Action: action, Reason: reason})
}
