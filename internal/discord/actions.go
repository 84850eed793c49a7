package discord

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/iamwavecut/prime/internal/moderation/appeal"
	"github.com/iamwavecut/prime/internal/moderation/sanction"
)

var _ sanction.Actions = (*Adapter)(nil)

const maxPurgeDays = 7

// DeleteMessage deletes a message from a channel
func (a *Adapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return call(ctx, func() error {
		return a.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	})
}

// TimeoutUser puts a member into Discord's native timeout
func (a *Adapter) TimeoutUser(ctx context.Context, guildID, userID string, d time.Duration, reason string) error {
	until := time.Now().Add(d)
	return call(ctx, func() error {
		return a.session.GuildMemberTimeout(guildID, userID, &until, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	})
}

// BanUser bans a member and deletes their recent messages
func (a *Adapter) BanUser(ctx context.Context, guildID, userID, reason string, purge time.Duration) error {
	return call(ctx, func() error {
		return a.session.GuildBanCreateWithReason(guildID, userID, reason, purgeDays(purge), discordgo.WithContext(ctx))
	})
}

// SendDM opens a direct channel and sends text, optionally with an appeal button
func (a *Adapter) SendDM(ctx context.Context, userID, text string, offer *sanction.AppealOffer) error {
	msg := &discordgo.MessageSend{Content: text}
	if offer != nil {
		msg.Components = appealButton(offer.GuildID, offer.Category)
	}
	return a.sendDirect(ctx, userID, msg)
}

// PostToChannel sends plain text to a channel
func (a *Adapter) PostToChannel(ctx context.Context, channelID, text string) error {
	_, err := rest(ctx, func() (*discordgo.Message, error) {
		return a.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	})
	return err
}

// PostTransient sends text that removes itself after ttl
func (a *Adapter) PostTransient(ctx context.Context, channelID, text string, ttl time.Duration) error {
	msg, err := rest(ctx, func() (*discordgo.Message, error) {
		return a.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	})
	if err != nil {
		return err
	}
	time.AfterFunc(ttl, func() {
		if err := a.session.ChannelMessageDelete(channelID, msg.ID); err != nil {
			a.logger.WithError(err).WithField("channel_id", channelID).Debug("cant delete transient message")
		}
	})
	return nil
}

// AddRole grants a role to a member
func (a *Adapter) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return call(ctx, func() error {
		return a.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
	})
}

// RemoveRole takes a role away from a member
func (a *Adapter) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	return call(ctx, func() error {
		return a.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
	})
}

// SendVerificationPrompt DMs a new member the button that starts the captcha
func (a *Adapter) SendVerificationPrompt(ctx context.Context, guildID, guildName, userID string) error {
	return a.sendDirect(ctx, userID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{welcomeEmbed(guildName)},
		Components: verifyButton(guildID),
	})
}

// GuildName resolves a guild name, falling back to a generic label
func (a *Adapter) GuildName(ctx context.Context, guildID string) string {
	if name := a.guild(ctx, guildID).name; name != "" {
		return name
	}
	return "the server"
}

func (a *Adapter) sendDirect(ctx context.Context, userID string, msg *discordgo.MessageSend) error {
	ch, err := rest(ctx, func() (*discordgo.Channel, error) {
		return a.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	})
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	_, err = a.session.ChannelMessageSendComplex(ch.ID, msg, discordgo.WithContext(ctx))
	return err
}

// Appeals exposes the adapter as the appeal workflow capability.
func (a *Adapter) Appeals() appeal.Actions {
	return appealActions{a}
}

type appealActions struct {
	*Adapter
}

var _ appeal.Actions = appealActions{}

func (a appealActions) Unban(ctx context.Context, guildID, userID, reason string) error {
	return call(ctx, func() error {
		return a.session.GuildBanDelete(guildID, userID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	})
}

// RemoveMute clears the native timeout and the muted role.
func (a appealActions) RemoveMute(ctx context.Context, guildID, userID, reason string) error {
	err := call(ctx, func() error {
		return a.session.GuildMemberTimeout(guildID, userID, nil, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	})
	if err != nil {
		return err
	}
	if a.config.MutedRoleID == "" {
		return nil
	}
	return call(ctx, func() error {
		return a.session.GuildMemberRoleRemove(guildID, userID, a.config.MutedRoleID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	})
}

// CreateInvite makes a limited invite on the first text channel of the guild.
func (a appealActions) CreateInvite(ctx context.Context, guildID string, maxAge time.Duration, maxUses int) (string, error) {
	channels, err := rest(ctx, func() ([]*discordgo.Channel, error) {
		return a.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	})
	if err != nil {
		return "", fmt.Errorf("list channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		invite, err := a.session.ChannelInviteCreate(ch.ID, discordgo.Invite{
			MaxAge:  int(maxAge.Seconds()),
			MaxUses: maxUses,
			Unique:  true,
		}, discordgo.WithContext(ctx))
		if err != nil {
			a.logger.WithError(err).WithField("channel_id", ch.ID).Debug("cant create invite")
			continue
		}
		return "https://discord.gg/" + invite.Code, nil
	}
	return "", errNoTextChannel
}

func (a appealActions) SendDM(ctx context.Context, userID, text string) error {
	return a.sendDirect(ctx, userID, &discordgo.MessageSend{Content: text})
}

func (a appealActions) PostReview(ctx context.Context, channelID string, review appeal.Review) (string, error) {
	msg, err := rest(ctx, func() (*discordgo.Message, error) {
		return a.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{reviewEmbed(review)},
			Components: reviewButtons(review.AppealID),
		}, discordgo.WithContext(ctx))
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// CloseReview replaces the review buttons with the decision.
func (a appealActions) CloseReview(ctx context.Context, channelID, messageID string, review appeal.Review) error {
	embeds := []*discordgo.MessageEmbed{reviewEmbed(review)}
	components := []discordgo.MessageComponent{}
	_, err := rest(ctx, func() (*discordgo.Message, error) {
		return a.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
			ID:         messageID,
			Channel:    channelID,
			Embeds:     &embeds,
			Components: &components,
		}, discordgo.WithContext(ctx))
	})
	return err
}

func purgeDays(purge time.Duration) int {
	days := int(math.Ceil(purge.Hours() / 24))
	switch {
	case days < 0:
		return 0
	case days > maxPurgeDays:
		return maxPurgeDays
	}
	return days
}
