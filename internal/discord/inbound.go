package discord

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/prime/internal/handlers/moderation"
	"github.com/iamwavecut/prime/internal/policy/permissions"
)

// MessageToInput converts a gateway message into the guard's view of it.
func (a *Adapter) MessageToInput(ctx context.Context, m *discordgo.MessageCreate) (*moderation.Message, error) {
	if m == nil || m.Message == nil || m.Author == nil {
		return nil, ErrNoAuthor
	}
	msg := &moderation.Message{
		ID:         m.ID,
		GuildID:    m.GuildID,
		ChannelID:  m.ChannelID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		Text:       m.Content,
		IsBot:      m.Author.Bot,
		IsDM:       m.GuildID == "",
		At:         m.Timestamp,
	}
	for _, att := range m.Attachments {
		if att == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, moderation.Attachment{
			URL:         att.URL,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Size:        int64(att.Size),
		})
	}
	if msg.IsDM || msg.IsBot {
		return msg, nil
	}

	info := a.guild(ctx, m.GuildID)
	msg.GuildName = info.name
	perms, err := a.session.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		a.logger.WithError(err).WithField("user_id", m.Author.ID).Debug("cant resolve permissions")
	}
	msg.IsPrivileged = permissions.IsPrivilegedModerator(perms, info.ownerID != "" && info.ownerID == m.Author.ID)
	return msg, nil
}

func (a *Adapter) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	guard := a.bound().Guard
	if guard == nil {
		return
	}
	ctx := a.runContext()
	msg, err := a.MessageToInput(ctx, m)
	if err != nil {
		a.logger.WithError(err).Debug("skipping message")
		return
	}
	res, err := guard.HandleMessage(ctx, msg)
	entry := a.logger.WithFields(log.Fields{"message_id": msg.ID, "user_id": msg.AuthorID, "stage": res.Stage})
	if err != nil {
		entry.WithError(err).Error("cant process message")
		return
	}
	if res.Handled {
		entry.WithField("action", res.Outcome.Action).Debug("message moderated")
	}
}

func (a *Adapter) onMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	joins := a.bound().Joins
	if joins == nil || m == nil || m.Member == nil || m.User == nil {
		return
	}
	ctx := a.runContext()
	created, _ := discordgo.SnowflakeTimestamp(m.User.ID)
	joins.HandleJoin(ctx, moderation.Member{
		GuildID:   m.GuildID,
		GuildName: a.guild(ctx, m.GuildID).name,
		UserID:    m.User.ID,
		UserName:  m.User.Username,
		CreatedAt: created,
		IsBot:     m.User.Bot,
	})
}

func (a *Adapter) onInteraction(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	if i == nil || i.Interaction == nil {
		return
	}
	ctx := a.runContext()
	var err error
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		err = a.handleComponent(ctx, i.Interaction)
	case discordgo.InteractionModalSubmit:
		if i.ModalSubmitData().CustomID == customCaptchaModal {
			err = a.handleCaptchaModal(ctx, i.Interaction)
		}
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name == commandVerify {
			err = a.startCaptcha(ctx, i.Interaction, i.GuildID)
		}
	}
	if err != nil {
		a.logger.WithError(err).WithField("interaction_id", i.ID).Warn("cant handle interaction")
	}
}

func (a *Adapter) handleComponent(ctx context.Context, i *discordgo.Interaction) error {
	prefix, rest := parseCustomID(i.MessageComponentData().CustomID)
	switch prefix {
	case prefixAppeal:
		if len(rest) != 2 {
			return nil
		}
		return a.beginAppeal(ctx, i, rest[0], rest[1])
	case prefixReviewAccept, prefixReviewDecline:
		if len(rest) != 1 {
			return nil
		}
		return a.reviewAppeal(ctx, i, rest[0], prefix == prefixReviewAccept)
	case prefixCaptchaStart:
		if len(rest) != 1 {
			return nil
		}
		return a.startCaptcha(ctx, i, rest[0])
	case customCaptchaEnter:
		return a.session.InteractionRespond(i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: captchaModal(),
		})
	}
	return nil
}

func (a *Adapter) reply(i *discordgo.Interaction, text string) error {
	return a.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: text, Flags: discordgo.MessageFlagsEphemeral},
	})
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func modalValue(data discordgo.ModalSubmitInteractionData, id string) string {
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok && input.CustomID == id {
				return strings.TrimSpace(input.Value)
			}
		}
	}
	return ""
}

func accountCreated(userID string) time.Time {
	created, err := discordgo.SnowflakeTimestamp(userID)
	if err != nil {
		return time.Time{}
	}
	return created
}

var errUnbound = errors.New("handler is not bound")
