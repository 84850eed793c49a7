package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/iamwavecut/prime/internal/db"
	perrors "github.com/iamwavecut/prime/internal/errors"
	"github.com/iamwavecut/prime/internal/moderation/appeal"
	"github.com/iamwavecut/prime/internal/policy/permissions"
	"github.com/iamwavecut/prime/internal/verification"
)

func (a *Adapter) beginAppeal(ctx context.Context, i *discordgo.Interaction, rawCategory, guildID string) error {
	flow := a.bound().Appeals
	user := interactionUser(i)
	if flow == nil || user == nil {
		return errUnbound
	}
	category, ok := db.ParseAppealCategory(rawCategory)
	if !ok {
		return a.reply(i, "❌ Unknown appeal type.")
	}
	switch err := flow.Begin(ctx, user.ID, guildID, category); {
	case errors.Is(err, appeal.ErrAlreadySubmitted):
		return a.reply(i, "⏳ Your appeal is already waiting for a moderator decision.")
	case err != nil:
		return err
	}
	return a.reply(i, appeal.Prompt(category))
}

func (a *Adapter) reviewAppeal(ctx context.Context, i *discordgo.Interaction, appealID string, accept bool) error {
	flow := a.bound().Appeals
	if flow == nil || i.Member == nil || i.Member.User == nil {
		return errUnbound
	}
	owner := a.guild(ctx, i.GuildID).ownerID == i.Member.User.ID
	mod := appeal.Moderator{
		ID:             i.Member.User.ID,
		Name:           i.Member.User.Username,
		CanManageGuild: permissions.IsManager(i.Member.Permissions, owner),
	}

	decide := flow.Decline
	verb := "declined"
	if accept {
		decide, verb = flow.Accept, "accepted"
	}
	_, err := decide(ctx, appealID, mod)
	switch {
	case errors.Is(err, perrors.ErrNoPermission):
		return a.reply(i, "❌ You need the Manage Server permission to review appeals.")
	case errors.Is(err, appeal.ErrAppealClosed):
		return a.reply(i, "This appeal was already decided.")
	case errors.Is(err, appeal.ErrAppealNotFound):
		return a.reply(i, "❌ This appeal no longer exists.")
	case err != nil:
		_ = a.reply(i, "❌ Error processing appeal: "+err.Error())
		return err
	}
	return a.reply(i, fmt.Sprintf("Appeal %s.", verb))
}

func (a *Adapter) startCaptcha(ctx context.Context, i *discordgo.Interaction, guildID string) error {
	verifier := a.bound().Verifier
	user := interactionUser(i)
	if verifier == nil || user == nil {
		return errUnbound
	}
	if guildID == "" {
		return a.reply(i, "❌ Use this command inside the server you want to join.")
	}
	challenge, err := verifier.Start(ctx, user.ID, guildID)
	if err != nil {
		_ = a.reply(i, "❌ Could not create a captcha, please try again later.")
		return err
	}
	return a.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    "Type the code you see in the image. You have 10 minutes and 3 attempts.",
			Flags:      discordgo.MessageFlagsEphemeral,
			Components: enterCodeButton(),
			Files: []*discordgo.File{{
				Name:        challenge.ImageName,
				ContentType: "image/png",
				Reader:      bytes.NewReader(challenge.Image),
			}},
		},
	})
}

func (a *Adapter) handleCaptchaModal(ctx context.Context, i *discordgo.Interaction) error {
	verifier := a.bound().Verifier
	user := interactionUser(i)
	if verifier == nil || user == nil {
		return errUnbound
	}
	input := modalValue(i.ModalSubmitData(), customCaptchaInput)

	res, err := verifier.Verify(ctx, user.ID, input, accountCreated(user.ID))
	switch {
	case errors.Is(err, verification.ErrWrongCode):
		return a.reply(i, "❌ Incorrect code. Please try again.")
	case errors.Is(err, verification.ErrTooManyAttempts):
		return a.reply(i, "❌ Too many failed attempts. Press **Verify** to get a new captcha.")
	case errors.Is(err, verification.ErrChallengeExpired), errors.Is(err, verification.ErrChallengeNotFound):
		return a.reply(i, "⌛ Your captcha expired. Press **Verify** to get a new one.")
	case err != nil:
		_ = a.reply(i, "❌ Verification failed, please contact a moderator.")
		return err
	}

	if res.Muted {
		return a.session.InteractionRespond(i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "✅ **Captcha Passed!**\n\nHowever, your account is too new to speak yet. " +
					"You have been granted access to view channels, but you will remain muted until your account reaches the required age.\n\n" +
					"If you believe this is a mistake, you can appeal below.",
				Flags:      discordgo.MessageFlagsEphemeral,
				Components: appealButton(res.GuildID, db.AppealMute),
			},
		})
	}
	return a.reply(i, "✅ **Verification Successful!** You now have full access to the server. Welcome!")
}
