package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/iamwavecut/prime/internal/db"
	"github.com/iamwavecut/prime/internal/moderation/appeal"
)

const (
	prefixAppeal        = "appeal"
	prefixReviewAccept  = "review:accept"
	prefixReviewDecline = "review:decline"
	prefixCaptchaStart  = "captcha:start"
	customCaptchaEnter  = "captcha:enter"
	customCaptchaModal  = "captcha:modal"
	customCaptchaInput  = "captcha:code"

	commandVerify = "verify"
)

var verifyCommand = &discordgo.ApplicationCommand{
	Name:        commandVerify,
	Description: "Start the captcha verification for this server",
}

func customID(parts ...string) string {
	return strings.Join(parts, ":")
}

// parseCustomID splits "prefix:...:value" into the known prefix and the rest.
func parseCustomID(id string) (prefix string, rest []string) {
	for _, p := range []string{prefixReviewAccept, prefixReviewDecline, prefixCaptchaStart} {
		if strings.HasPrefix(id, p+":") {
			return p, strings.Split(strings.TrimPrefix(id, p+":"), ":")
		}
	}
	if strings.HasPrefix(id, prefixAppeal+":") {
		return prefixAppeal, strings.Split(strings.TrimPrefix(id, prefixAppeal+":"), ":")
	}
	return id, nil
}

func appealButton(guildID string, category db.AppealCategory) []discordgo.MessageComponent {
	label := "⚖️ Appeal Ban"
	switch category {
	case db.AppealMute:
		label = "⚖️ Appeal Mute"
	case db.AppealWarn:
		label = "⚖️ Appeal Warning"
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    label,
				Style:    discordgo.SecondaryButton,
				CustomID: customID(prefixAppeal, string(category), guildID),
			},
		}},
	}
}

func reviewButtons(appealID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "✅ Accept Appeal", Style: discordgo.SuccessButton, CustomID: customID(prefixReviewAccept, appealID)},
			discordgo.Button{Label: "❌ Decline Appeal", Style: discordgo.DangerButton, CustomID: customID(prefixReviewDecline, appealID)},
		}},
	}
}

func verifyButton(guildID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "✅ Verify", Style: discordgo.PrimaryButton, CustomID: customID(prefixCaptchaStart, guildID)},
		}},
	}
}

func enterCodeButton() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Enter Code", Style: discordgo.PrimaryButton, CustomID: customCaptchaEnter},
		}},
	}
}

func captchaModal() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: customCaptchaModal,
		Title:    "Captcha Verification",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    customCaptchaInput,
					Label:       "Type the code from the image",
					Style:       discordgo.TextInputShort,
					Placeholder: "ABC123",
					MinLength:   6,
					MaxLength:   6,
				},
			}},
		},
	}
}

func welcomeEmbed(guildName string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Welcome to %s! 👋", guildName),
		Description: "To gain access to the server, you need to complete a quick verification.\n\n" +
			"**Step 1:** Click the button below.\n" +
			"**Step 2:** Solve the captcha challenge.\n" +
			"**Step 3:** Click **'Enter Code'** and type exactly what you see in the image.\n\n" +
			"*Note: If your account is newer than 30 days, you will be muted automatically until it reaches the required age.*",
		Color: 0x00FF00,
	}
}

func reviewEmbed(r appeal.Review) *discordgo.MessageEmbed {
	title := "⚖️ New Ban Appeal Request"
	color := 0xFFFF00
	switch r.Category {
	case db.AppealMute:
		title, color = "⚖️ New Mute Appeal Request", 0x00A0FF
	case db.AppealWarn:
		title, color = "⚖️ New Warning Appeal Request", 0xFFA500
	}
	switch r.State {
	case db.AppealAccepted:
		title, color = fmt.Sprintf("✅ Appeal Accepted (%s)", r.Category), 0x00FF00
	case db.AppealDeclined:
		title, color = fmt.Sprintf("❌ Appeal Declined (%s)", r.Category), 0xFF0000
	}

	user := r.UserID
	if r.UserName != "" {
		user = fmt.Sprintf("%s (%s)", r.UserName, r.UserID)
	}
	desc := fmt.Sprintf("**User:** %s\n**Server:** %s\n**Category:** %s\n**Explanation:**\n%s",
		user, r.GuildName, r.Category, r.Explanation)
	if r.ModeratorID != "" {
		desc += fmt.Sprintf("\n\n**Reviewed by:** <@%s>", r.ModeratorID)
	}
	return &discordgo.MessageEmbed{Title: title, Description: desc, Color: color}
}
