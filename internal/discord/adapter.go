package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/prime/internal/db"
	"github.com/iamwavecut/prime/internal/handlers/moderation"
	"github.com/iamwavecut/prime/internal/moderation/appeal"
	"github.com/iamwavecut/prime/internal/verification"
)

const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// session abstracts the discordgo.Session methods the adapter uses.
// *discordgo.Session satisfies this interface.
type session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error

	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)

	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildMemberTimeout(guildID string, userID string, until *time.Time, options ...discordgo.RequestOption) error
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error
	GuildBanDelete(guildID, userID string, options ...discordgo.RequestOption) error
	ChannelInviteCreate(channelID string, i discordgo.Invite, options ...discordgo.RequestOption) (*discordgo.Invite, error)

	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	ApplicationCommandCreate(appID string, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
}

type Config struct {
	Token       string
	MutedRoleID string
}

// MessageGuard moderates inbound messages.
type MessageGuard interface {
	HandleMessage(ctx context.Context, msg *moderation.Message) (moderation.Result, error)
}

type JoinGuard interface {
	HandleJoin(ctx context.Context, m moderation.Member) moderation.JoinResult
}

type AppealFlow interface {
	Begin(ctx context.Context, userID, guildID string, category db.AppealCategory) error
	Accept(ctx context.Context, appealID string, mod appeal.Moderator) (*db.Appeal, error)
	Decline(ctx context.Context, appealID string, mod appeal.Moderator) (*db.Appeal, error)
}

type Verifier interface {
	Start(ctx context.Context, userID, guildID string) (*verification.Challenge, error)
	Verify(ctx context.Context, userID, input string, accountCreated time.Time) (verification.Result, error)
}

// Handlers are bound after construction because they depend on the adapter
// for their own actions.
type Handlers struct {
	Guard    MessageGuard
	Joins    JoinGuard
	Appeals  AppealFlow
	Verifier Verifier
}

type AdapterOption func(adapter *Adapter)

// WithSession injects a pre-configured session.
func WithSession(s session) AdapterOption {
	return func(adapter *Adapter) {
		adapter.session = s
	}
}

type guildInfo struct {
	name    string
	ownerID string
}

// Adapter connects the moderation core to the Discord gateway and REST API.
type Adapter struct {
	config   Config
	session  session
	handlers Handlers
	guilds   *expirable.LRU[string, guildInfo]

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	removes []func()

	logger *log.Entry
}

func NewAdapter(config Config, options ...AdapterOption) (*Adapter, error) {
	adapter := &Adapter{
		config: config,
		guilds: expirable.NewLRU[string, guildInfo](1024, nil, 10*time.Minute),
		ctx:    context.Background(),
		logger: log.WithField("object", "DiscordAdapter"),
	}
	for _, opt := range options {
		opt(adapter)
	}

	if adapter.session == nil {
		if config.Token == "" {
			return nil, ErrEmptyToken
		}
		s, err := discordgo.New("Bot " + config.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to create Discord session: %w", err)
		}
		s.Identify.Intents = Intents
		adapter.session = s
	}
	return adapter, nil
}

func (a *Adapter) Bind(h Handlers) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers = h
}

// Start registers the event handlers and opens the gateway connection.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	a.ctx, a.cancel = context.WithCancel(context.WithoutCancel(ctx))
	a.removes = append(a.removes,
		a.session.AddHandler(a.onReady),
		a.session.AddHandler(a.onMessageCreate),
		a.session.AddHandler(a.onMemberAdd),
		a.session.AddHandler(a.onInteraction),
	)
	a.mu.Unlock()

	if err := a.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	a.logger.Info("discord session opened")
	return nil
}

func (a *Adapter) Stop(context.Context) error {
	a.mu.Lock()
	for _, remove := range a.removes {
		remove()
	}
	a.removes = nil
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Unlock()

	if err := a.session.Close(); err != nil {
		return fmt.Errorf("failed to close Discord session: %w", err)
	}
	return nil
}

func (a *Adapter) runContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctx
}

func (a *Adapter) bound() Handlers {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handlers
}

func (a *Adapter) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r == nil || r.User == nil {
		return
	}
	entry := a.logger.WithFields(log.Fields{"user": r.User.Username, "guilds": len(r.Guilds)})
	entry.Info("connected to gateway")
	if _, err := a.session.ApplicationCommandCreate(r.User.ID, "", verifyCommand); err != nil {
		entry.WithError(err).Warn("cant register verify command")
	}
}

func (a *Adapter) guild(ctx context.Context, guildID string) guildInfo {
	if info, ok := a.guilds.Get(guildID); ok {
		return info
	}
	g, err := rest(ctx, func() (*discordgo.Guild, error) {
		return a.session.Guild(guildID, discordgo.WithContext(ctx))
	})
	if err != nil || g == nil {
		a.logger.WithError(err).WithField("guild_id", guildID).Debug("cant load guild")
		return guildInfo{}
	}
	info := guildInfo{name: g.Name, ownerID: g.OwnerID}
	a.guilds.Add(guildID, info)
	return info
}
