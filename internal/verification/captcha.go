package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/prime/internal/db"
	"github.com/iamwavecut/prime/internal/event"
)

var (
	ErrChallengeNotFound = errors.New("no captcha challenge")
	ErrChallengeExpired  = errors.New("captcha challenge expired")
	ErrTooManyAttempts   = errors.New("too many captcha attempts")
	ErrWrongCode         = errors.New("wrong captcha code")
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6

	DefaultTTL         = 10 * time.Minute
	DefaultMaxAttempts = 3
	DefaultAccountAge  = 30 * 24 * time.Hour
)

type Store interface {
	SaveChallenge(ctx context.Context, challenge *db.CaptchaChallenge) error
	GetChallenge(ctx context.Context, userID string) (*db.CaptchaChallenge, error)
	DeleteChallenge(ctx context.Context, userID string) error
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}

// Roles changes member roles after a solved challenge.
type Roles interface {
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
}

type Publisher interface {
	Publish(record event.Record)
}

type Options struct {
	TTL              time.Duration
	MaxAttempts      int
	AccountAge       time.Duration
	UnverifiedRoleID string
	VerifiedRoleID   string
	MutedRoleID      string
	Now              func() time.Time
}

// Challenge is handed to the user: the image carries the code.
type Challenge struct {
	Code      string
	ImageName string
	Image     []byte
	ExpiresAt time.Time
}

// Result describes a solved challenge.
type Result struct {
	GuildID string
	Muted   bool
}

type Service struct {
	store  Store
	roles  Roles
	bus    Publisher
	opts   Options
	mu     sync.Mutex
	logger *log.Entry
}

func NewService(store Store, roles Roles, bus Publisher, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.AccountAge <= 0 {
		opts.AccountAge = DefaultAccountAge
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:  store,
		roles:  roles,
		bus:    bus,
		opts:   opts,
		logger: log.WithField("object", "Verification"),
	}
}

// Start issues a fresh challenge, replacing any previous one of the user.
func (s *Service) Start(ctx context.Context, userID, guildID string) (*Challenge, error) {
	code, err := newCode()
	if err != nil {
		return nil, fmt.Errorf("generate captcha code: %w", err)
	}
	image, err := Render(code)
	if err != nil {
		return nil, fmt.Errorf("render captcha: %w", err)
	}

	now := s.opts.Now()
	record := &db.CaptchaChallenge{
		UserID:    userID,
		GuildID:   guildID,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.TTL),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.SaveChallenge(ctx, record); err != nil {
		return nil, fmt.Errorf("save challenge: %w", err)
	}
	s.logger.WithFields(log.Fields{"user_id": userID, "guild_id": guildID}).Debug("captcha issued")

	return &Challenge{
		Code:      code,
		ImageName: "captcha-" + uuid.New() + ".png",
		Image:     image,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Verify checks the input of the user. accountCreated decides whether the
// fresh member is muted after passing.
func (s *Service) Verify(ctx context.Context, userID, input string, accountCreated time.Time) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, err := s.store.GetChallenge(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("load challenge: %w", err)
	}
	if challenge == nil {
		return Result{}, ErrChallengeNotFound
	}
	entry := s.logger.WithFields(log.Fields{"user_id": userID, "guild_id": challenge.GuildID})

	now := s.opts.Now()
	if !now.Before(challenge.ExpiresAt) {
		s.discard(ctx, userID)
		return Result{}, ErrChallengeExpired
	}

	if strings.ToUpper(strings.TrimSpace(input)) != challenge.Code {
		challenge.Attempts++
		if challenge.Attempts >= s.opts.MaxAttempts {
			s.discard(ctx, userID)
			s.publish(challenge.GuildID, userID, event.ActionCaptchaFailed, "Too many attempts")
			entry.Info("captcha attempts exhausted")
			return Result{}, ErrTooManyAttempts
		}
		if err := s.store.SaveChallenge(ctx, challenge); err != nil {
			entry.WithError(err).Warn("cant save attempt")
		}
		return Result{}, fmt.Errorf("%w: %d attempts left", ErrWrongCode, s.opts.MaxAttempts-challenge.Attempts)
	}

	s.discard(ctx, userID)
	result := Result{GuildID: challenge.GuildID}
	if err := s.applyRoles(ctx, challenge.GuildID, userID); err != nil {
		return result, err
	}
	if s.opts.MutedRoleID != "" && !accountCreated.IsZero() && now.Sub(accountCreated) < s.opts.AccountAge {
		if err := s.roles.AddRole(ctx, challenge.GuildID, userID, s.opts.MutedRoleID); err != nil {
			entry.WithError(err).Warn("cant mute young account")
		} else {
			result.Muted = true
		}
	}
	s.publish(challenge.GuildID, userID, event.ActionCaptchaPassed, "")
	entry.WithField("muted", result.Muted).Info("captcha passed")
	return result, nil
}

// Sweep removes expired challenges.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.DeleteExpiredChallenges(ctx, s.opts.Now())
}

func (s *Service) applyRoles(ctx context.Context, guildID, userID string) error {
	if s.opts.UnverifiedRoleID != "" {
		if err := s.roles.RemoveRole(ctx, guildID, userID, s.opts.UnverifiedRoleID); err != nil {
			return fmt.Errorf("remove unverified role: %w", err)
		}
	}
	if s.opts.VerifiedRoleID != "" {
		if err := s.roles.AddRole(ctx, guildID, userID, s.opts.VerifiedRoleID); err != nil {
			return fmt.Errorf("add verified role: %w", err)
		}
	}
	return nil
}

func (s *Service) discard(ctx context.Context, userID string) {
	if err := s.store.DeleteChallenge(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("cant delete challenge")
	}
}

func (s *Service) publish(guildID, userID string, action event.Action, reason string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.Record{GuildID: guildID, UserID: userID, Action: action, Reason: reason})
}

func newCode() (string, error) {
	limit := big.NewInt(int64(len(codeAlphabet)))
	var b strings.Builder
	b.Grow(codeLength)
	for range codeLength {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
