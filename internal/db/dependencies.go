package db

import (
	"context"
	"time"
)

type Client interface {
	Close() error

	GetWarnings(ctx context.Context, userID string) (*WarningRecord, error)
	SaveWarnings(ctx context.Context, record *WarningRecord) error

	CreateAppeal(ctx context.Context, appeal *Appeal) error
	GetAppeal(ctx context.Context, id string) (*Appeal, error)
	UpdateAppeal(ctx context.Context, appeal *Appeal) error
	HasOpenAppeal(ctx context.Context, userID string, category AppealCategory) (bool, error)

	SaveChallenge(ctx context.Context, challenge *CaptchaChallenge) error
	GetChallenge(ctx context.Context, userID string) (*CaptchaChallenge, error)
	DeleteChallenge(ctx context.Context, userID string) error
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)

	AppendModerationLog(ctx context.Context, entry *ModerationLogEntry) error
	ListModerationLog(ctx context.Context, userID string, limit int) ([]*ModerationLogEntry, error)
}
