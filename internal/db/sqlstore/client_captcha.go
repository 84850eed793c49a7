package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iamwavecut/prime/internal/db"
)

func (c *Client) SaveChallenge(ctx context.Context, challenge *db.CaptchaChallenge) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, c.rebind(`
		INSERT INTO captcha_challenges (user_id, guild_id, code, attempts, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			guild_id = excluded.guild_id,
			code = excluded.code,
			attempts = excluded.attempts,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`),
		challenge.UserID,
		challenge.GuildID,
		challenge.Code,
		challenge.Attempts,
		challenge.CreatedAt.UTC(),
		challenge.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save challenge for %s: %w", challenge.UserID, err)
	}
	return nil
}

func (c *Client) GetChallenge(ctx context.Context, userID string) (*db.CaptchaChallenge, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var challenge db.CaptchaChallenge
	err := c.db.GetContext(ctx, &challenge, c.rebind(`
		SELECT user_id, guild_id, code, attempts, created_at, expires_at
		FROM captcha_challenges
		WHERE user_id = ?
	`), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get challenge for %s: %w", userID, err)
	}
	return &challenge, nil
}

func (c *Client) DeleteChallenge(ctx context.Context, userID string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, c.rebind(`DELETE FROM captcha_challenges WHERE user_id = ?`), userID)
	return err
}

func (c *Client) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, c.rebind(`DELETE FROM captcha_challenges WHERE expires_at <= ?`), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	return res.RowsAffected()
}
