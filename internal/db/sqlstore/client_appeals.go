package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iamwavecut/prime/internal/db"
)

const appealColumns = `id, user_id, guild_id, category, explanation, state, review_channel_id,
	review_message_id, moderator_id, created_at, decided_at`

func (c *Client) CreateAppeal(ctx context.Context, appeal *db.Appeal) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, c.rebind(`
		INSERT INTO appeals (`+appealColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		appeal.ID,
		appeal.UserID,
		appeal.GuildID,
		appeal.Category,
		appeal.Explanation,
		appeal.State,
		appeal.ReviewChannelID,
		appeal.ReviewMessageID,
		appeal.ModeratorID,
		appeal.CreatedAt.UTC(),
		utcOrNil(appeal.DecidedAt),
	)
	if err != nil {
		return fmt.Errorf("create appeal %s: %w", appeal.ID, err)
	}
	return nil
}

// GetAppeal returns nil when the id is unknown.
func (c *Client) GetAppeal(ctx context.Context, id string) (*db.Appeal, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var appeal db.Appeal
	err := c.db.GetContext(ctx, &appeal, c.rebind(`SELECT `+appealColumns+` FROM appeals WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get appeal %s: %w", id, err)
	}
	return &appeal, nil
}

func (c *Client) UpdateAppeal(ctx context.Context, appeal *db.Appeal) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, c.rebind(`
		UPDATE appeals
		SET explanation = ?,
			state = ?,
			review_channel_id = ?,
			review_message_id = ?,
			moderator_id = ?,
			decided_at = ?
		WHERE id = ?
	`),
		appeal.Explanation,
		appeal.State,
		appeal.ReviewChannelID,
		appeal.ReviewMessageID,
		appeal.ModeratorID,
		utcOrNil(appeal.DecidedAt),
		appeal.ID,
	)
	if err != nil {
		return fmt.Errorf("update appeal %s: %w", appeal.ID, err)
	}
	return nil
}

// HasOpenAppeal reports whether the user already has an appeal of the given
// category waiting for a moderator.
func (c *Client) HasOpenAppeal(ctx context.Context, userID string, category db.AppealCategory) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var count int
	err := c.db.GetContext(ctx, &count, c.rebind(`
		SELECT COUNT(*) FROM appeals WHERE user_id = ? AND category = ? AND state = ?
	`), userID, category, db.AppealSubmitted)
	if err != nil {
		return false, fmt.Errorf("count open appeals for %s: %w", userID, err)
	}
	return count > 0, nil
}

func utcOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
