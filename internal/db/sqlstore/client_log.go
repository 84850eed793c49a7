package sqlstore

import (
	"context"
	"fmt"

	"github.com/iamwavecut/prime/internal/db"
)

func (c *Client) AppendModerationLog(ctx context.Context, entry *db.ModerationLogEntry) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, c.rebind(`
		INSERT INTO moderation_log (id, guild_id, user_id, action, reason, warning_count, failed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`),
		entry.ID,
		entry.GuildID,
		entry.UserID,
		entry.Action,
		entry.Reason,
		entry.WarningCount,
		entry.Failed,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append moderation log: %w", err)
	}
	return nil
}

// ListModerationLog returns the newest entries for a user first.
func (c *Client) ListModerationLog(ctx context.Context, userID string, limit int) ([]*db.ModerationLogEntry, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	var entries []*db.ModerationLogEntry
	err := c.db.SelectContext(ctx, &entries, c.rebind(`
		SELECT id, guild_id, user_id, action, reason, warning_count, failed, created_at
		FROM moderation_log
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list moderation log for %s: %w", userID, err)
	}
	return entries, nil
}
