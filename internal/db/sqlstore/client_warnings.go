package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iamwavecut/prime/internal/db"
)

// GetWarnings returns nil when the user has no record yet.
func (c *Client) GetWarnings(ctx context.Context, userID string) (*db.WarningRecord, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var record db.WarningRecord
	err := c.db.GetContext(ctx, &record, c.rebind(`
		SELECT user_id, count, history, updated_at
		FROM user_warnings
		WHERE user_id = ?
	`), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get warnings for %s: %w", userID, err)
	}
	return &record, nil
}

func (c *Client) SaveWarnings(ctx context.Context, record *db.WarningRecord) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, c.rebind(`
		INSERT INTO user_warnings (user_id, count, history, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			count = excluded.count,
			history = excluded.history,
			updated_at = excluded.updated_at
	`), record.UserID, record.Count, record.History, record.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save warnings for %s: %w", record.UserID, err)
	}
	return nil
}
