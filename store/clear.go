package store

import (
	"context"
	"fmt"
)

// clearOrder deletes children before parents so the statements pass with
// foreign_keys ON. Chat and block data has no source-side counterpart but
// references users, so a full replace drops it too.
var clearOrder = []string{
	"message_attachments",
	"messages",
	"chat_participants",
	"chats",
	"blocked_users",
	"votes",
	"poll_options",
	"polls",
	"likes",
	"error_reports",
	"news",
	"points_history",
	"users",
}

// ClearSyncedTables empties every table a full replace repopulates, in one
// transaction. points_settings and visits survive.
func (s *Store) ClearSyncedTables(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: clear: begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range clearOrder {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("store: clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: clear: commit: %w", err)
	}
	return nil
}
