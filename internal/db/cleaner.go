package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// StartChatCleaner periodically deletes step chats that have not been
// updated within retention. It stops when ctx is done.
func StartChatCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-retention)
				res, err := db.ExecContext(ctx, `
                    DELETE FROM step_chats
                     WHERE updated_at < $1
                `, cutoff)
				if err != nil {
					log.Error("failed to clean stale step chats", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("cleaned stale step chats", zap.Int64("removed", rows))
				}
			}
		}
	}()
}
