package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PruneHistory deletes collection snapshots created before now-retention
// and returns how many were removed. The newest snapshot of a collection is
// kept even when it is older than the cutoff.
func PruneHistory(ctx context.Context, db *sql.DB, retention time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-retention)
	res, err := db.ExecContext(ctx, `
		DELETE FROM collection_history h
		 WHERE h.created_at < $1
		   AND h.version < (SELECT c.version FROM collections c WHERE c.name = h.name)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

// StartHistoryPruner runs PruneHistory every interval until ctx is done.
func StartHistoryPruner(
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
			case now := <-ticker.C:
				removed, err := PruneHistory(ctx, db, retention, now)
				if err != nil {
					log.Error("failed to prune collection history", zap.Error(err))
					continue
				}
				if removed > 0 {
					log.Info("pruned collection history",
						zap.Int64("removed", removed),
						zap.Duration("retention", retention),
					)
				}
			}
		}
	}()
}
