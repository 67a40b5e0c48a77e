package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const syncLogColumns = `id, user_id, device_id, sync_type, direction, collections_count,
	items_count, tags_count, conflicts_resolved, skipped_count, started_at, completed_at,
	duration_ms, status, error_message`

// SyncLogRepository is append-only.
type SyncLogRepository struct {
	q sqlx.ExtContext
}

func (r *SyncLogRepository) Insert(ctx context.Context, l *SyncLog) error {
	query := r.q.Rebind(`
		INSERT INTO sync_logs (` + syncLogColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.q.ExecContext(ctx, query,
		l.ID, l.UserID, l.DeviceID, l.SyncType, l.Direction, l.CollectionsCount,
		l.ItemsCount, l.TagsCount, l.ConflictsResolved, l.SkippedCount, l.StartedAt, l.CompletedAt,
		l.DurationMs, l.Status, l.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Latest returns the most recently started sync log of a user.
func (r *SyncLogRepository) Latest(ctx context.Context, userID string) (*SyncLog, error) {
	var l SyncLog
	query := r.q.Rebind(`SELECT ` + syncLogColumns + ` FROM sync_logs
		WHERE user_id = ? ORDER BY started_at DESC, id DESC LIMIT 1`)
	if err := sqlx.GetContext(ctx, r.q, &l, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &l, nil
}

// Count returns the number of sync logs of a user.
func (r *SyncLogRepository) Count(ctx context.Context, userID string) (int64, error) {
	var n int64
	query := r.q.Rebind(`SELECT COUNT(*) FROM sync_logs WHERE user_id = ?`)
	if err := sqlx.GetContext(ctx, r.q, &n, query, userID); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// SyncStateRepository stores the last successful watermark per user.
type SyncStateRepository struct {
	q sqlx.ExtContext
}

// LastSyncAt returns the stored watermark of a user, or ErrNotFound.
func (r *SyncStateRepository) LastSyncAt(ctx context.Context, userID string) (time.Time, error) {
	var ts Timestamp
	query := r.q.Rebind(`SELECT last_sync_at FROM sync_states WHERE user_id = ?`)
	if err := sqlx.GetContext(ctx, r.q, &ts, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("db error: %w", err)
	}
	return ts.Time, nil
}

// SetLastSyncAt records the watermark of a user.
func (r *SyncStateRepository) SetLastSyncAt(ctx context.Context, userID string, at time.Time) error {
	query := r.q.Rebind(`
		INSERT INTO sync_states (user_id, last_sync_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			last_sync_at = excluded.last_sync_at,
			updated_at = excluded.updated_at`)
	ts := NewTimestamp(at)
	if _, err := r.q.ExecContext(ctx, query, userID, ts, NewTimestamp(time.Now())); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
