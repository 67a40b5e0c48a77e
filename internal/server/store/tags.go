package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const tagColumns = `t.id, t.user_id, t.name, t.color, t.version, t.is_deleted,
	t.deleted_at, t.created_at, t.updated_at, t.synced_at`

type TagRepository struct {
	q sqlx.ExtContext
}

func (r *TagRepository) Get(ctx context.Context, id string) (*Tag, error) {
	var t Tag
	query := r.q.Rebind(`SELECT ` + tagColumns + ` FROM tags t WHERE t.id = ?`)
	if err := sqlx.GetContext(ctx, r.q, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return &t, nil
}

func (r *TagRepository) Insert(ctx context.Context, t *Tag) error {
	query := r.q.Rebind(`
		INSERT INTO tags (
			id, user_id, name, color, version, is_deleted, deleted_at,
			created_at, updated_at, synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.q.ExecContext(ctx, query,
		t.ID, t.UserID, t.Name, t.Color, t.Version, t.IsDeleted, t.DeletedAt,
		t.CreatedAt, t.UpdatedAt, t.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

func (r *TagRepository) Update(ctx context.Context, t *Tag) error {
	query := r.q.Rebind(`
		UPDATE tags SET
			name = ?, color = ?, version = ?, is_deleted = ?, deleted_at = ?,
			updated_at = ?, synced_at = ?
		WHERE id = ? AND user_id = ? AND version < ?`)
	res, err := r.q.ExecContext(ctx, query,
		t.Name, t.Color, t.Version, t.IsDeleted, t.DeletedAt,
		t.UpdatedAt, t.SyncedAt,
		t.ID, t.UserID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("update tag: %w", err)
	}
	return expectOneRow(ctx, r.q, res, `SELECT user_id FROM tags WHERE id = ?`, t.ID, t.UserID)
}

// CountOwned returns how many of ids are tags owned by userID.
func (r *TagRepository) CountOwned(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	where, args := Where(OwnedBy(userID), WithIDs(ids...)).where(prefixed("t"))
	query, args, err := bind(r.q, `SELECT COUNT(*) FROM tags t`+where, args)
	if err != nil {
		return 0, err
	}

	var n int
	if err := sqlx.GetContext(ctx, r.q, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count tags: %w", err)
	}
	return n, nil
}

func (r *TagRepository) Find(ctx context.Context, crit Criteria) ([]*Tag, error) {
	where, args := crit.where(prefixed("t"))
	query, args, err := bind(r.q, `SELECT `+tagColumns+` FROM tags t`+where+` ORDER BY t.updated_at, t.id`, args)
	if err != nil {
		return nil, err
	}

	var out []*Tag
	if err := sqlx.SelectContext(ctx, r.q, &out, query, args...); err != nil {
		return nil, fmt.Errorf("find tags: %w", err)
	}
	return out, nil
}

// PurgeTombstones hard-deletes matching tag tombstones along with their item
// links.
func (r *TagRepository) PurgeTombstones(ctx context.Context, crit Criteria) (int64, error) {
	where, args := crit.where(prefixed("tags"))
	if where == "" {
		return 0, errors.New("purge tags: empty criteria")
	}

	linkQuery, linkArgs, err := bind(r.q, `DELETE FROM item_tags WHERE tag_id IN (SELECT tags.id FROM tags`+where+`)`, args)
	if err != nil {
		return 0, err
	}
	if _, err := r.q.ExecContext(ctx, linkQuery, linkArgs...); err != nil {
		return 0, fmt.Errorf("purge tag links: %w", err)
	}

	query, args, err := bind(r.q, `DELETE FROM tags`+where, args)
	if err != nil {
		return 0, err
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge tags: %w", err)
	}
	return res.RowsAffected()
}
