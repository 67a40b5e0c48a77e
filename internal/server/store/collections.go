package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const collectionColumns = `c.id, c.user_id, c.name, c.type, c.description, c.cover_image_path,
	c.cover_image_url, c.item_count, c.version, c.is_deleted, c.deleted_at,
	c.created_at, c.updated_at, c.synced_at`

type CollectionRepository struct {
	q sqlx.ExtContext
}

// Get returns the collection with id regardless of owner or tombstone state.
func (r *CollectionRepository) Get(ctx context.Context, id string) (*Collection, error) {
	var c Collection
	query := r.q.Rebind(`SELECT ` + collectionColumns + ` FROM collections c WHERE c.id = ?`)
	if err := sqlx.GetContext(ctx, r.q, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return &c, nil
}

// OwnerOf returns the owning user of a collection.
func (r *CollectionRepository) OwnerOf(ctx context.Context, id string) (string, error) {
	var owner string
	query := r.q.Rebind(`SELECT user_id FROM collections WHERE id = ?`)
	if err := sqlx.GetContext(ctx, r.q, &owner, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get collection owner: %w", err)
	}
	return owner, nil
}

func (r *CollectionRepository) Insert(ctx context.Context, c *Collection) error {
	query := r.q.Rebind(`
		INSERT INTO collections (
			id, user_id, name, type, description, cover_image_path, cover_image_url,
			item_count, version, is_deleted, deleted_at, created_at, updated_at, synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.q.ExecContext(ctx, query,
		c.ID, c.UserID, c.Name, c.Type, c.Description, c.CoverImagePath, c.CoverImageURL,
		c.ItemCount, c.Version, c.IsDeleted, c.DeletedAt, c.CreatedAt, c.UpdatedAt, c.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}
	return nil
}

// Update overwrites every mutable field of a collection owned by c.UserID as
// long as the stored version is lower than c.Version. createdAt and ownership
// are never changed.
func (r *CollectionRepository) Update(ctx context.Context, c *Collection) error {
	query := r.q.Rebind(`
		UPDATE collections SET
			name = ?, type = ?, description = ?, cover_image_path = ?, cover_image_url = ?,
			item_count = ?, version = ?, is_deleted = ?, deleted_at = ?, updated_at = ?, synced_at = ?
		WHERE id = ? AND user_id = ? AND version < ?`)
	res, err := r.q.ExecContext(ctx, query,
		c.Name, c.Type, c.Description, c.CoverImagePath, c.CoverImageURL,
		c.ItemCount, c.Version, c.IsDeleted, c.DeletedAt, c.UpdatedAt, c.SyncedAt,
		c.ID, c.UserID, c.Version,
	)
	if err != nil {
		return fmt.Errorf("update collection: %w", err)
	}
	return expectOneRow(ctx, r.q, res, `SELECT user_id FROM collections WHERE id = ?`, c.ID, c.UserID)
}

// Find returns collections matching the criteria ordered by updatedAt.
func (r *CollectionRepository) Find(ctx context.Context, crit Criteria) ([]*Collection, error) {
	where, args := crit.where(prefixed("c"))
	query, args, err := bind(r.q, `SELECT `+collectionColumns+` FROM collections c`+where+` ORDER BY c.updated_at, c.id`, args)
	if err != nil {
		return nil, err
	}

	var out []*Collection
	if err := sqlx.SelectContext(ctx, r.q, &out, query, args...); err != nil {
		return nil, fmt.Errorf("find collections: %w", err)
	}
	return out, nil
}

// PurgeTombstones hard-deletes matching collection tombstones that no longer
// hold any item.
func (r *CollectionRepository) PurgeTombstones(ctx context.Context, crit Criteria) (int64, error) {
	where, args := crit.where(prefixed("collections"))
	if where == "" {
		return 0, errors.New("purge collections: empty criteria")
	}
	query, args, err := bind(r.q, `DELETE FROM collections`+where+
		` AND NOT EXISTS (SELECT 1 FROM items i WHERE i.collection_id = collections.id)`, args)
	if err != nil {
		return 0, err
	}

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge collections: %w", err)
	}
	return res.RowsAffected()
}

// expectOneRow explains an update of a versioned row that touched nothing:
// the row is gone, owned by someone else, or already at the same or a newer
// version. ownerQuery selects the owner of the row by id; an empty userID
// skips the owner check.
func expectOneRow(ctx context.Context, q sqlx.ExtContext, res sql.Result, ownerQuery, id, userID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var owner string
	if err := sqlx.GetContext(ctx, q, &owner, q.Rebind(ownerQuery), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("recheck update: %w", err)
	}
	if userID != "" && owner != userID {
		return ErrNotOwned
	}
	return ErrStaleVersion
}
