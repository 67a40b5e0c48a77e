package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const itemColumns = `i.id, i.collection_id, c.user_id AS owner_id, i.title, i.barcode,
	i.cover_image_url, i.cover_image_path, i.description, i.notes, i.metadata,
	i.item_condition, i.purchase_price, i.purchase_date, i.current_value, i.location,
	i.is_favorite, i.is_wishlist, i.sort_order, i.quantity, i.version, i.is_deleted,
	i.deleted_at, i.created_at, i.updated_at, i.synced_at`

const itemFrom = ` FROM items i JOIN collections c ON c.id = i.collection_id`

// tagChunkSize bounds IN lists below SQLite's host parameter limit.
const tagChunkSize = 500

type ItemRepository struct {
	q sqlx.ExtContext
}

// itemColumnsFor evaluates owner predicates against the parent collection.
func itemColumnsFor() columns {
	cols := prefixed("i")
	cols.owner = "c.user_id"
	return cols
}

// Get returns the item with id and its owner, regardless of tombstone state.
// Tag ids are not loaded.
func (r *ItemRepository) Get(ctx context.Context, id string) (*Item, error) {
	var it Item
	query := r.q.Rebind(`SELECT ` + itemColumns + itemFrom + ` WHERE i.id = ?`)
	if err := sqlx.GetContext(ctx, r.q, &it, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}

func (r *ItemRepository) Insert(ctx context.Context, it *Item) error {
	query := r.q.Rebind(`
		INSERT INTO items (
			id, collection_id, title, barcode, cover_image_url, cover_image_path, description,
			notes, metadata, item_condition, purchase_price, purchase_date, current_value,
			location, is_favorite, is_wishlist, sort_order, quantity, version, is_deleted,
			deleted_at, created_at, updated_at, synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.q.ExecContext(ctx, query,
		it.ID, it.CollectionID, it.Title, it.Barcode, it.CoverImageURL, it.CoverImagePath, it.Description,
		it.Notes, it.Metadata, it.Condition, it.PurchasePrice, it.PurchaseDate, it.CurrentValue,
		it.Location, it.IsFavorite, it.IsWishlist, it.SortOrder, it.Quantity, it.Version, it.IsDeleted,
		it.DeletedAt, it.CreatedAt, it.UpdatedAt, it.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// Update overwrites every mutable field of an item, including its collection,
// when the stored version is lower than it.Version. Ownership checks are the
// caller's concern.
func (r *ItemRepository) Update(ctx context.Context, it *Item) error {
	query := r.q.Rebind(`
		UPDATE items SET
			collection_id = ?, title = ?, barcode = ?, cover_image_url = ?, cover_image_path = ?,
			description = ?, notes = ?, metadata = ?, item_condition = ?, purchase_price = ?,
			purchase_date = ?, current_value = ?, location = ?, is_favorite = ?, is_wishlist = ?,
			sort_order = ?, quantity = ?, version = ?, is_deleted = ?, deleted_at = ?,
			updated_at = ?, synced_at = ?
		WHERE id = ? AND version < ?`)
	res, err := r.q.ExecContext(ctx, query,
		it.CollectionID, it.Title, it.Barcode, it.CoverImageURL, it.CoverImagePath,
		it.Description, it.Notes, it.Metadata, it.Condition, it.PurchasePrice,
		it.PurchaseDate, it.CurrentValue, it.Location, it.IsFavorite, it.IsWishlist,
		it.SortOrder, it.Quantity, it.Version, it.IsDeleted, it.DeletedAt,
		it.UpdatedAt, it.SyncedAt,
		it.ID, it.Version,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return expectOneRow(ctx, r.q, res,
		`SELECT c.user_id FROM items i JOIN collections c ON c.id = i.collection_id WHERE i.id = ?`, it.ID, "")
}

// ReplaceTags deletes every tag link of the item and inserts tagIDs.
func (r *ItemRepository) ReplaceTags(ctx context.Context, itemID string, tagIDs []string) error {
	if _, err := r.q.ExecContext(ctx, r.q.Rebind(`DELETE FROM item_tags WHERE item_id = ?`), itemID); err != nil {
		return fmt.Errorf("clear item tags: %w", err)
	}

	insert := r.q.Rebind(`INSERT INTO item_tags (item_id, tag_id) VALUES (?, ?) ON CONFLICT (item_id, tag_id) DO NOTHING`)
	for _, tagID := range tagIDs {
		if _, err := r.q.ExecContext(ctx, insert, itemID, tagID); err != nil {
			return fmt.Errorf("insert item tag: %w", err)
		}
	}
	return nil
}

// TagIDs returns the tag ids linked to each of the given items.
func (r *ItemRepository) TagIDs(ctx context.Context, itemIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(itemIDs))
	for start := 0; start < len(itemIDs); start += tagChunkSize {
		end := min(start+tagChunkSize, len(itemIDs))

		query, args, err := bind(r.q,
			`SELECT item_id, tag_id FROM item_tags WHERE item_id IN (?) ORDER BY item_id, tag_id`,
			[]any{itemIDs[start:end]})
		if err != nil {
			return nil, err
		}

		var links []struct {
			ItemID string `db:"item_id"`
			TagID  string `db:"tag_id"`
		}
		if err := sqlx.SelectContext(ctx, r.q, &links, query, args...); err != nil {
			return nil, fmt.Errorf("load item tags: %w", err)
		}
		for _, l := range links {
			out[l.ItemID] = append(out[l.ItemID], l.TagID)
		}
	}
	return out, nil
}

// Find returns items matching the criteria ordered by updatedAt. Tag ids are
// not loaded.
func (r *ItemRepository) Find(ctx context.Context, crit Criteria) ([]*Item, error) {
	where, args := crit.where(itemColumnsFor())
	query, args, err := bind(r.q, `SELECT `+itemColumns+itemFrom+where+` ORDER BY i.updated_at, i.id`, args)
	if err != nil {
		return nil, err
	}

	var out []*Item
	if err := sqlx.SelectContext(ctx, r.q, &out, query, args...); err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	return out, nil
}

// PurgeTombstones hard-deletes matching item tombstones along with their tag
// links.
func (r *ItemRepository) PurgeTombstones(ctx context.Context, crit Criteria) (int64, error) {
	where, args := crit.where(prefixed("items"))
	if where == "" {
		return 0, errors.New("purge items: empty criteria")
	}

	linkQuery, linkArgs, err := bind(r.q, `DELETE FROM item_tags WHERE item_id IN (SELECT items.id FROM items`+where+`)`, args)
	if err != nil {
		return 0, err
	}
	if _, err := r.q.ExecContext(ctx, linkQuery, linkArgs...); err != nil {
		return 0, fmt.Errorf("purge item tags: %w", err)
	}

	query, args, err := bind(r.q, `DELETE FROM items`+where, args)
	if err != nil {
		return 0, err
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge items: %w", err)
	}
	return res.RowsAffected()
}
