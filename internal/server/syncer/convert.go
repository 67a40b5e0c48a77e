package syncer

import (
	"time"

	"github.com/shelfsync/shelfsync/internal/server/store"
)

func (r *CollectionRecord) toModel(userID string, syncedAt time.Time) *store.Collection {
	synced := store.NewTimestamp(syncedAt)
	return &store.Collection{
		ID:             r.ID,
		UserID:         userID,
		Name:           r.Name,
		Type:           r.Type,
		Description:    r.Description,
		CoverImagePath: r.CoverImagePath,
		CoverImageURL:  r.CoverImageURL,
		ItemCount:      r.ItemCount,
		Version:        r.Version,
		IsDeleted:      r.IsDeleted,
		DeletedAt:      store.TimestampPtr(r.DeletedAt),
		CreatedAt:      store.NewTimestamp(r.CreatedAt),
		UpdatedAt:      store.NewTimestamp(r.UpdatedAt),
		SyncedAt:       &synced,
	}
}

func collectionRecord(c *store.Collection) CollectionRecord {
	return CollectionRecord{
		ID:             c.ID,
		Name:           c.Name,
		Type:           c.Type,
		Description:    c.Description,
		CoverImagePath: c.CoverImagePath,
		CoverImageURL:  c.CoverImageURL,
		ItemCount:      c.ItemCount,
		Version:        c.Version,
		IsDeleted:      c.IsDeleted,
		DeletedAt:      c.DeletedAt.TimePtr(),
		CreatedAt:      c.CreatedAt.Time,
		UpdatedAt:      c.UpdatedAt.Time,
	}
}

func (r *ItemRecord) toModel(syncedAt time.Time) *store.Item {
	synced := store.NewTimestamp(syncedAt)
	return &store.Item{
		ID:             r.ID,
		CollectionID:   r.CollectionID,
		Title:          r.Title,
		Barcode:        r.Barcode,
		CoverImageURL:  r.CoverImageURL,
		CoverImagePath: r.CoverImagePath,
		Description:    r.Description,
		Notes:          r.Notes,
		Metadata:       r.Metadata,
		Condition:      r.Condition,
		PurchasePrice:  r.PurchasePrice,
		PurchaseDate:   store.TimestampPtr(r.PurchaseDate),
		CurrentValue:   r.CurrentValue,
		Location:       r.Location,
		IsFavorite:     r.IsFavorite,
		IsWishlist:     r.IsWishlist,
		SortOrder:      r.SortOrder,
		Quantity:       r.Quantity,
		Version:        r.Version,
		IsDeleted:      r.IsDeleted,
		DeletedAt:      store.TimestampPtr(r.DeletedAt),
		CreatedAt:      store.NewTimestamp(r.CreatedAt),
		UpdatedAt:      store.NewTimestamp(r.UpdatedAt),
		SyncedAt:       &synced,
	}
}

func itemRecord(it *store.Item) ItemRecord {
	return ItemRecord{
		ID:             it.ID,
		CollectionID:   it.CollectionID,
		Title:          it.Title,
		Barcode:        it.Barcode,
		CoverImageURL:  it.CoverImageURL,
		CoverImagePath: it.CoverImagePath,
		Description:    it.Description,
		Notes:          it.Notes,
		Metadata:       it.Metadata,
		Condition:      it.Condition,
		PurchasePrice:  it.PurchasePrice,
		PurchaseDate:   it.PurchaseDate.TimePtr(),
		CurrentValue:   it.CurrentValue,
		Location:       it.Location,
		IsFavorite:     it.IsFavorite,
		IsWishlist:     it.IsWishlist,
		SortOrder:      it.SortOrder,
		Quantity:       it.Quantity,
		Version:        it.Version,
		IsDeleted:      it.IsDeleted,
		DeletedAt:      it.DeletedAt.TimePtr(),
		CreatedAt:      it.CreatedAt.Time,
		UpdatedAt:      it.UpdatedAt.Time,
		TagIDs:         it.TagIDs,
	}
}

func (r *TagRecord) toModel(userID string, syncedAt time.Time) *store.Tag {
	synced := store.NewTimestamp(syncedAt)
	return &store.Tag{
		ID:        r.ID,
		UserID:    userID,
		Name:      r.Name,
		Color:     r.Color,
		Version:   r.Version,
		IsDeleted: r.IsDeleted,
		DeletedAt: store.TimestampPtr(r.DeletedAt),
		CreatedAt: store.NewTimestamp(r.CreatedAt),
		UpdatedAt: store.NewTimestamp(r.UpdatedAt),
		SyncedAt:  &synced,
	}
}

func tagRecord(t *store.Tag) TagRecord {
	return TagRecord{
		ID:        t.ID,
		Name:      t.Name,
		Color:     t.Color,
		Version:   t.Version,
		IsDeleted: t.IsDeleted,
		DeletedAt: t.DeletedAt.TimePtr(),
		CreatedAt: t.CreatedAt.Time,
		UpdatedAt: t.UpdatedAt.Time,
	}
}
