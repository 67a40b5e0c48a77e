package syncer

import (
	"time"

	"github.com/shelfsync/shelfsync/internal/server/conflict"
)

// EntityType names a synchronizable record kind on the wire.
type EntityType string

const (
	EntityCollection EntityType = "collection"
	EntityItem       EntityType = "item"
	EntityTag        EntityType = "tag"
)

type CollectionRecord struct {
	ID             string     `json:"id" binding:"required,uuid"`
	Name           string     `json:"name" binding:"required"`
	Type           string     `json:"type" binding:"required"`
	Description    *string    `json:"description,omitempty"`
	CoverImagePath *string    `json:"coverImagePath,omitempty"`
	CoverImageURL  *string    `json:"coverImageUrl,omitempty"`
	ItemCount      int        `json:"itemCount" binding:"min=0"`
	Version        int64      `json:"version" binding:"min=0"`
	IsDeleted      bool       `json:"isDeleted"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" binding:"required"`
	UpdatedAt      time.Time  `json:"updatedAt" binding:"required"`
}

type ItemRecord struct {
	ID             string     `json:"id" binding:"required,uuid"`
	CollectionID   string     `json:"collectionId" binding:"required,uuid"`
	Title          string     `json:"title" binding:"required"`
	Barcode        *string    `json:"barcode,omitempty"`
	CoverImageURL  *string    `json:"coverImageUrl,omitempty"`
	CoverImagePath *string    `json:"coverImagePath,omitempty"`
	Description    *string    `json:"description,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	Metadata       *string    `json:"metadata,omitempty"`
	Condition      *string    `json:"condition,omitempty"`
	PurchasePrice  *float64   `json:"purchasePrice,omitempty"`
	PurchaseDate   *time.Time `json:"purchaseDate,omitempty"`
	CurrentValue   *float64   `json:"currentValue,omitempty"`
	Location       *string    `json:"location,omitempty"`
	IsFavorite     bool       `json:"isFavorite"`
	IsWishlist     bool       `json:"isWishlist"`
	SortOrder      int        `json:"sortOrder"`
	Quantity       int        `json:"quantity"`
	Version        int64      `json:"version" binding:"min=0"`
	IsDeleted      bool       `json:"isDeleted"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" binding:"required"`
	UpdatedAt      time.Time  `json:"updatedAt" binding:"required"`
	// TagIDs nil leaves stored tag links untouched; an empty list clears them.
	TagIDs []string `json:"tagIds" binding:"omitempty,dive,uuid"`
}

type TagRecord struct {
	ID        string     `json:"id" binding:"required,uuid"`
	Name      string     `json:"name" binding:"required"`
	Color     *string    `json:"color,omitempty"`
	Version   int64      `json:"version" binding:"min=0"`
	IsDeleted bool       `json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt" binding:"required"`
	UpdatedAt time.Time  `json:"updatedAt" binding:"required"`
}

// ClientChanges is the batch of mutations a device uploads.
type ClientChanges struct {
	Collections []CollectionRecord `json:"collections,omitempty" binding:"omitempty,dive"`
	Items       []ItemRecord       `json:"items,omitempty" binding:"omitempty,dive"`
	Tags        []TagRecord        `json:"tags,omitempty" binding:"omitempty,dive"`
}

// Len returns the number of records in the batch.
func (c *ClientChanges) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Collections) + len(c.Items) + len(c.Tags)
}

// ServerChanges is the change-set returned to the device. Slices are never nil
// so they always encode as JSON arrays.
type ServerChanges struct {
	Collections []CollectionRecord `json:"collections"`
	Items       []ItemRecord       `json:"items"`
	Tags        []TagRecord        `json:"tags"`
}

// Request is the body of both sync endpoints. LastSyncAt is required for
// incremental sync only.
type Request struct {
	DeviceID   string         `json:"deviceId" binding:"required"`
	LastSyncAt *time.Time     `json:"lastSyncAt,omitempty"`
	Changes    *ClientChanges `json:"changes,omitempty"`
}

// ConflictReport describes one detected conflict and how it was decided.
type ConflictReport struct {
	EntityType    EntityType          `json:"entityType"`
	EntityID      string              `json:"entityId"`
	Resolution    conflict.Resolution `json:"resolution"`
	ServerVersion int64               `json:"serverVersion"`
	ClientVersion int64               `json:"clientVersion"`
	Reason        string              `json:"reason"`
}

// SkippedRecord is a client record dropped from this sync because processing
// it failed. The client should resend it on a later sync.
type SkippedRecord struct {
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId"`
	Reason     string     `json:"reason"`
}

type Response struct {
	ServerChanges     ServerChanges    `json:"serverChanges"`
	Conflicts         []ConflictReport `json:"conflicts"`
	LastSyncAt        time.Time        `json:"lastSyncAt"`
	SyncedCollections int              `json:"syncedCollections"`
	SyncedItems       int              `json:"syncedItems"`
	SyncedTags        int              `json:"syncedTags"`
	ConflictsResolved int              `json:"conflictsResolved"`
	SkippedRecords    []SkippedRecord  `json:"skippedRecords,omitempty"`
}

type Status struct {
	LastSyncAt       *time.Time `json:"lastSyncAt"`
	TotalSyncs       int64      `json:"totalSyncs"`
	LastSyncDuration *int64     `json:"lastSyncDuration"`
	PendingChanges   bool       `json:"pendingChanges"`
}
