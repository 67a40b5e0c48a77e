package store

// Collection is a user-owned container of items.
type Collection struct {
	ID             string     `db:"id"`
	UserID         string     `db:"user_id"`
	Name           string     `db:"name"`
	Type           string     `db:"type"`
	Description    *string    `db:"description"`
	CoverImagePath *string    `db:"cover_image_path"`
	CoverImageURL  *string    `db:"cover_image_url"`
	ItemCount      int        `db:"item_count"`
	Version        int64      `db:"version"`
	IsDeleted      bool       `db:"is_deleted"`
	DeletedAt      *Timestamp `db:"deleted_at"`
	CreatedAt      Timestamp  `db:"created_at"`
	UpdatedAt      Timestamp  `db:"updated_at"`
	SyncedAt       *Timestamp `db:"synced_at"`
}

// Item belongs to exactly one collection. OwnerID is the owning user of that
// collection and is only populated on reads.
type Item struct {
	ID             string     `db:"id"`
	CollectionID   string     `db:"collection_id"`
	OwnerID        string     `db:"owner_id"`
	Title          string     `db:"title"`
	Barcode        *string    `db:"barcode"`
	CoverImageURL  *string    `db:"cover_image_url"`
	CoverImagePath *string    `db:"cover_image_path"`
	Description    *string    `db:"description"`
	Notes          *string    `db:"notes"`
	Metadata       *string    `db:"metadata"`
	Condition      *string    `db:"item_condition"`
	PurchasePrice  *float64   `db:"purchase_price"`
	PurchaseDate   *Timestamp `db:"purchase_date"`
	CurrentValue   *float64   `db:"current_value"`
	Location       *string    `db:"location"`
	IsFavorite     bool       `db:"is_favorite"`
	IsWishlist     bool       `db:"is_wishlist"`
	SortOrder      int        `db:"sort_order"`
	Quantity       int        `db:"quantity"`
	Version        int64      `db:"version"`
	IsDeleted      bool       `db:"is_deleted"`
	DeletedAt      *Timestamp `db:"deleted_at"`
	CreatedAt      Timestamp  `db:"created_at"`
	UpdatedAt      Timestamp  `db:"updated_at"`
	SyncedAt       *Timestamp `db:"synced_at"`

	// TagIDs is loaded separately from item_tags.
	TagIDs []string `db:"-"`
}

// Tag is a user-owned label attachable to items.
type Tag struct {
	ID        string     `db:"id"`
	UserID    string     `db:"user_id"`
	Name      string     `db:"name"`
	Color     *string    `db:"color"`
	Version   int64      `db:"version"`
	IsDeleted bool       `db:"is_deleted"`
	DeletedAt *Timestamp `db:"deleted_at"`
	CreatedAt Timestamp  `db:"created_at"`
	UpdatedAt Timestamp  `db:"updated_at"`
	SyncedAt  *Timestamp `db:"synced_at"`
}

type SyncType string

const (
	SyncTypeFull        SyncType = "full"
	SyncTypeIncremental SyncType = "incremental"
)

type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// DirectionBidirectional is the only direction the sync endpoints perform.
const DirectionBidirectional = "bidirectional"

// SyncLog is an immutable audit row written once per sync call.
type SyncLog struct {
	ID                string     `db:"id"`
	UserID            string     `db:"user_id"`
	DeviceID          string     `db:"device_id"`
	SyncType          SyncType   `db:"sync_type"`
	Direction         string     `db:"direction"`
	CollectionsCount  int        `db:"collections_count"`
	ItemsCount        int        `db:"items_count"`
	TagsCount         int        `db:"tags_count"`
	ConflictsResolved int        `db:"conflicts_resolved"`
	SkippedCount      int        `db:"skipped_count"`
	StartedAt         Timestamp  `db:"started_at"`
	CompletedAt       Timestamp  `db:"completed_at"`
	DurationMs        int64      `db:"duration_ms"`
	Status            SyncStatus `db:"status"`
	ErrorMessage      *string    `db:"error_message"`
}
