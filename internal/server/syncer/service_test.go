package syncer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shelfsync/shelfsync/internal/db"
	"github.com/shelfsync/shelfsync/internal/server/conflict"
	"github.com/shelfsync/shelfsync/internal/server/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func setupService(t *testing.T) (*Service, *store.Store, *fakeClock) {
	t.Helper()
	database, err := db.NewSqliteDB(db.WithPath(filepath.Join(t.TempDir(), "sync.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, db.Migrate(context.Background(), database))

	st := store.New(database)
	svc := NewService(st, DefaultConfig())
	clock := &fakeClock{t: base.Add(24 * time.Hour)}
	svc.now = clock.Now
	return svc, st, clock
}

func collectionRec(id string, version int64, name string, updated time.Time) CollectionRecord {
	return CollectionRecord{
		ID:        id,
		Name:      name,
		Type:      "books",
		Version:   version,
		CreatedAt: base,
		UpdatedAt: updated,
	}
}

func itemRec(id, collectionID string, version int64, updated time.Time, tagIDs ...string) ItemRecord {
	return ItemRecord{
		ID:           id,
		CollectionID: collectionID,
		Title:        "Dune",
		Quantity:     1,
		Version:      version,
		CreatedAt:    base,
		UpdatedAt:    updated,
		TagIDs:       tagIDs,
	}
}

func tagRec(id string, version int64, updated time.Time) TagRecord {
	return TagRecord{
		ID:        id,
		Name:      "sci-fi",
		Version:   version,
		CreatedAt: base,
		UpdatedAt: updated,
	}
}

func fullSync(t *testing.T, svc *Service, user string, changes *ClientChanges) *Response {
	t.Helper()
	res, err := svc.FullSync(context.Background(), user, &Request{DeviceID: "device-a", Changes: changes})
	require.NoError(t, err)
	return res
}

func TestFullSync_EmptyStillLogs(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	res := fullSync(t, svc, "u1", nil)
	assert.Empty(t, res.ServerChanges.Collections)
	assert.NotNil(t, res.ServerChanges.Items)
	assert.Empty(t, res.Conflicts)
	assert.Zero(t, res.ConflictsResolved)

	status, err := svc.Status(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.TotalSyncs)
	assert.Nil(t, status.LastSyncAt, "full sync does not move the watermark")
	require.NotNil(t, status.LastSyncDuration)
	assert.False(t, status.PendingChanges)
}

func TestStatus_NoHistory(t *testing.T) {
	svc, _, _ := setupService(t)

	status, err := svc.Status(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, status.LastSyncAt)
	assert.Nil(t, status.LastSyncDuration)
	assert.Zero(t, status.TotalSyncs)
}

func TestIncrementalSync_RequiresWatermark(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.IncrementalSync(ctx, "u1", &Request{DeviceID: "d1"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "lastSyncAt is required")

	status, err := svc.Status(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, status.TotalSyncs, "rejected before any write")
}

func TestSync_RejectsOversizedBatch(t *testing.T) {
	svc, _, _ := setupService(t)
	svc.config.MaxBatchSize = 1

	changes := &ClientChanges{
		Collections: []CollectionRecord{collectionRec(uuid.NewString(), 1, "a", base)},
		Tags:        []TagRecord{tagRec(uuid.NewString(), 1, base)},
	}
	_, err := svc.FullSync(context.Background(), "u1", &Request{DeviceID: "d1", Changes: changes})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSync_RejectsMissingDevice(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.FullSync(context.Background(), "u1", &Request{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSync_CreateThenIdempotentReplay(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	colID, tagID, itemID := uuid.NewString(), uuid.NewString(), uuid.NewString()
	batch := func() *ClientChanges {
		return &ClientChanges{
			Collections: []CollectionRecord{collectionRec(colID, 1, "Shelf", base)},
			Items:       []ItemRecord{itemRec(itemID, colID, 1, base, tagID)},
			Tags:        []TagRecord{tagRec(tagID, 1, base)},
		}
	}

	res := fullSync(t, svc, "u1", batch())
	assert.Equal(t, 1, res.SyncedCollections)
	assert.Equal(t, 1, res.SyncedItems)
	assert.Equal(t, 1, res.SyncedTags)
	assert.Empty(t, res.SkippedRecords)

	it, err := st.Repos().Items.Get(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, "u1", it.OwnerID)
	require.NotNil(t, it.SyncedAt)

	replay := fullSync(t, svc, "u1", batch())
	assert.Zero(t, replay.SyncedCollections)
	assert.Zero(t, replay.SyncedItems)
	assert.Zero(t, replay.SyncedTags)
	assert.Empty(t, replay.Conflicts)

	// the replay sees the records created by the first call
	require.Len(t, replay.ServerChanges.Items, 1)
	assert.Equal(t, []string{tagID}, replay.ServerChanges.Items[0].TagIDs)
	assert.Len(t, replay.ServerChanges.Collections, 1)
	assert.Len(t, replay.ServerChanges.Tags, 1)

	after, err := st.Repos().Items.Get(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, it.Version, after.Version)
}

func TestSync_ClientWins(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()
	id := uuid.NewString()

	fullSync(t, svc, "u1", &ClientChanges{Collections: []CollectionRecord{collectionRec(id, 2, "Old", base)}})

	res := fullSync(t, svc, "u1", &ClientChanges{Collections: []CollectionRecord{collectionRec(id, 3, "New", base.Add(time.Hour))}})
	assert.Equal(t, 1, res.SyncedCollections)
	require.Len(t, res.Conflicts, 1)
	c := res.Conflicts[0]
	assert.Equal(t, EntityCollection, c.EntityType)
	assert.Equal(t, id, c.EntityID)
	assert.Equal(t, conflict.ClientWins, c.Resolution)
	assert.Equal(t, int64(2), c.ServerVersion)
	assert.Equal(t, int64(3), c.ClientVersion)
	assert.Equal(t, 1, res.ConflictsResolved)

	got, err := st.Repos().Collections.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, "New", got.Name)
}

func TestSync_ServerWins(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()
	id := uuid.NewString()

	fullSync(t, svc, "u1", &ClientChanges{Collections: []CollectionRecord{collectionRec(id, 5, "Server", base)}})

	// newer timestamp but lower version still loses
	res := fullSync(t, svc, "u1", &ClientChanges{Collections: []CollectionRecord{collectionRec(id, 4, "Stale", base.Add(time.Hour))}})
	assert.Zero(t, res.SyncedCollections)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, conflict.ServerWins, res.Conflicts[0].Resolution)
	assert.Equal(t, 1, res.ConflictsResolved)

	got, err := st.Repos().Collections.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Version)
	assert.Equal(t, "Server", got.Name)

	// the losing device gets the server copy on its next sync
	since := base.Add(-time.Minute)
	next, err := svc.IncrementalSync(ctx, "u1", &Request{DeviceID: "device-a", LastSyncAt: &since})
	require.NoError(t, err)
	require.Len(t, next.ServerChanges.Collections, 1)
	assert.Equal(t, id, next.ServerChanges.Collections[0].ID)
	assert.Equal(t, int64(5), next.ServerChanges.Collections[0].Version)
	assert.Equal(t, "Server", next.ServerChanges.Collections[0].Name)
}

func TestSync_ConcurrentNewerWriteWins(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()
	id := uuid.NewString()

	fullSync(t, svc, "u1", &ClientChanges{Collections: []CollectionRecord{collectionRec(id, 1, "Original", base)}})

	// another device moves the row to v5 after this sync has read v1
	load := svc.kinds.collections.load
	raced := false
	svc.kinds.collections.load = func(ctx context.Context, r *store.Repos, userID string, rec *CollectionRecord) (conflict.Stamp, error) {
		stamp, err := load(ctx, r, userID, rec)
		if err != nil || raced {
			return stamp, err
		}
		raced = true
		c, err := r.Collections.Get(ctx, rec.ID)
		require.NoError(t, err)
		c.Version = 5
		c.Name = "Other device"
		require.NoError(t, r.Collections.Update(ctx, c))
		return stamp, nil
	}

	res := fullSync(t, svc, "u1", &ClientChanges{Collections: []CollectionRecord{collectionRec(id, 3, "Late", base.Add(time.Hour))}})
	assert.True(t, raced)
	assert.Zero(t, res.SyncedCollections)
	assert.Empty(t, res.SkippedRecords)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, conflict.ServerWins, res.Conflicts[0].Resolution)
	assert.Equal(t, int64(5), res.Conflicts[0].ServerVersion)
	assert.Equal(t, int64(3), res.Conflicts[0].ClientVersion)

	got, err := st.Repos().Collections.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Version)
	assert.Equal(t, "Other device", got.Name)
}

func TestSync_ItemTagsReplaced(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	colID, itemID := uuid.NewString(), uuid.NewString()
	a, b, c := uuid.NewString(), uuid.NewString(), uuid.NewString()

	fullSync(t, svc, "u1", &ClientChanges{
		Collections: []CollectionRecord{collectionRec(colID, 1, "Shelf", base)},
		Tags:        []TagRecord{tagRec(a, 1, base), tagRec(b, 1, base), tagRec(c, 1, base)},
		Items:       []ItemRecord{itemRec(itemID, colID, 1, base, a, b)},
	})

	res := fullSync(t, svc, "u1", &ClientChanges{
		Items: []ItemRecord{itemRec(itemID, colID, 2, base.Add(time.Hour), c, b, c)},
	})
	assert.Equal(t, 1, res.SyncedItems)

	links, err := st.Repos().Items.TagIDs(ctx, []string{itemID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b, c}, links[itemID])
}

func TestSync_ItemWithoutTagIDsKeepsLinks(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	colID, itemID, tagID := uuid.NewString(), uuid.NewString(), uuid.NewString()
	fullSync(t, svc, "u1", &ClientChanges{
		Collections: []CollectionRecord{collectionRec(colID, 1, "Shelf", base)},
		Tags:        []TagRecord{tagRec(tagID, 1, base)},
		Items:       []ItemRecord{itemRec(itemID, colID, 1, base, tagID)},
	})

	untagged := itemRec(itemID, colID, 2, base.Add(time.Hour))
	untagged.TagIDs = nil
	fullSync(t, svc, "u1", &ClientChanges{Items: []ItemRecord{untagged}})

	links, err := st.Repos().Items.TagIDs(ctx, []string{itemID})
	require.NoError(t, err)
	assert.Equal(t, []string{tagID}, links[itemID])

	cleared := itemRec(itemID, colID, 3, base.Add(2*time.Hour))
	cleared.TagIDs = []string{}
	fullSync(t, svc, "u1", &ClientChanges{Items: []ItemRecord{cleared}})

	links, err = st.Repos().Items.TagIDs(ctx, []string{itemID})
	require.NoError(t, err)
	assert.Empty(t, links[itemID])
}

func TestSync_PartialFailureIsolation(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	colID := uuid.NewString()
	orphan := uuid.NewString()
	good := uuid.NewString()

	res := fullSync(t, svc, "u1", &ClientChanges{
		Collections: []CollectionRecord{collectionRec(colID, 1, "Shelf", base)},
		Items: []ItemRecord{
			itemRec(orphan, uuid.NewString(), 1, base), // parent collection unknown
			itemRec(good, colID, 1, base),
		},
	})

	assert.Equal(t, 1, res.SyncedCollections)
	assert.Equal(t, 1, res.SyncedItems)
	require.Len(t, res.SkippedRecords, 1)
	assert.Equal(t, EntityItem, res.SkippedRecords[0].EntityType)
	assert.Equal(t, orphan, res.SkippedRecords[0].EntityID)
	assert.Equal(t, ErrCollectionNotOwned.Error(), res.SkippedRecords[0].Reason)

	_, err := st.Repos().Items.Get(ctx, orphan)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Repos().Items.Get(ctx, good)
	assert.NoError(t, err)

	latest, err := st.Repos().SyncLogs.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, latest.SkippedCount)
	assert.Equal(t, store.SyncStatusSuccess, latest.Status)
}

func TestSync_UnknownTagSkipsItem(t *testing.T) {
	svc, _, _ := setupService(t)

	colID := uuid.NewString()
	res := fullSync(t, svc, "u1", &ClientChanges{
		Collections: []CollectionRecord{collectionRec(colID, 1, "Shelf", base)},
		Items:       []ItemRecord{itemRec(uuid.NewString(), colID, 1, base, uuid.NewString())},
	})
	assert.Zero(t, res.SyncedItems)
	require.Len(t, res.SkippedRecords, 1)
	assert.Equal(t, ErrTagNotOwned.Error(), res.SkippedRecords[0].Reason)
}

func TestSync_ForeignOwnershipIsolated(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	colID := uuid.NewString()
	fullSync(t, svc, "u1", &ClientChanges{Collections: []CollectionRecord{collectionRec(colID, 1, "Mine", base)}})

	res := fullSync(t, svc, "u2", &ClientChanges{
		Collections: []CollectionRecord{collectionRec(colID, 9, "Stolen", base.Add(time.Hour))},
		Items:       []ItemRecord{itemRec(uuid.NewString(), colID, 1, base)},
	})
	assert.Zero(t, res.SyncedCollections)
	assert.Zero(t, res.SyncedItems)
	assert.Len(t, res.SkippedRecords, 2)
	assert.Empty(t, res.ServerChanges.Collections, "u2 must not see u1 records")

	got, err := st.Repos().Collections.Get(ctx, colID)
	require.NoError(t, err)
	assert.Equal(t, "Mine", got.Name)
	assert.Equal(t, "u1", got.UserID)
}

func TestIncrementalSync_AdvancesWatermarkAndFilters(t *testing.T) {
	svc, _, clock := setupService(t)
	ctx := context.Background()

	oldID, newID := uuid.NewString(), uuid.NewString()
	fullSync(t, svc, "u1", &ClientChanges{Collections: []CollectionRecord{
		collectionRec(oldID, 1, "old", base),
		collectionRec(newID, 1, "new", base.Add(2*time.Hour)),
	}})

	since := base.Add(time.Hour)
	res, err := svc.IncrementalSync(ctx, "u1", &Request{DeviceID: "device-b", LastSyncAt: &since})
	require.NoError(t, err)
	require.Len(t, res.ServerChanges.Collections, 1)
	assert.Equal(t, newID, res.ServerChanges.Collections[0].ID)

	status, err := svc.Status(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, status.LastSyncAt)
	assert.True(t, status.LastSyncAt.Equal(res.LastSyncAt))
	assert.True(t, res.LastSyncAt.Before(clock.t), "watermark is captured at the start of the call")
	assert.Equal(t, int64(2), status.TotalSyncs)
}

func TestIncrementalSync_TombstonePropagates(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	colID := uuid.NewString()
	fullSync(t, svc, "u1", &ClientChanges{Collections: []CollectionRecord{collectionRec(colID, 1, "Shelf", base)}})

	watermark := base.Add(time.Minute)

	deletedAt := base.Add(time.Hour)
	tomb := collectionRec(colID, 2, "Shelf", deletedAt)
	tomb.IsDeleted = true
	tomb.DeletedAt = &deletedAt
	res := fullSync(t, svc, "u1", &ClientChanges{Collections: []CollectionRecord{tomb}})
	require.Equal(t, 1, res.SyncedCollections)

	inc, err := svc.IncrementalSync(ctx, "u1", &Request{DeviceID: "device-b", LastSyncAt: &watermark})
	require.NoError(t, err)
	require.Len(t, inc.ServerChanges.Collections, 1)
	got := inc.ServerChanges.Collections[0]
	assert.True(t, got.IsDeleted)
	assert.Equal(t, int64(2), got.Version)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, got.DeletedAt.Equal(deletedAt))
}

func TestSync_VersionMonotonic(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()
	id := uuid.NewString()

	versions := []int64{3, 1, 5, 5, 2, 7, 6}
	var maxSeen int64
	for i, v := range versions {
		fullSync(t, svc, "u1", &ClientChanges{Collections: []CollectionRecord{
			collectionRec(id, v, "n", base.Add(time.Duration(i)*time.Minute)),
		}})
		got, err := st.Repos().Collections.Get(ctx, id)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Version, maxSeen)
		maxSeen = got.Version
	}
	assert.Equal(t, int64(7), maxSeen)
}

func TestSync_Deterministic(t *testing.T) {
	colID, tagID, itemID := uuid.NewString(), uuid.NewString(), uuid.NewString()
	batches := []*ClientChanges{
		{
			Collections: []CollectionRecord{collectionRec(colID, 2, "A", base)},
			Tags:        []TagRecord{tagRec(tagID, 1, base)},
			Items:       []ItemRecord{itemRec(itemID, colID, 4, base, tagID)},
		},
		{
			Collections: []CollectionRecord{collectionRec(colID, 1, "B", base.Add(time.Hour))},
			Items:       []ItemRecord{itemRec(itemID, colID, 5, base.Add(time.Hour))},
		},
		{
			Collections: []CollectionRecord{collectionRec(colID, 3, "C", base.Add(-time.Hour))},
		},
	}

	run := func() (*store.Collection, *store.Item, []string) {
		svc, st, _ := setupService(t)
		for _, b := range batches {
			fullSync(t, svc, "u1", b)
		}
		ctx := context.Background()
		c, err := st.Repos().Collections.Get(ctx, colID)
		require.NoError(t, err)
		it, err := st.Repos().Items.Get(ctx, itemID)
		require.NoError(t, err)
		links, err := st.Repos().Items.TagIDs(ctx, []string{itemID})
		require.NoError(t, err)
		return c, it, links[itemID]
	}

	c1, i1, l1 := run()
	c2, i2, l2 := run()
	assert.Equal(t, c1.Name, c2.Name)
	assert.Equal(t, c1.Version, c2.Version)
	assert.Equal(t, "C", c1.Name)
	assert.Equal(t, i1.Version, i2.Version)
	assert.Equal(t, l1, l2)
}

func TestSync_ReadFailureLogsFailedSync(t *testing.T) {
	svc, st, _ := setupService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.FullSync(ctx, "u1", &Request{DeviceID: "d1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRequest)

	latest, err := st.Repos().SyncLogs.Latest(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, store.SyncStatusFailed, latest.Status)
	require.NotNil(t, latest.ErrorMessage)
}
