package store

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shelfsync/shelfsync/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.NewSqliteDB(db.WithPath(filepath.Join(t.TempDir(), "store.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, db.Migrate(context.Background(), database))
	return New(database)
}

func newCollection(id, user string, version int64, updated time.Time) *Collection {
	return &Collection{
		ID:        id,
		UserID:    user,
		Name:      "Vinyl",
		Type:      "music",
		Version:   version,
		CreatedAt: NewTimestamp(t0),
		UpdatedAt: NewTimestamp(updated),
	}
}

func newItem(id, collectionID string, version int64, updated time.Time) *Item {
	return &Item{
		ID:           id,
		CollectionID: collectionID,
		Title:        "Blue Train",
		Quantity:     1,
		Version:      version,
		CreatedAt:    NewTimestamp(t0),
		UpdatedAt:    NewTimestamp(updated),
	}
}

func newTag(id, user string, version int64, updated time.Time) *Tag {
	return &Tag{
		ID:        id,
		UserID:    user,
		Name:      "jazz",
		Version:   version,
		CreatedAt: NewTimestamp(t0),
		UpdatedAt: NewTimestamp(updated),
	}
}

func TestCollections_InsertGetUpdate(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	repos := s.Repos()

	desc := "first pressings"
	c := newCollection("c1", "u1", 1, t0)
	c.Description = &desc
	require.NoError(t, repos.Collections.Insert(ctx, c))

	got, err := repos.Collections.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, int64(1), got.Version)
	require.NotNil(t, got.Description)
	assert.Equal(t, desc, *got.Description)
	assert.True(t, got.UpdatedAt.Equal(t0))
	assert.Nil(t, got.DeletedAt)

	deleted := NewTimestamp(t0.Add(time.Hour))
	got.Version = 2
	got.IsDeleted = true
	got.DeletedAt = &deleted
	got.UpdatedAt = deleted
	require.NoError(t, repos.Collections.Update(ctx, got))

	again, err := repos.Collections.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.Version)
	assert.True(t, again.IsDeleted)
	require.NotNil(t, again.DeletedAt)
	assert.True(t, again.DeletedAt.Equal(deleted.Time))
}

func TestCollections_UpdateOtherOwner(t *testing.T) {
	ctx := context.Background()
	repos := setupStore(t).Repos()

	require.NoError(t, repos.Collections.Insert(ctx, newCollection("c1", "u1", 1, t0)))

	intruder := newCollection("c1", "u2", 5, t0)
	err := repos.Collections.Update(ctx, intruder)
	assert.ErrorIs(t, err, ErrNotOwned)
}

func TestUpdate_RejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repos := setupStore(t).Repos()

	require.NoError(t, repos.Collections.Insert(ctx, newCollection("c1", "u1", 5, t0)))
	require.NoError(t, repos.Tags.Insert(ctx, newTag("t1", "u1", 5, t0)))
	require.NoError(t, repos.Items.Insert(ctx, newItem("i1", "c1", 5, t0)))

	later := t0.Add(time.Hour)
	for _, v := range []int64{3, 5} {
		assert.ErrorIs(t, repos.Collections.Update(ctx, newCollection("c1", "u1", v, later)), ErrStaleVersion)
		assert.ErrorIs(t, repos.Tags.Update(ctx, newTag("t1", "u1", v, later)), ErrStaleVersion)
		assert.ErrorIs(t, repos.Items.Update(ctx, newItem("i1", "c1", v, later)), ErrStaleVersion)
	}

	c, err := repos.Collections.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.Version)
	tag, err := repos.Tags.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), tag.Version)
	it, err := repos.Items.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), it.Version)

	// the owner check still comes before the version check
	assert.ErrorIs(t, repos.Tags.Update(ctx, newTag("t1", "u2", 1, later)), ErrNotOwned)
	assert.ErrorIs(t, repos.Items.Update(ctx, newItem("missing", "c1", 9, later)), ErrNotFound)

	require.NoError(t, repos.Items.Update(ctx, newItem("i1", "c1", 6, later)))
}

func TestCollections_GetMissing(t *testing.T) {
	_, err := setupStore(t).Repos().Collections.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCollections_FindCriteria(t *testing.T) {
	ctx := context.Background()
	repos := setupStore(t).Repos()

	require.NoError(t, repos.Collections.Insert(ctx, newCollection("c1", "u1", 1, t0)))
	require.NoError(t, repos.Collections.Insert(ctx, newCollection("c2", "u1", 1, t0.Add(2*time.Hour))))
	require.NoError(t, repos.Collections.Insert(ctx, newCollection("c3", "u2", 1, t0.Add(3*time.Hour))))

	all, err := repos.Collections.Find(ctx, Where(OwnedBy("u1")))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	recent, err := repos.Collections.Find(ctx, Where(OwnedBy("u1"), UpdatedAfter(t0.Add(time.Hour))))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "c2", recent[0].ID)

	// strictly greater than
	none, err := repos.Collections.Find(ctx, Where(OwnedBy("u1"), UpdatedAfter(t0.Add(2*time.Hour))))
	require.NoError(t, err)
	assert.Empty(t, none)

	byID, err := repos.Collections.Find(ctx, Where(WithIDs("c1", "c3")))
	require.NoError(t, err)
	assert.Len(t, byID, 2)
}

func TestItems_OwnerAndTags(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	repos := s.Repos()

	require.NoError(t, repos.Collections.Insert(ctx, newCollection("c1", "u1", 1, t0)))
	require.NoError(t, repos.Tags.Insert(ctx, newTag("t1", "u1", 1, t0)))
	require.NoError(t, repos.Tags.Insert(ctx, newTag("t2", "u1", 1, t0)))
	require.NoError(t, repos.Items.Insert(ctx, newItem("i1", "c1", 1, t0)))

	it, err := repos.Items.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "u1", it.OwnerID)

	require.NoError(t, repos.Items.ReplaceTags(ctx, "i1", []string{"t1", "t2"}))
	require.NoError(t, repos.Items.ReplaceTags(ctx, "i1", []string{"t2"}))

	tags, err := repos.Items.TagIDs(ctx, []string{"i1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, tags["i1"])

	require.NoError(t, repos.Items.ReplaceTags(ctx, "i1", nil))
	tags, err = repos.Items.TagIDs(ctx, []string{"i1"})
	require.NoError(t, err)
	assert.Empty(t, tags["i1"])
}

func TestItems_FindByOwnerThroughCollection(t *testing.T) {
	ctx := context.Background()
	repos := setupStore(t).Repos()

	require.NoError(t, repos.Collections.Insert(ctx, newCollection("c1", "u1", 1, t0)))
	require.NoError(t, repos.Collections.Insert(ctx, newCollection("c2", "u2", 1, t0)))
	require.NoError(t, repos.Items.Insert(ctx, newItem("i1", "c1", 1, t0)))
	require.NoError(t, repos.Items.Insert(ctx, newItem("i2", "c2", 1, t0)))

	items, err := repos.Items.Find(ctx, Where(OwnedBy("u1")))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "i1", items[0].ID)
}

func TestItems_ReplaceTagsRejectsUnknownTag(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	require.NoError(t, s.Repos().Collections.Insert(ctx, newCollection("c1", "u1", 1, t0)))
	require.NoError(t, s.Repos().Items.Insert(ctx, newItem("i1", "c1", 1, t0)))

	err := s.WithTx(ctx, func(ctx context.Context, r *Repos) error {
		return r.Items.ReplaceTags(ctx, "i1", []string{"missing"})
	})
	assert.Error(t, err)
}

func TestTags_CountOwned(t *testing.T) {
	ctx := context.Background()
	repos := setupStore(t).Repos()

	require.NoError(t, repos.Tags.Insert(ctx, newTag("t1", "u1", 1, t0)))
	require.NoError(t, repos.Tags.Insert(ctx, newTag("t2", "u2", 1, t0)))

	n, err := repos.Tags.CountOwned(ctx, "u1", []string{"t1", "t2", "t3"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repos.Tags.CountOwned(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, r *Repos) error {
		require.NoError(t, r.Collections.Insert(ctx, newCollection("c1", "u1", 1, t0)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Repos().Collections.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithTx_RethrowsPanic(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(ctx context.Context, r *Repos) error {
			_ = r.Collections.Insert(ctx, newCollection("c1", "u1", 1, t0))
			panic("kaboom")
		})
	})

	_, err := s.Repos().Collections.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeTombstones(t *testing.T) {
	ctx := context.Background()
	repos := setupStore(t).Repos()

	old := NewTimestamp(t0.Add(-60 * 24 * time.Hour))

	live := newCollection("c-live", "u1", 1, t0)
	deadEmpty := newCollection("c-dead", "u1", 2, old.Time)
	deadEmpty.IsDeleted, deadEmpty.DeletedAt = true, &old
	deadWithItems := newCollection("c-dead-items", "u1", 2, old.Time)
	deadWithItems.IsDeleted, deadWithItems.DeletedAt = true, &old
	for _, c := range []*Collection{live, deadEmpty, deadWithItems} {
		require.NoError(t, repos.Collections.Insert(ctx, c))
	}

	deadItem := newItem("i-dead", "c-live", 3, old.Time)
	deadItem.IsDeleted, deadItem.DeletedAt = true, &old
	require.NoError(t, repos.Items.Insert(ctx, deadItem))
	require.NoError(t, repos.Items.Insert(ctx, newItem("i-live", "c-dead-items", 1, t0)))

	deadTag := newTag("t-dead", "u1", 2, old.Time)
	deadTag.IsDeleted = true // no deletedAt: falls back to updatedAt
	require.NoError(t, repos.Tags.Insert(ctx, deadTag))
	require.NoError(t, repos.Items.ReplaceTags(ctx, "i-live", []string{"t-dead"}))

	crit := Where(DeletedBefore(t0.Add(-30 * 24 * time.Hour)))

	n, err := repos.Items.PurgeTombstones(ctx, crit)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repos.Tags.PurgeTombstones(ctx, crit)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repos.Collections.PurgeTombstones(ctx, crit)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "collection still holding items must survive")

	_, err = repos.Collections.Get(ctx, "c-dead-items")
	assert.NoError(t, err)
	tags, err := repos.Items.TagIDs(ctx, []string{"i-live"})
	require.NoError(t, err)
	assert.Empty(t, tags["i-live"])
}

func TestPurgeTombstones_EmptyCriteria(t *testing.T) {
	_, err := setupStore(t).Repos().Items.PurgeTombstones(context.Background(), Where())
	assert.Error(t, err)
}

func TestSyncLogs_LatestAndCount(t *testing.T) {
	ctx := context.Background()
	repos := setupStore(t).Repos()

	_, err := repos.SyncLogs.Latest(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	for i, d := range []int64{120, 45} {
		start := t0.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repos.SyncLogs.Insert(ctx, &SyncLog{
			ID:          []string{"l1", "l2"}[i],
			UserID:      "u1",
			DeviceID:    "d1",
			SyncType:    SyncTypeFull,
			Direction:   DirectionBidirectional,
			StartedAt:   NewTimestamp(start),
			CompletedAt: NewTimestamp(start.Add(time.Duration(d) * time.Millisecond)),
			DurationMs:  d,
			Status:      SyncStatusSuccess,
		}))
	}

	latest, err := repos.SyncLogs.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "l2", latest.ID)
	assert.Equal(t, int64(45), latest.DurationMs)

	n, err := repos.SyncLogs.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSyncStates_Upsert(t *testing.T) {
	ctx := context.Background()
	repos := setupStore(t).Repos()

	_, err := repos.SyncStates.LastSyncAt(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repos.SyncStates.SetLastSyncAt(ctx, "u1", t0))
	require.NoError(t, repos.SyncStates.SetLastSyncAt(ctx, "u1", t0.Add(time.Minute)))

	got, err := repos.SyncStates.LastSyncAt(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.Equal(t0.Add(time.Minute)))
}

func TestSyncLogs_InsertDBError(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mockDB.Close()

	repos := New(sqlx.NewDb(mockDB, "sqlite3")).Repos()

	boom := errors.New("disk full")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sync_logs")).WillReturnError(boom)

	err = repos.SyncLogs.Insert(context.Background(), &SyncLog{ID: "l1", UserID: "u1"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "db error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimestamp_ScanFormats(t *testing.T) {
	var ts Timestamp
	require.NoError(t, ts.Scan("2024-05-01T10:00:00.000000000Z"))
	assert.True(t, ts.Equal(t0))

	require.NoError(t, ts.Scan([]byte("2024-05-01T12:00:00+02:00")))
	assert.True(t, ts.Equal(t0))

	require.NoError(t, ts.Scan(t0))
	assert.True(t, ts.Equal(t0))

	assert.Error(t, ts.Scan(42))

	v, err := NewTimestamp(t0).Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T10:00:00.000000000Z", v)
}
