package syncer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shelfsync/shelfsync/internal/server/conflict"
	"github.com/shelfsync/shelfsync/internal/server/store"
)

// kinds holds the per-kind descriptors used by apply. Collection ownership is
// immutable, so owners are cached across requests.
type kinds struct {
	owners      *expirable.LRU[string, string]
	collections kind[CollectionRecord]
	items       kind[ItemRecord]
	tags        kind[TagRecord]
}

func newKinds(cfg *Config) *kinds {
	k := &kinds{
		owners: expirable.NewLRU[string, string](cfg.OwnerCacheSize, nil, cfg.OwnerCacheTTL),
	}

	k.collections = kind[CollectionRecord]{
		entity: EntityCollection,
		id:     func(rec *CollectionRecord) string { return rec.ID },
		stamp: func(rec *CollectionRecord) conflict.Stamp {
			return conflict.Stamp{Version: rec.Version, UpdatedAt: rec.UpdatedAt}
		},
		load: func(ctx context.Context, r *store.Repos, userID string, rec *CollectionRecord) (conflict.Stamp, error) {
			c, err := r.Collections.Get(ctx, rec.ID)
			if err != nil {
				return conflict.Stamp{}, err
			}
			if c.UserID != userID {
				return conflict.Stamp{}, store.ErrNotOwned
			}
			return conflict.Stamp{Version: c.Version, UpdatedAt: c.UpdatedAt.Time}, nil
		},
		insert: func(ctx context.Context, r *store.Repos, userID string, rec *CollectionRecord, now time.Time) error {
			return r.Collections.Insert(ctx, rec.toModel(userID, now))
		},
		overwrite: func(ctx context.Context, r *store.Repos, userID string, rec *CollectionRecord, now time.Time) error {
			return r.Collections.Update(ctx, rec.toModel(userID, now))
		},
	}

	k.tags = kind[TagRecord]{
		entity: EntityTag,
		id:     func(rec *TagRecord) string { return rec.ID },
		stamp: func(rec *TagRecord) conflict.Stamp {
			return conflict.Stamp{Version: rec.Version, UpdatedAt: rec.UpdatedAt}
		},
		load: func(ctx context.Context, r *store.Repos, userID string, rec *TagRecord) (conflict.Stamp, error) {
			t, err := r.Tags.Get(ctx, rec.ID)
			if err != nil {
				return conflict.Stamp{}, err
			}
			if t.UserID != userID {
				return conflict.Stamp{}, store.ErrNotOwned
			}
			return conflict.Stamp{Version: t.Version, UpdatedAt: t.UpdatedAt.Time}, nil
		},
		insert: func(ctx context.Context, r *store.Repos, userID string, rec *TagRecord, now time.Time) error {
			return r.Tags.Insert(ctx, rec.toModel(userID, now))
		},
		overwrite: func(ctx context.Context, r *store.Repos, userID string, rec *TagRecord, now time.Time) error {
			return r.Tags.Update(ctx, rec.toModel(userID, now))
		},
	}

	k.items = kind[ItemRecord]{
		entity: EntityItem,
		id:     func(rec *ItemRecord) string { return rec.ID },
		stamp: func(rec *ItemRecord) conflict.Stamp {
			return conflict.Stamp{Version: rec.Version, UpdatedAt: rec.UpdatedAt}
		},
		load: func(ctx context.Context, r *store.Repos, userID string, rec *ItemRecord) (conflict.Stamp, error) {
			it, err := r.Items.Get(ctx, rec.ID)
			if err != nil {
				return conflict.Stamp{}, err
			}
			if it.OwnerID != userID {
				return conflict.Stamp{}, store.ErrNotOwned
			}
			return conflict.Stamp{Version: it.Version, UpdatedAt: it.UpdatedAt.Time}, nil
		},
		insert: func(ctx context.Context, r *store.Repos, userID string, rec *ItemRecord, now time.Time) error {
			tagIDs, err := k.checkItemRefs(ctx, r, userID, rec)
			if err != nil {
				return err
			}
			if err := r.Items.Insert(ctx, rec.toModel(now)); err != nil {
				return err
			}
			if len(tagIDs) > 0 {
				return r.Items.ReplaceTags(ctx, rec.ID, tagIDs)
			}
			return nil
		},
		overwrite: func(ctx context.Context, r *store.Repos, userID string, rec *ItemRecord, now time.Time) error {
			tagIDs, err := k.checkItemRefs(ctx, r, userID, rec)
			if err != nil {
				return err
			}
			if err := r.Items.Update(ctx, rec.toModel(now)); err != nil {
				return err
			}
			if rec.TagIDs != nil {
				return r.Items.ReplaceTags(ctx, rec.ID, tagIDs)
			}
			return nil
		},
	}

	return k
}

// checkItemRefs verifies that the item's collection and tags belong to userID
// and returns the de-duplicated tag ids in a stable order.
func (k *kinds) checkItemRefs(ctx context.Context, r *store.Repos, userID string, rec *ItemRecord) ([]string, error) {
	if err := k.checkCollectionOwner(ctx, r, userID, rec.CollectionID); err != nil {
		return nil, err
	}

	if len(rec.TagIDs) == 0 {
		return nil, nil
	}

	tagIDs := mapset.NewThreadUnsafeSet(rec.TagIDs...).ToSlice()
	slices.Sort(tagIDs)

	owned, err := r.Tags.CountOwned(ctx, userID, tagIDs)
	if err != nil {
		return nil, err
	}
	if owned != len(tagIDs) {
		return nil, fmt.Errorf("%w: %d of %d tags", ErrTagNotOwned, len(tagIDs)-owned, len(tagIDs))
	}
	return tagIDs, nil
}

func (k *kinds) checkCollectionOwner(ctx context.Context, r *store.Repos, userID, collectionID string) error {
	owner, ok := k.owners.Get(collectionID)
	if !ok {
		var err error
		owner, err = r.Collections.OwnerOf(ctx, collectionID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrCollectionNotOwned, collectionID)
		}
		if err != nil {
			return err
		}
		k.owners.Add(collectionID, owner)
	}

	if owner != userID {
		return fmt.Errorf("%w: %s", ErrCollectionNotOwned, collectionID)
	}
	return nil
}
