package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/shelfsync/shelfsync/internal/server/store"
)

// ChangeSetReader reads the server-side records a device has not seen yet.
type ChangeSetReader struct {
	store *store.Store
}

func NewChangeSetReader(st *store.Store) *ChangeSetReader {
	return &ChangeSetReader{store: st}
}

// Read returns every record owned by userID, tombstones included. With a
// non-nil since, only records whose updatedAt is strictly after it are
// returned.
func (r *ChangeSetReader) Read(ctx context.Context, userID string, since *time.Time) (*ServerChanges, error) {
	preds := []store.Predicate{store.OwnedBy(userID)}
	if since != nil {
		preds = append(preds, store.UpdatedAfter(*since))
	}
	crit := store.Where(preds...)
	repos := r.store.Repos()

	collections, err := repos.Collections.Find(ctx, crit)
	if err != nil {
		return nil, fmt.Errorf("read collections: %w", err)
	}
	items, err := repos.Items.Find(ctx, crit)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	tags, err := repos.Tags.Find(ctx, crit)
	if err != nil {
		return nil, fmt.Errorf("read tags: %w", err)
	}

	itemIDs := make([]string, len(items))
	for i, it := range items {
		itemIDs[i] = it.ID
	}
	links, err := repos.Items.TagIDs(ctx, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("read item tags: %w", err)
	}

	out := &ServerChanges{
		Collections: make([]CollectionRecord, 0, len(collections)),
		Items:       make([]ItemRecord, 0, len(items)),
		Tags:        make([]TagRecord, 0, len(tags)),
	}
	for _, c := range collections {
		out.Collections = append(out.Collections, collectionRecord(c))
	}
	for _, it := range items {
		it.TagIDs = links[it.ID]
		if it.TagIDs == nil {
			it.TagIDs = []string{}
		}
		out.Items = append(out.Items, itemRecord(it))
	}
	for _, t := range tags {
		out.Tags = append(out.Tags, tagRecord(t))
	}
	return out, nil
}
