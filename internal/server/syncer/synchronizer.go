package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shelfsync/shelfsync/internal/server/conflict"
	"github.com/shelfsync/shelfsync/internal/server/store"
)

// kind describes how records of one entity kind are looked up and written.
// apply runs the same algorithm for every kind through it.
type kind[R any] struct {
	entity EntityType
	id     func(rec *R) string
	stamp  func(rec *R) conflict.Stamp
	// load returns the stored stamp, store.ErrNotFound when the id is new, or
	// store.ErrNotOwned when another user owns the id.
	// overwrite returns store.ErrStaleVersion when the stored version is no
	// longer lower than the record's.
	load      func(ctx context.Context, r *store.Repos, userID string, rec *R) (conflict.Stamp, error)
	insert    func(ctx context.Context, r *store.Repos, userID string, rec *R, now time.Time) error
	overwrite func(ctx context.Context, r *store.Repos, userID string, rec *R, now time.Time) error
}

// outcome collects per-record results across all kinds of one batch.
type outcome struct {
	conflicts []ConflictReport
	skipped   []SkippedRecord
}

// apply merges records into the store one by one, each in its own transaction.
// A failing record is logged and skipped; the returned count only includes
// records that were written. The error is non-nil only when ctx is done.
func apply[R any](ctx context.Context, st *store.Store, k kind[R], userID string, records []R, now time.Time, out *outcome) (int, error) {
	synced := 0

	for i := range records {
		if err := ctx.Err(); err != nil {
			return synced, err
		}

		rec := &records[i]
		client := k.stamp(rec)

		var (
			decision conflict.Decision
			server   conflict.Stamp
			wrote    bool
		)
		err := st.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
			current, err := k.load(ctx, r, userID, rec)
			if errors.Is(err, store.ErrNotFound) {
				if err := k.insert(ctx, r, userID, rec, now); err != nil {
					return err
				}
				wrote = true
				return nil
			}
			if err != nil {
				return err
			}

			server = current
			decision = conflict.Resolve(current, client)
			if !decision.ClientWon() {
				return nil
			}
			err = k.overwrite(ctx, r, userID, rec, now)
			if errors.Is(err, store.ErrStaleVersion) {
				// a concurrent writer got there first; decide again against its version
				if server, err = k.load(ctx, r, userID, rec); err != nil {
					return err
				}
				decision = conflict.Resolve(server, client)
				return nil
			}
			if err != nil {
				return err
			}
			wrote = true
			return nil
		})

		if decision.Conflict {
			out.conflicts = append(out.conflicts, ConflictReport{
				EntityType:    k.entity,
				EntityID:      k.id(rec),
				Resolution:    decision.Resolution,
				ServerVersion: server.Version,
				ClientVersion: client.Version,
				Reason:        decision.Reason,
			})
		}

		if err != nil {
			slog.Error("sync record skipped", "entity", k.entity, "id", k.id(rec), "user", userID, "error", err)
			out.skipped = append(out.skipped, SkippedRecord{
				EntityType: k.entity,
				EntityID:   k.id(rec),
				Reason:     skipReason(err),
			})
			continue
		}
		if wrote {
			synced++
		}
	}

	return synced, nil
}

// skipReason keeps storage details out of client responses.
func skipReason(err error) string {
	for _, known := range []error{store.ErrNotOwned, ErrCollectionNotOwned, ErrTagNotOwned} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "record could not be stored"
}
