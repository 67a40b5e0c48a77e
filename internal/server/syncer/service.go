package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shelfsync/shelfsync/internal/server/store"
)

const failedLogTimeout = 5 * time.Second

// Service orchestrates full and incremental sync for one user at a time.
type Service struct {
	store  *store.Store
	reader *ChangeSetReader
	kinds  *kinds
	config *Config
	now    func() time.Time
}

func NewService(st *store.Store, config *Config) *Service {
	return &Service{
		store:  st,
		reader: NewChangeSetReader(st),
		kinds:  newKinds(config),
		config: config,
		now:    time.Now,
	}
}

// FullSync returns every record the user owns and merges the client batch.
// It does not move the user's stored watermark.
func (s *Service) FullSync(ctx context.Context, userID string, req *Request) (*Response, error) {
	return s.sync(ctx, userID, store.SyncTypeFull, req)
}

// IncrementalSync returns records updated after req.LastSyncAt, merges the
// client batch and advances the user's watermark.
func (s *Service) IncrementalSync(ctx context.Context, userID string, req *Request) (*Response, error) {
	if req != nil && req.LastSyncAt == nil {
		return nil, fmt.Errorf("%w: lastSyncAt is required for incremental sync", ErrInvalidRequest)
	}
	return s.sync(ctx, userID, store.SyncTypeIncremental, req)
}

func (s *Service) validate(userID string, req *Request) error {
	if userID == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidRequest)
	}
	if req == nil {
		return fmt.Errorf("%w: empty request", ErrInvalidRequest)
	}
	if req.DeviceID == "" {
		return fmt.Errorf("%w: deviceId is required", ErrInvalidRequest)
	}
	if n := req.Changes.Len(); n > s.config.MaxBatchSize {
		return fmt.Errorf("%w: batch of %d records exceeds limit of %d", ErrInvalidRequest, n, s.config.MaxBatchSize)
	}
	return nil
}

func (s *Service) sync(ctx context.Context, userID string, syncType store.SyncType, req *Request) (*Response, error) {
	if err := s.validate(userID, req); err != nil {
		return nil, err
	}

	// the watermark handed back to the client is taken before anything is read
	startedAt := s.now().UTC()
	slog.Info("sync start", "type", syncType, "user", userID, "device", req.DeviceID, "since", req.LastSyncAt)

	var since *time.Time
	if syncType == store.SyncTypeIncremental {
		since = req.LastSyncAt
	}

	changes, err := s.reader.Read(ctx, userID, since)
	if err != nil {
		return nil, s.fail(ctx, userID, req.DeviceID, syncType, startedAt, err)
	}

	res := &Response{
		ServerChanges: *changes,
		Conflicts:     []ConflictReport{},
		LastSyncAt:    startedAt,
	}

	if req.Changes != nil {
		if err := s.applyChanges(ctx, userID, req.Changes, res); err != nil {
			return nil, s.fail(ctx, userID, req.DeviceID, syncType, startedAt, err)
		}
	}

	if syncType == store.SyncTypeIncremental {
		if err := s.store.Repos().SyncStates.SetLastSyncAt(ctx, userID, startedAt); err != nil {
			return nil, s.fail(ctx, userID, req.DeviceID, syncType, startedAt, fmt.Errorf("advance watermark: %w", err))
		}
	}

	completedAt := s.now().UTC()
	entry := &store.SyncLog{
		ID:                uuid.NewString(),
		UserID:            userID,
		DeviceID:          req.DeviceID,
		SyncType:          syncType,
		Direction:         store.DirectionBidirectional,
		CollectionsCount:  res.SyncedCollections,
		ItemsCount:        res.SyncedItems,
		TagsCount:         res.SyncedTags,
		ConflictsResolved: res.ConflictsResolved,
		SkippedCount:      len(res.SkippedRecords),
		StartedAt:         store.NewTimestamp(startedAt),
		CompletedAt:       store.NewTimestamp(completedAt),
		DurationMs:        completedAt.Sub(startedAt).Milliseconds(),
		Status:            store.SyncStatusSuccess,
	}
	if err := s.store.Repos().SyncLogs.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("write sync log: %w", err)
	}

	slog.Info("sync completed",
		"type", syncType,
		"user", userID,
		"device", req.DeviceID,
		"collections", res.SyncedCollections,
		"items", res.SyncedItems,
		"tags", res.SyncedTags,
		"conflicts", res.ConflictsResolved,
		"skipped", len(res.SkippedRecords),
		"duration", completedAt.Sub(startedAt),
	)

	return res, nil
}

// applyChanges merges collections, then tags, then items so an item can refer
// to a collection or tag created in the same batch.
func (s *Service) applyChanges(ctx context.Context, userID string, changes *ClientChanges, res *Response) error {
	var out outcome
	now := s.now().UTC()

	var err error
	if res.SyncedCollections, err = apply(ctx, s.store, s.kinds.collections, userID, changes.Collections, now, &out); err != nil {
		return err
	}
	if res.SyncedTags, err = apply(ctx, s.store, s.kinds.tags, userID, changes.Tags, now, &out); err != nil {
		return err
	}
	if res.SyncedItems, err = apply(ctx, s.store, s.kinds.items, userID, changes.Items, now, &out); err != nil {
		return err
	}

	res.Conflicts = append(res.Conflicts, out.conflicts...)
	res.ConflictsResolved = len(res.Conflicts)
	res.SkippedRecords = out.skipped
	return nil
}

// fail records a failed sync on a best-effort basis and returns cause.
func (s *Service) fail(ctx context.Context, userID, deviceID string, syncType store.SyncType, startedAt time.Time, cause error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failedLogTimeout)
	defer cancel()

	completedAt := s.now().UTC()
	msg := cause.Error()
	entry := &store.SyncLog{
		ID:           uuid.NewString(),
		UserID:       userID,
		DeviceID:     deviceID,
		SyncType:     syncType,
		Direction:    store.DirectionBidirectional,
		StartedAt:    store.NewTimestamp(startedAt),
		CompletedAt:  store.NewTimestamp(completedAt),
		DurationMs:   completedAt.Sub(startedAt).Milliseconds(),
		Status:       store.SyncStatusFailed,
		ErrorMessage: &msg,
	}
	if err := s.store.Repos().SyncLogs.Insert(ctx, entry); err != nil {
		slog.Warn("sync failure not logged", "user", userID, "error", err)
	}

	slog.Error("sync failed", "type", syncType, "user", userID, "device", deviceID, "error", cause)
	return fmt.Errorf("%s sync: %w", syncType, cause)
}

// Status summarizes the sync history of a user.
func (s *Service) Status(ctx context.Context, userID string) (*Status, error) {
	repos := s.store.Repos()
	status := &Status{}

	last, err := repos.SyncStates.LastSyncAt(ctx, userID)
	switch {
	case err == nil:
		status.LastSyncAt = &last
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("read watermark: %w", err)
	}

	if status.TotalSyncs, err = repos.SyncLogs.Count(ctx, userID); err != nil {
		return nil, fmt.Errorf("count syncs: %w", err)
	}

	latest, err := repos.SyncLogs.Latest(ctx, userID)
	switch {
	case err == nil:
		status.LastSyncDuration = &latest.DurationMs
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("read latest sync: %w", err)
	}

	// pending changes are tracked on devices, not here
	status.PendingChanges = false
	return status, nil
}
