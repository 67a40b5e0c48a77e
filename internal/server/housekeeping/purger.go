package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/shelfsync/shelfsync/internal/server/store"
	"github.com/shelfsync/shelfsync/internal/utils"
)

var ErrLocked = errors.New("another purger holds the lock")

// Result counts the rows removed by one purge run.
type Result struct {
	Items       int64
	Tags        int64
	Collections int64
}

func (r *Result) Total() int64 {
	return r.Items + r.Tags + r.Collections
}

// Purger hard-deletes tombstones once every device has had the retention
// window to observe them.
type Purger struct {
	store     *store.Store
	retention time.Duration
	config    *Config
	lock      *flock.Flock
	now       func() time.Time
}

func NewPurger(st *store.Store, retention time.Duration, cfg *Config) *Purger {
	p := &Purger{
		store:     st,
		retention: retention,
		config:    cfg,
		now:       time.Now,
	}
	if cfg.LockFile != "" {
		p.lock = flock.New(cfg.LockFile)
	}
	return p
}

// RunOnce purges every tombstone older than the retention window in a single
// transaction. Items go first so emptied collections can follow.
func (p *Purger) RunOnce(ctx context.Context) (*Result, error) {
	if p.lock != nil {
		if err := utils.EnsureParent(p.lock.Path()); err != nil {
			return nil, fmt.Errorf("lock dir: %w", err)
		}
		locked, err := p.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", p.lock.Path(), err)
		}
		if !locked {
			return nil, ErrLocked
		}
		defer p.lock.Unlock() //nolint:errcheck
	}

	start := p.now()
	cutoff := start.Add(-p.retention).UTC()
	crit := store.Where(store.DeletedBefore(cutoff))

	res := &Result{}
	err := p.store.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
		var err error
		if res.Items, err = r.Items.PurgeTombstones(ctx, crit); err != nil {
			return err
		}
		if res.Tags, err = r.Tags.PurgeTombstones(ctx, crit); err != nil {
			return err
		}
		res.Collections, err = r.Collections.PurgeTombstones(ctx, crit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("purge tombstones: %w", err)
	}

	slog.Info("tombstones purged",
		"cutoff", humanize.Time(cutoff),
		"items", humanize.Comma(res.Items),
		"tags", humanize.Comma(res.Tags),
		"collections", humanize.Comma(res.Collections),
		"took", time.Since(start),
	)
	return res, nil
}

// Start runs a purge immediately and then on every interval tick until ctx is
// done. Failed runs are logged and retried on the next tick.
func (p *Purger) Start(ctx context.Context) error {
	slog.Debug("housekeeping started", "interval", p.config.Interval, "retention", p.retention)

	p.tick(ctx)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("housekeeping stopped")
			return nil
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Purger) tick(ctx context.Context) {
	_, err := p.RunOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrLocked):
		slog.Debug("housekeeping skipped", "reason", err)
	case ctx.Err() != nil:
	default:
		slog.Error("housekeeping error", "error", err)
	}
}
