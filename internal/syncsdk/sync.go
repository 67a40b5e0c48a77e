package syncsdk

import (
	"context"
	"time"

	"github.com/shelfsync/shelfsync/internal/server/syncer"
)

const (
	v1SyncFull        = "/api/v1/sync/full"
	v1SyncIncremental = "/api/v1/sync/incremental"
	v1SyncStatus      = "/api/v1/sync/status"
)

// FullSync uploads changes and downloads every record the user owns.
func (c *Client) FullSync(ctx context.Context, changes *syncer.ClientChanges) (*syncer.Response, error) {
	return c.sync(ctx, v1SyncFull, "full sync", &syncer.Request{
		DeviceID: c.deviceID,
		Changes:  changes,
	})
}

// IncrementalSync uploads changes and downloads records updated after since.
// Store the returned LastSyncAt and pass it as since on the next call.
func (c *Client) IncrementalSync(ctx context.Context, since time.Time, changes *syncer.ClientChanges) (*syncer.Response, error) {
	return c.sync(ctx, v1SyncIncremental, "incremental sync", &syncer.Request{
		DeviceID:   c.deviceID,
		LastSyncAt: &since,
		Changes:    changes,
	})
}

func (c *Client) sync(ctx context.Context, path, operation string, body *syncer.Request) (*syncer.Response, error) {
	var out syncer.Response
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetSuccessResult(&out).
		Post(path)
	if err := handleAPIError(res, err, operation); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Status(ctx context.Context) (*syncer.Status, error) {
	var out syncer.Status
	res, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&out).
		Get(v1SyncStatus)
	if err := handleAPIError(res, err, "sync status"); err != nil {
		return nil, err
	}
	return &out, nil
}
