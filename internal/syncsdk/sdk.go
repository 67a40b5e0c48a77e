package syncsdk

import (
	"net/http"
	"time"

	"github.com/imroc/req/v3"
	"github.com/shelfsync/shelfsync/internal/utils"
	"github.com/shelfsync/shelfsync/internal/version"
)

const (
	HeaderUserID = "X-User-ID"

	defaultRetryCount    = 3
	defaultRetryInterval = time.Second
	defaultTimeout       = 60 * time.Second
)

type Config struct {
	BaseURL string
	// AccessToken is sent as a bearer token. When empty, UserID is sent in the
	// X-User-ID header instead, for servers running with auth disabled.
	AccessToken string
	UserID      string
	// DeviceID defaults to DefaultDeviceID().
	DeviceID      string
	RetryCount    int
	RetryInterval time.Duration
	Timeout       time.Duration
}

func (c *Config) Validate() error {
	if c.BaseURL == "" || !utils.IsValidURL(c.BaseURL) {
		return ErrNoServerURL
	}
	if c.AccessToken == "" && c.UserID == "" {
		return ErrNoIdentity
	}
	if c.DeviceID == "" {
		c.DeviceID = DefaultDeviceID()
	}
	if c.RetryCount == 0 {
		c.RetryCount = defaultRetryCount
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = defaultRetryInterval
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	return nil
}

// Client talks to a ShelfSync server as one device of one user.
type Client struct {
	client   *req.Client
	deviceID string
	Storage  *StorageAPI
}

func New(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := req.C().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetUserAgent(version.UserAgent()).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal).
		SetCommonErrorResult(&APIError{}).
		SetCommonRetryCount(cfg.RetryCount).
		SetCommonRetryFixedInterval(cfg.RetryInterval).
		AddCommonRetryCondition(shouldRetry)

	if cfg.AccessToken != "" {
		client.SetCommonBearerAuthToken(cfg.AccessToken)
	} else {
		client.SetCommonHeader(HeaderUserID, cfg.UserID)
	}

	return &Client{
		client:   client,
		deviceID: cfg.DeviceID,
		Storage:  newStorageAPI(client),
	}, nil
}

func (c *Client) DeviceID() string {
	return c.deviceID
}

// shouldRetry retries transport errors, throttling and server errors. Sync
// calls are safe to replay since applying the same batch twice converges.
func shouldRetry(resp *req.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
}
