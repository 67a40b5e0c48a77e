package syncsdk

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	ErrNoServerURL = errors.New("sdk: server url missing")
	ErrNoDeviceID  = errors.New("sdk: device id missing")
	ErrNoIdentity  = errors.New("sdk: access token or user id required")
)

const (
	CodeInvalidRequest         = "E_INVALID_REQUEST"
	CodeRateLimited            = "E_RATE_LIMITED"
	CodeAccessDenied           = "E_ACCESS_DENIED"
	CodeAuthInvalidCredentials = "E_AUTH_INVALID_CREDENTIALS"
	CodeSyncFailed             = "E_SYNC_FAILED"
	CodeStorageForbiddenKey    = "E_STORAGE_FORBIDDEN_KEY"
	CodeStorageDisabled        = "E_STORAGE_DISABLED"
)

// APIError is the error envelope returned by the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d %s - %s", e.StatusCode, e.Code, e.Message)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("sdk: %s: %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		if apiErr, ok := resp.ErrorResult().(*APIError); ok && apiErr.Code != "" {
			apiErr.StatusCode = resp.StatusCode
			return fmt.Errorf("sdk: %s: %w", operation, apiErr)
		}
		return fmt.Errorf("sdk: %s: %w", operation, &APIError{
			StatusCode: resp.StatusCode,
			Code:       "E_UNKNOWN_ERR",
			Message:    resp.String(),
		})
	}
	return nil
}
