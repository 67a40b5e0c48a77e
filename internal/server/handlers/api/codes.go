package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied

	// Auth errors
	CodeAuthInvalidCredentials = "E_AUTH_INVALID_CREDENTIALS" // authentication credentials (e.g., token) are invalid, expired, or malformed.

	// Sync errors
	CodeSyncFailed = "E_SYNC_FAILED" // the sync call failed after it started; the client should retry the whole call.

	// Storage errors
	CodeStoragePresignFailed = "E_STORAGE_PRESIGN_FAILED" // a failure while generating a pre-signed upload URL.
	CodeStorageDeleteFailed  = "E_STORAGE_DELETE_FAILED"  // a failure during the operation to delete an object.
	CodeStorageForbiddenKey  = "E_STORAGE_FORBIDDEN_KEY"  // the object key is outside the caller's namespace.
	CodeStorageDisabled      = "E_STORAGE_DISABLED"       // object storage is not configured on this server.
)
