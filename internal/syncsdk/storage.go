package syncsdk

import (
	"context"

	"github.com/imroc/req/v3"
	"github.com/shelfsync/shelfsync/internal/server/storage"
)

const (
	v1StorageUploadURL = "/api/v1/storage/upload-url"
	v1StorageObject    = "/api/v1/storage/object"
)

type StorageAPI struct {
	client *req.Client
}

func newStorageAPI(client *req.Client) *StorageAPI {
	return &StorageAPI{client: client}
}

// UploadURL asks the server for a pre-signed PUT URL. The caller uploads the
// bytes directly to object storage.
func (s *StorageAPI) UploadURL(ctx context.Context, params *storage.UploadRequest) (*storage.UploadURL, error) {
	var out storage.UploadURL
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&out).
		Post(v1StorageUploadURL)
	if err := handleAPIError(res, err, "storage upload url"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *StorageAPI) Delete(ctx context.Context, key string) (*storage.DeleteResult, error) {
	var out storage.DeleteResult
	res, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("key", key).
		SetSuccessResult(&out).
		Delete(v1StorageObject)
	if err := handleAPIError(res, err, "storage delete"); err != nil {
		return nil, err
	}
	return &out, nil
}
