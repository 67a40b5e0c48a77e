package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shelfsync/shelfsync/internal/utils"
)

const (
	DefaultExpiry = 15 * time.Minute
	MinExpiry     = time.Minute
	MaxExpiry     = time.Hour
)

var (
	ErrDisabled     = errors.New("object storage is not configured")
	ErrForbiddenKey = errors.New("you can only delete files inside your own storage namespace")
	ErrInvalidInput = errors.New("invalid upload request")
)

type objectDeleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type UploadRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
	Folder      string `json:"folder,omitempty"`
	// ExpiresIn is in seconds. Zero selects DefaultExpiry.
	ExpiresIn int `json:"expiresIn,omitempty" binding:"omitempty,min=60,max=3600"`
}

type UploadURL struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
	FileURL   string `json:"fileUrl"`
	ExpiresIn int    `json:"expiresIn"`
	Method    string `json:"method"`
}

type DeleteResult struct {
	Deleted bool   `json:"deleted"`
	Key     string `json:"key"`
}

// Service hands out pre-signed upload URLs and deletes objects inside each
// user's namespace of a single bucket.
type Service struct {
	config  *Config
	presign *s3.PresignClient
	deleter objectDeleter
}

// NewService builds an S3 backed service. A disabled config yields a service
// whose operations return ErrDisabled.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	if !cfg.Enabled() {
		return &Service{config: cfg}, nil
	}

	// buildable so the SDK can still apply a custom CA bundle (AWS_CA_BUNDLE)
	httpClient := awshttp.NewBuildableClient().
		WithTransportOptions(func(tr *http.Transport) {
			tr.Proxy = http.ProxyFromEnvironment
			tr.MaxIdleConns = 100
			tr.MaxIdleConnsPerHost = 50
			tr.IdleConnTimeout = 90 * time.Second
			tr.TLSHandshakeTimeout = 10 * time.Second
			tr.ExpectContinueTimeout = time.Second
			tr.ForceAttemptHTTP2 = true
		}).
		WithTimeout(30 * time.Second)

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(httpClient),
	}
	// without static keys the default chain (env, shared config, instance role) applies
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	slog.Info("object storage", "bucket", cfg.BucketName, "region", cfg.Region, "endpoint", cfg.Endpoint)
	return newService(cfg, client), nil
}

func newService(cfg *Config, client *s3.Client) *Service {
	return &Service{
		config:  cfg,
		presign: s3.NewPresignClient(client),
		deleter: client,
	}
}

func (s *Service) Enabled() bool {
	return s.presign != nil
}

// CreateUploadURL returns a pre-signed PUT URL for a fresh key under the
// user's namespace.
func (s *Service) CreateUploadURL(ctx context.Context, userID string, req *UploadRequest) (*UploadURL, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	if userID == "" || req.FileName == "" || req.ContentType == "" {
		return nil, fmt.Errorf("%w: fileName and contentType are required", ErrInvalidInput)
	}

	expiry := DefaultExpiry
	if req.ExpiresIn != 0 {
		expiry = time.Duration(req.ExpiresIn) * time.Second
		if expiry < MinExpiry || expiry > MaxExpiry {
			return nil, fmt.Errorf("%w: expiresIn must be between %d and %d seconds", ErrInvalidInput, int(MinExpiry.Seconds()), int(MaxExpiry.Seconds()))
		}
	}

	key := objectKey(userID, req.FileName, req.Folder)
	signed, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.BucketName),
		Key:         aws.String(key),
		ContentType: aws.String(req.ContentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	return &UploadURL{
		UploadURL: signed.URL,
		Key:       key,
		FileURL:   s.fileURL(key),
		ExpiresIn: int(expiry.Seconds()),
		Method:    signed.Method,
	}, nil
}

// DeleteObject removes key, which must belong to the user.
func (s *Service) DeleteObject(ctx context.Context, userID, key string) (*DeleteResult, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	if !ownsKey(userID, key) {
		return nil, ErrForbiddenKey
	}

	if _, err := s.deleter.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.BucketName),
		Key:    aws.String(key),
	}); err != nil {
		return nil, fmt.Errorf("delete object: %w", err)
	}

	slog.Debug("object deleted", "user", userID, "key", key)
	return &DeleteResult{Deleted: true, Key: key}, nil
}

func (s *Service) fileURL(key string) string {
	if s.config.BucketURL != "" {
		return utils.JoinURL(s.config.BucketURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.config.BucketName, s.config.Region, key)
}
