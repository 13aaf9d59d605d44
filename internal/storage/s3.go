package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"sitevault/internal/errors"
	"sitevault/internal/logging"
)

// s3API is the subset of the S3 client used by the adapter. Tests provide
// a fake implementation to exercise the multipart session protocol.
type s3API interface {
	HeadBucketWithContext(aws.Context, *s3.HeadBucketInput, ...request.Option) (*s3.HeadBucketOutput, error)
	PutObjectWithContext(aws.Context, *s3.PutObjectInput, ...request.Option) (*s3.PutObjectOutput, error)
	GetObjectWithContext(aws.Context, *s3.GetObjectInput, ...request.Option) (*s3.GetObjectOutput, error)
	HeadObjectWithContext(aws.Context, *s3.HeadObjectInput, ...request.Option) (*s3.HeadObjectOutput, error)
	DeleteObjectWithContext(aws.Context, *s3.DeleteObjectInput, ...request.Option) (*s3.DeleteObjectOutput, error)
	ListObjectsV2PagesWithContext(aws.Context, *s3.ListObjectsV2Input, func(*s3.ListObjectsV2Output, bool) bool, ...request.Option) error
	CreateMultipartUploadWithContext(aws.Context, *s3.CreateMultipartUploadInput, ...request.Option) (*s3.CreateMultipartUploadOutput, error)
	UploadPartWithContext(aws.Context, *s3.UploadPartInput, ...request.Option) (*s3.UploadPartOutput, error)
	CompleteMultipartUploadWithContext(aws.Context, *s3.CompleteMultipartUploadInput, ...request.Option) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUploadWithContext(aws.Context, *s3.AbortMultipartUploadInput, ...request.Option) (*s3.AbortMultipartUploadOutput, error)
	GetObjectRequest(*s3.GetObjectInput) (*request.Request, *s3.GetObjectOutput)
}

// S3 implements Adapter for Amazon S3 object storage
type S3 struct {
	api    s3API
	cfg    S3Config
	logger *logging.Logger
}

// NewS3 creates an S3 adapter. The client is built lazily on Connect so
// settings can still change before first use.
func NewS3(cfg S3Config, logger *logging.Logger) *S3 {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &S3{cfg: cfg, logger: logger}
}

// Kind returns the adapter kind
func (s *S3) Kind() Kind { return KindS3 }

// Name returns the human-readable adapter name
func (s *S3) Name() string { return "Amazon S3" }

// IsConfigured reports whether bucket and credentials are set
func (s *S3) IsConfigured() bool { return s.cfg.IsConfigured() }

// Connect builds the S3 client and verifies the bucket is reachable
func (s *S3) Connect(ctx context.Context) error {
	if !s.IsConfigured() {
		return errors.NewConfigurationError("S3 storage is not configured", nil)
	}

	if s.api == nil {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(s.cfg.Region),
			Credentials: credentials.NewStaticCredentials(
				s.cfg.AccessKey,
				s.cfg.SecretKey,
				"", // token
			),
		})
		if err != nil {
			return errors.NewConfigurationError("failed to create AWS session", err)
		}
		s.api = s3.New(sess)
	}

	_, err := s.api.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.cfg.Bucket),
	})
	if err != nil {
		return errors.NewTransferError(fmt.Sprintf("S3 bucket %s is not accessible", s.cfg.Bucket), err)
	}

	return nil
}

// key maps a remote path onto the configured object prefix
func (s *S3) key(remotePath string) string {
	cleaned := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(remotePath, "\\", "/")), "/")
	prefix := s.cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + cleaned
}

// Upload stores a local file as a single S3 object
func (s *S3) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.NewIOError("failed to open source file", err)
	}
	defer f.Close()

	_, err = s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(s.key(remotePath)),
		Body:        f,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return errors.NewTransferError("failed to upload object to S3", err)
	}

	return nil
}

// UploadChunked stores a local file through S3's multipart protocol. A
// failed part or finalize aborts the multipart session.
func (s *S3) UploadChunked(ctx context.Context, localPath, remotePath string, chunkSize int64, onProgress ProgressFunc) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return errors.NewIOError("failed to stat source file", err)
	}

	parts := PartPlan(info.Size(), chunkSize)
	if len(parts) == 0 {
		return errors.NewValidationError("nothing to upload: empty payload or invalid chunk size", nil)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return errors.NewIOError("failed to open source file", err)
	}
	defer f.Close()

	objectKey := s.key(remotePath)

	// Initiate session
	created, err := s.api.CreateMultipartUploadWithContext(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return errors.NewTransferError("failed to initiate multipart upload", err)
	}
	uploadID := created.UploadId

	abort := func() {
		_, abortErr := s.api.AbortMultipartUploadWithContext(ctx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(s.cfg.Bucket),
			Key:      aws.String(objectKey),
			UploadId: uploadID,
		})
		if abortErr != nil {
			s.logger.Warnf("Failed to abort multipart upload %s: %v", aws.StringValue(uploadID), abortErr)
		}
	}

	completed := make([]*s3.CompletedPart, 0, len(parts))
	var transferred int64
	for _, part := range parts {
		select {
		case <-ctx.Done():
			abort()
			return errors.New(errors.ErrorTypeInterruption, "upload canceled", ctx.Err())
		default:
		}

		partNumber := int64(part.Index + 1)
		out, err := s.api.UploadPartWithContext(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(s.cfg.Bucket),
			Key:        aws.String(objectKey),
			UploadId:   uploadID,
			PartNumber: aws.Int64(partNumber),
			Body:       io.NewSectionReader(f, part.Offset, part.Size),
		})
		if err != nil {
			abort()
			return errors.NewTransferError(fmt.Sprintf("failed to upload part %d", partNumber), err)
		}

		completed = append(completed, &s3.CompletedPart{
			ETag:       out.ETag,
			PartNumber: aws.Int64(partNumber),
		})

		transferred += part.Size
		if onProgress != nil {
			onProgress(transferred, info.Size())
		}
	}

	// Finalize
	_, err = s.api.CompleteMultipartUploadWithContext(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.cfg.Bucket),
		Key:      aws.String(objectKey),
		UploadId: uploadID,
		MultipartUpload: &s3.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		abort()
		return errors.NewTransferError("failed to finalize multipart upload", err)
	}

	return nil
}

// Download retrieves an S3 object into a local file
func (s *S3) Download(ctx context.Context, remotePath, localPath string) error {
	result, err := s.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(remotePath)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return errors.NewNotFoundError(fmt.Sprintf("object not found: %s", remotePath), err)
		}
		return errors.NewTransferError("failed to download object from S3", err)
	}
	defer result.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return errors.NewIOError("failed to create destination directory", err)
	}

	dst, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewIOError("failed to create destination file", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, result.Body); err != nil {
		return errors.NewTransferError("failed to read object body", err)
	}

	return nil
}

// Delete removes an S3 object
func (s *S3) Delete(ctx context.Context, remotePath string) error {
	exists, err := s.Exists(ctx, remotePath)
	if err != nil {
		return err
	}
	if !exists {
		return errors.NewNotFoundError(fmt.Sprintf("object not found: %s", remotePath), nil)
	}

	_, err = s.api.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(remotePath)),
	})
	if err != nil {
		return errors.NewTransferError("failed to delete object from S3", err)
	}

	return nil
}

// List returns the objects and prefixes directly under the given path
func (s *S3) List(ctx context.Context, dir string) ([]ObjectInfo, error) {
	prefix := s.key(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var objects []ObjectInfo
	err := s.api.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.cfg.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.StringValue(cp.Prefix), prefix), "/")
			if name == "" {
				continue
			}
			objects = append(objects, ObjectInfo{
				Name:  name,
				Path:  path.Join(dir, name),
				IsDir: true,
			})
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.StringValue(obj.Key), prefix)
			if name == "" {
				continue
			}
			objects = append(objects, ObjectInfo{
				Name:     name,
				Path:     path.Join(dir, name),
				Size:     aws.Int64Value(obj.Size),
				Modified: aws.TimeValue(obj.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, errors.NewTransferError("failed to list objects from S3", err)
	}

	return objects, nil
}

// Exists reports whether an S3 object exists
func (s *S3) Exists(ctx context.Context, remotePath string) (bool, error) {
	_, err := s.api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(remotePath)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, errors.NewTransferError("failed to check object existence", err)
	}
	return true, nil
}

// GetMetadata returns object metadata, or nil when the object is absent.
// S3 exposes the upload's ETag rather than a content digest; callers that
// need a verified checksum download and hash the object themselves.
func (s *S3) GetMetadata(ctx context.Context, remotePath string) (*ObjectMetadata, error) {
	head, err := s.api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(remotePath)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, nil
		}
		return nil, errors.NewTransferError("failed to read object metadata", err)
	}

	return &ObjectMetadata{
		Name:     path.Base(remotePath),
		Size:     aws.Int64Value(head.ContentLength),
		Modified: aws.TimeValue(head.LastModified),
		Checksum: strings.Trim(aws.StringValue(head.ETag), `"`),
	}, nil
}

// GetDownloadURL returns a presigned GET URL for the object
func (s *S3) GetDownloadURL(ctx context.Context, remotePath string, expiry time.Duration) (string, error) {
	req, _ := s.api.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(remotePath)),
	})

	url, err := req.Presign(expiry)
	if err != nil {
		return "", errors.NewTransferError("failed to presign download URL", err)
	}

	return url, nil
}

// GetStorageInfo sums the sizes of all objects under the configured prefix
func (s *S3) GetStorageInfo(ctx context.Context) (*StorageInfo, error) {
	var used int64
	err := s.api.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(s.cfg.Prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			used += aws.Int64Value(obj.Size)
		}
		return true
	})
	if err != nil {
		return nil, errors.NewTransferError("failed to measure storage usage", err)
	}

	return &StorageInfo{Used: used}, nil
}

// SettingsSpec returns the S3 adapter settings schema
func (s *S3) SettingsSpec() []SettingField {
	return []SettingField{
		{Key: "bucket", Label: "Bucket", Type: "string", Required: true},
		{Key: "region", Label: "Region", Type: "string", Default: "us-east-1"},
		{Key: "prefix", Label: "Object prefix", Type: "string"},
		{Key: "access_key", Label: "Access key ID", Type: "string", Secret: true, Required: true},
		{Key: "secret_key", Label: "Secret access key", Type: "string", Secret: true, Required: true},
	}
}

// ApplySettings applies settings values and forces a reconnect
func (s *S3) ApplySettings(values map[string]string) error {
	if v, ok := values["bucket"]; ok {
		s.cfg.Bucket = v
	}
	if v, ok := values["region"]; ok && v != "" {
		s.cfg.Region = v
	}
	if v, ok := values["prefix"]; ok {
		s.cfg.Prefix = v
	}
	if v, ok := values["access_key"]; ok {
		s.cfg.AccessKey = v
	}
	if v, ok := values["secret_key"]; ok {
		s.cfg.SecretKey = v
	}
	s.api = nil // rebuilt on next Connect
	return nil
}

// isS3NotFound reports whether an AWS error indicates a missing object
func isS3NotFound(err error) bool {
	if reqErr, ok := err.(awserr.RequestFailure); ok && reqErr.StatusCode() == 404 {
		return true
	}
	if aerr, ok := err.(awserr.Error); ok {
		return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
	}
	return false
}
