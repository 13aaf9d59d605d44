package storage

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/google/uuid"

	"sitevault/internal/errors"
	"sitevault/internal/logging"
)

// Azure implements Adapter for Azure Blob Storage
type Azure struct {
	cfg        AzureConfig
	credential *azblob.SharedKeyCredential
	serviceURL azblob.ServiceURL
	connected  bool
	logger     *logging.Logger
}

// NewAzure creates an Azure Blob Storage adapter
func NewAzure(cfg AzureConfig, logger *logging.Logger) *Azure {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Azure{cfg: cfg, logger: logger}
}

// Kind returns the adapter kind
func (a *Azure) Kind() Kind { return KindAzure }

// Name returns the human-readable adapter name
func (a *Azure) Name() string { return "Azure Blob Storage" }

// IsConfigured reports whether account and container are set
func (a *Azure) IsConfigured() bool { return a.cfg.IsConfigured() }

// Connect builds the service pipeline and verifies the container is reachable
func (a *Azure) Connect(ctx context.Context) error {
	if !a.IsConfigured() {
		return errors.NewConfigurationError("Azure storage is not configured", nil)
	}

	if !a.connected {
		credential, err := azblob.NewSharedKeyCredential(a.cfg.AccountName, a.cfg.AccountKey)
		if err != nil {
			return errors.NewConfigurationError("failed to create Azure credentials", err)
		}

		pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

		serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", a.cfg.AccountName))
		if err != nil {
			return errors.NewConfigurationError("failed to parse Azure service URL", err)
		}

		a.credential = credential
		a.serviceURL = azblob.NewServiceURL(*serviceURL, pipeline)
		a.connected = true
	}

	containerURL := a.serviceURL.NewContainerURL(a.cfg.ContainerName)
	if _, err := containerURL.GetProperties(ctx, azblob.LeaseAccessConditions{}); err != nil {
		return errors.NewTransferError(fmt.Sprintf("Azure container %s is not accessible", a.cfg.ContainerName), err)
	}

	return nil
}

func (a *Azure) containerURL() azblob.ContainerURL {
	return a.serviceURL.NewContainerURL(a.cfg.ContainerName)
}

// blobName maps a remote path onto a safe blob name
func (a *Azure) blobName(remotePath string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(remotePath, "\\", "/")), "/")
}

// Upload stores a local file as a block blob using the SDK's buffered uploader
func (a *Azure) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.NewIOError("failed to open source file", err)
	}
	defer f.Close()

	blobURL := a.containerURL().NewBlockBlobURL(a.blobName(remotePath))
	_, err = azblob.UploadFileToBlockBlob(ctx, f, blobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024, // 4MB blocks
		Parallelism: 16,
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/zip",
		},
	})
	if err != nil {
		return errors.NewTransferError("failed to upload blob to Azure", err)
	}

	return nil
}

// UploadChunked stages one block per part and commits the block list as the
// finalize step. Azure has no abort call: staged blocks of an uncommitted
// blob are garbage-collected by the service.
func (a *Azure) UploadChunked(ctx context.Context, localPath, remotePath string, chunkSize int64, onProgress ProgressFunc) error {
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

	blobURL := a.containerURL().NewBlockBlobURL(a.blobName(remotePath))
	sessionID := uuid.New().String()

	// Block IDs must share a common length within one block list
	blockIDs := make([]string, 0, len(parts))
	var transferred int64
	for _, part := range parts {
		select {
		case <-ctx.Done():
			return errors.New(errors.ErrorTypeInterruption, "upload canceled", ctx.Err())
		default:
		}

		blockID := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s-%05d", sessionID, part.Index)))
		_, err := blobURL.StageBlock(ctx, blockID,
			io.NewSectionReader(f, part.Offset, part.Size),
			azblob.LeaseAccessConditions{}, nil, azblob.ClientProvidedKeyOptions{})
		if err != nil {
			return errors.NewTransferError(fmt.Sprintf("failed to stage block %d", part.Index+1), err)
		}
		blockIDs = append(blockIDs, blockID)

		transferred += part.Size
		if onProgress != nil {
			onProgress(transferred, info.Size())
		}
	}

	// Finalize: commit the ordered block list
	_, err = blobURL.CommitBlockList(ctx, blockIDs,
		azblob.BlobHTTPHeaders{ContentType: "application/zip"},
		azblob.Metadata{}, azblob.BlobAccessConditions{}, azblob.DefaultAccessTier,
		nil, azblob.ClientProvidedKeyOptions{}, azblob.ImmutabilityPolicyOptions{})
	if err != nil {
		return errors.NewTransferError("failed to commit block list", err)
	}

	return nil
}

// Download retrieves a blob into a local file
func (a *Azure) Download(ctx context.Context, remotePath, localPath string) error {
	blobURL := a.containerURL().NewBlockBlobURL(a.blobName(remotePath))

	response, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if isAzureNotFound(err) {
			return errors.NewNotFoundError(fmt.Sprintf("object not found: %s", remotePath), err)
		}
		return errors.NewTransferError("failed to download blob from Azure", err)
	}

	body := response.Body(azblob.RetryReaderOptions{MaxRetryRequests: 20})
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return errors.NewIOError("failed to create destination directory", err)
	}

	dst, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewIOError("failed to create destination file", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, body); err != nil {
		return errors.NewTransferError("failed to read blob body", err)
	}

	return nil
}

// Delete removes a blob
func (a *Azure) Delete(ctx context.Context, remotePath string) error {
	blobURL := a.containerURL().NewBlockBlobURL(a.blobName(remotePath))

	_, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{})
	if err != nil {
		if isAzureNotFound(err) {
			return errors.NewNotFoundError(fmt.Sprintf("object not found: %s", remotePath), err)
		}
		return errors.NewTransferError("failed to delete blob from Azure", err)
	}

	return nil
}

// List returns the blobs and virtual directories directly under the given path
func (a *Azure) List(ctx context.Context, dir string) ([]ObjectInfo, error) {
	prefix := a.blobName(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var objects []ObjectInfo
	for marker := (azblob.Marker{}); marker.NotDone(); {
		response, err := a.containerURL().ListBlobsHierarchySegment(ctx, marker, "/", azblob.ListBlobsSegmentOptions{
			Prefix: prefix,
		})
		if err != nil {
			return nil, errors.NewTransferError("failed to list blobs from Azure", err)
		}

		for _, bp := range response.Segment.BlobPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(bp.Name, prefix), "/")
			if name == "" {
				continue
			}
			objects = append(objects, ObjectInfo{
				Name:  name,
				Path:  path.Join(dir, name),
				IsDir: true,
			})
		}
		for _, blob := range response.Segment.BlobItems {
			name := strings.TrimPrefix(blob.Name, prefix)
			if name == "" {
				continue
			}
			var size int64
			if blob.Properties.ContentLength != nil {
				size = *blob.Properties.ContentLength
			}
			objects = append(objects, ObjectInfo{
				Name:     name,
				Path:     path.Join(dir, name),
				Size:     size,
				Modified: blob.Properties.LastModified,
			})
		}

		marker = response.NextMarker
	}

	return objects, nil
}

// Exists reports whether a blob exists
func (a *Azure) Exists(ctx context.Context, remotePath string) (bool, error) {
	meta, err := a.GetMetadata(ctx, remotePath)
	if err != nil {
		return false, err
	}
	return meta != nil, nil
}

// GetMetadata returns blob properties, or nil when the blob is absent
func (a *Azure) GetMetadata(ctx context.Context, remotePath string) (*ObjectMetadata, error) {
	blobURL := a.containerURL().NewBlockBlobURL(a.blobName(remotePath))

	props, err := blobURL.GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if isAzureNotFound(err) {
			return nil, nil
		}
		return nil, errors.NewTransferError("failed to read blob properties", err)
	}

	var checksum string
	if md5 := props.ContentMD5(); len(md5) > 0 {
		checksum = hex.EncodeToString(md5)
	}

	return &ObjectMetadata{
		Name:     path.Base(remotePath),
		Size:     props.ContentLength(),
		Modified: props.LastModified(),
		Checksum: checksum,
	}, nil
}

// GetDownloadURL returns a read-only SAS URL for the blob
func (a *Azure) GetDownloadURL(ctx context.Context, remotePath string, expiry time.Duration) (string, error) {
	if a.credential == nil {
		return "", errors.NewConfigurationError("Azure adapter is not connected", nil)
	}

	blobName := a.blobName(remotePath)
	sasValues := azblob.BlobSASSignatureValues{
		Protocol:      azblob.SASProtocolHTTPS,
		ExpiryTime:    time.Now().UTC().Add(expiry),
		ContainerName: a.cfg.ContainerName,
		BlobName:      blobName,
		Permissions:   azblob.BlobSASPermissions{Read: true}.String(),
	}

	sasParams, err := sasValues.NewSASQueryParameters(a.credential)
	if err != nil {
		return "", errors.NewTransferError("failed to sign download URL", err)
	}

	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s?%s",
		a.cfg.AccountName, a.cfg.ContainerName, blobName, sasParams.Encode()), nil
}

// GetStorageInfo sums the sizes of all blobs in the container
func (a *Azure) GetStorageInfo(ctx context.Context) (*StorageInfo, error) {
	var used int64
	for marker := (azblob.Marker{}); marker.NotDone(); {
		response, err := a.containerURL().ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{})
		if err != nil {
			return nil, errors.NewTransferError("failed to measure storage usage", err)
		}

		for _, blob := range response.Segment.BlobItems {
			if blob.Properties.ContentLength != nil {
				used += *blob.Properties.ContentLength
			}
		}

		marker = response.NextMarker
	}

	return &StorageInfo{Used: used}, nil
}

// SettingsSpec returns the Azure adapter settings schema
func (a *Azure) SettingsSpec() []SettingField {
	return []SettingField{
		{Key: "account_name", Label: "Storage account", Type: "string", Required: true},
		{Key: "account_key", Label: "Account key", Type: "string", Secret: true, Required: true},
		{Key: "container", Label: "Container", Type: "string", Required: true},
	}
}

// ApplySettings applies settings values and forces a reconnect
func (a *Azure) ApplySettings(values map[string]string) error {
	if v, ok := values["account_name"]; ok {
		a.cfg.AccountName = v
	}
	if v, ok := values["account_key"]; ok {
		a.cfg.AccountKey = v
	}
	if v, ok := values["container"]; ok {
		a.cfg.ContainerName = v
	}
	a.connected = false
	return nil
}

// isAzureNotFound reports whether a storage error indicates a missing blob
func isAzureNotFound(err error) bool {
	if stgErr, ok := err.(azblob.StorageError); ok {
		code := stgErr.ServiceCode()
		return code == azblob.ServiceCodeBlobNotFound || code == azblob.ServiceCodeContainerNotFound
	}
	return false
}
