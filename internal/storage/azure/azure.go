// Package azure stores mosque images in Azure Blob Storage. Clients fetch
// images through a CDN when cdn_url is set, otherwise through short-lived
// read-only SAS URLs.
package azure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/muazhazali/lepakmasjid/internal/config"
	"github.com/muazhazali/lepakmasjid/internal/storage"
	"github.com/muazhazali/lepakmasjid/pkg/checksum"
)

const (
	checksumKey = "sha256"
	clockSkew   = 5 * time.Minute
)

func init() {
	storage.Register("azure", func(cfg *config.Config) (storage.Storage, error) {
		return New(&cfg.Storage.Azure, cfg.Storage.CacheControl)
	})
}

// AzureStorage implements storage.Storage on a single container.
type AzureStorage struct {
	client       *azblob.Client
	credential   *azblob.SharedKeyCredential
	container    string
	cdnURL       string
	cacheControl string
}

func New(cfg *config.AzureStorageConfig, cacheControl string) (*AzureStorage, error) {
	switch {
	case cfg.AccountName == "":
		return nil, errors.New("azure storage account name is required")
	case cfg.AccountKey == "":
		return nil, errors.New("azure storage account key is required")
	case cfg.ContainerName == "":
		return nil, errors.New("azure storage container name is required")
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}
	return &AzureStorage{
		client:       client,
		credential:   cred,
		container:    cfg.ContainerName,
		cdnURL:       strings.TrimRight(cfg.CDNURL, "/"),
		cacheControl: cacheControl,
	}, nil
}

func (s *AzureStorage) blob(path string) *blob.Client {
	return s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(path)
}

func (s *AzureStorage) Upload(ctx context.Context, path string, reader io.Reader, size int64) (*storage.UploadResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	sum := checksum.Sum(data)

	contentType := storage.ContentTypeFor(path)
	headers := &blob.HTTPHeaders{BlobContentType: &contentType}
	if s.cacheControl != "" {
		headers.BlobCacheControl = &s.cacheControl
	}
	bb := s.client.ServiceClient().NewContainerClient(s.container).NewBlockBlobClient(path)
	_, err = bb.Upload(ctx, streaming.NopCloser(bytes.NewReader(data)), &blockblob.UploadOptions{
		HTTPHeaders: headers,
		Metadata:    map[string]*string{checksumKey: &sum},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to Azure Blob: %w", err)
	}
	return &storage.UploadResult{Path: path, Size: int64(len(data)), Checksum: sum}, nil
}

func (s *AzureStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	resp, err := s.blob(path).DownloadStream(ctx, nil)
	if err != nil {
		return nil, wrap(path, err)
	}
	return resp.Body, nil
}

func (s *AzureStorage) Delete(ctx context.Context, path string) error {
	_, err := s.blob(path).Delete(ctx, nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete from Azure Blob: %w", err)
	}
	return nil
}

// GetURL returns cdnURL/path when configured, otherwise a read-only SAS URL
// valid from a few minutes ago (clock skew) until ttl from now.
func (s *AzureStorage) GetURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if s.cdnURL != "" {
		return s.cdnURL + "/" + path, nil
	}
	exists, err := s.Exists(ctx, path)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	}

	now := time.Now().UTC()
	params, err := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		StartTime:     now.Add(-clockSkew),
		ExpiryTime:    now.Add(ttl),
		Permissions:   (&sas.BlobPermissions{Read: true}).String(),
		ContainerName: s.container,
		BlobName:      path,
	}.SignWithSharedKey(s.credential)
	if err != nil {
		return "", fmt.Errorf("failed to generate SAS token: %w", err)
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s?%s",
		s.credential.AccountName(), s.container, (&url.URL{Path: path}).EscapedPath(), params.Encode()), nil
}

func (s *AzureStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.blob(path).GetProperties(ctx, nil)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check blob existence: %w", err)
	}
	return true, nil
}

func (s *AzureStorage) GetMetadata(ctx context.Context, path string) (*storage.FileMetadata, error) {
	props, err := s.blob(path).GetProperties(ctx, nil)
	if err != nil {
		return nil, wrap(path, err)
	}
	md := &storage.FileMetadata{Path: path}
	if props.ContentLength != nil {
		md.Size = *props.ContentLength
	}
	if props.ContentType != nil {
		md.ContentType = *props.ContentType
	}
	if props.LastModified != nil {
		md.LastModified = *props.LastModified
	}
	// Metadata keys come back with the casing the service chose.
	for k, v := range props.Metadata {
		if strings.EqualFold(k, checksumKey) && v != nil {
			md.Checksum = *v
		}
	}
	return md, nil
}

func isNotFound(err error) bool {
	var re *azcore.ResponseError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

func wrap(path string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	}
	return fmt.Errorf("azure blob %s: %w", path, err)
}
