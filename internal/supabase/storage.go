package supabase

import (
	"bytes"
	"fmt"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

// StorageClient wraps Supabase Storage for the two logical buckets the
// service uses: one for uploaded source images, one for generated results.
type StorageClient struct {
	client  *storage.Client
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey string) (*StorageClient, error) {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		baseURL: baseURL,
	}, nil
}

// Upload stores an object and returns its storage path and public URL.
func (s *StorageClient) Upload(bucket, name string, data []byte, contentType string) (string, string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := false
	_, err := s.client.UploadFile(bucket, name, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload file: %w", err)
	}

	return name, s.PublicURL(bucket, name), nil
}

func (s *StorageClient) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, bucket, path)
}

func (s *StorageClient) Delete(bucket, name string) error {
	_, err := s.client.RemoveFile(bucket, []string{name})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
