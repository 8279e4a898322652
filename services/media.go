package services

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/carebook/cli/api"
)

const mediaUploadEndpoint = "/media/upload"

// MediaUploader uploads attachments (photos, documents, voice notes).
type MediaUploader struct {
	client *api.Client
}

func NewMediaUploader(client *api.Client) *MediaUploader {
	return &MediaUploader{client: client}
}

// Upload sends the file at path. An empty mimeType is guessed from the file
// extension.
func (m *MediaUploader) Upload(
	ctx context.Context,
	path, mimeType string,
	fields map[string]string,
) (*Media, error) {
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(path))
	}

	data, err := m.client.Upload(ctx, mediaUploadEndpoint, api.UploadFile{
		Path:     path,
		Name:     filepath.Base(path),
		MIMEType: mimeType,
	}, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", filepath.Base(path), err)
	}
	return api.Decode[*Media](data)
}
