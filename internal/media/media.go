package media

import (
	"context"
	"io"
	"time"
)

type Media struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	PublicID     string    `json:"publicId"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UploadResult is what the storage backend reports for a stored object.
type UploadResult struct {
	PublicID string
	URL      string
}

// Uploader is the object-storage collaborator. The service only delegates
// bytes to it and removes them again; everything else about binary handling
// lives behind this port.
type Uploader interface {
	Upload(ctx context.Context, name, mimeType string, size int64, body io.Reader) (*UploadResult, error)
	Remove(ctx context.Context, publicID string) error
}
