package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/galactavista/galactavista-go/types"
)

// MaxUploadSize is the largest media file the platform accepts.
const MaxUploadSize = 10 << 20 // 10 MiB

// allowedMediaExtensions maps upload file extensions to their MIME types.
var allowedMediaExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".avi":  "video/avi",
	".mov":  "video/mov",
}

// Upload describes one file to attach to a property.
type Upload struct {
	FileName string
	Size     int64
	Content  io.Reader
}

// ValidateUpload applies the platform's pre-upload checks: size limit and
// allowed image/video formats. Violations are *ValidationError and never
// reach the network.
func ValidateUpload(u Upload) error {
	if u.Size > MaxUploadSize {
		return &ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("file size exceeds 10MB limit: %s", FormatFileSize(u.Size)),
		}
	}
	ext := strings.ToLower(filepath.Ext(u.FileName))
	if _, ok := allowedMediaExtensions[ext]; !ok {
		return &ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("file type %q not allowed", ext),
		}
	}
	return nil
}

// UploadFile attaches one media file to a property via multipart POST.
func (c *Client) UploadFile(ctx context.Context, propertyID int64, u Upload) (types.MediaFile, error) {
	if err := ValidateUpload(u); err != nil {
		return types.MediaFile{}, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", u.FileName)
	if err != nil {
		return types.MediaFile{}, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, u.Content); err != nil {
		return types.MediaFile{}, fmt.Errorf("read upload content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return types.MediaFile{}, fmt.Errorf("finalize multipart body: %w", err)
	}

	endpoint := fmt.Sprintf("/properties/%d/upload", propertyID)
	payload, _, err := c.send(ctx, http.MethodPost, endpoint, &buf, writer.FormDataContentType())
	if err != nil {
		return types.MediaFile{}, err
	}
	return decodeEnvelope[types.MediaFile](endpoint, payload)
}

// UploadFiles uploads several files concurrently and returns the created
// records in input order. The first failure cancels the remaining uploads.
func (c *Client) UploadFiles(ctx context.Context, propertyID int64, uploads []Upload) ([]types.MediaFile, error) {
	results := make([]types.MediaFile, len(uploads))
	g, ctx := errgroup.WithContext(ctx)
	for i, u := range uploads {
		i, u := i, u
		g.Go(func() error {
			media, err := c.UploadFile(ctx, propertyID, u)
			if err != nil {
				return err
			}
			results[i] = media
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// GetPropertyMedia lists the active media files attached to a property.
func (c *Client) GetPropertyMedia(ctx context.Context, propertyID int64) ([]types.MediaFile, error) {
	return do[[]types.MediaFile](ctx, c, http.MethodGet, fmt.Sprintf("/properties/%d/media", propertyID), nil)
}

// DeleteMediaFile removes one media file from a property.
func (c *Client) DeleteMediaFile(ctx context.Context, propertyID, fileID int64) error {
	return doVoid(ctx, c, http.MethodDelete, fmt.Sprintf("/properties/%d/media/%d", propertyID, fileID), nil)
}

// FileKind classifies a media file name as "image", "video" or "file".
func FileKind(fileName string) string {
	mime, ok := allowedMediaExtensions[strings.ToLower(filepath.Ext(fileName))]
	switch {
	case !ok:
		return "file"
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case strings.HasPrefix(mime, "video/"):
		return "video"
	default:
		return "file"
	}
}

// FormatFileSize renders a byte count for display, e.g. "2.50 MB".
func FormatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMG"[exp])
}
