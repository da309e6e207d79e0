package attachments

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/JonMunkholm/labtrack/internal/records"
)

// Cloudinary uploads files as public image resources so PDFs get a direct
// delivery URL.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
	log    *slog.Logger
}

// CloudinaryConfig holds account credentials.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	// Folder is prepended to public ids. Optional.
	Folder string
	Logger *slog.Logger
}

// NewCloudinary builds an uploader from account credentials.
func NewCloudinary(cfg CloudinaryConfig) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("create cloudinary client: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Cloudinary{
		cld:    cld,
		folder: cfg.Folder,
		log:    log.With("component", "attachments", "backend", "cloudinary"),
	}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, filename, _ string, body io.Reader) (records.Attachment, error) {
	id := PublicID(filename)
	if id == "" {
		return records.Attachment{}, fmt.Errorf("%w: %q", ErrInvalidFile, filename)
	}

	resp, err := c.cld.Upload.Upload(ctx, body, c.uploadParams(id))
	if err != nil {
		c.log.Error("upload failed", "file", filename, "error", err)
		return records.Attachment{}, fmt.Errorf("%w: %s: %w", ErrUploadFailed, filename, err)
	}
	if resp.Error.Message != "" {
		c.log.Error("upload rejected", "file", filename, "message", resp.Error.Message)
		return records.Attachment{}, fmt.Errorf("%w: %s: %s", ErrUploadFailed, filename, resp.Error.Message)
	}

	c.log.Info("uploaded", "file", filename, "public_id", resp.PublicID)
	return records.Attachment{URL: resp.SecureURL, Name: DisplayName(filename)}, nil
}

// uploadParams overwrites any earlier file with the same public id. Uploads
// are publicly readable by default.
func (c *Cloudinary) uploadParams(id string) uploader.UploadParams {
	return uploader.UploadParams{
		PublicID:     id,
		Folder:       c.folder,
		Overwrite:    api.Bool(true),
		ResourceType: "image",
	}
}
