package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/assetinventory/internal/inventory"
	"github.com/JonMunkholm/assetinventory/internal/logging"
)

// DefaultMaxAttachmentSize caps a single attachment.
const DefaultMaxAttachmentSize = 25 << 20

// ErrAttachmentTooLarge is returned when an upload exceeds the size cap.
var ErrAttachmentTooLarge = errors.New("file too large")

// AttachmentService uploads files and links them to assets.
type AttachmentService struct {
	inv     *inventory.Inventory
	store   ObjectStore
	maxSize int64
	ttl     time.Duration
}

// NewAttachmentService returns a service writing to store. A nil store
// makes every upload fail with ErrStorageDisabled.
func NewAttachmentService(inv *inventory.Inventory, store ObjectStore, maxSize int64, ttl time.Duration) *AttachmentService {
	if maxSize <= 0 {
		maxSize = DefaultMaxAttachmentSize
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &AttachmentService{inv: inv, store: store, maxSize: maxSize, ttl: ttl}
}

// Enabled reports whether uploads can succeed.
func (s *AttachmentService) Enabled() bool { return s.store != nil }

// Attach uploads body for assetID and records an AssetAttachment.
func (s *AttachmentService) Attach(ctx context.Context, assetID, fileName, contentType string, body io.Reader, uploadedBy string) (inventory.AssetAttachment, error) {
	if s.store == nil {
		return inventory.AssetAttachment{}, ErrStorageDisabled
	}
	if _, err := s.inv.Assets.Get(ctx, assetID); err != nil {
		return inventory.AssetAttachment{}, fmt.Errorf("asset %s: %w", assetID, err)
	}

	data, err := io.ReadAll(io.LimitReader(body, s.maxSize+1))
	if err != nil {
		return inventory.AssetAttachment{}, fmt.Errorf("read attachment: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return inventory.AssetAttachment{}, ErrAttachmentTooLarge
	}

	key := ObjectKey(assetID, fileName)
	url, err := s.store.Upload(ctx, key, contentType, bytes.NewReader(data))
	if err != nil {
		return inventory.AssetAttachment{}, err
	}

	att, err := s.inv.Attachments.Create(ctx, inventory.AssetAttachment{
		AssetID:            assetID,
		FileURL:            url,
		FileName:           fileName,
		StorageKey:         key,
		UploadedByFullName: uploadedBy,
	})
	if err != nil {
		return inventory.AssetAttachment{}, fmt.Errorf("record attachment: %w", err)
	}

	logging.FromContext(ctx).Info("attachment uploaded",
		"asset_id", assetID,
		"key", key,
		"bytes", len(data),
	)
	return att, nil
}

// List returns the attachments of assetID.
func (s *AttachmentService) List(ctx context.Context, assetID string) ([]inventory.AssetAttachment, error) {
	return s.inv.Attachments.Filter(ctx, map[string]any{"asset_id": assetID})
}

// DownloadURL returns a presigned URL for an attachment.
func (s *AttachmentService) DownloadURL(ctx context.Context, attachmentID string) (string, error) {
	if s.store == nil {
		return "", ErrStorageDisabled
	}
	att, err := s.inv.Attachments.Get(ctx, attachmentID)
	if err != nil {
		return "", err
	}
	return s.store.PresignGet(ctx, att.StorageKey, s.ttl)
}

// ObjectKey is assets/<assetID>/<uuid>-<sanitized name>.
func ObjectKey(assetID, fileName string) string {
	return fmt.Sprintf("assets/%s/%s-%s", assetID, uuid.NewString(), SanitizeName(fileName))
}

// SanitizeName reduces a client file name to a safe object key segment.
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	if out == "" {
		return "file"
	}
	return out
}
