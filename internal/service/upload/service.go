package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/splax/gameportal/internal/domain"
)

// DefaultMaxBytes bounds a payment proof when no limit is configured.
const DefaultMaxBytes int64 = 2 << 20

// DefaultAllowedTypes are the image formats accepted as payment proof.
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/webp"}

// Storage persists accepted files and returns the URL they can be fetched from.
// Delete of a missing key is not an error.
type Storage interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}

// File is an incoming attachment. Name is the client-supplied filename; it is logged
// for troubleshooting but never used to build the stored key.
type File struct {
	Content io.Reader
	Size    int64
	Name    string
}

// Config limits what Save accepts.
type Config struct {
	MaxBytes     int64
	AllowedTypes []string
}

// Service validates and stores payment proofs.
type Service struct {
	storage Storage
	max     int64
	allowed []string
	logger  *slog.Logger
	now     func() time.Time
}

// New constructs a Service.
func New(storage Storage, cfg Config, logger *slog.Logger) *Service {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	allowed := normalizeTypes(cfg.AllowedTypes)
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{storage: storage, max: cfg.MaxBytes, allowed: allowed, logger: logger, now: time.Now}
}

// MaxBytes is the largest accepted file.
func (s *Service) MaxBytes() int64 {
	return s.max
}

// Save checks presence, size and sniffed content type, in that order, and only then
// writes the file. Nothing is written when a check fails.
func (s *Service) Save(ctx context.Context, f *File) (domain.UploadedFile, error) {
	if f == nil || f.Content == nil {
		return domain.UploadedFile{}, domain.ErrMissingAttachment
	}
	if f.Size > s.max {
		return domain.UploadedFile{}, fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrPayloadTooLarge, f.Size, s.max)
	}

	data, err := io.ReadAll(io.LimitReader(f.Content, s.max+1))
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("read attachment: %w", err)
	}
	if int64(len(data)) > s.max {
		return domain.UploadedFile{}, fmt.Errorf("%w: exceeds %d bytes", domain.ErrPayloadTooLarge, s.max)
	}
	if len(data) == 0 {
		return domain.UploadedFile{}, domain.ErrMissingAttachment
	}

	mt := mimetype.Detect(data)
	if !s.accepts(mt) {
		s.logger.Info("upload rejected", "detected_type", mt.String(), "filename", f.Name)
		return domain.UploadedFile{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedMediaType, mt.String())
	}

	contentType := baseType(mt.String())
	key := fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), uuid.NewString(), mt.Extension())
	url, err := s.storage.Put(ctx, key, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("%w: store upload: %v", domain.ErrStorage, err)
	}
	s.logger.Info("upload stored", "key", key, "content_type", contentType, "size", len(data))
	return domain.UploadedFile{Key: key, ContentType: contentType, Size: int64(len(data)), URL: url}, nil
}

// Discard removes a file stored by Save whose owning record could not be written.
func (s *Service) Discard(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: discard upload: %v", domain.ErrStorage, err)
	}
	s.logger.Info("upload discarded", "key", key)
	return nil
}

func (s *Service) accepts(mt *mimetype.MIME) bool {
	for _, allowed := range s.allowed {
		if mt.Is(allowed) {
			return true
		}
	}
	return false
}

func normalizeTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "image/jpg" {
			t = "image/jpeg"
		}
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func baseType(value string) string {
	if idx := strings.IndexByte(value, ';'); idx >= 0 {
		return strings.TrimSpace(value[:idx])
	}
	return value
}
