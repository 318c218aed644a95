// Package metadata uploads token logos and the off-chain metadata JSON that
// the on-chain metadata URI points at.
package metadata

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lugondev/swapforge/internal/common"
	"github.com/lugondev/swapforge/internal/errors"
	"github.com/lugondev/swapforge/internal/metrics"
)

// DefaultMaxLogoBytes bounds the decoded logo size.
const DefaultMaxLogoBytes = 5 << 20

// Metadata is the off-chain token metadata document.
type Metadata struct {
	Name        string            `json:"name"`
	Symbol      string            `json:"symbol"`
	Description string            `json:"description"`
	Image       string            `json:"image"`
	Tags        []string          `json:"tags,omitempty"`
	Extensions  map[string]string `json:"extensions,omitempty"`
}

// Uploader writes logos and metadata documents to a Store.
type Uploader struct {
	common.LoggerMixin
	store        Store
	prefix       string
	maxLogoBytes int
	maxSide      int
	maxSource    int
	metrics      metrics.Metrics
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithPrefix sets the object name prefix.
func WithPrefix(prefix string) Option {
	return func(u *Uploader) {
		u.prefix = strings.Trim(prefix, "/")
	}
}

// WithLimits sets the maximum logo size in bytes and the logo bounding box edge.
func WithLimits(maxLogoBytes, maxSide int) Option {
	return func(u *Uploader) {
		if maxLogoBytes > 0 {
			u.maxLogoBytes = maxLogoBytes
		}
		if maxSide > 0 {
			u.maxSide = maxSide
		}
	}
}

// WithSourceLimit sets the longest edge accepted for an uploaded logo.
func WithSourceLimit(maxSourceSide int) Option {
	return func(u *Uploader) {
		if maxSourceSide > 0 {
			u.maxSource = maxSourceSide
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.Metrics) Option {
	return func(u *Uploader) {
		u.metrics = m
	}
}

// NewUploader creates an Uploader.
func NewUploader(store Store, opts ...Option) *Uploader {
	u := &Uploader{
		LoggerMixin:  common.NewLoggerMixin(),
		store:        store,
		maxLogoBytes: DefaultMaxLogoBytes,
		maxSide:      DefaultMaxSide,
		maxSource:    DefaultMaxSourceSide,
		metrics:      metrics.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// WithLogger sets the logger.
func (u *Uploader) WithLogger(logger *slog.Logger) *Uploader {
	u.SetLogger(logger)
	return u
}

// Upload stores the logo, when given, and then the metadata document whose
// image field points at it. Every call writes new objects, so identical
// input yields distinct URIs.
func (u *Uploader) Upload(ctx context.Context, logo []byte, contentType string, md Metadata) (string, error) {
	md.Name = strings.TrimSpace(md.Name)
	md.Symbol = strings.TrimSpace(md.Symbol)
	if md.Name == "" || md.Symbol == "" {
		return "", errors.Validation("Token name and symbol are required")
	}

	if len(logo) > 0 {
		image, err := u.putLogo(ctx, logo, contentType)
		if err != nil {
			return "", err
		}
		md.Image = image
	}

	doc, err := json.Marshal(md)
	if err != nil {
		return "", errors.Internal("encode metadata", err)
	}
	uri, err := u.store.Put(ctx, u.objectName(".json"), "application/json", doc)
	if err != nil {
		return "", errors.UploadFailed("metadata", err)
	}

	u.metrics.IncrementCounter(ctx, metrics.MetricMetadataUploaded, 1)
	u.GetLogger().Info("metadata uploaded", "symbol", md.Symbol, "uri", uri, "image", md.Image)
	return uri, nil
}

func (u *Uploader) putLogo(ctx context.Context, logo []byte, contentType string) (string, error) {
	if len(logo) > u.maxLogoBytes {
		return "", errors.Validation("Token logo is too large")
	}
	if contentType == "" {
		contentType = http.DetectContentType(logo)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", errors.Validation("Token logo must be an image")
	}

	resized, err := Resize(logo, u.maxSide, u.maxSource)
	if err != nil {
		return "", err
	}
	url, err := u.store.Put(ctx, u.objectName(".png"), "image/png", resized)
	if err != nil {
		return "", errors.UploadFailed("logo", err)
	}
	return url, nil
}

func (u *Uploader) objectName(ext string) string {
	name := uuid.NewString() + ext
	if u.prefix == "" {
		return name
	}
	return u.prefix + "/" + name
}

// DecodeImage decodes a base64 image, optionally wrapped in a data URL
// ("data:image/png;base64,..."). It returns the bytes and the declared
// content type, which is empty for bare base64.
func DecodeImage(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var contentType string
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, "", errors.Validation("Image data URL must be base64 encoded")
		}
		contentType = strings.TrimSuffix(header, ";base64")
		s = payload
	}
	if s == "" {
		return nil, "", errors.Validation("Image is required")
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, "", errors.DecodeFailed("image", err)
		}
	}
	return data, contentType, nil
}
