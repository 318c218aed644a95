package metadata

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"

	"cloud.google.com/go/storage"

	"github.com/lugondev/swapforge/internal/config"
)

const defaultGCSBaseURL = "https://storage.googleapis.com"

// Store writes objects and returns their public URL.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// NewStore builds the store selected by cfg.
func NewStore(ctx context.Context, cfg config.UploaderConfig) (Store, error) {
	switch cfg.Type {
	case config.UploaderGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		return NewGCSStore(client, cfg.Bucket, cfg.PublicBaseURL), nil
	case config.UploaderMemory, "":
		return NewMemoryStore(cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported uploader type: %s", cfg.Type)
	}
}

// GCSStore writes objects to a Cloud Storage bucket. The bucket is expected
// to be publicly readable through uniform bucket-level access.
type GCSStore struct {
	Client *storage.Client
	Bucket string
	// PublicBaseURL replaces https://storage.googleapis.com/<bucket> in
	// returned URLs when set, e.g. for a CDN in front of the bucket.
	PublicBaseURL string
}

func NewGCSStore(client *storage.Client, bucket, publicBaseURL string) *GCSStore {
	return &GCSStore{
		Client:        client,
		Bucket:        strings.TrimSpace(bucket),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

func (s *GCSStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if s == nil || s.Client == nil {
		return "", fmt.Errorf("gcs store: storage client is nil")
	}
	if s.Bucket == "" {
		return "", fmt.Errorf("gcs store: bucket is empty")
	}

	w := s.Client.Bucket(s.Bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000, immutable"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs store: write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs store: close %s: %w", name, err)
	}
	return s.URL(name), nil
}

// URL returns the public URL of an object.
func (s *GCSStore) URL(name string) string {
	if s.PublicBaseURL != "" {
		return s.PublicBaseURL + "/" + name
	}
	return defaultGCSBaseURL + "/" + s.Bucket + "/" + name
}

func (s *GCSStore) Close() error {
	if s.Client == nil {
		return nil
	}
	return s.Client.Close()
}

// Object is a stored blob.
type Object struct {
	ContentType string
	Data        []byte
}

// MemoryStore keeps objects in memory and serves them over HTTP. It is meant
// for local development and tests.
type MemoryStore struct {
	baseURL string
	mu      sync.RWMutex
	objects map[string]Object
}

func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://uploads"
	}
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]Object),
	}
}

func (s *MemoryStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = Object{ContentType: contentType, Data: append([]byte(nil), data...)}
	return s.baseURL + "/" + name, nil
}

// Get returns a stored object.
func (s *MemoryStore) Get(name string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[name]
	return obj, ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// ServeHTTP serves the object named by the request path. Mount it behind
// http.StripPrefix.
func (s *MemoryStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	obj, ok := s.Get(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	_, _ = w.Write(obj.Data)
}
