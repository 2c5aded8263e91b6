package gcp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

// ObjectCategory is the top-level prefix an object is stored under.
type ObjectCategory string

const (
	CategoryDiaryPage ObjectCategory = "diaries"
	CategorySheet     ObjectCategory = "sheets"
)

type BucketService interface {
	Upload(ctx context.Context, category ObjectCategory, key string, r io.Reader) error
	Download(ctx context.Context, category ObjectCategory, key string) (io.ReadCloser, error)
	PublicURL(category ObjectCategory, key string) string
	Close() error
}

type bucketService struct {
	log       *logger.Logger
	client    *storage.Client
	cfg       ObjectStorageConfig
	bucket    string
	cdnDomain string
	http      *http.Client
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	cfg, err := ResolveObjectStorageConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("resolve object storage config: %w", err)
	}
	bucket := strings.TrimSpace(os.Getenv("STORYBOARD_GCS_BUCKET_NAME"))
	if bucket == "" {
		return nil, fmt.Errorf("missing env var STORYBOARD_GCS_BUCKET_NAME")
	}

	ctx := context.Background()
	var opts []option.ClientOption
	if cfg.IsEmulator() {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		opts = []option.ClientOption{option.WithoutAuthentication()}
	} else {
		opts = clientOptions(storage.ScopeReadWrite)
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}

	bs := &bucketService{
		log:       log.With("service", "gcp.Bucket"),
		client:    client,
		cfg:       cfg,
		bucket:    bucket,
		cdnDomain: strings.TrimSpace(os.Getenv("STORYBOARD_CDN_DOMAIN")),
		http:      &http.Client{Timeout: 2 * time.Minute},
	}
	bs.log.Info("Object storage initialized", "mode", cfg.Mode, "implied", cfg.Implied, "bucket", bucket)
	return bs, nil
}

func objectName(category ObjectCategory, key string) string {
	return path.Join(string(category), strings.TrimLeft(strings.TrimSpace(key), "/"))
}

func (bs *bucketService) Upload(ctx context.Context, category ObjectCategory, key string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	name := objectName(category, key)
	w := bs.client.Bucket(bs.bucket).Object(name).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer %s: %w", name, err)
	}
	return nil
}

// cancelOnClose keeps the download context alive until the caller closes the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *cancelOnClose) Close() error {
	err := r.ReadCloser.Close()
	r.cancel()
	return err
}

func (bs *bucketService) Download(ctx context.Context, category ObjectCategory, key string) (io.ReadCloser, error) {
	name := objectName(category, key)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)

	if bs.cfg.IsEmulator() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, emulatorMediaURL(bs.cfg.EmulatorHost, bs.bucket, name), nil)
		if err != nil {
			cancel()
			return nil, err
		}
		resp, err := bs.http.Do(req)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("emulator download %s: %w", name, err)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			cancel()
			return nil, fmt.Errorf("emulator download %s: status=%d", name, resp.StatusCode)
		}
		return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
	}

	rd, err := bs.client.Bucket(bs.bucket).Object(name).NewReader(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open reader %s: %w", name, err)
	}
	return &cancelOnClose{ReadCloser: rd, cancel: cancel}, nil
}

func (bs *bucketService) PublicURL(category ObjectCategory, key string) string {
	name := objectName(category, key)
	switch {
	case bs.cdnDomain != "":
		return fmt.Sprintf("https://%s/%s", bs.cdnDomain, name)
	case bs.cfg.PublicBaseURL != "":
		return fmt.Sprintf("%s/%s/%s", bs.cfg.PublicBaseURL, bs.bucket, name)
	case bs.cfg.IsEmulator():
		return emulatorMediaURL(bs.cfg.EmulatorHost, bs.bucket, name)
	default:
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.bucket, name)
	}
}

func (bs *bucketService) Close() error {
	if bs == nil || bs.client == nil {
		return nil
	}
	return bs.client.Close()
}

func emulatorMediaURL(host, bucket, name string) string {
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", strings.TrimRight(host, "/"), url.PathEscape(bucket), url.PathEscape(name))
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch path.Ext(s) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".heic":
		return "image/heic"
	case ".json":
		return "application/json"
	default:
		return ""
	}
}
