package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreConfig addresses an S3-compatible bucket.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

// ObjectStoreConfigFromEnv reads MDRUN_S3_* variables.
func ObjectStoreConfigFromEnv() (ObjectStoreConfig, error) {
	useSSL := false
	if v := os.Getenv("MDRUN_S3_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return ObjectStoreConfig{}, fmt.Errorf("MDRUN_S3_USE_SSL: %w", err)
		}
		useSSL = b
	}
	cfg := ObjectStoreConfig{
		Endpoint:  envOr("MDRUN_S3_ENDPOINT", "localhost:9000"),
		AccessKey: os.Getenv("MDRUN_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("MDRUN_S3_SECRET_KEY"),
		Region:    envOr("MDRUN_S3_REGION", "us-east-1"),
		UseSSL:    useSSL,
		Bucket:    envOr("MDRUN_S3_BUCKET", "mdrun"),
		Prefix:    os.Getenv("MDRUN_S3_PREFIX"),
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// WithURL fills bucket and prefix from "s3://bucket/prefix".
func (c ObjectStoreConfig) WithURL(raw string) (ObjectStoreConfig, error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return c, fmt.Errorf("storage: not an s3 URL: %q", raw)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	c.Bucket = bucket
	c.Prefix = strings.Trim(prefix, "/")
	return c, nil
}

func (c ObjectStoreConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("storage: endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("storage: access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("storage: secret key is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("storage: bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("storage: endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}

// ObjectStore persists runs to an S3-compatible bucket through MinIO.
type ObjectStore struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewObjectStore(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, err
	}
	s := &ObjectStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
	if err := s.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", cfg.Bucket, err)
	}
	return s, nil
}

func (s *ObjectStore) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region})
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func (s *ObjectStore) Name() string { return "s3://" + path.Join(s.bucket, s.prefix) }

func (s *ObjectStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return path.Join(s.prefix, k)
}

func (s *ObjectStore) url(k string) string {
	return "s3://" + s.bucket + "/" + s.key(k)
}

func (s *ObjectStore) Put(ctx context.Context, key, src string) (string, error) {
	_, err := s.client.FPutObject(ctx, s.bucket, s.key(key), src, minio.PutObjectOptions{ContentType: contentType(key)})
	if err != nil {
		return "", err
	}
	return s.url(key), nil
}

func (s *ObjectStore) PutBytes(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(key), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType(key)})
	if err != nil {
		return "", err
	}
	return s.url(key), nil
}

func (s *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (s *ObjectStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, s.key(key), minio.RemoveObjectOptions{})
}

func (s *ObjectStore) Runs(ctx context.Context) ([]string, error) {
	prefix := ""
	if s.prefix != "" {
		prefix = s.prefix + "/"
	}
	var ids []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if strings.HasSuffix(obj.Key, "/") {
			ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), "/"))
		}
	}
	return ids, nil
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".zst":
		return "application/zstd"
	}
	return "application/octet-stream"
}
