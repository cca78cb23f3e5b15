package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	appconfig "github.com/helporbit/helporbit/internal/config"
	"github.com/helporbit/helporbit/internal/storage"
)

// ---------------------------------------------------------------------------
// New
// ---------------------------------------------------------------------------

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  appconfig.S3StorageConfig
	}{
		{"missing bucket", appconfig.S3StorageConfig{Region: "us-east-1"}},
		{"missing region", appconfig.S3StorageConfig{Bucket: "b"}},
		{"key without secret", appconfig.S3StorageConfig{Bucket: "b", Region: "us-east-1", AccessKeyID: "AKIA"}},
		{"secret without key", appconfig.S3StorageConfig{Bucket: "b", Region: "us-east-1", SecretAccessKey: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(&tt.cfg); err == nil {
				t.Error("New() = nil error, want error")
			}
		})
	}
}

func TestNew_DefaultCredentialChain(t *testing.T) {
	s, err := New(&appconfig.S3StorageConfig{Bucket: "b", Region: "eu-west-1"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if s.bucket != "b" {
		t.Errorf("bucket = %q, want b", s.bucket)
	}
}

// ---------------------------------------------------------------------------
// Mock S3-compatible server
// ---------------------------------------------------------------------------

type s3MockStore struct {
	mu          sync.Mutex
	objects     map[string][]byte
	contentType map[string]string
	meta        map[string]map[string]string // amz-meta headers, lowercase, no prefix
}

// newS3TestStorage creates an S3Storage against a path-style mock that
// speaks just enough of the object API for CRUD tests.
func newS3TestStorage(t *testing.T) (*S3Storage, *s3MockStore) {
	t.Helper()

	ms := &s3MockStore{
		objects:     map[string][]byte{},
		contentType: map[string]string{},
		meta:        map[string]map[string]string{},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(r.URL.Path, "/")
		idx := strings.IndexByte(p, '/')
		if idx < 0 {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		key := p[idx+1:]

		ms.mu.Lock()
		defer ms.mu.Unlock()

		switch r.Method {
		case http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			meta := map[string]string{}
			for hk, hv := range r.Header {
				lk := strings.ToLower(hk)
				if strings.HasPrefix(lk, "x-amz-meta-") && len(hv) > 0 {
					meta[strings.TrimPrefix(lk, "x-amz-meta-")] = hv[0]
				}
			}
			ms.objects[key] = data
			ms.contentType[key] = r.Header.Get("Content-Type")
			ms.meta[key] = meta
			w.Header().Set("ETag", `"test-etag"`)
			w.WriteHeader(http.StatusOK)

		case http.MethodGet:
			data, ok := ms.objects[key]
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.WriteHeader(http.StatusOK)
			w.Write(data)

		case http.MethodHead:
			data, ok := ms.objects[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
			w.WriteHeader(http.StatusOK)

		case http.MethodDelete:
			delete(ms.objects, key)
			delete(ms.meta, key)
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)

	s, err := New(&appconfig.S3StorageConfig{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
		Endpoint:        srv.URL,
	})
	if err != nil {
		t.Fatalf("New() for mock S3: %v", err)
	}
	return s, ms
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

func TestS3_UploadAndDownload(t *testing.T) {
	s, ms := newS3TestStorage(t)
	ctx := context.Background()

	key := storage.AttachmentPath("o", "t", "a", "log.txt")
	result, err := s.Upload(ctx, key, strings.NewReader("hello"), "text/plain")
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if result.Size != 5 {
		t.Errorf("Size = %d, want 5", result.Size)
	}
	const helloSHA = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if result.Checksum != helloSHA {
		t.Errorf("Checksum = %q, want sha256(hello)", result.Checksum)
	}

	ms.mu.Lock()
	gotMeta := ms.meta[key]["sha256"]
	gotType := ms.contentType[key]
	ms.mu.Unlock()
	if gotMeta != helloSHA {
		t.Errorf("x-amz-meta-sha256 = %q, want %q", gotMeta, helloSHA)
	}
	if gotType != "text/plain" {
		t.Errorf("Content-Type = %q, want text/plain", gotType)
	}

	rc, err := s.Download(ctx, key)
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "hello" {
		t.Errorf("Download content = %q, want hello", got)
	}
}

func TestS3_Download_NotFound(t *testing.T) {
	s, _ := newS3TestStorage(t)

	_, err := s.Download(context.Background(), "nonexistent.txt")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Download() error = %v, want ErrNotFound", err)
	}
}

func TestS3_ExistsAndDelete(t *testing.T) {
	s, _ := newS3TestStorage(t)
	ctx := context.Background()

	if ok, err := s.Exists(ctx, "x.txt"); err != nil || ok {
		t.Fatalf("Exists() before upload = %v, %v; want false, nil", ok, err)
	}
	if _, err := s.Upload(ctx, "x.txt", strings.NewReader("x"), ""); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if ok, err := s.Exists(ctx, "x.txt"); err != nil || !ok {
		t.Fatalf("Exists() after upload = %v, %v; want true, nil", ok, err)
	}
	if err := s.Delete(ctx, "x.txt"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if ok, _ := s.Exists(ctx, "x.txt"); ok {
		t.Error("Exists = true after delete, want false")
	}
}

func TestS3_GetURL(t *testing.T) {
	s, _ := newS3TestStorage(t)
	ctx := context.Background()

	if _, err := s.GetURL(ctx, "missing.txt", time.Hour); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetURL(missing) error = %v, want ErrNotFound", err)
	}

	if _, err := s.Upload(ctx, "forurl.txt", strings.NewReader("content"), ""); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	url, err := s.GetURL(ctx, "forurl.txt", 15*time.Minute)
	if err != nil {
		t.Fatalf("GetURL() error: %v", err)
	}
	if !strings.Contains(url, "/test-bucket/forurl.txt") || !strings.Contains(url, "X-Amz-Expires=900") {
		t.Errorf("GetURL() = %q, want presigned path-style URL with 900s expiry", url)
	}
}
