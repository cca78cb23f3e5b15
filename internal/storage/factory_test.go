package storage_test

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/helporbit/helporbit/internal/config"
	"github.com/helporbit/helporbit/internal/storage"
)

type mockStorage struct{}

func (m *mockStorage) Upload(_ context.Context, _ string, _ io.Reader, _ string) (*storage.UploadResult, error) {
	return nil, nil
}
func (m *mockStorage) Download(_ context.Context, _ string) (io.ReadCloser, error) { return nil, nil }
func (m *mockStorage) Delete(_ context.Context, _ string) error                    { return nil }
func (m *mockStorage) GetURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", nil
}
func (m *mockStorage) Exists(_ context.Context, _ string) (bool, error) { return false, nil }

// ---------------------------------------------------------------------------
// Register / NewStorage
// ---------------------------------------------------------------------------

func TestRegister_AddsFactory(t *testing.T) {
	storage.Register("test-backend", func(_ *config.Config) (storage.Storage, error) {
		return &mockStorage{}, nil
	})

	cfg := &config.Config{}
	cfg.Storage.DefaultBackend = "test-backend"

	s, err := storage.NewStorage(cfg)
	if err != nil {
		t.Fatalf("NewStorage() error: %v", err)
	}
	if s == nil {
		t.Fatal("NewStorage() returned nil")
	}
	if !slices.Contains(storage.Backends(), "test-backend") {
		t.Errorf("Backends() = %v, want to contain test-backend", storage.Backends())
	}
}

func TestNewStorage_FactoryError(t *testing.T) {
	want := errors.New("boom")
	storage.Register("failing-backend", func(_ *config.Config) (storage.Storage, error) {
		return nil, want
	})

	cfg := &config.Config{}
	cfg.Storage.DefaultBackend = "failing-backend"

	if _, err := storage.NewStorage(cfg); !errors.Is(err, want) {
		t.Errorf("NewStorage() error = %v, want %v", err, want)
	}
}

func TestNewStorage_UnknownBackend(t *testing.T) {
	for _, name := range []string{"completely-unknown-backend", ""} {
		cfg := &config.Config{}
		cfg.Storage.DefaultBackend = name

		if _, err := storage.NewStorage(cfg); err == nil {
			t.Errorf("NewStorage(%q) = nil error, want error", name)
		}
	}
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\screen shot.png`, "screen_shot.png"},
		{"héllo wörld.txt", "h_llo_w_rld.txt"},
		{"..", "file"},
		{"", "file"},
		{".hidden", "hidden"},
	}
	for _, tt := range tests {
		if got := storage.SanitizeFileName(tt.in); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFileName_Truncates(t *testing.T) {
	got := storage.SanitizeFileName(strings.Repeat("a", 200) + ".log")
	if len(got) != 128 || !strings.HasSuffix(got, ".log") {
		t.Errorf("SanitizeFileName(long) = %q (len %d), want 128 chars ending in .log", got, len(got))
	}
}

func TestAttachmentPath(t *testing.T) {
	got := storage.AttachmentPath("org-1", "tkt-1", "att-1", "../logs/app.log")
	want := "orgs/org-1/tickets/tkt-1/att-1/app.log"
	if got != want {
		t.Errorf("AttachmentPath() = %q, want %q", got, want)
	}
}
