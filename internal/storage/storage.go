// Package storage stores ticket attachment files.
//
// Backends live in sub-packages and register themselves from an init
// function:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return New(&cfg.Storage.MyBackend)
//	    })
//	}
//
// cmd/server blank-imports every backend, and NewStorage picks the one named
// by storage.default_backend.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned by Download and GetURL for a missing object.
var ErrNotFound = errors.New("file not found")

// Storage defines the interface for all storage backends
type Storage interface {
	// Upload stores the contents of reader at path and reports the size and
	// SHA-256 of what was written.
	Upload(ctx context.Context, path string, reader io.Reader, contentType string) (*UploadResult, error)

	// Download retrieves a file and returns a reader
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes a file. Deleting a missing file is not an error.
	Delete(ctx context.Context, path string) error

	// GetURL returns a signed direct download URL valid for ttl. Backends
	// that cannot sign URLs return "" and the API streams the file instead.
	GetURL(ctx context.Context, path string, ttl time.Duration) (string, error)

	// Exists checks if a file exists at the specified path
	Exists(ctx context.Context, path string) (bool, error)
}

// UploadResult contains information about an uploaded file
type UploadResult struct {
	Path     string
	Size     int64
	Checksum string // hex SHA-256
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFileName reduces a client-supplied file name to a safe single path
// segment. Directory components are dropped.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeFileChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	if len(name) > 128 {
		name = name[len(name)-128:]
	}
	return name
}

// AttachmentPath is the object key of a ticket attachment:
// orgs/{orgId}/tickets/{ticketId}/{attachmentId}/{filename}.
func AttachmentPath(orgID, ticketID, attachmentID, fileName string) string {
	return path.Join("orgs", orgID, "tickets", ticketID, attachmentID, SanitizeFileName(fileName))
}
