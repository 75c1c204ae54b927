// Package storage implements the content-addressed blob abstraction of
// spec §4.A: a polymorphic interface over a local filesystem backend and
// an S3-compatible object store backend, split explicitly between
// buffered reads (for small manifests) and streaming reads (for
// segments) so the two are never unified behind a single "read
// everything" call.
package storage

import (
	"context"
	"io"
)

// Metadata is attached to an uploaded blob (e.g. content type).
type Metadata struct {
	ContentType string
}

// Storage is the blob I/O abstraction the Transcoder Driver, Pipeline
// Orchestrator, and HLS Server depend on. Paths are forward-slash
// separated relative keys.
type Storage interface {
	// Upload writes src fully to path, creating intermediate directories
	// as needed. src may be a byte-backed reader (io.Reader) of any size;
	// callers that have the whole buffer in memory may wrap it in a
	// bytes.Reader.
	Upload(ctx context.Context, src io.Reader, path string, meta Metadata) error

	// Download performs a fully-buffered read. Only used for small
	// objects (playlists).
	Download(ctx context.Context, path string) ([]byte, error)

	// DownloadStream opens a lazy, streaming read. Used for segments.
	// The caller MUST Close the returned stream.
	DownloadStream(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes path. Missing files are not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether path is present.
	Exists(ctx context.Context, path string) (bool, error)

	// Resolve returns a location the Transcoder can hand to the external
	// encoder as an input/output argument. For the local backend this is
	// the absolute filesystem path; remote backends (S3) return an error,
	// and internal/pipeline then streams a local scratch copy instead.
	Resolve(ctx context.Context, path string) (string, error)

	// DeleteDirectory recursively and idempotently removes every blob
	// under prefix.
	DeleteDirectory(ctx context.Context, prefix string) error
}
