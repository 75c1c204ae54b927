package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vaultstream/vaultstream/internal/apperr"
)

// LocalBackend stores blobs on a local filesystem rooted at Root.
// Resolve returns an absolute path directly, which is what lets the
// Transcoder Driver hand the local backend's staging area straight to
// ffmpeg/ffprobe as an input/output argument (spec §4.A).
type LocalBackend struct {
	Root string
}

func NewLocalBackend(root string) (*LocalBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &LocalBackend{Root: root}, nil
}

func (l *LocalBackend) abs(path string) string {
	return filepath.Join(l.Root, filepath.FromSlash(path))
}

func (l *LocalBackend) Upload(ctx context.Context, src io.Reader, path string, _ Metadata) error {
	full := l.abs(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return apperr.StorageWrite(err)
	}
	tmp := full + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return apperr.StorageWrite(err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(tmp)
		return apperr.StorageWrite(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return apperr.StorageWrite(err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return apperr.StorageWrite(err)
	}
	return nil
}

func (l *LocalBackend) Download(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(l.abs(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.NotFound("blob not found: " + path)
		}
		return nil, apperr.StorageRead(err)
	}
	return data, nil
}

func (l *LocalBackend) DownloadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(l.abs(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.NotFound("blob not found: " + path)
		}
		return nil, apperr.StorageRead(err)
	}
	return f, nil
}

func (l *LocalBackend) Delete(ctx context.Context, path string) error {
	err := os.Remove(l.abs(path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.StorageWrite(err)
	}
	return nil
}

func (l *LocalBackend) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(l.abs(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, apperr.StorageRead(err)
}

func (l *LocalBackend) Resolve(ctx context.Context, path string) (string, error) {
	return filepath.Abs(l.abs(path))
}

func (l *LocalBackend) DeleteDirectory(ctx context.Context, prefix string) error {
	err := os.RemoveAll(l.abs(prefix))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.StorageWrite(err)
	}
	return nil
}
