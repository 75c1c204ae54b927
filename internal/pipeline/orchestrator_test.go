package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaultstream/vaultstream/internal/storage"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *storage.LocalBackend) {
	t.Helper()
	root := t.TempDir()
	backend, err := storage.NewLocalBackend(root)
	require.NoError(t, err)

	return &Orchestrator{
		store: backend,
		log:   zap.NewNop().Sugar(),
	}, backend
}

func TestRelocateSourceMovesBlobAndDeletesOriginal(t *testing.T) {
	o, backend := newTestOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, strings.NewReader("raw bytes"), "uploads/staged.mp4", storage.Metadata{}))

	require.NoError(t, o.relocateSource(ctx, "uploads/staged.mp4", "videos/v1/source"))

	exists, err := backend.Exists(ctx, "uploads/staged.mp4")
	require.NoError(t, err)
	assert.False(t, exists, "original blob should be gone after relocation")

	data, err := backend.Download(ctx, "videos/v1/source")
	require.NoError(t, err)
	assert.Equal(t, "raw bytes", string(data))
}

func TestStageLocalResolvesDirectlyForLocalBackend(t *testing.T) {
	o, backend := newTestOrchestrator(t)
	o.scratchDir = t.TempDir()
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, strings.NewReader("source bytes"), "videos/v1/original.mp4", storage.Metadata{}))

	path, cleanup, err := o.stageLocal(ctx, "videos/v1/original.mp4", "v1.mp4")
	require.NoError(t, err)
	defer cleanup()

	want, err := backend.Resolve(ctx, "videos/v1/original.mp4")
	require.NoError(t, err)
	assert.Equal(t, want, path, "local backend should resolve directly without a scratch copy")
}

// stagingOnlyBackend implements storage.Storage but refuses Resolve,
// the shape a remote backend (S3) presents.
type stagingOnlyBackend struct {
	*storage.LocalBackend
}

func (s *stagingOnlyBackend) Resolve(ctx context.Context, path string) (string, error) {
	return "", assert.AnError
}

func TestStageLocalFallsBackToScratchCopyWhenResolveUnsupported(t *testing.T) {
	root := t.TempDir()
	backend, err := storage.NewLocalBackend(root)
	require.NoError(t, err)
	wrapped := &stagingOnlyBackend{LocalBackend: backend}

	o := &Orchestrator{store: wrapped, log: zap.NewNop().Sugar(), scratchDir: t.TempDir()}
	ctx := context.Background()

	require.NoError(t, wrapped.Upload(ctx, strings.NewReader("remote bytes"), "videos/v1/original.mp4", storage.Metadata{}))

	path, cleanup, err := o.stageLocal(ctx, "videos/v1/original.mp4", "v1.mp4")
	require.NoError(t, err)
	defer cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "remote bytes", string(data))
	assert.Equal(t, filepath.Join(o.scratchDir, "v1.mp4"), path)

	cleanup()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "cleanup should remove the staged scratch copy")
}

func TestUploadDirectorySkipsThumbnailAndDirs(t *testing.T) {
	o, backend := newTestOrchestrator(t)
	ctx := context.Background()

	localDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(localDir, "720p.m3u8"), []byte("#EXTM3U"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(localDir, "thumbnail.jpg"), []byte("jpeg"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(localDir, "subdir"), 0o755))

	require.NoError(t, o.uploadDirectory(ctx, localDir, "videos/v1/hls"))

	data, err := backend.Download(ctx, "videos/v1/hls/720p.m3u8")
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U", string(data))

	exists, err := backend.Exists(ctx, "videos/v1/hls/thumbnail.jpg")
	require.NoError(t, err)
	assert.False(t, exists, "thumbnail must be uploaded separately by the caller, not by uploadDirectory")
}
