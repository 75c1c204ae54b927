package hlsserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaultstream/vaultstream/internal/apperr"
	"github.com/vaultstream/vaultstream/internal/models"
	"github.com/vaultstream/vaultstream/internal/security"
	"github.com/vaultstream/vaultstream/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeFinder struct {
	videos map[string]*models.Video
}

func (f *fakeFinder) FindVideo(_ context.Context, videoID string) (*models.Video, error) {
	v, ok := f.videos[videoID]
	if !ok {
		return nil, apperr.NotFound("video not found: " + videoID)
	}
	return v, nil
}

// fakeCache is a bare in-memory playlistCacher: Get misses until Set has
// stored a value under the same key.
type fakeCache struct {
	store map[string][]byte
}

func (f *fakeCache) Key(videoID, resource string) string {
	return videoID + ":" + resource
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := f.store[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte) {
	if f.store == nil {
		f.store = make(map[string][]byte)
	}
	f.store[key] = value
}

func newTestServer(t *testing.T, videos map[string]*models.Video) (*Server, *storage.LocalBackend) {
	t.Helper()
	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	return &Server{
		videos: &fakeFinder{videos: videos},
		store:  backend,
		signer: security.New("at-least-32-bytes-of-signer-secret!!", 3600),
		cache:  &fakeCache{},
		log:    zap.NewNop().Sugar(),
	}, backend
}

func TestServeMasterRewritesChildLinesWithTokens(t *testing.T) {
	v := &models.Video{ID: "v1", Status: models.StatusReady, HLSPath: "videos/v1/hls"}
	s, backend := newTestServer(t, map[string]*models.Video{"v1": v})
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, strings.NewReader("#EXTM3U\n720p.m3u8\n480p.m3u8\n"), "videos/v1/hls/master.m3u8", storage.Metadata{}))

	token, err := s.signer.Mint("v1", "master.m3u8", "", 0)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/stream/v1/master.m3u8?token="+token, nil)
	c.Params = gin.Params{{Key: "videoId", Value: "v1"}}

	s.serveMaster(c)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "720p.m3u8?token=")
	assert.Contains(t, body, "480p.m3u8?token=")
}

func TestServeMasterRejectsTokenMintedForAnotherVideo(t *testing.T) {
	videoA := &models.Video{ID: "video-a", Status: models.StatusReady, HLSPath: "videos/video-a/hls"}
	videoB := &models.Video{ID: "video-b", Status: models.StatusReady, HLSPath: "videos/video-b/hls"}
	s, backend := newTestServer(t, map[string]*models.Video{"video-a": videoA, "video-b": videoB})
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, strings.NewReader("#EXTM3U\n"), "videos/video-b/hls/master.m3u8", storage.Metadata{}))

	// Token minted for video A's master.m3u8; same literal resource name
	// as video B's, so only the videoId check can reject it.
	tokenForA, err := s.signer.Mint("video-a", "master.m3u8", "", 0)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/stream/video-b/master.m3u8?token="+tokenForA, nil)
	c.Params = gin.Params{{Key: "videoId", Value: "video-b"}}

	s.serveMaster(c)

	assert.Equal(t, 403, rec.Code)
}

func TestServeVariantRejectsResourceMismatch(t *testing.T) {
	v := &models.Video{ID: "v1", Status: models.StatusReady, HLSPath: "videos/v1/hls"}
	s, _ := newTestServer(t, map[string]*models.Video{"v1": v})

	// Token minted for a different resource than the one requested.
	token, err := s.signer.Mint("v1", "480p.m3u8", "", 0)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/stream/v1/720p.m3u8?token="+token, nil)
	c.Params = gin.Params{{Key: "videoId", Value: "v1"}}

	s.serveVariant(c, "720p.m3u8")

	assert.Equal(t, 403, rec.Code)
}

func TestServeVariantNotReadyYields404(t *testing.T) {
	v := &models.Video{ID: "v1", Status: models.StatusProcessing, HLSPath: "videos/v1/hls"}
	s, _ := newTestServer(t, map[string]*models.Video{"v1": v})

	token, err := s.signer.Mint("v1", "720p.m3u8", "", 0)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/stream/v1/720p.m3u8?token="+token, nil)
	c.Params = gin.Params{{Key: "videoId", Value: "v1"}}

	s.serveVariant(c, "720p.m3u8")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeSegmentStreamsBody(t *testing.T) {
	v := &models.Video{ID: "v1", Status: models.StatusReady, HLSPath: "videos/v1/hls"}
	s, backend := newTestServer(t, map[string]*models.Video{"v1": v})
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, strings.NewReader("segment-bytes"), "videos/v1/hls/720p_001.ts", storage.Metadata{}))

	token, err := s.signer.Mint("v1", "720p_001.ts", "", 0)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/stream/v1/720p_001.ts?token="+token, nil)
	c.Params = gin.Params{{Key: "videoId", Value: "v1"}}

	s.serveSegment(c, "720p_001.ts")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/MP2T", rec.Header().Get("Content-Type"))
	assert.Equal(t, "segment-bytes", rec.Body.String())
}
