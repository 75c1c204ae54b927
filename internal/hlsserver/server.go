// Package hlsserver serves master/variant playlists (rewritten with
// per-child tokens) and segments (streamed, never buffered), grounded on
// the corpus's blob-download-then-proxy handlers, generalized from a
// single-backend Azure proxy to the polymorphic Storage abstraction and
// from query-param signing to the Signer's self-contained token.
package hlsserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vaultstream/vaultstream/internal/apperr"
	"github.com/vaultstream/vaultstream/internal/models"
	"github.com/vaultstream/vaultstream/internal/security"
	"github.com/vaultstream/vaultstream/internal/storage"
	"github.com/vaultstream/vaultstream/internal/videostore"
)

// resourceNamePattern validates a bare resource name: the final path
// segment of a request, and (reused) any child line inside a playlist
// that names another playlist or a segment. No dot is allowed before the
// extension, deliberately narrower than a generic filename pattern, as a
// directory-traversal defense.
var resourceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+\.(m3u8|ts)$`)

// playlistCacher is the minimal read-through cache contract the HLS Server
// depends on; *cache.PlaylistCache satisfies it, and tests substitute an
// in-memory fake instead of a real Redis connection.
type playlistCacher interface {
	Key(videoID, resource string) string
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte)
}

type Server struct {
	videos videostore.Finder
	store  storage.Storage
	signer *security.Signer
	cache  playlistCacher
	log    *zap.SugaredLogger
	flight singleflight.Group
}

func New(videos videostore.Finder, store storage.Storage, signer *security.Signer, playlistCache playlistCacher, log *zap.SugaredLogger) *Server {
	return &Server{videos: videos, store: store, signer: signer, cache: playlistCache, log: log}
}

// RegisterRoutes wires the three streaming endpoints onto a router group
// kept structurally separate from the JSON API group, so a real
// deployment can attach a rate limiter to one and not the other.
func (s *Server) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:videoId/master.m3u8", s.serveMaster)
	rg.GET("/:videoId/:file", s.serveFileResource)
}

func (s *Server) serveFileResource(c *gin.Context) {
	file := c.Param("file")
	switch {
	case strings.HasSuffix(file, ".m3u8"):
		s.serveVariant(c, file)
	case strings.HasSuffix(file, ".ts"):
		s.serveSegment(c, file)
	default:
		writeAppErr(c, apperr.InvalidSegment("unsupported resource: "+file))
	}
}

// verify runs the identical verification sequence required of every
// streaming endpoint: decode/verify the token, cross-check its video
// binding against the URL's :videoId, then its resource binding against
// the actual final path segment. The videoId check runs first and
// independently of CheckResource, since resource names (rendition and
// segment filenames) are not unique across videos: without it, a token
// minted for one video's "master.m3u8" would verify against any other
// ready video using the same rendition name.
func (s *Server) verify(c *gin.Context, videoID, resource string) (security.Payload, error) {
	token := c.Query("token")
	if token == "" {
		return security.Payload{}, apperr.MalformedToken(nil)
	}
	payload, err := s.signer.Verify(token)
	if err != nil {
		return security.Payload{}, err
	}
	if payload.VideoID != videoID {
		return security.Payload{}, apperr.ResourceMismatch(fmt.Sprintf("token minted for video %q, requested %q", payload.VideoID, videoID))
	}
	if err := security.CheckResource(payload, resource); err != nil {
		return security.Payload{}, err
	}
	return payload, nil
}

func (s *Server) loadVideo(ctx context.Context, videoID string) (*models.Video, error) {
	return s.videos.FindVideo(ctx, videoID)
}

func (s *Server) serveMaster(c *gin.Context) {
	videoID := c.Param("videoId")
	payload, err := s.verify(c, videoID, "master.m3u8")
	if err != nil {
		writeAppErr(c, err)
		return
	}

	v, err := s.loadVideo(c.Request.Context(), videoID)
	if err != nil {
		writeAppErr(c, err)
		return
	}
	if v.Status != models.StatusReady {
		writeAppErr(c, apperr.StreamNotReady(string(v.Status)))
		return
	}

	raw, err := s.readPlaylist(c, v.ID, v.HLSPath+"/master.m3u8", "master.m3u8")
	if err != nil {
		writeAppErr(c, err)
		return
	}

	rewritten, err := s.rewritePlaylist(raw, v.ID, payload.UserID)
	if err != nil {
		writeAppErr(c, err)
		return
	}

	c.Header("Content-Type", "application/vnd.apple.mpegurl")
	c.Header("Cache-Control", "no-cache")
	c.String(http.StatusOK, rewritten)
}

func (s *Server) serveVariant(c *gin.Context, file string) {
	videoID := c.Param("videoId")
	if !resourceNamePattern.MatchString(file) {
		writeAppErr(c, apperr.InvalidPlaylist("invalid variant name: "+file))
		return
	}

	payload, err := s.verify(c, videoID, file)
	if err != nil {
		writeAppErr(c, err)
		return
	}

	v, err := s.loadVideo(c.Request.Context(), videoID)
	if err != nil {
		writeAppErr(c, err)
		return
	}
	if v.Status != models.StatusReady {
		writeAppErr(c, apperr.StreamNotReady(string(v.Status)))
		return
	}

	raw, err := s.readPlaylist(c, v.ID, v.HLSPath+"/"+file, file)
	if err != nil {
		writeAppErr(c, err)
		return
	}

	rewritten, err := s.rewritePlaylist(raw, v.ID, payload.UserID)
	if err != nil {
		writeAppErr(c, err)
		return
	}

	c.Header("Content-Type", "application/vnd.apple.mpegurl")
	c.Header("Cache-Control", "no-cache")
	c.String(http.StatusOK, rewritten)
}

// readPlaylist performs a buffered, cached read of a playlist's raw
// (pre-rewrite) bytes. Concurrent requests for the same playlist are
// deduplicated via singleflight so a burst of viewers joining the same
// stream triggers exactly one Storage read.
func (s *Server) readPlaylist(c *gin.Context, videoID, storagePath, resource string) ([]byte, error) {
	key := s.cache.Key(videoID, resource)

	if cached, err := s.cache.Get(c.Request.Context(), key); err == nil && cached != nil {
		return cached, nil
	}

	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		data, err := s.store.Download(c.Request.Context(), storagePath)
		if err != nil {
			return nil, err
		}
		s.cache.Set(c.Request.Context(), key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// rewritePlaylist appends a fresh token to every child resource line,
// preserving all other lines (comments, tags) verbatim.
func (s *Server) rewritePlaylist(raw []byte, videoID, userID string) (string, error) {
	lines := strings.Split(string(raw), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !resourceNamePattern.MatchString(trimmed) {
			continue
		}
		token, err := s.signer.Mint(videoID, trimmed, userID, 0)
		if err != nil {
			return "", err
		}
		lines[i] = trimmed + "?token=" + token
	}
	return strings.Join(lines, "\n"), nil
}

func (s *Server) serveSegment(c *gin.Context, file string) {
	videoID := c.Param("videoId")
	if !resourceNamePattern.MatchString(file) {
		writeAppErr(c, apperr.InvalidSegment("invalid segment name: "+file))
		return
	}

	if _, err := s.verify(c, videoID, file); err != nil {
		writeAppErr(c, err)
		return
	}

	v, err := s.loadVideo(c.Request.Context(), videoID)
	if err != nil {
		writeAppErr(c, err)
		return
	}
	if v.Status != models.StatusReady {
		writeAppErr(c, apperr.StreamNotReady(string(v.Status)))
		return
	}

	// Segments are never cached and never buffered: the stream is piped
	// directly to the response, propagating backend errors and client
	// disconnects via context cancellation.
	rc, err := s.store.DownloadStream(c.Request.Context(), v.HLSPath+"/"+file)
	if err != nil {
		writeAppErr(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "video/MP2T")
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		s.log.Warnw("segment stream interrupted", "videoId", videoID, "file", file, "err", err)
	}
}

func writeAppErr(c *gin.Context, err error) {
	if ae, ok := apperr.As(err); ok {
		c.JSON(ae.Status, gin.H{"error": ae.Code, "message": ae.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": apperr.CodeInternal, "message": "internal error"})
}
