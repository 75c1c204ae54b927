// Package api exposes the core's JSON HTTP surface: upload, metadata,
// access, and delete. The streaming surface lives in internal/hlsserver
// and is wired onto a structurally separate router group.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vaultstream/vaultstream/internal/accessgate"
	"github.com/vaultstream/vaultstream/internal/apperr"
	"github.com/vaultstream/vaultstream/internal/config"
	"github.com/vaultstream/vaultstream/internal/models"
	"github.com/vaultstream/vaultstream/internal/pipeline"
	"github.com/vaultstream/vaultstream/internal/storage"
	"github.com/vaultstream/vaultstream/internal/worker"
)

type Handlers struct {
	db           *gorm.DB
	store        storage.Storage
	gate         *accessgate.Gate
	orchestrator *pipeline.Orchestrator
	pool         *worker.Pool
	cfg          *config.Config
	log          *zap.SugaredLogger
}

func NewHandlers(db *gorm.DB, store storage.Storage, gate *accessgate.Gate, orchestrator *pipeline.Orchestrator, pool *worker.Pool, cfg *config.Config, log *zap.SugaredLogger) *Handlers {
	return &Handlers{db: db, store: store, gate: gate, orchestrator: orchestrator, pool: pool, cfg: cfg, log: log}
}

// uploadForm is the parsed multipart body of POST /videos/upload.
type uploadForm struct {
	Title       string
	Description string
	Visibility  models.Visibility
	Passphrase  string
}

// Upload accepts a video file + metadata, stages it to scratch, creates
// the Video record in status=uploading, acknowledges the client, then
// submits pipeline processing to the worker pool. The handler never holds
// the full upload in memory; the scratch file is removed on every exit
// path via defer.
func (h *Handlers) Upload(c *gin.Context) {
	ownerUserID := requestingUserID(c)
	if ownerUserID == "" {
		writeErr(c, apperr.AccessDenied("authentication required"))
		return
	}

	form, err := parseUploadForm(c, h.cfg)
	if err != nil {
		writeErr(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeErr(c, apperr.Validation("missing file field"))
		return
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), ".")
	if !h.cfg.AllowsExtension(ext) {
		writeErr(c, apperr.Validation("unsupported source extension: "+ext))
		return
	}

	videoID := uuid.NewString()
	scratchPath := filepath.Join(h.cfg.ScratchDir, videoID+filepath.Ext(fileHeader.Filename))

	if err := os.MkdirAll(h.cfg.ScratchDir, 0o755); err != nil {
		writeErr(c, fmt.Errorf("preparing scratch directory: %w", err))
		return
	}

	if err := c.SaveUploadedFile(fileHeader, scratchPath); err != nil {
		writeErr(c, apperr.StorageWrite(err))
		return
	}
	defer os.Remove(scratchPath)

	stagedPath := fmt.Sprintf("uploads/%s%s", videoID, filepath.Ext(fileHeader.Filename))
	if err := h.stageToStorage(c.Request.Context(), scratchPath, stagedPath); err != nil {
		writeErr(c, apperr.StorageWrite(err))
		return
	}

	var passphraseHash string
	if form.Passphrase != "" {
		hash, err := accessgate.HashPassphrase(form.Passphrase)
		if err != nil {
			writeErr(c, fmt.Errorf("hashing passphrase: %w", err))
			return
		}
		passphraseHash = hash
	}

	v := models.Video{
		ID:               videoID,
		OwnerUserID:      ownerUserID,
		Visibility:       form.Visibility,
		PassphraseHash:   passphraseHash,
		StoragePath:      stagedPath,
		Title:            form.Title,
		Description:      form.Description,
		FileSize:         fileHeader.Size,
		MimeType:         fileHeader.Header.Get("Content-Type"),
		OriginalFilename: fileHeader.Filename,
		Status:           models.StatusUploading,
	}

	if err := h.db.Create(&v).Error; err != nil {
		writeErr(c, fmt.Errorf("persisting video record: %w", err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"videoId": v.ID, "status": v.Status})

	h.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 6*time.Hour)
		defer cancel()
		h.orchestrator.Run(ctx, v.ID)
	})
}

func (h *Handlers) stageToStorage(ctx context.Context, localPath, storagePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	var r io.Reader = f
	return h.store.Upload(ctx, r, storagePath, storage.Metadata{})
}

func parseUploadForm(c *gin.Context, cfg *config.Config) (*uploadForm, error) {
	title := c.PostForm("title")
	if title == "" {
		return nil, apperr.Validation("title is required")
	}

	visibility := models.Visibility(c.DefaultPostForm("visibility", string(models.VisibilityUnlisted)))
	switch visibility {
	case models.VisibilityPublic, models.VisibilityUnlisted, models.VisibilityPrivate:
	default:
		return nil, apperr.Validation("invalid visibility: " + string(visibility))
	}

	return &uploadForm{
		Title:       title,
		Description: c.PostForm("description"),
		Visibility:  visibility,
		Passphrase:  c.PostForm("passphrase"),
	}, nil
}

// GetMetadata returns a video's public metadata; private videos require
// ownership.
func (h *Handlers) GetMetadata(c *gin.Context) {
	videoID := c.Param("id")
	var v models.Video
	if err := h.db.First(&v, "video_id = ?", videoID).Error; err != nil {
		writeErr(c, apperr.NotFound("video not found: "+videoID))
		return
	}

	if v.Visibility == models.VisibilityPrivate && !v.IsOwner(requestingUserID(c)) {
		writeErr(c, apperr.AccessDenied("video is private"))
		return
	}

	c.JSON(http.StatusOK, v.Public())
}

// accessRequestBody is the optional body of POST /videos/:id/access.
type accessRequestBody struct {
	Passphrase string `json:"passphrase"`
}

// RequestAccess runs the Access Gate and returns a signed stream URL.
func (h *Handlers) RequestAccess(c *gin.Context) {
	videoID := c.Param("id")

	var body accessRequestBody
	_ = c.ShouldBindJSON(&body) // absent/empty body is valid: no passphrase supplied

	result, err := h.gate.RequestAccess(c.Request.Context(), videoID, requestingUserID(c), body.Passphrase)
	if err != nil {
		if ae, ok := apperr.As(err); ok && ae.Kind == apperr.KindInvalidPassphrase {
			h.log.Infow("access: passphrase rejected", "videoId", videoID)
		}
		writeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"streamUrl":     result.StreamURL,
		"title":         result.Metadata.Title,
		"description":   result.Metadata.Description,
		"duration":      result.Metadata.Duration,
		"resolution":    result.Metadata.Resolution,
		"thumbnailPath": result.Metadata.ThumbnailPath,
		"createdAt":     result.Metadata.CreatedAt,
		"views":         result.Metadata.Views,
	})
}

// Delete removes a video; owner-only.
func (h *Handlers) Delete(c *gin.Context) {
	videoID := c.Param("id")
	var v models.Video
	if err := h.db.First(&v, "video_id = ?", videoID).Error; err != nil {
		writeErr(c, apperr.NotFound("video not found: "+videoID))
		return
	}

	if !v.IsOwner(requestingUserID(c)) {
		writeErr(c, apperr.AccessDenied("only the owner may delete this video"))
		return
	}

	if err := h.orchestrator.Delete(c.Request.Context(), &v); err != nil {
		writeErr(c, fmt.Errorf("deleting video: %w", err))
		return
	}

	c.Status(http.StatusNoContent)
}

func writeErr(c *gin.Context, err error) {
	if ae, ok := apperr.As(err); ok {
		c.JSON(ae.Status, gin.H{"error": ae.Code, "message": ae.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": apperr.CodeInternal, "message": "internal error"})
}
