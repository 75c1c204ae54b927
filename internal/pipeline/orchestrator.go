// Package pipeline drives a Video through the uploading -> processing ->
// ready|failed state machine, calling the Transcoder Driver against the
// Storage abstraction and persisting every transition through GORM.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vaultstream/vaultstream/internal/models"
	"github.com/vaultstream/vaultstream/internal/storage"
	"github.com/vaultstream/vaultstream/internal/transcoder"
)

// Orchestrator runs the pipeline sequence for a single Video at a time;
// concurrency across videos is bounded externally by internal/worker.
type Orchestrator struct {
	db               *gorm.DB
	store            storage.Storage
	driver           *transcoder.Driver
	log              *zap.SugaredLogger
	scratchDir       string
	renditionTimeout time.Duration
}

func NewOrchestrator(db *gorm.DB, store storage.Storage, driver *transcoder.Driver, log *zap.SugaredLogger, scratchDir string, renditionTimeoutSec int) *Orchestrator {
	if renditionTimeoutSec <= 0 {
		renditionTimeoutSec = 3600
	}
	return &Orchestrator{
		db:               db,
		store:            store,
		driver:           driver,
		log:              log,
		scratchDir:       scratchDir,
		renditionTimeout: time.Duration(renditionTimeoutSec) * time.Second,
	}
}

// Run executes the full sequence for videoID. It is meant to be submitted
// to a worker.Pool job and never called inline from an HTTP handler.
func (o *Orchestrator) Run(ctx context.Context, videoID string) {
	var v models.Video
	if err := o.db.First(&v, "video_id = ?", videoID).Error; err != nil {
		o.log.Errorw("pipeline: video not found", "videoId", videoID, "err", err)
		return
	}

	if err := o.process(ctx, &v); err != nil {
		o.log.Errorw("pipeline: processing failed", "videoId", videoID, "err", err)
		o.db.Model(&models.Video{}).Where("video_id = ?", videoID).Updates(map[string]interface{}{
			"status":           models.StatusFailed,
			"processing_error": err.Error(),
		})
		return
	}
}

func (o *Orchestrator) process(ctx context.Context, v *models.Video) error {
	// Step 1: move source blob into its final storage path. This is always
	// a streamed copy+delete through the Storage interface, also on the
	// local backend (no rename is attempted); the whole file is never
	// buffered in memory.
	finalPath := fmt.Sprintf("videos/%s/%s/original%s", v.OwnerUserID, v.ID, filepath.Ext(v.OriginalFilename))
	if v.StoragePath != finalPath {
		if err := o.relocateSource(ctx, v.StoragePath, finalPath); err != nil {
			return fmt.Errorf("relocating source: %w", err)
		}
		v.StoragePath = finalPath
	}

	// Step 2: persist status = processing, along with the final storagePath.
	if err := o.db.Model(&models.Video{}).Where("video_id = ?", v.ID).Updates(map[string]interface{}{
		"status":       models.StatusProcessing,
		"storage_path": v.StoragePath,
	}).Error; err != nil {
		return fmt.Errorf("persisting processing status: %w", err)
	}

	localSource, cleanup, err := o.stageLocal(ctx, v.StoragePath, v.ID+filepath.Ext(v.OriginalFilename))
	if err != nil {
		return fmt.Errorf("staging source for encode: %w", err)
	}
	defer cleanup()

	// Step 3: probe.
	info, err := o.driver.Probe(ctx, localSource)
	if err != nil {
		return err
	}
	if err := o.db.Model(&models.Video{}).Where("video_id = ?", v.ID).Updates(map[string]interface{}{
		"duration_seconds":  info.Duration,
		"resolution_width":  info.Width,
		"resolution_height": info.Height,
	}).Error; err != nil {
		return fmt.Errorf("persisting probe results: %w", err)
	}

	// Step 4: derive ladder, encode.
	ladder := transcoder.DeriveLadder(info.Height)
	outDir := fmt.Sprintf("%s/%s", o.scratchDir, v.ID)
	defer os.RemoveAll(outDir)

	encodeCtx, cancel := context.WithTimeout(ctx, o.renditionTimeout*time.Duration(len(ladder)))
	defer cancel()

	succeeded, err := o.driver.Encode(encodeCtx, localSource, outDir, ladder)
	if err != nil {
		return err
	}

	// Step 5: master manifest.
	if err := o.driver.WriteMasterManifest(outDir, succeeded); err != nil {
		return fmt.Errorf("writing master manifest: %w", err)
	}

	hlsPath := fmt.Sprintf("videos/%s/%s/hls", v.OwnerUserID, v.ID)
	if err := o.uploadDirectory(ctx, outDir, hlsPath); err != nil {
		return fmt.Errorf("uploading hls output: %w", err)
	}

	// Step 6: thumbnail, best-effort.
	if err := o.driver.Thumbnail(ctx, localSource, outDir, info.Duration); err != nil {
		o.log.Warnw("pipeline: thumbnail extraction failed", "videoId", v.ID, "err", err)
	} else if err := o.uploadFileIfPresent(ctx, outDir+"/thumbnail.jpg", hlsPath+"/thumbnail.jpg"); err != nil {
		o.log.Warnw("pipeline: thumbnail upload failed", "videoId", v.ID, "err", err)
	}

	// Step 7: persist masterPlaylistPath, status = ready.
	masterPath := hlsPath + "/master.m3u8"
	hasThumb, _ := o.store.Exists(ctx, hlsPath+"/thumbnail.jpg")
	updates := map[string]interface{}{
		"hls_path":             hlsPath,
		"master_playlist_path": masterPath,
		"status":               models.StatusReady,
	}
	if hasThumb {
		updates["thumbnail_path"] = hlsPath + "/thumbnail.jpg"
	}
	return o.db.Model(&models.Video{}).Where("video_id = ?", v.ID).Updates(updates).Error
}

// stageLocal returns a local filesystem path the Transcoder Driver can
// hand to ffmpeg/ffprobe. The local backend resolves directly to its
// staging area; any other backend has no notion of a local path, so its
// source is downloaded into the scratch directory first. The returned
// cleanup func removes the staged copy; it is a no-op for the local
// backend's direct resolution.
func (o *Orchestrator) stageLocal(ctx context.Context, storagePath, scratchName string) (string, func(), error) {
	if path, err := o.store.Resolve(ctx, storagePath); err == nil {
		return path, func() {}, nil
	}

	rc, err := o.store.DownloadStream(ctx, storagePath)
	if err != nil {
		return "", func() {}, err
	}
	defer rc.Close()

	if err := os.MkdirAll(o.scratchDir, 0o755); err != nil {
		return "", func() {}, err
	}
	localPath := filepath.Join(o.scratchDir, scratchName)
	f, err := os.Create(localPath)
	if err != nil {
		return "", func() {}, err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(localPath)
		return "", func() {}, err
	}
	if err := f.Close(); err != nil {
		os.Remove(localPath)
		return "", func() {}, err
	}
	return localPath, func() { os.Remove(localPath) }, nil
}

func (o *Orchestrator) relocateSource(ctx context.Context, from, to string) error {
	rc, err := o.store.DownloadStream(ctx, from)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := o.store.Upload(ctx, rc, to, storage.Metadata{}); err != nil {
		return err
	}
	return o.store.Delete(ctx, from)
}

func (o *Orchestrator) uploadDirectory(ctx context.Context, localDir, remotePrefix string) error {
	entries, err := os.ReadDir(localDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == "thumbnail.jpg" {
			continue
		}
		if err := o.uploadFileIfPresent(ctx, localDir+"/"+e.Name(), remotePrefix+"/"+e.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) uploadFileIfPresent(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	var reader io.Reader = f
	return o.store.Upload(ctx, reader, remotePath, storage.Metadata{})
}

// Delete removes a video's blobs and record. Storage errors are logged but
// never block the record delete.
func (o *Orchestrator) Delete(ctx context.Context, v *models.Video) error {
	if v.StoragePath != "" {
		if err := o.store.Delete(ctx, v.StoragePath); err != nil {
			o.log.Warnw("delete: source blob removal failed", "videoId", v.ID, "err", err)
		}
	}
	if v.HLSPath != "" {
		if err := o.store.DeleteDirectory(ctx, v.HLSPath); err != nil {
			o.log.Warnw("delete: hls directory removal failed", "videoId", v.ID, "err", err)
		}
	}
	return o.db.Delete(&models.Video{}, "video_id = ?", v.ID).Error
}
