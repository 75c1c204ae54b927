// Package models holds the persisted Video record owned by the Pipeline
// Orchestrator and read by the Access Gate and HLS Server.
package models

import "time"

// Visibility is the closed sum type of video visibility policies.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

// Status is the closed sum type of pipeline states (spec §4.D).
type Status string

const (
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Resolution is the probed frame size of the source.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Video is the core persisted record. GORM owns its lifecycle; only the
// Pipeline Orchestrator mutates status/progress fields, and only the
// owner (via the out-of-scope metadata CRUD collaborator) edits title/
// description/visibility/passphrase.
type Video struct {
	ID          string     `gorm:"primaryKey;column:video_id" json:"videoId"`
	OwnerUserID string     `gorm:"index;column:owner_user_id" json:"ownerUserId"`
	Visibility  Visibility `gorm:"column:visibility" json:"visibility"`

	// PassphraseHash is never serialized to clients.
	PassphraseHash string `gorm:"column:passphrase_hash" json:"-"`

	StoragePath        string `gorm:"column:storage_path" json:"-"`
	HLSPath            string `gorm:"column:hls_path" json:"-"`
	MasterPlaylistPath string `gorm:"column:master_playlist_path" json:"masterPlaylistPath,omitempty"`

	Title       string `gorm:"column:title" json:"title"`
	Description string `gorm:"column:description" json:"description"`

	DurationSeconds float64    `gorm:"column:duration_seconds" json:"duration"`
	Resolution      Resolution `gorm:"embedded;embeddedPrefix:resolution_" json:"resolution"`

	FileSize         int64  `gorm:"column:file_size" json:"fileSize"`
	MimeType         string `gorm:"column:mime_type" json:"mimeType"`
	OriginalFilename string `gorm:"column:original_filename" json:"originalFilename"`

	ThumbnailPath string `gorm:"column:thumbnail_path" json:"thumbnailPath,omitempty"`

	Status          Status `gorm:"column:status;index" json:"status"`
	ProcessingError string `gorm:"column:processing_error" json:"processingError,omitempty"`

	Views int64 `gorm:"column:views" json:"views"`

	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName pins the GORM table name explicitly (matches the teacher's
// convention of naming tables by plural domain noun).
func (Video) TableName() string { return "videos" }

// IsOwner reports whether userID owns this video.
func (v *Video) IsOwner(userID string) bool {
	return userID != "" && userID == v.OwnerUserID
}

// RequiresPassphrase reports whether this video is passphrase-gated.
func (v *Video) RequiresPassphrase() bool {
	return v.PassphraseHash != ""
}

// PublicMetadata is the subset of fields safe to disclose to any caller
// that has passed the Access Gate (spec §4.E step 6).
type PublicMetadata struct {
	VideoID       string     `json:"videoId"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Duration      float64    `json:"duration"`
	Resolution    Resolution `json:"resolution"`
	ThumbnailPath string     `json:"thumbnailPath,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	Views         int64      `json:"views"`
}

func (v *Video) Public() PublicMetadata {
	return PublicMetadata{
		VideoID:       v.ID,
		Title:         v.Title,
		Description:   v.Description,
		Duration:      v.DurationSeconds,
		Resolution:    v.Resolution,
		ThumbnailPath: v.ThumbnailPath,
		CreatedAt:     v.CreatedAt,
		Views:         v.Views,
	}
}
