// Package videostore adapts the Video table to the narrow, read-only
// lookup contract the Access Gate and HLS Server depend on, so both can be
// exercised in tests against an in-memory fake instead of a real database.
package videostore

import (
	"context"

	"gorm.io/gorm"

	"github.com/vaultstream/vaultstream/internal/apperr"
	"github.com/vaultstream/vaultstream/internal/models"
)

// Finder is the minimal video lookup the Access Gate and HLS Server need.
type Finder interface {
	FindVideo(ctx context.Context, videoID string) (*models.Video, error)
}

// Gorm adapts a *gorm.DB to Finder.
type Gorm struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) FindVideo(ctx context.Context, videoID string) (*models.Video, error) {
	var v models.Video
	if err := g.db.WithContext(ctx).First(&v, "video_id = ?", videoID).Error; err != nil {
		return nil, apperr.NotFound("video not found: " + videoID)
	}
	return &v, nil
}
