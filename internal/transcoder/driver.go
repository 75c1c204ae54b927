package transcoder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/vaultstream/vaultstream/internal/apperr"
)

// Driver orchestrates probe → per-rendition encode → master manifest →
// thumbnail for a single video. Renditions are encoded sequentially from
// the same local source file to avoid read contention.
type Driver struct {
	log               *zap.SugaredLogger
	segmentSeconds    int
	nominalFPS        int
}

func NewDriver(log *zap.SugaredLogger, segmentSeconds, nominalFPS int) *Driver {
	if segmentSeconds <= 0 {
		segmentSeconds = 4
	}
	if nominalFPS <= 0 {
		nominalFPS = 24
	}
	return &Driver{log: log, segmentSeconds: segmentSeconds, nominalFPS: nominalFPS}
}

// Probe delegates to the package-level ffprobe invocation.
func (d *Driver) Probe(ctx context.Context, sourcePath string) (*SourceInfo, error) {
	return Probe(ctx, sourcePath)
}

// EncodedRendition is a ladder rung that finished encoding successfully.
type EncodedRendition struct {
	Rendition
	PlaylistName string // e.g. "720p.m3u8"
}

// Encode runs every ladder rendition in sequence against sourcePath,
// writing playlists and segments under outDir. A per-rendition failure is
// logged and skipped; it does not abort the remaining renditions. Returns
// AllRenditionsFailed if none succeeded.
func (d *Driver) Encode(ctx context.Context, sourcePath, outDir string, ladder []Rendition) ([]EncodedRendition, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var succeeded []EncodedRendition
	for _, r := range ladder {
		args := hlsCommand(sourcePath, outDir, r.Name, r, d.segmentSeconds, d.nominalFPS)
		if err := runFFmpeg(ctx, args); err != nil {
			d.log.Errorw("rendition encode failed", "rendition", r.Name, "err", err)
			continue
		}
		succeeded = append(succeeded, EncodedRendition{Rendition: r, PlaylistName: r.Name + ".m3u8"})
	}

	if len(succeeded) == 0 {
		return nil, apperr.AllRenditionsFailed()
	}
	return succeeded, nil
}

// WriteMasterManifest writes the top-level master.m3u8 naming each
// succeeded rendition, in ladder order (highest-to-lowest).
func (d *Driver) WriteMasterManifest(outDir string, succeeded []EncodedRendition) error {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n\n")

	for _, r := range succeeded {
		width := roundDisplayWidth(r.Height)
		b.WriteString(fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n%s\n",
			r.BitrateBps, width, r.Height, r.PlaylistName))
	}

	return os.WriteFile(outDir+"/master.m3u8", []byte(b.String()), 0o644)
}

// roundDisplayWidth computes a 16:9 display-hint width; the actual encode
// preserves the source's real aspect ratio via the scale filter.
func roundDisplayWidth(height int) int {
	w := height * 16 / 9
	if w%2 != 0 {
		w++
	}
	return w
}

// Thumbnail extracts a single JPEG at 10% of duration. Failure here is
// non-fatal: the caller logs and continues without blocking the pipeline.
func (d *Driver) Thumbnail(ctx context.Context, sourcePath, outDir string, durationSeconds float64) error {
	at := durationSeconds * 0.1
	args := thumbnailCommand(sourcePath, outDir+"/thumbnail.jpg", at)
	return runFFmpeg(ctx, args)
}
