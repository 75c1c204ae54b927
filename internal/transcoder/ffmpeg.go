package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// hlsCommand builds the argument list for one rendition's ffmpeg invocation.
// Scaling preserves aspect ratio to the target height; width is forced even
// since odd widths break several hardware decoders. GOP size is pinned to
// 2x the nominal fps so segments start on closed, independently-decodable
// keyframes.
func hlsCommand(input, outDir, name string, r Rendition, segmentSeconds, nominalFPS int) []string {
	playlist := outDir + "/" + name + ".m3u8"
	segmentPattern := outDir + "/" + name + "_%03d.ts"
	gopSize := 2 * nominalFPS

	scaleFilter := fmt.Sprintf("scale=-2:%d", r.Height)

	return []string{
		"-hide_banner", "-y",
		"-i", input,
		"-vf", scaleFilter,
		"-c:v", "h264",
		"-profile:v", "main",
		"-b:v", strconv.Itoa(r.BitrateBps),
		"-maxrate", strconv.Itoa(r.BitrateBps),
		"-bufsize", strconv.Itoa(r.BitrateBps * 2),
		"-g", strconv.Itoa(gopSize),
		"-keyint_min", strconv.Itoa(gopSize),
		"-sc_threshold", "0",
		"-c:a", "aac",
		"-b:a", "128k",
		"-f", "hls",
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_flags", "independent_segments",
		"-hls_segment_filename", segmentPattern,
		playlist,
	}
}

// runFFmpeg executes ffmpeg with args, capturing stderr for diagnostics.
func runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, stderr.String())
	}
	return nil
}

// thumbnailCommand builds the argument list for extracting a single JPEG
// frame at the given timestamp (seconds).
func thumbnailCommand(input, output string, atSeconds float64) []string {
	return []string{
		"-hide_banner", "-y",
		"-ss", strconv.FormatFloat(atSeconds, 'f', 3, 64),
		"-i", input,
		"-frames:v", "1",
		"-q:v", "4",
		output,
	}
}
