// Package transcoder drives an external ffmpeg/ffprobe toolchain to turn a
// source video into an HLS ladder, grounded on the corpus's composable
// ffmpeg command builder and probe patterns.
package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/vaultstream/vaultstream/internal/apperr"
)

// SourceInfo is the subset of probed source metadata the pipeline needs.
type SourceInfo struct {
	Duration  float64
	Width     int
	Height    int
	Codec     string
	FPS       float64
	Bitrate   int64
	Container string
}

type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

// Probe extracts {duration, width, height, codec, fps, bitrate, container}
// from the source file. Fails with ProbeError if no video stream is present.
func Probe(ctx context.Context, path string) (*SourceInfo, error) {
	args := []string{
		"-hide_banner", "-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, apperr.ProbeError(fmt.Errorf("ffprobe: %w: %s", err, stderr.String()))
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, apperr.ProbeError(fmt.Errorf("parsing ffprobe output: %w", err))
	}

	info := &SourceInfo{Container: out.Format.FormatName}
	if out.Format.Duration != "" {
		info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	}
	if out.Format.BitRate != "" {
		info.Bitrate, _ = strconv.ParseInt(out.Format.BitRate, 10, 64)
	}

	found := false
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		found = true
		info.Width = s.Width
		info.Height = s.Height
		info.Codec = s.CodecName
		info.FPS = parseFrameRate(s.RFrameRate)
		break
	}
	if !found {
		return nil, apperr.ProbeError(fmt.Errorf("no video stream in source"))
	}

	return info, nil
}

func parseFrameRate(rate string) float64 {
	parts := strings.SplitN(rate, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
