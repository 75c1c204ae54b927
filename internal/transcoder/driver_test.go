package transcoder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWriteMasterManifest(t *testing.T) {
	dir := t.TempDir()
	d := NewDriver(zap.NewNop().Sugar(), 4, 24)

	succeeded := []EncodedRendition{
		{Rendition: Rendition{Name: "720p", Height: 720, BitrateBps: 2_800_000}, PlaylistName: "720p.m3u8"},
		{Rendition: Rendition{Name: "480p", Height: 480, BitrateBps: 1_400_000}, PlaylistName: "480p.m3u8"},
	}

	require.NoError(t, d.WriteMasterManifest(dir, succeeded))

	data, err := os.ReadFile(filepath.Join(dir, "master.m3u8"))
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, "#EXTM3U")
	assert.Contains(t, content, "#EXT-X-VERSION:3")
	assert.Contains(t, content, "BANDWIDTH=2800000,RESOLUTION=1280x720")
	assert.Contains(t, content, "720p.m3u8")
	assert.Contains(t, content, "BANDWIDTH=1400000,RESOLUTION=854x480")
	assert.Contains(t, content, "480p.m3u8")

	// Ladder order is preserved: 720p line must appear before 480p line.
	assert.Less(t, indexOf(content, "720p.m3u8"), indexOf(content, "480p.m3u8"))
}

func TestRoundDisplayWidthIsEven(t *testing.T) {
	for _, h := range []int{1080, 720, 480, 360, 240} {
		w := roundDisplayWidth(h)
		assert.Equal(t, 0, w%2)
	}
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
