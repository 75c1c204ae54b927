package transcoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveLadder(t *testing.T) {
	tests := []struct {
		name         string
		sourceHeight int
		wantNames    []string
	}{
		{"1080p source gets full ladder", 1080, []string{"1080p", "720p", "480p", "360p"}},
		{"720p source excludes 1080p", 720, []string{"720p", "480p", "360p"}},
		{"480p source excludes above", 480, []string{"480p", "360p"}},
		{"tiny 240p source gets single rendition", 240, []string{"240p"}},
		{"exact 360p boundary", 360, []string{"360p"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ladder := DeriveLadder(tt.sourceHeight)
			names := make([]string, len(ladder))
			for i, r := range ladder {
				names[i] = r.Name
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestDeriveLadderNeverUpscales(t *testing.T) {
	ladder := DeriveLadder(500)
	for _, r := range ladder {
		assert.LessOrEqual(t, r.Height, 500)
	}
}

func TestDeriveLadderTinySourceSingleRendition(t *testing.T) {
	ladder := DeriveLadder(180)
	assert.Len(t, ladder, 1)
	assert.Equal(t, 180, ladder[0].Height)
	assert.Equal(t, "180p", ladder[0].Name)
}
