package transcoder

import "strconv"

// Rendition is one entry in the quality ladder.
type Rendition struct {
	Name       string // e.g. "1080p"
	Height     int
	BitrateBps int
}

// ladderRungs is the closed, ordered set of candidate renditions,
// highest-to-lowest.
var ladderRungs = []Rendition{
	{Name: "1080p", Height: 1080, BitrateBps: 5_000_000},
	{Name: "720p", Height: 720, BitrateBps: 2_800_000},
	{Name: "480p", Height: 480, BitrateBps: 1_400_000},
	{Name: "360p", Height: 360, BitrateBps: 800_000},
}

// DeriveLadder picks the renditions valid for a source of sourceHeight,
// never upscaling. A source shorter than the lowest rung gets a single
// rendition sized to its own height.
func DeriveLadder(sourceHeight int) []Rendition {
	var valid []Rendition
	for _, r := range ladderRungs {
		if r.Height <= sourceHeight {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return []Rendition{{Name: renditionName(sourceHeight), Height: sourceHeight, BitrateBps: 800_000}}
	}
	return valid
}

func renditionName(height int) string {
	if height <= 0 {
		return "source"
	}
	return strconv.Itoa(height) + "p"
}
