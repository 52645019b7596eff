package feature

import (
	"strings"

	"github.com/forPelevin/gomoji"
	"github.com/rivo/uniseg"
)

// extractEmojis walks the text one grapheme cluster at a time and splits it
// into non-emoji text and the emoji clusters removed from it. Working at the
// cluster level keeps multi-codepoint sequences (skin tones, ZWJ families,
// flags) intact: each occurrence is deleted atomically, never as a rune class.
func extractEmojis(text string) (string, []string) {
	emojis := []string{}
	if text == "" {
		return text, emojis
	}

	var kept strings.Builder
	kept.Grow(len(text))

	g := uniseg.NewGraphemes(text)
	for g.Next() {
		cluster := g.Str()
		if gomoji.ContainsEmoji(cluster) {
			emojis = append(emojis, cluster)
			continue
		}
		kept.WriteString(cluster)
	}

	return strings.TrimSpace(kept.String()), emojis
}
