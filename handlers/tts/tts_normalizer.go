package tts

import (
	"regexp"
	"strings"
)

// normalizeTextForTTS strips formatting the voice would read aloud. The
// display text of a unit is left untouched.
func normalizeTextForTTS(text string) string {
	text = removeMarkdown(text)
	text = removeEmojis(text)
	text = multipleSpacesRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

var markdownReplacer = strings.NewReplacer(
	"**", "", // bold
	"__", "", // underline
	"~~", "", // strikethrough
	"`", "", // inline code
	"*", "", // italic / bullets
	"#", "", // headings
)

func removeMarkdown(text string) string {
	text = markdownLinkRegex.ReplaceAllString(text, "$1")
	return markdownReplacer.Replace(text)
}

func removeEmojis(text string) string {
	return removeEmojiRegex.ReplaceAllString(text, "")
}

var (
	markdownLinkRegex   = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	removeEmojiRegex    = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\p{P}\p{Z}\s]|\x{FE0F}`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)
