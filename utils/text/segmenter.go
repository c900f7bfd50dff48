package text

import (
	"strings"

	"avatarvoice/core"
)

// isTerminal reports whether r ends a sentence.
func isTerminal(r rune) bool {
	return r == '.' || r == '?' || r == '!'
}

// Segment splits text after every sentence terminator (. ? !), keeping the
// terminator on the preceding piece. Pieces are trimmed, empty pieces are
// dropped, and the survivors are indexed 0..n-1. Text without a terminator
// yields a single unit.
func Segment(text string) []core.SpeechUnit {
	units := make([]core.SpeechUnit, 0, strings.Count(text, ".")+1)
	appendPiece := func(piece string) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			return
		}
		units = append(units, core.SpeechUnit{Index: len(units), Text: piece})
	}

	start := 0
	for i, r := range text {
		if isTerminal(r) {
			end := i + 1 // terminators are single-byte
			appendPiece(text[start:end])
			start = end
		}
	}
	appendPiece(text[start:])
	return units
}
