package kb

import "unicode/utf8"

// estimateTokens approximates the token count of text. The heuristic of two
// runes per token overestimates for English (~4 chars/token) and is close
// for CJK (~1-2 chars/token), keeping budget checks on the safe side.
func estimateTokens(text string) int {
	runeCount := utf8.RuneCountInString(text)
	return runeCount / 2
}
