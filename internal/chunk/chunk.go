// Package chunk splits normalized document text into overlapping passages of
// bounded size. Passages are deterministic for a given input: the same text
// and parameters always produce the same passages, which keeps re-indexing
// idempotent.
package chunk

import "strings"

// breakpointChars end a sentence or paragraph; cuts prefer to land just after
// one of these.
const breakpointChars = ".!?\n"

// Passage is one bounded slice of document text. Start and End are rune
// offsets into the source text, so passages can be mapped back to the source
// fragments they were cut from.
type Passage struct {
	Ordinal int
	Text    string
	Start   int
	End     int
}

// Split cuts text into passages of at most size runes where consecutive
// passages share exactly overlap runes. The cut point prefers a natural
// breakpoint (sentence or paragraph end) within a small window before the
// size limit, falling back to a hard cut. Requires 0 <= overlap < size;
// out-of-range parameters degrade to a single passage.
//
// Reassembly invariant: text == passages[0].Text + passages[1].Text[overlap:]
// + ... (rune-wise), so nothing is lost or duplicated.
func Split(text string, size, overlap int) []Passage {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)

	if size <= 0 || overlap < 0 || overlap >= size || n <= size {
		return []Passage{{Ordinal: 0, Text: text, Start: 0, End: n}}
	}

	window := size / 10

	var passages []Passage
	start := 0
	for {
		end := start + size
		if end >= n {
			end = n
		} else if cut := findBreakpoint(runes, start+overlap+1, end, window); cut > 0 {
			end = cut
		}

		passages = append(passages, Passage{
			Ordinal: len(passages),
			Text:    string(runes[start:end]),
			Start:   start,
			End:     end,
		})

		if end >= n {
			return passages
		}
		start = end - overlap
	}
}

// findBreakpoint returns the largest cut position in (end-window, end] that
// lies just after a breakpoint rune, or 0 if none. Cuts at or below min are
// rejected so every passage still advances past the previous overlap.
func findBreakpoint(runes []rune, min, end, window int) int {
	lo := end - window
	if lo < min {
		lo = min
	}
	for cut := end; cut > lo; cut-- {
		if strings.ContainsRune(breakpointChars, runes[cut-1]) {
			return cut
		}
	}
	return 0
}

// Reassemble is the inverse of Split: dropping the first overlap runes of
// every passage after the first reproduces the original text. Used by tests
// and sanity checks.
func Reassemble(passages []Passage, overlap int) string {
	var b strings.Builder
	for i, p := range passages {
		if i == 0 {
			b.WriteString(p.Text)
			continue
		}
		b.WriteString(string([]rune(p.Text)[overlap:]))
	}
	return b.String()
}
