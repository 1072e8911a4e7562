package chunk

import (
	"strings"
	"unicode/utf8"

	"github.com/kabinet-ai/kabinet/internal/extract"
)

// fragmentSeparator joins fragments into one document text. A single newline
// survives normalization unchanged, keeping offsets stable.
const fragmentSeparator = "\n"

// FragmentSpan records the rune range a source fragment occupies in the
// joined document text.
type FragmentSpan struct {
	Loc   extract.Location
	Start int
	End   int
}

// Join concatenates fragment texts into the document text handed to Split,
// recording each fragment's rune span for later citation mapping.
func Join(fragments []extract.Fragment) (string, []FragmentSpan) {
	var b strings.Builder
	spans := make([]FragmentSpan, 0, len(fragments))

	offset := 0
	for i, f := range fragments {
		if i > 0 {
			b.WriteString(fragmentSeparator)
			offset += utf8.RuneCountInString(fragmentSeparator)
		}
		length := utf8.RuneCountInString(f.Text)
		spans = append(spans, FragmentSpan{
			Loc:   f.Loc,
			Start: offset,
			End:   offset + length,
		})
		b.WriteString(f.Text)
		offset += length
	}

	return b.String(), spans
}

// Locations returns the locations of all fragments a passage overlaps, in
// document order. A passage cut across a page boundary reports both pages.
func Locations(p Passage, spans []FragmentSpan) []extract.Location {
	var locs []extract.Location
	for _, s := range spans {
		if s.End <= p.Start || s.Start >= p.End {
			continue
		}
		locs = append(locs, s.Loc)
	}
	return locs
}
