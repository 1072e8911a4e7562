package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// slidePathRe matches slide XML files inside a .pptx zip and captures the
// slide number, e.g. ppt/slides/slide12.xml.
var slidePathRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// atTag matches <a:t>text</a:t> including attribute variants.
var atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// extractPPTX extracts text from .pptx bytes, one fragment per slide in slide
// order. PPTX is a ZIP containing ppt/slides/slideN.xml (Office Open XML);
// all <a:t> text nodes of a slide are joined with spaces.
func extractPPTX(_ context.Context, data []byte, _ Options) ([]Fragment, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("extract pptx: not a zip: %w", err)
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slidePathRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slide{num: num, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var fragments []Fragment
	for _, s := range slides {
		content, err := readZipFile(s.file)
		if err != nil {
			return nil, fmt.Errorf("extract pptx: read slide %d: %w", s.num, err)
		}

		parts := atTag.FindAllSubmatch(content, -1)
		if len(parts) == 0 {
			continue
		}
		var b strings.Builder
		for i, p := range parts {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(string(p[1])))
		}

		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		fragments = append(fragments, Fragment{
			Text: text,
			Loc:  Location{Slide: s.num},
		})
	}
	return fragments, nil
}
