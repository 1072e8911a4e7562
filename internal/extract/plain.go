package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// utf8BOM is the UTF-8 byte order mark some editors prepend.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText decodes bytes as UTF-8, falling back to CP1251 when the content
// is not valid UTF-8. The corpus historically contains Windows-1251 text files.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	if decoded, err := charmap.Windows1251.NewDecoder().Bytes(data); err == nil {
		return string(decoded)
	}
	return strings.ToValidUTF8(string(data), "")
}

// extractPlain handles text/plain and text/markdown: the whole document is a
// single fragment with no location.
func extractPlain(_ context.Context, data []byte, _ Options) ([]Fragment, error) {
	text := decodeText(data)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []Fragment{{Text: text}}, nil
}

// extractCSV produces one fragment per record with the 1-based row number as
// location, cells joined by tabs.
func extractCSV(_ context.Context, data []byte, _ Options) ([]Fragment, error) {
	r := csv.NewReader(strings.NewReader(decodeText(data)))
	r.FieldsPerRecord = -1

	var fragments []Fragment
	row := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv row %d: %w", row+1, err)
		}
		row++

		line := strings.TrimSpace(strings.Join(record, "\t"))
		if line == "" {
			continue
		}
		fragments = append(fragments, Fragment{
			Text: line,
			Loc:  Location{Row: row},
		})
	}
	return fragments, nil
}
