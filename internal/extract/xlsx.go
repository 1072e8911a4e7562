package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractXLSX extracts text from .xlsx/.xlsm bytes, one fragment per sheet.
// Rows are tab-joined, preserving spreadsheet structure for retrieval of
// tabular facts.
func extractXLSX(_ context.Context, data []byte, _ Options) ([]Fragment, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	var fragments []Fragment
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}

		var b strings.Builder
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(line)
		}

		if b.Len() == 0 {
			continue
		}
		fragments = append(fragments, Fragment{
			Text: b.String(),
			Loc:  Location{Sheet: sheet},
		})
	}
	return fragments, nil
}
