package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// extractPDF produces one fragment per page. Encrypted documents are opened
// with the passphrase from opts; a missing passphrase yields ErrAuthRequired
// and a rejected one ErrAuthInvalid.
func extractPDF(_ context.Context, data []byte, opts Options) ([]Fragment, error) {
	// The password callback is invoked until it returns ""; offer the
	// passphrase once, then give up so the reader fails fast.
	offered := false
	pw := func() string {
		if offered || opts.Passphrase == "" {
			return ""
		}
		offered = true
		return opts.Passphrase
	}

	r, err := pdf.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), pw)
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			if opts.Passphrase == "" {
				return nil, ErrAuthRequired
			}
			return nil, ErrAuthInvalid
		}
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var fragments []Fragment
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		if text == "" {
			continue
		}
		fragments = append(fragments, Fragment{
			Text: text,
			Loc:  Location{Page: i},
		})
	}
	return fragments, nil
}
