// Package extract converts raw document bytes into text fragments with
// location metadata. Each supported media type has its own extractor; the
// Registry maps a media type to the extractor implementing it.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrAuthRequired indicates an encrypted document needs a passphrase
	// and none was supplied.
	ErrAuthRequired = errors.New("document is encrypted: passphrase required")

	// ErrAuthInvalid indicates the supplied passphrase was rejected.
	ErrAuthInvalid = errors.New("document is encrypted: passphrase invalid")

	// ErrUnsupportedMediaType indicates no extractor is registered for the
	// document's media type.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

// ExtractionError reports a malformed or unreadable document. It carries the
// originating document path so a sync run can skip the document and continue.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Location identifies where a fragment originated within its document.
// Zero fields are omitted from the stored JSON.
type Location struct {
	Page  int    `json:"page,omitempty"`
	Slide int    `json:"slide,omitempty"`
	Sheet string `json:"sheet,omitempty"`
	Row   int    `json:"row,omitempty"`
}

// String renders the location for citations, e.g. "page 3" or "sheet Totals".
func (l Location) String() string {
	switch {
	case l.Page > 0:
		return fmt.Sprintf("page %d", l.Page)
	case l.Slide > 0:
		return fmt.Sprintf("slide %d", l.Slide)
	case l.Sheet != "" && l.Row > 0:
		return fmt.Sprintf("sheet %s row %d", l.Sheet, l.Row)
	case l.Sheet != "":
		return fmt.Sprintf("sheet %s", l.Sheet)
	case l.Row > 0:
		return fmt.Sprintf("row %d", l.Row)
	default:
		return ""
	}
}

// Fragment is a unit of extracted text in reading order.
type Fragment struct {
	Text string
	Loc  Location
}

// Options carries per-document extraction options.
type Options struct {
	// Passphrase opens encrypted documents (PDF). Empty means none supplied.
	Passphrase string
}

// Extractor converts document bytes of one media type into fragments.
// An empty or non-text document yields an empty slice and a nil error.
type Extractor interface {
	Extract(ctx context.Context, data []byte, opts Options) ([]Fragment, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, data []byte, opts Options) ([]Fragment, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(ctx context.Context, data []byte, opts Options) ([]Fragment, error) {
	return f(ctx, data, opts)
}

// Media types understood by the default registry.
const (
	MediaTypeText     = "text/plain"
	MediaTypeMarkdown = "text/markdown"
	MediaTypeCSV      = "text/csv"
	MediaTypePDF      = "application/pdf"
	MediaTypeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaTypePPTX     = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MediaTypeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// mediaTypeByExt maps lowercase file extensions to media types.
var mediaTypeByExt = map[string]string{
	".txt":  MediaTypeText,
	".md":   MediaTypeMarkdown,
	".csv":  MediaTypeCSV,
	".pdf":  MediaTypePDF,
	".docx": MediaTypeDOCX,
	".pptx": MediaTypePPTX,
	".xlsx": MediaTypeXLSX,
	".xlsm": MediaTypeXLSX,
}

// MediaTypeForPath returns the media type for a file path based on its
// extension, or "" if the type is not supported.
func MediaTypeForPath(path string) string {
	return mediaTypeByExt[strings.ToLower(filepath.Ext(path))]
}

// Registry maps media types to extractors. The zero value is unusable;
// use NewRegistry.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry returns a registry with all built-in extractors registered.
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	r.Register(MediaTypeText, ExtractorFunc(extractPlain))
	r.Register(MediaTypeMarkdown, ExtractorFunc(extractPlain))
	r.Register(MediaTypeCSV, ExtractorFunc(extractCSV))
	r.Register(MediaTypePDF, ExtractorFunc(extractPDF))
	r.Register(MediaTypeDOCX, ExtractorFunc(extractDOCX))
	r.Register(MediaTypePPTX, ExtractorFunc(extractPPTX))
	r.Register(MediaTypeXLSX, ExtractorFunc(extractXLSX))
	return r
}

// Register installs an extractor for a media type, replacing any previous one.
func (r *Registry) Register(mediaType string, e Extractor) {
	r.extractors[mediaType] = e
}

// Supported reports whether the registry can extract the given media type.
func (r *Registry) Supported(mediaType string) bool {
	_, ok := r.extractors[mediaType]
	return ok
}

// Extract runs the extractor for mediaType over data. Fragment text is
// normalized (see Normalize) and empty fragments are dropped. Auth errors
// pass through unchanged so callers can prompt for a passphrase; any other
// failure is wrapped in *ExtractionError carrying path.
func (r *Registry) Extract(ctx context.Context, path, mediaType string, data []byte, opts Options) ([]Fragment, error) {
	e, ok := r.extractors[mediaType]
	if !ok {
		return nil, &ExtractionError{Path: path, Err: fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mediaType)}
	}

	fragments, err := e.Extract(ctx, data, opts)
	if err != nil {
		if errors.Is(err, ErrAuthRequired) || errors.Is(err, ErrAuthInvalid) {
			return nil, err
		}
		return nil, &ExtractionError{Path: path, Err: err}
	}

	out := fragments[:0]
	for _, f := range fragments {
		f.Text = Normalize(f.Text)
		if f.Text == "" {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}
