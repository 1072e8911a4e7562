// Package remote defines the remote document store collaborator. The core
// depends only on the Source shape, not on a specific storage provider.
package remote

import "context"

// File describes one remote document as seen in a listing.
type File struct {
	// ID is the provider-stable identifier used for downloads.
	ID string

	// Path is the human-readable path relative to the corpus root.
	Path string

	// MediaType is the detected media type, empty when unsupported.
	MediaType string

	// Size is the remote byte size.
	Size int64

	// Fingerprint is a change-detection token: content hash when the
	// provider exposes one, otherwise modification time plus size.
	Fingerprint string
}

// Source lists and downloads documents from a remote store.
type Source interface {
	// List enumerates files under root. With recursive false only the top
	// level is scanned; subdirectories are descended otherwise.
	List(ctx context.Context, root string, recursive bool) ([]File, error)

	// Download fetches the raw bytes of the file with the given ID.
	Download(ctx context.Context, id string) ([]byte, error)
}
