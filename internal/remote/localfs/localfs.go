// Package localfs serves a document corpus straight off the filesystem. It is
// the development and testing counterpart of the Yandex Disk source.
package localfs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kabinet-ai/kabinet/internal/extract"
	"github.com/kabinet-ai/kabinet/internal/remote"
)

// Source lists and reads documents under a directory tree.
type Source struct{}

// New creates a filesystem source.
func New() *Source {
	return &Source{}
}

// List implements remote.Source. File IDs are absolute paths so Download
// needs no extra state.
func (s *Source) List(ctx context.Context, root string, recursive bool) ([]remote.File, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}

	var files []remote.File
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != absRoot {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		files = append(files, remote.File{
			ID:          path,
			Path:        rel,
			MediaType:   extract.MediaTypeForPath(rel),
			Size:        info.Size(),
			Fingerprint: fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size()),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", absRoot, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Download implements remote.Source.
func (s *Source) Download(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(id)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	return data, nil
}
