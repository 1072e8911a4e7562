package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSourceList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.txt"), "beta")
	writeFile(t, filepath.Join(root, "a.md"), "alpha")
	writeFile(t, filepath.Join(root, ".hidden"), "nope")
	writeFile(t, filepath.Join(root, "sub", "c.pdf"), "gamma")

	s := New()

	files, err := s.List(context.Background(), root, true)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a.md", files[0].Path)
	assert.Equal(t, "b.txt", files[1].Path)
	assert.Equal(t, "sub/c.pdf", files[2].Path)
	assert.Equal(t, int64(4), files[1].Size)
	assert.NotEmpty(t, files[0].Fingerprint)

	flat, err := s.List(context.Background(), root, false)
	require.NoError(t, err)
	require.Len(t, flat, 2)
}

func TestSourceFingerprintChanges(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.txt")
	writeFile(t, path, "v1")

	s := New()
	before, err := s.List(context.Background(), root, false)
	require.NoError(t, err)

	// Force a distinct mtime so the fingerprint moves.
	writeFile(t, path, "v2 longer")
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	after, err := s.List(context.Background(), root, false)
	require.NoError(t, err)
	assert.NotEqual(t, before[0].Fingerprint, after[0].Fingerprint)
}

func TestSourceDownload(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.txt")
	writeFile(t, path, "payload")

	s := New()
	data, err := s.Download(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = s.Download(context.Background(), filepath.Join(root, "gone.txt"))
	require.Error(t, err)
}
