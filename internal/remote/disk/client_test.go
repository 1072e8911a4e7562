package disk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabinet-ai/kabinet/internal/extract"
)

type fakeDisk struct {
	// dirs maps directory path to its items.
	dirs map[string][]map[string]any
	// files maps file path to content served from the download href.
	files map[string]string

	authHeader string
}

func (f *fakeDisk) handler(t *testing.T) http.Handler {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/disk/resources", func(w http.ResponseWriter, r *http.Request) {
		f.authHeader = r.Header.Get("Authorization")
		path := r.URL.Query().Get("path")
		items, ok := f.dirs[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "DiskNotFoundError"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"path": path,
			"type": "dir",
			"_embedded": map[string]any{
				"items": items,
			},
		})
	})
	mux.HandleFunc("/v1/disk/resources/download", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if _, ok := f.files[path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		href := fmt.Sprintf("http://%s/content?path=%s", r.Host, path)
		_ = json.NewEncoder(w).Encode(map[string]string{"href": href})
	})
	mux.HandleFunc("/content", func(w http.ResponseWriter, r *http.Request) {
		content, ok := f.files[r.URL.Query().Get("path")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(content))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeDisk) *Client {
	t.Helper()

	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return New("test-token", WithBaseURL(srv.URL+"/v1/disk"))
}

func TestClientList(t *testing.T) {
	f := &fakeDisk{
		dirs: map[string][]map[string]any{
			"/kb": {
				{"path": "disk:/kb/guide.pdf", "type": "file", "md5": "abc123", "size": 2048, "resource_id": "res-1"},
				{"path": "disk:/kb/notes.txt", "type": "file", "size": 10, "modified": "2026-08-01T12:00:00Z"},
				{"path": "disk:/kb/sub", "type": "dir"},
				{"path": "disk:/kb/image.png", "type": "file", "md5": "ff", "size": 99},
			},
		},
	}
	c := newTestClient(t, f)

	files, err := c.List(context.Background(), "kb", false)
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "OAuth test-token", f.authHeader)

	// IDs are disk paths; the download endpoint knows nothing else.
	assert.Equal(t, "disk:/kb/guide.pdf", files[0].ID)
	assert.Equal(t, "guide.pdf", files[0].Path)
	assert.Equal(t, extract.MediaTypePDF, files[0].MediaType)
	assert.Equal(t, "abc123", files[0].Fingerprint)
	assert.Equal(t, int64(2048), files[0].Size)

	// No md5: fingerprint falls back to modified+size.
	assert.Equal(t, "disk:/kb/notes.txt", files[1].ID)
	assert.Equal(t, "notes.txt", files[1].Path)
	assert.NotEmpty(t, files[1].Fingerprint)
	assert.NotEqual(t, "abc123", files[1].Fingerprint)

	// Unsupported extension still listed; filtering is the caller's call.
	assert.Equal(t, "image.png", files[2].Path)
	assert.Empty(t, files[2].MediaType)
}

func TestClientListRecursive(t *testing.T) {
	f := &fakeDisk{
		dirs: map[string][]map[string]any{
			"/kb": {
				{"path": "disk:/kb/top.md", "type": "file", "md5": "a", "size": 1},
				{"path": "disk:/kb/sub", "type": "dir"},
			},
			"disk:/kb/sub": {
				{"path": "disk:/kb/sub/deep.docx", "type": "file", "md5": "b", "size": 2},
			},
		},
	}
	c := newTestClient(t, f)

	files, err := c.List(context.Background(), "/kb", true)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "top.md", files[0].Path)
	assert.Equal(t, "sub/deep.docx", files[1].Path)

	flat, err := c.List(context.Background(), "/kb", false)
	require.NoError(t, err)
	require.Len(t, flat, 1)
}

func TestClientListNotFound(t *testing.T) {
	c := newTestClient(t, &fakeDisk{dirs: map[string][]map[string]any{}})

	_, err := c.List(context.Background(), "/missing", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestClientDownload(t *testing.T) {
	f := &fakeDisk{
		dirs:  map[string][]map[string]any{},
		files: map[string]string{"disk:/kb/notes.txt": "hello disk"},
	}
	c := newTestClient(t, f)

	data, err := c.Download(context.Background(), "disk:/kb/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello disk", string(data))
}

func TestClientListedIDsDownload(t *testing.T) {
	f := &fakeDisk{
		dirs: map[string][]map[string]any{
			"/kb": {
				{"path": "disk:/kb/guide.pdf", "type": "file", "md5": "abc", "size": 5, "resource_id": "res-1"},
			},
		},
		files: map[string]string{"disk:/kb/guide.pdf": "%PDF-"},
	}
	c := newTestClient(t, f)

	files, err := c.List(context.Background(), "kb", false)
	require.NoError(t, err)
	require.Len(t, files, 1)

	// Whatever List hands out as ID must be accepted by Download, even when
	// the API also reports a resource_id.
	data, err := c.Download(context.Background(), files[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(data))
}

func TestClientDownloadMissing(t *testing.T) {
	c := newTestClient(t, &fakeDisk{dirs: map[string][]map[string]any{}})

	_, err := c.Download(context.Background(), "disk:/kb/gone.txt")
	require.Error(t, err)
}
