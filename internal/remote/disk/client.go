// Package disk implements the remote.Source collaborator against the Yandex
// Disk REST API, where the document corpus of this deployment lives.
package disk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kabinet-ai/kabinet/internal/extract"
	"github.com/kabinet-ai/kabinet/internal/remote"
)

const (
	// defaultBaseURL is the Yandex Disk REST API root.
	defaultBaseURL = "https://cloud-api.yandex.net/v1/disk"

	// listPageLimit is the maximum number of entries per listing request.
	listPageLimit = 1000

	// requestTimeout bounds a single API call; downloads carry their own.
	requestTimeout = 30 * time.Second

	// maxDownloadBytes caps a single document download.
	maxDownloadBytes = 64 << 20 // 64 MiB
)

// Client talks to the Yandex Disk REST API.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API root (tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// New creates a Yandex Disk client authenticated with an OAuth token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// resource is the subset of the Disk resource representation we consume.
type resource struct {
	Path     string    `json:"path"`
	Type     string    `json:"type"`
	MD5      string    `json:"md5"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Embedded *struct {
		Items []resource `json:"items"`
	} `json:"_embedded"`
}

// List implements remote.Source.
func (c *Client) List(ctx context.Context, root string, recursive bool) ([]remote.File, error) {
	root = "/" + strings.Trim(root, "/")

	var files []remote.File
	var walk func(dir string) error
	walk = func(dir string) error {
		res, err := c.listDir(ctx, dir)
		if err != nil {
			return err
		}
		if res.Embedded == nil {
			return nil
		}
		for _, item := range res.Embedded.Items {
			if item.Type == "dir" {
				if recursive {
					if err := walk(item.Path); err != nil {
						return err
					}
				}
				continue
			}

			rel := strings.TrimPrefix(strings.TrimPrefix(item.Path, "disk:"), root)
			rel = strings.TrimPrefix(rel, "/")
			if rel == "" {
				continue
			}

			// The download endpoint addresses files by disk path, so the
			// path doubles as the ID.
			files = append(files, remote.File{
				ID:          item.Path,
				Path:        rel,
				MediaType:   extract.MediaTypeForPath(rel),
				Size:        item.Size,
				Fingerprint: fingerprint(item),
			})
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}
	return files, nil
}

// fingerprint builds the change-detection token: md5 when the API provides
// one, otherwise modification time plus size.
func fingerprint(r resource) string {
	if r.MD5 != "" {
		return r.MD5
	}
	return fmt.Sprintf("%d-%d", r.Modified.Unix(), r.Size)
}

func (c *Client) listDir(ctx context.Context, path string) (*resource, error) {
	q := url.Values{}
	q.Set("path", path)
	q.Set("limit", fmt.Sprint(listPageLimit))

	var res resource
	if err := c.getJSON(ctx, c.baseURL+"/resources?"+q.Encode(), &res); err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	return &res, nil
}

// Download implements remote.Source. Disk downloads are two-step: resolve a
// temporary href, then fetch it.
func (c *Client) Download(ctx context.Context, id string) ([]byte, error) {
	q := url.Values{}
	q.Set("path", id)

	var link struct {
		Href string `json:"href"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/resources/download?"+q.Encode(), &link); err != nil {
		return nil, fmt.Errorf("resolve download for %s: %w", id, err)
	}
	if link.Href == "" {
		return nil, fmt.Errorf("download %s: empty href", id)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link.Href, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: unexpected status %d", id, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", id, err)
	}
	if int64(len(data)) > maxDownloadBytes {
		return nil, fmt.Errorf("download %s: exceeds %d byte limit", id, maxDownloadBytes)
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "OAuth "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
