package kb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kabinet-ai/kabinet/internal/backoff"
	"github.com/kabinet-ai/kabinet/internal/chunk"
	"github.com/kabinet-ai/kabinet/internal/embed"
	"github.com/kabinet-ai/kabinet/internal/extract"
	"github.com/kabinet-ai/kabinet/internal/remote"
	"github.com/kabinet-ai/kabinet/internal/store"
)

// Catalog defines the storage operations the Indexer needs. Following Go
// best practices: interfaces are defined by the consumer, not the provider.
type Catalog interface {
	ListDocuments(ctx context.Context, activeOnly bool) ([]store.Document, error)
	SetDocumentActive(ctx context.Context, id uuid.UUID, active bool) error
	ReplaceDocument(ctx context.Context, arg store.UpsertDocumentParams, chunks []store.NewChunk) (store.Document, error)
}

// IndexerConfig controls a sync run.
type IndexerConfig struct {
	// Root is the remote directory holding the corpus.
	Root string
	// Recursive walks subdirectories of Root.
	Recursive bool
	// ChunkSize and ChunkOverlap are rune counts for splitting.
	ChunkSize    int
	ChunkOverlap int
	// Workers bounds concurrent per-file pipelines.
	Workers int
	// Passphrases maps document paths to decryption passphrases.
	Passphrases map[string]string
	// Retry governs download retries on transient failures.
	Retry backoff.Config
	// LockPath, when set, is a lock file serializing sync across processes
	// sharing the same catalog (serve plus a CLI sync, for example).
	LockPath string
}

// FileFailure records one file that could not be indexed.
type FileFailure struct {
	Path string
	Err  error
}

// SyncReport summarizes one sync run.
type SyncReport struct {
	Indexed     int
	Unchanged   int
	Reactivated int
	Deactivated int
	Failures    []FileFailure
	Duration    time.Duration
}

// Indexer reconciles the chunk catalog with the remote corpus. A file is
// re-indexed only when its fingerprint changed; files that disappeared from
// the remote are deactivated, not deleted.
//
// Only one Sync may run at a time per Indexer.
type Indexer struct {
	source   remote.Source
	extracts *extract.Registry
	embedder embed.Embedder
	catalog  Catalog
	cfg      IndexerConfig
	logger   *slog.Logger

	syncMu sync.Mutex
}

// NewIndexer creates an Indexer. A nil logger falls back to slog.Default.
func NewIndexer(source remote.Source, extracts *extract.Registry, embedder embed.Embedder, catalog Catalog, cfg IndexerConfig, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Indexer{
		source:   source,
		extracts: extracts,
		embedder: embedder,
		catalog:  catalog,
		cfg:      cfg,
		logger:   logger,
	}
}

// Sync brings the catalog in line with the remote corpus and reports what
// changed. Per-file failures are isolated in the report; Sync itself fails
// only when listing or the context fails. Returns ErrSyncInProgress if
// another sync holds the lock.
func (ix *Indexer) Sync(ctx context.Context) (*SyncReport, error) {
	if !ix.syncMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer ix.syncMu.Unlock()

	if ix.cfg.LockPath != "" {
		fl := flock.New(ix.cfg.LockPath)
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire sync lock %s: %w", ix.cfg.LockPath, err)
		}
		if !locked {
			return nil, ErrSyncInProgress
		}
		defer func() { _ = fl.Unlock() }()
	}

	start := time.Now()
	report := &SyncReport{}

	files, err := ix.source.List(ctx, ix.cfg.Root, ix.cfg.Recursive)
	if err != nil {
		return nil, fmt.Errorf("list remote corpus: %w", err)
	}

	known, err := ix.catalog.ListDocuments(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	knownByPath := make(map[string]store.Document, len(known))
	for _, d := range known {
		knownByPath[d.Path] = d
	}

	var toIndex []remote.File
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if f.MediaType == "" {
			continue // unsupported extension
		}
		seen[f.Path] = true

		prev, ok := knownByPath[f.Path]
		switch {
		case !ok || prev.Fingerprint != f.Fingerprint:
			toIndex = append(toIndex, f)
		case !prev.Active:
			// Content unchanged but the file came back.
			if err := ix.catalog.SetDocumentActive(ctx, prev.ID, true); err != nil {
				report.Failures = append(report.Failures, FileFailure{Path: f.Path, Err: err})
				continue
			}
			report.Reactivated++
		default:
			report.Unchanged++
		}
	}

	// Files gone from the remote are deactivated so search stops seeing
	// them, but their chunks survive in case they return.
	for _, d := range known {
		if d.Active && !seen[d.Path] {
			if err := ix.catalog.SetDocumentActive(ctx, d.ID, false); err != nil {
				report.Failures = append(report.Failures, FileFailure{Path: d.Path, Err: err})
				continue
			}
			report.Deactivated++
		}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(ix.cfg.Workers)
	for _, f := range toIndex {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := ix.indexFile(ctx, f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				ix.logger.Warn("failed to index file", "path", f.Path, "error", err)
				report.Failures = append(report.Failures, FileFailure{Path: f.Path, Err: err})
				return nil
			}
			report.Indexed++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Path < report.Failures[j].Path
	})
	report.Duration = time.Since(start)

	ix.logger.Info("sync complete",
		"indexed", report.Indexed,
		"unchanged", report.Unchanged,
		"reactivated", report.Reactivated,
		"deactivated", report.Deactivated,
		"failed", len(report.Failures),
		"duration", report.Duration)
	return report, nil
}

// indexFile runs the full pipeline for one file: download, extract, chunk,
// embed, and atomically replace the document's chunk set.
func (ix *Indexer) indexFile(ctx context.Context, f remote.File) error {
	var data []byte
	err := backoff.Retry(ctx, ix.cfg.Retry, func(ctx context.Context) error {
		var derr error
		data, derr = ix.source.Download(ctx, f.ID)
		return derr
	})
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	opts := extract.Options{Passphrase: ix.cfg.Passphrases[f.Path]}
	fragments, err := ix.extracts.Extract(ctx, f.Path, f.MediaType, data, opts)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	text, spans := chunk.Join(fragments)
	passages := chunk.Split(text, ix.cfg.ChunkSize, ix.cfg.ChunkOverlap)

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	var vectors [][]float32
	if len(texts) > 0 {
		vectors, err = ix.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
	}

	chunks := make([]store.NewChunk, len(passages))
	for i, p := range passages {
		loc, err := encodeLocations(chunk.Locations(p, spans))
		if err != nil {
			return fmt.Errorf("encode locations: %w", err)
		}
		chunks[i] = store.NewChunk{
			Ordinal:   p.Ordinal,
			Text:      p.Text,
			Location:  loc,
			Embedding: vectors[i],
		}
	}

	// The fingerprint commits in the same transaction as the chunks: a
	// failed replace leaves the previous version in place and still stale,
	// so the next sync retries it.
	if _, err := ix.catalog.ReplaceDocument(ctx, store.UpsertDocumentParams{
		Path:        f.Path,
		Fingerprint: f.Fingerprint,
		MediaType:   f.MediaType,
		PageCount:   countPages(fragments),
		ByteSize:    f.Size,
	}, chunks); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}

	ix.logger.Debug("indexed file", "path", f.Path, "chunks", len(chunks))
	return nil
}

// IsAuthFailure reports whether a file failed because it is encrypted and
// no valid passphrase was configured.
func IsAuthFailure(err error) bool {
	return errors.Is(err, extract.ErrAuthRequired) || errors.Is(err, extract.ErrAuthInvalid)
}

func countPages(fragments []extract.Fragment) int {
	pages := 0
	for _, f := range fragments {
		if f.Loc.Page > pages {
			pages = f.Loc.Page
		}
	}
	return pages
}

// chunkLocations is the JSON shape stored in the chunks.location column.
type chunkLocations struct {
	Locations []extract.Location `json:"locations,omitempty"`
}

func encodeLocations(locs []extract.Location) (json.RawMessage, error) {
	return json.Marshal(chunkLocations{Locations: locs})
}
