package tldconfig

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/atomic"
)

// DefaultTTL is how long a fetched directory document stays fresh.
const DefaultTTL = 5 * time.Minute

// Source supplies directory documents.
type Source interface {
	Fetch(ctx context.Context) (*Document, error)
	Name() string
}

// FileSource reads the directory from a local JSON file.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(ctx context.Context) (*Document, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("tldconfig: read %s: %w", s.Path, err)
	}
	return ParseDocument(data)
}

func (s FileSource) Name() string { return "file:" + s.Path }

// RemoteSource fetches the directory from an HTTP endpoint, retrying with
// exponential backoff. Requests carry a bounded timeout.
type RemoteSource struct {
	URL        string
	Client     *http.Client
	MaxRetries uint64
}

func (s RemoteSource) Fetch(ctx context.Context) (*Document, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	retries := s.MaxRetries
	if retries == 0 {
		retries = 2
	}

	var doc *Document
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("tldconfig: remote fetch failed: %s", resp.Status)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		doc, err = ParseDocument(body)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s RemoteSource) Name() string { return "remote:" + s.URL }

type snapshot struct {
	doc       *Document
	fetchedAt time.Time
}

// Directory serves the current TLD directory document. The cached snapshot
// is replaced atomically; concurrent readers see either the old or the new
// document, never a partial one. When the primary source fails on refresh,
// the previous snapshot (or the fallback source) keeps serving.
type Directory struct {
	source   Source
	fallback Source
	ttl      time.Duration
	log      *slog.Logger

	current atomic.Pointer[snapshot]
}

// NewDirectory loads the initial document from source, trying fallback if
// the source fails. ttl of zero disables expiry (static config).
func NewDirectory(ctx context.Context, source, fallback Source, ttl time.Duration, log *slog.Logger) (*Directory, error) {
	d := &Directory{source: source, fallback: fallback, ttl: ttl, log: log}
	doc, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	d.current.Store(&snapshot{doc: doc, fetchedAt: time.Now()})
	return d, nil
}

func (d *Directory) load(ctx context.Context) (*Document, error) {
	doc, err := d.source.Fetch(ctx)
	if err == nil {
		return doc, nil
	}
	if d.fallback == nil {
		return nil, err
	}
	d.log.Warn("TLD directory source failed, using fallback",
		"source", d.source.Name(), "fallback", d.fallback.Name(), "err", err)
	return d.fallback.Fetch(ctx)
}

// Current returns the directory document, refreshing it first when the TTL
// has lapsed. A failed refresh keeps serving the stale snapshot.
func (d *Directory) Current(ctx context.Context) *Document {
	snap := d.current.Load()
	if d.ttl > 0 && time.Since(snap.fetchedAt) > d.ttl {
		if doc, err := d.load(ctx); err == nil {
			next := &snapshot{doc: doc, fetchedAt: time.Now()}
			d.current.Store(next)
			return doc
		} else {
			d.log.Warn("TLD directory refresh failed, serving cached copy",
				"age", time.Since(snap.fetchedAt), "err", err)
		}
	}
	return snap.doc
}

// Refresh forces a reload from the source, replacing the snapshot on
// success.
func (d *Directory) Refresh(ctx context.Context) error {
	doc, err := d.load(ctx)
	if err != nil {
		return err
	}
	d.current.Store(&snapshot{doc: doc, fetchedAt: time.Now()})
	return nil
}

// Invalidate expires the snapshot so the next Current call refetches.
func (d *Directory) Invalidate() {
	snap := d.current.Load()
	d.current.Store(&snapshot{doc: snap.doc, fetchedAt: time.Time{}})
}
