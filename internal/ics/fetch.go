package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"invcal/internal/config"
	appLog "invcal/internal/log"
	"invcal/internal/metrics"
)

// maxConcurrentFetches bounds parallel feed downloads.
const maxConcurrentFetches = 4

// Source is one subscribed service calendar.
type Source struct {
	// ID is the feed ID from config; imported reminders carry it as Source.
	ID   string
	Name string
	// URL is the ICS endpoint.
	URL string
}

// SourcesFromConfig maps configured feeds to sources.
func SourcesFromConfig(feeds []config.FeedConfig) []Source {
	out := make([]Source, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, Source{ID: f.ID, Name: f.Name, URL: f.URL})
	}
	return out
}

// FetchResult contains the outcome of fetching a single ICS source.
type FetchResult struct {
	Source    Source
	Body      []byte // ICS payload (either freshly fetched or from cache)
	FromCache bool   // served from the disk cache (304 or upstream failure)
}

// cacheEntry holds HTTP cache metadata for a single ICS URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher is responsible for fetching ICS feeds with HTTP caching
// (ETag / Last-Modified) and disk-backed cache.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	metrics  *metrics.Metrics
}

// NewFetcher creates a new ICS Fetcher.
//
// cacheDir is the base directory where per-URL cache subdirectories and
// metadata will be stored. Example: "/var/lib/invcal/feed-cache". m may be
// nil.
func NewFetcher(cacheDir string, m *metrics.Metrics) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/feed-cache"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
		metrics:  m,
	}
}

// FetchAll fetches all sources concurrently. Results keep the order of
// sources and only contain sources that produced a body (fresh or cached);
// failures are logged and combined into the returned error.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, error) {
	slots := make([]*FetchResult, len(sources))
	errs := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			res, err := f.FetchOne(gctx, src)
			if err != nil {
				f.metrics.FeedFetched(src.ID, "error")
				appLog.Error("ics fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
				errs[i] = fmt.Errorf("feed %s: %w", src.ID, err)
				// One failing feed must not cancel the others.
				return nil
			}
			if res.FromCache {
				f.metrics.FeedFetched(src.ID, "cached")
			} else {
				f.metrics.FeedFetched(src.ID, "ok")
			}
			slots[i] = &res
			return nil
		})
	}
	_ = g.Wait()

	results := make([]FetchResult, 0, len(sources))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results, multierr.Combine(errs...)
}

// maxBodyBytes caps a single feed download.
const maxBodyBytes = 8 << 20

// FetchOne fetches a single ICS source, honoring ETag and Last-Modified.
// It uses a disk cache under f.cacheDir keyed by a hash of the URL and falls
// back to the cached body when the server is unreachable or failing.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	cachePath := f.cachePathForURL(src.URL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)
	cached := func(reason error) (FetchResult, error) {
		if len(cachedBody) == 0 {
			return FetchResult{}, reason
		}
		appLog.Error("ics fetch failed, using cached body", reason, "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "text/calendar")
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return cached(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return cached(err)
		}
		newMeta := cacheEntry{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("ics cache save failed", err, "id", src.ID, "url", redactURL(src.URL))
		}
		appLog.Info("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("ics fetch not modified; using cache", "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil

	default:
		return cached(fmt.Errorf("unexpected status %s", resp.Status))
	}
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.ics"))
}

// saveCache writes the body before the metadata so the metadata never
// points at a missing body.
func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; feed URLs often embed private
// tokens in the path or query.
//
//	https://example.com/path/to/private.ics?token=abcd -> https://example.com/...(redacted)
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
