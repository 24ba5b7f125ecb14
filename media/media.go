// Package media extracts image references from harvested profile HTML
// and downloads them to disk.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// Config configures the media fetcher.
type Config struct {
	// Dir is the directory downloaded files are written to. Created if
	// absent.
	Dir string
	// Timeout bounds a single download. Default: 30s.
	Timeout time.Duration
	// UserAgent sent with requests.
	UserAgent string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "qharvest/1.0"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fetcher downloads media files referenced by harvested profiles.
type Fetcher struct {
	cfg    Config
	client *resty.Client
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)
	return &Fetcher{cfg: cfg, client: client}
}

// Refs extracts image URLs from a fragment of profile HTML, scoped to the
// given container selectors. Lazily-loaded images carry the real URL in
// data-src instead of src.
func Refs(html string, containers ...string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("media: parse html: %w", err)
	}

	scope := "img"
	if len(containers) > 0 {
		parts := make([]string, len(containers))
		for i, c := range containers {
			parts[i] = c + " img"
		}
		scope = strings.Join(parts, ", ")
	}

	var refs []string
	seen := make(map[string]bool)
	doc.Find(scope).Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			src, _ = sel.Attr("data-src")
		}
		if src == "" || seen[src] {
			return
		}
		seen[src] = true
		refs = append(refs, src)
	})
	return refs, nil
}

// SaveAll downloads every URL into the configured directory, naming each
// file {subjectID}_{originalName}. A failed individual download is logged
// and skipped; the count of files actually written is returned.
func (f *Fetcher) SaveAll(ctx context.Context, subjectID string, urls []string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(f.cfg.Dir, 0o755); err != nil {
		return 0, fmt.Errorf("media: mkdir %s: %w", f.cfg.Dir, err)
	}

	saved := 0
	for _, raw := range urls {
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		if err := f.save(ctx, subjectID, raw); err != nil {
			f.cfg.Logger.Warn("media: download failed", "subject", subjectID, "url", raw, "error", err)
			continue
		}
		saved++
	}
	return saved, nil
}

func (f *Fetcher) save(ctx context.Context, subjectID, rawURL string) error {
	name, err := FileName(subjectID, rawURL)
	if err != nil {
		return err
	}

	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return fmt.Errorf("media: fetch: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("media: fetch: status %d", resp.StatusCode())
	}

	dst := filepath.Join(f.cfg.Dir, name)
	if err := os.WriteFile(dst, resp.Body(), 0o644); err != nil {
		return fmt.Errorf("media: write %s: %w", dst, err)
	}
	return nil
}

// FileName derives the on-disk name for a media URL:
// {subjectID}_{last path segment}.
func FileName(subjectID, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("media: parse url %q: %w", rawURL, err)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return "", fmt.Errorf("media: url %q has no file name", rawURL)
	}
	return subjectID + "_" + base, nil
}
