// Package alertcache persists fetched alert lists on disk, one JSON file
// per reporting window.
//
// DESIGN: The cache key is a pure function of the window bounds: the md5
// of the two RFC3339 timestamps joined with "_". Entries are written once
// and never invalidated; a file's presence alone short-circuits the
// network fetch. Only fully-completed fetches may be stored, which keeps
// the presence check sound.
package alertcache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/mackerelops/alert-report/internal/logging"
	"github.com/mackerelops/alert-report/internal/mackerel"
	"github.com/mackerelops/alert-report/internal/timewindow"
)

// Cache is a flat-file alert cache rooted at a single directory.
type Cache struct {
	dir    string
	logger *logging.Logger
}

// New creates a Cache rooted at dir. The directory is created lazily on
// the first Store.
func New(dir string, logger *logging.Logger) *Cache {
	return &Cache{dir: dir, logger: logger}
}

// Key derives the cache key for a window. Deterministic: the same bounds
// always map to the same key. md5 is used for keying only, not integrity.
func Key(w timewindow.Window) string {
	input := w.Start.Format(time.RFC3339) + "_" + w.End.Format(time.RFC3339)
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}

// Path returns the on-disk location of the entry for a window.
func (c *Cache) Path(w timewindow.Window) string {
	return filepath.Join(c.dir, "alerts_"+Key(w)+".json")
}

// Lookup returns the cached alert list for a window. The second return
// is false when no entry exists. A corrupt entry is treated as a miss so
// a damaged file degrades to a refetch instead of failing the run.
func (c *Cache) Lookup(w timewindow.Window) ([]mackerel.Alert, bool, error) {
	path := c.Path(w)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache file %s: %w", path, err)
	}

	raw := gjson.GetBytes(data, "alerts")
	if !raw.Exists() || !raw.IsArray() {
		c.logger.Warn().Str("path", path).Msg("cache_entry_corrupt")
		return nil, false, nil
	}

	var alerts []mackerel.Alert
	if err := json.Unmarshal([]byte(raw.Raw), &alerts); err != nil {
		c.logger.Warn().Str("path", path).Err(err).Msg("cache_entry_corrupt")
		return nil, false, nil
	}

	c.logger.Info().Str("path", path).Int("alerts", len(alerts)).Msg("cache_hit")
	return alerts, true, nil
}

// Store persists a completed alert list for a window, overwriting any
// existing entry.
func (c *Cache) Store(w timewindow.Window, alerts []mackerel.Alert) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache dir %s: %w", c.dir, err)
	}

	rawAlerts, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("failed to encode alerts: %w", err)
	}

	doc := []byte(`{}`)
	doc, _ = sjson.SetBytes(doc, "from", w.Start.Format(time.RFC3339))
	doc, _ = sjson.SetBytes(doc, "to", w.End.Format(time.RFC3339))
	doc, _ = sjson.SetBytes(doc, "fetchedAt", time.Now().Format(time.RFC3339))
	doc, err = sjson.SetRawBytes(doc, "alerts", rawAlerts)
	if err != nil {
		return fmt.Errorf("failed to build cache entry: %w", err)
	}

	path := c.Path(w)
	if err := os.WriteFile(path, doc, 0644); err != nil {
		return fmt.Errorf("failed to write cache file %s: %w", path, err)
	}

	c.logger.Info().Str("path", path).Int("alerts", len(alerts)).Msg("cache_store")
	return nil
}
