// Package fetch drives the paginated alert retrieval for one window.
//
// DESIGN: The fetcher consults the on-disk cache before touching the
// network, walks the cursor-paginated alert listing one page at a time,
// and absorbs transport failures: an error mid-pagination ends the loop
// and whatever was accumulated is returned, marked partial. Partial
// results are never cached — only a naturally terminated loop is
// persisted, so a cache hit is always a complete fetch.
//
// TERMINATION: besides the API's own "no nextId" signal, the loop stops
// when the last alert of the just-fetched page opened before the window
// start. The API returns alerts in descending openedAt order, so
// crossing the lower bound means no further page can be relevant. The
// final page may carry trailing out-of-window alerts; they are not
// filtered here.
package fetch

import (
	"context"

	"github.com/mackerelops/alert-report/internal/logging"
	"github.com/mackerelops/alert-report/internal/mackerel"
	"github.com/mackerelops/alert-report/internal/timewindow"
)

// DefaultPageLimit is the page size requested from the alerts API.
const DefaultPageLimit = 100

// AlertLister lists one page of alerts. *mackerel.Client implements it.
type AlertLister interface {
	FindAlerts(ctx context.Context, p mackerel.AlertsParams) (*mackerel.AlertsPage, error)
}

// AlertCache is the window-keyed cache consulted before fetching.
// *alertcache.Cache implements it.
type AlertCache interface {
	Lookup(w timewindow.Window) ([]mackerel.Alert, bool, error)
	Store(w timewindow.Window, alerts []mackerel.Alert) error
}

// Result is the outcome of one fetch. Complete is false when a transport
// error cut the pagination short; callers still get everything collected
// up to that point.
type Result struct {
	Alerts    []mackerel.Alert
	Complete  bool
	FromCache bool
	Pages     int
}

// Fetcher retrieves all alerts for a window, cache first.
type Fetcher struct {
	client AlertLister
	cache  AlertCache
	logger *logging.Logger
	limit  int
}

// New creates a Fetcher. limit <= 0 selects DefaultPageLimit.
func New(client AlertLister, cache AlertCache, logger *logging.Logger, limit int) *Fetcher {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	return &Fetcher{client: client, cache: cache, logger: logger, limit: limit}
}

// FetchAlerts returns every alert the API reports for the window, in the
// API-provided order. See the package comment for the termination and
// failure behavior.
func (f *Fetcher) FetchAlerts(ctx context.Context, w timewindow.Window) Result {
	if cached, ok, err := f.cache.Lookup(w); err != nil {
		f.logger.Warn().Err(err).Msg("cache_lookup_failed")
	} else if ok {
		return Result{Alerts: cached, Complete: true, FromCache: true}
	}

	var (
		all    []mackerel.Alert
		nextID string
		pages  int
	)
	complete := true

	for {
		page, err := f.client.FindAlerts(ctx, mackerel.AlertsParams{
			From:   w.FromUnix(),
			To:     w.ToUnix(),
			Limit:  f.limit,
			NextID: nextID,
		})
		if err != nil {
			f.logger.Error().Err(err).Int("page", pages+1).Msg("alert_fetch_failed")
			complete = false
			break
		}

		pages++
		all = append(all, page.Alerts...)
		f.logger.Info().Int("page", pages).Int("alerts", len(page.Alerts)).Msg("alerts_page_fetched")

		// An empty page cannot advance the cursor heuristic.
		if len(page.Alerts) == 0 {
			break
		}
		if page.NextID == "" {
			break
		}
		if page.Alerts[len(page.Alerts)-1].OpenedAt < w.FromUnix() {
			break
		}
		nextID = page.NextID
	}

	if complete {
		if err := f.cache.Store(w, all); err != nil {
			f.logger.Warn().Err(err).Msg("cache_store_failed")
		}
	}

	return Result{Alerts: all, Complete: complete, Pages: pages}
}
