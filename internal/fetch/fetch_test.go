package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mackerelops/alert-report/internal/alertcache"
	"github.com/mackerelops/alert-report/internal/logging"
	"github.com/mackerelops/alert-report/internal/mackerel"
	"github.com/mackerelops/alert-report/internal/timewindow"
)

// pagedLister serves a fixed sequence of pages, or an error at a given
// page index.
type pagedLister struct {
	pages   []*mackerel.AlertsPage
	failAt  int // 1-based page index to fail at; 0 = never
	calls   int
	cursors []string
}

func (p *pagedLister) FindAlerts(_ context.Context, params mackerel.AlertsParams) (*mackerel.AlertsPage, error) {
	p.calls++
	p.cursors = append(p.cursors, params.NextID)
	if p.failAt != 0 && p.calls == p.failAt {
		return nil, errors.New("connection reset")
	}
	if p.calls > len(p.pages) {
		return &mackerel.AlertsPage{}, nil
	}
	return p.pages[p.calls-1], nil
}

func window(t *testing.T) timewindow.Window {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return timewindow.PreviousMonth(time.Date(2024, time.March, 10, 0, 0, 0, 0, loc))
}

// makePage builds a page of n alerts with descending openedAt starting
// at top.
func makePage(n int, top int64, nextID string) *mackerel.AlertsPage {
	page := &mackerel.AlertsPage{NextID: nextID}
	for i := 0; i < n; i++ {
		page.Alerts = append(page.Alerts, mackerel.Alert{
			ID:       fmt.Sprintf("a%d-%d", top, i),
			Type:     "external",
			OpenedAt: top - int64(i),
		})
	}
	return page
}

// TestFetchAlerts_PaginatesUntilNoCursor verifies 250 alerts at page
// size 100 cost exactly three requests.
func TestFetchAlerts_PaginatesUntilNoCursor(t *testing.T) {
	w := window(t)
	base := w.FromUnix() + 10_000
	lister := &pagedLister{pages: []*mackerel.AlertsPage{
		makePage(100, base, "c1"),
		makePage(100, base-200, "c2"),
		makePage(50, base-400, ""),
	}}
	f := New(lister, alertcache.New(t.TempDir(), logging.Nop()), logging.Nop(), 100)

	res := f.FetchAlerts(context.Background(), w)

	assert.Equal(t, 3, lister.calls)
	assert.Equal(t, 3, res.Pages)
	assert.Len(t, res.Alerts, 250)
	assert.True(t, res.Complete)
	assert.False(t, res.FromCache)
	assert.Equal(t, []string{"", "c1", "c2"}, lister.cursors)
}

// TestFetchAlerts_StopsBelowWindowStart exercises the descending-order
// heuristic: a page whose last alert opened before the window start ends
// the loop even though a cursor was returned.
func TestFetchAlerts_StopsBelowWindowStart(t *testing.T) {
	w := window(t)
	lister := &pagedLister{pages: []*mackerel.AlertsPage{
		makePage(100, w.FromUnix()+50, "c1"), // tail dips below the start
		makePage(100, w.FromUnix()-200, "c2"),
	}}
	f := New(lister, alertcache.New(t.TempDir(), logging.Nop()), logging.Nop(), 100)

	res := f.FetchAlerts(context.Background(), w)

	assert.Equal(t, 1, lister.calls)
	assert.True(t, res.Complete)
	// Trailing out-of-window alerts on the final page are kept as-is.
	assert.Len(t, res.Alerts, 100)
}

// TestFetchAlerts_PartialOnTransportError returns what was accumulated
// and marks the result partial; nothing is cached.
func TestFetchAlerts_PartialOnTransportError(t *testing.T) {
	w := window(t)
	base := w.FromUnix() + 10_000
	cache := alertcache.New(t.TempDir(), logging.Nop())
	lister := &pagedLister{
		pages:  []*mackerel.AlertsPage{makePage(100, base, "c1")},
		failAt: 2,
	}
	f := New(lister, cache, logging.Nop(), 100)

	res := f.FetchAlerts(context.Background(), w)

	assert.False(t, res.Complete)
	assert.Len(t, res.Alerts, 100)
	assert.Equal(t, 1, res.Pages)

	_, ok, err := cache.Lookup(w)
	require.NoError(t, err)
	assert.False(t, ok, "partial results must not be cached")
}

// TestFetchAlerts_CacheHitSkipsNetwork serves the second run from disk.
func TestFetchAlerts_CacheHitSkipsNetwork(t *testing.T) {
	w := window(t)
	base := w.FromUnix() + 10_000
	cache := alertcache.New(t.TempDir(), logging.Nop())
	lister := &pagedLister{pages: []*mackerel.AlertsPage{makePage(30, base, "")}}
	f := New(lister, cache, logging.Nop(), 100)

	first := f.FetchAlerts(context.Background(), w)
	require.True(t, first.Complete)
	require.Equal(t, 1, lister.calls)

	second := f.FetchAlerts(context.Background(), w)
	assert.Equal(t, 1, lister.calls, "cache hit must not touch the network")
	assert.True(t, second.FromCache)
	assert.True(t, second.Complete)
	assert.Equal(t, first.Alerts, second.Alerts)
}

// TestFetchAlerts_EmptyFirstPage terminates immediately and caches the
// empty list.
func TestFetchAlerts_EmptyFirstPage(t *testing.T) {
	w := window(t)
	cache := alertcache.New(t.TempDir(), logging.Nop())
	lister := &pagedLister{pages: []*mackerel.AlertsPage{{NextID: "dangling"}}}
	f := New(lister, cache, logging.Nop(), 100)

	res := f.FetchAlerts(context.Background(), w)

	assert.Equal(t, 1, lister.calls)
	assert.True(t, res.Complete)
	assert.Empty(t, res.Alerts)

	_, ok, err := cache.Lookup(w)
	require.NoError(t, err)
	assert.True(t, ok, "a naturally terminated empty fetch is cacheable")
}

// TestFetchAlerts_ErrorOnFirstPage yields an empty partial result.
func TestFetchAlerts_ErrorOnFirstPage(t *testing.T) {
	w := window(t)
	lister := &pagedLister{failAt: 1}
	f := New(lister, alertcache.New(t.TempDir(), logging.Nop()), logging.Nop(), 100)

	res := f.FetchAlerts(context.Background(), w)

	assert.False(t, res.Complete)
	assert.Empty(t, res.Alerts)
	assert.Zero(t, res.Pages)
}
