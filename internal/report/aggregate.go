// Package report turns raw alerts into the monthly external-alert CSV.
//
// FILES:
//   - aggregate.go: filter, monitor join, derived fields, ordering
//   - csv.go:       fixed-schema CSV serialization
package report

import (
	"sort"
	"time"

	"github.com/mackerelops/alert-report/internal/mackerel"
)

// timeLayout is the display format for the zone-converted timestamps,
// e.g. "2024-02-01 09:00:00 JST".
const timeLayout = "2006-01-02 15:04:05 MST"

// Row is one line of the report. Duration is nil while the alert is
// still open; ClosedAt is 0 and ClosedAtLocal empty in that case. Rows
// are derived once and never mutated.
type Row struct {
	ID            string
	URL           string
	Service       string
	OpenedAt      int64
	ClosedAt      int64
	Duration      *int64
	OpenedAtLocal string
	ClosedAtLocal string
}

// Aggregate filters alerts to the external-check category, joins each to
// its monitor, computes derived fields, and returns rows sorted ascending
// by OpenedAt. The sort is stable: ties keep the input order. An alert
// whose monitor is missing from the directory joins to blank URL/Service.
func Aggregate(alerts []mackerel.Alert, monitors []mackerel.Monitor, loc *time.Location) []Row {
	byID := make(map[string]mackerel.Monitor, len(monitors))
	for _, m := range monitors {
		// First match wins should an id ever repeat.
		if _, ok := byID[m.ID]; !ok {
			byID[m.ID] = m
		}
	}

	var rows []Row
	for _, a := range alerts {
		if a.Type != mackerel.TypeExternal {
			continue
		}

		m := byID[a.MonitorID]
		row := Row{
			ID:            a.ID,
			URL:           m.URL,
			Service:       m.Service,
			OpenedAt:      a.OpenedAt,
			ClosedAt:      a.ClosedAt,
			OpenedAtLocal: formatLocal(a.OpenedAt, loc),
		}
		if a.Closed() {
			d := a.ClosedAt - a.OpenedAt
			row.Duration = &d
			row.ClosedAtLocal = formatLocal(a.ClosedAt, loc)
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].OpenedAt < rows[j].OpenedAt
	})
	return rows
}

func formatLocal(unix int64, loc *time.Location) string {
	return time.Unix(unix, 0).In(loc).Format(timeLayout)
}
