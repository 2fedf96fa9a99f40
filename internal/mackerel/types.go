// Package mackerel - types.go defines the wire types for the Mackerel API.
//
// Fields mirror the JSON the API returns; both types are read-only
// snapshots and are never mutated after decoding.
package mackerel

// Monitor is a monitor definition from /api/v0/monitors.
// URL and Service are only populated for the monitor types that carry
// them (external checks, service metrics); they decode to "" otherwise.
type Monitor struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name,omitempty"`
	URL     string `json:"url,omitempty"`
	Service string `json:"service,omitempty"`
}

// Alert is an alert record from /api/v0/alerts. OpenedAt and ClosedAt
// are unix epoch seconds; ClosedAt is 0 while the alert is still open
// (the API omits the field until the alert closes).
type Alert struct {
	ID        string `json:"id"`
	Status    string `json:"status,omitempty"`
	MonitorID string `json:"monitorId"`
	Type      string `json:"type"`
	OpenedAt  int64  `json:"openedAt"`
	ClosedAt  int64  `json:"closedAt,omitempty"`
}

// TypeExternal is the alert category produced by external URL checks;
// the report keeps only alerts of this type.
const TypeExternal = "external"

// Closed reports whether the alert has a close time.
func (a Alert) Closed() bool { return a.ClosedAt != 0 }
