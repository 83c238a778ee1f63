// Package models defines data structures for Stockboard
package models

import "time"

// Reason tags why a notification fired.
type Reason string

const (
	ReasonPeriodOpen      Reason = "period-open"
	ReasonPeriodClose     Reason = "period-close"
	ReasonRankingsChanged Reason = "rankings-changed"
	ReasonSilenceTimeout  Reason = "silence-timeout"
)

// FooterText returns the human-readable footer for a reason tag.
func (r Reason) FooterText() string {
	switch r {
	case ReasonPeriodOpen:
		return "Market Open Update"
	case ReasonPeriodClose:
		return "Market Close Update"
	case ReasonRankingsChanged:
		return "Rankings Changed"
	case ReasonSilenceTimeout:
		return "Periodic Update"
	default:
		return string(r)
	}
}

// ChangeSet classifies what changed between two leaderboard states.
// Derived and ephemeral.
type ChangeSet struct {
	Gained         map[string][]string // per user, symbols entering the holding set
	Lost           map[string][]string // per user, symbols leaving the holding set
	RankingChanged bool
	PreviousTopN   []string
	CurrentTopN    []string
}

// HasHoldingsChanges reports whether any user gained or lost a position.
func (c *ChangeSet) HasHoldingsChanges() bool {
	return len(c.Gained) > 0 || len(c.Lost) > 0
}

// UserPerformance holds one user's metrics for a reporting period.
type UserPerformance struct {
	Username      string  `json:"username"`
	ChangeAmount  float64 `json:"change_amount"`
	ChangePercent float64 `json:"change_percent"`
	TradeCount    int     `json:"trade_count"`
}

// PerformanceReport aggregates per-user performance between a reference and a
// current snapshot. Only users present in both inputs appear.
type PerformanceReport struct {
	// Performance is sorted descending by ChangePercent.
	Performance []UserPerformance `json:"performance"`
	TotalTrades int               `json:"total_trades"`
	BiggestGain *UserPerformance  `json:"biggest_gain,omitempty"`
	BiggestLoss *UserPerformance  `json:"biggest_loss,omitempty"`
	// MostActive is the top traders by TradeCount, descending.
	MostActive []UserPerformance `json:"most_active"`
}

// TopPerformers returns the first n entries of the percent-sorted list.
func (p *PerformanceReport) TopPerformers(n int) []UserPerformance {
	if n > len(p.Performance) {
		n = len(p.Performance)
	}
	return p.Performance[:n]
}

// BottomPerformers returns the last n entries of the percent-sorted list.
// With fewer than 2n users this overlaps TopPerformers; callers accept the
// visual overlap on small populations.
func (p *PerformanceReport) BottomPerformers(n int) []UserPerformance {
	if n > len(p.Performance) {
		n = len(p.Performance)
	}
	return p.Performance[len(p.Performance)-n:]
}

// NotificationField is one labelled section of a notification payload.
type NotificationField struct {
	Name   string
	Value  string
	Inline bool
}

// Notification is an assembled payload handed to the chat delivery client.
// Chart is optional: rendering failures degrade to a text-only payload.
type Notification struct {
	Reason      Reason
	Title       string
	Description string
	Fields      []NotificationField
	Footer      string
	Timestamp   time.Time
	Chart       []byte
	ChartName   string
}

// TriggerMarker is the scheduler's persisted state. It survives restarts so a
// re-evaluated tick neither re-fires a delivered notification nor misses one.
type TriggerMarker struct {
	LastFiredAt time.Time `json:"last_fired_at"`
	// MorningCapturedOn is the local date ("2006-01-02") the period-open
	// reference was last captured, guarding the open alarm to at-most-once
	// per day across restarts.
	MorningCapturedOn string `json:"morning_captured_on"`
}

// SeriesPoint is one (timestamp, value) observation of a time series.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// NamedSeries is a labelled time series for charting.
type NamedSeries struct {
	Name   string
	Points []SeriesPoint
}

// ChartMarker annotates a single point on a chart (e.g. a high or low).
type ChartMarker struct {
	Label string
	Point SeriesPoint
}
