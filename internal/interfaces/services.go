// Package interfaces defines service contracts for Stockboard
package interfaces

import (
	"context"
	"time"

	"github.com/mcurrie/stockboard/internal/models"
)

// RankingService produces deterministic leaderboard views and classifies
// changes between two leaderboard states.
type RankingService interface {
	// Rank returns entries sorted descending by total value, ranks 1-based.
	// Ties keep the snapshot's insertion order (stable sort).
	Rank(snapshot *models.Snapshot) []models.RankedEntry

	// TopN returns the first n ranked entries, n clamped to [1, Len].
	TopN(snapshot *models.Snapshot, n int) []models.RankedEntry

	// HoldingsDiff returns symbols entering and leaving a user's holding set
	// between two records, as sets.
	HoldingsDiff(prev, curr models.PortfolioRecord) (gained, lost []string)

	// RankingsChanged reports whether the ordered top-n username lists
	// differ. A nil input on either side always reports true.
	RankingsChanged(prev, curr *models.Snapshot, n int) bool

	// DetectChanges builds the full change set between two snapshots.
	// Users absent from prev are excluded from the holdings diff entirely.
	DetectChanges(prev, curr *models.Snapshot, n int) *models.ChangeSet
}

// PerformanceService computes period performance between a reference
// (start-of-period) snapshot and the current one.
type PerformanceService interface {
	Compute(reference, current *models.Snapshot) *models.PerformanceReport
}

// ReportService is the reporting façade: it assembles notification payloads
// from ranking and performance outputs and hands them to the delivery client.
// Chart rendering failures degrade payloads to text-only; they never drop a
// notification.
type ReportService interface {
	// SendLeaderboardUpdate delivers the ranked top-N view with a reason tag
	// and, when possible, a value-over-time chart of the top-N users.
	SendLeaderboardUpdate(ctx context.Context, snapshot *models.Snapshot, reason models.Reason) error

	// SendHoldingsChanges delivers per-user bought/sold embeds for every user
	// whose holding set changed between prev and curr.
	SendHoldingsChanges(ctx context.Context, prev, curr *models.Snapshot) error

	// SendDailySummary computes and delivers the end-of-day performance
	// summary for the period bounded by the morning reference.
	SendDailySummary(ctx context.Context, morning, current *models.Snapshot, asOf time.Time) error

	// LeaderboardPayload builds the on-demand top-N response.
	LeaderboardPayload(ctx context.Context) (*models.Notification, error)

	// UserInfoPayload builds the on-demand user detail response with a
	// history chart. Unknown users yield a descriptive error payload.
	UserInfoPayload(ctx context.Context, username string) (*models.Notification, error)

	// UsernameCandidates returns autocomplete suggestions for a partial
	// username, case-insensitive, capped by the implementation.
	UsernameCandidates(ctx context.Context, partial string) ([]string, error)
}
