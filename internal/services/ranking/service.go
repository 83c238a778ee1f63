// Package ranking produces leaderboard views and classifies changes between
// two leaderboard states.
package ranking

import (
	"sort"

	"github.com/mcurrie/stockboard/internal/common"
	"github.com/mcurrie/stockboard/internal/models"
)

// Service implements interfaces.RankingService.
type Service struct {
	logger *common.Logger
}

// NewService creates a ranking service.
func NewService(logger *common.Logger) *Service {
	return &Service{logger: logger}
}

// Rank returns entries sorted descending by total value with 1-based ranks.
// The sort is stable: equal values keep the snapshot's insertion order, so
// repeated invocations on the same input yield identical output.
func (s *Service) Rank(snapshot *models.Snapshot) []models.RankedEntry {
	if snapshot == nil {
		return nil
	}

	usernames := snapshot.Usernames()
	entries := make([]models.RankedEntry, 0, len(usernames))
	for _, username := range usernames {
		record, _ := snapshot.Get(username)
		entries = append(entries, models.RankedEntry{
			Username:   username,
			TotalValue: record.TotalValue,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalValue > entries[j].TotalValue
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// TopN returns the first n ranked entries, n clamped to [1, Len].
func (s *Service) TopN(snapshot *models.Snapshot, n int) []models.RankedEntry {
	ranked := s.Rank(snapshot)
	if len(ranked) == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// HoldingsDiff returns symbols entering and leaving the holding set between
// two records. Membership is by set, not count: duplicate symbols within a
// record do not produce spurious differences.
func (s *Service) HoldingsDiff(prev, curr models.PortfolioRecord) (gained, lost []string) {
	prevSet := prev.Symbols()
	currSet := curr.Symbols()

	for _, h := range curr.Holdings {
		if !prevSet[h.Symbol] {
			gained = appendUnique(gained, h.Symbol)
		}
	}
	for _, h := range prev.Holdings {
		if !currSet[h.Symbol] {
			lost = appendUnique(lost, h.Symbol)
		}
	}
	return gained, lost
}

func appendUnique(list []string, symbol string) []string {
	for _, s := range list {
		if s == symbol {
			return list
		}
	}
	return append(list, symbol)
}

// RankingsChanged reports whether the ordered top-n username lists differ in
// membership or order. Absent data fails open: a nil snapshot on either side
// always reports a change so the caller never silently suppresses a first or
// recovering update.
func (s *Service) RankingsChanged(prev, curr *models.Snapshot, n int) bool {
	if prev == nil || curr == nil {
		return true
	}

	prevTop := s.TopN(prev, n)
	currTop := s.TopN(curr, n)

	if len(prevTop) != len(currTop) {
		return true
	}
	for i := range prevTop {
		if prevTop[i].Username != currTop[i].Username {
			return true
		}
	}
	return false
}

// DetectChanges builds the full change set between two snapshots. Users
// absent from prev are skipped entirely: a new user's first appearance is
// not reported as an all-gained position change.
func (s *Service) DetectChanges(prev, curr *models.Snapshot, n int) *models.ChangeSet {
	changes := &models.ChangeSet{
		Gained:         make(map[string][]string),
		Lost:           make(map[string][]string),
		RankingChanged: s.RankingsChanged(prev, curr, n),
	}

	if prev != nil {
		for _, e := range s.TopN(prev, n) {
			changes.PreviousTopN = append(changes.PreviousTopN, e.Username)
		}
	}
	if curr != nil {
		for _, e := range s.TopN(curr, n) {
			changes.CurrentTopN = append(changes.CurrentTopN, e.Username)
		}
	}

	if prev == nil || curr == nil {
		return changes
	}

	for _, username := range curr.Usernames() {
		prevRecord, ok := prev.Get(username)
		if !ok {
			continue
		}
		currRecord, _ := curr.Get(username)

		gained, lost := s.HoldingsDiff(prevRecord, currRecord)
		if len(gained) > 0 {
			changes.Gained[username] = gained
		}
		if len(lost) > 0 {
			changes.Lost[username] = lost
		}
	}

	return changes
}
