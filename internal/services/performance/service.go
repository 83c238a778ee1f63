// Package performance computes period performance metrics between a
// reference snapshot and the current leaderboard state.
package performance

import (
	"sort"

	"github.com/mcurrie/stockboard/internal/common"
	"github.com/mcurrie/stockboard/internal/models"
)

// Service implements interfaces.PerformanceService.
type Service struct {
	logger *common.Logger
}

// NewService creates a performance service.
func NewService(logger *common.Logger) *Service {
	return &Service{logger: logger}
}

const mostActiveLimit = 3

// Compute builds a PerformanceReport from a reference (start-of-period)
// snapshot and the current one.
//
// Only users present in both snapshots qualify; users on one side only are
// excluded from per-user stats and from the trade total. A trade is a symbol
// entering or leaving the holding set; a quantity change on a held symbol
// does not count. A zero reference value yields a zero percent change, not a
// division fault.
func (s *Service) Compute(reference, current *models.Snapshot) *models.PerformanceReport {
	report := &models.PerformanceReport{}
	if reference == nil || current == nil {
		return report
	}

	// Iterate in current insertion order so extreme and activity ties
	// resolve to the first-encountered user, deterministically.
	for _, username := range current.Usernames() {
		refRecord, ok := reference.Get(username)
		if !ok {
			continue
		}
		currRecord, _ := current.Get(username)

		changeAmount := currRecord.TotalValue - refRecord.TotalValue
		changePercent := 0.0
		if refRecord.TotalValue != 0 {
			changePercent = changeAmount / refRecord.TotalValue * 100
		}

		perf := models.UserPerformance{
			Username:      username,
			ChangeAmount:  changeAmount,
			ChangePercent: changePercent,
			TradeCount:    tradeCount(refRecord, currRecord),
		}

		report.Performance = append(report.Performance, perf)
		report.TotalTrades += perf.TradeCount

		if report.BiggestGain == nil || perf.ChangePercent > report.BiggestGain.ChangePercent {
			p := perf
			report.BiggestGain = &p
		}
		if report.BiggestLoss == nil || perf.ChangePercent < report.BiggestLoss.ChangePercent {
			p := perf
			report.BiggestLoss = &p
		}

		if perf.TradeCount > 0 {
			report.MostActive = append(report.MostActive, perf)
		}
	}

	sort.SliceStable(report.Performance, func(i, j int) bool {
		return report.Performance[i].ChangePercent > report.Performance[j].ChangePercent
	})

	sort.SliceStable(report.MostActive, func(i, j int) bool {
		return report.MostActive[i].TradeCount > report.MostActive[j].TradeCount
	})
	if len(report.MostActive) > mostActiveLimit {
		report.MostActive = report.MostActive[:mostActiveLimit]
	}

	return report
}

// tradeCount is the size of the symmetric difference of the two holding
// symbol sets: each opened-or-closed position counts once.
func tradeCount(ref, curr models.PortfolioRecord) int {
	refSet := ref.Symbols()
	currSet := curr.Symbols()

	count := 0
	for symbol := range refSet {
		if !currSet[symbol] {
			count++
		}
	}
	for symbol := range currSet {
		if !refSet[symbol] {
			count++
		}
	}
	return count
}
