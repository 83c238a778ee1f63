package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/mcurrie/stockboard/internal/common"
	"github.com/mcurrie/stockboard/internal/models"
)

// formatLeaderboardDescription renders the ranked top-N as embed text.
func formatLeaderboardDescription(entries []models.RankedEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("**#%d - %s**\n", e.Rank, e.Username))
		sb.WriteString(fmt.Sprintf("Money: %s\n\n", common.FormatMoney(e.TotalValue)))
	}
	return sb.String()
}

// formatHoldingsChange renders one user's bought/sold lines.
func formatHoldingsChange(gained, lost []string) string {
	var sb strings.Builder
	for _, symbol := range gained {
		sb.WriteString(fmt.Sprintf("+ Bought %s\n", symbol))
	}
	for _, symbol := range lost {
		sb.WriteString(fmt.Sprintf("- Sold %s\n", symbol))
	}
	return sb.String()
}

// formatPerformers renders performance lines for the summary fields.
func formatPerformers(performers []models.UserPerformance) string {
	lines := make([]string, 0, len(performers))
	for _, p := range performers {
		lines = append(lines, fmt.Sprintf("**%s**: %s (%s) - %d trades",
			p.Username, common.FormatSignedPct(p.ChangePercent),
			common.FormatSignedMoney(p.ChangeAmount), p.TradeCount))
	}
	return strings.Join(lines, "\n")
}

// formatMostActive renders the most-active-traders field.
func formatMostActive(performers []models.UserPerformance) string {
	lines := make([]string, 0, len(performers))
	for _, p := range performers {
		lines = append(lines, fmt.Sprintf("**%s**: %d trades", p.Username, p.TradeCount))
	}
	return strings.Join(lines, "\n")
}

// formatExtreme renders the biggest gain/loss field body.
func formatExtreme(p *models.UserPerformance) string {
	return fmt.Sprintf("**%s**\n%s (%s)", p.Username,
		common.FormatSignedPct(p.ChangePercent), common.FormatSignedMoney(p.ChangeAmount))
}

// formatHoldings renders a user's holdings as "SYM: qty (note)" lines.
func formatHoldings(holdings []models.Holding) string {
	if len(holdings) == 0 {
		return "No current holdings"
	}
	lines := make([]string, 0, len(holdings))
	for _, h := range holdings {
		lines = append(lines, fmt.Sprintf("%s: %g (%s)", h.Symbol, h.Quantity, h.Note))
	}
	return strings.Join(lines, "\n")
}

// buildDailySummary assembles the end-of-day summary notification.
// Top and bottom performer fields can overlap when fewer than six users
// qualify; the overlap is accepted rather than de-duplicated.
func buildDailySummary(perf *models.PerformanceReport, asOf time.Time) *models.Notification {
	n := &models.Notification{
		Reason:      models.ReasonPeriodClose,
		Title:       "📊 End of Day Trading Summary",
		Description: fmt.Sprintf("Market Close Summary for %s", asOf.Format("Monday, January 2, 2006")),
		Footer:      models.ReasonPeriodClose.FooterText(),
		Timestamp:   asOf,
	}

	n.Fields = append(n.Fields, models.NotificationField{
		Name:  "📈 Market Activity",
		Value: fmt.Sprintf("Total Trades Today: %d", perf.TotalTrades),
	})

	if top := perf.TopPerformers(3); len(top) > 0 {
		n.Fields = append(n.Fields, models.NotificationField{
			Name:  "🏆 Top Performers",
			Value: formatPerformers(top),
		})
	}
	if bottom := perf.BottomPerformers(3); len(bottom) > 0 {
		n.Fields = append(n.Fields, models.NotificationField{
			Name:  "📉 Needs Improvement",
			Value: formatPerformers(bottom),
		})
	}

	if perf.BiggestGain != nil {
		n.Fields = append(n.Fields, models.NotificationField{
			Name:   "🚀 Biggest Gain",
			Value:  formatExtreme(perf.BiggestGain),
			Inline: true,
		})
	}
	if perf.BiggestLoss != nil {
		n.Fields = append(n.Fields, models.NotificationField{
			Name:   "💥 Biggest Loss",
			Value:  formatExtreme(perf.BiggestLoss),
			Inline: true,
		})
	}

	if len(perf.MostActive) > 0 {
		n.Fields = append(n.Fields, models.NotificationField{
			Name:  "⚡ Most Active Traders",
			Value: formatMostActive(perf.MostActive),
		})
	}

	return n
}
