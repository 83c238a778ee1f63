// Package report assembles notification payloads from ranking and
// performance outputs and hands them to the chat delivery client.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mcurrie/stockboard/internal/common"
	"github.com/mcurrie/stockboard/internal/interfaces"
	"github.com/mcurrie/stockboard/internal/models"
)

// Logical delivery channels resolved by the notifier.
const (
	ChannelLeaderboard = "leaderboard"
	ChannelStocks      = "stocks"
)

const maxAutocompleteCandidates = 25

// Service implements interfaces.ReportService.
type Service struct {
	store       interfaces.SnapshotStore
	ranking     interfaces.RankingService
	performance interfaces.PerformanceService
	notifier    interfaces.Notifier
	renderer    interfaces.ChartRenderer
	marketData  interfaces.MarketDataSource // optional; nil disables the benchmark overlay
	logger      *common.Logger

	topN            int
	benchmarkSymbol string
}

// NewService creates the reporting façade. marketData may be nil.
func NewService(store interfaces.SnapshotStore, ranking interfaces.RankingService, performance interfaces.PerformanceService, notifier interfaces.Notifier, renderer interfaces.ChartRenderer, marketData interfaces.MarketDataSource, logger *common.Logger, topN int, benchmarkSymbol string) *Service {
	return &Service{
		store:           store,
		ranking:         ranking,
		performance:     performance,
		notifier:        notifier,
		renderer:        renderer,
		marketData:      marketData,
		logger:          logger,
		topN:            topN,
		benchmarkSymbol: benchmarkSymbol,
	}
}

// SendLeaderboardUpdate delivers the ranked top-N view with a reason footer.
// Chart rendering failures degrade to a text-only payload; the notification
// is never dropped because the optional chart failed.
func (s *Service) SendLeaderboardUpdate(ctx context.Context, snapshot *models.Snapshot, reason models.Reason) error {
	top := s.ranking.TopN(snapshot, s.topN)
	if len(top) == 0 {
		return fmt.Errorf("no users in snapshot")
	}

	notification := &models.Notification{
		Reason:      reason,
		Title:       "📊 Leaderboard Update!",
		Description: formatLeaderboardDescription(top),
		Footer:      reason.FooterText(),
		Timestamp:   time.Now(),
	}

	usernames := make([]string, len(top))
	for i, e := range top {
		usernames[i] = e.Username
	}
	if chartBytes, err := s.renderHistoryChart(ctx, "Top Users Performance Over Time", usernames); err != nil {
		s.logger.Warn().Err(err).Msg("Leaderboard chart unavailable, sending text-only")
	} else {
		notification.Chart = chartBytes
		notification.ChartName = "leaderboard_graph.png"
	}

	return s.notifier.SendNotification(ctx, ChannelLeaderboard, notification)
}

// SendHoldingsChanges delivers one bought/sold embed per user whose holding
// set changed. Per-user delivery failures are logged and do not abort the
// remaining users.
func (s *Service) SendHoldingsChanges(ctx context.Context, prev, curr *models.Snapshot) error {
	if prev == nil || curr == nil {
		return nil
	}

	changes := s.ranking.DetectChanges(prev, curr, s.topN)
	if !changes.HasHoldingsChanges() {
		return nil
	}

	for _, username := range curr.Usernames() {
		gained := changes.Gained[username]
		lost := changes.Lost[username]
		if len(gained) == 0 && len(lost) == 0 {
			continue
		}

		notification := &models.Notification{
			Title:       fmt.Sprintf("Stock Changes for %s", username),
			Description: formatHoldingsChange(gained, lost),
			Timestamp:   time.Now(),
		}

		if err := s.notifier.SendNotification(ctx, ChannelStocks, notification); err != nil {
			s.logger.Warn().Err(err).Str("username", username).Msg("Stock change notification failed")
		}
	}

	return nil
}

// SendDailySummary computes and delivers the end-of-day performance summary.
func (s *Service) SendDailySummary(ctx context.Context, morning, current *models.Snapshot, asOf time.Time) error {
	perf := s.performance.Compute(morning, current)
	if len(perf.Performance) == 0 {
		s.logger.Info().Msg("Daily summary skipped: no users present in both snapshots")
		return nil
	}

	return s.notifier.SendNotification(ctx, ChannelLeaderboard, buildDailySummary(perf, asOf))
}

// LeaderboardPayload builds the on-demand top-N response.
func (s *Service) LeaderboardPayload(ctx context.Context) (*models.Notification, error) {
	snapshot, err := s.store.ReadLatest(ctx)
	if err != nil || snapshot == nil {
		return nil, fmt.Errorf("leaderboard data unavailable")
	}

	top := s.ranking.TopN(snapshot, s.topN)
	if len(top) == 0 {
		return nil, fmt.Errorf("leaderboard is empty")
	}

	notification := &models.Notification{
		Title:       "📊 Current Leaderboard",
		Description: formatLeaderboardDescription(top),
		Timestamp:   time.Now(),
	}

	usernames := make([]string, len(top))
	for i, e := range top {
		usernames[i] = e.Username
	}
	if chartBytes, err := s.renderHistoryChart(ctx, "Top Users Performance Over Time", usernames); err != nil {
		s.logger.Warn().Err(err).Msg("Leaderboard chart unavailable, sending text-only")
	} else {
		notification.Chart = chartBytes
		notification.ChartName = "leaderboard_graph.png"
	}

	return notification, nil
}

// UserInfoPayload builds the on-demand user detail response.
func (s *Service) UserInfoPayload(ctx context.Context, username string) (*models.Notification, error) {
	snapshot, err := s.store.ReadLatest(ctx)
	if err != nil || snapshot == nil {
		return nil, fmt.Errorf("leaderboard data unavailable")
	}

	record, ok := snapshot.Get(username)
	if !ok {
		return nil, fmt.Errorf("user '%s' not found", username)
	}

	description := fmt.Sprintf("**Current Money:** %s\n\n**Current Holdings:**\n%s",
		common.FormatMoney(record.TotalValue), formatHoldings(record.Holdings))
	if record.ReferenceLink != "" {
		description += fmt.Sprintf("\n\n[View Portfolio](%s)", record.ReferenceLink)
	}

	notification := &models.Notification{
		Title:       fmt.Sprintf("Information for %s", username),
		Description: description,
		Timestamp:   time.Now(),
	}

	chartBytes, low, high, err := s.renderUserChart(ctx, username)
	if err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("User chart unavailable, sending text-only")
		return notification, nil
	}

	notification.Chart = chartBytes
	notification.ChartName = "money_graph.png"
	notification.Fields = append(notification.Fields,
		models.NotificationField{Name: "📈 Highest Value", Value: common.FormatMoney(high), Inline: true},
		models.NotificationField{Name: "📉 Lowest Value", Value: common.FormatMoney(low), Inline: true},
	)

	return notification, nil
}

// UsernameCandidates returns autocomplete suggestions: case-insensitive
// substring matches over current usernames, capped at 25.
func (s *Service) UsernameCandidates(ctx context.Context, partial string) ([]string, error) {
	snapshot, err := s.store.ReadLatest(ctx)
	if err != nil || snapshot == nil {
		return nil, nil
	}

	needle := strings.ToLower(partial)
	var candidates []string
	for _, username := range snapshot.Usernames() {
		if strings.Contains(strings.ToLower(username), needle) {
			candidates = append(candidates, username)
			if len(candidates) == maxAutocompleteCandidates {
				break
			}
		}
	}
	return candidates, nil
}

// userSeries extracts one user's value series from the archive. Snapshots
// where the user is absent are skipped, not zero-filled.
func userSeries(entries []models.ArchiveEntry, username string) []models.SeriesPoint {
	var points []models.SeriesPoint
	for _, entry := range entries {
		record, ok := entry.Snapshot.Get(username)
		if !ok {
			continue
		}
		points = append(points, models.SeriesPoint{Timestamp: entry.Timestamp, Value: record.TotalValue})
	}
	return points
}

// renderHistoryChart renders value-over-time lines for the given users.
// No benchmark overlay here; that belongs to the single-user view.
func (s *Service) renderHistoryChart(ctx context.Context, title string, usernames []string) ([]byte, error) {
	entries, err := s.store.ReadArchive(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive unavailable: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("archive is empty")
	}

	var series []models.NamedSeries
	for _, username := range usernames {
		points := userSeries(entries, username)
		if len(points) < 2 {
			continue
		}
		series = append(series, models.NamedSeries{Name: username, Points: points})
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no chartable history for requested users")
	}

	return s.renderer.Render(title, series, nil, nil)
}

// renderUserChart renders one user's history with high/low markers and the
// normalized benchmark overlay. Returns the image plus the user's lowest and
// highest observed values.
func (s *Service) renderUserChart(ctx context.Context, username string) ([]byte, float64, float64, error) {
	entries, err := s.store.ReadArchive(ctx)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("archive unavailable: %w", err)
	}

	points := userSeries(entries, username)
	if len(points) < 2 {
		return nil, 0, 0, fmt.Errorf("not enough history for %s", username)
	}

	low, high := points[0], points[0]
	for _, p := range points[1:] {
		if p.Value < low.Value {
			low = p
		}
		if p.Value > high.Value {
			high = p
		}
	}

	markers := []models.ChartMarker{
		{Label: common.FormatMoney(low.Value), Point: low},
		{Label: common.FormatMoney(high.Value), Point: high},
	}

	reference := s.benchmarkOverlay(ctx, points)

	title := fmt.Sprintf("Portfolio Performance vs %s - %s", s.benchmarkSymbol, username)
	if reference == nil {
		title = fmt.Sprintf("Portfolio Performance - %s", username)
	}

	chartBytes, err := s.renderer.Render(title, []models.NamedSeries{{Name: username + "'s Portfolio", Points: points}}, reference, markers)
	if err != nil {
		return nil, 0, 0, err
	}
	return chartBytes, low.Value, high.Value, nil
}

// benchmarkOverlay fetches the benchmark index over the user series' span
// and normalizes it to the series' starting value. Any failure degrades to
// no overlay.
func (s *Service) benchmarkOverlay(ctx context.Context, userPoints []models.SeriesPoint) *models.NamedSeries {
	if s.marketData == nil || len(userPoints) < 2 {
		return nil
	}

	start := userPoints[0].Timestamp
	end := userPoints[len(userPoints)-1].Timestamp

	benchmark, err := s.marketData.FetchSeries(ctx, s.benchmarkSymbol, start, end)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", s.benchmarkSymbol).Msg("Benchmark series unavailable")
		return nil
	}
	if len(benchmark) < 2 || benchmark[0].Value == 0 {
		return nil
	}

	scale := userPoints[0].Value / benchmark[0].Value
	normalized := make([]models.SeriesPoint, len(benchmark))
	for i, p := range benchmark {
		normalized[i] = models.SeriesPoint{Timestamp: p.Timestamp, Value: p.Value * scale}
	}

	return &models.NamedSeries{
		Name:   fmt.Sprintf("%s (Normalized)", s.benchmarkSymbol),
		Points: normalized,
	}
}
