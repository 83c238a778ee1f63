package report

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mcurrie/stockboard/internal/common"
	"github.com/mcurrie/stockboard/internal/interfaces"
	"github.com/mcurrie/stockboard/internal/models"
	"github.com/mcurrie/stockboard/internal/services/performance"
	"github.com/mcurrie/stockboard/internal/services/ranking"
)

type mockStore struct {
	latest  *models.Snapshot
	archive []models.ArchiveEntry
}

func (m *mockStore) ReadLatest(ctx context.Context) (*models.Snapshot, error) { return m.latest, nil }
func (m *mockStore) ReadArchive(ctx context.Context) ([]models.ArchiveEntry, error) {
	return m.archive, nil
}
func (m *mockStore) ReadReference(ctx context.Context, name string) (*models.Snapshot, error) {
	return nil, nil
}
func (m *mockStore) WriteReference(ctx context.Context, name string, snapshot *models.Snapshot) error {
	return nil
}
func (m *mockStore) DeleteReference(ctx context.Context, name string) error { return nil }
func (m *mockStore) GetMarker(ctx context.Context) (*models.TriggerMarker, error) {
	return &models.TriggerMarker{}, nil
}
func (m *mockStore) SetMarker(ctx context.Context, marker *models.TriggerMarker) error { return nil }

type delivery struct {
	channel string
	payload *models.Notification
}

type mockNotifier struct {
	deliveries []delivery
	failTitles map[string]bool
}

func (m *mockNotifier) SendNotification(ctx context.Context, channelID string, payload *models.Notification) error {
	if m.failTitles[payload.Title] {
		return fmt.Errorf("delivery refused")
	}
	m.deliveries = append(m.deliveries, delivery{channel: channelID, payload: payload})
	return nil
}

type mockRenderer struct {
	err   error
	calls int
}

func (m *mockRenderer) Render(title string, series []models.NamedSeries, reference *models.NamedSeries, markers []models.ChartMarker) ([]byte, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []byte("png-bytes"), nil
}

type mockSource struct {
	points []models.SeriesPoint
	err    error
}

func (m *mockSource) FetchSeries(ctx context.Context, symbol string, start, end time.Time) ([]models.SeriesPoint, error) {
	return m.points, m.err
}

var _ interfaces.SnapshotStore = (*mockStore)(nil)
var _ interfaces.Notifier = (*mockNotifier)(nil)
var _ interfaces.ChartRenderer = (*mockRenderer)(nil)
var _ interfaces.MarketDataSource = (*mockSource)(nil)

func snapshotOf(values map[string]float64, order ...string) *models.Snapshot {
	s := models.NewSnapshot()
	for _, name := range order {
		s.Set(name, models.PortfolioRecord{TotalValue: values[name]})
	}
	return s
}

func archiveFor(snapshots ...*models.Snapshot) []models.ArchiveEntry {
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	entries := make([]models.ArchiveEntry, len(snapshots))
	for i, s := range snapshots {
		entries[i] = models.ArchiveEntry{Timestamp: base.Add(time.Duration(i) * time.Hour), Snapshot: s}
	}
	return entries
}

func newTestService(store *mockStore, notifier *mockNotifier, renderer *mockRenderer, source interfaces.MarketDataSource) *Service {
	logger := common.NewSilentLogger()
	return NewService(store, ranking.NewService(logger), performance.NewService(logger),
		notifier, renderer, source, logger, 5, "SPY")
}

func TestSendLeaderboardUpdate_WithChart(t *testing.T) {
	s1 := snapshotOf(map[string]float64{"alice": 1000, "bob": 900}, "alice", "bob")
	s2 := snapshotOf(map[string]float64{"alice": 1100, "bob": 950}, "alice", "bob")

	store := &mockStore{archive: archiveFor(s1, s2)}
	notifier := &mockNotifier{}
	svc := newTestService(store, notifier, &mockRenderer{}, nil)

	if err := svc.SendLeaderboardUpdate(context.Background(), s2, models.ReasonSilenceTimeout); err != nil {
		t.Fatalf("SendLeaderboardUpdate error: %v", err)
	}

	if len(notifier.deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(notifier.deliveries))
	}
	d := notifier.deliveries[0]
	if d.channel != ChannelLeaderboard {
		t.Errorf("channel = %q", d.channel)
	}
	if d.payload.Footer != "Periodic Update" {
		t.Errorf("footer = %q", d.payload.Footer)
	}
	if !strings.Contains(d.payload.Description, "**#1 - alice**") {
		t.Errorf("description missing rank line: %q", d.payload.Description)
	}
	if len(d.payload.Chart) == 0 {
		t.Error("chart missing from payload")
	}
}

func TestSendLeaderboardUpdate_ChartFailureDegradesToText(t *testing.T) {
	snapshot := snapshotOf(map[string]float64{"alice": 1000}, "alice")
	store := &mockStore{} // empty archive: chart cannot render
	notifier := &mockNotifier{}
	renderer := &mockRenderer{err: fmt.Errorf("render exploded")}

	svc := newTestService(store, notifier, renderer, nil)
	if err := svc.SendLeaderboardUpdate(context.Background(), snapshot, models.ReasonPeriodOpen); err != nil {
		t.Fatalf("SendLeaderboardUpdate error: %v", err)
	}

	if len(notifier.deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1 (text-only)", len(notifier.deliveries))
	}
	if len(notifier.deliveries[0].payload.Chart) != 0 {
		t.Error("chart present despite render failure")
	}
}

func TestSendHoldingsChanges_PerUserEmbeds(t *testing.T) {
	prev := models.NewSnapshot()
	prev.Set("alice", models.PortfolioRecord{TotalValue: 1, Holdings: []models.Holding{{Symbol: "AAPL"}}})
	prev.Set("bob", models.PortfolioRecord{TotalValue: 1, Holdings: []models.Holding{{Symbol: "TSLA"}}})
	prev.Set("carol", models.PortfolioRecord{TotalValue: 1})

	curr := models.NewSnapshot()
	curr.Set("alice", models.PortfolioRecord{TotalValue: 1, Holdings: []models.Holding{{Symbol: "AAPL"}, {Symbol: "MSFT"}}})
	curr.Set("bob", models.PortfolioRecord{TotalValue: 1})
	curr.Set("carol", models.PortfolioRecord{TotalValue: 1})

	notifier := &mockNotifier{}
	svc := newTestService(&mockStore{}, notifier, &mockRenderer{}, nil)

	if err := svc.SendHoldingsChanges(context.Background(), prev, curr); err != nil {
		t.Fatalf("SendHoldingsChanges error: %v", err)
	}

	if len(notifier.deliveries) != 2 {
		t.Fatalf("deliveries = %d, want 2 (carol unchanged)", len(notifier.deliveries))
	}
	for _, d := range notifier.deliveries {
		if d.channel != ChannelStocks {
			t.Errorf("channel = %q, want stocks", d.channel)
		}
	}
	aliceMsg := notifier.deliveries[0].payload
	if aliceMsg.Title != "Stock Changes for alice" {
		t.Errorf("title = %q", aliceMsg.Title)
	}
	if !strings.Contains(aliceMsg.Description, "+ Bought MSFT") {
		t.Errorf("description = %q", aliceMsg.Description)
	}
	bobMsg := notifier.deliveries[1].payload
	if !strings.Contains(bobMsg.Description, "- Sold TSLA") {
		t.Errorf("description = %q", bobMsg.Description)
	}
}

func TestSendHoldingsChanges_OneFailureDoesNotAbortBatch(t *testing.T) {
	prev := models.NewSnapshot()
	prev.Set("alice", models.PortfolioRecord{TotalValue: 1, Holdings: []models.Holding{{Symbol: "AAPL"}}})
	prev.Set("bob", models.PortfolioRecord{TotalValue: 1, Holdings: []models.Holding{{Symbol: "TSLA"}}})

	curr := models.NewSnapshot()
	curr.Set("alice", models.PortfolioRecord{TotalValue: 1})
	curr.Set("bob", models.PortfolioRecord{TotalValue: 1})

	notifier := &mockNotifier{failTitles: map[string]bool{"Stock Changes for alice": true}}
	svc := newTestService(&mockStore{}, notifier, &mockRenderer{}, nil)

	if err := svc.SendHoldingsChanges(context.Background(), prev, curr); err != nil {
		t.Fatalf("SendHoldingsChanges error: %v", err)
	}
	if len(notifier.deliveries) != 1 || notifier.deliveries[0].payload.Title != "Stock Changes for bob" {
		t.Errorf("deliveries = %+v, want bob despite alice failing", notifier.deliveries)
	}
}

func TestSendHoldingsChanges_NilInputsAreQuiet(t *testing.T) {
	notifier := &mockNotifier{}
	svc := newTestService(&mockStore{}, notifier, &mockRenderer{}, nil)

	curr := snapshotOf(map[string]float64{"alice": 1}, "alice")
	if err := svc.SendHoldingsChanges(context.Background(), nil, curr); err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(notifier.deliveries) != 0 {
		t.Errorf("deliveries = %d, want 0", len(notifier.deliveries))
	}
}

func TestSendDailySummary_AssemblesFields(t *testing.T) {
	morning := models.NewSnapshot()
	morning.Set("alice", models.PortfolioRecord{TotalValue: 1000, Holdings: []models.Holding{{Symbol: "AAPL"}}})
	morning.Set("bob", models.PortfolioRecord{TotalValue: 1000})

	current := models.NewSnapshot()
	current.Set("alice", models.PortfolioRecord{TotalValue: 1200, Holdings: []models.Holding{{Symbol: "MSFT"}}})
	current.Set("bob", models.PortfolioRecord{TotalValue: 800})

	notifier := &mockNotifier{}
	svc := newTestService(&mockStore{}, notifier, &mockRenderer{}, nil)

	asOf := time.Date(2024, 1, 2, 16, 0, 0, 0, time.UTC)
	if err := svc.SendDailySummary(context.Background(), morning, current, asOf); err != nil {
		t.Fatalf("SendDailySummary error: %v", err)
	}

	if len(notifier.deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(notifier.deliveries))
	}
	payload := notifier.deliveries[0].payload
	if payload.Title != "📊 End of Day Trading Summary" {
		t.Errorf("title = %q", payload.Title)
	}
	if !strings.Contains(payload.Description, "Tuesday, January 2, 2024") {
		t.Errorf("description = %q", payload.Description)
	}

	fieldNames := make(map[string]string)
	for _, f := range payload.Fields {
		fieldNames[f.Name] = f.Value
	}
	if v := fieldNames["📈 Market Activity"]; !strings.Contains(v, "Total Trades Today: 2") {
		t.Errorf("market activity = %q", v)
	}
	if v := fieldNames["🚀 Biggest Gain"]; !strings.Contains(v, "alice") {
		t.Errorf("biggest gain = %q", v)
	}
	if v := fieldNames["💥 Biggest Loss"]; !strings.Contains(v, "bob") {
		t.Errorf("biggest loss = %q", v)
	}
}

func TestSendDailySummary_EmptyIntersectionSkips(t *testing.T) {
	morning := snapshotOf(map[string]float64{"gone": 1}, "gone")
	current := snapshotOf(map[string]float64{"new": 1}, "new")

	notifier := &mockNotifier{}
	svc := newTestService(&mockStore{}, notifier, &mockRenderer{}, nil)

	if err := svc.SendDailySummary(context.Background(), morning, current, time.Now()); err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(notifier.deliveries) != 0 {
		t.Errorf("deliveries = %d, want 0 when no user spans the period", len(notifier.deliveries))
	}
}

func TestLeaderboardPayload_NoDataIsError(t *testing.T) {
	svc := newTestService(&mockStore{}, &mockNotifier{}, &mockRenderer{}, nil)

	if _, err := svc.LeaderboardPayload(context.Background()); err == nil {
		t.Error("expected error when no leaderboard data exists")
	}
}

func TestUserInfoPayload_UnknownUser(t *testing.T) {
	store := &mockStore{latest: snapshotOf(map[string]float64{"alice": 1}, "alice")}
	svc := newTestService(store, &mockNotifier{}, &mockRenderer{}, nil)

	_, err := svc.UserInfoPayload(context.Background(), "nobody")
	if err == nil || !strings.Contains(err.Error(), "nobody") {
		t.Errorf("err = %v, want descriptive not-found error", err)
	}
}

func TestUserInfoPayload_WithHistoryAndMarkers(t *testing.T) {
	s1 := snapshotOf(map[string]float64{"alice": 900}, "alice")
	s2 := snapshotOf(map[string]float64{"alice": 1500}, "alice")
	s3 := snapshotOf(map[string]float64{"alice": 1200}, "alice")

	store := &mockStore{latest: s3, archive: archiveFor(s1, s2, s3)}
	source := &mockSource{points: []models.SeriesPoint{
		{Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Value: 470},
		{Timestamp: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Value: 475},
	}}
	svc := newTestService(store, &mockNotifier{}, &mockRenderer{}, source)

	payload, err := svc.UserInfoPayload(context.Background(), "alice")
	if err != nil {
		t.Fatalf("UserInfoPayload error: %v", err)
	}

	if !strings.Contains(payload.Description, "$1,200.00") {
		t.Errorf("description = %q", payload.Description)
	}
	if len(payload.Chart) == 0 {
		t.Error("chart missing")
	}

	fields := make(map[string]string)
	for _, f := range payload.Fields {
		fields[f.Name] = f.Value
	}
	if fields["📈 Highest Value"] != "$1,500.00" {
		t.Errorf("highest = %q", fields["📈 Highest Value"])
	}
	if fields["📉 Lowest Value"] != "$900.00" {
		t.Errorf("lowest = %q", fields["📉 Lowest Value"])
	}
}

func TestUserInfoPayload_BenchmarkFailureStillDelivers(t *testing.T) {
	s1 := snapshotOf(map[string]float64{"alice": 900}, "alice")
	s2 := snapshotOf(map[string]float64{"alice": 1200}, "alice")

	store := &mockStore{latest: s2, archive: archiveFor(s1, s2)}
	source := &mockSource{err: fmt.Errorf("api quota exceeded")}
	svc := newTestService(store, &mockNotifier{}, &mockRenderer{}, source)

	payload, err := svc.UserInfoPayload(context.Background(), "alice")
	if err != nil {
		t.Fatalf("UserInfoPayload error: %v", err)
	}
	if len(payload.Chart) == 0 {
		t.Error("chart missing, benchmark failure must only drop the overlay")
	}
}

func TestUsernameCandidates_FilterAndCap(t *testing.T) {
	latest := models.NewSnapshot()
	for i := 0; i < 30; i++ {
		latest.Set(fmt.Sprintf("trader%02d", i), models.PortfolioRecord{TotalValue: 1})
	}
	latest.Set("Alice", models.PortfolioRecord{TotalValue: 1})

	store := &mockStore{latest: latest}
	svc := newTestService(store, &mockNotifier{}, &mockRenderer{}, nil)

	got, err := svc.UsernameCandidates(context.Background(), "ali")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(got) != 1 || got[0] != "Alice" {
		t.Errorf("candidates = %v, want case-insensitive [Alice]", got)
	}

	all, err := svc.UsernameCandidates(context.Background(), "")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(all) != 25 {
		t.Errorf("candidates = %d, want cap of 25", len(all))
	}
}
