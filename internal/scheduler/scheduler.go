// Package scheduler drives the periodic reporting cycle: a fixed tick that
// evaluates trigger conditions against the persisted marker and reference
// snapshot, plus cron alarms for the morning capture and end-of-day summary.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mcurrie/stockboard/internal/common"
	"github.com/mcurrie/stockboard/internal/interfaces"
	"github.com/mcurrie/stockboard/internal/models"
	"github.com/mcurrie/stockboard/internal/storage"
)

// Decision is the outcome of one trigger evaluation.
type Decision struct {
	Fire   bool
	Reason models.Reason
}

// Scheduler owns the tick loop and the open/close cron alarms.
type Scheduler struct {
	store   interfaces.SnapshotStore
	ranking interfaces.RankingService
	report  interfaces.ReportService
	logger  *common.Logger

	location     *time.Location
	marketOpen   common.ClockTime
	marketClose  common.ClockTime
	tickInterval time.Duration
	maxSilence   time.Duration
	topN         int

	now func() time.Time

	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler builds a scheduler from the schedule configuration.
func NewScheduler(store interfaces.SnapshotStore, ranking interfaces.RankingService, report interfaces.ReportService, logger *common.Logger, cfg *common.ScheduleConfig, topN int) (*Scheduler, error) {
	marketOpen, err := common.ParseClockTime(cfg.MarketOpen)
	if err != nil {
		return nil, fmt.Errorf("invalid market open time: %w", err)
	}
	marketClose, err := common.ParseClockTime(cfg.MarketClose)
	if err != nil {
		return nil, fmt.Errorf("invalid market close time: %w", err)
	}

	return &Scheduler{
		store:        store,
		ranking:      ranking,
		report:       report,
		logger:       logger,
		location:     cfg.Location(),
		marketOpen:   marketOpen,
		marketClose:  marketClose,
		tickInterval: cfg.GetTickInterval(),
		maxSilence:   cfg.GetMaxSilence(),
		topN:         topN,
		now:          time.Now,
	}, nil
}

// inWindow reports whether t falls within center ± tolerance.
func inWindow(t, center time.Time, tolerance time.Duration) bool {
	d := t.Sub(center)
	return d >= -tolerance && d <= tolerance
}

// Evaluate decides whether a leaderboard update should fire at now.
// Precedence: open window, close window, rankings changed, silence timeout.
// Open and close windows span one tick interval either side of the boundary;
// a marker already inside the same window suppresses a duplicate fire after
// a restart. Weekends and out-of-hours ticks never fire.
func (s *Scheduler) Evaluate(now time.Time, marker models.TriggerMarker, prev, curr *models.Snapshot) Decision {
	now = now.In(s.location)
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return Decision{}
	}

	openAt := s.marketOpen.On(now)
	closeAt := s.marketClose.On(now)
	lastFired := marker.LastFiredAt.In(s.location)

	if inWindow(now, openAt, s.tickInterval) {
		if !marker.LastFiredAt.IsZero() && inWindow(lastFired, openAt, s.tickInterval) {
			return Decision{}
		}
		return Decision{Fire: true, Reason: models.ReasonPeriodOpen}
	}
	if inWindow(now, closeAt, s.tickInterval) {
		if !marker.LastFiredAt.IsZero() && inWindow(lastFired, closeAt, s.tickInterval) {
			return Decision{}
		}
		return Decision{Fire: true, Reason: models.ReasonPeriodClose}
	}

	if now.Before(openAt) || now.After(closeAt) {
		return Decision{}
	}

	if s.ranking.RankingsChanged(prev, curr, s.topN) {
		return Decision{Fire: true, Reason: models.ReasonRankingsChanged}
	}

	if now.Sub(marker.LastFiredAt) >= s.maxSilence {
		return Decision{Fire: true, Reason: models.ReasonSilenceTimeout}
	}

	return Decision{}
}

// Start launches the cron alarms and the tick loop. Stop must be called to
// release them.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithLocation(s.location))

	openSpec := fmt.Sprintf("%d %d * * 1-5", s.marketOpen.Minute, s.marketOpen.Hour)
	if _, err := s.cron.AddFunc(openSpec, func() { s.captureMorning(context.Background()) }); err != nil {
		return fmt.Errorf("failed to schedule morning capture: %w", err)
	}

	closeSpec := fmt.Sprintf("%d %d * * 1-5", s.marketClose.Minute, s.marketClose.Hour)
	if _, err := s.cron.AddFunc(closeSpec, func() { s.sendDailySummary(context.Background()) }); err != nil {
		return fmt.Errorf("failed to schedule daily summary: %w", err)
	}

	s.cron.Start()

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info().
		Str("market_open", openSpec).
		Str("market_close", closeSpec).
		Dur("tick_interval", s.tickInterval).
		Str("timezone", s.location.String()).
		Msg("Scheduler started")
	return nil
}

// Stop halts the cron alarms and waits for the tick loop to exit.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	s.startupComparison(ctx)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// startupComparison reports any holdings changes that happened while the
// process was down, using the reference snapshot persisted before shutdown.
func (s *Scheduler) startupComparison(ctx context.Context) {
	curr, err := s.store.ReadLatest(ctx)
	if err != nil || curr == nil {
		return
	}
	prev, err := s.store.ReadReference(ctx, storage.RefCurrent)
	if err != nil || prev == nil {
		return
	}
	if err := s.report.SendHoldingsChanges(ctx, prev, curr); err != nil {
		s.logger.Warn().Err(err).Msg("Startup holdings comparison failed")
	}
}

// tick evaluates trigger conditions once. The reference snapshot and marker
// are only advanced after a successful delivery, so a failed send retries on
// the next tick.
func (s *Scheduler) tick(ctx context.Context) {
	curr, err := s.store.ReadLatest(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read latest snapshot")
		return
	}
	if curr == nil || curr.Len() == 0 {
		s.logger.Debug().Msg("No leaderboard data yet")
		return
	}

	prev, err := s.store.ReadReference(ctx, storage.RefCurrent)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read reference snapshot")
		return
	}

	marker, err := s.store.GetMarker(ctx)
	if err != nil || marker == nil {
		s.logger.Warn().Err(err).Msg("Failed to read trigger marker")
		marker = &models.TriggerMarker{}
	}

	decision := s.Evaluate(s.now(), *marker, prev, curr)
	if !decision.Fire {
		return
	}

	s.logger.Info().Str("reason", string(decision.Reason)).Msg("Trigger fired")

	if err := s.report.SendLeaderboardUpdate(ctx, curr, decision.Reason); err != nil {
		s.logger.Error().Err(err).Str("reason", string(decision.Reason)).Msg("Leaderboard update failed, will retry next tick")
		return
	}

	if err := s.report.SendHoldingsChanges(ctx, prev, curr); err != nil {
		s.logger.Warn().Err(err).Msg("Holdings change report failed")
	}

	if err := s.store.WriteReference(ctx, storage.RefCurrent, curr); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist reference snapshot")
	}
	marker.LastFiredAt = s.now()
	if err := s.store.SetMarker(ctx, marker); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist trigger marker")
	}
}

// captureMorning persists the day's opening snapshot. At most one capture per
// calendar day, enforced by the marker so restarts do not overwrite it.
func (s *Scheduler) captureMorning(ctx context.Context) {
	today := s.now().In(s.location).Format("2006-01-02")

	marker, err := s.store.GetMarker(ctx)
	if err != nil || marker == nil {
		s.logger.Warn().Err(err).Msg("Failed to read trigger marker")
		marker = &models.TriggerMarker{}
	}
	if marker.MorningCapturedOn == today {
		s.logger.Debug().Str("date", today).Msg("Morning snapshot already captured")
		return
	}

	curr, err := s.store.ReadLatest(ctx)
	if err != nil || curr == nil {
		s.logger.Warn().Err(err).Msg("No leaderboard data for morning capture")
		return
	}

	if err := s.store.WriteReference(ctx, storage.RefMorning, curr); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist morning snapshot")
		return
	}

	marker.MorningCapturedOn = today
	if err := s.store.SetMarker(ctx, marker); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist trigger marker")
	}
	s.logger.Info().Str("date", today).Int("users", curr.Len()).Msg("Morning snapshot captured")
}

// sendDailySummary delivers the end-of-day summary against the morning
// snapshot, then clears it.
func (s *Scheduler) sendDailySummary(ctx context.Context) {
	morning, err := s.store.ReadReference(ctx, storage.RefMorning)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read morning snapshot")
		return
	}
	if morning == nil {
		s.logger.Warn().Msg("No morning snapshot, skipping daily summary")
		return
	}

	curr, err := s.store.ReadLatest(ctx)
	if err != nil || curr == nil {
		s.logger.Warn().Err(err).Msg("No leaderboard data for daily summary")
		return
	}

	if err := s.report.SendDailySummary(ctx, morning, curr, s.now().In(s.location)); err != nil {
		s.logger.Error().Err(err).Msg("Daily summary delivery failed")
		return
	}

	if err := s.store.DeleteReference(ctx, storage.RefMorning); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear morning snapshot")
	}
}
