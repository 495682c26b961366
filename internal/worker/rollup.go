package worker

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/meditrack/adherence-api/internal/model"
	"github.com/meditrack/adherence-api/internal/repository"
	"github.com/meditrack/adherence-api/pkg/metrics"
)

// RollupConfig controls the daily adherence rollup loop
type RollupConfig struct {
	CheckInterval time.Duration
}

// RollupWorker writes one adherence sample per medication per day and
// resets the schedule flags for the next day. The samples it produces
// feed the adherence rate endpoints.
type RollupWorker struct {
	repo     repository.MedicationRepository
	userRepo repository.UserRepository
	config   RollupConfig
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

func NewRollupWorker(
	repo repository.MedicationRepository,
	userRepo repository.UserRepository,
	config RollupConfig,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *RollupWorker {
	if config.CheckInterval <= 0 {
		panic("rollup check interval must be positive")
	}
	return &RollupWorker{
		repo:     repo,
		userRepo: userRepo,
		config:   config,
		logger:   logger.With().Str("component", "rollup_worker").Logger(),
		metrics:  metrics,
	}
}

// Start runs the rollup loop until ctx is cancelled. Each tick closes out
// any day that has ended since the last sample was written, so a worker
// that was down over midnight catches up on its next tick.
func (w *RollupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.CheckInterval)
	defer ticker.Stop()

	w.logger.Info().
		Dur("check_interval", w.config.CheckInterval).
		Msg("starting adherence rollup worker")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("stopping adherence rollup worker")
			return
		case <-ticker.C:
			if err := w.RollupDay(ctx, time.Now()); err != nil {
				w.logger.Error().Err(err).Msg("adherence rollup failed")
			}
		}
	}
}

// RollupDay closes out every calendar day that ended before now. For each
// active medication it appends one sample per unclosed day and clears the
// taken/skipped flags so the schedule starts fresh.
func (w *RollupWorker) RollupDay(ctx context.Context, now time.Time) error {
	timer := time.Now()
	defer func() {
		w.metrics.RollupLatency.Observe(time.Since(timer).Seconds())
	}()
	w.metrics.RollupRuns.Inc()

	medications, err := w.repo.ListActive(ctx)
	if err != nil {
		return err
	}

	var written int
	for _, med := range medications {
		n, err := w.rollupMedication(ctx, med, now)
		if err != nil {
			w.logger.Error().Err(err).
				Str("medication_id", med.ID.String()).
				Msg("failed to roll up medication")
			continue
		}
		written += n
	}

	if written > 0 {
		w.metrics.RollupSamplesWritten.Add(float64(written))
		w.logger.Info().
			Int("samples_written", written).
			Int("medications", len(medications)).
			Msg("adherence rollup complete")
	}
	return nil
}

// rollupMedication appends samples for each full day between the last
// recorded sample and today, then persists the reset schedule. Days the
// medication was not yet started are skipped. Day boundaries follow the
// owner's configured timezone.
func (w *RollupWorker) rollupMedication(ctx context.Context, med *model.Medication, now time.Time) (int, error) {
	loc := now.Location()
	if user, err := w.userRepo.Get(ctx, med.UserID); err == nil {
		loc = user.Location()
	}

	today := startOfDay(now.In(loc))
	from := startOfDay(med.StartDate.In(loc))
	if n := len(med.AdherenceData); n > 0 {
		last := startOfDay(med.AdherenceData[n-1].Date.In(loc))
		from = last.AddDate(0, 0, 1)
	}
	if !from.Before(today) {
		return 0, nil
	}

	var written int
	for day := from; day.Before(today); day = day.AddDate(0, 0, 1) {
		med.AdherenceData = append(med.AdherenceData, sampleFor(med.Schedule, day))
		written++
		// Flags describe the day being closed; only the most recent
		// day carries real state, earlier gaps roll up as all-missed.
		resetScheduleFlags(med.Schedule)
	}

	if err := w.repo.Update(ctx, med); err != nil {
		return 0, err
	}
	return written, nil
}

func sampleFor(schedule model.ScheduleEntries, day time.Time) model.AdherenceSample {
	scheduled := len(schedule)
	var taken int
	for _, entry := range schedule {
		if entry.Taken {
			taken++
		}
	}

	var rate float64
	if scheduled > 0 {
		rate = math.Round(float64(taken) / float64(scheduled) * 100)
	}

	return model.AdherenceSample{
		Date:           day,
		Taken:          scheduled > 0 && taken == scheduled,
		TimesTaken:     taken,
		TimesScheduled: scheduled,
		AdherenceRate:  rate,
	}
}

func resetScheduleFlags(schedule model.ScheduleEntries) {
	for i := range schedule {
		schedule[i].Taken = false
		schedule[i].TakenAt = nil
		schedule[i].Skipped = false
		schedule[i].SkipReason = ""
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
