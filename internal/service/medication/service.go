package medication

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/meditrack/adherence-api/internal/adherence"
	"github.com/meditrack/adherence-api/internal/model"
	"github.com/meditrack/adherence-api/internal/repository"
)

const (
	defaultColor          = "#3b82f6"
	defaultRefillLeadDays = 7

	// Assembled day schedules are cached briefly per user; any dose or
	// medication mutation for that user invalidates the entry.
	scheduleCacheTTL = 30 * time.Second
)

type Service struct {
	repo  repository.MedicationRepository
	cache *gocache.Cache
}

func NewService(repo repository.MedicationRepository) *Service {
	return &Service{
		repo:  repo,
		cache: gocache.New(scheduleCacheTTL, 5*time.Minute),
	}
}

func (s *Service) CreateMedication(ctx context.Context, userID uuid.UUID, req *model.CreateMedicationRequest) (*model.Medication, error) {
	schedule, err := buildSchedule(req.Times)
	if err != nil {
		return nil, err
	}

	color := req.Color
	if color == "" {
		color = defaultColor
	}

	med := &model.Medication{
		Base:          model.Base{ID: uuid.New()},
		UserID:        userID,
		Name:          req.Name,
		DosageAmount:  req.DosageAmount,
		DosageUnit:    req.DosageUnit,
		Frequency:     req.Frequency,
		Instructions:  req.Instructions,
		PrescribedBy:  req.PrescribedBy,
		Color:         color,
		SideEffects:   req.SideEffects,
		Schedule:      schedule,
		DoseEvents:    model.DoseEvents{},
		AdherenceData: model.AdherenceSamples{},
		RefillReminder: model.RefillReminder{
			Enabled:         true,
			DaysBeforeEmpty: defaultRefillLeadDays,
		},
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsActive:  true,
	}

	if err := s.repo.Create(ctx, med); err != nil {
		return nil, fmt.Errorf("failed to create medication: %w", err)
	}

	s.invalidateSchedule(userID)
	return med, nil
}

func (s *Service) GetMedication(ctx context.Context, userID, id uuid.UUID) (*model.Medication, error) {
	return s.repo.Get(ctx, userID, id)
}

func (s *Service) ListMedications(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*model.Medication, error) {
	if activeOnly {
		return s.repo.ListActiveByUser(ctx, userID)
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) UpdateMedication(ctx context.Context, userID, id uuid.UUID, req *model.UpdateMedicationRequest) (*model.Medication, error) {
	med, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		med.Name = *req.Name
	}
	if req.DosageAmount != nil {
		med.DosageAmount = *req.DosageAmount
	}
	if req.DosageUnit != nil {
		med.DosageUnit = *req.DosageUnit
	}
	if req.Frequency != nil {
		med.Frequency = *req.Frequency
	}
	if req.Instructions != nil {
		med.Instructions = *req.Instructions
	}
	if req.PrescribedBy != nil {
		med.PrescribedBy = req.PrescribedBy
	}
	if req.Color != nil {
		med.Color = *req.Color
	}
	if req.SideEffects != nil {
		med.SideEffects = req.SideEffects
	}
	if req.StartDate != nil {
		med.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		med.EndDate = req.EndDate
	}
	if req.IsActive != nil {
		med.IsActive = *req.IsActive
	}
	if req.Times != nil {
		schedule, err := buildSchedule(req.Times)
		if err != nil {
			return nil, err
		}
		med.Schedule = schedule
	}

	if err := s.repo.Update(ctx, med); err != nil {
		return nil, fmt.Errorf("failed to update medication: %w", err)
	}

	s.invalidateSchedule(userID)
	return med, nil
}

func (s *Service) DeleteMedication(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.invalidateSchedule(userID)
	return nil
}

// RecordDose appends a dose event to the medication's history. The event
// is independent of the configured schedule slots; reconciliation against
// slots happens at read time.
func (s *Service) RecordDose(ctx context.Context, userID, id uuid.UUID, takenAt time.Time, notes string) (*model.Medication, error) {
	med, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	med.DoseEvents = append(med.DoseEvents, model.DoseEvent{
		TakenAt: takenAt,
		Notes:   notes,
	})

	if err := s.repo.Update(ctx, med); err != nil {
		return nil, fmt.Errorf("failed to record dose: %w", err)
	}

	s.invalidateSchedule(userID)
	return med, nil
}

// TakeScheduledDose marks the schedule slot at index as taken. An
// out-of-range index is a caller error and is rejected, never ignored.
func (s *Service) TakeScheduledDose(ctx context.Context, userID, id uuid.UUID, index int, takenAt time.Time) (*model.Medication, error) {
	med, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := med.MarkDoseTaken(index, takenAt); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, med); err != nil {
		return nil, fmt.Errorf("failed to mark dose taken: %w", err)
	}

	s.invalidateSchedule(userID)
	return med, nil
}

// SkipScheduledDose marks the schedule slot at index as skipped
func (s *Service) SkipScheduledDose(ctx context.Context, userID, id uuid.UUID, index int, reason string) (*model.Medication, error) {
	med, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := med.MarkDoseSkipped(index, reason); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, med); err != nil {
		return nil, fmt.Errorf("failed to mark dose skipped: %w", err)
	}

	s.invalidateSchedule(userID)
	return med, nil
}

// AdherenceStats summarizes adherence over the trailing lookback window.
// With rolling set, the last `days` samples are aggregated regardless of
// their dates instead of the samples dated within the window.
func (s *Service) AdherenceStats(ctx context.Context, userID, id uuid.UUID, days int, now time.Time, rolling bool) (*model.AdherenceStats, error) {
	med, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	var rate, taken, scheduled int
	if rolling {
		rate = adherence.RollingRate(med.AdherenceData, days)
		taken, scheduled = adherence.RollingTotals(med.AdherenceData, days)
	} else {
		rate = adherence.WindowedRate(med.AdherenceData, now, days)
		taken, scheduled = adherence.WindowTotals(med.AdherenceData, now, days)
	}

	return &model.AdherenceStats{
		Rate:        rate,
		TakenDoses:  taken,
		MissedDoses: scheduled - taken,
		TotalDoses:  scheduled,
		Percentage:  rate,
	}, nil
}

// NextDose computes the next upcoming dose instant for one medication
func (s *Service) NextDose(ctx context.Context, userID, id uuid.UUID, now time.Time) (*model.NextDoseResponse, error) {
	med, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	return &model.NextDoseResponse{
		MedicationID: med.ID,
		NextDose:     adherence.NextDose(med.Schedule, now),
	}, nil
}

// TodaySchedule assembles the day's dose line items for all of a user's
// active medications. Day boundaries come from now's location.
func (s *Service) TodaySchedule(ctx context.Context, userID uuid.UUID, now time.Time) (*model.DaySchedule, error) {
	cacheKey := scheduleCacheKey(userID)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(*model.DaySchedule), nil
	}

	meds, err := s.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	schedule := &model.DaySchedule{
		Date:     startOfDay.Format("2006-01-02"),
		Schedule: adherence.BuildDaySchedule(meds, now, startOfDay, endOfDay),
	}

	s.cache.Set(cacheKey, schedule, scheduleCacheTTL)
	return schedule, nil
}

// DueNow returns the user's medications with an untaken slot inside the
// window around now
func (s *Service) DueNow(ctx context.Context, userID uuid.UUID, now time.Time, windowMinutes int) ([]*model.Medication, error) {
	meds, err := s.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return adherence.FindDueNow(meds, now, windowMinutes), nil
}

func (s *Service) invalidateSchedule(userID uuid.UUID) {
	s.cache.Delete(scheduleCacheKey(userID))
}

func scheduleCacheKey(userID uuid.UUID) string {
	return "schedule:today:" + userID.String()
}

func buildSchedule(times []string) (model.ScheduleEntries, error) {
	schedule := make(model.ScheduleEntries, 0, len(times))
	for _, t := range times {
		if _, err := adherence.ClockMinutes(t); err != nil {
			return nil, fmt.Errorf("invalid schedule time: %w", err)
		}
		schedule = append(schedule, model.ScheduleEntry{Time: t})
	}
	return schedule, nil
}
