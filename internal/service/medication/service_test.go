package medication

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meditrack/adherence-api/internal/model"
	"github.com/meditrack/adherence-api/internal/repository"
)

type fakeMedicationRepo struct {
	medications map[uuid.UUID]*model.Medication
	updateCalls int
	listCalls   int
}

func newFakeMedicationRepo() *fakeMedicationRepo {
	return &fakeMedicationRepo{medications: make(map[uuid.UUID]*model.Medication)}
}

func (r *fakeMedicationRepo) Create(ctx context.Context, med *model.Medication) error {
	r.medications[med.ID] = med
	return nil
}

func (r *fakeMedicationRepo) Get(ctx context.Context, userID, id uuid.UUID) (*model.Medication, error) {
	med, ok := r.medications[id]
	if !ok || med.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return med, nil
}

func (r *fakeMedicationRepo) Update(ctx context.Context, med *model.Medication) error {
	r.updateCalls++
	r.medications[med.ID] = med
	return nil
}

func (r *fakeMedicationRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	med, ok := r.medications[id]
	if !ok || med.UserID != userID {
		return repository.ErrNotFound
	}
	delete(r.medications, id)
	return nil
}

func (r *fakeMedicationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Medication, error) {
	var out []*model.Medication
	for _, med := range r.medications {
		if med.UserID == userID {
			out = append(out, med)
		}
	}
	return out, nil
}

func (r *fakeMedicationRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*model.Medication, error) {
	r.listCalls++
	var out []*model.Medication
	for _, med := range r.medications {
		if med.UserID == userID && med.IsActive {
			out = append(out, med)
		}
	}
	return out, nil
}

func (r *fakeMedicationRepo) ListActive(ctx context.Context) ([]*model.Medication, error) {
	var out []*model.Medication
	for _, med := range r.medications {
		if med.IsActive {
			out = append(out, med)
		}
	}
	return out, nil
}

func seedMedication(repo *fakeMedicationRepo, userID uuid.UUID, times ...string) *model.Medication {
	schedule := make(model.ScheduleEntries, 0, len(times))
	for _, t := range times {
		schedule = append(schedule, model.ScheduleEntry{Time: t})
	}
	med := &model.Medication{
		Base:      model.Base{ID: uuid.New()},
		UserID:    userID,
		Name:      "Lisinopril",
		Schedule:  schedule,
		StartDate: time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
	repo.medications[med.ID] = med
	return med
}

func TestCreateMedicationDefaults(t *testing.T) {
	repo := newFakeMedicationRepo()
	svc := NewService(repo)
	userID := uuid.New()

	med, err := svc.CreateMedication(context.Background(), userID, &model.CreateMedicationRequest{
		Name:         "Metformin",
		DosageAmount: 500,
		DosageUnit:   "mg",
		Frequency:    "twice-daily",
		Times:        []string{"08:00", "20:00"},
		StartDate:    time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, userID, med.UserID)
	assert.Equal(t, "#3b82f6", med.Color)
	assert.True(t, med.IsActive)
	assert.True(t, med.RefillReminder.Enabled)
	assert.Equal(t, 7, med.RefillReminder.DaysBeforeEmpty)
	require.Len(t, med.Schedule, 2)
	assert.Equal(t, "08:00", med.Schedule[0].Time)
	assert.False(t, med.Schedule[0].Taken)
}

func TestCreateMedicationRejectsBadClockTime(t *testing.T) {
	svc := NewService(newFakeMedicationRepo())

	_, err := svc.CreateMedication(context.Background(), uuid.New(), &model.CreateMedicationRequest{
		Name:         "Metformin",
		DosageAmount: 500,
		DosageUnit:   "mg",
		Frequency:    "once-daily",
		Times:        []string{"25:00"},
		StartDate:    time.Now(),
	})
	assert.Error(t, err)
}

func TestGetMedicationWrongOwner(t *testing.T) {
	repo := newFakeMedicationRepo()
	svc := NewService(repo)
	med := seedMedication(repo, uuid.New(), "08:00")

	_, err := svc.GetMedication(context.Background(), uuid.New(), med.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecordDoseAppendsEvent(t *testing.T) {
	repo := newFakeMedicationRepo()
	svc := NewService(repo)
	userID := uuid.New()
	med := seedMedication(repo, userID, "08:00")

	takenAt := time.Now()
	updated, err := svc.RecordDose(context.Background(), userID, med.ID, takenAt, "with food")
	require.NoError(t, err)

	require.Len(t, updated.DoseEvents, 1)
	assert.True(t, updated.DoseEvents[0].TakenAt.Equal(takenAt))
	assert.Equal(t, "with food", updated.DoseEvents[0].Notes)
	assert.Equal(t, 1, repo.updateCalls)
}

func TestTakeScheduledDoseInvalidIndex(t *testing.T) {
	repo := newFakeMedicationRepo()
	svc := NewService(repo)
	userID := uuid.New()
	med := seedMedication(repo, userID, "08:00", "20:00")

	_, err := svc.TakeScheduledDose(context.Background(), userID, med.ID, 2, time.Now())
	assert.ErrorIs(t, err, model.ErrScheduleIndexOutOfRange)
	assert.Zero(t, repo.updateCalls)
}

func TestTakeThenSkipScheduledDose(t *testing.T) {
	repo := newFakeMedicationRepo()
	svc := NewService(repo)
	userID := uuid.New()
	med := seedMedication(repo, userID, "08:00", "20:00")

	takenAt := time.Now()
	updated, err := svc.TakeScheduledDose(context.Background(), userID, med.ID, 0, takenAt)
	require.NoError(t, err)
	assert.True(t, updated.Schedule[0].Taken)
	require.NotNil(t, updated.Schedule[0].TakenAt)

	updated, err = svc.SkipScheduledDose(context.Background(), userID, med.ID, 0, "nauseous")
	require.NoError(t, err)
	assert.False(t, updated.Schedule[0].Taken)
	assert.Nil(t, updated.Schedule[0].TakenAt)
	assert.True(t, updated.Schedule[0].Skipped)
	assert.Equal(t, "nauseous", updated.Schedule[0].SkipReason)
}

func TestAdherenceStatsMath(t *testing.T) {
	repo := newFakeMedicationRepo()
	svc := NewService(repo)
	userID := uuid.New()
	med := seedMedication(repo, userID, "08:00", "20:00")

	now := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 10; i++ {
		day := now.AddDate(0, 0, -i)
		taken := 2
		if i%2 == 0 {
			taken = 1
		}
		med.AdherenceData = append(med.AdherenceData, model.AdherenceSample{
			Date:           day,
			TimesTaken:     taken,
			TimesScheduled: 2,
		})
	}

	stats, err := svc.AdherenceStats(context.Background(), userID, med.ID, 30, now, false)
	require.NoError(t, err)

	// 15 of 20 doses taken across the window.
	assert.Equal(t, 15, stats.TakenDoses)
	assert.Equal(t, 5, stats.MissedDoses)
	assert.Equal(t, 20, stats.TotalDoses)
	assert.Equal(t, 75, stats.Rate)
	assert.Equal(t, stats.Rate, stats.Percentage)
}

func TestAdherenceStatsRollingIgnoresDates(t *testing.T) {
	repo := newFakeMedicationRepo()
	svc := NewService(repo)
	userID := uuid.New()
	med := seedMedication(repo, userID, "08:00")

	now := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	// Samples far outside any 30-day window.
	for i := 0; i < 4; i++ {
		med.AdherenceData = append(med.AdherenceData, model.AdherenceSample{
			Date:           now.AddDate(-1, 0, i),
			TimesTaken:     1,
			TimesScheduled: 1,
		})
	}

	windowed, err := svc.AdherenceStats(context.Background(), userID, med.ID, 30, now, false)
	require.NoError(t, err)
	assert.Equal(t, 0, windowed.TotalDoses)
	assert.Equal(t, 0, windowed.Rate)

	rolling, err := svc.AdherenceStats(context.Background(), userID, med.ID, 30, now, true)
	require.NoError(t, err)
	assert.Equal(t, 4, rolling.TotalDoses)
	assert.Equal(t, 100, rolling.Rate)
}

func TestNextDoseForMedication(t *testing.T) {
	repo := newFakeMedicationRepo()
	svc := NewService(repo)
	userID := uuid.New()
	med := seedMedication(repo, userID, "08:00", "20:00")

	now := time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC)
	resp, err := svc.NextDose(context.Background(), userID, med.ID, now)
	require.NoError(t, err)

	require.NotNil(t, resp.NextDose)
	assert.Equal(t, med.ID, resp.MedicationID)
	assert.Equal(t, 20, resp.NextDose.Hour())
	assert.Equal(t, now.Day(), resp.NextDose.Day())
}

func TestTodayScheduleUsesCache(t *testing.T) {
	repo := newFakeMedicationRepo()
	svc := NewService(repo)
	userID := uuid.New()
	seedMedication(repo, userID, "08:00")

	now := time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC)
	first, err := svc.TodaySchedule(context.Background(), userID, now)
	require.NoError(t, err)
	second, err := svc.TodaySchedule(context.Background(), userID, now)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, "2026-04-15", first.Date)
	require.Len(t, first.Schedule, 1)
}

func TestMutationInvalidatesScheduleCache(t *testing.T) {
	repo := newFakeMedicationRepo()
	svc := NewService(repo)
	userID := uuid.New()
	med := seedMedication(repo, userID, "08:00")

	now := time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC)
	_, err := svc.TodaySchedule(context.Background(), userID, now)
	require.NoError(t, err)

	_, err = svc.RecordDose(context.Background(), userID, med.ID, now, "")
	require.NoError(t, err)

	_, err = svc.TodaySchedule(context.Background(), userID, now)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestDueNowFiltersByWindow(t *testing.T) {
	repo := newFakeMedicationRepo()
	svc := NewService(repo)
	userID := uuid.New()
	seedMedication(repo, userID, "08:00")
	seedMedication(repo, userID, "14:00")

	now := time.Date(2026, 4, 15, 8, 10, 0, 0, time.UTC)
	due, err := svc.DueNow(context.Background(), userID, now, 30)
	require.NoError(t, err)

	require.Len(t, due, 1)
	assert.Equal(t, "08:00", due[0].Schedule[0].Time)
}