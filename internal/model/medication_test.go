package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkDoseTaken(t *testing.T) {
	med := &Medication{
		Schedule: ScheduleEntries{
			{Time: "08:00"},
			{Time: "20:00", Skipped: true, SkipReason: "forgot"},
		},
	}
	takenAt := time.Date(2026, 4, 15, 20, 5, 0, 0, time.UTC)

	require.NoError(t, med.MarkDoseTaken(1, takenAt))

	entry := med.Schedule[1]
	assert.True(t, entry.Taken)
	require.NotNil(t, entry.TakenAt)
	assert.True(t, entry.TakenAt.Equal(takenAt))
	assert.False(t, entry.Skipped)
	assert.Empty(t, entry.SkipReason)
}

func TestMarkDoseSkippedClearsTakenState(t *testing.T) {
	takenAt := time.Now()
	med := &Medication{
		Schedule: ScheduleEntries{
			{Time: "08:00", Taken: true, TakenAt: &takenAt},
		},
	}

	require.NoError(t, med.MarkDoseSkipped(0, "out of stock"))

	entry := med.Schedule[0]
	assert.False(t, entry.Taken)
	assert.Nil(t, entry.TakenAt)
	assert.True(t, entry.Skipped)
	assert.Equal(t, "out of stock", entry.SkipReason)
}

func TestMarkDoseIndexOutOfRange(t *testing.T) {
	med := &Medication{Schedule: ScheduleEntries{{Time: "08:00"}}}

	assert.ErrorIs(t, med.MarkDoseTaken(1, time.Now()), ErrScheduleIndexOutOfRange)
	assert.ErrorIs(t, med.MarkDoseTaken(-1, time.Now()), ErrScheduleIndexOutOfRange)
	assert.ErrorIs(t, med.MarkDoseSkipped(1, ""), ErrScheduleIndexOutOfRange)
}

func TestValidClock(t *testing.T) {
	valid := []string{"00:00", "08:30", "23:59"}
	for _, s := range valid {
		assert.True(t, ValidClock(s), s)
	}

	invalid := []string{"", "8:3", "24:00", "12:60", "12-30", "12:30:00", "ab:cd"}
	for _, s := range invalid {
		assert.False(t, ValidClock(s), s)
	}
}

func TestDosageString(t *testing.T) {
	med := &Medication{DosageAmount: 500, DosageUnit: "mg"}
	assert.Equal(t, "500 mg", med.DosageString())

	med = &Medication{DosageAmount: 2.5, DosageUnit: "ml"}
	assert.Equal(t, "2.5 ml", med.DosageString())
}

func TestScheduleEntriesJSONBRoundTrip(t *testing.T) {
	takenAt := time.Date(2026, 4, 15, 8, 10, 0, 0, time.UTC)
	entries := ScheduleEntries{
		{Time: "08:00", Taken: true, TakenAt: &takenAt},
		{Time: "20:00", Skipped: true, SkipReason: "nauseous"},
	}

	value, err := entries.Value()
	require.NoError(t, err)

	var decoded ScheduleEntries
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, entries, decoded)
}
