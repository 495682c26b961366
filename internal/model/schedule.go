package model

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleItem is one per-dose line of a day's assembled schedule.
// Purely derived output; building a schedule never mutates the source records.
type ScheduleItem struct {
	MedicationID   uuid.UUID `json:"medication_id"`
	MedicationName string    `json:"medication_name"`
	Dosage         string    `json:"dosage"`
	Time           string    `json:"time"`
	ScheduledTime  time.Time `json:"scheduled_time"`
	Taken          bool      `json:"taken"`
	IsPastDue      bool      `json:"is_past_due"`
}

// DaySchedule is the assembled schedule for one calendar day
type DaySchedule struct {
	Date     string         `json:"date"`
	Schedule []ScheduleItem `json:"schedule"`
}

// AdherenceStats summarizes adherence over a lookback window
type AdherenceStats struct {
	Rate        int `json:"rate"`
	TakenDoses  int `json:"taken_doses"`
	MissedDoses int `json:"missed_doses"`
	TotalDoses  int `json:"total_doses"`
	Percentage  int `json:"percentage"`
}

// NextDoseResponse reports the next upcoming dose instant, null when the
// medication has no configured schedule
type NextDoseResponse struct {
	MedicationID uuid.UUID  `json:"medication_id"`
	NextDose     *time.Time `json:"next_dose"`
}
