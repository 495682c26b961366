package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Dosage unit constants
const (
	DosageUnitMg       = "mg"
	DosageUnitG        = "g"
	DosageUnitMl       = "ml"
	DosageUnitTablets  = "tablets"
	DosageUnitCapsules = "capsules"
	DosageUnitDrops    = "drops"
	DosageUnitPuffs    = "puffs"
	DosageUnitUnits    = "units"
)

// Frequency constants
const (
	FrequencyOnceDaily       = "once-daily"
	FrequencyTwiceDaily      = "twice-daily"
	FrequencyThreeTimesDaily = "three-times-daily"
	FrequencyFourTimesDaily  = "four-times-daily"
	FrequencyAsNeeded        = "as-needed"
	FrequencyCustom          = "custom"
)

// ErrScheduleIndexOutOfRange is returned when a dose mutation addresses a
// schedule slot that does not exist. Callers must not swallow it: silently
// ignoring a bad index would corrupt adherence accounting.
var ErrScheduleIndexOutOfRange = errors.New("schedule index out of range")

// ScheduleEntry is one configured daily dose slot and its per-day status
type ScheduleEntry struct {
	Time       string     `json:"time"`
	Taken      bool       `json:"taken"`
	TakenAt    *time.Time `json:"taken_at,omitempty"`
	Skipped    bool       `json:"skipped"`
	SkipReason string     `json:"skip_reason,omitempty"`
}

// DoseEvent is a logged record of an actual dose administration,
// independent of the configured schedule slots
type DoseEvent struct {
	TakenAt time.Time `json:"taken_at"`
	Notes   string    `json:"notes,omitempty"`
}

// AdherenceSample is one day's rollup of taken vs. scheduled dose counts
type AdherenceSample struct {
	Date           time.Time `json:"date"`
	Taken          bool      `json:"taken"`
	TimesTaken     int       `json:"times_taken"`
	TimesScheduled int       `json:"times_scheduled"`
	AdherenceRate  float64   `json:"adherence_rate"`
}

// RefillReminder holds refill tracking configuration
type RefillReminder struct {
	Enabled         bool       `json:"enabled"`
	DaysBeforeEmpty int        `json:"days_before_empty"`
	CurrentSupply   int        `json:"current_supply"`
	LastRefillDate  *time.Time `json:"last_refill_date,omitempty"`
}

// JSONB column wrappers. Embedded sequences are stored as jsonb so a
// medication row carries its schedule and history as one document.
type ScheduleEntries []ScheduleEntry
type DoseEvents []DoseEvent
type AdherenceSamples []AdherenceSample

func (s ScheduleEntries) Value() (driver.Value, error)  { return jsonbValue(s) }
func (s *ScheduleEntries) Scan(src interface{}) error   { return jsonbScan(src, s) }
func (d DoseEvents) Value() (driver.Value, error)       { return jsonbValue(d) }
func (d *DoseEvents) Scan(src interface{}) error        { return jsonbScan(src, d) }
func (a AdherenceSamples) Value() (driver.Value, error) { return jsonbValue(a) }
func (a *AdherenceSamples) Scan(src interface{}) error  { return jsonbScan(src, a) }
func (r RefillReminder) Value() (driver.Value, error)   { return jsonbValue(r) }
func (r *RefillReminder) Scan(src interface{}) error    { return jsonbScan(src, r) }

func jsonbValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jsonb column: %w", err)
	}
	return b, nil
}

func jsonbScan(src, dst interface{}) error {
	if src == nil {
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

// Medication represents one prescribed medication for one user
type Medication struct {
	Base
	UserID         uuid.UUID        `db:"user_id" json:"user_id"`
	Name           string           `db:"name" json:"name"`
	DosageAmount   float64          `db:"dosage_amount" json:"dosage_amount"`
	DosageUnit     string           `db:"dosage_unit" json:"dosage_unit"`
	Frequency      string           `db:"frequency" json:"frequency"`
	Instructions   string           `db:"instructions" json:"instructions,omitempty"`
	PrescribedBy   *string          `db:"prescribed_by" json:"prescribed_by,omitempty"`
	Color          string           `db:"color" json:"color"`
	SideEffects    pq.StringArray   `db:"side_effects" json:"side_effects,omitempty"`
	Schedule       ScheduleEntries  `db:"schedule" json:"schedule"`
	DoseEvents     DoseEvents       `db:"dose_events" json:"dose_events"`
	AdherenceData  AdherenceSamples `db:"adherence_data" json:"adherence_data"`
	RefillReminder RefillReminder   `db:"refill_reminder" json:"refill_reminder"`
	StartDate      time.Time        `db:"start_date" json:"start_date"`
	EndDate        *time.Time       `db:"end_date" json:"end_date,omitempty"`
	IsActive       bool             `db:"is_active" json:"is_active"`
}

// DosageString renders the dosage for display, e.g. "500 mg"
func (m *Medication) DosageString() string {
	amount := strconv.FormatFloat(m.DosageAmount, 'f', -1, 64)
	return amount + " " + m.DosageUnit
}

// MarkDoseTaken flags the schedule slot at index as taken
func (m *Medication) MarkDoseTaken(index int, takenAt time.Time) error {
	if index < 0 || index >= len(m.Schedule) {
		return ErrScheduleIndexOutOfRange
	}
	m.Schedule[index].Taken = true
	m.Schedule[index].TakenAt = &takenAt
	m.Schedule[index].Skipped = false
	m.Schedule[index].SkipReason = ""
	return nil
}

// MarkDoseSkipped flags the schedule slot at index as skipped
func (m *Medication) MarkDoseSkipped(index int, reason string) error {
	if index < 0 || index >= len(m.Schedule) {
		return ErrScheduleIndexOutOfRange
	}
	m.Schedule[index].Taken = false
	m.Schedule[index].TakenAt = nil
	m.Schedule[index].Skipped = true
	m.Schedule[index].SkipReason = reason
	return nil
}

// ValidClock reports whether s is a 24-hour HH:MM time string
func ValidClock(s string) bool {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[1]) != 2 {
		return false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return false
	}
	return true
}

// CreateMedicationRequest represents medication creation parameters
type CreateMedicationRequest struct {
	Name         string     `json:"name" binding:"required,max=100"`
	DosageAmount float64    `json:"dosage_amount" binding:"required,gt=0"`
	DosageUnit   string     `json:"dosage_unit" binding:"required,oneof=mg g ml tablets capsules drops puffs units"`
	Frequency    string     `json:"frequency" binding:"required,oneof=once-daily twice-daily three-times-daily four-times-daily as-needed custom"`
	Times        []string   `json:"times" binding:"required,min=1,dive,clocktime"`
	StartDate    time.Time  `json:"start_date" binding:"required"`
	EndDate      *time.Time `json:"end_date"`
	Instructions string     `json:"instructions" binding:"max=500"`
	PrescribedBy *string    `json:"prescribed_by"`
	Color        string     `json:"color"`
	SideEffects  []string   `json:"side_effects"`
}

// UpdateMedicationRequest represents medication update parameters
type UpdateMedicationRequest struct {
	Name         *string    `json:"name" binding:"omitempty,max=100"`
	DosageAmount *float64   `json:"dosage_amount" binding:"omitempty,gt=0"`
	DosageUnit   *string    `json:"dosage_unit" binding:"omitempty,oneof=mg g ml tablets capsules drops puffs units"`
	Frequency    *string    `json:"frequency" binding:"omitempty,oneof=once-daily twice-daily three-times-daily four-times-daily as-needed custom"`
	Times        []string   `json:"times" binding:"omitempty,min=1,dive,clocktime"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
	Instructions *string    `json:"instructions" binding:"omitempty,max=500"`
	PrescribedBy *string    `json:"prescribed_by"`
	Color        *string    `json:"color"`
	SideEffects  []string   `json:"side_effects"`
	IsActive     *bool      `json:"is_active"`
}

// RecordDoseRequest represents a logged dose administration
type RecordDoseRequest struct {
	TakenAt *time.Time `json:"taken_at"`
	Notes   string     `json:"notes" binding:"max=500"`
}

// SkipDoseRequest carries the reason a scheduled slot was skipped
type SkipDoseRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}
