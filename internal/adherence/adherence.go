// Package adherence implements the pure computations behind dose
// scheduling and adherence reporting: next-dose lookup, rolling and
// windowed adherence rates, daily schedule assembly and due-now checks.
// Every operation takes its reference instant as a parameter and performs
// no I/O, so results are deterministic for a given input.
package adherence

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/meditrack/adherence-api/internal/model"
)

// DefaultLookbackDays is the default adherence aggregation window
const DefaultLookbackDays = 30

// DefaultDueWindowMinutes is the default due-now window around the current time
const DefaultDueWindowMinutes = 30

// doseMatchWindow is how far a logged dose event may sit from a scheduled
// slot and still count as that slot being taken. The match is inclusive of
// exactly one hour.
const doseMatchWindow = time.Hour

// ClockMinutes parses a 24-hour HH:MM string into minutes since midnight
func ClockMinutes(clock string) (int, error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", clock)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", clock)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", clock)
	}
	return h*60 + m, nil
}

// NextDose returns the earliest upcoming dose instant for the given
// schedule, or nil when no slots are configured.
//
// Slots are scanned in stored order: the first untaken slot later today
// wins; when every slot today has passed or is taken, the first slot in
// list order is materialized on tomorrow's date. The wrap deliberately
// follows list order, not clock order, so callers that care about
// chronological correctness across midnight must keep the schedule sorted
// by time.
func NextDose(schedule []model.ScheduleEntry, now time.Time) *time.Time {
	if len(schedule) == 0 {
		return nil
	}

	nowMinutes := now.Hour()*60 + now.Minute()

	for _, slot := range schedule {
		minutes, err := ClockMinutes(slot.Time)
		if err != nil {
			continue
		}
		if minutes > nowMinutes && !slot.Taken {
			next := atMinutes(now, minutes)
			return &next
		}
	}

	minutes, err := ClockMinutes(schedule[0].Time)
	if err != nil {
		return nil
	}
	next := atMinutes(now.AddDate(0, 0, 1), minutes)
	return &next
}

// RollingRate aggregates the most recent n samples regardless of their
// dates and returns an integer percentage in [0,100]. A window with zero
// scheduled doses yields 0, never a division error.
func RollingRate(samples []model.AdherenceSample, n int) int {
	if n <= 0 {
		n = DefaultLookbackDays
	}
	if len(samples) > n {
		samples = samples[len(samples)-n:]
	}
	return percentage(samples)
}

// RollingTotals sums taken and scheduled doses across the most recent n
// samples
func RollingTotals(samples []model.AdherenceSample, n int) (taken, scheduled int) {
	if n <= 0 {
		n = DefaultLookbackDays
	}
	if len(samples) > n {
		samples = samples[len(samples)-n:]
	}
	for _, s := range samples {
		taken += s.TimesTaken
		scheduled += s.TimesScheduled
	}
	return taken, scheduled
}

// WindowedRate aggregates samples whose date falls within [now-days, now]
// and returns an integer percentage in [0,100]. Unlike RollingRate, gaps
// in the sample history shrink the selection.
func WindowedRate(samples []model.AdherenceSample, now time.Time, days int) int {
	if days <= 0 {
		days = DefaultLookbackDays
	}
	start := now.AddDate(0, 0, -days)

	var selected []model.AdherenceSample
	for _, s := range samples {
		if !s.Date.Before(start) && !s.Date.After(now) {
			selected = append(selected, s)
		}
	}
	return percentage(selected)
}

// WindowTotals sums taken and scheduled doses across samples within
// [now-days, now]
func WindowTotals(samples []model.AdherenceSample, now time.Time, days int) (taken, scheduled int) {
	if days <= 0 {
		days = DefaultLookbackDays
	}
	start := now.AddDate(0, 0, -days)
	for _, s := range samples {
		if !s.Date.Before(start) && !s.Date.After(now) {
			taken += s.TimesTaken
			scheduled += s.TimesScheduled
		}
	}
	return taken, scheduled
}

// BuildDaySchedule assembles the per-dose line items for one user's day.
//
// Records outside their active period are dropped. A slot counts as taken
// when any dose event falls inside [startOfDay, endOfDay) and within one
// hour of the slot's scheduled instant. The match does not consume events,
// so a single event can satisfy several nearby slots; that imprecision is
// a known limitation kept for compatibility with historical data.
func BuildDaySchedule(medications []*model.Medication, now, startOfDay, endOfDay time.Time) []model.ScheduleItem {
	items := make([]model.ScheduleItem, 0)

	for _, med := range medications {
		if !med.IsActive {
			continue
		}
		if med.StartDate.After(now) {
			continue
		}
		if med.EndDate != nil && med.EndDate.Before(now) {
			continue
		}

		for _, slot := range med.Schedule {
			minutes, err := ClockMinutes(slot.Time)
			if err != nil {
				continue
			}
			scheduled := startOfDay.Add(time.Duration(minutes) * time.Minute)
			taken := doseLoggedNear(med.DoseEvents, scheduled, startOfDay, endOfDay)

			items = append(items, model.ScheduleItem{
				MedicationID:   med.ID,
				MedicationName: med.Name,
				Dosage:         med.DosageString(),
				Time:           slot.Time,
				ScheduledTime:  scheduled,
				Taken:          taken,
				IsPastDue:      scheduled.Before(now) && !taken,
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ScheduledTime.Before(items[j].ScheduledTime)
	})

	return items
}

// FindDueNow returns the medications having at least one untaken slot
// whose time-of-day lies within windowMinutes of now, inclusive on both
// ends. Each medication appears at most once.
func FindDueNow(medications []*model.Medication, now time.Time, windowMinutes int) []*model.Medication {
	if windowMinutes <= 0 {
		windowMinutes = DefaultDueWindowMinutes
	}

	nowMinutes := now.Hour()*60 + now.Minute()
	lo := nowMinutes - windowMinutes
	hi := nowMinutes + windowMinutes

	due := make([]*model.Medication, 0)
	for _, med := range medications {
		if !med.IsActive {
			continue
		}
		for _, slot := range med.Schedule {
			if slot.Taken {
				continue
			}
			minutes, err := ClockMinutes(slot.Time)
			if err != nil {
				continue
			}
			if minutes >= lo && minutes <= hi {
				due = append(due, med)
				break
			}
		}
	}
	return due
}

// DaysRemaining reports whole days until endDate, never negative.
// A medication without an end date has no remaining-days figure.
func DaysRemaining(endDate *time.Time, now time.Time) *int {
	if endDate == nil {
		return nil
	}
	days := int(math.Ceil(endDate.Sub(now).Hours() / 24))
	if days < 0 {
		days = 0
	}
	return &days
}

func percentage(samples []model.AdherenceSample) int {
	var taken, scheduled int
	for _, s := range samples {
		taken += s.TimesTaken
		scheduled += s.TimesScheduled
	}
	if scheduled == 0 {
		return 0
	}
	return int(math.Round(100 * float64(taken) / float64(scheduled)))
}

func doseLoggedNear(events []model.DoseEvent, scheduled, startOfDay, endOfDay time.Time) bool {
	for _, ev := range events {
		if ev.TakenAt.Before(startOfDay) || !ev.TakenAt.Before(endOfDay) {
			continue
		}
		diff := ev.TakenAt.Sub(scheduled)
		if diff < 0 {
			diff = -diff
		}
		if diff <= doseMatchWindow {
			return true
		}
	}
	return false
}

func atMinutes(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}
