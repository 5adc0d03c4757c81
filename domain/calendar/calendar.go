// Package calendar holds the DST-aware calendar arithmetic shared by every
// pipeline stage. The analysis zone observes EU daylight saving: clocks skip
// one hour on the last Sunday of March and repeat one hour on the last
// Sunday of October. All predicates expect timestamps already converted to
// the analysis zone.
package calendar

import "time"

// DefaultZone is the fixed analysis time zone for sensor data.
const DefaultZone = "Europe/Helsinki"

// TransitionHourOffset is the intra-day hour offset (from midnight) at which
// the DST-affected hour is inserted into or removed from a daily profile.
const TransitionHourOffset = 3

// DayKind classifies a calendar day by its true length in the analysis zone.
type DayKind int

const (
	Regular DayKind = iota // 24 hours
	Short                  // spring-forward Sunday, 23 hours
	Long                   // fall-back Sunday, 25 hours
)

// String returns a human-readable day kind.
func (k DayKind) String() string {
	switch k {
	case Short:
		return "short"
	case Long:
		return "long"
	default:
		return "regular"
	}
}

// Steps resolves the number of grid steps a day of this kind contains,
// given the regular per-day and per-hour step counts. This is the single
// day-length resolver used by windowing, flag expansion, anomaly expansion
// and seasonal profile selection.
func (k DayKind) Steps(stepsPerDay, stepsPerHour int) int {
	switch k {
	case Short:
		return stepsPerDay - stepsPerHour
	case Long:
		return stepsPerDay + stepsPerHour
	default:
		return stepsPerDay
	}
}

// KindOf classifies the calendar day containing t.
func KindOf(t time.Time) DayKind {
	switch {
	case IsLastSundayOfMarch(t):
		return Short
	case IsLastSundayOfOctober(t):
		return Long
	default:
		return Regular
	}
}

// IsLastSundayOf reports whether t falls on a Sunday in the given month and
// adding seven days moves into the next month.
func IsLastSundayOf(month time.Month, t time.Time) bool {
	if t.Month() != month || t.Weekday() != time.Sunday {
		return false
	}
	return t.AddDate(0, 0, 7).Month() != month
}

// IsLastSundayOfMarch reports the spring-forward DST boundary day.
func IsLastSundayOfMarch(t time.Time) bool {
	return IsLastSundayOf(time.March, t)
}

// IsLastSundayOfOctober reports the fall-back DST boundary day.
func IsLastSundayOfOctober(t time.Time) bool {
	return IsLastSundayOf(time.October, t)
}

// IsTwoAM reports an exact 02:00 boundary.
func IsTwoAM(t time.Time) bool {
	return t.Hour() == 2 && t.Minute() == 0
}

// IsFourAM reports an exact 04:00 boundary.
func IsFourAM(t time.Time) bool {
	return t.Hour() == 4 && t.Minute() == 0
}

// IsBeforeSix reports times strictly before 06:00.
func IsBeforeSix(t time.Time) bool {
	return t.Hour() < 6
}

// IsLateNight reports times after 23:00 but not exactly on the hour.
func IsLateNight(t time.Time) bool {
	return t.Hour() == 23 && t.Minute() != 0
}

// IsNight reports the window in which zero observed activity is treated as
// a true zero rather than a sensor gap.
func IsNight(t time.Time) bool {
	return IsBeforeSix(t) || IsLateNight(t)
}

// IsWorkday reports Monday through Friday.
func IsWorkday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
