package services

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"carebow/models"
	"carebow/utils"
)

// Check-in state machine: pure functions deriving a check-in status from
// settings and wall-clock time. No I/O happens here.

var ErrInvalidTimeFormat = errors.New("invalid check-in time format")

// ParseClockTime resolves a 24-hour HH:MM string to today's local instant
// relative to now.
func ParseClockTime(timeStr string, now time.Time) (time.Time, error) {
	if !utils.IsValidTimeFormat(timeStr) {
		return time.Time{}, ErrInvalidTimeFormat
	}

	parts := strings.SplitN(timeStr, ":", 2)
	hour, _ := strconv.Atoi(parts[0])
	minute, _ := strconv.Atoi(parts[1])

	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()), nil
}

// NextOccurrence returns today's HH:MM instant, or tomorrow's when that
// instant has already passed relative to now.
func NextOccurrence(timeStr string, now time.Time) (time.Time, error) {
	scheduled, err := ParseClockTime(timeStr, now)
	if err != nil {
		return time.Time{}, err
	}

	if !scheduled.After(now) {
		scheduled = scheduled.AddDate(0, 0, 1)
	}
	return scheduled, nil
}

// IsSameLocalDay reports whether two instants fall on the same local calendar day.
func IsSameLocalDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// IsCheckInDueToday reports whether today's scheduled check-in time has been
// reached. Always false when the daily check-in is disabled.
func IsCheckInDueToday(settings models.SafetySettings, now time.Time) bool {
	if !settings.DailyCheckInEnabled {
		return false
	}

	scheduled, err := ParseClockTime(settings.DailyCheckInTime, now)
	if err != nil {
		return false
	}
	return !now.Before(scheduled)
}

// HasCheckedInToday reports whether the most recent check-in falls on the
// same local calendar day as now.
func HasCheckedInToday(settings models.SafetySettings, now time.Time) bool {
	if settings.LastCheckInAt == nil {
		return false
	}
	return IsSameLocalDay(*settings.LastCheckInAt, now)
}

// HasMissedDeadline reports whether the grace period has elapsed with no
// check-in recorded today.
func HasMissedDeadline(settings models.SafetySettings, now time.Time) bool {
	if !settings.DailyCheckInEnabled {
		return false
	}
	if HasCheckedInToday(settings, now) {
		return false
	}

	scheduled, err := ParseClockTime(settings.DailyCheckInTime, now)
	if err != nil {
		return false
	}

	deadline := scheduled.Add(time.Duration(settings.GracePeriodMinutes) * time.Minute)
	return !now.Before(deadline)
}

// DidCheckInLate reports whether today's check-in landed after that day's
// deadline. A check-in from a prior day never counts as late for today.
func DidCheckInLate(settings models.SafetySettings, now time.Time) bool {
	if settings.LastCheckInAt == nil {
		return false
	}

	checkIn := *settings.LastCheckInAt
	if !IsSameLocalDay(checkIn, now) {
		return false
	}

	scheduled, err := ParseClockTime(settings.DailyCheckInTime, checkIn)
	if err != nil {
		return false
	}

	deadline := scheduled.Add(time.Duration(settings.GracePeriodMinutes) * time.Minute)
	return checkIn.After(deadline)
}

// GetCheckInState combines the predicates above into a single derived state.
// CHECKED_IN_LATE wins over CHECKED_IN when today's check-in landed after the
// deadline; MISSED applies only once the deadline has passed with no check-in.
func GetCheckInState(settings models.SafetySettings, now time.Time) models.CheckInState {
	state := models.CheckInState{Status: models.CheckInNotDue}

	if !settings.DailyCheckInEnabled {
		return state
	}

	scheduled, err := ParseClockTime(settings.DailyCheckInTime, now)
	if err != nil {
		return state
	}

	state.ScheduledTime = scheduled
	state.DeadlineTime = scheduled.Add(time.Duration(settings.GracePeriodMinutes) * time.Minute)

	if HasCheckedInToday(settings, now) {
		state.CheckInTime = settings.LastCheckInAt
		if DidCheckInLate(settings, now) {
			state.Status = models.CheckInConfirmedLate
		} else {
			state.Status = models.CheckInConfirmed
		}
		return state
	}

	if HasMissedDeadline(settings, now) {
		state.Status = models.CheckInMissed
		state.IsOverdue = true
		return state
	}

	if IsCheckInDueToday(settings, now) {
		state.Status = models.CheckInDue
	}
	return state
}
