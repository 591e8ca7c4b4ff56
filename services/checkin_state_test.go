package services

import (
	"testing"
	"time"

	"carebow/models"
)

func settingsAt(checkInTime string, graceMinutes int) models.SafetySettings {
	s := models.DefaultSafetySettings()
	s.DailyCheckInEnabled = true
	s.DailyCheckInTime = checkInTime
	s.GracePeriodMinutes = graceMinutes
	return s
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 23, hour, minute, 0, 0, time.Local)
}

func TestParseClockTime(t *testing.T) {
	now := at(12, 0)

	got, err := ParseClockTime("09:30", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Hour() != 9 || got.Minute() != 30 {
		t.Errorf("expected 09:30, got %02d:%02d", got.Hour(), got.Minute())
	}
	if got.Day() != now.Day() {
		t.Errorf("expected same day as now, got day %d", got.Day())
	}

	for _, invalid := range []string{"", "9h30", "24:00", "12:60", "ab:cd"} {
		if _, err := ParseClockTime(invalid, now); err == nil {
			t.Errorf("expected error for %q", invalid)
		}
	}
}

func TestNextOccurrenceRollsToTomorrow(t *testing.T) {
	now := at(10, 0)

	next, err := NextOccurrence("09:00", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Day() != now.Day()+1 {
		t.Errorf("expected tomorrow, got day %d", next.Day())
	}

	next, err = NextOccurrence("11:00", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Day() != now.Day() {
		t.Errorf("expected today, got day %d", next.Day())
	}
}

func TestIsCheckInDueToday(t *testing.T) {
	settings := settingsAt("09:00", 30)

	if IsCheckInDueToday(settings, at(8, 59)) {
		t.Error("check-in should not be due before the scheduled time")
	}
	if !IsCheckInDueToday(settings, at(9, 0)) {
		t.Error("check-in should be due at the scheduled time")
	}

	settings.DailyCheckInEnabled = false
	if IsCheckInDueToday(settings, at(12, 0)) {
		t.Error("check-in should never be due when disabled")
	}
}

func TestHasCheckedInToday(t *testing.T) {
	settings := settingsAt("09:00", 30)

	if HasCheckedInToday(settings, at(10, 0)) {
		t.Error("no recorded check-in should mean not checked in")
	}

	yesterday := at(9, 5).AddDate(0, 0, -1)
	settings.LastCheckInAt = &yesterday
	if HasCheckedInToday(settings, at(10, 0)) {
		t.Error("yesterday's check-in must not count for today")
	}

	today := at(9, 5)
	settings.LastCheckInAt = &today
	if !HasCheckedInToday(settings, at(10, 0)) {
		t.Error("today's check-in should count")
	}
}

func TestHasMissedDeadline(t *testing.T) {
	settings := settingsAt("09:00", 30)

	if HasMissedDeadline(settings, at(9, 29)) {
		t.Error("deadline not yet reached at 09:29")
	}
	if !HasMissedDeadline(settings, at(9, 30)) {
		t.Error("deadline reached at 09:30 with no check-in")
	}

	checkIn := at(9, 10)
	settings.LastCheckInAt = &checkIn
	if HasMissedDeadline(settings, at(9, 45)) {
		t.Error("a check-in before the deadline clears the miss")
	}
}

func TestDidCheckInLate(t *testing.T) {
	settings := settingsAt("09:00", 30)

	late := at(9, 45)
	settings.LastCheckInAt = &late
	if !DidCheckInLate(settings, at(10, 0)) {
		t.Error("check-in at 09:45 against a 09:30 deadline is late")
	}

	onTime := at(9, 15)
	settings.LastCheckInAt = &onTime
	if DidCheckInLate(settings, at(10, 0)) {
		t.Error("check-in at 09:15 is on time")
	}

	// A late check-in from yesterday does not make today late.
	lateYesterday := at(9, 45).AddDate(0, 0, -1)
	settings.LastCheckInAt = &lateYesterday
	if DidCheckInLate(settings, at(10, 0)) {
		t.Error("yesterday's late check-in must not mark today late")
	}
}

func TestGetCheckInStateTransitions(t *testing.T) {
	settings := settingsAt("09:00", 30)

	state := GetCheckInState(settings, at(8, 0))
	if state.Status != models.CheckInNotDue {
		t.Errorf("expected NOT_DUE at 08:00, got %s", state.Status)
	}

	state = GetCheckInState(settings, at(9, 10))
	if state.Status != models.CheckInDue {
		t.Errorf("expected DUE at 09:10, got %s", state.Status)
	}

	state = GetCheckInState(settings, at(9, 45))
	if state.Status != models.CheckInMissed {
		t.Errorf("expected MISSED at 09:45, got %s", state.Status)
	}
	if !state.IsOverdue {
		t.Error("missed state should be flagged overdue")
	}

	checkIn := at(9, 5)
	settings.LastCheckInAt = &checkIn
	state = GetCheckInState(settings, at(10, 0))
	if state.Status != models.CheckInConfirmed {
		t.Errorf("expected CHECKED_IN after on-time check-in, got %s", state.Status)
	}
	if state.CheckInTime == nil || !state.CheckInTime.Equal(checkIn) {
		t.Error("state should carry the check-in time")
	}

	lateCheckIn := at(9, 50)
	settings.LastCheckInAt = &lateCheckIn
	state = GetCheckInState(settings, at(10, 0))
	if state.Status != models.CheckInConfirmedLate {
		t.Errorf("expected CHECKED_IN_LATE after late check-in, got %s", state.Status)
	}

	settings.DailyCheckInEnabled = false
	state = GetCheckInState(settings, at(10, 0))
	if state.Status != models.CheckInNotDue {
		t.Errorf("expected NOT_DUE when disabled, got %s", state.Status)
	}
}

func TestGetCheckInStateDeadline(t *testing.T) {
	settings := settingsAt("09:00", 45)

	state := GetCheckInState(settings, at(9, 10))
	if state.ScheduledTime.Hour() != 9 || state.ScheduledTime.Minute() != 0 {
		t.Errorf("unexpected scheduled time %v", state.ScheduledTime)
	}
	if state.DeadlineTime.Hour() != 9 || state.DeadlineTime.Minute() != 45 {
		t.Errorf("unexpected deadline %v", state.DeadlineTime)
	}
}
