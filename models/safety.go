package models

import (
	"time"
)

// SafetySettings is the per-user check-in configuration. It is owned and
// mutated exclusively by the safety coordinator.
type SafetySettings struct {
	DailyCheckInEnabled          bool             `json:"dailyCheckInEnabled" bson:"dailyCheckInEnabled"`
	DailyCheckInTime             string           `json:"dailyCheckInTime" bson:"dailyCheckInTime"` // 24-hour HH:MM
	GracePeriodMinutes           int              `json:"gracePeriodMinutes" bson:"gracePeriodMinutes"`
	EscalationEnabled            bool             `json:"escalationEnabled" bson:"escalationEnabled"`
	EscalationOrder              []EscalationStep `json:"escalationOrder" bson:"escalationOrder"`
	ShareLocationOnSOS           bool             `json:"shareLocationOnSOS" bson:"shareLocationOnSOS"`
	ShareLocationOnMissedCheckIn bool             `json:"shareLocationOnMissedCheckIn" bson:"shareLocationOnMissedCheckIn"`
	LastCheckInAt                *time.Time       `json:"lastCheckInAt,omitempty" bson:"lastCheckInAt,omitempty"`
	LastMissedCheckInAt          *time.Time       `json:"lastMissedCheckInAt,omitempty" bson:"lastMissedCheckInAt,omitempty"`

	// Handles of the currently scheduled reminder/warning notifications,
	// opaque to everything but the scheduler.
	ReminderNotificationID string `json:"reminderNotificationId,omitempty" bson:"reminderNotificationId,omitempty"`
	WarningNotificationID  string `json:"warningNotificationId,omitempty" bson:"warningNotificationId,omitempty"`
}

type EscalationStep string

const (
	EscalatePrimaryContact EscalationStep = "PRIMARY_CONTACT"
	EscalateAllContacts    EscalationStep = "ALL_CONTACTS"
)

// DefaultSafetySettings returns the settings applied to new users and by
// ResetSettings.
func DefaultSafetySettings() SafetySettings {
	return SafetySettings{
		DailyCheckInEnabled:          false,
		DailyCheckInTime:             "09:00",
		GracePeriodMinutes:           60,
		EscalationEnabled:            true,
		EscalationOrder:              []EscalationStep{EscalatePrimaryContact, EscalateAllContacts},
		ShareLocationOnSOS:           true,
		ShareLocationOnMissedCheckIn: true,
	}
}

// SafetyEvent is an immutable record of a safety action. The event log is
// append-only and capped at EventHistoryLimit entries, newest first.
type SafetyEvent struct {
	ID        string        `json:"id" bson:"id"`
	Type      string        `json:"type" bson:"type"`
	UserID    string        `json:"userId" bson:"userId"`
	Timestamp time.Time     `json:"timestamp" bson:"timestamp"`
	Metadata  EventMetadata `json:"metadata" bson:"metadata"`
}

type EventMetadata struct {
	Location         *LocationFix `json:"location,omitempty" bson:"location,omitempty"`
	Note             string       `json:"note,omitempty" bson:"note,omitempty"`
	ContactsNotified []string     `json:"contactsNotified,omitempty" bson:"contactsNotified,omitempty"`
	WasLate          bool         `json:"wasLate,omitempty" bson:"wasLate,omitempty"`
}

const (
	EventSOSTriggered     = "SOS_TRIGGERED"
	EventCheckInConfirmed = "CHECKIN_CONFIRMED"
	EventCheckInMissed    = "CHECKIN_MISSED"
	EventTestAlertSent    = "TEST_ALERT_SENT"
)

const EventHistoryLimit = 100

// SafetyContact is an emergency contact. At most one contact is primary; a
// non-empty contact list always has exactly one primary.
type SafetyContact struct {
	ID                 string    `json:"id" bson:"id"`
	Name               string    `json:"name" bson:"name"`
	Relationship       string    `json:"relationship,omitempty" bson:"relationship,omitempty"`
	PhoneNumber        string    `json:"phoneNumber" bson:"phoneNumber"`
	CountryCode        string    `json:"countryCode,omitempty" bson:"countryCode,omitempty"`
	IsPrimary          bool      `json:"isPrimary" bson:"isPrimary"`
	CanReceiveSMS      bool      `json:"canReceiveSMS" bson:"canReceiveSMS"`
	CanReceiveWhatsApp bool      `json:"canReceiveWhatsApp" bson:"canReceiveWhatsApp"`
	CreatedAt          time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt" bson:"updatedAt"`
}

// CheckInState is derived from settings and wall-clock time on demand; it is
// never persisted.
type CheckInState struct {
	Status        string     `json:"status"`
	CheckInTime   *time.Time `json:"checkInTime,omitempty"`
	ScheduledTime time.Time  `json:"scheduledTime,omitempty"`
	DeadlineTime  time.Time  `json:"deadlineTime,omitempty"`
	IsOverdue     bool       `json:"isOverdue"`
}

const (
	CheckInNotDue        = "NOT_DUE"
	CheckInDue           = "DUE"
	CheckInConfirmed     = "CHECKED_IN"
	CheckInMissed        = "MISSED"
	CheckInConfirmedLate = "CHECKED_IN_LATE"
)

// PermissionStatus mirrors an OS permission grant.
type PermissionStatus string

const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"
)

type SafetyPermissions struct {
	Location      PermissionStatus `json:"location" bson:"location"`
	Notifications PermissionStatus `json:"notifications" bson:"notifications"`
}

func DefaultSafetyPermissions() SafetyPermissions {
	return SafetyPermissions{
		Location:      PermissionUndetermined,
		Notifications: PermissionUndetermined,
	}
}

// LocationFix is a single position sample from the device.
type LocationFix struct {
	Latitude  float64   `json:"lat" bson:"lat"`
	Longitude float64   `json:"lng" bson:"lng"`
	Accuracy  float64   `json:"accuracy" bson:"accuracy"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// SafetyState is the durable state document, one per user. The SOS-in-progress
// flag and transient loading flags are deliberately absent.
type SafetyState struct {
	UserID       string            `json:"userId" bson:"_id"`
	DisplayName  string            `json:"displayName,omitempty" bson:"displayName,omitempty"`
	Settings     SafetySettings    `json:"settings" bson:"settings"`
	Events       []SafetyEvent     `json:"events" bson:"events"`
	Contacts     []SafetyContact   `json:"contacts" bson:"contacts"`
	Permissions  SafetyPermissions `json:"permissions" bson:"permissions"`
	DeviceTokens []string          `json:"deviceTokens,omitempty" bson:"deviceTokens,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// NewSafetyState returns the default state for a user with no stored document.
func NewSafetyState(userID string) *SafetyState {
	return &SafetyState{
		UserID:      userID,
		Settings:    DefaultSafetySettings(),
		Events:      []SafetyEvent{},
		Contacts:    []SafetyContact{},
		Permissions: DefaultSafetyPermissions(),
		UpdatedAt:   time.Now(),
	}
}

// PrimaryContact returns the primary contact, or nil for an empty list.
func (s *SafetyState) PrimaryContact() *SafetyContact {
	for i := range s.Contacts {
		if s.Contacts[i].IsPrimary {
			return &s.Contacts[i]
		}
	}
	return nil
}
