package models

import "time"

// Notification kinds used as the data.type tag. Cancellation filters on this
// tag and must never touch entries scheduled by other subsystems.
const (
	NotificationCheckInReminder = "CHECKIN_REMINDER"
	NotificationMissedCheckIn   = "MISSED_CHECKIN"
)

// Interactive action identifiers carried by the grace-period warning.
const (
	ActionNotifyContacts = "NOTIFY_CONTACTS"
	ActionImOK           = "IM_OK"
)

type NotificationAction struct {
	ID    string `json:"id" bson:"id"`
	Label string `json:"label" bson:"label"`
}

// SafetyNotification is the payload delivered to the device. Reminder and
// warning notifications are distinguished solely by Data["type"].
type SafetyNotification struct {
	Title   string               `json:"title" bson:"title"`
	Body    string               `json:"body" bson:"body"`
	Data    map[string]string    `json:"data" bson:"data"`
	Actions []NotificationAction `json:"actions,omitempty" bson:"actions,omitempty"`
}

// Kind returns the subsystem tag of the notification, empty if untagged.
func (n SafetyNotification) Kind() string {
	if n.Data == nil {
		return ""
	}
	return n.Data["type"]
}

// ScheduledNotification is a pending entry in the schedule store.
type ScheduledNotification struct {
	ID           string             `json:"id"`
	UserID       string             `json:"userId"`
	FireAt       time.Time          `json:"fireAt"`
	RepeatsDaily bool               `json:"repeatsDaily"`
	Notification SafetyNotification `json:"notification"`
}
