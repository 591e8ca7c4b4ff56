package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"carebow/models"
	"carebow/utils"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// NotificationStore is the durable schedule behind the notification
// scheduler. Entries from other subsystems may share the store; everything
// here filters by the safety tag before touching an entry.
type NotificationStore interface {
	Add(ctx context.Context, entry models.ScheduledNotification) error
	Remove(ctx context.Context, userID string, ids []string) error
	ListUser(ctx context.Context, userID string) ([]models.ScheduledNotification, error)
	Due(ctx context.Context, now time.Time, limit int) ([]models.ScheduledNotification, error)
}

// NotificationScheduler schedules and cancels the subsystem's local reminder
// and deadline-warning notifications. Rescheduling is always cancel-then-
// create so repeated settings changes never accumulate duplicates.
type NotificationScheduler struct {
	store NotificationStore
}

func NewNotificationScheduler(store NotificationStore) *NotificationScheduler {
	return &NotificationScheduler{store: store}
}

// ScheduleDailyReminder cancels any existing safety notifications for the
// user, then registers the recurring daily reminder at the configured
// check-in time.
func (ns *NotificationScheduler) ScheduleDailyReminder(ctx context.Context, userID string, settings models.SafetySettings) (string, error) {
	if err := ns.CancelScheduled(ctx, userID); err != nil {
		return "", err
	}

	fireAt, err := NextOccurrence(settings.DailyCheckInTime, time.Now())
	if err != nil {
		return "", err
	}

	entry := models.ScheduledNotification{
		ID:           utils.GenerateUUID(),
		UserID:       userID,
		FireAt:       fireAt,
		RepeatsDaily: true,
		Notification: models.SafetyNotification{
			Title: "Daily Check-In Reminder",
			Body:  "Time for your daily check-in. Let your loved ones know you're OK.",
			Data:  map[string]string{"type": models.NotificationCheckInReminder},
		},
	}

	if err := ns.store.Add(ctx, entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// ScheduleGraceWarning registers the one-shot deadline warning at scheduled
// time plus grace period, rolled to tomorrow's occurrence when that instant
// has already passed. The warning carries the two interactive actions, both
// of which bring the app to the foreground.
func (ns *NotificationScheduler) ScheduleGraceWarning(ctx context.Context, userID string, settings models.SafetySettings) (string, error) {
	now := time.Now()

	scheduled, err := ParseClockTime(settings.DailyCheckInTime, now)
	if err != nil {
		return "", err
	}

	fireAt := scheduled.Add(time.Duration(settings.GracePeriodMinutes) * time.Minute)
	if !fireAt.After(now) {
		fireAt = fireAt.AddDate(0, 0, 1)
	}

	entry := models.ScheduledNotification{
		ID:     utils.GenerateUUID(),
		UserID: userID,
		FireAt: fireAt,
		Notification: models.SafetyNotification{
			Title: "Missed Check-In",
			Body:  "You missed your check-in deadline. Your emergency contacts may be notified.",
			Data:  map[string]string{"type": models.NotificationMissedCheckIn},
			Actions: []models.NotificationAction{
				{ID: models.ActionNotifyContacts, Label: "Notify Contacts"},
				{ID: models.ActionImOK, Label: "I'm OK"},
			},
		},
	}

	if err := ns.store.Add(ctx, entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// CancelScheduled walks the user's scheduled notifications and cancels only
// those tagged for this subsystem. Entries scheduled by other collaborators
// are never disturbed.
func (ns *NotificationScheduler) CancelScheduled(ctx context.Context, userID string) error {
	entries, err := ns.store.ListUser(ctx, userID)
	if err != nil {
		return err
	}

	var ids []string
	for _, entry := range entries {
		switch entry.Notification.Kind() {
		case models.NotificationCheckInReminder, models.NotificationMissedCheckIn:
			ids = append(ids, entry.ID)
		}
	}

	if len(ids) == 0 {
		return nil
	}
	return ns.store.Remove(ctx, userID, ids)
}

// Sync reconciles the schedule with the given settings: everything tagged is
// cancelled, then the reminder and warning are re-created when the daily
// check-in is enabled. Failures are logged and non-fatal to the caller; the
// reminder simply does not fire.
func (ns *NotificationScheduler) Sync(ctx context.Context, userID string, settings models.SafetySettings) (reminderID, warningID string) {
	if !settings.DailyCheckInEnabled {
		if err := ns.CancelScheduled(ctx, userID); err != nil {
			logrus.Warnf("Failed to cancel scheduled notifications for user %s: %v", userID, err)
		}
		return "", ""
	}

	reminderID, err := ns.ScheduleDailyReminder(ctx, userID, settings)
	if err != nil {
		logrus.Warnf("Failed to schedule daily reminder for user %s: %v", userID, err)
		return "", ""
	}

	warningID, err = ns.ScheduleGraceWarning(ctx, userID, settings)
	if err != nil {
		logrus.Warnf("Failed to schedule grace warning for user %s: %v", userID, err)
		return reminderID, ""
	}

	return reminderID, warningID
}

// RescheduleRepeating re-registers a fired recurring entry at its next daily
// occurrence.
func (ns *NotificationScheduler) RescheduleRepeating(ctx context.Context, entry models.ScheduledNotification) error {
	if !entry.RepeatsDaily {
		return nil
	}

	next := entry.FireAt.AddDate(0, 0, 1)
	for !next.After(time.Now()) {
		next = next.AddDate(0, 0, 1)
	}

	entry.FireAt = next
	return ns.store.Add(ctx, entry)
}

// =================== REDIS SCHEDULE STORE ===================

const (
	scheduleKey        = "safety:schedule"
	scheduleEntriesKey = "safety:schedule:entries"
	scheduleUserPrefix = "safety:schedule:user:"
)

// RedisNotificationStore keeps the schedule in a Redis sorted set keyed by
// fire time, with entry payloads in a hash and a per-user index set.
type RedisNotificationStore struct {
	redis *redis.Client
}

func NewRedisNotificationStore(redisClient *redis.Client) *RedisNotificationStore {
	return &RedisNotificationStore{redis: redisClient}
}

func (rs *RedisNotificationStore) Add(ctx context.Context, entry models.ScheduledNotification) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := rs.redis.TxPipeline()
	pipe.ZAdd(ctx, scheduleKey, &redis.Z{Score: float64(entry.FireAt.Unix()), Member: entry.ID})
	pipe.HSet(ctx, scheduleEntriesKey, entry.ID, payload)
	pipe.SAdd(ctx, scheduleUserPrefix+entry.UserID, entry.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (rs *RedisNotificationStore) Remove(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	members := make([]interface{}, len(ids))
	fields := make([]string, len(ids))
	for i, id := range ids {
		members[i] = id
		fields[i] = id
	}

	pipe := rs.redis.TxPipeline()
	pipe.ZRem(ctx, scheduleKey, members...)
	pipe.HDel(ctx, scheduleEntriesKey, fields...)
	pipe.SRem(ctx, scheduleUserPrefix+userID, members...)
	_, err := pipe.Exec(ctx)
	return err
}

func (rs *RedisNotificationStore) ListUser(ctx context.Context, userID string) ([]models.ScheduledNotification, error) {
	ids, err := rs.redis.SMembers(ctx, scheduleUserPrefix+userID).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	values, err := rs.redis.HMGet(ctx, scheduleEntriesKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	return decodeEntries(values), nil
}

func (rs *RedisNotificationStore) Due(ctx context.Context, now time.Time, limit int) ([]models.ScheduledNotification, error) {
	ids, err := rs.redis.ZRangeByScore(ctx, scheduleKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	values, err := rs.redis.HMGet(ctx, scheduleEntriesKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	return decodeEntries(values), nil
}

func decodeEntries(values []interface{}) []models.ScheduledNotification {
	var entries []models.ScheduledNotification
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var entry models.ScheduledNotification
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			logrus.Warnf("Skipping undecodable scheduled notification: %v", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

