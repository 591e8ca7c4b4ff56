package workers

import (
	"context"
	"sync"
	"time"

	"carebow/models"
	"carebow/services"
	"carebow/utils"

	"github.com/sirupsen/logrus"
)

// PushSender delivers a notification payload to one device token.
type PushSender interface {
	SendPush(ctx context.Context, deviceToken string, notification models.SafetyNotification) (*utils.NotificationResult, error)
}

// CheckInWorker drives the check-in schedule: it fires due reminder and
// warning notifications to devices and detects missed check-ins server-side,
// so escalation happens even when every device is offline.
type CheckInWorker struct {
	scheduleStore services.NotificationStore
	scheduler     *services.NotificationScheduler
	safetyService *services.SafetyService
	safetyStore   services.SafetyStore
	push          PushSender

	config CheckInWorkerConfig

	isRunning bool
	mutex     sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats      CheckInWorkerStats
	statsMutex sync.RWMutex
}

type CheckInWorkerConfig struct {
	PollInterval time.Duration `json:"pollInterval"`
	ScanInterval time.Duration `json:"scanInterval"`
	BatchSize    int           `json:"batchSize"`
}

type CheckInWorkerStats struct {
	NotificationsFired int64     `json:"notificationsFired"`
	MissedDetected     int64     `json:"missedDetected"`
	PushFailures       int64     `json:"pushFailures"`
	LastPollAt         time.Time `json:"lastPollAt"`
	LastScanAt         time.Time `json:"lastScanAt"`
	StartTime          time.Time `json:"startTime"`
}

func NewCheckInWorker(
	scheduleStore services.NotificationStore,
	scheduler *services.NotificationScheduler,
	safetyService *services.SafetyService,
	safetyStore services.SafetyStore,
	push PushSender,
	pollInterval time.Duration,
) *CheckInWorker {
	ctx, cancel := context.WithCancel(context.Background())

	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}

	return &CheckInWorker{
		scheduleStore: scheduleStore,
		scheduler:     scheduler,
		safetyService: safetyService,
		safetyStore:   safetyStore,
		push:          push,
		config: CheckInWorkerConfig{
			PollInterval: pollInterval,
			ScanInterval: time.Minute,
			BatchSize:    100,
		},
		ctx:    ctx,
		cancel: cancel,
		stats: CheckInWorkerStats{
			StartTime: time.Now(),
		},
	}
}

func (cw *CheckInWorker) Start() error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if cw.isRunning {
		return nil
	}
	cw.isRunning = true

	logrus.Info("Starting Check-In Worker")

	cw.wg.Add(1)
	go cw.schedulePoller()

	cw.wg.Add(1)
	go cw.deadlineScanner()

	logrus.Info("Check-In Worker started successfully")
	return nil
}

func (cw *CheckInWorker) Stop() error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if !cw.isRunning {
		return nil
	}

	logrus.Info("Stopping Check-In Worker...")

	cw.cancel()
	cw.isRunning = false
	cw.wg.Wait()

	logrus.Info("Check-In Worker stopped successfully")
	return nil
}

func (cw *CheckInWorker) GetStats() CheckInWorkerStats {
	cw.statsMutex.RLock()
	defer cw.statsMutex.RUnlock()
	return cw.stats
}

// schedulePoller fires due entries from the schedule store.
func (cw *CheckInWorker) schedulePoller() {
	defer cw.wg.Done()

	ticker := time.NewTicker(cw.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cw.fireDueNotifications()

		case <-cw.ctx.Done():
			return
		}
	}
}

func (cw *CheckInWorker) fireDueNotifications() {
	ctx, cancel := context.WithTimeout(cw.ctx, 30*time.Second)
	defer cancel()

	entries, err := cw.scheduleStore.Due(ctx, time.Now(), cw.config.BatchSize)
	if err != nil {
		logrus.Errorf("Failed to fetch due notifications: %v", err)
		return
	}

	cw.statsMutex.Lock()
	cw.stats.LastPollAt = time.Now()
	cw.statsMutex.Unlock()

	for _, entry := range entries {
		cw.fireEntry(ctx, entry)
	}
}

// fireEntry delivers one due entry and removes it from the schedule. Recurring
// entries are re-registered at the next daily occurrence.
func (cw *CheckInWorker) fireEntry(ctx context.Context, entry models.ScheduledNotification) {
	deliver := true

	if entry.Notification.Kind() == models.NotificationMissedCheckIn {
		// A check-in recorded after scheduling suppresses the warning.
		state, err := cw.safetyStore.Load(ctx, entry.UserID)
		if err == nil && services.HasCheckedInToday(state.Settings, time.Now()) {
			deliver = false
		}
	}

	if deliver {
		cw.deliverToDevices(ctx, entry)
	}

	if err := cw.scheduleStore.Remove(ctx, entry.UserID, []string{entry.ID}); err != nil {
		logrus.Errorf("Failed to remove fired notification %s: %v", entry.ID, err)
	}

	if err := cw.scheduler.RescheduleRepeating(ctx, entry); err != nil {
		logrus.Errorf("Failed to reschedule recurring notification %s: %v", entry.ID, err)
	}

	if deliver && entry.Notification.Kind() == models.NotificationMissedCheckIn {
		if _, err := cw.safetyService.HandleMissedCheckIn(ctx, entry.UserID); err != nil {
			logrus.Errorf("Missed check-in handling failed for user %s: %v", entry.UserID, err)
		}
	}
}

func (cw *CheckInWorker) deliverToDevices(ctx context.Context, entry models.ScheduledNotification) {
	if cw.push == nil {
		return
	}

	state, err := cw.safetyStore.Load(ctx, entry.UserID)
	if err != nil {
		logrus.Errorf("Failed to load state for notification delivery: %v", err)
		return
	}

	for _, token := range state.DeviceTokens {
		if _, err := cw.push.SendPush(ctx, token, entry.Notification); err != nil {
			logrus.Warnf("Push delivery failed for user %s: %v", entry.UserID, err)
			cw.statsMutex.Lock()
			cw.stats.PushFailures++
			cw.statsMutex.Unlock()
			continue
		}

		cw.statsMutex.Lock()
		cw.stats.NotificationsFired++
		cw.statsMutex.Unlock()
	}
}

// deadlineScanner is the backstop for missed check-ins: it walks every user
// with the daily check-in enabled and escalates those past their deadline,
// independent of the notification schedule.
func (cw *CheckInWorker) deadlineScanner() {
	defer cw.wg.Done()

	ticker := time.NewTicker(cw.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cw.scanForMissedCheckIns()

		case <-cw.ctx.Done():
			return
		}
	}
}

func (cw *CheckInWorker) scanForMissedCheckIns() {
	ctx, cancel := context.WithTimeout(cw.ctx, time.Minute)
	defer cancel()

	states, err := cw.safetyStore.ListCheckInEnabled(ctx)
	if err != nil {
		logrus.Errorf("Failed to list check-in enabled users: %v", err)
		return
	}

	cw.statsMutex.Lock()
	cw.stats.LastScanAt = time.Now()
	cw.statsMutex.Unlock()

	now := time.Now()
	for _, state := range states {
		if !services.HasMissedDeadline(state.Settings, now) {
			continue
		}
		if state.Settings.LastMissedCheckInAt != nil && services.IsSameLocalDay(*state.Settings.LastMissedCheckInAt, now) {
			continue
		}

		event, err := cw.safetyService.HandleMissedCheckIn(ctx, state.UserID)
		if err != nil {
			logrus.Errorf("Missed check-in handling failed for user %s: %v", state.UserID, err)
			continue
		}
		if event != nil {
			cw.statsMutex.Lock()
			cw.stats.MissedDetected++
			cw.statsMutex.Unlock()
		}
	}
}
