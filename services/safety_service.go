package services

import (
	"context"
	"sync"
	"time"

	"carebow/models"
	"carebow/utils"

	"github.com/sirupsen/logrus"
)

// SafetyStore is the durable home of per-user safety state.
type SafetyStore interface {
	Load(ctx context.Context, userID string) (*models.SafetyState, error)
	Save(ctx context.Context, state *models.SafetyState) error
	ListCheckInEnabled(ctx context.Context) ([]models.SafetyState, error)
}

// SafetyService is the coordinator for all safety flows: check-ins, SOS,
// missed-check-in escalation, contacts, settings and permissions. All writes
// to a user's state go through this service, serialized per user.
type SafetyService struct {
	store     SafetyStore
	geo       *GeolocationService
	scheduler *NotificationScheduler
	alerts    *AlertService

	locationTimeout time.Duration

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	sosMu         sync.Mutex
	sosInProgress map[string]bool
}

func NewSafetyService(store SafetyStore, geo *GeolocationService, scheduler *NotificationScheduler, alerts *AlertService, locationTimeout time.Duration) *SafetyService {
	if locationTimeout <= 0 {
		locationTimeout = 10 * time.Second
	}
	return &SafetyService{
		store:           store,
		geo:             geo,
		scheduler:       scheduler,
		alerts:          alerts,
		locationTimeout: locationTimeout,
		locks:           make(map[string]*sync.Mutex),
		sosInProgress:   make(map[string]bool),
	}
}

func (ss *SafetyService) userLock(userID string) *sync.Mutex {
	ss.locksMu.Lock()
	defer ss.locksMu.Unlock()

	lock, ok := ss.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		ss.locks[userID] = lock
	}
	return lock
}

// GetState loads the user's full safety state, creating the default state for
// first-time users. The geolocation permission cache is refreshed from the
// loaded document.
func (ss *SafetyService) GetState(ctx context.Context, userID string) (*models.SafetyState, error) {
	state, err := ss.store.Load(ctx, userID)
	if err != nil {
		return nil, utils.NewDatabaseError("load safety state", err)
	}

	ss.geo.UpdatePermission(userID, state.Permissions.Location)
	return state, nil
}

// =================== CHECK-IN ===================

// RecordCheckIn confirms today's check-in. A check-in after the deadline is
// recorded as late; it is never rejected. Confirming also cancels the pending
// deadline warning for today via a schedule re-sync.
func (ss *SafetyService) RecordCheckIn(ctx context.Context, userID, userName string, req models.RecordCheckInRequest) (*models.SafetyEvent, error) {
	lock := ss.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := ss.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}
	rememberName(state, userName)

	now := time.Now()
	wasLate := HasMissedDeadline(state.Settings, now)

	state.Settings.LastCheckInAt = &now

	event := models.SafetyEvent{
		ID:        utils.GenerateUUID(),
		Type:      models.EventCheckInConfirmed,
		UserID:    userID,
		Timestamp: now,
		Metadata: models.EventMetadata{
			Location: req.Location,
			Note:     req.Note,
			WasLate:  wasLate,
		},
	}
	appendEvent(state, event)

	if req.Location != nil {
		ss.geo.ReportPosition(userID, *req.Location)
	}

	ss.resyncSchedule(ctx, state)

	if err := ss.store.Save(ctx, state); err != nil {
		return nil, utils.NewDatabaseError("save check-in", err)
	}

	logrus.Infof("Check-in recorded for user %s (late=%t)", userID, wasLate)
	return &event, nil
}

// HandleMissedCheckIn records a missed check-in and escalates to contacts when
// escalation is enabled. Called by the deadline worker and by the warning
// notification's "Notify Contacts" action. Idempotent per day: a second call
// on the same local day is a no-op.
func (ss *SafetyService) HandleMissedCheckIn(ctx context.Context, userID string) (*models.SafetyEvent, error) {
	lock := ss.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := ss.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if state.Settings.LastMissedCheckInAt != nil && IsSameLocalDay(*state.Settings.LastMissedCheckInAt, now) {
		return nil, nil
	}
	if HasCheckedInToday(state.Settings, now) {
		return nil, nil
	}

	state.Settings.LastMissedCheckInAt = &now

	var fix *models.LocationFix
	if state.Settings.ShareLocationOnMissedCheckIn {
		fix = ss.bestEffortLocation(ctx, userID)
	}

	var notified []string
	if state.Settings.EscalationEnabled {
		notified, err = ss.alerts.SendMissedCheckInAlert(ctx, displayName(state), state.Settings, state.Contacts, fix)
		if err != nil {
			logrus.Warnf("Missed check-in escalation for user %s reached no contacts: %v", userID, err)
		}
	}

	event := models.SafetyEvent{
		ID:        utils.GenerateUUID(),
		Type:      models.EventCheckInMissed,
		UserID:    userID,
		Timestamp: now,
		Metadata: models.EventMetadata{
			Location:         fix,
			ContactsNotified: notified,
		},
	}
	appendEvent(state, event)

	if err := ss.store.Save(ctx, state); err != nil {
		return nil, utils.NewDatabaseError("save missed check-in", err)
	}

	logrus.Warnf("Missed check-in recorded for user %s, %d contact(s) notified", userID, len(notified))
	return &event, nil
}

// GetCheckInState derives the user's current check-in status from stored
// settings and wall-clock time.
func (ss *SafetyService) GetCheckInState(ctx context.Context, userID string) (*models.CheckInState, error) {
	state, err := ss.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}

	checkIn := GetCheckInState(state.Settings, time.Now())
	return &checkIn, nil
}

// =================== SOS ===================

// TriggerSOS fires an SOS: resolves a location when sharing allows, records
// the event and alerts contacts per the escalation order. Location failures
// degrade to an SOS without location; the event is never dropped. Concurrent
// triggers for the same user are rejected while one is in flight.
func (ss *SafetyService) TriggerSOS(ctx context.Context, userID, userName string, req models.TriggerSOSRequest) (*models.SafetyEvent, error) {
	ss.sosMu.Lock()
	if ss.sosInProgress[userID] {
		ss.sosMu.Unlock()
		return nil, utils.NewConflictError("SOS already in progress")
	}
	ss.sosInProgress[userID] = true
	ss.sosMu.Unlock()

	defer func() {
		ss.sosMu.Lock()
		delete(ss.sosInProgress, userID)
		ss.sosMu.Unlock()
	}()

	lock := ss.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := ss.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}
	rememberName(state, userName)

	fix := req.Location
	if fix == nil && state.Settings.ShareLocationOnSOS {
		fix = ss.bestEffortLocation(ctx, userID)
	}
	if fix != nil {
		ss.geo.ReportPosition(userID, *fix)
	}

	notified, err := ss.alerts.SendSOSAlert(ctx, displayName(state), state.Settings, state.Contacts, fix)
	if err != nil {
		logrus.Errorf("SOS for user %s reached no contacts: %v", userID, err)
	}

	event := models.SafetyEvent{
		ID:        utils.GenerateUUID(),
		Type:      models.EventSOSTriggered,
		UserID:    userID,
		Timestamp: time.Now(),
		Metadata: models.EventMetadata{
			Location:         fix,
			Note:             req.Note,
			ContactsNotified: notified,
		},
	}
	appendEvent(state, event)

	if err := ss.store.Save(ctx, state); err != nil {
		return nil, utils.NewDatabaseError("save SOS event", err)
	}

	logrus.Warnf("SOS triggered by user %s, %d contact(s) notified", userID, len(notified))
	return &event, nil
}

// SendTestAlert delivers the test message to the primary contact and records
// the event.
func (ss *SafetyService) SendTestAlert(ctx context.Context, userID, userName string) (*models.SafetyEvent, error) {
	lock := ss.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := ss.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}
	rememberName(state, userName)

	notified, err := ss.alerts.SendTestAlert(ctx, displayName(state), state.Contacts)
	if err != nil {
		return nil, utils.NewBadRequestError("No emergency contacts configured")
	}

	event := models.SafetyEvent{
		ID:        utils.GenerateUUID(),
		Type:      models.EventTestAlertSent,
		UserID:    userID,
		Timestamp: time.Now(),
		Metadata:  models.EventMetadata{ContactsNotified: notified},
	}
	appendEvent(state, event)

	if err := ss.store.Save(ctx, state); err != nil {
		return nil, utils.NewDatabaseError("save test alert event", err)
	}
	return &event, nil
}

// GetEvents returns the event log, newest first, up to limit entries.
func (ss *SafetyService) GetEvents(ctx context.Context, userID string, limit int) ([]models.SafetyEvent, error) {
	state, err := ss.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}

	events := state.Events
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events, nil
}

// =================== CONTACTS ===================

// AddContact appends an emergency contact. The first contact always becomes
// primary; a new primary demotes the existing one.
func (ss *SafetyService) AddContact(ctx context.Context, userID string, req models.AddContactRequest) (*models.SafetyContact, error) {
	lock := ss.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := ss.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	contact := models.SafetyContact{
		ID:                 utils.GenerateUUID(),
		Name:               req.Name,
		Relationship:       req.Relationship,
		PhoneNumber:        req.PhoneNumber,
		CountryCode:        req.CountryCode,
		IsPrimary:          req.IsPrimary,
		CanReceiveSMS:      req.CanReceiveSMS,
		CanReceiveWhatsApp: req.CanReceiveWhatsApp,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if len(state.Contacts) == 0 {
		contact.IsPrimary = true
	} else if contact.IsPrimary {
		demoteAll(state.Contacts)
	}

	state.Contacts = append(state.Contacts, contact)

	if err := ss.store.Save(ctx, state); err != nil {
		return nil, utils.NewDatabaseError("save contact", err)
	}
	return &contact, nil
}

// UpdateContact applies a merge-patch to an existing contact, preserving the
// single-primary invariant.
func (ss *SafetyService) UpdateContact(ctx context.Context, userID, contactID string, req models.UpdateContactRequest) (*models.SafetyContact, error) {
	lock := ss.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := ss.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := contactIndex(state.Contacts, contactID)
	if idx < 0 {
		return nil, utils.NewNotFoundError("Contact")
	}

	contact := &state.Contacts[idx]
	if req.Name != nil {
		contact.Name = *req.Name
	}
	if req.Relationship != nil {
		contact.Relationship = *req.Relationship
	}
	if req.PhoneNumber != nil {
		contact.PhoneNumber = *req.PhoneNumber
	}
	if req.CountryCode != nil {
		contact.CountryCode = *req.CountryCode
	}
	if req.CanReceiveSMS != nil {
		contact.CanReceiveSMS = *req.CanReceiveSMS
	}
	if req.CanReceiveWhatsApp != nil {
		contact.CanReceiveWhatsApp = *req.CanReceiveWhatsApp
	}
	if req.IsPrimary != nil && *req.IsPrimary && !contact.IsPrimary {
		demoteAll(state.Contacts)
		contact.IsPrimary = true
	}
	// Demoting the only primary is ignored: a non-empty list keeps exactly one.
	contact.UpdatedAt = time.Now()

	if err := ss.store.Save(ctx, state); err != nil {
		return nil, utils.NewDatabaseError("save contact", err)
	}

	updated := *contact
	return &updated, nil
}

// DeleteContact removes a contact. When the primary is removed, the first
// remaining contact is promoted.
func (ss *SafetyService) DeleteContact(ctx context.Context, userID, contactID string) error {
	lock := ss.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := ss.GetState(ctx, userID)
	if err != nil {
		return err
	}

	idx := contactIndex(state.Contacts, contactID)
	if idx < 0 {
		return utils.NewNotFoundError("Contact")
	}

	wasPrimary := state.Contacts[idx].IsPrimary
	state.Contacts = append(state.Contacts[:idx], state.Contacts[idx+1:]...)

	if wasPrimary && len(state.Contacts) > 0 {
		state.Contacts[0].IsPrimary = true
		state.Contacts[0].UpdatedAt = time.Now()
	}

	if err := ss.store.Save(ctx, state); err != nil {
		return utils.NewDatabaseError("delete contact", err)
	}
	return nil
}

// SetPrimaryContact promotes one contact and demotes the rest.
func (ss *SafetyService) SetPrimaryContact(ctx context.Context, userID, contactID string) (*models.SafetyContact, error) {
	lock := ss.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := ss.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := contactIndex(state.Contacts, contactID)
	if idx < 0 {
		return nil, utils.NewNotFoundError("Contact")
	}

	demoteAll(state.Contacts)
	state.Contacts[idx].IsPrimary = true
	state.Contacts[idx].UpdatedAt = time.Now()

	if err := ss.store.Save(ctx, state); err != nil {
		return nil, utils.NewDatabaseError("save contact", err)
	}

	updated := state.Contacts[idx]
	return &updated, nil
}

func (ss *SafetyService) GetContacts(ctx context.Context, userID string) ([]models.SafetyContact, error) {
	state, err := ss.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}
	return state.Contacts, nil
}

// =================== SETTINGS ===================

// UpdateSettings applies a merge-patch to the user's settings and re-syncs the
// notification schedule. Values are validated at the API boundary before this
// runs; nothing is clamped here.
func (ss *SafetyService) UpdateSettings(ctx context.Context, userID string, req models.UpdateSettingsRequest) (*models.SafetySettings, error) {
	lock := ss.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := ss.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}

	settings := &state.Settings
	if req.DailyCheckInEnabled != nil {
		settings.DailyCheckInEnabled = *req.DailyCheckInEnabled
	}
	if req.DailyCheckInTime != nil {
		settings.DailyCheckInTime = *req.DailyCheckInTime
	}
	if req.GracePeriodMinutes != nil {
		settings.GracePeriodMinutes = *req.GracePeriodMinutes
	}
	if req.EscalationEnabled != nil {
		settings.EscalationEnabled = *req.EscalationEnabled
	}
	if req.EscalationOrder != nil {
		settings.EscalationOrder = req.EscalationOrder
	}
	if req.ShareLocationOnSOS != nil {
		settings.ShareLocationOnSOS = *req.ShareLocationOnSOS
	}
	if req.ShareLocationOnMissedCheckIn != nil {
		settings.ShareLocationOnMissedCheckIn = *req.ShareLocationOnMissedCheckIn
	}

	ss.resyncSchedule(ctx, state)

	if err := ss.store.Save(ctx, state); err != nil {
		return nil, utils.NewDatabaseError("save settings", err)
	}

	updated := state.Settings
	return &updated, nil
}

// ResetSettings restores the defaults, clears check-in history timestamps and
// cancels the scheduled notifications.
func (ss *SafetyService) ResetSettings(ctx context.Context, userID string) (*models.SafetySettings, error) {
	lock := ss.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := ss.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}

	state.Settings = models.DefaultSafetySettings()
	ss.resyncSchedule(ctx, state)

	if err := ss.store.Save(ctx, state); err != nil {
		return nil, utils.NewDatabaseError("save settings", err)
	}

	updated := state.Settings
	return &updated, nil
}

// =================== PERMISSIONS / DEVICES ===================

// UpdatePermissions records the device-reported permission grants and refreshes
// the geolocation permission cache.
func (ss *SafetyService) UpdatePermissions(ctx context.Context, userID string, req models.UpdatePermissionsRequest) (*models.SafetyPermissions, error) {
	lock := ss.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := ss.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Location != nil {
		state.Permissions.Location = *req.Location
		ss.geo.UpdatePermission(userID, *req.Location)
	}
	if req.Notifications != nil {
		state.Permissions.Notifications = *req.Notifications
	}

	if err := ss.store.Save(ctx, state); err != nil {
		return nil, utils.NewDatabaseError("save permissions", err)
	}

	updated := state.Permissions
	return &updated, nil
}

// RegisterDevice records a push token for the user's device.
func (ss *SafetyService) RegisterDevice(ctx context.Context, userID, token string) error {
	lock := ss.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := ss.GetState(ctx, userID)
	if err != nil {
		return err
	}

	if utils.StringSliceContains(state.DeviceTokens, token) {
		return nil
	}
	state.DeviceTokens = append(state.DeviceTokens, token)

	if err := ss.store.Save(ctx, state); err != nil {
		return utils.NewDatabaseError("save device token", err)
	}
	return nil
}

// ResolveLocation fetches the user's current position with fallback to the
// last known fix, bounded by the configured timeout.
func (ss *SafetyService) ResolveLocation(ctx context.Context, userID string) (*models.LocationFix, error) {
	if _, err := ss.GetState(ctx, userID); err != nil {
		return nil, err
	}
	return ss.geo.GetLocationWithFallback(ctx, userID, ss.locationTimeout)
}

// =================== INTERNAL ===================

// bestEffortLocation resolves a fix with fallback and degrades to nil on
// failure. Alert flows must proceed without a location rather than fail.
func (ss *SafetyService) bestEffortLocation(ctx context.Context, userID string) *models.LocationFix {
	fix, err := ss.geo.GetLocationWithFallback(ctx, userID, ss.locationTimeout)
	if err != nil {
		logrus.Warnf("Could not resolve location for user %s: %v", userID, err)
		return nil
	}
	return fix
}

func (ss *SafetyService) resyncSchedule(ctx context.Context, state *models.SafetyState) {
	reminderID, warningID := ss.scheduler.Sync(ctx, state.UserID, state.Settings)
	state.Settings.ReminderNotificationID = reminderID
	state.Settings.WarningNotificationID = warningID
}

// appendEvent prepends the event and evicts the oldest beyond the history cap.
func appendEvent(state *models.SafetyState, event models.SafetyEvent) {
	state.Events = append([]models.SafetyEvent{event}, state.Events...)
	if len(state.Events) > models.EventHistoryLimit {
		state.Events = state.Events[:models.EventHistoryLimit]
	}
}

func contactIndex(contacts []models.SafetyContact, contactID string) int {
	for i := range contacts {
		if contacts[i].ID == contactID {
			return i
		}
	}
	return -1
}

func demoteAll(contacts []models.SafetyContact) {
	for i := range contacts {
		contacts[i].IsPrimary = false
	}
}

func rememberName(state *models.SafetyState, userName string) {
	if userName != "" {
		state.DisplayName = userName
	}
}

func displayName(state *models.SafetyState) string {
	if state.DisplayName != "" {
		return state.DisplayName
	}
	return "A CareBow user"
}
