package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"carebow/models"
)

type fakeSafetyStore struct {
	states map[string]*models.SafetyState
	saves  int
}

func newFakeSafetyStore() *fakeSafetyStore {
	return &fakeSafetyStore{states: make(map[string]*models.SafetyState)}
}

func (f *fakeSafetyStore) Load(ctx context.Context, userID string) (*models.SafetyState, error) {
	if state, ok := f.states[userID]; ok {
		copied := *state
		return &copied, nil
	}
	return models.NewSafetyState(userID), nil
}

func (f *fakeSafetyStore) Save(ctx context.Context, state *models.SafetyState) error {
	copied := *state
	f.states[state.UserID] = &copied
	f.saves++
	return nil
}

func (f *fakeSafetyStore) ListCheckInEnabled(ctx context.Context) ([]models.SafetyState, error) {
	var out []models.SafetyState
	for _, state := range f.states {
		if state.Settings.DailyCheckInEnabled {
			out = append(out, *state)
		}
	}
	return out, nil
}

func newTestSafetyService() (*SafetyService, *fakeSafetyStore, *fakeSender) {
	store := newFakeSafetyStore()
	sender := &fakeSender{}
	geo := NewGeolocationService(&fakePositionSource{fix: &models.LocationFix{Latitude: 1, Longitude: 2}})
	scheduler := NewNotificationScheduler(newFakeNotificationStore())
	alerts := NewAlertService(sender)

	svc := NewSafetyService(store, geo, scheduler, alerts, 50*time.Millisecond)
	return svc, store, sender
}

func TestRecordCheckIn(t *testing.T) {
	svc, store, _ := newTestSafetyService()
	ctx := context.Background()

	event, err := svc.RecordCheckIn(ctx, "u1", "Jordan", models.RecordCheckInRequest{Note: "all good"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != models.EventCheckInConfirmed {
		t.Errorf("unexpected event type %s", event.Type)
	}
	if event.Metadata.Note != "all good" {
		t.Errorf("note not carried: %+v", event.Metadata)
	}

	saved := store.states["u1"]
	if saved.Settings.LastCheckInAt == nil {
		t.Fatal("LastCheckInAt not persisted")
	}
	if len(saved.Events) != 1 || saved.Events[0].ID != event.ID {
		t.Error("event not stored newest-first")
	}
	if saved.DisplayName != "Jordan" {
		t.Errorf("display name not remembered: %q", saved.DisplayName)
	}
}

func TestRecordCheckInLate(t *testing.T) {
	svc, store, _ := newTestSafetyService()
	ctx := context.Background()

	// Deadline of 00:00 + 1 minute grace has passed for almost the whole day.
	state := models.NewSafetyState("u1")
	state.Settings.DailyCheckInEnabled = true
	state.Settings.DailyCheckInTime = "00:00"
	state.Settings.GracePeriodMinutes = 1
	store.states["u1"] = state

	if time.Now().Hour() == 0 && time.Now().Minute() <= 1 {
		t.Skip("too close to midnight for a stable late window")
	}

	event, err := svc.RecordCheckIn(ctx, "u1", "", models.RecordCheckInRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !event.Metadata.WasLate {
		t.Error("check-in after the deadline should be marked late")
	}
}

func TestEventHistoryCap(t *testing.T) {
	svc, store, _ := newTestSafetyService()
	ctx := context.Background()

	state := models.NewSafetyState("u1")
	for i := 0; i < models.EventHistoryLimit; i++ {
		state.Events = append(state.Events, models.SafetyEvent{ID: fmt.Sprintf("old-%d", i)})
	}
	store.states["u1"] = state

	event, err := svc.RecordCheckIn(ctx, "u1", "", models.RecordCheckInRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved := store.states["u1"]
	if len(saved.Events) != models.EventHistoryLimit {
		t.Fatalf("expected history capped at %d, got %d", models.EventHistoryLimit, len(saved.Events))
	}
	if saved.Events[0].ID != event.ID {
		t.Error("newest event must be first")
	}
	if saved.Events[len(saved.Events)-1].ID == fmt.Sprintf("old-%d", models.EventHistoryLimit-1) {
		t.Error("oldest event should have been evicted")
	}
}

func TestTriggerSOSNeverDropsEvent(t *testing.T) {
	svc, store, _ := newTestSafetyService()
	ctx := context.Background()

	// No contacts configured, no location permission: the event still lands.
	event, err := svc.TriggerSOS(ctx, "u1", "Jordan", models.TriggerSOSRequest{Note: "help"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != models.EventSOSTriggered {
		t.Errorf("unexpected event type %s", event.Type)
	}
	if len(event.Metadata.ContactsNotified) != 0 {
		t.Errorf("no contacts should be notified, got %v", event.Metadata.ContactsNotified)
	}

	saved := store.states["u1"]
	if len(saved.Events) != 1 {
		t.Fatal("SOS event not persisted")
	}
}

func TestTriggerSOSNotifiesContacts(t *testing.T) {
	svc, store, sender := newTestSafetyService()
	ctx := context.Background()

	state := models.NewSafetyState("u1")
	state.Contacts = testContacts()
	store.states["u1"] = state

	event, err := svc.TriggerSOS(ctx, "u1", "Jordan", models.TriggerSOSRequest{
		Location: &models.LocationFix{Latitude: 37, Longitude: -122},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(event.Metadata.ContactsNotified) != 3 {
		t.Errorf("expected 3 notified contacts, got %v", event.Metadata.ContactsNotified)
	}
	if event.Metadata.Location == nil {
		t.Error("provided location should be recorded on the event")
	}
	if len(sender.sent) == 0 {
		t.Error("alert messages should have been dispatched")
	}
}

func TestHandleMissedCheckInIdempotentPerDay(t *testing.T) {
	svc, store, sender := newTestSafetyService()
	ctx := context.Background()

	state := models.NewSafetyState("u1")
	state.Settings.DailyCheckInEnabled = true
	state.Settings.DailyCheckInTime = "00:00"
	state.Settings.GracePeriodMinutes = 1
	state.Contacts = testContacts()
	store.states["u1"] = state

	event, err := svc.HandleMissedCheckIn(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event == nil {
		t.Fatal("expected a missed check-in event")
	}
	if event.Type != models.EventCheckInMissed {
		t.Errorf("unexpected event type %s", event.Type)
	}
	if len(event.Metadata.ContactsNotified) == 0 {
		t.Error("escalation should notify contacts")
	}
	firstSent := len(sender.sent)

	second, err := svc.HandleMissedCheckIn(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != nil {
		t.Error("second missed check-in on the same day must be a no-op")
	}
	if len(sender.sent) != firstSent {
		t.Error("no further messages on the repeated call")
	}
}

func TestHandleMissedCheckInEscalationDisabled(t *testing.T) {
	svc, store, sender := newTestSafetyService()
	ctx := context.Background()

	state := models.NewSafetyState("u1")
	state.Settings.DailyCheckInEnabled = true
	state.Settings.DailyCheckInTime = "00:00"
	state.Settings.GracePeriodMinutes = 1
	state.Settings.EscalationEnabled = false
	state.Contacts = testContacts()
	store.states["u1"] = state

	event, err := svc.HandleMissedCheckIn(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event == nil {
		t.Fatal("the event is recorded even without escalation")
	}
	if len(sender.sent) != 0 {
		t.Error("no messages when escalation is disabled")
	}
}

func TestContactPrimaryInvariants(t *testing.T) {
	svc, store, _ := newTestSafetyService()
	ctx := context.Background()

	// First contact is forced primary.
	first, err := svc.AddContact(ctx, "u1", models.AddContactRequest{
		Name: "Alex", PhoneNumber: "5551230001", CanReceiveSMS: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.IsPrimary {
		t.Error("first contact must become primary")
	}

	// A new primary demotes the old one.
	second, err := svc.AddContact(ctx, "u1", models.AddContactRequest{
		Name: "Sam", PhoneNumber: "5551230002", IsPrimary: true, CanReceiveSMS: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.IsPrimary {
		t.Error("new primary flag not honored")
	}

	contacts := store.states["u1"].Contacts
	primaries := 0
	for _, c := range contacts {
		if c.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Fatalf("expected exactly one primary, got %d", primaries)
	}

	// Deleting the primary promotes the first remaining contact.
	if err := svc.DeleteContact(ctx, "u1", second.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	contacts = store.states["u1"].Contacts
	if len(contacts) != 1 || !contacts[0].IsPrimary {
		t.Error("remaining contact must be promoted to primary")
	}
}

func TestSetPrimaryContact(t *testing.T) {
	svc, store, _ := newTestSafetyService()
	ctx := context.Background()

	a, _ := svc.AddContact(ctx, "u1", models.AddContactRequest{Name: "A", PhoneNumber: "5551230001"})
	b, _ := svc.AddContact(ctx, "u1", models.AddContactRequest{Name: "B", PhoneNumber: "5551230002"})

	promoted, err := svc.SetPrimaryContact(ctx, "u1", b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !promoted.IsPrimary {
		t.Error("promoted contact should be primary")
	}

	for _, c := range store.states["u1"].Contacts {
		if c.ID == a.ID && c.IsPrimary {
			t.Error("former primary should be demoted")
		}
	}

	if _, err := svc.SetPrimaryContact(ctx, "u1", "missing"); err == nil {
		t.Error("expected not-found error for unknown contact")
	}
}

func TestUpdateSettingsMergePatch(t *testing.T) {
	svc, store, _ := newTestSafetyService()
	ctx := context.Background()

	enabled := true
	grace := 45
	settings, err := svc.UpdateSettings(ctx, "u1", models.UpdateSettingsRequest{
		DailyCheckInEnabled: &enabled,
		GracePeriodMinutes:  &grace,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !settings.DailyCheckInEnabled || settings.GracePeriodMinutes != 45 {
		t.Errorf("patched fields not applied: %+v", settings)
	}
	if settings.DailyCheckInTime != "09:00" {
		t.Errorf("untouched field changed: %s", settings.DailyCheckInTime)
	}
	if settings.ReminderNotificationID == "" || settings.WarningNotificationID == "" {
		t.Error("enabling the check-in should store schedule handles")
	}

	// Disabling clears the handles.
	disabled := false
	settings, err = svc.UpdateSettings(ctx, "u1", models.UpdateSettingsRequest{DailyCheckInEnabled: &disabled})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.ReminderNotificationID != "" || settings.WarningNotificationID != "" {
		t.Error("disabling the check-in should clear schedule handles")
	}

	if store.states["u1"].Settings.GracePeriodMinutes != 45 {
		t.Error("settings not persisted")
	}
}

func TestResetSettings(t *testing.T) {
	svc, store, _ := newTestSafetyService()
	ctx := context.Background()

	enabled := true
	timeStr := "18:30"
	if _, err := svc.UpdateSettings(ctx, "u1", models.UpdateSettingsRequest{
		DailyCheckInEnabled: &enabled,
		DailyCheckInTime:    &timeStr,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	settings, err := svc.ResetSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defaults := models.DefaultSafetySettings()
	if settings.DailyCheckInEnabled != defaults.DailyCheckInEnabled ||
		settings.DailyCheckInTime != defaults.DailyCheckInTime ||
		settings.GracePeriodMinutes != defaults.GracePeriodMinutes {
		t.Errorf("reset did not restore defaults: %+v", settings)
	}
	if store.states["u1"].Settings.DailyCheckInTime != defaults.DailyCheckInTime {
		t.Error("reset not persisted")
	}
}

func TestUpdatePermissionsRefreshesGeoCache(t *testing.T) {
	svc, _, _ := newTestSafetyService()
	ctx := context.Background()

	granted := models.PermissionGranted
	permissions, err := svc.UpdatePermissions(ctx, "u1", models.UpdatePermissionsRequest{Location: &granted})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if permissions.Location != models.PermissionGranted {
		t.Errorf("location permission not applied: %+v", permissions)
	}
	if svc.geo.LocationPermission("u1") != models.PermissionGranted {
		t.Error("geolocation permission cache not refreshed")
	}
}

func TestRegisterDeviceDeduplicates(t *testing.T) {
	svc, store, _ := newTestSafetyService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.RegisterDevice(ctx, "u1", "token-a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := svc.RegisterDevice(ctx, "u1", "token-b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tokens := store.states["u1"].DeviceTokens
	if len(tokens) != 2 {
		t.Errorf("expected 2 unique tokens, got %v", tokens)
	}
}

func TestGetEventsLimit(t *testing.T) {
	svc, store, _ := newTestSafetyService()
	ctx := context.Background()

	state := models.NewSafetyState("u1")
	for i := 0; i < 10; i++ {
		state.Events = append(state.Events, models.SafetyEvent{ID: fmt.Sprintf("e%d", i)})
	}
	store.states["u1"] = state

	events, err := svc.GetEvents(ctx, "u1", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 4 {
		t.Errorf("expected 4 events, got %d", len(events))
	}

	events, err = svc.GetEvents(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 10 {
		t.Errorf("expected all events with no limit, got %d", len(events))
	}
}
