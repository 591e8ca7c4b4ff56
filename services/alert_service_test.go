package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"carebow/models"
)

type sentMessage struct {
	channel string
	to      string
	body    string
}

type fakeSender struct {
	sent    []sentMessage
	failSMS bool
}

func (f *fakeSender) SendSMS(ctx context.Context, to, body string) error {
	if f.failSMS {
		return errors.New("carrier rejected")
	}
	f.sent = append(f.sent, sentMessage{"sms", to, body})
	return nil
}

func (f *fakeSender) SendWhatsApp(ctx context.Context, to, body string) error {
	f.sent = append(f.sent, sentMessage{"whatsapp", to, body})
	return nil
}

func testContacts() []models.SafetyContact {
	return []models.SafetyContact{
		{ID: "c1", Name: "Alex", PhoneNumber: "+15551230001", IsPrimary: true, CanReceiveSMS: true},
		{ID: "c2", Name: "Sam", PhoneNumber: "+15551230002", CanReceiveSMS: true},
		{ID: "c3", Name: "Robin", PhoneNumber: "+15551230003", CanReceiveWhatsApp: true},
	}
}

func TestSendSOSAlertEscalationOrder(t *testing.T) {
	sender := &fakeSender{}
	as := NewAlertService(sender)

	settings := models.DefaultSafetySettings()
	fix := &models.LocationFix{Latitude: 37.7749, Longitude: -122.4194}

	notified, err := as.SendSOSAlert(context.Background(), "Jordan", settings, testContacts(), fix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Primary first, then the rest, no duplicates.
	if len(notified) != 3 {
		t.Fatalf("expected 3 notified contacts, got %d: %v", len(notified), notified)
	}
	if notified[0] != "c1" {
		t.Errorf("primary contact should be notified first, got %s", notified[0])
	}
	if len(sender.sent) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].body, "SOS: Jordan needs help") {
		t.Errorf("unexpected message body: %q", sender.sent[0].body)
	}
	if !strings.Contains(sender.sent[0].body, "maps.google.com") {
		t.Error("SOS with sharing enabled should include the map link")
	}
}

func TestSendSOSAlertWithoutLocationSharing(t *testing.T) {
	sender := &fakeSender{}
	as := NewAlertService(sender)

	settings := models.DefaultSafetySettings()
	settings.ShareLocationOnSOS = false
	fix := &models.LocationFix{Latitude: 1, Longitude: 2}

	_, err := as.SendSOSAlert(context.Background(), "Jordan", settings, testContacts(), fix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, msg := range sender.sent {
		if strings.Contains(msg.body, "maps.google.com") {
			t.Error("location must not leak when sharing is disabled")
		}
	}
}

func TestSendSOSAlertPrimaryOnlyOrder(t *testing.T) {
	sender := &fakeSender{}
	as := NewAlertService(sender)

	settings := models.DefaultSafetySettings()
	settings.EscalationOrder = []models.EscalationStep{models.EscalatePrimaryContact}

	notified, err := as.SendSOSAlert(context.Background(), "Jordan", settings, testContacts(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notified) != 1 || notified[0] != "c1" {
		t.Errorf("expected only the primary contact, got %v", notified)
	}
}

func TestSendSOSAlertNoContacts(t *testing.T) {
	as := NewAlertService(&fakeSender{})

	_, err := as.SendSOSAlert(context.Background(), "Jordan", models.DefaultSafetySettings(), nil, nil)
	if !errors.Is(err, ErrNoContacts) {
		t.Fatalf("expected ErrNoContacts, got %v", err)
	}
}

func TestSendSOSAlertChannelFailureSkipsContact(t *testing.T) {
	sender := &fakeSender{failSMS: true}
	as := NewAlertService(sender)

	notified, err := as.SendSOSAlert(context.Background(), "Jordan", models.DefaultSafetySettings(), testContacts(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Only the WhatsApp-capable contact is reachable.
	if len(notified) != 1 || notified[0] != "c3" {
		t.Errorf("expected only c3 notified when SMS fails, got %v", notified)
	}
}

func TestSendTestAlertPrimaryOnly(t *testing.T) {
	sender := &fakeSender{}
	as := NewAlertService(sender)

	notified, err := as.SendTestAlert(context.Background(), "Jordan", testContacts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notified) != 1 || notified[0] != "c1" {
		t.Errorf("test alert must reach only the primary, got %v", notified)
	}
	if !strings.Contains(sender.sent[0].body, "test alert") {
		t.Errorf("unexpected body: %q", sender.sent[0].body)
	}
	if !strings.Contains(sender.sent[0].body, "No action needed") {
		t.Error("test alert must state no action is needed")
	}
}

func TestSendMissedCheckInAlertMessage(t *testing.T) {
	sender := &fakeSender{}
	as := NewAlertService(sender)

	settings := models.DefaultSafetySettings()
	_, err := as.SendMissedCheckInAlert(context.Background(), "Jordan", settings, testContacts(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sender.sent[0].body, "missed their daily check-in") {
		t.Errorf("unexpected body: %q", sender.sent[0].body)
	}
}
