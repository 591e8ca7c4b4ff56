package utils

import (
	"strings"
	"testing"

	"carebow/models"
)

func TestGenerateSOSMessage(t *testing.T) {
	fix := &models.LocationFix{Latitude: 37.7749, Longitude: -122.4194}

	msg := GenerateSOSMessage("Jordan", fix, true)
	if !strings.HasPrefix(msg, "SOS: Jordan needs help.") {
		t.Errorf("unexpected message: %q", msg)
	}
	if !strings.Contains(msg, "https://maps.google.com/?q=37.7749,-122.4194") {
		t.Errorf("missing map link: %q", msg)
	}

	msg = GenerateSOSMessage("Jordan", fix, false)
	if strings.Contains(msg, "maps.google.com") {
		t.Error("location must not appear when sharing is disabled")
	}

	msg = GenerateSOSMessage("Jordan", nil, true)
	if strings.Contains(msg, "Location:") {
		t.Error("no location sentence without a fix")
	}
}

func TestGenerateMissedCheckInMessage(t *testing.T) {
	msg := GenerateMissedCheckInMessage("Jordan", nil, true)
	if !strings.Contains(msg, "Jordan missed their daily check-in") {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestGenerateTestAlertMessage(t *testing.T) {
	msg := GenerateTestAlertMessage("Jordan")
	if !strings.Contains(msg, "test alert") || !strings.Contains(msg, "No action needed") {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestMapLinks(t *testing.T) {
	fix := models.LocationFix{Latitude: 48.8566, Longitude: 2.3522}

	if got := GoogleMapsLink(fix); got != "https://maps.google.com/?q=48.8566,2.3522" {
		t.Errorf("unexpected google link: %q", got)
	}
	if got := AppleMapsLink(fix); got != "https://maps.apple.com/?q=48.8566,2.3522" {
		t.Errorf("unexpected apple link: %q", got)
	}
}
