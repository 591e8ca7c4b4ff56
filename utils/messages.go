package utils

import (
	"fmt"

	"carebow/models"
)

// Outbound alert message templates. Delivery is delegated to the SMS/WhatsApp
// transport; these only render the text.

// GoogleMapsLink builds a shareable map link for a location fix.
func GoogleMapsLink(fix models.LocationFix) string {
	return fmt.Sprintf("https://maps.google.com/?q=%g,%g", fix.Latitude, fix.Longitude)
}

// AppleMapsLink is the Apple Maps equivalent, same query parameter shape.
func AppleMapsLink(fix models.LocationFix) string {
	return fmt.Sprintf("https://maps.apple.com/?q=%g,%g", fix.Latitude, fix.Longitude)
}

// GenerateSOSMessage renders the SOS alert text. The location sentence is
// included only when a fix is present and sharing is enabled.
func GenerateSOSMessage(name string, fix *models.LocationFix, shareLocation bool) string {
	msg := fmt.Sprintf("SOS: %s needs help. Please contact them immediately.", name)
	if shareLocation && fix != nil {
		msg += fmt.Sprintf(" Location: %s", GoogleMapsLink(*fix))
	}
	return msg
}

// GenerateMissedCheckInMessage renders the missed-check-in alert text.
func GenerateMissedCheckInMessage(name string, fix *models.LocationFix, shareLocation bool) string {
	msg := fmt.Sprintf("%s missed their daily check-in. Please contact them immediately.", name)
	if shareLocation && fix != nil {
		msg += fmt.Sprintf(" Location: %s", GoogleMapsLink(*fix))
	}
	return msg
}

// GenerateTestAlertMessage renders the no-action-needed test alert.
func GenerateTestAlertMessage(name string) string {
	return fmt.Sprintf("This is a test alert from %s's CareBow safety system. No action needed.", name)
}
