package services

import (
	"context"
	"errors"

	"carebow/models"
	"carebow/utils"

	"github.com/sirupsen/logrus"
)

// MessageSender is the outbound SMS/WhatsApp transport. Delivery of alert
// messages is delegated entirely to it; this subsystem never guarantees
// delivery.
type MessageSender interface {
	SendSMS(ctx context.Context, to, body string) error
	SendWhatsApp(ctx context.Context, to, body string) error
}

var ErrNoContacts = errors.New("no emergency contacts configured")

// AlertService resolves escalation recipients and dispatches the templated
// alert messages to them.
type AlertService struct {
	sender MessageSender
}

func NewAlertService(sender MessageSender) *AlertService {
	return &AlertService{sender: sender}
}

// SendSOSAlert notifies contacts of a triggered SOS per the escalation order.
// Returns the IDs of contacts that were actually reached on any channel.
func (as *AlertService) SendSOSAlert(ctx context.Context, userName string, settings models.SafetySettings, contacts []models.SafetyContact, fix *models.LocationFix) ([]string, error) {
	message := utils.GenerateSOSMessage(userName, fix, settings.ShareLocationOnSOS)
	return as.dispatch(ctx, settings.EscalationOrder, contacts, message)
}

// SendMissedCheckInAlert notifies contacts that the user missed their daily
// check-in.
func (as *AlertService) SendMissedCheckInAlert(ctx context.Context, userName string, settings models.SafetySettings, contacts []models.SafetyContact, fix *models.LocationFix) ([]string, error) {
	message := utils.GenerateMissedCheckInMessage(userName, fix, settings.ShareLocationOnMissedCheckIn)
	return as.dispatch(ctx, settings.EscalationOrder, contacts, message)
}

// SendTestAlert delivers the no-action-needed test message to the primary
// contact only.
func (as *AlertService) SendTestAlert(ctx context.Context, userName string, contacts []models.SafetyContact) ([]string, error) {
	var primary *models.SafetyContact
	for i := range contacts {
		if contacts[i].IsPrimary {
			primary = &contacts[i]
			break
		}
	}
	if primary == nil {
		return nil, ErrNoContacts
	}

	message := utils.GenerateTestAlertMessage(userName)
	if !as.sendToContact(ctx, *primary, message) {
		return nil, nil
	}
	return []string{primary.ID}, nil
}

// dispatch walks the escalation steps in order, deduplicating recipients:
// PRIMARY_CONTACT reaches only the primary, ALL_CONTACTS reaches everyone not
// yet notified. Individual send failures are logged and skipped; an alert is
// never aborted because one contact was unreachable.
func (as *AlertService) dispatch(ctx context.Context, order []models.EscalationStep, contacts []models.SafetyContact, message string) ([]string, error) {
	if len(contacts) == 0 {
		return nil, ErrNoContacts
	}
	if len(order) == 0 {
		order = []models.EscalationStep{models.EscalatePrimaryContact, models.EscalateAllContacts}
	}

	notified := make(map[string]bool)
	var notifiedIDs []string

	for _, step := range order {
		for _, contact := range as.recipientsFor(step, contacts) {
			if notified[contact.ID] {
				continue
			}
			if as.sendToContact(ctx, contact, message) {
				notified[contact.ID] = true
				notifiedIDs = append(notifiedIDs, contact.ID)
			}
		}
	}

	return notifiedIDs, nil
}

func (as *AlertService) recipientsFor(step models.EscalationStep, contacts []models.SafetyContact) []models.SafetyContact {
	switch step {
	case models.EscalatePrimaryContact:
		for _, contact := range contacts {
			if contact.IsPrimary {
				return []models.SafetyContact{contact}
			}
		}
		return nil
	case models.EscalateAllContacts:
		return contacts
	default:
		logrus.Warnf("Unknown escalation step: %s", step)
		return nil
	}
}

// sendToContact tries every channel the contact accepts. Reaching the contact
// on any one channel counts as notified.
func (as *AlertService) sendToContact(ctx context.Context, contact models.SafetyContact, message string) bool {
	to := utils.NormalizePhoneNumber(contact.PhoneNumber, contact.CountryCode)
	if to == "" {
		logrus.Warnf("Contact %s has no usable phone number", contact.ID)
		return false
	}

	delivered := false

	if contact.CanReceiveSMS {
		if err := as.sender.SendSMS(ctx, to, message); err != nil {
			logrus.Errorf("Failed to send SMS alert to contact %s: %v", contact.ID, err)
		} else {
			delivered = true
		}
	}

	if contact.CanReceiveWhatsApp {
		if err := as.sender.SendWhatsApp(ctx, to, message); err != nil {
			logrus.Errorf("Failed to send WhatsApp alert to contact %s: %v", contact.ID, err)
		} else {
			delivered = true
		}
	}

	return delivered
}
