package utils

import (
	"context"
	"fmt"

	"carebow/models"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"google.golang.org/api/option"
)

type NotificationResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PushTransport delivers safety notifications to devices through FCM.
type PushTransport struct {
	fcmClient *messaging.Client
}

func NewPushTransport(firebaseCredentials string) (*PushTransport, error) {
	opt := option.WithCredentialsFile(firebaseCredentials)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase: %v", err)
	}

	fcmClient, err := app.Messaging(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize FCM client: %v", err)
	}

	return &PushTransport{fcmClient: fcmClient}, nil
}

// SendPush delivers a single notification to one device token. Action
// identifiers ride in the data payload so the device can render the
// interactive options and bring the app to the foreground when tapped.
func (pt *PushTransport) SendPush(ctx context.Context, deviceToken string, notification models.SafetyNotification) (*NotificationResult, error) {
	data := make(map[string]string, len(notification.Data)+len(notification.Actions))
	for k, v := range notification.Data {
		data[k] = v
	}
	for i, action := range notification.Actions {
		data[fmt.Sprintf("action_%d_id", i)] = action.ID
		data[fmt.Sprintf("action_%d_label", i)] = action.Label
	}

	message := &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
				Icon:  "ic_notification",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: notification.Title,
						Body:  notification.Body,
					},
					Sound: "default",
				},
			},
		},
	}

	response, err := pt.fcmClient.Send(ctx, message)
	if err != nil {
		return &NotificationResult{
			Success: false,
			Error:   err.Error(),
		}, err
	}

	return &NotificationResult{
		Success:   true,
		MessageID: response,
	}, nil
}

// MessagingTransport sends outbound alert messages over Twilio SMS and
// WhatsApp. Delivery is best-effort; the caller treats failures as non-fatal.
type MessagingTransport struct {
	twilioClient   *twilio.RestClient
	smsNumber      string
	whatsappNumber string
}

func NewMessagingTransport(twilioSID, twilioToken, smsNumber, whatsappNumber string) *MessagingTransport {
	twilioClient := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: twilioSID,
		Password: twilioToken,
	})

	return &MessagingTransport{
		twilioClient:   twilioClient,
		smsNumber:      smsNumber,
		whatsappNumber: whatsappNumber,
	}
}

func (mt *MessagingTransport) SendSMS(ctx context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(mt.smsNumber)
	params.SetBody(body)

	_, err := mt.twilioClient.Api.CreateMessage(params)
	return err
}

func (mt *MessagingTransport) SendWhatsApp(ctx context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + to)
	params.SetFrom("whatsapp:" + mt.whatsappNumber)
	params.SetBody(body)

	_, err := mt.twilioClient.Api.CreateMessage(params)
	return err
}
