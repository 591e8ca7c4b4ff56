package models

// =================== REQUEST MODELS ===================

type RecordCheckInRequest struct {
	Note     string       `json:"note,omitempty"`
	Location *LocationFix `json:"location,omitempty"`
}

type TriggerSOSRequest struct {
	Note     string       `json:"note,omitempty"`
	Location *LocationFix `json:"location,omitempty"`
}

type AddContactRequest struct {
	Name               string `json:"name" validate:"required,min=1,max=100"`
	Relationship       string `json:"relationship,omitempty" validate:"max=50"`
	PhoneNumber        string `json:"phoneNumber" validate:"required,phone"`
	CountryCode        string `json:"countryCode,omitempty"`
	IsPrimary          bool   `json:"isPrimary"`
	CanReceiveSMS      bool   `json:"canReceiveSMS"`
	CanReceiveWhatsApp bool   `json:"canReceiveWhatsApp"`
}

type UpdateContactRequest struct {
	Name               *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Relationship       *string `json:"relationship,omitempty" validate:"omitempty,max=50"`
	PhoneNumber        *string `json:"phoneNumber,omitempty" validate:"omitempty,phone"`
	CountryCode        *string `json:"countryCode,omitempty"`
	IsPrimary          *bool   `json:"isPrimary,omitempty"`
	CanReceiveSMS      *bool   `json:"canReceiveSMS,omitempty"`
	CanReceiveWhatsApp *bool   `json:"canReceiveWhatsApp,omitempty"`
}

// UpdateSettingsRequest carries merge-patch semantics: only non-nil fields are
// applied. Invalid values are rejected before any write, never clamped.
type UpdateSettingsRequest struct {
	DailyCheckInEnabled          *bool            `json:"dailyCheckInEnabled,omitempty"`
	DailyCheckInTime             *string          `json:"dailyCheckInTime,omitempty" validate:"omitempty,checkin_time"`
	GracePeriodMinutes           *int             `json:"gracePeriodMinutes,omitempty" validate:"omitempty,grace_period"`
	EscalationEnabled            *bool            `json:"escalationEnabled,omitempty"`
	EscalationOrder              []EscalationStep `json:"escalationOrder,omitempty" validate:"omitempty,dive,escalation_step"`
	ShareLocationOnSOS           *bool            `json:"shareLocationOnSOS,omitempty"`
	ShareLocationOnMissedCheckIn *bool            `json:"shareLocationOnMissedCheckIn,omitempty"`
}

type ReportPositionRequest struct {
	Latitude  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"lng" validate:"gte=-180,lte=180"`
	Accuracy  float64 `json:"accuracy" validate:"gte=0"`
}

type UpdatePermissionsRequest struct {
	Location      *PermissionStatus `json:"location,omitempty" validate:"omitempty,oneof=granted denied undetermined"`
	Notifications *PermissionStatus `json:"notifications,omitempty" validate:"omitempty,oneof=granted denied undetermined"`
}

type RegisterDeviceRequest struct {
	Token string `json:"token" validate:"required"`
}
