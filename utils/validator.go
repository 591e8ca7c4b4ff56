package utils

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

type ValidationService struct {
	validator *validator.Validate
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func NewValidationService() *ValidationService {
	v := validator.New()

	// Register custom validators
	v.RegisterValidation("phone", validatePhone)
	v.RegisterValidation("checkin_time", validateCheckInTime)
	v.RegisterValidation("grace_period", validateGracePeriod)
	v.RegisterValidation("escalation_step", validateEscalationStep)

	return &ValidationService{
		validator: v,
	}
}

func (vs *ValidationService) ValidateStruct(s interface{}) []ValidationError {
	var validationErrors []ValidationError

	err := vs.validator.Struct(s)
	if err != nil {
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, ValidationError{
				Field:   err.Field(),
				Tag:     err.Tag(),
				Value:   fmt.Sprintf("%v", err.Value()),
				Message: vs.getErrorMessage(err),
			})
		}
	}

	return validationErrors
}

func (vs *ValidationService) getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "phone":
		return "Invalid phone number format"
	case "checkin_time":
		return "Check-in time must be in 24-hour HH:MM format"
	case "grace_period":
		return "Grace period must be between 1 and 1440 minutes"
	case "escalation_step":
		return "Invalid escalation step"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// Custom validation functions
func validatePhone(fl validator.FieldLevel) bool {
	return IsValidPhoneNumber(fl.Field().String())
}

func validateCheckInTime(fl validator.FieldLevel) bool {
	return IsValidTimeFormat(fl.Field().String())
}

func validateGracePeriod(fl validator.FieldLevel) bool {
	return IsValidGracePeriod(int(fl.Field().Int()))
}

func validateEscalationStep(fl validator.FieldLevel) bool {
	step := fl.Field().String()
	return step == "PRIMARY_CONTACT" || step == "ALL_CONTACTS"
}

var timeFormatRegex = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// IsValidTimeFormat reports whether timeStr is a 24-hour HH:MM clock time.
func IsValidTimeFormat(timeStr string) bool {
	return timeFormatRegex.MatchString(timeStr)
}

// IsValidGracePeriod reports whether minutes is within the allowed [1,1440]
// window. Out-of-range values are rejected, never clamped.
func IsValidGracePeriod(minutes int) bool {
	return minutes >= 1 && minutes <= 1440
}
