package controllers

import (
	"strconv"

	"carebow/models"
	"carebow/services"
	"carebow/utils"
	"carebow/websocket"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type SafetyController struct {
	safetyService *services.SafetyService
	geoService    *services.GeolocationService
	validator     *utils.ValidationService
	hub           *websocket.Hub
}

func NewSafetyController(safetyService *services.SafetyService, geoService *services.GeolocationService, hub *websocket.Hub) *SafetyController {
	return &SafetyController{
		safetyService: safetyService,
		geoService:    geoService,
		validator:     utils.NewValidationService(),
		hub:           hub,
	}
}

// =================== STATE ===================

// GetState returns the user's full safety state
func (sc *SafetyController) GetState(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	state, err := sc.safetyService.GetState(c.Request.Context(), userID)
	if err != nil {
		logrus.Errorf("Get safety state failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Safety state retrieved successfully", state)
}

// GetCheckInState returns the derived check-in status for today
func (sc *SafetyController) GetCheckInState(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	state, err := sc.safetyService.GetCheckInState(c.Request.Context(), userID)
	if err != nil {
		logrus.Errorf("Get check-in state failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Check-in state retrieved successfully", state)
}

// =================== CHECK-IN ===================

// RecordCheckIn confirms today's check-in
func (sc *SafetyController) RecordCheckIn(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.RecordCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	event, err := sc.safetyService.RecordCheckIn(c.Request.Context(), userID, c.GetString("userName"), req)
	if err != nil {
		logrus.Errorf("Record check-in failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	sc.hub.BroadcastEvent(userID, *event)
	utils.CreatedResponse(c, "Check-in recorded successfully", event)
}

// =================== SOS ===================

// TriggerSOS fires an SOS alert to the user's emergency contacts
func (sc *SafetyController) TriggerSOS(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.TriggerSOSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	event, err := sc.safetyService.TriggerSOS(c.Request.Context(), userID, c.GetString("userName"), req)
	if err != nil {
		logrus.Errorf("Trigger SOS failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	sc.hub.BroadcastEvent(userID, *event)
	utils.CreatedResponse(c, "SOS triggered successfully", event)
}

// SendTestAlert delivers a test message to the primary contact
func (sc *SafetyController) SendTestAlert(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	event, err := sc.safetyService.SendTestAlert(c.Request.Context(), userID, c.GetString("userName"))
	if err != nil {
		logrus.Errorf("Send test alert failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Test alert sent successfully", event)
}

// =================== EVENTS ===================

// GetEvents returns the event history, newest first
func (sc *SafetyController) GetEvents(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			utils.BadRequestResponse(c, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	events, err := sc.safetyService.GetEvents(c.Request.Context(), userID, limit)
	if err != nil {
		logrus.Errorf("Get events failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Events retrieved successfully", events)
}

// =================== SETTINGS ===================

// UpdateSettings applies a merge-patch to the safety settings
func (sc *SafetyController) UpdateSettings(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if validationErrors := sc.validator.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	settings, err := sc.safetyService.UpdateSettings(c.Request.Context(), userID, req)
	if err != nil {
		logrus.Errorf("Update settings failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Settings updated successfully", settings)
}

// ResetSettings restores the default safety settings
func (sc *SafetyController) ResetSettings(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	settings, err := sc.safetyService.ResetSettings(c.Request.Context(), userID)
	if err != nil {
		logrus.Errorf("Reset settings failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Settings reset successfully", settings)
}

// =================== LOCATION ===================

// GetCurrentLocation resolves a fresh position fix with fallback
func (sc *SafetyController) GetCurrentLocation(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	fix, err := sc.safetyService.ResolveLocation(c.Request.Context(), userID)
	if err != nil {
		logrus.Warnf("Resolve location failed for user %s: %v", userID, err)
		utils.ErrorResponse(c, 503, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, "Location retrieved successfully", fix)
}

// ReportPosition records a device-reported position fix
func (sc *SafetyController) ReportPosition(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.ReportPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if validationErrors := sc.validator.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	fix := models.LocationFix{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Accuracy:  req.Accuracy,
	}
	sc.geoService.ReportPosition(userID, fix)

	utils.SuccessResponse(c, "Position recorded successfully", nil)
}

// =================== PERMISSIONS / DEVICES ===================

// UpdatePermissions records the device-reported permission grants
func (sc *SafetyController) UpdatePermissions(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.UpdatePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if validationErrors := sc.validator.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	permissions, err := sc.safetyService.UpdatePermissions(c.Request.Context(), userID, req)
	if err != nil {
		logrus.Errorf("Update permissions failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Permissions updated successfully", permissions)
}

// RegisterDevice stores a push token for the user's device
func (sc *SafetyController) RegisterDevice(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if validationErrors := sc.validator.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	if err := sc.safetyService.RegisterDevice(c.Request.Context(), userID, req.Token); err != nil {
		logrus.Errorf("Register device failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Device registered successfully", nil)
}
