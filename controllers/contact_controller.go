package controllers

import (
	"carebow/models"
	"carebow/services"
	"carebow/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ContactController struct {
	safetyService *services.SafetyService
	validator     *utils.ValidationService
}

func NewContactController(safetyService *services.SafetyService) *ContactController {
	return &ContactController{
		safetyService: safetyService,
		validator:     utils.NewValidationService(),
	}
}

// GetContacts lists the user's emergency contacts
func (cc *ContactController) GetContacts(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	contacts, err := cc.safetyService.GetContacts(c.Request.Context(), userID)
	if err != nil {
		logrus.Errorf("Get contacts failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Contacts retrieved successfully", contacts)
}

// AddContact adds an emergency contact
func (cc *ContactController) AddContact(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.AddContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if validationErrors := cc.validator.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	contact, err := cc.safetyService.AddContact(c.Request.Context(), userID, req)
	if err != nil {
		logrus.Errorf("Add contact failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Contact added successfully", contact)
}

// UpdateContact applies a merge-patch to a contact
func (cc *ContactController) UpdateContact(c *gin.Context) {
	userID := c.GetString("userID")
	contactID := c.Param("contactId")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if validationErrors := cc.validator.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	contact, err := cc.safetyService.UpdateContact(c.Request.Context(), userID, contactID, req)
	if err != nil {
		logrus.Errorf("Update contact failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Contact updated successfully", contact)
}

// DeleteContact removes a contact
func (cc *ContactController) DeleteContact(c *gin.Context) {
	userID := c.GetString("userID")
	contactID := c.Param("contactId")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	if err := cc.safetyService.DeleteContact(c.Request.Context(), userID, contactID); err != nil {
		logrus.Errorf("Delete contact failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Contact deleted successfully", nil)
}

// SetPrimaryContact promotes a contact to primary
func (cc *ContactController) SetPrimaryContact(c *gin.Context) {
	userID := c.GetString("userID")
	contactID := c.Param("contactId")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	contact, err := cc.safetyService.SetPrimaryContact(c.Request.Context(), userID, contactID)
	if err != nil {
		logrus.Errorf("Set primary contact failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Primary contact updated successfully", contact)
}
