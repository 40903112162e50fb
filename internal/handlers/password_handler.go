package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recipebox/internal/models"
	"recipebox/internal/services"
)

type PasswordHandler struct {
	resets services.PasswordResetService
}

func NewPasswordHandler(resets services.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{resets: resets}
}

// Forgot has a reset code mailed and answers with the flow that verifies it.
func (h *PasswordHandler) Forgot(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	flow, err := h.resets.RequestReset(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Check your email for the reset code",
		"flow":    viewOf(flow, flow.Session.Snapshot()),
	})
}

// Reset sets the new password for a flow whose code has been verified.
func (h *PasswordHandler) Reset(c *gin.Context) {
	var req models.CompleteResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.resets.ResetPassword(c.Request.Context(), req.FlowID, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated", "next": nextLogin})
}
