package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipebox/internal/middleware"
	"recipebox/internal/models"
	"recipebox/internal/services"
)

type AuthHandler struct {
	auth   services.AuthService
	logger *zap.Logger
}

func NewAuthHandler(auth services.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger.Named("auth")}
}

// Register creates the account and answers with its email verification flow.
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	flow, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Check your email for the verification code",
		"flow":    viewOf(flow, flow.Session.Snapshot()),
	})
}

// Login signs in. An account whose email was never verified gets a fresh
// code and a verification flow along with the 403.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, services.ErrEmailNotVerified) {
		flow, ferr := h.auth.ResumeVerification(c.Request.Context(), req.Email)
		if ferr != nil {
			h.logger.Warn("resume verification failed", zap.Error(ferr))
			writeError(c, err)
			return
		}
		c.JSON(http.StatusForbidden, gin.H{
			"error": err.Error(),
			"flow":  viewOf(flow, flow.Session.Snapshot()),
		})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "session": session})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Session returns the signed-in account. Tokens are never part of it.
func (h *AuthHandler) Session(c *gin.Context) {
	session, ok := c.Get(middleware.SessionKey)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}
	c.JSON(http.StatusOK, session)
}
