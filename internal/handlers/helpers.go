package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"recipebox/internal/api"
	"recipebox/internal/middleware"
	"recipebox/internal/otp"
	"recipebox/internal/services"
)

// Screens the shell navigates to once a flow is done.
const (
	nextHome          = "home"
	nextResetPassword = "reset-password"
	nextLogin         = "login"
)

// flowView is the JSON a screen renders for a flow.
type flowView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	otp.Snapshot
	Signal *otp.FocusSignal `json:"signal,omitempty"`
	Next   string           `json:"next,omitempty"`
}

func viewOf(flow *services.Flow, snap otp.Snapshot) flowView {
	v := flowView{ID: flow.ID, Email: flow.Email, Snapshot: snap}
	switch snap.Status.Kind {
	case otp.StatusVerifiedEmail:
		v.Next = nextHome
	case otp.StatusVerifiedReset:
		v.Next = nextResetPassword
	}
	return v
}

func flowFromCtx(c *gin.Context) (*services.Flow, bool) {
	v, ok := c.Get(middleware.FlowKey)
	if !ok {
		return nil, false
	}
	flow, ok := v.(*services.Flow)
	return flow, ok
}

func writeError(c *gin.Context, err error) {
	status := errorStatus(err)
	msg := err.Error()
	switch {
	case status == http.StatusBadGateway:
		msg = "auth service unavailable"
	case status >= http.StatusInternalServerError:
		msg = "request failed"
	}
	c.JSON(status, gin.H{"error": msg})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrFlowNotFound):
		return http.StatusNotFound
	case errors.Is(err, otp.ErrSessionClosed), errors.Is(err, services.ErrResetExpired):
		return http.StatusGone
	case errors.Is(err, otp.ErrCooldown):
		return http.StatusTooManyRequests
	case errors.Is(err, otp.ErrVerifying),
		errors.Is(err, otp.ErrResending),
		errors.Is(err, otp.ErrSessionDone),
		errors.Is(err, otp.ErrNotEditable),
		errors.Is(err, services.ErrResetNotVerified),
		errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, services.ErrEmailRequired),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrNameRequired),
		errors.Is(err, services.ErrPasswordRequired),
		errors.Is(err, services.ErrPasswordTooShort),
		errors.Is(err, services.ErrPasswordMismatch):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrNotSignedIn):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrEmailNotVerified):
		return http.StatusForbidden
	}

	switch api.CategoryOf(err) {
	case api.CategoryNotFound:
		return http.StatusNotFound
	case api.CategoryRateLimited:
		return http.StatusTooManyRequests
	case api.CategoryValidation, api.CategoryInvalidCode:
		return http.StatusBadRequest
	case api.CategoryConflict:
		return http.StatusConflict
	case api.CategoryNetwork, api.CategoryServer:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
