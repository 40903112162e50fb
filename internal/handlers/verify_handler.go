package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipebox/internal/middleware"
	"recipebox/internal/models"
	"recipebox/internal/otp"
	"recipebox/internal/services"
)

// ScreenOptions configures how the code screen behaves over HTTP.
type ScreenOptions struct {
	// AutoSubmit verifies as soon as the sixth digit is entered.
	AutoSubmit bool

	// CallTimeout bounds a verify or resend call once it is detached from
	// the shell's request. Zero leaves it to the API client.
	CallTimeout time.Duration
}

// VerifyHandler binds the code screen of a flow to HTTP.
type VerifyHandler struct {
	flows  services.VerificationService
	opts   ScreenOptions
	logger *zap.Logger
}

func NewVerifyHandler(flows services.VerificationService, opts ScreenOptions, logger *zap.Logger) *VerifyHandler {
	return &VerifyHandler{flows: flows, opts: opts, logger: logger.Named("verify")}
}

// StartEmail opens the email verification screen for a code that was already
// sent, e.g. right after registering.
func (h *VerifyHandler) StartEmail(c *gin.Context) {
	h.start(c, otp.PurposeVerifyAccountEmail)
}

// StartReset opens the reset code screen for a code that was already sent.
func (h *VerifyHandler) StartReset(c *gin.Context) {
	h.start(c, otp.PurposeForgotPassword)
}

func (h *VerifyHandler) start(c *gin.Context, purpose otp.Purpose) {
	var req models.StartFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	flow, err := h.flows.Start(purpose, req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(flow, flow.Session.Snapshot()))
}

func (h *VerifyHandler) Get(c *gin.Context) {
	flow, ok := flowFromCtx(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "flow not found"})
		return
	}
	c.JSON(http.StatusOK, viewOf(flow, flow.Session.Snapshot()))
}

func (h *VerifyHandler) Digit(c *gin.Context) {
	flow, ok := flowFromCtx(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "flow not found"})
		return
	}
	var req models.DigitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sig, err := flow.Session.SetDigit(*req.Index, req.Value)
	if err != nil {
		writeError(c, err)
		return
	}
	if snap := flow.Session.Snapshot(); h.opts.AutoSubmit && snap.Status.Kind == otp.StatusEditing && complete(snap) {
		ctx, cancel := h.callContext(c)
		_, err := flow.Session.Submit(ctx)
		cancel()
		if err != nil {
			h.logger.Debug("auto submit skipped", zap.String("flow_id", flow.ID), zap.Error(err))
		}
	}
	v := viewOf(flow, flow.Session.Snapshot())
	v.Signal = &sig
	c.JSON(http.StatusOK, v)
}

func (h *VerifyHandler) Backspace(c *gin.Context) {
	flow, ok := flowFromCtx(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "flow not found"})
		return
	}
	var req models.BackspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sig, err := flow.Session.HandleBackspaceAt(*req.Index)
	if err != nil {
		writeError(c, err)
		return
	}
	v := viewOf(flow, flow.Session.Snapshot())
	v.Signal = &sig
	c.JSON(http.StatusOK, v)
}

// Submit verifies the entered code. A rejected code is not an HTTP error:
// the failure travels in the snapshot and the screen stays editable.
func (h *VerifyHandler) Submit(c *gin.Context) {
	flow, ok := flowFromCtx(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "flow not found"})
		return
	}
	ctx, cancel := h.callContext(c)
	defer cancel()
	if _, err := flow.Session.Submit(ctx); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(flow, flow.Session.Snapshot()))
}

func (h *VerifyHandler) Resend(c *gin.Context) {
	flow, ok := flowFromCtx(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "flow not found"})
		return
	}
	ctx, cancel := h.callContext(c)
	defer cancel()
	if _, err := flow.Session.Resend(ctx); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(flow, flow.Session.Snapshot()))
}

// Events streams snapshots as server-sent events until the flow reaches a
// terminal state, is discarded, or the client goes away.
func (h *VerifyHandler) Events(c *gin.Context) {
	flow, ok := flowFromCtx(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "flow not found"})
		return
	}
	snaps, cancel := flow.Session.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case snap, open := <-snaps:
			if !open {
				c.SSEvent("closed", gin.H{"id": flow.ID})
				return false
			}
			c.SSEvent("snapshot", viewOf(flow, snap))
			return !snap.Status.Terminal()
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// Discard is the screen unmount: the flow is dropped and its cooldown stops.
func (h *VerifyHandler) Discard(c *gin.Context) {
	if err := h.flows.Discard(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Attempts lists recent code screen outcomes of the signed-in account.
func (h *VerifyHandler) Attempts(c *gin.Context) {
	v, _ := c.Get(middleware.SessionKey)
	session, ok := v.(*models.AuthSession)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	attempts, err := h.flows.Attempts(c.Request.Context(), session.Email, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if attempts == nil {
		attempts = []models.VerificationAttempt{}
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

// callContext detaches a verify or resend from the shell's request so its
// outcome always lands in the flow.
func (h *VerifyHandler) callContext(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(c.Request.Context())
	if h.opts.CallTimeout > 0 {
		return context.WithTimeout(ctx, h.opts.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func complete(snap otp.Snapshot) bool {
	for _, cell := range snap.Cells {
		if cell == "" {
			return false
		}
	}
	return true
}
