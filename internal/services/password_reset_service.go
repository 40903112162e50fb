package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"recipebox/internal/api"
	"recipebox/internal/models"
	"recipebox/internal/otp"
)

var (
	ErrResetNotVerified = errors.New("reset code has not been verified")
	ErrResetExpired     = errors.New("reset is no longer valid, start over")
)

// ResetAPI is the part of the auth service the password reset calls.
type ResetAPI interface {
	ForgotPassword(ctx context.Context, email string) error
	ResetPasswordWithOTP(ctx context.Context, req models.ResetPasswordRequest) error
}

type PasswordResetService interface {
	// RequestReset has the backend mail a reset code and opens the flow
	// that verifies it.
	RequestReset(ctx context.Context, email string) (*Flow, error)
	// ResetPassword consumes a flow in StatusVerifiedReset.
	ResetPassword(ctx context.Context, flowID, newPassword, confirm string) error
}

type passwordResetService struct {
	api    ResetAPI
	flows  VerificationService
	logger *zap.Logger
}

func NewPasswordResetService(resetAPI ResetAPI, flows VerificationService, logger *zap.Logger) PasswordResetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &passwordResetService{
		api:    resetAPI,
		flows:  flows,
		logger: logger.Named("password-reset"),
	}
}

func (s *passwordResetService) RequestReset(ctx context.Context, email string) (*Flow, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := s.api.ForgotPassword(ctx, email); err != nil {
		s.logger.Info("reset request rejected", zap.String("category", string(api.CategoryOf(err))))
		return nil, err
	}
	return s.flows.Start(otp.PurposeForgotPassword, email)
}

func (s *passwordResetService) ResetPassword(ctx context.Context, flowID, newPassword, confirm string) error {
	flow, err := s.flows.Get(flowID)
	if err != nil {
		return err
	}
	st := flow.Session.Status()
	if flow.Purpose() != otp.PurposeForgotPassword || st.Kind != otp.StatusVerifiedReset {
		return ErrResetNotVerified
	}
	if err := ValidateNewPassword(newPassword, confirm); err != nil {
		return err
	}

	err = s.api.ResetPasswordWithOTP(ctx, models.ResetPasswordRequest{
		Email:       flow.Email,
		Token:       st.Token,
		Code:        st.Code,
		NewPassword: newPassword,
	})
	switch api.CategoryOf(err) {
	case "":
		s.logger.Info("password reset", zap.String("flow_id", flowID))
		_ = s.flows.Discard(flowID)
		return nil
	case api.CategoryInvalidToken, api.CategoryUnauthorized, api.CategoryNotFound, api.CategoryExpired:
		// The token cannot be reused; the user restarts from the email step.
		_ = s.flows.Discard(flowID)
		return fmt.Errorf("%w: %w", ErrResetExpired, err)
	}
	return err
}
