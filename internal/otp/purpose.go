package otp

import (
	"context"
	"fmt"
	"strings"

	"recipebox/internal/api"
)

// Purpose is the business reason a code was issued. It is fixed for the
// lifetime of a Session.
type Purpose int

const (
	PurposeVerifyAccountEmail Purpose = iota + 1
	PurposeForgotPassword
)

func (p Purpose) String() string {
	switch p {
	case PurposeVerifyAccountEmail:
		return api.PurposeVerifyAccountEmail
	case PurposeForgotPassword:
		return api.PurposeForgotPassword
	}
	return fmt.Sprintf("purpose(%d)", int(p))
}

func (p Purpose) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ParsePurpose accepts the String form and the short CLI/route names.
func ParsePurpose(s string) (Purpose, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case api.PurposeVerifyAccountEmail, "verify-email", "email":
		return PurposeVerifyAccountEmail, nil
	case api.PurposeForgotPassword, "verify-reset", "reset":
		return PurposeForgotPassword, nil
	}
	return 0, fmt.Errorf("unknown purpose %q", s)
}

// AuthAPI is the part of the remote auth service the verification flows call.
// *api.Client implements it.
type AuthAPI interface {
	VerifyEmailOTP(ctx context.Context, email, code string) error
	VerifyEmailOTPForReset(ctx context.Context, email, code string) (string, error)
	ResendOTP(ctx context.Context, email, purpose string) error
}

// Strategy binds a Purpose to the endpoints that verify and resend its code.
// Verify returns the token the success state carries forward, if any.
type Strategy interface {
	Purpose() Purpose
	Identifier() string
	Verify(ctx context.Context, code string) (string, error)
	Resend(ctx context.Context) error
}

// NewStrategy returns the strategy for p, bound to email.
func NewStrategy(p Purpose, auth AuthAPI, email string) (Strategy, error) {
	switch p {
	case PurposeVerifyAccountEmail:
		return &emailVerification{auth: auth, email: email}, nil
	case PurposeForgotPassword:
		return &passwordReset{auth: auth, email: email}, nil
	}
	return nil, fmt.Errorf("unknown purpose %v", p)
}

type emailVerification struct {
	auth  AuthAPI
	email string
}

func (s *emailVerification) Purpose() Purpose   { return PurposeVerifyAccountEmail }
func (s *emailVerification) Identifier() string { return s.email }

func (s *emailVerification) Verify(ctx context.Context, code string) (string, error) {
	return "", s.auth.VerifyEmailOTP(ctx, s.email, code)
}

func (s *emailVerification) Resend(ctx context.Context) error {
	return s.auth.ResendOTP(ctx, s.email, s.Purpose().String())
}

type passwordReset struct {
	auth  AuthAPI
	email string
}

func (s *passwordReset) Purpose() Purpose   { return PurposeForgotPassword }
func (s *passwordReset) Identifier() string { return s.email }

func (s *passwordReset) Verify(ctx context.Context, code string) (string, error) {
	return s.auth.VerifyEmailOTPForReset(ctx, s.email, code)
}

func (s *passwordReset) Resend(ctx context.Context) error {
	return s.auth.ResendOTP(ctx, s.email, s.Purpose().String())
}
