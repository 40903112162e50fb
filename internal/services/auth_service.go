package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"recipebox/internal/api"
	"recipebox/internal/models"
	"recipebox/internal/otp"
	"recipebox/internal/repositories"
	"recipebox/internal/utils"
)

var (
	ErrNameRequired       = errors.New("name is required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrNotSignedIn        = errors.New("not signed in")
)

// AccountAPI is the part of the auth service used for accounts.
type AccountAPI interface {
	otp.AuthAPI
	Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error)
	Login(ctx context.Context, email, password string) (*models.LoginResponse, error)
}

type AuthService interface {
	// Register creates the account and opens its email verification flow.
	Register(ctx context.Context, req models.RegisterRequest) (*Flow, error)
	Login(ctx context.Context, email, password string) (*models.AuthSession, error)
	// ResumeVerification sends a fresh code to an unverified account and
	// opens a flow for it.
	ResumeVerification(ctx context.Context, email string) (*Flow, error)
	Logout(ctx context.Context) error
	// CurrentSession returns ErrNotSignedIn when there is no usable session.
	CurrentSession(ctx context.Context) (*models.AuthSession, error)
}

type authService struct {
	api      AccountAPI
	sessions repositories.SessionRepository
	flows    VerificationService
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthService(accountAPI AccountAPI, sessions repositories.SessionRepository, flows VerificationService, logger *zap.Logger) AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &authService{
		api:      accountAPI,
		sessions: sessions,
		flows:    flows,
		logger:   logger.Named("auth"),
		now:      time.Now,
	}
}

func (s *authService) Register(ctx context.Context, req models.RegisterRequest) (*Flow, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, ErrNameRequired
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	req.Email = email
	if err := ValidateNewPassword(req.Password, req.Password); err != nil {
		return nil, err
	}

	if _, err := s.api.Register(ctx, req); err != nil {
		if api.CategoryOf(err) == api.CategoryConflict {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.logger.Info("account registered")
	return s.flows.Start(otp.PurposeVerifyAccountEmail, email)
}

func (s *authService) Login(ctx context.Context, email, password string) (*models.AuthSession, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}

	resp, err := s.api.Login(ctx, email, password)
	switch api.CategoryOf(err) {
	case "":
	case api.CategoryUnauthorized, api.CategoryNotFound:
		return nil, ErrInvalidCredentials
	case api.CategoryUnverified:
		return nil, ErrEmailNotVerified
	default:
		return nil, err
	}

	session := &models.AuthSession{
		Email:        email,
		AccessToken:  resp.Tokens.AccessToken,
		RefreshToken: resp.Tokens.RefreshToken,
		CreatedAt:    s.now(),
	}
	if resp.User != nil {
		session.UserID = strconv.Itoa(resp.User.ID)
	}
	claims, err := utils.ReadAccessToken(resp.Tokens.AccessToken)
	if err != nil {
		s.logger.Warn("access token unreadable, session kept without expiry", zap.Error(err))
	} else {
		session.AccessExpiresAt = claims.ExpiresAt
		if session.UserID == "" {
			session.UserID = claims.Subject
		}
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("login", zap.Time("access_expires_at", session.AccessExpiresAt))
	return session, nil
}

func (s *authService) ResumeVerification(ctx context.Context, email string) (*Flow, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := s.api.ResendOTP(ctx, email, otp.PurposeVerifyAccountEmail.String()); err != nil {
		return nil, err
	}
	return s.flows.Start(otp.PurposeVerifyAccountEmail, email)
}

func (s *authService) Logout(ctx context.Context) error {
	if err := s.sessions.Delete(ctx); err != nil {
		return err
	}
	s.logger.Info("logout")
	return nil
}

func (s *authService) CurrentSession(ctx context.Context) (*models.AuthSession, error) {
	session, err := s.sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Expired(s.now()) {
		return nil, ErrNotSignedIn
	}
	return session, nil
}
