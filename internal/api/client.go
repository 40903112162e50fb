package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"recipebox/internal/models"
)

const (
	pathRegister       = "/auth/register"
	pathLogin          = "/auth/login"
	pathForgotPassword = "/auth/forgot-password"
	pathVerifyEmailOTP = "/auth/verify-email-otp"
	pathVerifyResetOTP = "/auth/verify-email-otp-for-reset"
	pathResendOTP      = "/auth/resend-otp"
	pathResetWithOTP   = "/auth/reset-password-with-otp"
	defaultTimeout     = 15 * time.Second
	maxErrorBodyBytes  = 64 << 10
)

// Purposes understood by the resend endpoint.
const (
	PurposeVerifyAccountEmail = "verify_account_email"
	PurposeForgotPassword     = "forgot_password"
)

// Client talks JSON to the recipe API's auth endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("api"),
	}
}

// Register creates an account. The backend mails an email-verification OTP.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	var out models.RegisterResponse
	if err := c.post(ctx, pathRegister, req, &out, badRequestAs(CategoryValidation)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var out models.LoginResponse
	in := models.LoginRequest{Email: email, Password: password}
	if err := c.post(ctx, pathLogin, in, &out, badRequestAs(CategoryUnauthorized)); err != nil {
		return nil, err
	}
	if out.Tokens.AccessToken == "" {
		return nil, &Error{Category: CategoryServer, Message: "login response without access token"}
	}
	return &out, nil
}

// ForgotPassword asks the backend to mail a password-reset OTP.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	in := models.ForgotPasswordRequest{Email: email}
	return c.post(ctx, pathForgotPassword, in, nil, badRequestAs(CategoryValidation))
}

func (c *Client) VerifyEmailOTP(ctx context.Context, email, code string) error {
	in := otpRequest{Email: email, Code: code}
	return c.post(ctx, pathVerifyEmailOTP, in, nil, badRequestAs(CategoryInvalidCode))
}

// VerifyEmailOTPForReset checks a reset OTP and returns the reset token the
// backend issues for the following ResetPasswordWithOTP call.
func (c *Client) VerifyEmailOTPForReset(ctx context.Context, email, code string) (string, error) {
	var out resetTokenResponse
	in := otpRequest{Email: email, Code: code}
	if err := c.post(ctx, pathVerifyResetOTP, in, &out, badRequestAs(CategoryInvalidCode)); err != nil {
		return "", err
	}
	token := out.token()
	if token == "" {
		return "", &Error{Category: CategoryServer, Message: "verify response without reset token"}
	}
	return token, nil
}

func (c *Client) ResendOTP(ctx context.Context, email, purpose string) error {
	in := resendRequest{Email: email, Purpose: purpose}
	return c.post(ctx, pathResendOTP, in, nil, badRequestAs(CategoryValidation))
}

func (c *Client) ResetPasswordWithOTP(ctx context.Context, req models.ResetPasswordRequest) error {
	return c.post(ctx, pathResetWithOTP, req, nil, badRequestAs(CategoryInvalidToken))
}

type otpRequest struct {
	Email string `json:"email"`
	Code  string `json:"otp"`
}

type resendRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

type resetTokenResponse struct {
	ResetToken string `json:"reset_token"`
	Token      string `json:"token"`
	Data       struct {
		ResetToken string `json:"reset_token"`
	} `json:"data"`
}

func (r resetTokenResponse) token() string {
	for _, t := range []string{r.ResetToken, r.Token, r.Data.ResetToken} {
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	return ""
}

func (c *Client) post(ctx context.Context, path string, in, out any, onBadRequest badRequestAs) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("api request failed", zap.String("path", path), zap.Error(err))
		return &Error{Category: CategoryNetwork, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return &Error{Category: CategoryServer, Status: resp.StatusCode, Message: "malformed response", Err: err}
		}
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	msg := eb.text()
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	apiErr := &Error{
		Category: classify(resp.StatusCode, eb, onBadRequest),
		Status:   resp.StatusCode,
		Message:  msg,
	}
	c.logger.Info("api request rejected",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("category", string(apiErr.Category)),
	)
	return apiErr
}
