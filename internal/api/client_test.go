package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipebox/internal/models"
)

// backend answers path with status and body, recording the decoded request.
func backend(t *testing.T, path string, status int, body any, got *map[string]any) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, path, r.URL.Path)
		if got != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", time.Second, nil)
}

func TestClient_VerifyEmailOTPForReset(t *testing.T) {
	var got map[string]any
	c := backend(t, pathVerifyResetOTP, http.StatusOK, map[string]string{"reset_token": "T1"}, &got)

	token, err := c.VerifyEmailOTPForReset(context.Background(), "cook@example.com", "000000")
	require.NoError(t, err)
	assert.Equal(t, "T1", token)
	assert.Equal(t, "cook@example.com", got["email"])
	assert.Equal(t, "000000", got["otp"])
}

func TestClient_ResetTokenShapes(t *testing.T) {
	bodies := []any{
		map[string]string{"token": "abc"},
		map[string]any{"data": map[string]string{"reset_token": "abc"}},
	}
	for _, body := range bodies {
		c := backend(t, pathVerifyResetOTP, http.StatusOK, body, nil)
		token, err := c.VerifyEmailOTPForReset(context.Background(), "a@b.c", "123456")
		require.NoError(t, err)
		assert.Equal(t, "abc", token)
	}

	c := backend(t, pathVerifyResetOTP, http.StatusOK, map[string]string{}, nil)
	_, err := c.VerifyEmailOTPForReset(context.Background(), "a@b.c", "123456")
	assert.Equal(t, CategoryServer, CategoryOf(err))
}

func TestClient_ErrorCategories(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]string
		call   func(*Client) error
		want   Category
	}{
		{"bad code", 400, map[string]string{"error": "invalid code"}, verifyEmail, CategoryInvalidCode},
		{"expired text", 400, map[string]string{"error": "code expired, please resend"}, verifyEmail, CategoryExpired},
		{"expired code field", 400, map[string]string{"code": "otp_expired"}, verifyEmail, CategoryExpired},
		{"gone", 410, nil, verifyEmail, CategoryExpired},
		{"unknown email", 404, map[string]string{"error": "user not found"}, verifyEmail, CategoryNotFound},
		{"throttled", 429, map[string]string{"error": "too many requests, try later"}, resend, CategoryRateLimited},
		{"server", 503, nil, resend, CategoryServer},
		{"reset bad token", 400, map[string]string{"error": "invalid or expired token"}, reset, CategoryInvalidToken},
		{"reset unauthorized", 401, nil, reset, CategoryUnauthorized},
		{"login unverified", 403, map[string]string{"error": "email not verified"}, login, CategoryUnverified},
		{"register conflict", 409, map[string]string{"error": "email taken"}, register, CategoryConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != nil {
					_ = json.NewEncoder(w).Encode(tt.body)
				}
			}))
			defer srv.Close()

			err := tt.call(NewClient(srv.URL, time.Second, nil))
			require.Error(t, err)
			assert.Equal(t, tt.want, CategoryOf(err))

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
		})
	}
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewClient(url, time.Second, nil).ResendOTP(context.Background(), "a@b.c", PurposeVerifyAccountEmail)
	assert.Equal(t, CategoryNetwork, CategoryOf(err))
}

func TestClient_Login(t *testing.T) {
	var got map[string]any
	c := backend(t, pathLogin, http.StatusOK, models.LoginResponse{
		Message: "Login successful",
		Tokens:  models.Tokens{AccessToken: "a.b.c", RefreshToken: "r"},
	}, &got)

	resp, err := c.Login(context.Background(), "cook@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", resp.Tokens.AccessToken)
	assert.Equal(t, "secret123", got["password"])
}

func verifyEmail(c *Client) error {
	return c.VerifyEmailOTP(context.Background(), "a@b.c", "123456")
}

func resend(c *Client) error {
	return c.ResendOTP(context.Background(), "a@b.c", PurposeForgotPassword)
}

func reset(c *Client) error {
	return c.ResetPasswordWithOTP(context.Background(), models.ResetPasswordRequest{
		Email: "a@b.c", Token: "t", Code: "123456", NewPassword: "longenough",
	})
}

func login(c *Client) error {
	_, err := c.Login(context.Background(), "a@b.c", "pw")
	return err
}

func register(c *Client) error {
	_, err := c.Register(context.Background(), models.RegisterRequest{Name: "A", Email: "a@b.c", Password: "pw"})
	return err
}
