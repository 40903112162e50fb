package services

import (
	"context"
	"sync"
	"time"

	"recipebox/internal/models"
)

type fakeAuthAPI struct {
	mu sync.Mutex

	registerErr error
	loginResp   *models.LoginResponse
	loginErr    error
	forgotErr   error
	resetErr    error
	verifyErr   error
	resendErr   error
	resetToken  string

	forgotCalls []string
	resetCalls  []models.ResetPasswordRequest
	resendCalls []string
}

func (f *fakeAuthAPI) Register(_ context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.RegisterResponse{Message: "ok"}, nil
}

func (f *fakeAuthAPI) Login(_ context.Context, _, _ string) (*models.LoginResponse, error) {
	return f.loginResp, f.loginErr
}

func (f *fakeAuthAPI) ForgotPassword(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotCalls = append(f.forgotCalls, email)
	return f.forgotErr
}

func (f *fakeAuthAPI) ResetPasswordWithOTP(_ context.Context, req models.ResetPasswordRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls = append(f.resetCalls, req)
	return f.resetErr
}

func (f *fakeAuthAPI) VerifyEmailOTP(_ context.Context, _, _ string) error {
	return f.verifyErr
}

func (f *fakeAuthAPI) VerifyEmailOTPForReset(_ context.Context, _, _ string) (string, error) {
	if f.verifyErr != nil {
		return "", f.verifyErr
	}
	return f.resetToken, nil
}

func (f *fakeAuthAPI) ResendOTP(_ context.Context, email, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resendCalls = append(f.resendCalls, email)
	return f.resendErr
}

type memorySessions struct {
	mu      sync.Mutex
	session *models.AuthSession
}

func (m *memorySessions) Migrate(context.Context) error { return nil }

func (m *memorySessions) Save(_ context.Context, s *models.AuthSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.session = &cp
	return nil
}

func (m *memorySessions) Load(context.Context) (*models.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	cp := *m.session
	return &cp, nil
}

func (m *memorySessions) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func testFlows(api *fakeAuthAPI) VerificationService {
	return NewVerificationService(api, VerificationOptions{CooldownSeconds: 60, TickInterval: time.Hour}, nil)
}

type memoryAttempts struct {
	mu   sync.Mutex
	rows []models.VerificationAttempt
}

func (m *memoryAttempts) Migrate(context.Context) error { return nil }

func (m *memoryAttempts) Record(_ context.Context, a *models.VerificationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, *a)
	return nil
}

func (m *memoryAttempts) Recent(_ context.Context, email string, limit int) ([]models.VerificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.VerificationAttempt
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if m.rows[i].Email == email {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memoryAttempts) events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r.Event+":"+r.Reason)
	}
	return out
}
