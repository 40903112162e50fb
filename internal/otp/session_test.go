package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipebox/internal/api"
)

type fakeAPI struct {
	mu          sync.Mutex
	verifyCalls []string
	resendCalls []string
	verifyErr   error
	resendErr   error
	token       string

	// gate, when set, holds Verify until it is closed. entered is signalled
	// once Verify has been reached.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeAPI) verify(code string) error {
	f.mu.Lock()
	f.verifyCalls = append(f.verifyCalls, code)
	gate, entered, err := f.gate, f.entered, f.verifyErr
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeAPI) VerifyEmailOTP(_ context.Context, _, code string) error {
	return f.verify(code)
}

func (f *fakeAPI) VerifyEmailOTPForReset(_ context.Context, _, code string) (string, error) {
	if err := f.verify(code); err != nil {
		return "", err
	}
	return f.token, nil
}

func (f *fakeAPI) ResendOTP(_ context.Context, _, purpose string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resendCalls = append(f.resendCalls, purpose)
	return f.resendErr
}

func (f *fakeAPI) counts() (verify, resend int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.verifyCalls), len(f.resendCalls)
}

type statusLog struct {
	mu    sync.Mutex
	kinds []StatusKind
}

func (l *statusLog) record(st Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.kinds = append(l.kinds, st.Kind)
}

func (l *statusLog) get() []StatusKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]StatusKind(nil), l.kinds...)
}

func newTestSession(t *testing.T, p Purpose, fake *fakeAPI, log *statusLog) *Session {
	t.Helper()
	strategy, err := NewStrategy(p, fake, "cook@example.com")
	require.NoError(t, err)
	opts := Options{CooldownSeconds: 2, TickInterval: time.Hour}
	if log != nil {
		opts.OnStatus = log.record
	}
	s := NewSession(strategy, opts)
	t.Cleanup(s.Close)
	return s
}

func enterCode(t *testing.T, s *Session, code string) {
	t.Helper()
	for i, r := range code {
		_, err := s.SetDigit(i, string(r))
		require.NoError(t, err)
	}
}

func elapseCooldown(s *Session) {
	for i := 0; i < s.window; i++ {
		s.cooldown.Tick()
	}
}

func TestSession_IncompleteCodeNeverCallsAPI(t *testing.T) {
	for n := 0; n < CodeLength; n++ {
		fake := &fakeAPI{}
		s := newTestSession(t, PurposeVerifyAccountEmail, fake, nil)
		enterCode(t, s, "123456"[:n])

		st, err := s.Submit(context.Background())
		require.NoError(t, err)

		verify, _ := fake.counts()
		assert.Zero(t, verify, "code length %d", n)
		assert.Equal(t, StatusEditing, st.Kind)
		require.NotNil(t, st.Failure)
		assert.Equal(t, ReasonIncomplete, st.Failure.Reason)
		assert.Equal(t, PresentationField, st.Failure.Presentation)
	}
}

func TestSession_NonDigitDoesNotChangeCells(t *testing.T) {
	s := newTestSession(t, PurposeVerifyAccountEmail, &fakeAPI{}, nil)
	enterCode(t, s, "12")
	before := s.Snapshot()

	for _, in := range []string{"a", "34", "+", " "} {
		_, err := s.SetDigit(2, in)
		require.NoError(t, err)
	}
	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Errorf("snapshot changed (-before +after):\n%s", diff)
	}
}

func TestSession_SecondSubmitWhileVerifyingIsIgnored(t *testing.T) {
	fake := &fakeAPI{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	s := newTestSession(t, PurposeVerifyAccountEmail, fake, nil)
	elapseCooldown(s)
	enterCode(t, s, "123456")

	done := make(chan Status, 1)
	go func() {
		st, _ := s.Submit(context.Background())
		done <- st
	}()
	<-fake.entered

	st, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrVerifying)
	assert.Equal(t, StatusVerifying, st.Kind)

	_, err = s.Resend(context.Background())
	assert.ErrorIs(t, err, ErrVerifying)

	_, err = s.SetDigit(0, "9")
	assert.ErrorIs(t, err, ErrNotEditable)

	verify, resend := fake.counts()
	assert.Equal(t, 1, verify)
	assert.Zero(t, resend)
	assert.Equal(t, StatusVerifying, s.Status().Kind)

	close(fake.gate)
	final := <-done
	assert.Equal(t, StatusVerifiedEmail, final.Kind)
}

func TestSession_PurposeRouting(t *testing.T) {
	t.Run("forgot password carries token and code", func(t *testing.T) {
		fake := &fakeAPI{token: "T1"}
		s := newTestSession(t, PurposeForgotPassword, fake, nil)
		enterCode(t, s, "000000")

		st, err := s.Submit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Status{Kind: StatusVerifiedReset, Token: "T1", Code: "000000"}, st)
		assert.False(t, s.cooldown.Running())
	})

	t.Run("email verification ignores token", func(t *testing.T) {
		fake := &fakeAPI{token: "abc"}
		s := newTestSession(t, PurposeVerifyAccountEmail, fake, nil)
		enterCode(t, s, "000000")

		st, err := s.Submit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Status{Kind: StatusVerifiedEmail}, st)
	})
}

func TestSession_TerminalStateIsFinal(t *testing.T) {
	s := newTestSession(t, PurposeVerifyAccountEmail, &fakeAPI{}, nil)
	elapseCooldown(s)
	enterCode(t, s, "111111")
	_, err := s.Submit(context.Background())
	require.NoError(t, err)

	_, err = s.SetDigit(0, "2")
	assert.ErrorIs(t, err, ErrSessionDone)
	_, err = s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSessionDone)
	_, err = s.Resend(context.Background())
	assert.ErrorIs(t, err, ErrSessionDone)
	assert.Equal(t, StatusVerifiedEmail, s.Status().Kind)
}

func TestSession_InvalidCodeResetsEntry(t *testing.T) {
	log := &statusLog{}
	fake := &fakeAPI{verifyErr: &api.Error{Category: api.CategoryInvalidCode, Status: 400}}
	s := newTestSession(t, PurposeVerifyAccountEmail, fake, log)
	enterCode(t, s, "123456")

	st, err := s.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []StatusKind{StatusVerifying, StatusFailed, StatusEditing}, log.get())
	assert.Equal(t, StatusEditing, st.Kind)
	require.NotNil(t, st.Failure)
	assert.Equal(t, ReasonInvalidCode, st.Failure.Reason)
	assert.Equal(t, PresentationField, st.Failure.Presentation)
	assert.NotEmpty(t, st.Failure.Message)

	snap := s.Snapshot()
	assert.Equal(t, [CodeLength]string{}, snap.Cells)
	assert.Equal(t, 0, snap.Focus)
}

func TestSession_EveryFailureReturnsToEmptyEditing(t *testing.T) {
	errs := map[string]error{
		"expired":   &api.Error{Category: api.CategoryExpired},
		"not found": &api.Error{Category: api.CategoryNotFound},
		"network":   &api.Error{Category: api.CategoryNetwork, Err: errors.New("dial tcp")},
		"deadline":  context.DeadlineExceeded,
		"unknown":   errors.New("boom"),
	}
	for name, verifyErr := range errs {
		t.Run(name, func(t *testing.T) {
			log := &statusLog{}
			s := newTestSession(t, PurposeForgotPassword, &fakeAPI{verifyErr: verifyErr}, log)
			enterCode(t, s, "654321")

			st, err := s.Submit(context.Background())
			require.NoError(t, err)

			kinds := log.get()
			require.GreaterOrEqual(t, len(kinds), 2)
			assert.Equal(t, []StatusKind{StatusFailed, StatusEditing}, kinds[len(kinds)-2:])
			assert.Equal(t, StatusEditing, st.Kind)
			assert.Equal(t, "", s.entry.ComposedCode())
			assert.Equal(t, 0, s.Snapshot().Focus)
		})
	}
}

func TestSession_ExpiredMessageDiffersFromInvalid(t *testing.T) {
	expired := newTestSession(t, PurposeVerifyAccountEmail,
		&fakeAPI{verifyErr: &api.Error{Category: api.CategoryExpired}}, nil)
	invalid := newTestSession(t, PurposeVerifyAccountEmail,
		&fakeAPI{verifyErr: &api.Error{Category: api.CategoryInvalidCode}}, nil)
	enterCode(t, expired, "123456")
	enterCode(t, invalid, "123456")

	a, _ := expired.Submit(context.Background())
	b, _ := invalid.Submit(context.Background())
	require.NotNil(t, a.Failure)
	require.NotNil(t, b.Failure)
	assert.Equal(t, ReasonExpired, a.Failure.Reason)
	assert.NotEqual(t, a.Failure.Message, b.Failure.Message)
	assert.Equal(t, a.Failure.Presentation, b.Failure.Presentation)
}

func TestSession_ResendDuringCooldownIsRejected(t *testing.T) {
	fake := &fakeAPI{}
	s := newTestSession(t, PurposeVerifyAccountEmail, fake, nil)
	s.cooldown.Tick()
	before := s.Snapshot()

	_, err := s.Resend(context.Background())
	assert.ErrorIs(t, err, ErrCooldown)

	_, resend := fake.counts()
	assert.Zero(t, resend)
	assert.Equal(t, before.Cooldown, s.Snapshot().Cooldown)
	assert.Equal(t, CooldownState{RemainingSeconds: 1}, s.Snapshot().Cooldown)
}

func TestSession_ResendSuccessRestartsCooldown(t *testing.T) {
	fake := &fakeAPI{verifyErr: &api.Error{Category: api.CategoryInvalidCode}}
	s := newTestSession(t, PurposeForgotPassword, fake, nil)
	enterCode(t, s, "999999")
	_, err := s.Submit(context.Background())
	require.NoError(t, err)
	enterCode(t, s, "12")
	elapseCooldown(s)
	require.True(t, s.Snapshot().Cooldown.CanResend)

	st, err := s.Resend(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Status{Kind: StatusEditing}, st)
	snap := s.Snapshot()
	assert.Equal(t, [CodeLength]string{}, snap.Cells)
	assert.Equal(t, 0, snap.Focus)
	assert.Equal(t, CooldownState{RemainingSeconds: 2}, snap.Cooldown)
	assert.False(t, snap.Resending)
	assert.True(t, s.cooldown.Running())
	assert.Equal(t, []string{PurposeForgotPassword.String()}, fake.resendCalls)
}

func TestSession_ResendFailureKeepsCooldown(t *testing.T) {
	cases := map[string]struct {
		err    error
		reason Reason
	}{
		"rate limited": {&api.Error{Category: api.CategoryRateLimited, Status: 429}, ReasonRateLimited},
		"network":      {&api.Error{Category: api.CategoryNetwork}, ReasonNetwork},
		"not found":    {&api.Error{Category: api.CategoryNotFound, Status: 404}, ReasonNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s := newTestSession(t, PurposeVerifyAccountEmail, &fakeAPI{resendErr: tc.err}, nil)
			elapseCooldown(s)
			enterCode(t, s, "12")

			st, err := s.Resend(context.Background())
			require.NoError(t, err)

			require.NotNil(t, st.Failure)
			assert.Equal(t, tc.reason, st.Failure.Reason)
			assert.Equal(t, PresentationAlert, st.Failure.Presentation)
			assert.Equal(t, CooldownState{CanResend: true}, s.Snapshot().Cooldown)
			assert.Equal(t, "12", s.entry.ComposedCode())
		})
	}
}

func TestSession_CloseStopsCooldownAndIgnoresLateResult(t *testing.T) {
	fake := &fakeAPI{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	strategy, err := NewStrategy(PurposeForgotPassword, fake, "cook@example.com")
	require.NoError(t, err)
	s := NewSession(strategy, Options{CooldownSeconds: 30, TickInterval: time.Millisecond})
	enterCode(t, s, "123456")

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		done <- err
	}()
	<-fake.entered

	s.Close()
	assert.False(t, s.cooldown.Running())

	close(fake.gate)
	assert.ErrorIs(t, <-done, ErrSessionClosed)
	assert.Equal(t, StatusVerifying, s.Status().Kind)

	_, err = s.SetDigit(0, "1")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_SubscribeDeliversLatestSnapshot(t *testing.T) {
	s := newTestSession(t, PurposeVerifyAccountEmail, &fakeAPI{}, nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	first := <-ch
	assert.Equal(t, StatusEditing, first.Status.Kind)
	assert.Equal(t, PurposeVerifyAccountEmail, first.Purpose)

	_, err := s.SetDigit(0, "5")
	require.NoError(t, err)
	_, err = s.SetDigit(1, "6")
	require.NoError(t, err)

	got := <-ch
	assert.Equal(t, "6", got.Cells[1])
	assert.Equal(t, 2, got.Focus)

	s.Close()
	_, open := <-ch
	assert.False(t, open)
}

func TestSession_ZeroWindowUsesDefault(t *testing.T) {
	strategy, err := NewStrategy(PurposeVerifyAccountEmail, &fakeAPI{}, "cook@example.com")
	require.NoError(t, err)
	s := NewSession(strategy, Options{TickInterval: time.Hour})
	defer s.Close()

	assert.Equal(t, CooldownState{RemainingSeconds: DefaultCooldownSeconds}, s.Snapshot().Cooldown)
}
