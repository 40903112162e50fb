package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"recipebox/internal/models"
	"recipebox/internal/otp"
	"recipebox/internal/repositories"
)

const recordTimeout = 2 * time.Second

var ErrFlowNotFound = errors.New("verification flow not found")

// Flow is one open verification screen.
type Flow struct {
	ID        string
	Email     string
	Session   *otp.Session
	CreatedAt time.Time
}

func (f *Flow) Purpose() otp.Purpose { return f.Session.Purpose() }

// VerificationService owns the live verification sessions. Every Start makes
// a fresh session; Discard is the screen unmount and stops its cooldown.
type VerificationService interface {
	Start(purpose otp.Purpose, email string) (*Flow, error)
	Get(id string) (*Flow, error)
	Discard(id string) error
	// Attempts lists recorded outcomes for email, newest first. It is empty
	// when no attempt log is configured.
	Attempts(ctx context.Context, email string, limit int) ([]models.VerificationAttempt, error)
	Shutdown()
}

type VerificationOptions struct {
	CooldownSeconds int
	TickInterval    time.Duration

	// Attempts, when set, records starts, failures and successes.
	Attempts repositories.AttemptRepository
}

type verificationService struct {
	auth   otp.AuthAPI
	opts   VerificationOptions
	logger *zap.Logger

	mu    sync.Mutex
	flows map[string]*Flow
}

func NewVerificationService(auth otp.AuthAPI, opts VerificationOptions, logger *zap.Logger) VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &verificationService{
		auth:   auth,
		opts:   opts,
		logger: logger.Named("flows"),
		flows:  make(map[string]*Flow),
	}
}

func (s *verificationService) Start(purpose otp.Purpose, email string) (*Flow, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	strategy, err := otp.NewStrategy(purpose, s.auth, email)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := s.logger.With(zap.String("flow_id", id))
	session := otp.NewSession(strategy, otp.Options{
		CooldownSeconds: s.opts.CooldownSeconds,
		TickInterval:    s.opts.TickInterval,
		Logger:          logger,
		OnStatus: func(st otp.Status) {
			logger.Debug("flow status", zap.String("status", string(st.Kind)))
			switch {
			case st.Kind == otp.StatusFailed && st.Failure != nil:
				s.record(id, email, purpose, repositories.AttemptFailed, string(st.Failure.Reason))
			case st.Terminal():
				s.record(id, email, purpose, repositories.AttemptVerified, "")
			}
		},
	})
	flow := &Flow{ID: id, Email: email, Session: session, CreatedAt: time.Now()}
	s.record(id, email, purpose, repositories.AttemptStarted, "")

	s.mu.Lock()
	s.flows[id] = flow
	n := len(s.flows)
	s.mu.Unlock()

	logger.Info("flow start", zap.Stringer("purpose", purpose), zap.Int("open_flows", n))
	return flow, nil
}

func (s *verificationService) Get(id string) (*Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flow, ok := s.flows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, id)
	}
	return flow, nil
}

func (s *verificationService) Discard(id string) error {
	s.mu.Lock()
	flow, ok := s.flows[id]
	delete(s.flows, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrFlowNotFound, id)
	}
	flow.Session.Close()
	s.logger.Info("flow discard", zap.String("flow_id", id))
	return nil
}

func (s *verificationService) Attempts(ctx context.Context, email string, limit int) ([]models.VerificationAttempt, error) {
	if s.opts.Attempts == nil {
		return nil, nil
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.opts.Attempts.Recent(ctx, email, limit)
}

// record is called on the session's notification path and must not block
// for long.
func (s *verificationService) record(flowID, email string, purpose otp.Purpose, event, reason string) {
	if s.opts.Attempts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	err := s.opts.Attempts.Record(ctx, &models.VerificationAttempt{
		FlowID:  flowID,
		Email:   email,
		Purpose: purpose.String(),
		Event:   event,
		Reason:  reason,
	})
	if err != nil {
		s.logger.Warn("record attempt", zap.String("flow_id", flowID), zap.Error(err))
	}
}

// Shutdown discards every open flow.
func (s *verificationService) Shutdown() {
	s.mu.Lock()
	flows := s.flows
	s.flows = make(map[string]*Flow)
	s.mu.Unlock()

	for _, flow := range flows {
		flow.Session.Close()
	}
	if len(flows) > 0 {
		s.logger.Info("flows discarded on shutdown", zap.Int("count", len(flows)))
	}
}
