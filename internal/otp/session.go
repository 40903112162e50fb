package otp

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrVerifying     = errors.New("verification already in progress")
	ErrResending     = errors.New("resend already in progress")
	ErrCooldown      = errors.New("resend not allowed yet")
	ErrSessionDone   = errors.New("session already verified")
	ErrSessionClosed = errors.New("session closed")
	ErrNotEditable   = errors.New("code cannot be edited now")
)

// StatusKind is the state of a Session.
type StatusKind string

const (
	StatusEditing       StatusKind = "editing"
	StatusVerifying     StatusKind = "verifying"
	StatusVerifiedEmail StatusKind = "verified_email"
	StatusVerifiedReset StatusKind = "verified_reset"
	StatusFailed        StatusKind = "failed"
)

// Status is a Session state plus what it carries. Token and Code are set only
// in StatusVerifiedReset. Failure is set in StatusFailed and stays on the
// following StatusEditing until the user resends or verifies.
type Status struct {
	Kind    StatusKind `json:"kind"`
	Token   string     `json:"-"`
	Code    string     `json:"-"`
	Failure *Failure   `json:"error,omitempty"`
}

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s.Kind == StatusVerifiedEmail || s.Kind == StatusVerifiedReset
}

// Snapshot is everything a screen renders.
type Snapshot struct {
	Purpose   Purpose            `json:"purpose"`
	Status    Status             `json:"status"`
	Cells     [CodeLength]string `json:"cells"`
	Focus     int                `json:"focus"`
	Cooldown  CooldownState      `json:"cooldown"`
	Resending bool               `json:"resending"`
}

type Options struct {
	// CooldownSeconds is the resend window, DefaultCooldownSeconds when zero.
	CooldownSeconds int

	// TickInterval is the length of one cooldown tick, a second when zero.
	TickInterval time.Duration

	Logger *zap.Logger

	// OnStatus sees every status transition in order, including the
	// transient StatusFailed. It must not call back into the Session.
	OnStatus func(Status)
}

// Session is one run of the code verification screen. Verify and resend are
// mutually exclusive: while either is in flight Submit and Resend are no-ops
// that return ErrVerifying or ErrResending.
type Session struct {
	strategy Strategy
	window   int
	logger   *zap.Logger
	onStatus func(Status)

	mu        sync.Mutex
	entry     *CodeEntry
	status    Status
	resending bool
	closed    bool
	pending   []notice
	subs      map[int]chan Snapshot
	nextSub   int

	// notifyMu keeps deliveries in the order the transitions happened.
	notifyMu sync.Mutex

	cooldown *Cooldown
}

type notice struct {
	snap          Snapshot
	statusChanged bool
}

// NewSession creates a session in StatusEditing and starts the resend
// cooldown. Close must be called when the screen goes away.
func NewSession(strategy Strategy, opts Options) *Session {
	window := opts.CooldownSeconds
	if window <= 0 {
		window = DefaultCooldownSeconds
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		strategy: strategy,
		window:   window,
		logger: logger.Named("otp").With(
			zap.Stringer("purpose", strategy.Purpose()),
		),
		onStatus: opts.OnStatus,
		entry:    NewCodeEntry(),
		status:   Status{Kind: StatusEditing},
		subs:     make(map[int]chan Snapshot),
	}
	s.cooldown = NewCooldown(opts.TickInterval, s.onCooldown)
	s.cooldown.Start(window)
	return s
}

func (s *Session) Purpose() Purpose { return s.strategy.Purpose() }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SetDigit forwards a keystroke to the code entry. Edits are only accepted
// in StatusEditing.
func (s *Session) SetDigit(index int, raw string) (FocusSignal, error) {
	s.mu.Lock()
	if err := s.editableLocked(); err != nil {
		sig := FocusSignal{Index: s.entry.Focus()}
		s.mu.Unlock()
		return sig, err
	}
	before := s.entry.Cells()
	sig := s.entry.SetDigit(index, raw)
	if sig.Move || before != s.entry.Cells() {
		s.queueLocked(false)
	}
	s.mu.Unlock()
	s.flush()
	return sig, nil
}

func (s *Session) HandleBackspaceAt(index int) (FocusSignal, error) {
	s.mu.Lock()
	if err := s.editableLocked(); err != nil {
		sig := FocusSignal{Index: s.entry.Focus()}
		s.mu.Unlock()
		return sig, err
	}
	sig := s.entry.HandleBackspaceAt(index)
	if sig.Move {
		s.queueLocked(false)
	}
	s.mu.Unlock()
	s.flush()
	return sig, nil
}

// Submit verifies the entered code. It blocks for the API round trip and
// returns the resulting status. An incomplete code fails locally without an
// API call. Calls made while a verify or resend is in flight are ignored.
func (s *Session) Submit(ctx context.Context) (Status, error) {
	s.mu.Lock()
	if err := s.idleLocked(); err != nil {
		st := s.status
		s.mu.Unlock()
		return st, err
	}
	if !s.entry.IsComplete() {
		f := FailureFor(ReasonIncomplete)
		s.entry.Reset()
		s.setStatusLocked(Status{Kind: StatusEditing, Failure: &f})
		st := s.status
		s.mu.Unlock()
		s.flush()
		return st, nil
	}
	code := s.entry.ComposedCode()
	s.setStatusLocked(Status{Kind: StatusVerifying})
	s.mu.Unlock()
	s.flush()

	s.logger.Info("otp submit")
	token, err := s.strategy.Verify(ctx, code)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("otp verify settled after close", zap.Bool("ok", err == nil))
		return Status{}, ErrSessionClosed
	}
	var terminal bool
	if err != nil {
		f := Translate(err)
		s.logger.Info("otp verify failed",
			zap.String("reason", string(f.Reason)),
			zap.Error(err),
		)
		s.setStatusLocked(Status{Kind: StatusFailed, Failure: &f})
		s.entry.Reset()
		s.setStatusLocked(Status{Kind: StatusEditing, Failure: &f})
	} else {
		terminal = true
		switch s.strategy.Purpose() {
		case PurposeForgotPassword:
			s.setStatusLocked(Status{Kind: StatusVerifiedReset, Token: token, Code: code})
		default:
			s.setStatusLocked(Status{Kind: StatusVerifiedEmail})
		}
		s.logger.Info("otp verified")
	}
	st := s.status
	s.mu.Unlock()
	s.flush()

	if terminal {
		s.cooldown.Stop()
	}
	return st, nil
}

// Resend asks for a new code. It is accepted only when the cooldown has
// elapsed and nothing is in flight. On success the cells are cleared, any
// failure text is dropped and the cooldown restarts; on failure the cooldown
// is left as it was and an alert is shown.
func (s *Session) Resend(ctx context.Context) (Status, error) {
	s.mu.Lock()
	if err := s.idleLocked(); err != nil {
		st := s.status
		s.mu.Unlock()
		return st, err
	}
	if !s.cooldown.State().CanResend {
		st := s.status
		s.mu.Unlock()
		return st, ErrCooldown
	}
	s.resending = true
	s.queueLocked(false)
	s.mu.Unlock()
	s.flush()

	s.logger.Info("otp resend")
	err := s.strategy.Resend(ctx)

	if err == nil {
		s.cooldown.Start(s.window)
	}

	s.mu.Lock()
	s.resending = false
	if s.closed {
		s.mu.Unlock()
		// Close may have stopped the cooldown before the restart above.
		s.cooldown.Stop()
		return Status{}, ErrSessionClosed
	}
	if err != nil {
		f := Translate(err)
		f.Presentation = PresentationAlert
		s.logger.Info("otp resend failed",
			zap.String("reason", string(f.Reason)),
			zap.Error(err),
		)
		s.setStatusLocked(Status{Kind: StatusEditing, Failure: &f})
	} else {
		s.entry.Reset()
		s.setStatusLocked(Status{Kind: StatusEditing})
	}
	st := s.status
	s.mu.Unlock()
	s.flush()
	return st, nil
}

// Subscribe returns a channel of snapshots, starting with the current one.
// A slow reader only ever misses intermediate snapshots, never the latest.
// The channel is closed by cancel or Close.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		ch <- s.snapshotLocked()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.notifyMu.Lock()
			defer s.notifyMu.Unlock()
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Close discards the session: the cooldown stops, subscribers are closed and
// results of a verify still in flight are ignored.
func (s *Session) Close() {
	s.notifyMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.notifyMu.Unlock()
		return
	}
	s.closed = true
	s.pending = nil
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()
	s.notifyMu.Unlock()

	s.cooldown.Stop()
	s.logger.Debug("otp session closed")
}

func (s *Session) idleLocked() error {
	switch {
	case s.closed:
		return ErrSessionClosed
	case s.status.Terminal():
		return ErrSessionDone
	case s.status.Kind == StatusVerifying:
		return ErrVerifying
	case s.resending:
		return ErrResending
	}
	return nil
}

func (s *Session) editableLocked() error {
	switch {
	case s.closed:
		return ErrSessionClosed
	case s.status.Terminal():
		return ErrSessionDone
	case s.status.Kind != StatusEditing:
		return ErrNotEditable
	}
	return nil
}

func (s *Session) setStatusLocked(st Status) {
	s.status = st
	s.queueLocked(true)
}

func (s *Session) queueLocked(statusChanged bool) {
	if s.closed {
		return
	}
	s.pending = append(s.pending, notice{snap: s.snapshotLocked(), statusChanged: statusChanged})
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Purpose:   s.strategy.Purpose(),
		Status:    s.status,
		Cells:     s.entry.Cells(),
		Focus:     s.entry.Focus(),
		Cooldown:  s.cooldown.State(),
		Resending: s.resending,
	}
}

func (s *Session) onCooldown(CooldownState) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queueLocked(false)
	s.mu.Unlock()
	s.flush()
}

func (s *Session) flush() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	subs := make([]chan Snapshot, 0, len(s.subs))
	for _, ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, n := range pending {
		if n.statusChanged && s.onStatus != nil {
			s.onStatus(n.snap.Status)
		}
		for _, ch := range subs {
			offer(ch, n.snap)
		}
	}
}

// offer replaces whatever the reader has not picked up yet with snap.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
