package otp

import (
	"sync"
	"time"
)

// DefaultCooldownSeconds is the resend window after a code is issued.
const DefaultCooldownSeconds = 60

// CooldownState is the observable state of a Cooldown.
// CanResend is true exactly when RemainingSeconds is zero.
type CooldownState struct {
	RemainingSeconds int  `json:"remaining_seconds"`
	CanResend        bool `json:"can_resend"`
}

// Cooldown counts down the resend window. It owns at most one ticker
// goroutine at a time; Start replaces it and Stop halts it.
//
// onChange runs on the ticker goroutine. It must not call Start or Stop.
type Cooldown struct {
	lifecycle sync.Mutex // serializes Start and Stop

	mu       sync.Mutex
	state    CooldownState
	run      *tickRun
	interval time.Duration
	onChange func(CooldownState)
}

type tickRun struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (r *tickRun) halt() {
	r.once.Do(func() { close(r.stop) })
}

// NewCooldown returns a stopped cooldown that allows resend. interval is the
// length of one tick and defaults to a second.
func NewCooldown(interval time.Duration, onChange func(CooldownState)) *Cooldown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Cooldown{
		state:    CooldownState{CanResend: true},
		interval: interval,
		onChange: onChange,
	}
}

// Start resets the countdown to windowSeconds and begins ticking. A ticker
// left from a previous Start is stopped before the new one is created.
func (c *Cooldown) Start(windowSeconds int) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.haltRun()

	if windowSeconds < 0 {
		windowSeconds = 0
	}
	c.mu.Lock()
	c.state = CooldownState{RemainingSeconds: windowSeconds, CanResend: windowSeconds == 0}
	var run *tickRun
	if windowSeconds > 0 {
		run = &tickRun{stop: make(chan struct{}), done: make(chan struct{})}
		c.run = run
	}
	st := c.state
	c.mu.Unlock()

	if run != nil {
		go c.loop(run)
	}
	c.notify(st)
}

// Tick takes one second off the window. At zero resend is allowed and the
// ticker goroutine exits; ticks at zero do nothing.
func (c *Cooldown) Tick() {
	c.decrement(nil)
}

// Stop halts ticking and leaves the state as it is.
func (c *Cooldown) Stop() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.haltRun()
}

func (c *Cooldown) State() CooldownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Running reports whether a ticker goroutine is active.
func (c *Cooldown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run != nil
}

func (c *Cooldown) haltRun() {
	c.mu.Lock()
	run := c.run
	c.run = nil
	c.mu.Unlock()
	if run != nil {
		run.halt()
		<-run.done
	}
}

func (c *Cooldown) loop(run *tickRun) {
	defer close(run.done)
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-run.stop:
			return
		case <-t.C:
			if !c.decrement(run) {
				return
			}
		}
	}
}

// decrement applies one tick. from is the ticker the tick came from, nil for
// a manual Tick; ticks from a replaced ticker are dropped. It reports whether
// the countdown is still running.
func (c *Cooldown) decrement(from *tickRun) bool {
	c.mu.Lock()
	if from != nil && c.run != from {
		c.mu.Unlock()
		return false
	}
	if c.state.RemainingSeconds == 0 {
		c.mu.Unlock()
		return false
	}
	c.state.RemainingSeconds--
	var finished *tickRun
	if c.state.RemainingSeconds == 0 {
		c.state.CanResend = true
		finished, c.run = c.run, nil
	}
	st := c.state
	c.mu.Unlock()

	if finished != nil {
		finished.halt()
	}
	c.notify(st)
	return !st.CanResend
}

func (c *Cooldown) notify(st CooldownState) {
	if c.onChange != nil {
		c.onChange(st)
	}
}
