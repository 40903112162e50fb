package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"recipebox/internal/otp"
)

type Options struct {
	// AutoSubmit verifies as soon as the sixth digit is typed.
	AutoSubmit bool

	// AskNewPassword keeps the program open after a reset code is verified
	// and prompts for the new password twice.
	AskNewPassword bool

	// CheckPassword, when set, rejects a new password before it is
	// confirmed.
	CheckPassword func(password string) error
}

// Result is what the program ends with.
type Result struct {
	Status      otp.Status
	NewPassword string
	Cancelled   bool
}

type stage int

const (
	stageCode stage = iota
	stagePassword
	stageConfirm
)

type (
	snapshotMsg otp.Snapshot
	closedMsg   struct{}
	submitMsg   struct{ err error }
	resendMsg   struct{ err error }
)

// Model is the code screen in a terminal.
type Model struct {
	ctx     context.Context
	session *otp.Session
	email   string
	opts    Options

	snaps <-chan otp.Snapshot
	snap  otp.Snapshot
	focus int
	stage stage
	busy  bool
	note  string

	spinner  spinner.Model
	password textinput.Model
	confirm  textinput.Model
	styles   styles

	result Result
	done   bool
}

// New builds the model and subscribes it to session. The subscription ends
// when the session is closed.
func New(ctx context.Context, session *otp.Session, email string, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	snaps, _ := session.Subscribe()
	snap := <-snaps
	return Model{
		ctx:      ctx,
		session:  session,
		email:    email,
		opts:     opts,
		snaps:    snaps,
		snap:     snap,
		focus:    snap.Focus,
		spinner:  sp,
		password: passwordInput("new password"),
		confirm:  passwordInput("repeat new password"),
		styles:   defaultStyles(),
	}
}

func passwordInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.Prompt = "│ "
	ti.CharLimit = 128
	ti.Width = 40
	return ti
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitSnapshot(), m.spinner.Tick)
}

func (m Model) Result() Result { return m.result }

func (m Model) waitSnapshot() tea.Cmd {
	snaps := m.snaps
	return func() tea.Msg {
		snap, ok := <-snaps
		if !ok {
			return closedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m Model) submit() tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		_, err := session.Submit(ctx)
		return submitMsg{err: err}
	}
}

func (m Model) resend() tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		_, err := session.Resend(ctx)
		return resendMsg{err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.result = Result{Status: m.snap.Status, Cancelled: true}
			m.done = true
			return m, tea.Quit
		}
		if m.stage != stageCode {
			return m.updatePassword(msg)
		}
		return m.updateCode(msg)

	case snapshotMsg:
		prev := m.snap
		m.snap = otp.Snapshot(msg)
		if m.snap.Focus != prev.Focus {
			m.focus = m.snap.Focus
		}
		if m.snap.Status.Terminal() {
			return m.finishCode()
		}
		return m, m.waitSnapshot()

	case closedMsg:
		if m.done {
			return m, nil
		}
		m.result = Result{Status: m.snap.Status, Cancelled: !m.snap.Status.Terminal()}
		m.done = true
		return m, tea.Quit

	case submitMsg:
		m.busy = false
		m.note = errorNote(msg.err)
		m.snap = m.session.Snapshot()
		m.focus = m.snap.Focus
		if m.snap.Status.Terminal() {
			return m.finishCode()
		}
		return m, nil

	case resendMsg:
		m.busy = false
		m.note = errorNote(msg.err)
		if msg.err == nil && m.snap.Status.Failure == nil {
			m.note = "A new code is on its way."
		}
		m.snap = m.session.Snapshot()
		m.focus = m.snap.Focus
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateCode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	switch msg.Type {
	case tea.KeyEnter:
		m.busy = true
		m.note = ""
		return m, m.submit()
	case tea.KeyCtrlR:
		m.busy = true
		m.note = ""
		return m, m.resend()
	case tea.KeyLeft:
		if m.focus > 0 {
			m.focus--
		}
		return m, nil
	case tea.KeyRight:
		if m.focus < otp.CodeLength-1 {
			m.focus++
		}
		return m, nil
	case tea.KeyBackspace:
		var sig otp.FocusSignal
		var err error
		if m.snap.Cells[m.focus] != "" {
			sig, err = m.session.SetDigit(m.focus, "")
		} else {
			sig, err = m.session.HandleBackspaceAt(m.focus)
		}
		return m.afterEdit(sig, err, false)
	case tea.KeyRunes:
		if len(msg.Runes) != 1 {
			return m, nil
		}
		sig, err := m.session.SetDigit(m.focus, string(msg.Runes))
		return m.afterEdit(sig, err, true)
	}
	return m, nil
}

func (m Model) afterEdit(sig otp.FocusSignal, err error, typed bool) (tea.Model, tea.Cmd) {
	if err != nil {
		m.note = errorNote(err)
		return m, nil
	}
	if sig.Move {
		m.focus = sig.Index
	}
	m.snap = m.session.Snapshot()
	if typed && m.opts.AutoSubmit && complete(m.snap) {
		m.busy = true
		m.note = ""
		return m, m.submit()
	}
	return m, nil
}

func (m Model) finishCode() (tea.Model, tea.Cmd) {
	if m.snap.Status.Kind == otp.StatusVerifiedReset && m.opts.AskNewPassword {
		if m.stage == stageCode {
			m.stage = stagePassword
			m.note = ""
			m.password.Focus()
		}
		return m, textinput.Blink
	}
	m.result = Result{Status: m.snap.Status}
	m.done = true
	return m, tea.Quit
}

func (m Model) updatePassword(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if msg.Type == tea.KeyEnter {
		switch m.stage {
		case stagePassword:
			if m.password.Value() == "" {
				m.note = "Enter a new password."
				return m, nil
			}
			if m.opts.CheckPassword != nil {
				if err := m.opts.CheckPassword(m.password.Value()); err != nil {
					m.note = err.Error()
					m.password.Reset()
					return m, nil
				}
			}
			m.note = ""
			m.stage = stageConfirm
			m.password.Blur()
			m.confirm.Focus()
			return m, textinput.Blink
		case stageConfirm:
			if m.confirm.Value() != m.password.Value() {
				m.note = "Passwords do not match."
				m.password.Reset()
				m.confirm.Reset()
				m.confirm.Blur()
				m.stage = stagePassword
				m.password.Focus()
				return m, textinput.Blink
			}
			m.result = Result{Status: m.snap.Status, NewPassword: m.password.Value()}
			m.done = true
			return m, tea.Quit
		}
	}
	if m.stage == stagePassword {
		m.password, cmd = m.password.Update(msg)
	} else {
		m.confirm, cmd = m.confirm.Update(msg)
	}
	return m, cmd
}

func (m Model) View() string {
	s := m.styles
	var b strings.Builder

	title := "Verify your email"
	if m.snap.Purpose == otp.PurposeForgotPassword {
		title = "Reset your password"
	}
	b.WriteString(s.Title.Render(title) + "\n")

	if m.stage != stageCode {
		b.WriteString(s.Success.Render("Code accepted.") + "\n\n")
		b.WriteString(m.password.View() + "\n")
		if m.stage == stageConfirm {
			b.WriteString(m.confirm.View() + "\n")
		}
		if m.note != "" {
			b.WriteString(s.FieldError.Render(m.note) + "\n")
		}
		b.WriteString("\n" + s.Help.Render("enter: next • esc: cancel"))
		return b.String()
	}

	b.WriteString(s.Muted.Render("We sent a 6-digit code to "+m.email) + "\n\n")

	cells := make([]string, 0, otp.CodeLength)
	for i, v := range m.snap.Cells {
		if v == "" {
			v = " "
		}
		if i == m.focus {
			cells = append(cells, s.FocusedCell.Render(v))
		} else {
			cells = append(cells, s.Cell.Render(v))
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...) + "\n")

	if f := m.snap.Status.Failure; f != nil {
		if f.Presentation == otp.PresentationAlert {
			b.WriteString(s.Alert.Render(f.Message) + "\n")
		} else {
			b.WriteString(s.FieldError.Render(f.Message) + "\n")
		}
	}

	switch {
	case m.snap.Status.Kind == otp.StatusVerifying:
		b.WriteString(m.spinner.View() + " Verifying...\n")
	case m.snap.Resending:
		b.WriteString(m.spinner.View() + " Sending a new code...\n")
	case m.snap.Status.Terminal():
		b.WriteString(s.Success.Render("Verified.") + "\n")
	}
	if m.note != "" {
		b.WriteString(s.Muted.Render(m.note) + "\n")
	}

	b.WriteString("\n" + s.Muted.Render(cooldownLine(m.snap.Cooldown)) + "\n")
	b.WriteString(s.Help.Render("0-9: type • ←/→: move • enter: verify • ctrl+r: resend • esc: quit"))
	return b.String()
}

func cooldownLine(c otp.CooldownState) string {
	if c.CanResend {
		return "Didn't get it? Press ctrl+r to resend."
	}
	return fmt.Sprintf("Resend code in %d:%02d", c.RemainingSeconds/60, c.RemainingSeconds%60)
}

func errorNote(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, otp.ErrCooldown):
		return "Wait for the timer before asking for a new code."
	case errors.Is(err, otp.ErrVerifying), errors.Is(err, otp.ErrResending):
		return "Still working on the last request."
	}
	return err.Error()
}

func complete(snap otp.Snapshot) bool {
	for _, c := range snap.Cells {
		if c == "" {
			return false
		}
	}
	return true
}
