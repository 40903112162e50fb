package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"recipebox/internal/otp"
)

// Run shows the code screen for session until it is verified or the user
// quits. The session is closed on return.
func Run(ctx context.Context, session *otp.Session, email string, opts Options) (Result, error) {
	defer session.Close()

	p := tea.NewProgram(New(ctx, session, email, opts), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return Result{}, fmt.Errorf("code screen: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return Result{}, fmt.Errorf("code screen: unexpected model %T", final)
	}
	return m.Result(), nil
}
