package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"gamergamma/internal/sessionlog"
)

// Run shows the editor until the user quits or ctx is cancelled.
func Run(ctx context.Context, backend Backend, logs <-chan sessionlog.Entry) error {
	p := tea.NewProgram(NewModel(backend, logs), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if m, ok := final.(Model); ok {
		m.endCapture()
	}
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
