package main

import (
	"maps"
	"strings"

	"gamergamma/internal/controlapi"
)

// Status summarizes the daemon for the control API.
func (a *App) Status() controlapi.Status {
	s := controlapi.Status{
		Version:      appVersion,
		Document:     a.store.Path(),
		Tools:        maps.Clone(a.tools),
		Availability: a.engine.Availability(),
		Messages:     a.engine.StatusMessages(),
		HotkeyState:  a.hotkeyState(),
		Bindings:     map[string]string{},
	}
	if a.router != nil {
		s.Bindings = a.router.Bindings()
	}
	if s.Messages == nil {
		s.Messages = []string{}
	}
	return s
}

func (a *App) hotkeyState() string {
	switch {
	case a.router == nil:
		return "disabled"
	case a.hotkeysSuspended.Load():
		return "suspended"
	default:
		return a.router.State().String()
	}
}

// StatusLine lists disabled channels and paused hotkeys for the TUI.
func (a *App) StatusLine() string {
	parts := a.engine.StatusMessages()
	if a.hotkeysSuspended.Load() {
		parts = append(parts, "Hotkeys paused.")
	}
	return strings.Join(parts, " | ")
}
