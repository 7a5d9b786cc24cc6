package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"gamergamma/internal/dispatch"
	"gamergamma/internal/eventhub"
	"gamergamma/internal/history"
	"gamergamma/internal/hotkeys"
	"gamergamma/internal/inventory"
	"gamergamma/internal/preset"
)

// Source labels recorded with every apply and restore.
const (
	sourceHotkey = "hotkey"
	sourceCLI    = "cli"
	sourceTUI    = "tui"
)

var errHistoryDisabled = errors.New("apply history is disabled")

type presetUpdate struct {
	ID     string        `json:"id"`
	Preset preset.Preset `json:"preset"`
}

type baselineUpdate struct {
	Display  int                    `json:"display"`
	Baseline preset.MonitorBaseline `json:"baseline"`
}

// Document returns a copy of the in-memory preset document.
func (a *App) Document() preset.Document {
	return a.store.Snapshot()
}

// UpdatePreset validates and persists p as preset id. A changed hotkey must
// parse and must not collide with another preset's; the live bindings are
// rebuilt after the save. On failure the previous document stays in effect.
func (a *App) UpdatePreset(ctx context.Context, id string, p preset.Preset) (preset.Document, error) {
	if err := ctx.Err(); err != nil {
		return a.store.Snapshot(), err
	}
	a.docMu.Lock()
	defer a.docMu.Unlock()

	doc := a.store.Snapshot()
	current, ok := doc.Presets[id]
	if !ok {
		return doc, fmt.Errorf("%w: %q", preset.ErrUnknownPreset, id)
	}
	hotkeyChanged := p.Hotkey != current.Hotkey
	if hotkeyChanged {
		chord, err := hotkeys.ValidateAssignment(doc.Hotkeys(), id, p.Hotkey)
		if err != nil {
			return doc, err
		}
		p.Hotkey = chord.String()
		hotkeyChanged = p.Hotkey != current.Hotkey
	}

	updated, err := a.store.UpdatePreset(id, p)
	if err != nil {
		if errors.Is(err, preset.ErrPersistence) {
			a.notifier.Warn("Saving presets failed: " + err.Error())
		}
		return updated, err
	}
	slog.Info("[preset] preset updated", "id", id, "hotkey", p.Hotkey)
	a.hub.Publish(eventhub.KindPresetUpdated, presetUpdate{ID: id, Preset: updated.Presets[id]})

	if hotkeyChanged {
		if err := a.rebuildHotkeys(); err != nil {
			slog.Warn("[hotkey] rebuild after preset update incomplete", "id", id, "error", err)
		}
	}
	return updated, nil
}

// ApplyPreset applies the saved values of preset id to its display.
func (a *App) ApplyPreset(ctx context.Context, id, source string) (dispatch.ApplyRequest, error) {
	if err := ctx.Err(); err != nil {
		return dispatch.ApplyRequest{}, err
	}
	p, ok := a.store.Snapshot().Presets[id]
	if !ok {
		return dispatch.ApplyRequest{}, fmt.Errorf("%w: %q", preset.ErrUnknownPreset, id)
	}
	req := dispatch.RequestFor(id, p, a.store.Limits(p.Display))
	req.Source = source
	a.engine.Apply(req)
	return req, nil
}

// ApplyRequest applies req as is; the TUI uses it to try unsaved values.
func (a *App) ApplyRequest(req dispatch.ApplyRequest, source string) {
	req.Source = source
	a.engine.Apply(req)
}

// Monitors lists the connected monitors. A missing tool yields none.
func (a *App) Monitors(ctx context.Context) []inventory.Monitor {
	return slices.Collect(a.monitors.Monitors(ctx))
}

// Limits returns the recorded maxima of display.
func (a *App) Limits(display int) preset.Limits {
	return a.store.Limits(display)
}

// CaptureBaseline probes display once the commands already started for it
// have exited. Applies that arrive during the probe are queued by the engine
// and sent afterwards.
func (a *App) CaptureBaseline(ctx context.Context, display int) (preset.MonitorBaseline, bool, error) {
	a.docMu.Lock()
	defer a.docMu.Unlock()

	var (
		b      preset.MonitorBaseline
		stored bool
	)
	err := a.engine.Exclusive(ctx, display, func() error {
		var err error
		b, stored, err = a.store.CaptureBaseline(ctx, display)
		return err
	})
	if err != nil {
		return b, stored, err
	}
	if stored {
		a.hub.Publish(eventhub.KindBaselineCaptured, baselineUpdate{Display: display, Baseline: b})
	}
	return b, stored, nil
}

// Restore re-issues the captured baseline of display.
func (a *App) Restore(ctx context.Context, display int, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := a.store.Baseline(display); !ok {
		return fmt.Errorf("display %d has no captured baseline", display)
	}
	a.engine.RestoreFrom(display, source)
	return nil
}

// History returns the most recent journal entries, newest first.
func (a *App) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if a.journal == nil {
		return nil, errHistoryDisabled
	}
	return a.journal.Recent(ctx, limit)
}

// SuspendHotkeys releases every OS registration until ResumeHotkeys.
func (a *App) SuspendHotkeys() error {
	if a.router == nil {
		return nil
	}
	a.hotkeysSuspended.Store(true)
	slog.Debug("[hotkey] bindings suspended")
	return a.router.Stop()
}

// ResumeHotkeys re-registers the bindings of the current document.
func (a *App) ResumeHotkeys() error {
	a.hotkeysSuspended.Store(false)
	return a.rebuildHotkeys()
}

// rebuildHotkeys swaps the router's table for the current document's
// bindings. While suspended it does nothing; ResumeHotkeys rebuilds.
func (a *App) rebuildHotkeys() error {
	if a.router == nil || a.hotkeysSuspended.Load() {
		return nil
	}
	return a.router.Rebuild(a.store.Snapshot().Hotkeys(), a.hotkeyAction)
}

// hotkeyAction reads the preset when the chord fires, so value edits apply
// without a rebuild.
func (a *App) hotkeyAction(id string) func() {
	return func() {
		if _, err := a.ApplyPreset(context.Background(), id, sourceHotkey); err != nil {
			slog.Warn("[hotkey] apply failed", "preset", id, "error", err)
		}
	}
}

// reloadDocument handles an external edit of the document file. A broken
// file keeps the previous document; changed bindings are re-registered.
func (a *App) reloadDocument() {
	a.docMu.Lock()
	defer a.docMu.Unlock()

	before := a.store.Snapshot()
	after, err := a.store.Reload()
	if err != nil {
		slog.Warn("[WARN-PRESET] reload after external edit failed, keeping previous document", "error", err)
		a.notifier.Warn("Preset file has errors; keeping the previous presets.")
		return
	}
	if maps.Equal(before.Presets, after.Presets) {
		return
	}
	slog.Info("[preset] document reloaded", "path", a.store.Path())
	a.hub.Publish(eventhub.KindDocumentReloaded, after)

	if !maps.Equal(before.Hotkeys(), after.Hotkeys()) {
		if err := a.rebuildHotkeys(); err != nil {
			slog.Warn("[hotkey] rebuild after reload incomplete", "error", err)
		}
	}
}
