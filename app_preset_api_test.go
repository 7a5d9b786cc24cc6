package main

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"

	"gamergamma/internal/dispatch"
	"gamergamma/internal/hotkeys"
	"gamergamma/internal/preset"
)

var allTools = dispatch.Availability{Protocol: true, Vendor: true}

func TestUpdatePresetRebindsHotkey(t *testing.T) {
	app := newTestApp(t, allTools)
	p := app.Document().Presets["1"]
	p.Hotkey = "Alt+F1"

	doc, err := app.UpdatePreset(context.Background(), "1", p)
	if err != nil {
		t.Fatalf("UpdatePreset() error = %v", err)
	}
	if got := doc.Presets["1"].Hotkey; got != "alt+f1" {
		t.Fatalf("saved hotkey = %q, want alt+f1", got)
	}
	want := []string{"alt+2", "alt+3", "alt+f1"}
	if got := app.hotkeys.registered(); !reflect.DeepEqual(got, want) {
		t.Fatalf("registered = %v, want %v", got, want)
	}
	if got := app.router.Bindings()["1"]; got != "alt+f1" {
		t.Fatalf("live binding = %q, want alt+f1", got)
	}
}

func TestUpdatePresetRejectsTakenHotkey(t *testing.T) {
	app := newTestApp(t, allTools)
	p := app.Document().Presets["1"]
	p.Hotkey = "alt+2"

	_, err := app.UpdatePreset(context.Background(), "1", p)
	if !errors.Is(err, hotkeys.ErrInvalidBinding) {
		t.Fatalf("UpdatePreset() error = %v, want ErrInvalidBinding", err)
	}
	if got := app.Document().Presets["1"].Hotkey; got != "alt+1" {
		t.Fatalf("hotkey = %q, want alt+1 kept", got)
	}
	if got := app.router.Bindings()["1"]; got != "alt+1" {
		t.Fatalf("live binding = %q, want alt+1 kept", got)
	}
}

func TestUpdatePresetRejectsEmptyHotkey(t *testing.T) {
	app := newTestApp(t, allTools)
	p := app.Document().Presets["2"]
	p.Hotkey = ""

	if _, err := app.UpdatePreset(context.Background(), "2", p); !errors.Is(err, hotkeys.ErrInvalidBinding) {
		t.Fatalf("UpdatePreset() error = %v, want ErrInvalidBinding", err)
	}
}

func TestUpdatePresetUnknownID(t *testing.T) {
	app := newTestApp(t, allTools)
	_, err := app.UpdatePreset(context.Background(), "9", preset.Preset{Display: 1, VibranceMode: preset.ModeVendor})
	if !errors.Is(err, preset.ErrUnknownPreset) {
		t.Fatalf("UpdatePreset() error = %v, want ErrUnknownPreset", err)
	}
}

func TestUpdatePresetRejectsOutOfRangeValues(t *testing.T) {
	app := newTestApp(t, allTools)
	p := app.Document().Presets["1"]
	p.Gamma = 999
	p.Vibrance = -5000

	if _, err := app.UpdatePreset(context.Background(), "1", p); !errors.Is(err, preset.ErrOutOfRange) {
		t.Fatalf("UpdatePreset() error = %v, want ErrOutOfRange", err)
	}
	if got := app.Document().Presets["1"]; got.Gamma != 128 || got.Vibrance != 0 {
		t.Fatalf("preset 1 = %+v, want defaults kept", got)
	}
	if _, err := app.store.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := app.Document().Presets["1"].Gamma; got != 128 {
		t.Fatalf("persisted gamma = %d, want 128", got)
	}
}

func TestHotkeyAppliesPreset(t *testing.T) {
	app := newTestApp(t, allTools)

	app.hotkeys.press(t, "alt+2")

	calls := app.starter.waitCalls(t, 2)
	want := [][]string{
		{"ddcutil", "-d", "1", "setvcp", "0x72", "0x9000"},
		{"nvibrant", "0", "512", "0", "0", "0", "0", "0"},
	}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("started = %v, want %v", calls, want)
	}
}

func TestApplyPresetUsesSavedValues(t *testing.T) {
	app := newTestApp(t, dispatch.Availability{Protocol: true})

	req, err := app.ApplyPreset(context.Background(), "3", sourceCLI)
	if err != nil {
		t.Fatalf("ApplyPreset() error = %v", err)
	}
	if req.Gamma != 255 || req.Display != 1 || req.Source != sourceCLI {
		t.Fatalf("request = %+v", req)
	}
	if calls := app.starter.calls(); len(calls) != 1 {
		t.Fatalf("started %d commands, want gamma only", len(calls))
	}

	if _, err := app.ApplyPreset(context.Background(), "nope", sourceCLI); !errors.Is(err, preset.ErrUnknownPreset) {
		t.Fatalf("ApplyPreset(nope) error = %v, want ErrUnknownPreset", err)
	}
}

func TestSuspendAndResumeHotkeys(t *testing.T) {
	app := newTestApp(t, allTools)

	if err := app.SuspendHotkeys(); err != nil {
		t.Fatalf("SuspendHotkeys() error = %v", err)
	}
	if got := app.hotkeys.registered(); len(got) != 0 {
		t.Fatalf("registered while suspended = %v", got)
	}
	if got := app.Status().HotkeyState; got != "suspended" {
		t.Fatalf("hotkey state = %q, want suspended", got)
	}

	// A save while suspended must not re-register behind the capture.
	p := app.Document().Presets["3"]
	p.Hotkey = "ctrl+shift+3"
	if _, err := app.UpdatePreset(context.Background(), "3", p); err != nil {
		t.Fatalf("UpdatePreset() error = %v", err)
	}
	if got := app.hotkeys.registered(); len(got) != 0 {
		t.Fatalf("registered while suspended = %v", got)
	}

	if err := app.ResumeHotkeys(); err != nil {
		t.Fatalf("ResumeHotkeys() error = %v", err)
	}
	want := []string{"alt+1", "alt+2", "ctrl+shift+3"}
	if got := app.hotkeys.registered(); !reflect.DeepEqual(got, want) {
		t.Fatalf("registered = %v, want %v", got, want)
	}
}

func TestReloadDocumentRebindsChangedHotkeys(t *testing.T) {
	app := newTestApp(t, allTools)
	edited := `{"presets": {"1": {"hotkey": "ctrl+f9"}}}`
	if err := os.WriteFile(app.store.Path(), []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}

	app.reloadDocument()

	if got := app.router.Bindings()["1"]; got != "ctrl+f9" {
		t.Fatalf("live binding = %q, want ctrl+f9", got)
	}
}

func TestReloadDocumentKeepsPreviousOnError(t *testing.T) {
	app := newTestApp(t, allTools)
	if err := os.WriteFile(app.store.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	app.reloadDocument()

	if got := app.Document().Presets["1"].Hotkey; got != "alt+1" {
		t.Fatalf("hotkey = %q, want alt+1 kept", got)
	}
	if got := app.router.Bindings()["1"]; got != "alt+1" {
		t.Fatalf("live binding = %q, want alt+1 kept", got)
	}
}

func TestRestoreWithoutBaseline(t *testing.T) {
	app := newTestApp(t, allTools)
	if err := app.Restore(context.Background(), 2, sourceCLI); err == nil {
		t.Fatal("Restore() without baseline should fail")
	}
	if calls := app.starter.calls(); len(calls) != 0 {
		t.Fatalf("started = %v, want none", calls)
	}
}

func TestMonitorsAndHistoryDisabled(t *testing.T) {
	app := newTestApp(t, allTools)
	if got := app.Monitors(context.Background()); len(got) != 2 || got[1].Label() != "2 - LG 27GL850" {
		t.Fatalf("monitors = %v", got)
	}
	if _, err := app.History(context.Background(), 5); !errors.Is(err, errHistoryDisabled) {
		t.Fatalf("History() error = %v, want errHistoryDisabled", err)
	}
}
