package main

import (
	"log/slog"
	"strings"

	"gamergamma/internal/dispatch"
	"gamergamma/internal/eventhub"
	"gamergamma/internal/history"
)

// onOutcome runs on the applying goroutine and must not block.
func (a *App) onOutcome(out dispatch.Outcome) {
	kind := eventhub.KindPresetApplied
	if out.Kind == "restore" {
		kind = eventhub.KindRestored
	}
	a.hub.Publish(kind, out)

	if a.recorder != nil {
		a.recorder.Enqueue(historyEntryFor(out))
	}
	if out.Kind == "apply" && len(out.Submitted) > 0 {
		go a.notifier.Applied()
	}
}

func historyEntryFor(out dispatch.Outcome) history.Entry {
	req := out.Request
	e := history.Entry{
		Kind:     out.Kind,
		Source:   req.Source,
		PresetID: req.PresetID,
		Display:  req.Display,
		Skipped:  out.Skipped,
	}
	if out.Kind == "apply" {
		e.Gamma = req.Gamma
		e.Vibrance = req.Vibrance
		e.Mode = string(req.Mode)
	}
	for _, cmd := range out.Submitted {
		e.Commands = append(e.Commands, strings.Join(cmd.Argv(), " "))
	}
	return e
}

func (a *App) onHistorySaved(e history.Entry) {
	slog.Debug("[DEBUG-HISTORY] entry recorded", "id", e.ID, "kind", e.Kind, "source", e.Source)
}

func (a *App) onBindingsRebuilt(bindings map[string]string) {
	a.hub.Publish(eventhub.KindBindingsRebuilt, bindings)
}
