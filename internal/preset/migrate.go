package preset

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
)

// rawPreset mirrors Preset with every field optional so missing values can
// be told apart from zero values during backfill.
type rawPreset struct {
	Display      *int    `json:"display"`
	Gamma        *int    `json:"gamma"`
	Vibrance     *int    `json:"vibrance"`
	VibranceMode *string `json:"vibrance_mode"`
	Hotkey       *string `json:"hotkey"`
}

// decodeDocument parses raw into a Document, upgrading the legacy flat shape
// ({"1": {...}}) and backfilling every default preset. upgraded reports
// whether the input was legacy-shaped.
func decodeDocument(raw []byte) (doc Document, upgraded bool, err error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return Document{}, false, fmt.Errorf("decode document: %w", err)
	}

	presetsRaw := top
	_, hasPresets := top["presets"]
	_, hasMonitors := top["monitors"]
	if hasPresets || hasMonitors {
		presetsRaw = map[string]json.RawMessage{}
		if hasPresets {
			if err := json.Unmarshal(top["presets"], &presetsRaw); err != nil {
				return Document{}, false, fmt.Errorf("decode presets: %w", err)
			}
		}
	} else {
		upgraded = true
	}

	doc = Document{
		Presets:  make(map[string]Preset, len(presetsRaw)),
		Monitors: map[string]MonitorBaseline{},
	}
	for id, entry := range presetsRaw {
		var rp rawPreset
		if err := json.Unmarshal(entry, &rp); err != nil {
			if upgraded {
				// Legacy flat documents may carry unrelated top-level keys.
				slog.Warn("[WARN-PRESET] skipping non-preset entry in legacy document", "key", id, "error", err)
				continue
			}
			return Document{}, false, fmt.Errorf("decode preset %q: %w", id, err)
		}
		doc.Presets[id] = backfill(id, rp)
	}
	for id, def := range DefaultPresets() {
		if _, ok := doc.Presets[id]; !ok {
			slog.Debug("[DEBUG-PRESET] backfilling missing preset", "id", id)
			doc.Presets[id] = def
		}
	}

	if hasMonitors {
		var monitors map[string]MonitorBaseline
		if err := json.Unmarshal(top["monitors"], &monitors); err != nil {
			return Document{}, false, fmt.Errorf("decode monitors: %w", err)
		}
		for key, b := range monitors {
			if n, err := strconv.Atoi(key); err != nil || n < 1 {
				slog.Warn("[WARN-PRESET] dropping baseline with invalid display key", "key", key)
				continue
			}
			doc.Monitors[key] = b
		}
	}
	return doc, upgraded, nil
}

// backfill fills every absent field of rp from the default for id, or from
// preset "1" for ids without a default. Custom ids get no default hotkey.
func backfill(id string, rp rawPreset) Preset {
	defaults := DefaultPresets()
	def, ok := defaults[id]
	if !ok {
		def = defaults["1"]
		def.Hotkey = ""
	}

	p := def
	if rp.Display != nil {
		p.Display = *rp.Display
	}
	if p.Display < 1 {
		slog.Warn("[WARN-PRESET] preset display must be positive, using default", "id", id, "display", p.Display)
		p.Display = def.Display
	}
	if rp.Gamma != nil {
		p.Gamma = *rp.Gamma
	}
	if rp.Vibrance != nil {
		p.Vibrance = *rp.Vibrance
	}
	if rp.VibranceMode != nil {
		mode, ok := ParseVibranceMode(*rp.VibranceMode)
		if !ok {
			slog.Warn("[WARN-PRESET] unknown vibrance mode, using default", "id", id, "mode", *rp.VibranceMode)
			mode = def.VibranceMode
		}
		p.VibranceMode = mode
	}
	if rp.Hotkey != nil {
		p.Hotkey = *rp.Hotkey
	}
	return p
}
