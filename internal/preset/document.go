// Package preset owns the persisted preset document: the user's gamma and
// vibrance presets plus the monitor baselines captured before any preset
// was applied.
package preset

import (
	"cmp"
	"maps"
	"slices"
	"strconv"
	"strings"

	"gamergamma/internal/vcp"
)

// VibranceMode selects which tool a preset's vibrance value is sent to.
type VibranceMode string

const (
	ModeVendor          VibranceMode = "vendor"
	ModeMonitorProtocol VibranceMode = "monitor-protocol"
)

// ParseVibranceMode accepts current and legacy mode names, case-insensitively.
// "nvidia" is the legacy vendor mode and "ddc" the legacy monitor mode.
func ParseVibranceMode(s string) (VibranceMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ModeVendor), "nvidia":
		return ModeVendor, true
	case string(ModeMonitorProtocol), "ddc":
		return ModeMonitorProtocol, true
	default:
		return "", false
	}
}

// Preset is one named gamma + vibrance configuration.
type Preset struct {
	Display      int          `json:"display"`
	Gamma        int          `json:"gamma"`
	Vibrance     int          `json:"vibrance"`
	VibranceMode VibranceMode `json:"vibrance_mode"`
	Hotkey       string       `json:"hotkey"`
}

// MonitorBaseline holds a monitor's control values as read before any
// preset touched it. Nil fields were not readable.
type MonitorBaseline struct {
	Name          string `json:"name"`
	Brightness    *int   `json:"brightness,omitempty"`
	BrightnessMax *int   `json:"brightness_max,omitempty"`
	Contrast      *int   `json:"contrast,omitempty"`
	ContrastMax   *int   `json:"contrast_max,omitempty"`
	GammaSH       *int   `json:"gamma_sh,omitempty"`
	GammaMax      *int   `json:"gamma_max,omitempty"`
	Vibrance      *int   `json:"vibrance,omitempty"`
	VibranceMax   *int   `json:"vibrance_max,omitempty"`
}

// HasReadings reports whether any field besides Name was captured.
func (b MonitorBaseline) HasReadings() bool {
	for _, v := range []*int{
		b.Brightness, b.BrightnessMax,
		b.Contrast, b.ContrastMax,
		b.GammaSH, b.GammaMax,
		b.Vibrance, b.VibranceMax,
	} {
		if v != nil {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of b.
func (b MonitorBaseline) Clone() MonitorBaseline {
	out := MonitorBaseline{Name: b.Name}
	out.Brightness = cloneInt(b.Brightness)
	out.BrightnessMax = cloneInt(b.BrightnessMax)
	out.Contrast = cloneInt(b.Contrast)
	out.ContrastMax = cloneInt(b.ContrastMax)
	out.GammaSH = cloneInt(b.GammaSH)
	out.GammaMax = cloneInt(b.GammaMax)
	out.Vibrance = cloneInt(b.Vibrance)
	out.VibranceMax = cloneInt(b.VibranceMax)
	return out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Document is the persisted shape: {"presets": {...}, "monitors": {...}}.
type Document struct {
	Presets  map[string]Preset          `json:"presets"`
	Monitors map[string]MonitorBaseline `json:"monitors"`
}

// DefaultPresets returns the built-in presets. Every id here exists after
// every load.
func DefaultPresets() map[string]Preset {
	return map[string]Preset{
		"1": {Display: 1, Gamma: 128, Vibrance: 0, VibranceMode: ModeVendor, Hotkey: "alt+1"},
		"2": {Display: 1, Gamma: 144, Vibrance: 512, VibranceMode: ModeVendor, Hotkey: "alt+2"},
		"3": {Display: 1, Gamma: 255, Vibrance: 1023, VibranceMode: ModeVendor, Hotkey: "alt+3"},
	}
}

// DefaultDocument returns the document written on first run.
func DefaultDocument() Document {
	return Document{
		Presets:  DefaultPresets(),
		Monitors: map[string]MonitorBaseline{},
	}
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := Document{
		Presets:  maps.Clone(d.Presets),
		Monitors: make(map[string]MonitorBaseline, len(d.Monitors)),
	}
	if out.Presets == nil {
		out.Presets = map[string]Preset{}
	}
	for k, v := range d.Monitors {
		out.Monitors[k] = v.Clone()
	}
	return out
}

// PresetIDs returns preset ids ordered numerically where possible, then
// lexically.
func (d Document) PresetIDs() []string {
	ids := slices.Collect(maps.Keys(d.Presets))
	slices.SortFunc(ids, CompareIDs)
	return ids
}

// Hotkeys maps preset id to its chord string. Presets without a hotkey are
// left out.
func (d Document) Hotkeys() map[string]string {
	out := make(map[string]string, len(d.Presets))
	for id, p := range d.Presets {
		if p.Hotkey != "" {
			out[id] = p.Hotkey
		}
	}
	return out
}

// Baseline returns the baseline captured for display.
func (d Document) Baseline(display int) (MonitorBaseline, bool) {
	b, ok := d.Monitors[strconv.Itoa(display)]
	if !ok {
		return MonitorBaseline{}, false
	}
	return b.Clone(), true
}

// CompareIDs orders preset ids numerically, then non-numeric ids lexically
// after every numeric one.
func CompareIDs(a, b string) int {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		return cmp.Compare(ai, bi)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// LimitUnknown marks a maximum that no baseline reported.
const LimitUnknown = -1

// Limits are the per-display maxima recorded in a baseline.
type Limits struct {
	GammaMax      int `json:"gamma_max"`
	VibranceMax   int `json:"vibrance_max"`
	BrightnessMax int `json:"brightness_max"`
	ContrastMax   int `json:"contrast_max"`
}

// LimitsOf reads the maxima from b, LimitUnknown where absent.
func LimitsOf(b MonitorBaseline) Limits {
	get := func(v *int) int {
		if v == nil {
			return LimitUnknown
		}
		return *v
	}
	return Limits{
		GammaMax:      get(b.GammaMax),
		VibranceMax:   get(b.VibranceMax),
		BrightnessMax: get(b.BrightnessMax),
		ContrastMax:   get(b.ContrastMax),
	}
}

// UnknownLimits has every field set to LimitUnknown.
func UnknownLimits() Limits {
	return Limits{
		GammaMax:      LimitUnknown,
		VibranceMax:   LimitUnknown,
		BrightnessMax: LimitUnknown,
		ContrastMax:   LimitUnknown,
	}
}

// VibranceRange is the accepted vibrance interval for mode on a display with
// limits. Monitor-protocol vibrance tops out at the recorded saturation
// maximum, or vcp.DefaultVibranceMax when none was recorded.
func VibranceRange(mode VibranceMode, limits Limits) (lo, hi int) {
	if mode == ModeMonitorProtocol {
		hi = vcp.DefaultVibranceMax
		if limits.VibranceMax > 0 {
			hi = limits.VibranceMax
		}
		return 0, hi
	}
	return vcp.VendorVibranceMin, vcp.VendorVibranceMax
}
