// Package tui is the terminal preset editor: pick a preset, adjust its
// values, bind a hotkey, apply, save, and manage monitor baselines.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gamergamma/internal/dispatch"
	"gamergamma/internal/hotkeys"
	"gamergamma/internal/inventory"
	"gamergamma/internal/preset"
	"gamergamma/internal/sessionlog"
	"gamergamma/internal/vcp"
)

const (
	opTimeout   = 15 * time.Second
	bigStep     = 10
	maxLogLines = 3
)

// Backend is the daemon surface the editor drives.
type Backend interface {
	Document() preset.Document
	UpdatePreset(ctx context.Context, id string, p preset.Preset) (preset.Document, error)
	ApplyPreset(ctx context.Context, id, source string) (dispatch.ApplyRequest, error)
	Monitors(ctx context.Context) []inventory.Monitor
	Limits(display int) preset.Limits
	CaptureBaseline(ctx context.Context, display int) (preset.MonitorBaseline, bool, error)
	Restore(ctx context.Context, display int, source string) error
	StatusLine() string
	// SuspendHotkeys releases the global grabs so the terminal receives
	// every chord while one is being captured.
	SuspendHotkeys() error
	ResumeHotkeys() error
}

type field int

const (
	fieldDisplay field = iota
	fieldGamma
	fieldVibrance
	fieldMode
	fieldHotkey
	fieldCount
)

func (f field) String() string {
	switch f {
	case fieldDisplay:
		return "Display"
	case fieldGamma:
		return "Gamma"
	case fieldVibrance:
		return "Vibrance"
	case fieldMode:
		return "Vibrance mode"
	case fieldHotkey:
		return "Hotkey"
	default:
		return "?"
	}
}

type (
	monitorsMsg []inventory.Monitor
	savedMsg    struct {
		id         string
		doc        preset.Document
		err        error
		hotkeyOnly bool // other unsaved draft values survive
	}
	appliedMsg struct {
		req dispatch.ApplyRequest
		err error
	}
	baselineMsg struct {
		display int
		stored  bool
		err     error
	}
	restoredMsg struct {
		display int
		err     error
	}
	captureTextMsg string
	logMsg         sessionlog.Entry
)

// Model is the bubbletea model.
type Model struct {
	backend Backend
	th      theme
	logs    <-chan sessionlog.Entry

	ids      []string
	saved    preset.Document
	draft    preset.Document
	cursor   int
	focus    field
	monitors []inventory.Monitor

	capture     *hotkeys.CaptureSession
	captureText string
	captureCh   chan string

	message   string
	isError   bool
	recentLog []sessionlog.Entry
	width     int
}

// NewModel builds the editor from the backend's current document. logs, if
// non-nil, feeds warnings into the footer.
func NewModel(backend Backend, logs <-chan sessionlog.Entry) Model {
	doc := backend.Document()
	return Model{
		backend: backend,
		th:      defaultTheme(),
		logs:    logs,
		ids:     doc.PresetIDs(),
		saved:   doc.Clone(),
		draft:   doc.Clone(),
	}
}

// Init loads the monitor list and starts listening for log entries.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadMonitors(), m.waitForLog())
}

func (m Model) loadMonitors() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return monitorsMsg(m.backend.Monitors(ctx))
	}
}

func (m Model) waitForLog() tea.Cmd {
	if m.logs == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-m.logs
		if !ok {
			return nil
		}
		return logMsg(e)
	}
}

func (m Model) waitForCapture() tea.Cmd {
	ch := m.captureCh
	return func() tea.Msg {
		text, ok := <-ch
		if !ok {
			return nil
		}
		return captureTextMsg(text)
	}
}

func (m Model) selectedID() string {
	if len(m.ids) == 0 {
		return ""
	}
	return m.ids[m.cursor]
}

func (m Model) selected() preset.Preset {
	return m.draft.Presets[m.selectedID()]
}

func (m Model) dirty(id string) bool {
	return m.draft.Presets[id] != m.saved.Presets[id]
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case monitorsMsg:
		m.monitors = msg
		return m, nil
	case logMsg:
		m.recentLog = append(m.recentLog, sessionlog.Entry(msg))
		if len(m.recentLog) > maxLogLines {
			m.recentLog = m.recentLog[len(m.recentLog)-maxLogLines:]
		}
		return m, m.waitForLog()
	case captureTextMsg:
		m.captureText = string(msg)
		return m, m.waitForCapture()
	case savedMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("Save failed for preset %s: %v", msg.id, msg.err))
			return m, nil
		}
		m.saved = msg.doc.Clone()
		saved := msg.doc.Presets[msg.id]
		if msg.hotkeyOnly {
			draft := m.draft.Presets[msg.id]
			draft.Hotkey = saved.Hotkey
			saved = draft
		}
		m.draft.Presets[msg.id] = saved
		m.setInfo(fmt.Sprintf("Preset %s saved.", msg.id))
		return m, nil
	case appliedMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("Apply failed: %v", msg.err))
			return m, nil
		}
		m.setInfo(fmt.Sprintf("Applied preset %s to display %d.", msg.req.PresetID, msg.req.Display))
		return m, nil
	case baselineMsg:
		switch {
		case msg.err != nil:
			m.setError(fmt.Sprintf("Baseline capture failed: %v", msg.err))
		case !msg.stored:
			m.setError(fmt.Sprintf("No readable controls on display %d.", msg.display))
		default:
			m.setInfo(fmt.Sprintf("Baseline captured for display %d.", msg.display))
		}
		return m, nil
	case restoredMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("Restore failed: %v", msg.err))
			return m, nil
		}
		m.setInfo(fmt.Sprintf("Restored display %d.", msg.display))
		return m, nil
	case tea.KeyMsg:
		if m.capture != nil {
			return m.updateCapture(msg)
		}
		return m.updateEditor(msg)
	}
	return m, nil
}

func (m *Model) setInfo(s string)  { m.message, m.isError = s, false }
func (m *Model) setError(s string) { m.message, m.isError = s, true }

func (m Model) updateEditor(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.ids)-1 {
			m.cursor++
		}
	case "tab":
		m.focus = (m.focus + 1) % fieldCount
	case "shift+tab":
		m.focus = (m.focus + fieldCount - 1) % fieldCount
	case "left", "h":
		m.adjust(-1)
	case "right", "l":
		m.adjust(1)
	case "H", "pgdown":
		m.adjust(-bigStep)
	case "L", "pgup":
		m.adjust(bigStep)
	case "m":
		m.toggleMode()
	case "c":
		return m.startCapture()
	case "enter", "a":
		return m, m.apply()
	case "s":
		return m, m.save(m.selectedID(), m.selected())
	case "u":
		id := m.selectedID()
		m.draft.Presets[id] = m.saved.Presets[id]
		m.setInfo(fmt.Sprintf("Preset %s reverted.", id))
	case "b":
		return m, m.captureBaseline(m.selected().Display)
	case "r":
		return m, m.restore(m.selected().Display)
	case "R":
		return m, m.loadMonitors()
	}
	return m, nil
}

// adjust moves the focused numeric field by delta within its limits.
func (m *Model) adjust(delta int) {
	id := m.selectedID()
	if id == "" {
		return
	}
	p := m.draft.Presets[id]
	limits := m.backend.Limits(p.Display)
	switch m.focus {
	case fieldDisplay:
		p.Display = max(1, p.Display+sign(delta))
	case fieldGamma:
		hi := vcp.GammaMax
		if limits.GammaMax != preset.LimitUnknown {
			hi = min(hi, limits.GammaMax)
		}
		p.Gamma = clamp(p.Gamma+delta, vcp.GammaMin, hi)
	case fieldVibrance:
		lo, hi := preset.VibranceRange(p.VibranceMode, limits)
		step := delta
		if p.VibranceMode == preset.ModeVendor {
			step *= bigStep
		}
		p.Vibrance = clamp(p.Vibrance+step, lo, hi)
	case fieldMode:
		m.toggleMode()
		return
	default:
		return
	}
	m.draft.Presets[id] = p
}

func (m *Model) toggleMode() {
	id := m.selectedID()
	if id == "" {
		return
	}
	p := m.draft.Presets[id]
	if p.VibranceMode == preset.ModeVendor {
		p.VibranceMode = preset.ModeMonitorProtocol
	} else {
		p.VibranceMode = preset.ModeVendor
	}
	lo, hi := preset.VibranceRange(p.VibranceMode, m.backend.Limits(p.Display))
	p.Vibrance = clamp(p.Vibrance, lo, hi)
	m.draft.Presets[id] = p
}

func (m Model) startCapture() (tea.Model, tea.Cmd) {
	if err := m.backend.SuspendHotkeys(); err != nil {
		m.setError(fmt.Sprintf("Could not pause hotkeys: %v", err))
	}
	ch := make(chan string, 16)
	m.captureCh = ch
	m.captureText = ""
	m.capture = hotkeys.NewCaptureSession(func(text string) {
		select {
		case ch <- text:
		default:
		}
	})
	m.setInfo("Press the new chord. Enter saves, Esc cancels, Backspace clears.")
	return m, m.waitForCapture()
}

func (m Model) updateCapture(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "esc":
		m.endCapture()
		m.setInfo("Hotkey edit cancelled.")
		return m, nil
	case "backspace":
		m.capture.Clear()
		m.captureText = ""
		return m, nil
	case "enter":
		chord, err := m.capture.Chord()
		m.endCapture()
		if err != nil {
			m.setError(fmt.Sprintf("Hotkey not changed: %v", err))
			return m, nil
		}
		id := m.selectedID()
		p := m.saved.Presets[id]
		p.Hotkey = chord.String()
		return m, m.saveHotkey(id, p)
	case "ctrl+c":
		m.endCapture()
		return m, tea.Quit
	}
	if err := m.capture.FeedCombo(k.String()); err != nil && !errors.Is(err, hotkeys.ErrCaptureClosed) {
		m.setError(err.Error())
	}
	return m, nil
}

// endCapture closes the session and re-arms the global hotkeys. A save that
// follows rebuilds them again with the new binding.
func (m *Model) endCapture() {
	if m.capture == nil {
		return
	}
	m.capture.Close()
	close(m.captureCh)
	m.capture = nil
	if err := m.backend.ResumeHotkeys(); err != nil {
		m.setError(fmt.Sprintf("Could not resume hotkeys: %v", err))
	}
}

func (m Model) save(id string, p preset.Preset) tea.Cmd {
	if id == "" {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		doc, err := m.backend.UpdatePreset(ctx, id, p)
		return savedMsg{id: id, doc: doc, err: err}
	}
}

// saveHotkey persists p, the saved preset with a new hotkey, without
// discarding unsaved edits of the other fields.
func (m Model) saveHotkey(id string, p preset.Preset) tea.Cmd {
	save := m.save(id, p)
	return func() tea.Msg {
		msg := save().(savedMsg)
		msg.hotkeyOnly = true
		return msg
	}
}

// apply sends the draft values without saving them, so they can be tried
// before committing.
func (m Model) apply() tea.Cmd {
	id := m.selectedID()
	if id == "" {
		return nil
	}
	if m.dirty(id) {
		req := dispatch.RequestFor(id, m.selected(), m.backend.Limits(m.selected().Display))
		return func() tea.Msg {
			return appliedMsg{req: req, err: applyDraft(m.backend, req)}
		}
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		req, err := m.backend.ApplyPreset(ctx, id, "tui")
		return appliedMsg{req: req, err: err}
	}
}

// DraftApplier is implemented by backends that can apply unsaved values.
type DraftApplier interface {
	ApplyRequest(req dispatch.ApplyRequest, source string)
}

func applyDraft(b Backend, req dispatch.ApplyRequest) error {
	da, ok := b.(DraftApplier)
	if !ok {
		return errors.New("unsaved changes; save first")
	}
	da.ApplyRequest(req, "tui")
	return nil
}

func (m Model) captureBaseline(display int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		_, stored, err := m.backend.CaptureBaseline(ctx, display)
		return baselineMsg{display: display, stored: stored, err: err}
	}
}

func (m Model) restore(display int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return restoredMsg{display: display, err: m.backend.Restore(ctx, display, "tui")}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.th.Header.Render("gamergamma presets"))
	b.WriteString("\n\n")

	var list strings.Builder
	for i, id := range m.ids {
		p := m.draft.Presets[id]
		label := fmt.Sprintf("Preset %s  %s", id, p.Hotkey)
		if m.dirty(id) {
			label += " *"
		}
		if i == m.cursor {
			list.WriteString(m.th.Selected.Render("> " + label))
		} else {
			list.WriteString("  " + label)
		}
		list.WriteString("\n")
	}

	editor := m.renderEditor()
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.th.Panel.Render(strings.TrimRight(list.String(), "\n")),
		m.th.Panel.Render(editor),
	))
	b.WriteString("\n")

	if m.capture != nil {
		text := m.captureText
		if text == "" {
			text = m.th.Muted.Render("(waiting for keys)")
		}
		b.WriteString(m.th.Capture.Render("New hotkey: " + text))
		b.WriteString("\n")
	}

	if len(m.monitors) > 0 {
		labels := make([]string, len(m.monitors))
		for i, mon := range m.monitors {
			labels[i] = mon.Label()
		}
		b.WriteString(m.th.Muted.Render("Monitors: " + strings.Join(labels, ", ")))
		b.WriteString("\n")
	}
	if status := m.backend.StatusLine(); status != "" {
		b.WriteString(m.th.Alert.Render(status))
		b.WriteString("\n")
	}
	if m.message != "" {
		style := m.th.Success
		if m.isError {
			style = m.th.Danger
		}
		b.WriteString(style.Render(m.message))
		b.WriteString("\n")
	}
	for _, e := range m.recentLog {
		b.WriteString(m.th.Muted.Render(fmt.Sprintf("[%s] %s", e.Level, e.Message)))
		b.WriteString("\n")
	}
	b.WriteString(m.th.Muted.Render("j/k select  tab field  h/l adjust  m mode  c hotkey  enter apply  s save  u revert  b baseline  r restore  q quit"))
	return b.String()
}

func (m Model) renderEditor() string {
	id := m.selectedID()
	if id == "" {
		return m.th.Muted.Render("no presets")
	}
	p := m.draft.Presets[id]
	limits := m.backend.Limits(p.Display)
	lo, hi := preset.VibranceRange(p.VibranceMode, limits)
	gammaHi := vcp.GammaMax
	if limits.GammaMax != preset.LimitUnknown {
		gammaHi = min(gammaHi, limits.GammaMax)
	}

	values := map[field]string{
		fieldDisplay:  m.displayLabel(p.Display),
		fieldGamma:    fmt.Sprintf("%d  [0..%d]", p.Gamma, gammaHi),
		fieldVibrance: fmt.Sprintf("%d  [%d..%d]", p.Vibrance, lo, hi),
		fieldMode:     string(p.VibranceMode),
		fieldHotkey:   p.Hotkey,
	}
	var b strings.Builder
	for f := range fieldCount {
		value := values[f]
		if f == m.focus {
			value = m.th.Focus.Render(value)
		}
		b.WriteString(m.th.Field.Render(f.String()) + value)
		if f < fieldCount-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) displayLabel(display int) string {
	for _, mon := range m.monitors {
		if mon.Index == display {
			return mon.Label()
		}
	}
	return fmt.Sprintf("%d", display)
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
