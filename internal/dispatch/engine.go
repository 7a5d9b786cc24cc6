// Package dispatch turns presets and baselines into tool invocations and
// hands them to a Submitter without waiting for the tools to finish.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"gamergamma/internal/preset"
	"gamergamma/internal/vcp"
)

// Submitter starts a command and returns without waiting for it.
type Submitter interface {
	Submit(cmd vcp.Command) error
}

// Drainer is implemented by submitters that can wait for the commands
// already started for a display to exit.
type Drainer interface {
	Drain(ctx context.Context, display int) error
}

// BaselineSource looks up the captured baseline of a display.
type BaselineSource interface {
	Baseline(display int) (preset.MonitorBaseline, bool)
}

// Availability records which tools were found at startup.
type Availability struct {
	Protocol bool `json:"protocol"`
	Vendor   bool `json:"vendor"`
}

// ApplyRequest is one preset application.
type ApplyRequest struct {
	PresetID string              `json:"preset_id,omitempty"`
	Display  int                 `json:"display"`
	Gamma    int                 `json:"gamma"`
	Mode     preset.VibranceMode `json:"vibrance_mode"`
	Vibrance int                 `json:"vibrance"`
	// VibranceMax bounds monitor-protocol vibrance; <= 0 means unknown.
	VibranceMax int `json:"vibrance_max,omitempty"`
	// Source names what triggered the request ("hotkey", "cli", "api", "tui").
	Source string `json:"source,omitempty"`
}

// RequestFor builds the request for preset p. limits supplies the monitor's
// own saturation maximum when a baseline recorded one.
func RequestFor(id string, p preset.Preset, limits preset.Limits) ApplyRequest {
	req := ApplyRequest{
		PresetID: id,
		Display:  p.Display,
		Gamma:    p.Gamma,
		Mode:     p.VibranceMode,
		Vibrance: p.Vibrance,
	}
	if limits.VibranceMax != preset.LimitUnknown {
		req.VibranceMax = limits.VibranceMax
	}
	return req
}

// Outcome describes what an Apply or Restore actually submitted.
type Outcome struct {
	Kind      string        `json:"kind"` // "apply" or "restore"
	Request   ApplyRequest  `json:"request"`
	Submitted []vcp.Command `json:"submitted"`
	Skipped   []string      `json:"skipped,omitempty"`
}

// Options tunes an Engine.
type Options struct {
	// VibranceDefaultMax bounds monitor-protocol vibrance when the request
	// carries no maximum.
	VibranceDefaultMax int
	// OnOutcome is called after every Apply and Restore, on the caller's
	// goroutine. It must not block.
	OnOutcome func(Outcome)
}

// Engine applies presets and restores baselines. Submissions for one
// display never interleave. While Exclusive holds a display, Apply and
// Restore for it are queued and run in order when Exclusive returns; the
// caller never waits.
type Engine struct {
	codec     *vcp.Codec
	submitter Submitter
	baselines BaselineSource
	opts      Options

	avail atomic.Pointer[Availability]

	gatesMu sync.Mutex
	gates   map[int]*displayGate
}

// displayGate orders the work sent to one display.
type displayGate struct {
	exclusive sync.Mutex // serializes Exclusive callers
	submit    sync.Mutex // held while commands are being submitted

	mu      sync.Mutex
	held    bool
	pending []func()
}

// NewEngine returns an engine. baselines may be nil when Restore is unused.
func NewEngine(codec *vcp.Codec, submitter Submitter, baselines BaselineSource, avail Availability, opts Options) *Engine {
	if opts.VibranceDefaultMax <= 0 {
		opts.VibranceDefaultMax = vcp.DefaultVibranceMax
	}
	e := &Engine{
		codec:     codec,
		submitter: submitter,
		baselines: baselines,
		opts:      opts,
		gates:     map[int]*displayGate{},
	}
	e.avail.Store(&avail)
	return e
}

// Availability returns the current tool availability.
func (e *Engine) Availability() Availability {
	return *e.avail.Load()
}

// SetAvailability replaces the tool availability, e.g. after a re-probe.
func (e *Engine) SetAvailability(a Availability) {
	e.avail.Store(&a)
}

// StatusMessages lists the channels disabled by missing tools.
func (e *Engine) StatusMessages() []string {
	a := e.Availability()
	var msgs []string
	if !a.Protocol {
		msgs = append(msgs, fmt.Sprintf("Gamma disabled: %s not found.", e.codec.ProtocolTool()))
	}
	if !a.Vendor {
		msgs = append(msgs, fmt.Sprintf("Vibrance disabled: %s not found.", e.codec.VendorTool()))
	}
	return msgs
}

// StatusLine joins StatusMessages with " | ".
func (e *Engine) StatusLine() string {
	return strings.Join(e.StatusMessages(), " | ")
}

// Apply submits the gamma command when the protocol tool is available and,
// independently, the vibrance command when its tool is available. It
// returns once both are submitted; failures are logged.
func (e *Engine) Apply(req ApplyRequest) {
	e.run(req.Display, "apply", func() { e.apply(req) })
}

func (e *Engine) apply(req ApplyRequest) {
	a := e.Availability()
	out := Outcome{Kind: "apply", Request: req}

	if a.Protocol {
		e.submit(&out, e.codec.Gamma(req.Display, req.Gamma))
	} else {
		out.Skipped = append(out.Skipped, "gamma")
	}

	switch req.Mode {
	case preset.ModeMonitorProtocol:
		if a.Protocol {
			maxValue := req.VibranceMax
			if maxValue <= 0 {
				maxValue = e.opts.VibranceDefaultMax
			}
			e.submit(&out, e.codec.ProtocolVibrance(req.Display, req.Vibrance, maxValue))
		} else {
			out.Skipped = append(out.Skipped, "vibrance")
		}
	default:
		if !a.Vendor {
			out.Skipped = append(out.Skipped, "vibrance")
			break
		}
		cmd, err := e.codec.VendorVibrance(req.Display, req.Vibrance)
		if err != nil {
			slog.Warn("[WARN-DISPATCH] vendor vibrance not sent", "display", req.Display, "error", err)
			out.Skipped = append(out.Skipped, "vibrance")
			break
		}
		e.submit(&out, cmd)
	}

	slog.Debug("[DEBUG-DISPATCH] preset applied",
		"preset", req.PresetID, "display", req.Display,
		"submitted", len(out.Submitted), "skipped", out.Skipped)
	e.notify(out)
}

// Restore re-issues every captured baseline value of display. Fields that
// were never captured are skipped. A display without a baseline is a no-op.
func (e *Engine) Restore(display int) {
	e.RestoreFrom(display, "")
}

// RestoreFrom is Restore with the trigger recorded in the Outcome.
func (e *Engine) RestoreFrom(display int, source string) {
	if e.baselines == nil {
		return
	}
	e.run(display, "restore", func() { e.restore(display, source) })
}

func (e *Engine) restore(display int, source string) {
	b, ok := e.baselines.Baseline(display)
	if !ok {
		slog.Debug("[DEBUG-DISPATCH] no baseline to restore", "display", display)
		return
	}

	out := Outcome{Kind: "restore", Request: ApplyRequest{Display: display, Source: source}}
	if !e.Availability().Protocol {
		out.Skipped = append(out.Skipped, "brightness", "contrast", "gamma", "vibrance")
		e.notify(out)
		return
	}
	if b.Brightness != nil {
		e.submit(&out, e.codec.SetVCP(display, vcp.CodeBrightness, *b.Brightness))
	}
	if b.Contrast != nil {
		e.submit(&out, e.codec.SetVCP(display, vcp.CodeContrast, *b.Contrast))
	}
	if b.GammaSH != nil {
		e.submit(&out, e.codec.Gamma(display, *b.GammaSH))
	}
	if b.Vibrance != nil {
		e.submit(&out, e.codec.SetVCP(display, vcp.CodeSaturation, *b.Vibrance))
	}
	slog.Debug("[DEBUG-DISPATCH] baseline restored", "display", display, "submitted", len(out.Submitted))
	e.notify(out)
}

// Exclusive runs fn with display to itself. It waits for the commands
// already started for display to exit when the submitter is a Drainer, and
// Apply or Restore calls that arrive meanwhile are queued. The queue is
// flushed on the calling goroutine before Exclusive returns.
func (e *Engine) Exclusive(ctx context.Context, display int, fn func() error) error {
	g := e.gate(display)
	g.exclusive.Lock()
	defer g.exclusive.Unlock()

	g.mu.Lock()
	g.held = true
	g.mu.Unlock()
	// Waits out a submission that started before held was set.
	g.submit.Lock()
	defer e.release(g)

	if d, ok := e.submitter.(Drainer); ok {
		if err := d.Drain(ctx, display); err != nil {
			return fmt.Errorf("display %d busy: %w", display, err)
		}
	}
	return fn()
}

// run submits fn for display now, or queues it while Exclusive holds the
// display.
func (e *Engine) run(display int, kind string, fn func()) {
	g := e.gate(display)
	g.mu.Lock()
	if g.held {
		g.pending = append(g.pending, fn)
		g.mu.Unlock()
		slog.Info("[dispatch] display busy, request queued", "display", display, "kind", kind)
		return
	}
	g.submit.Lock()
	g.mu.Unlock()
	defer g.submit.Unlock()
	fn()
}

// release runs the queued work in arrival order, then reopens the display.
// g.submit is held on entry and released on return.
func (e *Engine) release(g *displayGate) {
	defer g.submit.Unlock()
	for {
		g.mu.Lock()
		if len(g.pending) == 0 {
			g.held = false
			g.mu.Unlock()
			return
		}
		fn := g.pending[0]
		g.pending = g.pending[1:]
		g.mu.Unlock()
		fn()
	}
}

func (e *Engine) submit(out *Outcome, cmd vcp.Command) {
	if err := e.submitter.Submit(cmd); err != nil {
		slog.Warn("[WARN-DISPATCH] command submission failed",
			"tool", cmd.Program, "args", strings.Join(cmd.Args, " "), "error", err)
		return
	}
	out.Submitted = append(out.Submitted, cmd)
}

func (e *Engine) notify(out Outcome) {
	if e.opts.OnOutcome != nil {
		e.opts.OnOutcome(out)
	}
}

func (e *Engine) gate(display int) *displayGate {
	e.gatesMu.Lock()
	defer e.gatesMu.Unlock()
	g, ok := e.gates[display]
	if !ok {
		g = &displayGate{}
		e.gates[display] = g
	}
	return g
}
