// Package inventory lists the displays ddcutil can talk to and reads raw
// VCP values from them.
package inventory

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"gamergamma/internal/vcp"
)

var displayLinePattern = regexp.MustCompile(`^Display\s+(\d+)`)

// Monitor is one controllable display.
type Monitor struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// Label renders the monitor as "<index> - <name>".
func (m Monitor) Label() string {
	return fmt.Sprintf("%d - %s", m.Index, m.Name)
}

// OutputRunner runs a tool to completion and returns its standard output.
type OutputRunner interface {
	Output(ctx context.Context, name string, args ...string) (string, error)
}

// Prober queries ddcutil through an OutputRunner.
type Prober struct {
	runner OutputRunner
	codec  *vcp.Codec
}

// NewProber returns a prober that issues the codec's detect and getvcp calls.
func NewProber(runner OutputRunner, codec *vcp.Codec) *Prober {
	return &Prober{runner: runner, codec: codec}
}

// Monitors returns a lazy sequence of detected displays. Each iteration runs
// detect afresh. A missing or failing tool yields an empty sequence.
func (p *Prober) Monitors(ctx context.Context) iter.Seq[Monitor] {
	return func(yield func(Monitor) bool) {
		cmd := p.codec.Detect()
		out, err := p.runner.Output(ctx, cmd.Program, cmd.Args...)
		if err != nil {
			slog.Debug("[DEBUG-INVENTORY] detect failed", "tool", cmd.Program, "error", err)
			return
		}
		for m := range ParseDetect(out) {
			if !yield(m) {
				return
			}
		}
	}
}

// MonitorName returns the model name of display, or an error when detect
// does not list it.
func (p *Prober) MonitorName(ctx context.Context, display int) (string, error) {
	for m := range p.Monitors(ctx) {
		if m.Index == display {
			return m.Name, nil
		}
	}
	return "", fmt.Errorf("display %d not detected", display)
}

// ReadVCP runs getvcp for code on display and parses the readout.
func (p *Prober) ReadVCP(ctx context.Context, display int, code vcp.Code) (vcp.Reading, error) {
	cmd := p.codec.GetVCP(display, code)
	out, err := p.runner.Output(ctx, cmd.Program, cmd.Args...)
	if err != nil {
		return vcp.Reading{}, fmt.Errorf("read vcp %s on display %d: %w", code, display, err)
	}
	return vcp.ParseReading(out), nil
}

// ParseDetect walks `ddcutil detect` output. A "Display N" line opens an
// entry that the next "Model:" line completes; entries without a model are
// skipped.
func ParseDetect(out string) iter.Seq[Monitor] {
	return func(yield func(Monitor) bool) {
		current := -1
		scanner := bufio.NewScanner(strings.NewReader(out))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if m := displayLinePattern.FindStringSubmatch(line); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					current = n
				}
			}
			_, model, found := strings.Cut(line, "Model:")
			if !found || current < 0 {
				continue
			}
			if !yield(Monitor{Index: current, Name: strings.TrimSpace(model)}) {
				return
			}
			current = -1
		}
	}
}
