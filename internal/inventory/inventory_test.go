package inventory

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	"gamergamma/internal/vcp"
)

const detectOutput = `Display 1
   I2C bus:  /dev/i2c-4
   DRM connector:           card1-DP-1
   Monitor:                 DEL:DELL S2716DG:#GTIYMxgwAA7d
   Model:                   DELL S2716DG

Invalid display
   I2C bus:  /dev/i2c-6
   Model:                   Phantom

Display 2
   I2C bus:  /dev/i2c-5
   Model:                   LG ULTRAGEAR
`

type fakeRunner struct {
	calls   [][]string
	outputs map[string]string
	err     error
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return "", f.err
	}
	return f.outputs[strings.Join(args, " ")], nil
}

func TestParseDetect(t *testing.T) {
	got := slices.Collect(ParseDetect(detectOutput))
	want := []Monitor{
		{Index: 1, Name: "DELL S2716DG"},
		{Index: 2, Name: "LG ULTRAGEAR"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseDetect() = %+v, want %+v", got, want)
	}
}

func TestMonitorsIsLazyAndRestartable(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{"detect": detectOutput}}
	p := NewProber(runner, vcp.NewCodec("", "", 0))

	seq := p.Monitors(context.Background())
	if len(runner.calls) != 0 {
		t.Fatal("detect ran before iteration")
	}

	for m := range seq {
		if m.Index != 1 {
			t.Fatalf("first monitor = %+v", m)
		}
		break
	}
	if n := len(slices.Collect(seq)); n != 2 {
		t.Fatalf("second pass yielded %d monitors, want 2", n)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("detect calls = %d, want 2", len(runner.calls))
	}
}

func TestMonitorsEmptyWhenToolMissing(t *testing.T) {
	p := NewProber(&fakeRunner{err: errors.New("tool unavailable")}, vcp.NewCodec("", "", 0))
	if got := slices.Collect(p.Monitors(context.Background())); len(got) != 0 {
		t.Fatalf("Monitors() = %v, want empty", got)
	}
}

func TestMonitorName(t *testing.T) {
	p := NewProber(&fakeRunner{outputs: map[string]string{"detect": detectOutput}}, vcp.NewCodec("", "", 0))
	name, err := p.MonitorName(context.Background(), 2)
	if err != nil || name != "LG ULTRAGEAR" {
		t.Fatalf("MonitorName(2) = %q, %v", name, err)
	}
	if _, err := p.MonitorName(context.Background(), 3); err == nil {
		t.Fatal("MonitorName(3) error = nil")
	}
}

func TestReadVCP(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"-d 1 getvcp 0x12": "VCP code 0x12 (Contrast): current value = 75, max value = 100",
	}}
	p := NewProber(runner, vcp.NewCodec("", "", 0))
	r, err := p.ReadVCP(context.Background(), 1, vcp.CodeContrast)
	if err != nil {
		t.Fatal(err)
	}
	if !r.HasValue || r.Current != 75 || r.Max != 100 {
		t.Fatalf("ReadVCP() = %+v", r)
	}
}

func TestMonitorLabel(t *testing.T) {
	if got := (Monitor{Index: 1, Name: "DELL S2716DG"}).Label(); got != "1 - DELL S2716DG" {
		t.Fatalf("Label() = %q", got)
	}
}
