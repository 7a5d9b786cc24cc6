package main

import (
	"context"
	"reflect"
	"testing"
	"time"

	"gamergamma/internal/dispatch"
	"gamergamma/internal/history"
	"gamergamma/internal/preset"
	"gamergamma/internal/vcp"
)

func TestHistoryEntryFor(t *testing.T) {
	gamma := vcp.Command{Program: "ddcutil", Args: []string{"-d", "1", "setvcp", "0x72", "0x8000"}}
	tests := []struct {
		name string
		out  dispatch.Outcome
		want history.Entry
	}{
		{
			name: "apply",
			out: dispatch.Outcome{
				Kind: "apply",
				Request: dispatch.ApplyRequest{
					PresetID: "1", Display: 1, Gamma: 128, Vibrance: 40,
					Mode: preset.ModeMonitorProtocol, Source: sourceHotkey,
				},
				Submitted: []vcp.Command{gamma},
			},
			want: history.Entry{
				Kind: "apply", Source: sourceHotkey, PresetID: "1", Display: 1,
				Gamma: 128, Vibrance: 40, Mode: "monitor-protocol",
				Commands: []string{"ddcutil -d 1 setvcp 0x72 0x8000"},
			},
		},
		{
			name: "restore ignores request values",
			out: dispatch.Outcome{
				Kind:    "restore",
				Request: dispatch.ApplyRequest{Display: 2, Gamma: 99, Source: "api"},
				Skipped: []string{"brightness"},
			},
			want: history.Entry{Kind: "restore", Source: "api", Display: 2, Skipped: []string{"brightness"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := historyEntryFor(tt.out); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("historyEntryFor() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

type memoryRecorder struct {
	entries chan history.Entry
}

func (m *memoryRecorder) Record(_ context.Context, e history.Entry) (history.Entry, error) {
	m.entries <- e
	return e, nil
}

func TestOutcomeIsRecorded(t *testing.T) {
	app := newTestApp(t, allTools)
	rec := &memoryRecorder{entries: make(chan history.Entry, 4)}
	app.recorder = history.NewWriter(rec, 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		app.recorder.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	if _, err := app.ApplyPreset(context.Background(), "1", sourceTUI); err != nil {
		t.Fatalf("ApplyPreset() error = %v", err)
	}

	select {
	case e := <-rec.entries:
		if e.Kind != "apply" || e.Source != sourceTUI || e.PresetID != "1" || len(e.Commands) != 2 {
			t.Fatalf("recorded = %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("apply was not recorded")
	}
}
