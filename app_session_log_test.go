package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"gamergamma/internal/sessionlog"
)

func TestCleanupOldSessionLogs(t *testing.T) {
	dir := t.TempDir()
	var names []string
	for i := range 5 {
		name := fmt.Sprintf("session-20260101-00000%d-1.jsonl", i)
		names = append(names, name)
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o600); err != nil {
		t.Fatal(err)
	}

	// The oldest file is the current one and must survive.
	cleanupOldSessionLogs(dir, names[0], 2)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Name())
	}
	slices.Sort(got)
	want := []string{"notes.txt", names[0], names[4]}
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Fatalf("remaining = %v, want %v", got, want)
	}
}

func TestSessionLogWritesJSONL(t *testing.T) {
	app := NewApp(filepath.Join(t.TempDir(), "config.yaml"))
	app.initSessionLog()
	t.Cleanup(app.closeSessionLog)

	app.sessionLogMu.Lock()
	path := app.sessionLogPath
	app.sessionLogMu.Unlock()
	if path == "" {
		t.Fatal("session log was not created")
	}

	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	app.writeSessionLogEntry(sessionlog.Entry{Time: at, Level: "WARN", Message: "first"})
	app.writeSessionLogEntry(sessionlog.Entry{Time: at, Level: "ERROR", Message: "second"})

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var messages []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e sessionlog.Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		messages = append(messages, e.Message)
	}
	if want := []string{"first", "second"}; !slices.Equal(messages, want) {
		t.Fatalf("messages = %v, want %v", messages, want)
	}
}

func TestForwardLogEntryNeverBlocks(t *testing.T) {
	app := NewApp(filepath.Join(t.TempDir(), "config.yaml"))
	t.Cleanup(func() { app.hub.Close() })

	for i := range logFeedSize + 5 {
		app.forwardLogEntry(sessionlog.Entry{Level: "WARN", Message: fmt.Sprint(i)})
	}
	if got := len(app.logFeed); got != logFeedSize {
		t.Fatalf("feed holds %d entries, want %d", got, logFeedSize)
	}
	if e := <-app.logFeed; e.Message != "0" {
		t.Fatalf("first entry = %q, want 0", e.Message)
	}
}
