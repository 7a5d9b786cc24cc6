package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gamergamma/internal/eventhub"
	"gamergamma/internal/sessionlog"
)

const (
	sessionLogDir      = "session-logs"
	sessionLogMaxFiles = 20
	logFeedSize        = 32
)

// installLogger makes a text handler at level the default logger and tees
// Warn and above into the session log ring, the JSONL file, the event hub
// and the TUI feed.
func (a *App) installLogger(level slog.Level, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	base := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	tee := sessionlog.NewTeeHandler(base, slog.LevelWarn, sessionlog.Fanout(
		a.logRing.Add,
		a.writeSessionLogEntry,
		a.forwardLogEntry,
	))
	slog.SetDefault(slog.New(tee))
}

// forwardLogEntry must not block the logging goroutine.
func (a *App) forwardLogEntry(entry sessionlog.Entry) {
	a.hub.Publish(eventhub.KindLog, entry)
	select {
	case a.logFeed <- entry:
	default:
	}
}

// initSessionLog creates the JSONL session log for this run beside the
// config file. Non-fatal: failures are logged and the file is skipped.
func (a *App) initSessionLog() {
	dir := filepath.Join(filepath.Dir(a.configPath), sessionLogDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Warn("[session-log] failed to create log directory", "dir", dir, "error", err)
		return
	}

	// PID keeps sub-second restarts from sharing a file.
	name := fmt.Sprintf("session-%s-%d.jsonl", time.Now().Format("20060102-150405"), os.Getpid())
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		slog.Warn("[session-log] failed to open log file", "path", path, "error", err)
		return
	}

	a.sessionLogMu.Lock()
	a.sessionLogFile = f
	a.sessionLogPath = path
	a.sessionLogMu.Unlock()

	cleanupOldSessionLogs(dir, name, sessionLogMaxFiles)
	slog.Debug("[session-log] initialized", "path", path)
}

// cleanupOldSessionLogs removes the oldest session logs beyond maxFiles.
// The current file is never removed.
func cleanupOldSessionLogs(dir, current string, maxFiles int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("[session-log] failed to read log directory for cleanup", "dir", dir, "error", err)
		return
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, "session-") && strings.HasSuffix(name, ".jsonl") {
			names = append(names, name)
		}
	}
	// The timestamp prefix makes lexical order creation order.
	slices.Sort(names)

	excess := len(names) - maxFiles
	for _, name := range names {
		if excess <= 0 {
			break
		}
		if name == current {
			continue
		}
		target := filepath.Join(dir, name)
		if err := os.Remove(target); err != nil {
			slog.Warn("[session-log] failed to delete old log file", "path", target, "error", err)
			continue
		}
		excess--
	}
}

// writeSessionLogEntry appends entry to the JSONL file.
// It runs inside the log handler: diagnostics go to stderr, never slog.
func (a *App) writeSessionLogEntry(entry sessionlog.Entry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[session-log] failed to marshal log entry: %v\n", err)
		return
	}
	raw = append(raw, '\n')

	a.sessionLogMu.Lock()
	defer a.sessionLogMu.Unlock()
	if a.sessionLogFile == nil {
		return
	}
	if _, err := a.sessionLogFile.Write(raw); err != nil {
		fmt.Fprintf(os.Stderr, "[session-log] failed to write log entry: %v\n", err)
	}
}

func (a *App) closeSessionLog() {
	a.sessionLogMu.Lock()
	f := a.sessionLogFile
	a.sessionLogFile = nil
	a.sessionLogMu.Unlock()
	if f == nil {
		return
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "[session-log] failed to close log file: %v\n", err)
	}
}

// RecentLog returns up to limit recent Warn+ entries, oldest first.
func (a *App) RecentLog(limit int) []sessionlog.Entry {
	return a.logRing.Entries(limit)
}
