package main

import (
	"context"
	"iter"
	"os"
	"sync"
	"sync/atomic"

	"gamergamma/internal/config"
	"gamergamma/internal/controlapi"
	"gamergamma/internal/dispatch"
	"gamergamma/internal/docwatch"
	"gamergamma/internal/eventhub"
	"gamergamma/internal/history"
	"gamergamma/internal/hotkeys"
	"gamergamma/internal/inventory"
	"gamergamma/internal/notify"
	"gamergamma/internal/preset"
	"gamergamma/internal/procutil"
	"gamergamma/internal/sessionlog"
	"gamergamma/internal/workerutil"
)

const appVersion = "0.2.0"

// monitorSource enumerates connected monitors.
type monitorSource interface {
	Monitors(ctx context.Context) iter.Seq[inventory.Monitor]
}

// historyStore is the journal surface the app reads and closes.
type historyStore interface {
	history.Recorder
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
	Close() error
}

// App wires the preset store, dispatch engine and hotkey router to the
// control API, the TUI and the background workers.
type App struct {
	// Configuration state.
	// Lock ordering (outer -> inner): docMu -> cfgMu.
	cfgMu      sync.RWMutex
	cfg        config.Config
	configPath string

	startupWarnMu   sync.Mutex
	startupWarnings []string

	// tools is written once during startup and read-only afterwards.
	tools map[string]procutil.ToolStatus

	// Core services.
	runner   *procutil.Runner
	monitors monitorSource
	store    *preset.Store
	engine   *dispatch.Engine
	router   *hotkeys.Router

	// docMu serializes read-modify-write of the preset document so a
	// watcher reload never interleaves with an API or TUI save.
	docMu sync.Mutex

	// hub exists from NewApp on so log forwarding never races its creation.
	// It is served only when the control API runs.
	hub *eventhub.Hub

	// Optional services; nil when disabled by config or failed to start.
	journal  historyStore
	recorder *history.Writer
	api      *controlapi.Server
	watcher  *docwatch.Watcher
	notifier *notify.Notifier

	workers *workerutil.Group

	// Session log state (Warn and above).
	logRing        *sessionlog.Ring
	logFeed        chan sessionlog.Entry
	sessionLogMu   sync.Mutex
	sessionLogFile *os.File
	sessionLogPath string

	hotkeysSuspended atomic.Bool
	shuttingDown     atomic.Bool
}

// NewApp returns an App with its session log ring ready. startup wires the
// rest.
func NewApp(configPath string) *App {
	return &App{
		configPath: configPath,
		cfg:        config.DefaultConfig(),
		logRing:    sessionlog.NewRing(sessionlog.DefaultRingSize),
		logFeed:    make(chan sessionlog.Entry, logFeedSize),
		hub:        eventhub.NewHub(),
	}
}
