package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"gamergamma/internal/config"
	"gamergamma/internal/controlapi"
	"gamergamma/internal/dispatch"
	"gamergamma/internal/docwatch"
	"gamergamma/internal/history"
	"gamergamma/internal/hotkeys"
	"gamergamma/internal/inventory"
	"gamergamma/internal/notify"
	"gamergamma/internal/preset"
	"gamergamma/internal/procutil"
	"gamergamma/internal/vcp"
	"gamergamma/internal/workerutil"
)

const (
	shutdownWaitTimeout = 10 * time.Second
	toolProbeTimeout    = 10 * time.Second
	historyOpenTimeout  = 5 * time.Second
	// historyRetention bounds the journal; older rows are pruned at startup.
	historyRetention = 90 * 24 * time.Hour
)

var (
	newHotkeyBackendFn = hotkeys.NewBackend
	lookupToolsFn      = procutil.LookupTools
	openJournalFn      = func(ctx context.Context, path string) (historyStore, error) {
		j, err := history.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		if n, err := j.Prune(ctx, time.Now().Add(-historyRetention)); err != nil {
			slog.Warn("[WARN-HISTORY] failed to prune history", "error", err)
		} else if n > 0 {
			slog.Debug("[DEBUG-HISTORY] pruned history", "rows", n)
		}
		return j, nil
	}
)

// startupOptions selects which services startup brings up.
type startupOptions struct {
	// documentPath overrides the config's document path when non-empty.
	documentPath string
	// daemon starts the hotkey router, the control API and the watcher.
	daemon bool
	// logOutput receives the text log. Nil means stderr.
	logOutput io.Writer
}

func (a *App) addStartupWarning(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	a.startupWarnMu.Lock()
	a.startupWarnings = append(a.startupWarnings, trimmed)
	a.startupWarnMu.Unlock()
}

func (a *App) consumeStartupWarnings() []string {
	a.startupWarnMu.Lock()
	defer a.startupWarnMu.Unlock()
	out := a.startupWarnings
	a.startupWarnings = nil
	return out
}

// startup loads configuration and the preset document, probes the external
// tools and wires the core services. Nothing here fails on a missing tool
// or an unreadable document; those degrade to warnings.
func (a *App) startup(ctx context.Context, opts startupOptions) error {
	cfg := a.loadConfig(opts.documentPath)
	a.installLogger(cfg.SlogLevel(), opts.logOutput)
	a.initSessionLog()

	// One-shot CLI runs stay silent; only the daemon notifies.
	a.notifier = notify.New(cfg.Notify && opts.daemon, cfg.BeepOnApply && opts.daemon)
	a.workers = workerutil.NewGroup(ctx, a.recoveryOptions())

	codec := vcp.NewCodec(cfg.ProtocolTool, cfg.VendorTool, cfg.VendorSlots)
	a.runner = procutil.NewRunner()
	prober := inventory.NewProber(a.runner, codec)
	a.monitors = prober

	probeCtx, cancel := context.WithTimeout(ctx, toolProbeTimeout)
	a.tools = lookupToolsFn(probeCtx, cfg.ProtocolTool, cfg.VendorTool)
	cancel()
	avail := dispatch.Availability{
		Protocol: a.tools[cfg.ProtocolTool].Installed,
		Vendor:   a.tools[cfg.VendorTool].Installed,
	}

	a.store = preset.NewStore(cfg.DocumentPath, prober)
	if _, err := a.store.Load(); err != nil {
		a.addStartupWarning("Preset document could not be read; using defaults. Error: " + err.Error())
	}

	a.openHistory(ctx, cfg)
	a.engine = dispatch.NewEngine(codec, dispatch.ProcessSubmitter{Starter: a.runner}, a.store, avail, dispatch.Options{
		VibranceDefaultMax: cfg.VibranceDefaultMax,
		OnOutcome:          a.onOutcome,
	})
	for _, message := range a.engine.StatusMessages() {
		slog.Warn("[WARN-TOOLS] " + message)
	}

	if opts.daemon {
		a.startDaemonServices(cfg)
	}

	for _, message := range a.consumeStartupWarnings() {
		slog.Warn("[WARN-STARTUP] " + message)
	}
	slog.Info("[startup] ready",
		"version", appVersion,
		"document", a.store.Path(),
		"protocol", avail.Protocol,
		"vendor", avail.Vendor,
		"daemon", opts.daemon,
	)
	return nil
}

func (a *App) openHistory(ctx context.Context, cfg config.Config) {
	if cfg.HistoryPath == "" {
		return
	}
	openCtx, cancel := context.WithTimeout(ctx, historyOpenTimeout)
	defer cancel()
	journal, err := openJournalFn(openCtx, cfg.HistoryPath)
	if err != nil {
		a.addStartupWarning("Apply history disabled: " + err.Error())
		return
	}
	a.journal = journal
	a.recorder = history.NewWriter(journal, 0, a.onHistorySaved)
	a.workers.Go("history-writer", a.recorder.Run)
}

func (a *App) startDaemonServices(cfg config.Config) {
	a.router = hotkeys.NewRouter(newHotkeyBackendFn(), hotkeys.RouterOptions{
		OnRebuilt: a.onBindingsRebuilt,
	})
	if err := a.rebuildHotkeys(); err != nil {
		a.addStartupWarning("Some hotkeys are not active: " + err.Error())
	}

	if cfg.ControlAddr != "" {
		a.api = controlapi.NewServer(cfg.ControlAddr, controlapi.RegisterRoutes(a, a.hub))
		if err := a.api.Start(a.workers.Context()); err != nil {
			a.api = nil
			a.addStartupWarning("Control API disabled: " + err.Error())
		}
	}

	if cfg.WatchDocument {
		w, err := docwatch.New(a.store.Path(), docwatch.DefaultDebounce, a.reloadDocument)
		if err != nil {
			a.addStartupWarning("Document watcher disabled: " + err.Error())
		} else {
			a.watcher = w
			a.workers.Go("document-watcher", w.Run)
		}
	}

	if status := a.StatusLine(); status != "" {
		a.notifier.Warn(status)
	}
}

// shutdown stops every service in reverse start order. Safe to call when
// startup did not finish.
func (a *App) shutdown() error {
	if a.shuttingDown.Swap(true) {
		return nil
	}
	var errs []error
	if a.api != nil {
		if err := a.api.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.router != nil {
		if err := a.router.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close hotkey router: %w", err))
		}
	}
	if err := a.hub.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.workers != nil {
		if err := a.workers.Shutdown(shutdownWaitTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history: %w", err))
		}
	}
	if a.runner != nil && !waitTimeout(a.runner.Wait, shutdownWaitTimeout) {
		errs = append(errs, errors.New("tool processes still running after shutdown timeout"))
	}
	err := errors.Join(errs...)
	if err != nil {
		slog.Warn("[WARN-SHUTDOWN] shutdown incomplete", "error", err)
	}
	a.closeSessionLog()
	return err
}

// waitTimeout runs wait and reports whether it returned within timeout.
func waitTimeout(wait func(), timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
