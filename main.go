package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"gamergamma/internal/singleinstance"
	"gamergamma/internal/tui"
)

const cliTimeout = 30 * time.Second

type cliOptions struct {
	configPath      string
	documentPath    string
	tui             bool
	apply           string
	restore         int
	captureBaseline bool
	listMonitors    bool
	history         int
	version         bool
}

// oneShot reports whether the invocation runs a single command and exits
// instead of starting the daemon.
func (o cliOptions) oneShot() bool {
	return o.apply != "" || o.restore > 0 || o.captureBaseline || o.listMonitors || o.history > 0
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("gamergamma", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "config file (default: per-user config directory)")
	fs.StringVar(&opts.documentPath, "document", "", "preset document (overrides document_path)")
	fs.BoolVar(&opts.tui, "tui", false, "open the terminal preset editor")
	fs.StringVar(&opts.apply, "apply", "", "apply preset `id` and exit")
	fs.IntVar(&opts.restore, "restore", 0, "restore the baseline of `display` and exit")
	fs.BoolVar(&opts.captureBaseline, "capture-baseline", false, "capture baselines of every detected monitor and exit")
	fs.BoolVar(&opts.listMonitors, "list-monitors", false, "list detected monitors and exit")
	fs.IntVar(&opts.history, "history", 0, "print the last `n` applies and exit")
	fs.BoolVar(&opts.version, "version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.restore < 0 || opts.history < 0 {
		return opts, errors.New("-restore and -history take positive values")
	}
	if opts.tui && opts.oneShot() {
		return opts, errors.New("-tui cannot be combined with one-shot commands")
	}
	return opts, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if opts.version {
		fmt.Fprintf(stdout, "gamergamma v%s\n", appVersion)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp(opts.configPath)
	if opts.oneShot() {
		return runOneShot(ctx, app, opts, stdout, stderr)
	}
	return runDaemon(ctx, app, opts, stderr)
}

func runOneShot(ctx context.Context, app *App, opts cliOptions, stdout, stderr io.Writer) int {
	if err := app.startup(ctx, startupOptions{documentPath: opts.documentPath}); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer app.shutdown()

	ctx, cancel := context.WithTimeout(ctx, cliTimeout)
	defer cancel()

	var err error
	switch {
	case opts.listMonitors:
		handleListMonitors(ctx, app, stdout)
	case opts.history > 0:
		err = handleHistory(ctx, app, opts.history, stdout)
	case opts.apply != "":
		err = handleApply(ctx, app, opts.apply, stdout)
	case opts.restore > 0:
		err = handleRestore(ctx, app, opts.restore, stdout)
	case opts.captureBaseline:
		err = handleCaptureBaseline(ctx, app, stdout)
	}
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func runDaemon(ctx context.Context, app *App, opts cliOptions, stderr io.Writer) int {
	// Two daemons would fight over the same global chords.
	lock, err := singleinstance.TryLock(singleinstance.DefaultName())
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		fmt.Fprintln(stderr, "gamergamma is already running.")
		return 1
	}
	if err != nil {
		slog.Warn("[WARN-SINGLE] instance lock failed, continuing without it", "error", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("[WARN-SINGLE] instance lock release failed", "error", err)
		}
	}()

	fmt.Fprintf(stderr, "gamergamma v%s\n", appVersion)
	startOpts := startupOptions{documentPath: opts.documentPath, daemon: true}
	if opts.tui {
		// The editor owns the terminal; warnings reach it through the log feed.
		startOpts.logOutput = io.Discard
	}
	if err := app.startup(ctx, startOpts); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	code := 0
	if opts.tui {
		if err := tui.Run(ctx, app, app.logFeed); err != nil {
			slog.Error("[ERROR-TUI] editor exited with error", "error", err)
			code = 1
		}
	} else {
		<-ctx.Done()
	}
	if err := app.shutdown(); err != nil {
		code = 1
	}
	return code
}

func handleListMonitors(ctx context.Context, app *App, out io.Writer) {
	monitors := app.Monitors(ctx)
	if len(monitors) == 0 {
		fmt.Fprintln(out, "No monitors detected.")
		return
	}
	for _, m := range monitors {
		fmt.Fprintln(out, m.Label())
	}
}

func handleHistory(ctx context.Context, app *App, limit int, out io.Writer) error {
	entries, err := app.History(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No applies recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tSOURCE\tPRESET\tDISPLAY\tGAMMA\tVIBRANCE\tSKIPPED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%v\n",
			e.At.Local().Format(time.DateTime), e.Kind, e.Source, e.PresetID,
			e.Display, e.Gamma, e.Vibrance, e.Skipped)
	}
	return tw.Flush()
}

func handleApply(ctx context.Context, app *App, id string, out io.Writer) error {
	req, err := app.ApplyPreset(ctx, id, sourceCLI)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Applied preset %s to display %d (gamma %d, vibrance %d, %s).\n",
		id, req.Display, req.Gamma, req.Vibrance, req.Mode)
	if status := app.StatusLine(); status != "" {
		fmt.Fprintln(out, status)
	}
	return nil
}

func handleRestore(ctx context.Context, app *App, display int, out io.Writer) error {
	if err := app.Restore(ctx, display, sourceCLI); err != nil {
		return err
	}
	fmt.Fprintf(out, "Restored display %d.\n", display)
	return nil
}

func handleCaptureBaseline(ctx context.Context, app *App, out io.Writer) error {
	monitors := app.Monitors(ctx)
	if len(monitors) == 0 {
		return errors.New("no monitors detected")
	}
	var errs []error
	for _, m := range monitors {
		_, stored, err := app.CaptureBaseline(ctx, m.Index)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("display %d: %w", m.Index, err))
		case !stored:
			fmt.Fprintf(out, "%s: no readable controls, skipped.\n", m.Label())
		default:
			fmt.Fprintf(out, "%s: baseline captured.\n", m.Label())
		}
	}
	return errors.Join(errs...)
}
