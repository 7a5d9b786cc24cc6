package main

import (
	"log/slog"

	"gamergamma/internal/workerutil"
)

// recoveryOptions configures the background workers. Panics are already
// logged by workerutil; a worker that gives up is also shown to the user.
func (a *App) recoveryOptions() workerutil.RecoveryOptions {
	return workerutil.RecoveryOptions{
		OnFatal: func(worker string, maxRetries int) {
			slog.Error("[ERROR-WORKER] worker stopped after repeated panics", "worker", worker, "retries", maxRetries)
			a.notifier.Warn("Background task " + worker + " stopped after repeated failures.")
		},
	}
}
