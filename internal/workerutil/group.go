package workerutil

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Group supervises the named background workers of one process. Every
// worker shares the group context and its restart policy.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   RecoveryOptions

	wg       sync.WaitGroup
	stopping atomic.Bool

	mu    sync.Mutex
	names []string
}

// NewGroup derives the group context from parent. opts.IsShutdown is
// replaced by the group's own shutdown flag.
func NewGroup(parent context.Context, opts RecoveryOptions) *Group {
	ctx, cancel := context.WithCancel(parent)
	g := &Group{ctx: ctx, cancel: cancel}
	opts.IsShutdown = g.stopping.Load
	g.opts = opts
	return g
}

// Context is cancelled by Shutdown.
func (g *Group) Context() context.Context { return g.ctx }

// Go starts fn under panic recovery. It is a no-op after Shutdown.
func (g *Group) Go(name string, fn func(ctx context.Context)) {
	if g.stopping.Load() {
		slog.Debug("[DEBUG-WORKER] group stopping, worker not started", "worker", name)
		return
	}
	g.mu.Lock()
	g.names = append(g.names, name)
	g.mu.Unlock()
	RunWithPanicRecovery(g.ctx, name, &g.wg, fn, g.opts)
}

// Names lists the workers started so far, in start order.
func (g *Group) Names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.names...)
}

// Shutdown cancels the group context and waits up to timeout for every
// worker to return. timeout <= 0 waits without limit.
func (g *Group) Shutdown(timeout time.Duration) error {
	g.stopping.Store(true)
	g.cancel()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	if timeout <= 0 {
		<-done
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		slog.Warn("[WARN-WORKER] workers still running after shutdown timeout", "timeout", timeout, "workers", g.Names())
		return fmt.Errorf("workers did not stop within %s", timeout)
	}
}
