package dispatch

import (
	"context"
	"strconv"

	"gamergamma/internal/vcp"
)

// Starter launches programs without waiting for them and can wait for the
// children started under one tag.
type Starter interface {
	StartTagged(tag, name string, args ...string) error
	WaitTag(ctx context.Context, tag string) error
}

// ProcessSubmitter adapts a Starter (procutil.Runner in production) to
// Submitter. Children are tagged with their display.
type ProcessSubmitter struct {
	Starter Starter
}

// Submit starts cmd detached.
func (p ProcessSubmitter) Submit(cmd vcp.Command) error {
	return p.Starter.StartTagged(displayTag(cmd.Display), cmd.Program, cmd.Args...)
}

// Drain waits for the children started for display to exit.
func (p ProcessSubmitter) Drain(ctx context.Context, display int) error {
	return p.Starter.WaitTag(ctx, displayTag(display))
}

func displayTag(display int) string {
	return "display-" + strconv.Itoa(display)
}
