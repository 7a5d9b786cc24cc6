package procutil

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ErrToolUnavailable means the named executable is not on PATH.
var ErrToolUnavailable = errors.New("tool unavailable")

const versionProbeTimeout = 3 * time.Second

// ToolStatus describes one probed executable.
type ToolStatus struct {
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
	Path      string `json:"path,omitempty"`
	// Version is the first line of `<tool> --version`; empty when the tool
	// does not support the flag.
	Version string `json:"version,omitempty"`
}

var (
	lookPathFn = exec.LookPath
	versionFn  = probeVersion
)

// LookupTool resolves name on PATH and asks it for its version.
// A tool that is present but rejects --version is still Installed.
func LookupTool(ctx context.Context, name string) ToolStatus {
	status := ToolStatus{Name: name}
	path, err := lookPathFn(name)
	if err != nil {
		slog.Debug("[DEBUG-TOOLS] tool not found", "tool", name, "error", err)
		return status
	}
	status.Installed = true
	status.Path = path

	version, err := versionFn(ctx, path)
	if err != nil {
		slog.Debug("[DEBUG-TOOLS] version probe failed", "tool", name, "error", err)
		return status
	}
	status.Version = version
	return status
}

// LookupTools probes every name in order.
func LookupTools(ctx context.Context, names ...string) map[string]ToolStatus {
	out := make(map[string]ToolStatus, len(names))
	for _, name := range names {
		out[name] = LookupTool(ctx, name)
	}
	return out
}

func probeVersion(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "--version")
	HideWindow(cmd)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line), nil
}
