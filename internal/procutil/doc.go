// Package procutil runs the external monitor-control tools. It probes
// whether a tool is installed, starts fire-and-forget invocations whose
// children are reaped in the background, and captures tool output. On
// Windows every child is started without a console window.
package procutil
