package osenv

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shirou/gopsutil/v3/process"
)

// X11Probe queries an X11 session through xprintidle and xdotool, resolving
// the foreground window's PID to a process name with gopsutil.
type X11Probe struct{}

// NewX11Probe creates a probe for the current X11 display
func NewX11Probe() *X11Probe {
	return &X11Probe{}
}

// IdleSeconds returns whole seconds since the last keyboard/mouse input
func (p *X11Probe) IdleSeconds(ctx context.Context) (int, error) {
	out, err := run(ctx, "xprintidle")
	if err != nil {
		return 0, err
	}
	ms, err := strconv.ParseInt(out, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing xprintidle output %q: %w", out, err)
	}
	if ms < 0 {
		ms = 0
	}
	return int(ms / 1000), nil
}

// ForegroundApp returns the process name and title of the focused window
func (p *X11Probe) ForegroundApp(ctx context.Context) (string, string, error) {
	pidOut, err := run(ctx, "xdotool", "getactivewindow", "getwindowpid")
	if err != nil {
		return "", "", err
	}
	pid, err := strconv.ParseInt(pidOut, 10, 32)
	if err != nil {
		return "", "", fmt.Errorf("parsing window pid %q: %w", pidOut, err)
	}

	title, err := run(ctx, "xdotool", "getactivewindow", "getwindowname")
	if err != nil {
		return "", "", err
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return "", title, fmt.Errorf("looking up pid %d: %w", pid, err)
	}
	name, err := proc.NameWithContext(ctx)
	if err != nil {
		return "", title, fmt.Errorf("reading name of pid %d: %w", pid, err)
	}
	return NormalizeApp(name), title, nil
}
