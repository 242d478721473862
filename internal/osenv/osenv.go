// Package osenv is the boundary to the desktop: input idleness, the
// foreground window, display gamma, ambient sound and notification
// filtering. Every call is best-effort; callers log failures and carry on.
package osenv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/vthunder/ambientflow/internal/types"
)

// ErrUnavailable means the backing tool or device is missing on this host
var ErrUnavailable = errors.New("os integration unavailable")

// commandTimeout bounds any single external command; callers may pass a
// tighter deadline through ctx
const commandTimeout = 2 * time.Second

// Probe reads OS-level activity signals. Both queries give up when ctx is done.
type Probe interface {
	IdleSeconds(ctx context.Context) (int, error)
	// ForegroundApp returns the lower-cased process name and window title
	ForegroundApp(ctx context.Context) (app string, title string, err error)
}

// Display controls screen color temperature
type Display interface {
	ApplyColorTemperature(kelvin int) error
	ResetDisplay() error
}

// Player plays looping ambient tracks
type Player interface {
	Play(sound types.AmbientSound, volume float64) error
	SetVolume(volume float64) error
	Stop() error
}

// Notifier toggles desktop notification filtering (do-not-disturb)
type Notifier interface {
	EnableFilter() error
	DisableFilter() error
}

// NormalizeApp lower-cases a process name and strips a Windows .exe suffix
func NormalizeApp(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".exe")
}

// run executes an external command under commandTimeout and returns trimmed stdout
func run(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", name, ErrUnavailable)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
