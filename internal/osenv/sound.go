package osenv

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/vthunder/ambientflow/internal/logging"
	"github.com/vthunder/ambientflow/internal/types"
)

// MpvPlayer loops <dir>/<sound>.mp3 in a headless mpv child process and
// adjusts its volume live over mpv's JSON IPC socket.
type MpvPlayer struct {
	dir string

	mu      sync.Mutex
	cmd     *exec.Cmd
	done    chan struct{}
	current types.AmbientSound
	socket  string
}

// NewMpvPlayer creates a player reading tracks from dir
func NewMpvPlayer(dir string) *MpvPlayer {
	return &MpvPlayer{dir: dir, current: types.SoundNone}
}

// SoundFile returns the track path for a sound
func (p *MpvPlayer) SoundFile(sound types.AmbientSound) string {
	return filepath.Join(p.dir, string(sound)+".mp3")
}

// Play starts looping sound at volume. Replaying the current sound only
// updates the volume.
func (p *MpvPlayer) Play(sound types.AmbientSound, volume float64) error {
	if sound == types.SoundNone {
		return p.Stop()
	}

	p.mu.Lock()
	running := p.cmd != nil && p.current == sound
	p.mu.Unlock()
	if running {
		return p.SetVolume(volume)
	}

	if err := p.Stop(); err != nil {
		logging.Debug("sound", "stop before play: %v", err)
	}

	file := p.SoundFile(sound)
	if _, err := os.Stat(file); err != nil {
		return fmt.Errorf("sound file %s: %w", file, err)
	}
	if _, err := exec.LookPath("mpv"); err != nil {
		return fmt.Errorf("mpv: %w", ErrUnavailable)
	}

	socket := filepath.Join(os.TempDir(), fmt.Sprintf("ambientflow-mpv-%d.sock", os.Getpid()))
	cmd := exec.Command("mpv",
		"--no-video",
		"--really-quiet",
		"--loop=inf",
		fmt.Sprintf("--volume=%d", volumePercent(volume)),
		"--input-ipc-server="+socket,
		file,
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting mpv: %w", err)
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	p.mu.Lock()
	p.cmd = cmd
	p.done = done
	p.current = sound
	p.socket = socket
	p.mu.Unlock()

	logging.Debug("sound", "Playing %s at %d%%", sound, volumePercent(volume))
	return nil
}

// SetVolume changes the volume of the running track without restarting it
func (p *MpvPlayer) SetVolume(volume float64) error {
	p.mu.Lock()
	socket := p.socket
	running := p.cmd != nil
	p.mu.Unlock()
	if !running {
		return nil
	}

	conn, err := net.DialTimeout("unix", socket, commandTimeout)
	if err != nil {
		return fmt.Errorf("mpv ipc: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(commandTimeout))

	msg, err := json.Marshal(map[string]any{
		"command": []any{"set_property", "volume", volumePercent(volume)},
	})
	if err != nil {
		return err
	}
	_, err = conn.Write(append(msg, '\n'))
	return err
}

// Stop kills the running track, if any
func (p *MpvPlayer) Stop() error {
	p.mu.Lock()
	cmd, done, socket := p.cmd, p.done, p.socket
	p.cmd, p.done, p.socket = nil, nil, ""
	p.current = types.SoundNone
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	err := cmd.Process.Kill()
	select {
	case <-done:
	case <-time.After(commandTimeout):
		logging.Warn("sound", "mpv pid %d did not exit after kill", cmd.Process.Pid)
	}
	os.Remove(socket)
	if err != nil && err != os.ErrProcessDone {
		return fmt.Errorf("stopping mpv: %w", err)
	}
	return nil
}

func volumePercent(v float64) int {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return int(v*100 + 0.5)
}
