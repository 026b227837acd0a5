// Package process tracks the running gateway through a PID file so the stop and
// status commands can find it.
package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

const PIDFilename = "byok-router.pid"

type Manager struct {
	pidFile string
	mu      sync.RWMutex
}

func NewManager(baseDir string) *Manager {
	return &Manager{pidFile: filepath.Join(baseDir, PIDFilename)}
}

func (m *Manager) PIDFile() string {
	return m.pidFile
}

// WritePID records the current process. It fails when another live process
// already owns the file.
func (m *Manager) WritePID() error {
	if pid := m.ReadPID(); pid != 0 && pid != os.Getpid() && alive(pid) {
		return fmt.Errorf("gateway already running with pid %d", pid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.pidFile), 0o750); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}

	if err := os.WriteFile(m.pidFile, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// ReadPID returns 0 when the file is missing or malformed.
func (m *Manager) ReadPID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := os.ReadFile(m.pidFile)
	if err != nil {
		return 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}

	return pid
}

// IsRunning reports whether the recorded process is alive. A stale file is removed.
func (m *Manager) IsRunning() bool {
	pid := m.ReadPID()
	if pid == 0 {
		return false
	}

	if !alive(pid) {
		m.CleanupPID()
		return false
	}

	return true
}

// Stop sends SIGTERM and waits up to timeout for the process to exit.
func (m *Manager) Stop(timeout time.Duration) error {
	pid := m.ReadPID()
	if pid == 0 {
		return nil
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			m.CleanupPID()
			return nil
		}
		return fmt.Errorf("send SIGTERM to process %d: %w", pid, err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !alive(pid) {
			m.CleanupPID()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("process %d did not exit within %s", pid, timeout)
}

func (m *Manager) CleanupPID() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.pidFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to remove PID file: %v\n", err)
	}
}

func alive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
