package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Manager owns the current Config snapshot and the runtime kill switch.
// Snapshots are swapped atomically and never mutated in place.
type Manager struct {
	configPath     string
	current        atomic.Pointer[Config]
	runtimeEnabled atomic.Bool
	mu             sync.Mutex
}

func NewManager(baseDir string) *Manager {
	return NewManagerForFile(filepath.Join(baseDir, DefaultConfigFilename))
}

// NewManagerForFile creates a manager bound to an explicit config file path.
func NewManagerForFile(path string) *Manager {
	m := &Manager{configPath: path}
	m.runtimeEnabled.Store(true)
	return m
}

func (m *Manager) Load() (*Config, error) {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data, isJSON(m.configPath))
	if err != nil {
		return nil, err
	}

	m.current.Store(cfg)
	return cfg, nil
}

// Parse decodes and normalizes a config document on top of the defaults. Keys the
// document leaves out keep their default value; a list or map that is present
// replaces the default one entirely.
func Parse(data []byte, asJSON bool) (*Config, error) {
	defaults := Default()

	cfg := *defaults
	cfg.Providers = nil
	cfg.Routing.Rules = nil
	cfg.Telemetry.DisabledEndpoints = nil

	if asJSON {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	// Decoders leave these nil only when the key is absent.
	if cfg.Providers == nil {
		cfg.Providers = defaults.Providers
	}
	if cfg.Routing.Rules == nil {
		cfg.Routing.Rules = defaults.Routing.Rules
	}
	if cfg.Telemetry.DisabledEndpoints == nil {
		cfg.Telemetry.DisabledEndpoints = defaults.Telemetry.DisabledEndpoints
	}

	Normalize(&cfg)
	return &cfg, nil
}

// Get returns the current snapshot, loading it on first use. When no usable file
// exists the defaults are returned.
func (m *Manager) Get() *Config {
	if cfg := m.current.Load(); cfg != nil {
		return cfg
	}

	cfg, err := m.Load()
	if err != nil {
		cfg = Default()
		m.current.CompareAndSwap(nil, cfg)
		return m.current.Load()
	}
	return cfg
}

// Store replaces the current snapshot without touching the file.
func (m *Manager) Store(cfg *Config) {
	Normalize(cfg)
	m.current.Store(cfg)
}

func (m *Manager) Save(cfg *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	Normalize(cfg)

	var (
		data []byte
		err  error
	)
	if isJSON(m.configPath) {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	m.current.Store(cfg)
	return nil
}

func (m *Manager) GetPath() string {
	return m.configPath
}

func (m *Manager) Exists() bool {
	_, err := os.Stat(m.configPath)
	return err == nil
}

// RuntimeEnabled reports the global kill switch. When false every call falls
// through to the official backend.
func (m *Manager) RuntimeEnabled() bool {
	return m.runtimeEnabled.Load()
}

func (m *Manager) SetRuntimeEnabled(enabled bool) {
	m.runtimeEnabled.Store(enabled)
}

// Snapshot returns the context a call reads once at its start.
func (m *Manager) Snapshot() RuntimeContext {
	return RuntimeContext{
		Config:         m.Get(),
		RuntimeEnabled: m.RuntimeEnabled(),
	}
}

// Watch reloads the config file whenever it changes until ctx is done. A file that
// fails to parse keeps the last good snapshot in place.
func (m *Manager) Watch(ctx context.Context, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}

	// Editors replace files on save, so watch the directory rather than the file.
	if err := watcher.Add(filepath.Dir(m.configPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	go func() {
		defer watcher.Close()

		var (
			debounce   *time.Timer
			debounceMu sync.Mutex
		)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(m.configPath) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}

				debounceMu.Lock()
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(100*time.Millisecond, func() {
					if _, err := m.Load(); err != nil {
						logger.Warn("Config reload failed, keeping last good config", "path", m.configPath, "error", err)
						return
					}
					logger.Info("Config reloaded", "path", m.configPath)
				})
				debounceMu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("Config watcher error", "error", err)
			}
		}
	}()

	return nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
