package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const (
	configFileName  = "config.json"
	defaultDebounce = 300 * time.Millisecond
)

// Manager owns the on-disk JSON config used by the watch command. Edits made
// through Update are written atomically; edits made by hand are picked up by
// Watch, validated, and handed to the change callback.
type Manager struct {
	path     string
	debounce time.Duration
	logger   zerolog.Logger

	mu       sync.RWMutex
	cfg      Config
	onChange func(Config)
	watching bool

	// set while our own write is landing so the watcher skips it
	suppressSelf atomic.Bool
}

type managerOptions struct {
	configPath    string
	initialConfig *Config
	debounce      time.Duration
	logger        *zerolog.Logger
}

type ManagerOption func(*managerOptions)

func WithConfigDir(dir string) ManagerOption {
	return func(o *managerOptions) {
		if dir != "" {
			o.configPath = filepath.Join(dir, configFileName)
		}
	}
}

func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.configPath = path
		}
	}
}

func WithDebounce(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithInitialConfig seeds the file when it does not exist yet. An existing
// file always wins.
func WithInitialConfig(cfg *Config) ManagerOption {
	return func(o *managerOptions) {
		o.initialConfig = cfg
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(o *managerOptions) {
		o.logger = &logger
	}
}

func NewManager(opts ...ManagerOption) (*Manager, error) {
	options := managerOptions{debounce: defaultDebounce}
	for _, opt := range opts {
		opt(&options)
	}

	path := options.configPath
	if path == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	logger := zerolog.Nop()
	if options.logger != nil {
		logger = *options.logger
	}

	cfg, err := loadOrSeed(path, options.initialConfig)
	if err != nil {
		return nil, err
	}

	return &Manager{
		path:     path,
		debounce: options.debounce,
		logger:   logger.With().Str("component", "config").Str("path", path).Logger(),
		cfg:      cfg,
	}, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Path() string {
	return m.path
}

// UpdateFromJSON merges a partial JSON document over the current config.
func (m *Manager) UpdateFromJSON(doc string) error {
	cfg := m.Get()
	if err := json.Unmarshal([]byte(doc), &cfg); err != nil {
		return fmt.Errorf("parse config json: %w", err)
	}
	return m.Update(cfg)
}

func (m *Manager) Update(next Config) error {
	if err := next.Validate(); err != nil {
		return err
	}
	if reflect.DeepEqual(m.Get(), next) {
		return nil
	}

	m.suppressSelf.Store(true)
	defer time.AfterFunc(m.debounce, func() { m.suppressSelf.Store(false) })

	if err := writeConfigFile(m.path, next); err != nil {
		m.suppressSelf.Store(false)
		return err
	}
	m.apply(next)
	return nil
}

// Watch reloads the config whenever the file changes on disk. onChange runs
// after every accepted reload; a file that fails to parse or validate is
// logged and the previous config is kept. The watcher stops with ctx.
func (m *Manager) Watch(ctx context.Context, onChange func(Config)) error {
	m.mu.Lock()
	m.onChange = onChange
	if m.watching {
		m.mu.Unlock()
		return nil
	}
	m.watching = true
	m.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.setWatching(false)
		return fmt.Errorf("config watcher: %w", err)
	}
	// the directory is watched so atomic renames are seen
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		m.setWatching(false)
		return fmt.Errorf("watch config dir: %w", err)
	}

	go m.watchLoop(ctx, watcher)
	return nil
}

func (m *Manager) setWatching(v bool) {
	m.mu.Lock()
	m.watching = v
	m.mu.Unlock()
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer m.setWatching(false)
	defer watcher.Close()

	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !m.isConfigEvent(evt) || m.suppressSelf.Load() {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(m.debounce, m.reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn().Err(err).Msg("config watcher error")
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) isConfigEvent(evt fsnotify.Event) bool {
	if filepath.Clean(evt.Name) != filepath.Clean(m.path) {
		return false
	}
	return evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (m *Manager) reload() {
	var next Config
	if err := loadConfigFromFile(m.path, &next); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Warn().Msg("config file removed, keeping previous config")
			return
		}
		m.logger.Error().Err(err).Msg("config reload failed, keeping previous config")
		return
	}
	if err := next.Validate(); err != nil {
		m.logger.Warn().Err(err).Msg("config rejected, keeping previous config")
		return
	}

	changed := changedKeys(m.Get(), next)
	if len(changed) == 0 {
		return
	}
	m.logger.Info().Strs("keys", changed).Msg("config reloaded")
	m.apply(next)
}

func (m *Manager) apply(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg
	cb := m.onChange
	m.mu.Unlock()

	if cb != nil {
		cb(cfg)
	}
}

// changedKeys lists the JSON keys whose values differ between a and b.
func changedKeys(a, b Config) []string {
	am, bm := configFields(a), configFields(b)
	var keys []string
	for k, av := range am {
		if !reflect.DeepEqual(av, bm[k]) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func configFields(cfg Config) map[string]any {
	out := make(map[string]any)
	data, err := json.Marshal(cfg)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(data, &out)
	return out
}

func loadOrSeed(path string, initial *Config) (Config, error) {
	var cfg Config
	err := loadConfigFromFile(path, &cfg)
	switch {
	case err == nil:
		if err := cfg.Validate(); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
		return cfg, nil
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if initial != nil {
		cfg = *initial
	} else {
		cfg = *DefaultConfigWithRoot(filepath.Dir(path))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if err := writeConfigFile(path, cfg); err != nil {
		return Config{}, fmt.Errorf("write initial config: %w", err)
	}
	return cfg, nil
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		if dir, err = os.Getwd(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "FinSight", configFileName), nil
}

func writeConfigFile(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "cfg-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	cleanup := func(err error) error {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		return cleanup(fmt.Errorf("write config: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("flush config: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
