package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"ledgerctl/internal/security"
)

// reloadDebounce coalesces the burst of events editors produce on save.
const reloadDebounce = 150 * time.Millisecond

// codec reads and writes one configuration file format.
type codec struct {
	name   string
	decode func(data []byte, cfg *Config) error
	encode func(cfg *Config) ([]byte, error)
}

var (
	tomlCodec = codec{
		name: "TOML",
		decode: func(data []byte, cfg *Config) error {
			_, err := toml.Decode(string(data), cfg)
			return err
		},
		encode: func(cfg *Config) ([]byte, error) {
			var buf bytes.Buffer
			err := toml.NewEncoder(&buf).Encode(cfg)
			return buf.Bytes(), err
		},
	}
	jsonCodec = codec{
		name: "JSON",
		decode: func(data []byte, cfg *Config) error {
			return json.Unmarshal(data, cfg)
		},
		encode: func(cfg *Config) ([]byte, error) {
			return json.MarshalIndent(cfg, "", "  ")
		},
	}
	yamlCodec = codec{
		name: "YAML",
		decode: func(data []byte, cfg *Config) error {
			return yaml.Unmarshal(data, cfg)
		},
		encode: func(cfg *Config) ([]byte, error) {
			return yaml.Marshal(cfg)
		},
	}

	codecsByExt = map[string]codec{
		".toml": tomlCodec,
		".json": jsonCodec,
		".yaml": yamlCodec,
		".yml":  yamlCodec,
	}
)

// codecFor returns the codec implied by the extension of path.
func codecFor(path string) (codec, bool) {
	c, ok := codecsByExt[strings.ToLower(filepath.Ext(path))]
	return c, ok
}

// readFile decodes path over the defaults. A missing file yields the defaults.
func readFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if c, ok := codecFor(path); ok {
		if err := c.decode(data, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.name, err)
		}
		return cfg, nil
	}

	// Unknown extension: the first format that parses wins.
	for _, c := range []codec{tomlCodec, jsonCodec, yamlCodec} {
		candidate := DefaultConfig()
		if c.decode(data, candidate) == nil {
			return candidate, nil
		}
	}
	return nil, fmt.Errorf("parse config %s: not TOML, JSON or YAML", path)
}

// Loader reads one configuration file and, once Watch is called, reloads it
// whenever it changes on disk. Callbacks only fire for a valid file whose
// effective settings differ from the current ones.
type Loader struct {
	path string

	mu       sync.RWMutex
	config   *Config
	onChange []func(*Config)

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	errs    chan error
}

// NewLoader creates a loader for path (ConfigPath when empty).
func NewLoader(path string) *Loader {
	if path == "" {
		path = ConfigPath()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		path:   filepath.Clean(path),
		ctx:    ctx,
		cancel: cancel,
		errs:   make(chan error, 1),
	}
}

// Path returns the file the loader reads.
func (l *Loader) Path() string {
	return l.path
}

// Load reads the file, applies LEDGERCTL_* overrides and validates.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.read()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()
	return cfg, nil
}

func (l *Loader) read() (*Config, error) {
	cfg, err := readFile(l.path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// Config returns the last successfully loaded configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// OnChange registers cb for reloads.
func (l *Loader) OnChange(cb func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, cb)
}

// Errors reports reload failures. An invalid file keeps the previous
// configuration in effect; only the latest unread error is kept.
func (l *Loader) Errors() <-chan error {
	return l.errs
}

// Watch starts reloading on change. The parent directory is watched because
// editors usually replace the file instead of writing it in place.
func (l *Loader) Watch() error {
	if l.Config() == nil {
		if _, err := l.Load(); err != nil {
			return err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(l.path), err)
	}
	l.watcher = watcher

	go l.loop()
	return nil
}

func (l *Loader) loop() {
	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-l.ctx.Done():
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != l.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadDebounce, l.reload)

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.report(err)
		}
	}
}

func (l *Loader) reload() {
	if l.ctx.Err() != nil {
		return
	}
	next, err := l.read()
	if err != nil {
		l.report(fmt.Errorf("reload %s: %w", l.path, err))
		return
	}

	l.mu.Lock()
	if reflect.DeepEqual(l.config, next) {
		l.mu.Unlock()
		return
	}
	l.config = next
	callbacks := append([]func(*Config){}, l.onChange...)
	l.mu.Unlock()

	for _, cb := range callbacks {
		cb(next)
	}
}

func (l *Loader) report(err error) {
	for {
		select {
		case l.errs <- err:
			return
		default:
		}
		// Drop the stale error in favour of the newest one.
		select {
		case <-l.errs:
		default:
		}
	}
}

// Close stops watching.
func (l *Loader) Close() error {
	l.cancel()
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// LoadOrCreate loads path, writing a default file first when none exists.
// The boolean reports whether the file was created.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = ConfigPath()
	}

	exists, err := security.Exists(path)
	if err != nil {
		return nil, false, fmt.Errorf("stat config: %w", err)
	}
	if !exists {
		cfg := DefaultConfig()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		if err := cfg.ApplyEnvOverrides(); err != nil {
			return nil, false, err
		}
		return cfg, true, nil
	}

	cfg, err := NewLoader(path).Load()
	if err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// SaveConfig writes cfg owner-only, TOML unless the extension says otherwise.
func SaveConfig(cfg *Config, path string) error {
	c, ok := codecFor(path)
	if !ok {
		c = tomlCodec
	}
	data, err := c.encode(cfg)
	if err != nil {
		return fmt.Errorf("encode %s config: %w", c.name, err)
	}
	if err := security.WriteSecretFile(path, data); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
