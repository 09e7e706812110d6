package config

import (
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoaderOptions configures a Loader.
//
// The teacher's koanf_loader.go supports file/consul/etcd/zookeeper
// backends behind a ConfigType switch; this spec has no distributed
// config store in scope (see DESIGN.md), so only the file backend
// survives here.
type LoaderOptions struct {
	// Path is the YAML config file to load. Empty means "no file";
	// Load then returns Default() defaults only.
	Path string

	// Watch enables fsnotify-based hot-reload of Path.
	Watch bool

	// OnChange is invoked with the freshly reloaded Config each time
	// Path changes on disk, when Watch is true.
	OnChange func(*Config) error
}

// Loader loads a Config from a YAML file, expands environment
// variable references in its values, and optionally watches the file
// for changes.
type Loader struct {
	options LoaderOptions
	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// NewLoader builds a Loader with the given options.
func NewLoader(opts LoaderOptions) *Loader {
	return &Loader{options: opts}
}

// Load reads and parses the config file (if any), expands env-var
// references, applies defaults, and validates the result. If Path is
// empty it returns Default().
func (l *Loader) Load() (*Config, error) {
	if l.options.Path == "" {
		return Default(), nil
	}

	cfg, err := l.loadFromDisk()
	if err != nil {
		return nil, err
	}

	if l.options.Watch {
		if err := l.startWatch(); err != nil {
			return nil, fmt.Errorf("start config watch: %w", err)
		}
	}

	return cfg, nil
}

// loadFromDisk performs one load+expand+default+validate pass.
func (l *Loader) loadFromDisk() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(l.options.Path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config file %s: %w", l.options.Path, err)
	}

	expanded := expandEnvVarsInData(k.Raw())
	k = koanf.New(".")
	if m, ok := expanded.(map[string]interface{}); ok {
		if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
			return nil, fmt.Errorf("reload expanded config: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// startWatch begins an fsnotify watch on Path, re-running
// loadFromDisk and invoking OnChange on every write event. Errors
// during a reload are logged and skipped rather than propagated,
// since a transient bad write (editor save-in-progress) shouldn't
// kill a running orchestrator.
func (l *Loader) startWatch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(l.options.Path); err != nil {
		w.Close()
		return err
	}
	l.watcher = w
	l.stop = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := l.loadFromDisk()
				if err != nil {
					slog.Warn("config reload failed", "path", l.options.Path, "error", err)
					continue
				}
				if l.options.OnChange != nil {
					if err := l.options.OnChange(cfg); err != nil {
						slog.Warn("config change handler failed", "path", l.options.Path, "error", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)
			case <-l.stop:
				return
			}
		}
	}()

	return nil
}

// Stop ends the watch goroutine and closes the underlying fsnotify
// watcher, if one was started.
func (l *Loader) Stop() {
	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
	if l.watcher != nil {
		l.watcher.Close()
		l.watcher = nil
	}
}
