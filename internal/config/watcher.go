package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/streamledger/internal/errors"
)

// Watcher keeps the last valid configuration read from a config file and
// reloads it whenever the file changes. Invalid edits are reported to the
// callback and otherwise ignored.
type Watcher struct {
	v        *viper.Viper
	onChange func(*Config, error)

	mu      sync.RWMutex
	current *Config
}

// Watch reads path and starts watching it. onChange may be nil.
func Watch(path string, onChange func(*Config, error)) (*Watcher, error) {
	v := New(afero.NewOsFs())
	v.SetConfigFile(path)
	w, err := newWatcher(v, onChange)
	if err != nil {
		return nil, err
	}
	v.OnConfigChange(w.handle)
	v.WatchConfig()
	return w, nil
}

func newWatcher(v *viper.Viper, onChange func(*Config, error)) (*Watcher, error) {
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &Watcher{v: v, onChange: onChange, current: cfg}, nil
}

// Current returns the last valid configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) handle(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	cfg, err := decode(w.v)
	if err == nil {
		w.mu.Lock()
		w.current = cfg
		w.mu.Unlock()
	}
	if w.onChange != nil {
		w.onChange(cfg, err)
	}
}
