package config

import (
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

func newTestWatcher(t *testing.T, fs afero.Fs, onChange func(*Config, error)) *Watcher {
	t.Helper()
	v := New(fs)
	v.SetConfigFile(testPath)
	w, err := newWatcher(v, onChange)
	if err != nil {
		t.Fatalf("newWatcher() error = %v", err)
	}
	return w
}

// rewrite replaces the file and rereads it the way viper does before it
// invokes the change callback.
func rewrite(t *testing.T, fs afero.Fs, w *Watcher, content string) {
	t.Helper()
	writeFile(t, fs, content)
	if err := w.v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}
}

func TestWatcher(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "consumer:\n  workers: 2\n")

	var calls []error
	w := newTestWatcher(t, fs, func(_ *Config, err error) { calls = append(calls, err) })
	if got := w.Current().Consumer.Workers; got != 2 {
		t.Fatalf("Current().Consumer.Workers = %d, want 2", got)
	}

	t.Run("valid change is applied", func(t *testing.T) {
		rewrite(t, fs, w, "consumer:\n  workers: 5\n")
		w.handle(fsnotify.Event{Name: testPath, Op: fsnotify.Write})

		if got := w.Current().Consumer.Workers; got != 5 {
			t.Errorf("Current().Consumer.Workers = %d, want 5", got)
		}
		if len(calls) != 1 || calls[0] != nil {
			t.Errorf("callback errors = %v, want [nil]", calls)
		}
	})

	t.Run("invalid change keeps last valid config", func(t *testing.T) {
		rewrite(t, fs, w, "consumer:\n  workers: -3\n")
		w.handle(fsnotify.Event{Name: testPath, Op: fsnotify.Write})

		if got := w.Current().Consumer.Workers; got != 5 {
			t.Errorf("Current().Consumer.Workers = %d, want 5", got)
		}
		if len(calls) != 2 || calls[1] == nil {
			t.Errorf("callback errors = %v, want a validation error", calls)
		}
	})

	t.Run("chmod is ignored", func(t *testing.T) {
		w.handle(fsnotify.Event{Name: testPath, Op: fsnotify.Chmod})
		if len(calls) != 2 {
			t.Errorf("callback called %d times, want 2", len(calls))
		}
	})
}

func TestNewWatcher_InvalidFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "retry:\n  attempts: 0\n")

	v := New(fs)
	v.SetConfigFile(testPath)
	if _, err := newWatcher(v, nil); err == nil {
		t.Error("newWatcher() should reject an invalid config")
	}
}
