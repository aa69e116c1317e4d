package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/streamledger/internal/errors"
	"github.com/Iron-Ham/streamledger/internal/record"
	"github.com/Iron-Ham/streamledger/internal/serializer"
	"github.com/Iron-Ham/streamledger/internal/stream"
	"github.com/Iron-Ham/streamledger/internal/typerep"
)

const testPath = "/etc/streamledger/config.yaml"

func writeFile(t *testing.T, fs afero.Fs, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, testPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Verify default stream config
	if cfg.Stream.Name != "default" {
		t.Errorf("Stream.Name = %q, want %q", cfg.Stream.Name, "default")
	}
	if cfg.Stream.Partitions != 1 {
		t.Errorf("Stream.Partitions = %d, want 1", cfg.Stream.Partitions)
	}

	// Verify default handling config
	if !cfg.Handling.InheritRecordTags {
		t.Error("Handling.InheritRecordTags should be true by default")
	}

	// Verify default mutex config
	if cfg.Mutex.PollingInterval != 100*time.Millisecond {
		t.Errorf("Mutex.PollingInterval = %v, want 100ms", cfg.Mutex.PollingInterval)
	}

	// Verify default consumer config
	if cfg.Consumer.Workers != 4 {
		t.Errorf("Consumer.Workers = %d, want 4", cfg.Consumer.Workers)
	}
	if cfg.Consumer.MaxRetries != 2 {
		t.Errorf("Consumer.MaxRetries = %d, want 2", cfg.Consumer.MaxRetries)
	}

	// Verify default logging config
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestAccessors(t *testing.T) {
	cfg := Default()

	rep, err := cfg.Stream.Representation()
	if err != nil || rep != serializer.DefaultRepresentation {
		t.Errorf("Representation() = %v, %v; want %v", rep, err, serializer.DefaultRepresentation)
	}

	strategy, err := cfg.Stream.ExistingStrategy()
	if err != nil || strategy != stream.Skip {
		t.Errorf("ExistingStrategy() = %v, %v; want Skip", strategy, err)
	}

	order, err := cfg.Handling.OrderBy()
	if err != nil || order != record.OrderAscending {
		t.Errorf("OrderBy() = %v, %v; want Ascending", order, err)
	}

	match, err := cfg.Handling.TagMatchStrategy()
	if err != nil || match != record.RecordContainsAllQueryTags {
		t.Errorf("TagMatchStrategy() = %v, %v", match, err)
	}

	version, err := cfg.Handling.VersionMatchStrategy()
	if err != nil || version != typerep.MatchAny {
		t.Errorf("VersionMatchStrategy() = %v, %v", version, err)
	}

	policy := cfg.Retry.Policy(nil)
	if policy.Attempts != 3 || policy.Backoff != 50*time.Millisecond {
		t.Errorf("Policy() = %+v", policy)
	}
}

func TestStreamConfig_Resolver(t *testing.T) {
	tests := []struct {
		name       string
		partitions int
		want       []string
	}{
		{name: "single partition", partitions: 1, want: []string{"p"}},
		{name: "zero is single", partitions: 0, want: []string{"p"}},
		{name: "hashed", partitions: 3, want: []string{"p-0", "p-1", "p-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := StreamConfig{Partitions: tt.partitions, PartitionPrefix: "p"}
			r, err := c.Resolver()
			if err != nil {
				t.Fatalf("Resolver() error = %v", err)
			}
			var got []string
			for _, l := range r.All() {
				got = append(got, l.Name)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("All() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Run("overrides defaults", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, `
stream:
  name: orders
  partitions: 8
consumer:
  workers: 16
  poll_interval: 1s
handling:
  order: " descending "
`)
		cfg, err := LoadFile(fs, testPath)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		if cfg.Stream.Name != "orders" || cfg.Stream.Partitions != 8 {
			t.Errorf("Stream = %+v", cfg.Stream)
		}
		if cfg.Consumer.Workers != 16 {
			t.Errorf("Consumer.Workers = %d, want 16", cfg.Consumer.Workers)
		}
		if cfg.Consumer.PollInterval != time.Second {
			t.Errorf("Consumer.PollInterval = %v, want 1s", cfg.Consumer.PollInterval)
		}
		if cfg.Handling.Order != "descending" {
			t.Errorf("Handling.Order = %q, want trimmed %q", cfg.Handling.Order, "descending")
		}
		// Untouched keys keep their defaults
		if cfg.Mutex.Concern != "mutex" {
			t.Errorf("Mutex.Concern = %q, want %q", cfg.Mutex.Concern, "mutex")
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "consumer:\n  workers: 2\n")
		t.Setenv("STREAMLEDGER_CONSUMER_WORKERS", "7")
		t.Setenv("STREAMLEDGER_RETRY_BACKOFF", "2s")

		cfg, err := LoadFile(fs, testPath)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		if cfg.Consumer.Workers != 7 {
			t.Errorf("Consumer.Workers = %d, want 7", cfg.Consumer.Workers)
		}
		if cfg.Retry.Backoff != 2*time.Second {
			t.Errorf("Retry.Backoff = %v, want 2s", cfg.Retry.Backoff)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "consumer:\n  workers: 0\nstream:\n  on_existing: explode\n")

		_, err := LoadFile(fs, testPath)
		var verrs ValidationErrors
		if !stderrors.As(err, &verrs) {
			t.Fatalf("LoadFile() error = %v, want ValidationErrors", err)
		}
		if len(verrs) != 2 {
			t.Errorf("got %d validation errors, want 2: %v", len(verrs), verrs)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFile(afero.NewMemMapFs(), testPath); err == nil {
			t.Error("LoadFile() should fail for a missing file")
		}
	})
}

func TestWriteDefaultFile(t *testing.T) {
	fs := afero.NewMemMapFs()

	if err := WriteDefaultFile(fs, testPath); err != nil {
		t.Fatalf("WriteDefaultFile() error = %v", err)
	}

	cfg, err := LoadFile(fs, testPath)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("default file decodes to %+v, want %+v", cfg, Default())
	}

	err = WriteDefaultFile(fs, testPath)
	var exists *errors.AlreadyExistsError
	if !stderrors.As(err, &exists) {
		t.Errorf("second WriteDefaultFile() error = %v, want AlreadyExistsError", err)
	}
}

func TestSetValue(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		want    any
		wantErr bool
	}{
		{name: "int", key: "consumer.workers", value: "6", want: 6},
		{name: "bool", key: "handling.inherit_record_tags", value: "false", want: false},
		{name: "duration", key: "mutex.polling_interval", value: "20ms", want: 20 * time.Millisecond},
		{name: "string", key: "stream.name", value: "orders", want: "orders"},
		{name: "unknown key", key: "stream.colour", value: "red", wantErr: true},
		{name: "not an int", key: "consumer.workers", value: "many", wantErr: true},
		{name: "fails validation", key: "consumer.workers", value: "0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			got, err := SetValue(fs, testPath, tt.key, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("SetValue() = %v, want error", got)
				}
				if exists, _ := afero.Exists(fs, testPath); exists {
					t.Error("rejected value should not create the config file")
				}
				return
			}
			if err != nil {
				t.Fatalf("SetValue() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("SetValue() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
			if _, err := LoadFile(fs, testPath); err != nil {
				t.Errorf("written file does not load: %v", err)
			}
		})
	}
}

func TestSetValue_KeepsExistingValues(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "stream:\n  name: orders\n")

	if _, err := SetValue(fs, testPath, "consumer.workers", "9"); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}

	cfg, err := LoadFile(fs, testPath)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Stream.Name != "orders" || cfg.Consumer.Workers != 9 {
		t.Errorf("got stream.name=%q consumer.workers=%d", cfg.Stream.Name, cfg.Consumer.Workers)
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if !slices.IsSorted(keys) {
		t.Error("Keys() should be sorted")
	}
	for _, want := range []string{"stream.name", "consumer.max_retries", "mutex.polling_interval", "logging.file"} {
		if !slices.Contains(keys, want) {
			t.Errorf("Keys() missing %q", want)
		}
	}
}

func TestConfigDir(t *testing.T) {
	// Test with XDG_CONFIG_HOME set
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		result := ConfigDir()
		expected := "/custom/config/streamledger"
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})

	// Test without XDG_CONFIG_HOME
	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		result := ConfigDir()

		// Should be based on home directory
		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, ".config", "streamledger")
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	result := ConfigFile()
	expected := "/custom/config/streamledger/config.yaml"
	if result != expected {
		t.Errorf("ConfigFile() = %q, want %q", result, expected)
	}
}

func TestGet(t *testing.T) {
	// Set defaults in viper first (normally done by cmd init)
	SetDefaults()

	// Get() should return defaults when no config file exists
	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}

	// Should have default values
	if cfg.Consumer.Concern != "default" {
		t.Errorf("Get().Consumer.Concern = %q, want %q", cfg.Consumer.Concern, "default")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Consumer.PollInterval = 3 * time.Second

	v := New(afero.NewMemMapFs())
	if err := v.MergeConfigMap(cfg.Settings()); err != nil {
		t.Fatalf("MergeConfigMap() error = %v", err)
	}
	got, err := decode(v)
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("round trip = %+v, want %+v", got, cfg)
	}
	if keys := len(Keys()); keys != len(v.AllKeys()) {
		t.Errorf("Settings() covers %d keys, want %d", len(v.AllKeys()), keys)
	}
}
