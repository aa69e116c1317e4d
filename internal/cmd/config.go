package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/streamledger/internal/config"
)

// configFs is the filesystem config subcommands read and write.
var configFs = afero.NewOsFs()

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify streamledger configuration",
	Long: `View or modify streamledger configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Keys use dot notation, e.g.:
  streamledger config set consumer.workers 8
  streamledger config set mutex.polling_interval 50ms
  streamledger config set handling.order descending

Valid keys:
  ` + strings.Join(config.Keys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/streamledger/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	for _, c := range []*cobra.Command{configCmd, configShowCmd} {
		c.Flags().StringP("output", "o", "yaml", "output format: yaml, json, toml")
	}
}

// renderSettings encodes settings in the named format.
func renderSettings(settings map[string]any, format string) (string, error) {
	var (
		out []byte
		err error
	)
	switch strings.ToLower(format) {
	case "yaml", "yml":
		out, err = yaml.Marshal(settings)
	case "json":
		out, err = json.MarshalIndent(settings, "", "  ")
		out = append(out, '\n')
	case "toml":
		out, err = toml.Marshal(settings)
	default:
		return "", fmt.Errorf("unknown output format %q: expected yaml, json or toml", format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode configuration: %w", err)
	}
	return string(out), nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("output")
	rendered, err := renderSettings(cfg.Settings(), format)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	// Show where config is being read from
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}
	fmt.Fprint(out, rendered)
	return nil
}

// targetConfigFile is the file set writes: the active config file, or the
// default location when none was read.
func targetConfigFile() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return config.ConfigFile()
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	path := targetConfigFile()
	typed, err := config.SetValue(configFs, path, key, value)
	if err != nil {
		return fmt.Errorf("cannot set %s: %w\nRun 'streamledger config set --help' to see valid keys", key, err)
	}

	// Keep the running process consistent with the file
	viper.Set(key, typed)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typed)
	fmt.Fprintf(out, "Config saved to %s\n", path)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	if err := config.WriteDefaultFile(configFs, configFile); err != nil {
		return fmt.Errorf("%w\nUse 'streamledger config set' to modify values", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize streamledger's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "Active config: %s\n", used)
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_CONSUMER_WORKERS)\n", config.EnvPrefix, config.EnvPrefix)
	return nil
}
