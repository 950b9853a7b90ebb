// Package config loads IntelWeb's configuration, layered defaults → global
// user config → project config → CLI flags, same precedence chain as the
// teacher's own config loader.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// Config holds the options that shape an IntelWeb invocation.
type Config struct {
	Prefix                string `json:"prefix"`
	MaxDataItems          uint32 `json:"max_data_items"`
	MinPrevalenceToBeGood uint32 `json:"min_prevalence_to_be_good"`
}

// Sources tracks which config files were loaded, for diagnostics.
type Sources struct {
	Global  string
	Project string
}

// FileName is the default project config file name.
const FileName = ".intelweb.json"

const (
	defaultPrefix                = "intelweb"
	defaultMaxDataItems          = 10000
	defaultMinPrevalenceToBeGood = 2
)

// Default returns the zero-config defaults.
func Default() Config {
	return Config{
		Prefix:                defaultPrefix,
		MaxDataItems:          defaultMaxDataItems,
		MinPrevalenceToBeGood: defaultMinPrevalenceToBeGood,
	}
}

// LoadInput bundles the inputs to Load.
type LoadInput struct {
	WorkDir     string
	ConfigPath  string
	CLIOverride Config
	// HasXxxOverride flags record whether the corresponding CLI flag was
	// explicitly set, since a zero value is a valid user choice too.
	HasPrefixOverride        bool
	HasMaxDataItemsOverride  bool
	HasMinPrevalenceOverride bool
	Env                      []string
}

// Load resolves Config with precedence (highest wins): defaults → global
// (`$XDG_CONFIG_HOME/intelweb/config.json` or `~/.config/intelweb/
// config.json`) → project (`.intelweb.json` in WorkDir, or an explicit
// ConfigPath) → CLI flags.
func Load(in LoadInput) (Config, Sources, error) {
	cfg := Default()

	var sources Sources

	globalCfg, globalPath, err := loadGlobalConfig(in.Env)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Global = globalPath
	cfg = merge(cfg, globalCfg)

	projectCfg, projectPath, err := loadProjectConfig(in.WorkDir, in.ConfigPath)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Project = projectPath
	cfg = merge(cfg, projectCfg)

	if in.HasPrefixOverride {
		cfg.Prefix = in.CLIOverride.Prefix
	}

	if in.HasMaxDataItemsOverride {
		cfg.MaxDataItems = in.CLIOverride.MaxDataItems
	}

	if in.HasMinPrevalenceOverride {
		cfg.MinPrevalenceToBeGood = in.CLIOverride.MinPrevalenceToBeGood
	}

	if err := validate(cfg); err != nil {
		return Config{}, Sources{}, err
	}

	return cfg, sources, nil
}

func getGlobalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok && after != "" {
			return filepath.Join(after, "intelweb", "config.json")
		}
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "intelweb", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "intelweb", "config.json")
}

func loadGlobalConfig(env []string) (Config, string, error) {
	path := getGlobalConfigPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, loaded, err := loadConfigFile(path, false)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, path, nil
}

func loadProjectConfig(workDir, configPath string) (Config, string, error) {
	var (
		file      string
		mustExist bool
	)

	if configPath != "" {
		file = configPath
		if !filepath.IsAbs(file) {
			file = filepath.Join(workDir, file)
		}

		mustExist = true

		if _, err := os.Stat(file); err != nil {
			return Config{}, "", fmt.Errorf("%w: %s", errConfigFileNotFound, configPath)
		}
	} else {
		file = filepath.Join(workDir, FileName)
	}

	cfg, loaded, err := loadConfigFile(file, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, file, nil
}

func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		if mustExist {
			return Config{}, false, fmt.Errorf("%w: %s", errConfigFileRead, path)
		}

		return Config{}, false, nil
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.Prefix != "" {
		base.Prefix = overlay.Prefix
	}

	if overlay.MaxDataItems != 0 {
		base.MaxDataItems = overlay.MaxDataItems
	}

	if overlay.MinPrevalenceToBeGood != 0 {
		base.MinPrevalenceToBeGood = overlay.MinPrevalenceToBeGood
	}

	return base
}

func validate(cfg Config) error {
	if cfg.Prefix == "" {
		return errPrefixEmpty
	}

	if cfg.MaxDataItems == 0 {
		return errMaxDataItemsZero
	}

	return nil
}

// Format returns cfg as indented JSON, for the print-config command.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}

	return string(data), nil
}
