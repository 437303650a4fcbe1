// Package config loads the rename engine's ambient configuration: the
// vault root and the WAL directory it writes outside that vault, layered
// defaults → global XDG config → project config → CLI flags, using a
// hujson-tolerant (JSON-with-comments) file format.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// FileName is the project-local config file name, looked up in the
// effective working directory.
const FileName = ".vaultrename.jsonc"

// Config holds the resolved settings one Engine/Manager pair needs.
type Config struct {
	// VaultRoot is the absolute path to the vault's root directory.
	VaultRoot string `json:"vault_root"`

	// WALDir is the absolute path to the directory WAL entries are
	// persisted under, outside the vault.
	WALDir string `json:"wal_dir,omitempty"`

	// RecoveryMinAgeSeconds is the grace window boot recovery waits
	// before treating a WAL entry as abandoned.
	RecoveryMinAgeSeconds int `json:"recovery_min_age_seconds,omitempty"`

	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded, for diagnostics.
type Sources struct {
	Global  string
	Project string
}

// ErrVaultRootRequired is returned when no layer ever set a vault root.
var ErrVaultRootRequired = errors.New("config: vault_root is required")

// DefaultConfig returns the zero-value starting point every other layer
// is merged onto. WALDir is left empty here and resolved against the
// working directory/XDG in Load, only after all layers are merged.
func DefaultConfig() Config {
	return Config{RecoveryMinAgeSeconds: 60}
}

// LoadInput is Load's input: CLI overrides plus the ambient environment.
type LoadInput struct {
	WorkDirOverride string
	ConfigPath      string
	VaultRootFlag   string
	WALDirFlag      string
	Env             map[string]string
}

// Load resolves a Config with precedence (highest wins): CLI flags >
// project config (the explicit --config file if given, otherwise
// .vaultrename.jsonc in the working directory; never both) > global config
// ($XDG_CONFIG_HOME/vaultrename/config.jsonc or
// ~/.config/vaultrename/config.jsonc) > defaults.
func Load(in LoadInput) (Config, error) {
	workDir := in.WorkDirOverride
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("config: getwd: %w", err)
		}

		workDir = wd
	}

	cfg := DefaultConfig()

	globalCfg, globalPath, err := loadGlobal(in.Env)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Global = globalPath
	cfg = merge(cfg, globalCfg)

	projectCfg, projectPath, err := loadProject(workDir, in.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = merge(cfg, projectCfg)

	if in.VaultRootFlag != "" {
		cfg.VaultRoot = in.VaultRootFlag
	}

	if in.WALDirFlag != "" {
		cfg.WALDir = in.WALDirFlag
	}

	if cfg.VaultRoot == "" {
		return Config{}, ErrVaultRootRequired
	}

	if !filepath.IsAbs(cfg.VaultRoot) {
		cfg.VaultRoot = filepath.Join(workDir, cfg.VaultRoot)
	}

	if cfg.WALDir == "" {
		cfg.WALDir = defaultWALDir(in.Env)
	}

	if !filepath.IsAbs(cfg.WALDir) {
		cfg.WALDir = filepath.Join(workDir, cfg.WALDir)
	}

	return cfg, nil
}

// defaultWALDir follows XDG_STATE_HOME (falling back to ~/.local/state)
// so the WAL journal lives outside the vault a cloud-sync agent watches.
func defaultWALDir(env map[string]string) string {
	if xdg := env["XDG_STATE_HOME"]; xdg != "" {
		return filepath.Join(xdg, "vaultrename", "wal")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".local", "state", "vaultrename", "wal")
	}

	return filepath.Join(os.TempDir(), "vaultrename", "wal")
}

func loadGlobal(env map[string]string) (Config, string, error) {
	path := globalConfigPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, loaded, err := loadFile(path)
	if err != nil || !loaded {
		return Config{}, "", err
	}

	return cfg, path, nil
}

func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "vaultrename", "config.jsonc")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "vaultrename", "config.jsonc")
	}

	return ""
}

func loadProject(workDir, explicitPath string) (Config, string, error) {
	path := explicitPath
	if path == "" {
		path = filepath.Join(workDir, FileName)
	}

	cfg, loaded, err := loadFile(path)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, path, nil
}

// loadFile reads path as JSONC via hujson (comments/trailing commas
// tolerated) and unmarshals it into a Config. A missing file is not an
// error: loaded is false and the zero Config is returned.
func loadFile(path string) (cfg Config, loaded bool, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("config: read %q: %w", path, err)
	}

	standard, err := hujson.Standardize(raw)
	if err != nil {
		return Config{}, false, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if err := json.Unmarshal(standard, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("config: unmarshal %q: %w", path, err)
	}

	return cfg, true, nil
}

// merge overlays non-zero fields of override onto base.
func merge(base, override Config) Config {
	if override.VaultRoot != "" {
		base.VaultRoot = override.VaultRoot
	}

	if override.WALDir != "" {
		base.WALDir = override.WALDir
	}

	if override.RecoveryMinAgeSeconds != 0 {
		base.RecoveryMinAgeSeconds = override.RecoveryMinAgeSeconds
	}

	return base
}
