package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Settings is the application-level configuration, loaded from a TOML
// file. Binding data lives in the store; settings only shape how the
// application runs.
type Settings struct {
	// DataDir holds the bindings document and its backups.
	DataDir string `toml:"data_dir"`

	// LegacyPath points at a previous-format configuration file to
	// migrate on first run. Optional.
	LegacyPath string `toml:"legacy_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	// BackupRetention is how many automatic backups to keep.
	BackupRetention int `toml:"backup_retention"`

	AutoKey AutoKeySettings `toml:"autokey"`
}

// AutoKeySettings seeds the auto-key policy on first run. Afterwards the
// persisted policy in the bindings document wins.
type AutoKeySettings struct {
	Enabled        bool   `toml:"enabled"`
	Pattern        string `toml:"pattern"`
	CustomTemplate string `toml:"custom_template"`
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		DataDir:         defaultDataDir(),
		LogLevel:        "info",
		BackupRetention: 10,
		AutoKey: AutoKeySettings{
			Pattern: "numbers",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "switchkey")
	}
	return ".switchkey"
}

// LoadSettings reads the settings file at path. A missing file yields the
// defaults; a malformed file is an error.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("reading settings file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	settings.applyDefaults()
	return settings, nil
}

// applyDefaults backfills zero values left by a sparse settings file.
func (s *Settings) applyDefaults() {
	if s.DataDir == "" {
		s.DataDir = defaultDataDir()
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.BackupRetention <= 0 {
		s.BackupRetention = 10
	}
	if s.AutoKey.Pattern == "" {
		s.AutoKey.Pattern = "numbers"
	}
}

// BindingsPath returns the bindings document location under DataDir.
func (s Settings) BindingsPath() string {
	return filepath.Join(s.DataDir, "bindings.json")
}
