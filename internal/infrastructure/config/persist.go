package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// settingsFilePermissions keeps credentials readable by the agent only.
const settingsFilePermissions = 0600

// SettingsFile persists runtime Settings as YAML.
type SettingsFile struct {
	path string
}

// NewSettingsFile returns a SettingsFile backed by path.
func NewSettingsFile(path string) *SettingsFile {
	return &SettingsFile{path: path}
}

// Path returns the backing file path.
func (f *SettingsFile) Path() string {
	return f.path
}

// Load reads the persisted settings.
//
// It never fails to produce usable settings: when the file is absent or
// unparsable the defaults are returned, together with the error so the
// caller can log it. Fields missing from the file keep their defaults.
func (f *SettingsFile) Load() (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return s, fmt.Errorf("reading settings file: %w", err)
	}

	parsed := DefaultSettings()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return s, fmt.Errorf("parsing settings file: %w", err)
	}

	return parsed.Normalize(), nil
}

// Save writes settings to disk. The write goes to a temporary file first
// and is renamed into place so a power cut never leaves a truncated file.
func (f *SettingsFile) Save(s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := tmp.Chmod(settingsFilePermissions); err != nil {
		tmp.Close() //nolint:errcheck // chmod error takes precedence
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp settings file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replacing settings file: %w", err)
	}
	return nil
}
