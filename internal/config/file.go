package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"serverdeck/internal/fsutil"
)

var ErrInvalidServerDir = errors.New("selected directory does not appear to be a valid Hytale server directory")

type fileValues struct {
	ServerDir       string   `yaml:"server-dir"`
	ProjectRoot     string   `yaml:"project-root"`
	DataDir         string   `yaml:"data-dir"`
	DisabledModsDir string   `yaml:"disabled-mods-dir"`
	Listen          string   `yaml:"listen"`
	Token           string   `yaml:"token"`
	AllowedOrigins  []string `yaml:"allowed-origins"`
	LogLevel        string   `yaml:"log-level"`
	Debounce        string   `yaml:"debounce"`
	KillTimeout     string   `yaml:"kill-timeout"`
	ReadyPatterns   []string `yaml:"ready-patterns"`
}

// readFile loads the YAML file. A missing file yields zero values.
func readFile(path string) (fileValues, error) {
	var values fileValues
	if path == "" {
		return values, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return values, fmt.Errorf("read config file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return values, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return values, nil
}

// IsServerDirValid reports whether dir looks like a game server directory.
func IsServerDirValid(dir string) bool {
	if !fsutil.IsDir(dir) {
		return false
	}
	for _, marker := range []string{"HytaleServer.jar", "config.json", "universe"} {
		if fsutil.Exists(filepath.Join(dir, marker)) {
			return true
		}
	}
	return false
}

// SetServerDir validates dir, persists it to the config file and updates c.
// Other keys already in the file are preserved.
func (c *Config) SetServerDir(dir string) error {
	resolved := absPath(dir)
	if !IsServerDirValid(resolved) {
		return ErrInvalidServerDir
	}
	if c.File == "" {
		return errors.New("no config file path configured")
	}

	document := map[string]any{}
	data, err := os.ReadFile(c.File)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config file: %w", err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &document); err != nil {
			return fmt.Errorf("parse config file %s: %w", c.File, err)
		}
	}
	document[KeyServerDir] = resolved

	encoded, err := yaml.Marshal(document)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(c.File, 0o644, bytes.NewReader(encoded), true); err != nil {
		return fmt.Errorf("failed to save server path: %w", err)
	}

	c.ServerDir = resolved
	if c.Sources == nil {
		c.Sources = make(map[string]Source)
	}
	c.Sources[KeyServerDir] = SourceFile
	return nil
}
