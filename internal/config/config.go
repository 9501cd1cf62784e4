// Package config resolves serverdeck settings from defaults, a YAML file,
// SERVERDECK_* environment variables and command-line flags, in that order
// of increasing precedence. Every key records where its value came from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"serverdeck/internal/logging"
)

type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

const (
	KeyConfig          = "config"
	KeyServerDir       = "server-dir"
	KeyProjectRoot     = "project-root"
	KeyDataDir         = "data-dir"
	KeyDisabledModsDir = "disabled-mods-dir"
	KeyListen          = "listen"
	KeyToken           = "token"
	KeyAllowedOrigins  = "allowed-origins"
	KeyLogLevel        = "log-level"
	KeyDebounce        = "debounce"
	KeyKillTimeout     = "kill-timeout"
	KeyReadyPatterns   = "ready-patterns"
)

const (
	appDirName     = "serverdeck"
	configFileName = "config.yaml"
	envPrefix      = "SERVERDECK_"

	DefaultListen      = "127.0.0.1:7420"
	DefaultDebounce    = 500 * time.Millisecond
	DefaultKillTimeout = 15 * time.Second
)

var DefaultReadyPatterns = []string{"Server started", "listening", "Done", "Listening on"}

type Config struct {
	File            string
	ServerDir       string
	ProjectRoot     string
	DataDir         string
	DisabledModsDir string
	Listen          string
	Token           string
	AllowedOrigins  []string
	LogLevel        logging.Level
	Debounce        time.Duration
	KillTimeout     time.Duration
	ReadyPatterns   []string
	Sources         map[string]Source
}

// BindFlags registers every configurable key on flags.
func BindFlags(flags *pflag.FlagSet) {
	flags.String(KeyConfig, "", "path to the YAML config file")
	flags.String(KeyServerDir, "", "game server directory (contains universe/)")
	flags.String(KeyProjectRoot, "", "directory holding the start.sh/start.bat launcher")
	flags.String(KeyDataDir, "", "directory for serverdeck state and the asset cache")
	flags.String(KeyDisabledModsDir, "", "directory disabled mods are moved into")
	flags.String(KeyListen, "", "HTTP listen address")
	flags.String(KeyToken, "", "bearer token required by the API")
	flags.StringSlice(KeyAllowedOrigins, nil, "extra websocket origins to accept")
	flags.String(KeyLogLevel, "", "log level (debug, info, warning, error)")
	flags.Duration(KeyDebounce, 0, "quiet period before a data refresh is broadcast")
	flags.Duration(KeyKillTimeout, 0, "grace period before a stopping server is killed")
	flags.StringSlice(KeyReadyPatterns, nil, "output fragments that mark the server as ready")
}

// Load resolves the configuration. flags may be nil.
func Load(flags *pflag.FlagSet) (Config, error) {
	l := &loader{flags: flags, cfg: Config{Sources: make(map[string]Source)}}

	defaultFile := defaultConfigFile()
	l.cfg.File = l.str(KeyConfig, defaultFile, "")
	file, err := readFile(l.cfg.File)
	if err != nil {
		return Config{}, err
	}

	cwd, _ := os.Getwd()
	l.cfg.ServerDir = absPath(l.str(KeyServerDir, filepath.Join(cwd, "Server"), file.ServerDir))
	l.cfg.ProjectRoot = absPath(l.str(KeyProjectRoot, filepath.Dir(l.cfg.ServerDir), file.ProjectRoot))
	l.cfg.DataDir = absPath(l.str(KeyDataDir, defaultDataDir(), file.DataDir))
	l.cfg.DisabledModsDir = absPath(l.str(KeyDisabledModsDir, filepath.Join(l.cfg.ProjectRoot, "disabled-mods"), file.DisabledModsDir))

	l.cfg.Listen = l.str(KeyListen, DefaultListen, file.Listen)
	if l.cfg.Listen == "" {
		return Config{}, fmt.Errorf("invalid %s: value cannot be empty", KeyListen)
	}
	l.cfg.Token = l.str(KeyToken, "", file.Token)
	l.cfg.AllowedOrigins = l.list(KeyAllowedOrigins, nil, file.AllowedOrigins)

	rawLevel := l.str(KeyLogLevel, string(logging.LevelInfo), file.LogLevel)
	level, ok := logging.ParseLevel(rawLevel)
	if !ok {
		return Config{}, fmt.Errorf("invalid %s: %q", KeyLogLevel, rawLevel)
	}
	l.cfg.LogLevel = level

	if l.cfg.Debounce, err = l.duration(KeyDebounce, DefaultDebounce, file.Debounce); err != nil {
		return Config{}, err
	}
	if l.cfg.KillTimeout, err = l.duration(KeyKillTimeout, DefaultKillTimeout, file.KillTimeout); err != nil {
		return Config{}, err
	}
	l.cfg.ReadyPatterns = l.list(KeyReadyPatterns, DefaultReadyPatterns, file.ReadyPatterns)

	return l.cfg, nil
}

// Entry is one resolved key for display.
type Entry struct {
	Key    string
	Value  string
	Source Source
}

// Entries lists every key in a stable order. The token is masked.
func (c Config) Entries() []Entry {
	values := map[string]string{
		KeyConfig:          c.File,
		KeyServerDir:       c.ServerDir,
		KeyProjectRoot:     c.ProjectRoot,
		KeyDataDir:         c.DataDir,
		KeyDisabledModsDir: c.DisabledModsDir,
		KeyListen:          c.Listen,
		KeyToken:           maskToken(c.Token),
		KeyAllowedOrigins:  strings.Join(c.AllowedOrigins, ","),
		KeyLogLevel:        string(c.LogLevel),
		KeyDebounce:        c.Debounce.String(),
		KeyKillTimeout:     c.KillTimeout.String(),
		KeyReadyPatterns:   strings.Join(c.ReadyPatterns, ","),
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		source := c.Sources[key]
		if source == "" {
			source = SourceDefault
		}
		entries = append(entries, Entry{Key: key, Value: values[key], Source: source})
	}
	return entries
}

type loader struct {
	flags *pflag.FlagSet
	cfg   Config
}

func (l *loader) str(key, fallback, fromFile string) string {
	value, source := fallback, SourceDefault
	if trimmed := strings.TrimSpace(fromFile); trimmed != "" {
		value, source = trimmed, SourceFile
	}
	if env := strings.TrimSpace(os.Getenv(EnvName(key))); env != "" {
		value, source = env, SourceEnv
	}
	if flag := l.changed(key); flag != nil {
		value, source = strings.TrimSpace(flag.Value.String()), SourceFlag
	}
	l.cfg.Sources[key] = source
	return value
}

func (l *loader) list(key string, fallback, fromFile []string) []string {
	value, source := append([]string(nil), fallback...), SourceDefault
	if cleaned := cleanList(fromFile); len(cleaned) > 0 {
		value, source = cleaned, SourceFile
	}
	if env := cleanList(strings.Split(os.Getenv(EnvName(key)), ",")); len(env) > 0 {
		value, source = env, SourceEnv
	}
	if l.changed(key) != nil {
		values, _ := l.flags.GetStringSlice(key)
		value, source = cleanList(values), SourceFlag
	}
	l.cfg.Sources[key] = source
	return value
}

func (l *loader) duration(key string, fallback time.Duration, fromFile string) (time.Duration, error) {
	raw := l.str(key, fallback.String(), fromFile)
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("invalid %s: must be > 0", key)
	}
	return parsed, nil
}

func (l *loader) changed(key string) *pflag.Flag {
	if l.flags == nil {
		return nil
	}
	flag := l.flags.Lookup(key)
	if flag == nil || !flag.Changed {
		return nil
	}
	return flag
}

// EnvName maps a key to its environment variable.
func EnvName(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return filepath.Join(".", "."+appDirName)
		}
		return filepath.Join(home, "."+appDirName)
	}
	return filepath.Join(base, appDirName)
}

func defaultConfigFile() string {
	return filepath.Join(defaultDataDir(), configFileName)
}

func absPath(path string) string {
	if path == "" {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func cleanList(values []string) []string {
	var cleaned []string
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}
	return "********"
}
