package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file and directory configuration.
type Paths struct {
	WorklistFile string `toml:"worklist_file" yaml:"worklist_file"`
	LogDir       string `toml:"log_dir" yaml:"log_dir"`
	StateDir     string `toml:"state_dir" yaml:"state_dir"`
	OutputRoot   string `toml:"output_root" yaml:"output_root"`
	OutputSubdir string `toml:"output_subdir" yaml:"output_subdir"`
}

// Tools names the external executables the pipeline drives.
type Tools struct {
	PlayerBinary    string   `toml:"player_binary" yaml:"player_binary"`
	PlayerArgs      []string `toml:"player_args" yaml:"player_args"`
	EncoderBinary   string   `toml:"encoder_binary" yaml:"encoder_binary"`
	UdisksctlBinary string   `toml:"udisksctl_binary" yaml:"udisksctl_binary"`
}

// Pipeline contains stage scheduling configuration.
type Pipeline struct {
	Parallelism           int  `toml:"parallelism" yaml:"parallelism"`
	PreloadTimeoutSeconds int  `toml:"preload_timeout_seconds" yaml:"preload_timeout_seconds"`
	ScanTimeoutSeconds    int  `toml:"scan_timeout_seconds" yaml:"scan_timeout_seconds"`
	ConvertTimeoutSeconds int  `toml:"convert_timeout_seconds" yaml:"convert_timeout_seconds"`
	MountImages           bool `toml:"mount_images" yaml:"mount_images"`
	MinFreeGiB            int  `toml:"min_free_gib" yaml:"min_free_gib"`
}

// Encoding contains the opaque encoder arguments.
type Encoding struct {
	Preset    string   `toml:"preset" yaml:"preset"`
	Container string   `toml:"container" yaml:"container"`
	ExtraArgs []string `toml:"extra_args" yaml:"extra_args"`
}

// History contains configuration for the run ledger.
type History struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic" yaml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout" yaml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" yaml:"format"`
	Level  string `toml:"level" yaml:"level"`
}

// Config encapsulates all configuration values for isoconvert.
//
// Configuration sections by subsystem:
//   - Paths: worklist, log, state, and output locations
//   - Tools: player, encoder, and udisksctl executables
//   - Pipeline: stage parallelism, timeouts, mounting, free-space floor
//   - Encoding: preset, container, and pass-through encoder flags
//   - History: SQLite run ledger
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths" yaml:"paths"`
	Tools         Tools         `toml:"tools" yaml:"tools"`
	Pipeline      Pipeline      `toml:"pipeline" yaml:"pipeline"`
	Encoding      Encoding      `toml:"encoding" yaml:"encoding"`
	History       History       `toml:"history" yaml:"history"`
	Notifications Notifications `toml:"notifications" yaml:"notifications"`
	Logging       Logging       `toml:"logging" yaml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Environment checks (tool lookup, worklist
// readability) are left to ValidateEnvironment so inspection commands can run
// on hosts that lack the tools.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := decode(file, resolvedPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decode(r io.Reader, path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(r)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return configError("parse config", err)
		}
	default:
		decoder := toml.NewDecoder(r)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(cfg); err != nil {
			return configError("parse config", err)
		}
	}
	return nil
}

// resolveConfigPath picks the config file to read. An explicit path is used
// as given even when missing; otherwise the per-user location is tried before
// ./isoconvert.toml, and the per-user path is reported when neither exists.
func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		switch _, err := os.Stat(expanded); {
		case err == nil:
			return expanded, true, nil
		case errors.Is(err, fs.ErrNotExist):
			return expanded, false, nil
		default:
			return "", false, fmt.Errorf("stat config: %w", err)
		}
	}

	userPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, projectPath} {
		if isRegularFile(candidate) {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// EnsureDirectories creates the log and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PreloadTimeout returns the player kill deadline.
func (c *Config) PreloadTimeout() time.Duration {
	return time.Duration(c.Pipeline.PreloadTimeoutSeconds) * time.Second
}

// ScanTimeout returns the scan deadline; zero means none.
func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.Pipeline.ScanTimeoutSeconds) * time.Second
}

// ConvertTimeout returns the per-title encode deadline; zero means none.
func (c *Config) ConvertTimeout() time.Duration {
	return time.Duration(c.Pipeline.ConvertTimeoutSeconds) * time.Second
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "isoconvert.lock")
}

// OutputDir returns the directory that receives encoded titles for image.
// With output_root set every image gets its own folder beneath it; otherwise
// output lands in a subdirectory next to the image.
func (c *Config) OutputDir(image string) string {
	if root := strings.TrimSpace(c.Paths.OutputRoot); root != "" {
		return filepath.Join(root, ImageName(image))
	}
	return filepath.Join(filepath.Dir(image), c.Paths.OutputSubdir)
}

// ImageName returns the file name of image without its extension.
func ImageName(image string) string {
	base := filepath.Base(image)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// expandPath resolves a leading "~" to the home directory and returns an
// absolute, cleaned path. The empty string passes through.
func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", p, err)
	}
	return abs, nil
}

// ExpandPath applies the same "~" and absolute-path rules used for config
// values.
func ExpandPath(p string) (string, error) {
	return expandPath(p)
}

// CreateSample writes the commented sample configuration to path, creating
// its directory.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
