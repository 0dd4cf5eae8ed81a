package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"isoconvert/internal/services"
)

// Validate ensures the configuration is internally consistent.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateEnvironment ensures the configured tools resolve to executables and
// the worklist file is readable. Run before any stage starts.
func (c *Config) ValidateEnvironment() error {
	binaries := []struct {
		key   string
		value string
	}{
		{"tools.player_binary", c.Tools.PlayerBinary},
		{"tools.encoder_binary", c.Tools.EncoderBinary},
	}
	if c.Pipeline.MountImages {
		binaries = append(binaries, struct {
			key   string
			value string
		}{"tools.udisksctl_binary", c.Tools.UdisksctlBinary})
	}
	for _, bin := range binaries {
		if _, err := ResolveBinary(bin.value); err != nil {
			return configError(bin.key, err)
		}
	}
	return c.ValidateWorklist()
}

// ValidateWorklist ensures the worklist file is set and is a readable regular file.
func (c *Config) ValidateWorklist() error {
	path := strings.TrimSpace(c.Paths.WorklistFile)
	if path == "" {
		return configError("paths.worklist_file", fmt.Errorf("must be set (or pass a worklist argument / %s)", EnvWorklist))
	}
	info, err := os.Stat(path)
	if err != nil {
		return configError("paths.worklist_file", err)
	}
	if !info.Mode().IsRegular() {
		return configError("paths.worklist_file", fmt.Errorf("%s is not a regular file", path))
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return configError("paths.worklist_file", fmt.Errorf("%s is not readable: %w", path, err))
	}
	return nil
}

// ResolveBinary locates name on PATH (or as a path) and confirms it is executable.
func ResolveBinary(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("binary not configured")
	}
	resolved, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found: %w", name, err)
	}
	if err := unix.Access(resolved, unix.X_OK); err != nil {
		return "", fmt.Errorf("%s is not executable: %w", resolved, err)
	}
	return resolved, nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Parallelism < 1 {
		return configError("pipeline.parallelism", fmt.Errorf("must be at least 1, got %d", c.Pipeline.Parallelism))
	}
	if c.Pipeline.PreloadTimeoutSeconds <= 0 {
		return configError("pipeline.preload_timeout_seconds", errors.New("must be positive"))
	}
	if c.Pipeline.ScanTimeoutSeconds < 0 {
		return configError("pipeline.scan_timeout_seconds", errors.New("must be non-negative"))
	}
	if c.Pipeline.ConvertTimeoutSeconds < 0 {
		return configError("pipeline.convert_timeout_seconds", errors.New("must be non-negative"))
	}
	if c.Pipeline.MinFreeGiB < 0 {
		return configError("pipeline.min_free_gib", errors.New("must be non-negative"))
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if c.Encoding.Preset == "" {
		return configError("encoding.preset", errors.New("must be set"))
	}
	if c.Encoding.Container == "" {
		return configError("encoding.container", errors.New("must be set"))
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return configError("logging.format", fmt.Errorf("unsupported value %q", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return configError("logging.level", fmt.Errorf("unsupported value %q", c.Logging.Level))
	}
	return nil
}

func configError(key string, err error) error {
	return services.Wrap(services.ErrConfiguration, "config", key, "", err)
}
