package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (c *Config) applyEnv() error {
	if value, ok := os.LookupEnv(EnvWorklist); ok && strings.TrimSpace(value) != "" {
		c.Paths.WorklistFile = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(EnvParallelism); ok && strings.TrimSpace(value) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return configError("read "+EnvParallelism, err)
		}
		c.Pipeline.Parallelism = n
	}
	return nil
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeEncoding()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeLogging()
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultRequestTimeout
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorklistFile, err = expandPath(strings.TrimSpace(c.Paths.WorklistFile)); err != nil {
		return fmt.Errorf("paths.worklist_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.OutputRoot, err = expandPath(strings.TrimSpace(c.Paths.OutputRoot)); err != nil {
		return fmt.Errorf("paths.output_root: %w", err)
	}
	c.Paths.OutputSubdir = strings.Trim(strings.TrimSpace(c.Paths.OutputSubdir), `/\`)
	if c.Paths.OutputSubdir == "" {
		c.Paths.OutputSubdir = defaultOutputSubdir
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.PlayerBinary = strings.TrimSpace(c.Tools.PlayerBinary)
	if c.Tools.PlayerBinary == "" {
		c.Tools.PlayerBinary = defaultPlayerBinary
	}
	c.Tools.EncoderBinary = strings.TrimSpace(c.Tools.EncoderBinary)
	if c.Tools.EncoderBinary == "" {
		c.Tools.EncoderBinary = defaultEncoderBinary
	}
	c.Tools.UdisksctlBinary = strings.TrimSpace(c.Tools.UdisksctlBinary)
	if c.Tools.UdisksctlBinary == "" {
		c.Tools.UdisksctlBinary = defaultUdisksctlBinary
	}
	c.Tools.PlayerArgs = compactArgs(c.Tools.PlayerArgs)
}

func (c *Config) normalizeEncoding() {
	c.Encoding.Preset = strings.TrimSpace(c.Encoding.Preset)
	c.Encoding.Container = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Encoding.Container)), ".")
	c.Encoding.ExtraArgs = compactArgs(c.Encoding.ExtraArgs)
}

func (c *Config) normalizeHistory() error {
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = filepath.Join(c.Paths.StateDir, historyFileName)
		return nil
	}
	var err error
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

func compactArgs(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
