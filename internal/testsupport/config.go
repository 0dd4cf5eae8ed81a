package testsupport

import (
	"path/filepath"
	"testing"

	"isoconvert/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Notifications are disabled and history points into the temp tree.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.OutputRoot = filepath.Join(base, "output")
	cfgVal.Paths.WorklistFile = filepath.Join(base, "worklist.txt")
	cfgVal.History.Path = filepath.Join(base, "state", "history.db")
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithParallelism overrides pipeline.parallelism.
func WithParallelism(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Parallelism = n
	}
}

// WithPreloadTimeout overrides the preload deadline in seconds.
func WithPreloadTimeout(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.PreloadTimeoutSeconds = seconds
	}
}

// WithOutputBesideImages clears output_root so titles land next to each image.
func WithOutputBesideImages() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.OutputRoot = ""
	}
}

// WithStubbedTools writes the stub player and HandBrakeCLI scripts into the
// temp tree and points the config at them.
func WithStubbedTools() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		b.cfg.Tools.PlayerBinary = WriteScript(b.t, filepath.Join(binDir, "player"), PlayerScript)
		b.cfg.Tools.EncoderBinary = WriteScript(b.t, filepath.Join(binDir, "HandBrakeCLI"), HandBrakeScript)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
