package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"isoconvert/internal/config"
	"isoconvert/internal/services"
	"isoconvert/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedTools(), testsupport.WithParallelism(2))
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv(config.EnvWorklist, "")
	t.Setenv(config.EnvParallelism, "")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
worklist_file = %q
log_dir = %q
state_dir = %q
output_root = %q

[tools]
player_binary = %q
encoder_binary = %q

[pipeline]
parallelism = %d
min_free_gib = 0

[history]
path = %q

[logging]
level = "error"
`,
		cfg.Paths.WorklistFile,
		cfg.Paths.LogDir,
		cfg.Paths.StateDir,
		cfg.Paths.OutputRoot,
		cfg.Tools.PlayerBinary,
		cfg.Tools.EncoderBinary,
		cfg.Pipeline.Parallelism,
		cfg.History.Path,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommandConvertsWorklist(t *testing.T) {
	env := setupCLITestEnv(t)
	images := testsupport.WriteImages(t, filepath.Join(env.baseDir, "isos"), "Alpha.iso", "Beta.iso")
	testsupport.WriteWorklist(t, env.cfg.Paths.WorklistFile, images...)

	out, err := env.run(t, "run")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	for _, want := range []string{"Alpha", "Beta", "2/2", "2 succeeded, 0 failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.OutputRoot, "Alpha", "Alpha-1.mkv")); err != nil {
		t.Fatalf("expected converted output: %v", err)
	}

	history, err := env.run(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(history, filepath.Base(env.cfg.Paths.WorklistFile)) {
		t.Fatalf("history missing run:\n%s", history)
	}
}

func TestRunCommandExitsNonZeroOnFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	images := testsupport.WriteImages(t, filepath.Join(env.baseDir, "isos"), "good.iso", "broken.iso")
	list := filepath.Join(env.baseDir, "other.txt")
	testsupport.WriteWorklist(t, list, images...)

	out, err := env.run(t, "run", list)
	if !errors.Is(err, errRunFailed) {
		t.Fatalf("expected errRunFailed, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 succeeded, 1 failed") {
		t.Fatalf("summary missing tally:\n%s", out)
	}
	if !strings.Contains(out, "scan:") {
		t.Fatalf("summary missing failure detail:\n%s", out)
	}
}

func TestRunCommandRejectsMissingWorklist(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "run", filepath.Join(env.baseDir, "absent.txt"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunCommandEmptyWorklist(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteWorklist(t, env.cfg.Paths.WorklistFile, "# nothing yet", "")
	out, err := env.run(t, "run")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "No usable images") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestScanCommandListsTitles(t *testing.T) {
	env := setupCLITestEnv(t)
	images := testsupport.WriteImages(t, filepath.Join(env.baseDir, "isos"), "Movie.iso")

	out, err := env.run(t, "scan", images[0])
	if err != nil {
		t.Fatalf("scan: %v\n%s", err, out)
	}
	for _, want := range []string{"Movie", "01:52:30", "00:03:10"} {
		if !strings.Contains(out, want) {
			t.Fatalf("scan output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(env.cfg.Paths.OutputRoot); !os.IsNotExist(err) {
		t.Fatalf("scan must not create output")
	}
}

func TestCheckCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	images := testsupport.WriteImages(t, filepath.Join(env.baseDir, "isos"), "A.iso")
	testsupport.WriteWorklist(t, env.cfg.Paths.WorklistFile, images...)

	out, err := env.run(t, "check")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "All checks passed (1 images)") {
		t.Fatalf("unexpected check output:\n%s", out)
	}

	if _, err := env.run(t, "check", filepath.Join(env.baseDir, "missing.txt")); err == nil {
		t.Fatalf("expected check to fail for missing worklist")
	}
}

func TestHistoryShowAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	images := testsupport.WriteImages(t, filepath.Join(env.baseDir, "isos"), "Solo.iso")
	testsupport.WriteWorklist(t, env.cfg.Paths.WorklistFile, images...)
	if out, err := env.run(t, "run"); err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}

	summary, err := env.run(t, "run", "--skip-preflight")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	runID := strings.Fields(summary[strings.LastIndex(summary, "Run "):])[1]
	runID = strings.TrimSuffix(runID, ":")

	out, err := env.run(t, "history", "show", runID)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	for _, want := range []string{runID, "preload", "convert", "Solo-1.mkv"} {
		if !strings.Contains(out, want) {
			t.Fatalf("history show missing %q:\n%s", want, out)
		}
	}

	out, err = env.run(t, "history", "clear")
	if err != nil || !strings.Contains(out, "Removed 2 run(s)") {
		t.Fatalf("history clear: %v\n%s", err, out)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "generated", "config.toml")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	cmd = newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected init to refuse overwriting")
	}

	validated, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(validated, "Configuration valid") || !strings.Contains(validated, env.configPath) {
		t.Fatalf("unexpected validate output:\n%s", validated)
	}
}

func TestTestNotifyDisabled(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	if !strings.Contains(out, "Notifications disabled") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestFormatElapsed(t *testing.T) {
	cases := map[string]string{
		"0s":     "-",
		"250ms":  "250ms",
		"1h2m3s": "01:02:03",
	}
	for in, want := range cases {
		d, err := time.ParseDuration(in)
		if err != nil {
			t.Fatalf("parse %s: %v", in, err)
		}
		if got := formatElapsed(d); got != want {
			t.Fatalf("formatElapsed(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestLogsCommandShowsRunLog(t *testing.T) {
	env := setupCLITestEnv(t)
	logPath := filepath.Join(env.cfg.Paths.LogDir, "isoconvert.log")
	content := "2026-01-01 10:00:00 INFO [workflow] run started\n" +
		"2026-01-01 10:00:05 ERROR [workflow] a.iso (scan) – item failed\n"
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, err := env.run(t, "logs", "--grep", "error")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if !strings.Contains(out, "item failed") || strings.Contains(out, "run started") {
		t.Fatalf("unexpected logs output:\n%s", out)
	}
}
