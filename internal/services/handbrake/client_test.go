package handbrake_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"isoconvert/internal/disc"
	"isoconvert/internal/logging"
	"isoconvert/internal/process"
	"isoconvert/internal/services"
	"isoconvert/internal/services/handbrake"
)

type fakeRunner struct {
	binary  string
	args    []string
	opts    process.Options
	lines   []process.Line
	outcome process.Outcome
	err     error
}

func (f *fakeRunner) Run(_ context.Context, binary string, args []string, opts process.Options) (process.Outcome, error) {
	f.binary = binary
	f.args = append([]string(nil), args...)
	f.opts = opts
	for _, line := range f.lines {
		if opts.OnLine != nil {
			opts.OnLine(line)
		}
	}
	return f.outcome, f.err
}

func newClient(t *testing.T, runner process.Runner, opts ...handbrake.Option) *handbrake.Client {
	t.Helper()
	base := []handbrake.Option{
		handbrake.WithRunner(runner),
		handbrake.WithLogger(logging.NewNop()),
		handbrake.WithPreset("H.265 MKV 2160p60 4K"),
		handbrake.WithExtraArgs([]string{"--markers", "--all-audio"}),
	}
	client, err := handbrake.New("HandBrakeCLI", append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestScanParsesBothStreams(t *testing.T) {
	runner := &fakeRunner{lines: []process.Line{
		{Stream: process.Stderr, Text: "+ title 1:"},
		{Stream: process.Stderr, Text: "  + duration: 01:52:30"},
		{Stream: process.Stdout, Text: "+ title 2:"},
		{Stream: process.Stderr, Text: "  + duration: 00:45:00"},
	}}
	client := newClient(t, runner, handbrake.WithTimeouts(time.Minute, 0))

	titles, err := client.Scan(context.Background(), "/discs/a.iso")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []disc.Title{{Ordinal: 1, Duration: "01:52:30"}, {Ordinal: 2, Duration: "00:45:00"}}
	if !reflect.DeepEqual(titles, want) {
		t.Fatalf("titles = %+v", titles)
	}
	if strings.Join(runner.args, " ") != "--title 0 -i /discs/a.iso --scan" {
		t.Fatalf("scan args = %q", runner.args)
	}
	if !runner.opts.Capture || runner.opts.Timeout != time.Minute {
		t.Fatalf("unexpected options %+v", runner.opts)
	}
}

func TestScanNonZeroExit(t *testing.T) {
	runner := &fakeRunner{outcome: process.Outcome{ExitCode: 2}, lines: []process.Line{{Text: "+ title 1:"}}}
	_, err := newClient(t, runner).Scan(context.Background(), "/discs/a.iso")
	if !errors.Is(err, services.ErrExitCode) {
		t.Fatalf("expected ErrExitCode, got %v", err)
	}
	if !strings.Contains(err.Error(), "/discs/a.iso") {
		t.Fatalf("error should name the image: %v", err)
	}
}

func TestScanTimeout(t *testing.T) {
	runner := &fakeRunner{outcome: process.Outcome{ExitCode: -1, TimedOut: true}}
	_, err := newClient(t, runner).Scan(context.Background(), "/discs/a.iso")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestScanLaunchErrorPassesThrough(t *testing.T) {
	launch := services.Wrap(services.ErrLaunch, "process", "start", "HandBrakeCLI", errors.New("not found"))
	runner := &fakeRunner{err: launch}
	_, err := newClient(t, runner).Scan(context.Background(), "/discs/a.iso")
	if !errors.Is(err, services.ErrLaunch) {
		t.Fatalf("expected ErrLaunch, got %v", err)
	}
}

func TestEncodeArgs(t *testing.T) {
	runner := &fakeRunner{}
	client := newClient(t, runner)
	if err := client.Encode(context.Background(), "/discs/a.iso", 3, "/discs/Converted/a-3.mkv"); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []string{
		"--input", "/discs/a.iso",
		"--title", "3",
		"--preset", "H.265 MKV 2160p60 4K",
		"--markers", "--all-audio",
		"--output", "/discs/Converted/a-3.mkv",
	}
	if !reflect.DeepEqual(runner.args, want) {
		t.Fatalf("args = %q", runner.args)
	}
	if runner.binary != "HandBrakeCLI" {
		t.Fatalf("binary = %q", runner.binary)
	}
}

func TestEncodeFailureModes(t *testing.T) {
	cases := []struct {
		name    string
		outcome process.Outcome
		want    error
	}{
		{"exit code", process.Outcome{ExitCode: 1}, services.ErrExitCode},
		{"timeout", process.Outcome{ExitCode: -1, TimedOut: true}, services.ErrTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := newClient(t, &fakeRunner{outcome: tc.outcome}).Encode(context.Background(), "/a.iso", 1, "/out/a-1.mkv")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestEncodeLogsProgressForEveryPass(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "encode.json")
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	var lines []process.Line
	for _, task := range []int{1, 2} {
		for _, pct := range []string{"5.00", "55.00", "99.00"} {
			lines = append(lines, process.Line{Stream: process.Stdout, Text: fmt.Sprintf("Encoding: task %d of 2, %s %%", task, pct)})
		}
	}
	client := newClient(t, &fakeRunner{lines: lines}, handbrake.WithLogger(logger))
	if err := client.Encode(context.Background(), "/a.iso", 1, "/out/a-1.mkv"); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	perTask := map[float64]int{}
	for _, raw := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
		if entry["msg"] == "encode progress" {
			task, _ := entry["task"].(float64)
			perTask[task]++
		}
	}
	if perTask[1] != 3 || perTask[2] != 3 {
		t.Fatalf("progress lines per task = %v, want 3 for each pass", perTask)
	}
}

func TestEncodeRejectsInvalidTitle(t *testing.T) {
	runner := &fakeRunner{}
	err := newClient(t, runner).Encode(context.Background(), "/a.iso", 0, "/out/a-0.mkv")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if runner.args != nil {
		t.Fatal("runner should not be invoked")
	}
}

func TestNewRequiresBinaryAndPreset(t *testing.T) {
	if _, err := handbrake.New(" "); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for empty binary, got %v", err)
	}
	if _, err := handbrake.New("HandBrakeCLI"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for empty preset, got %v", err)
	}
}

func TestParseProgress(t *testing.T) {
	p, ok := handbrake.ParseProgress("Encoding: task 1 of 1, 45.67 % (58.12 fps, avg 60.01 fps, ETA 00h12m03s)")
	if !ok {
		t.Fatal("expected progress line to parse")
	}
	if p.Task != 1 || p.Tasks != 1 || p.Percent != 45.67 || p.FPS != 58.12 || p.ETA != "00h12m03s" {
		t.Fatalf("unexpected progress %+v", p)
	}

	p, ok = handbrake.ParseProgress("Encoding: task 2 of 2, 3.10 %")
	if !ok || p.Task != 2 || p.Percent != 3.1 || p.ETA != "" {
		t.Fatalf("short form: %+v %v", p, ok)
	}

	if _, ok := handbrake.ParseProgress("Muxing: this may take awhile..."); ok {
		t.Fatal("non-progress line should not parse")
	}
}
