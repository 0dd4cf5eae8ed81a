package handbrake

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"isoconvert/internal/disc"
	"isoconvert/internal/logging"
	"isoconvert/internal/process"
	"isoconvert/internal/services"
)

// progressLogStep is the percentage between logged progress updates.
const progressLogStep = 10

// Scanner lists the titles on a disc image.
type Scanner interface {
	Scan(ctx context.Context, image string) ([]disc.Title, error)
}

// Encoder converts one title of a disc image into output.
type Encoder interface {
	Encode(ctx context.Context, image string, ordinal int, output string) error
}

// Option configures the client.
type Option func(*Client)

// WithRunner injects a custom process runner (primarily for tests).
func WithRunner(r process.Runner) Option {
	return func(c *Client) {
		if r != nil {
			c.runner = r
		}
	}
}

// WithLogger sets the logger used for scan and encode events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "handbrake")
		}
	}
}

// WithPreset sets the --preset value.
func WithPreset(preset string) Option {
	return func(c *Client) { c.preset = preset }
}

// WithExtraArgs sets flags appended after the preset.
func WithExtraArgs(args []string) Option {
	return func(c *Client) {
		c.extraArgs = append([]string(nil), args...)
	}
}

// WithTimeouts sets the scan and per-title encode deadlines; zero disables either.
func WithTimeouts(scan, encode time.Duration) Option {
	return func(c *Client) {
		c.scanTimeout = scan
		c.encodeTimeout = encode
	}
}

// Client wraps HandBrakeCLI interactions.
type Client struct {
	binary        string
	preset        string
	extraArgs     []string
	scanTimeout   time.Duration
	encodeTimeout time.Duration
	runner        process.Runner
	logger        *slog.Logger
}

// New constructs a HandBrakeCLI client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "handbrake", "init", "binary required", nil)
	}
	client := &Client{
		binary: binary,
		logger: logging.NewComponentLogger(nil, "handbrake"),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.runner == nil {
		client.runner = process.New(client.logger)
	}
	if strings.TrimSpace(client.preset) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "handbrake", "init", "preset required", nil)
	}
	return client, nil
}

// ScanArgs returns the argument list for a full title scan of image.
func ScanArgs(image string) []string {
	return []string{"--title", "0", "-i", image, "--scan"}
}

// EncodeArgs returns the argument list for encoding one title.
func (c *Client) EncodeArgs(image string, ordinal int, output string) []string {
	args := []string{
		"--input", image,
		"--title", strconv.Itoa(ordinal),
		"--preset", c.preset,
	}
	args = append(args, c.extraArgs...)
	return append(args, "--output", output)
}

// Scan runs a title scan and returns the titles in the order HandBrake
// reported them. HandBrake writes its scan report to stderr, so both streams
// feed the parser.
func (c *Client) Scan(ctx context.Context, image string) ([]disc.Title, error) {
	logger := logging.WithContext(ctx, c.logger)
	parser := disc.Parser{
		OnTitle: func(t disc.Title) {
			logger.Debug("title found", logging.Int("ordinal", t.Ordinal))
		},
	}
	outcome, err := c.runner.Run(ctx, c.binary, ScanArgs(image), process.Options{
		Capture: true,
		Timeout: c.scanTimeout,
		OnLine: func(line process.Line) {
			parser.Feed(line.Text)
		},
	})
	if err != nil {
		return nil, err
	}
	if outcome.TimedOut {
		return nil, services.Wrap(services.ErrTimeout, "scan", image, fmt.Sprintf("no result within %s", c.scanTimeout), nil)
	}
	if outcome.ExitCode != 0 {
		return nil, services.Wrap(services.ErrExitCode, "scan", image, fmt.Sprintf("HandBrakeCLI exited with code %d", outcome.ExitCode), nil)
	}
	return parser.Titles(), nil
}

// Encode converts a single title. Any existing file at output is overwritten
// by HandBrake.
func (c *Client) Encode(ctx context.Context, image string, ordinal int, output string) error {
	if ordinal < 1 {
		return services.Wrap(services.ErrConfiguration, "convert", image, fmt.Sprintf("invalid title %d", ordinal), nil)
	}
	logger := logging.WithContext(ctx, c.logger)
	lastTask, lastStep := 0, -1
	outcome, err := c.runner.Run(ctx, c.binary, c.EncodeArgs(image, ordinal, output), process.Options{
		Capture: true,
		Timeout: c.encodeTimeout,
		OnLine: func(line process.Line) {
			p, ok := ParseProgress(line.Text)
			if !ok {
				return
			}
			// Multi-pass encodes restart at 0% for each task.
			if p.Task != lastTask {
				lastTask, lastStep = p.Task, -1
			}
			if step := int(p.Percent) / progressLogStep; step > lastStep {
				lastStep = step
				logger.Info("encode progress",
					logging.Int("task", p.Task),
					logging.Int("tasks", p.Tasks),
					logging.String("percent", strconv.FormatFloat(p.Percent, 'f', 1, 64)),
					logging.String("eta", p.ETA),
				)
			}
		},
	})
	if err != nil {
		return err
	}
	if outcome.TimedOut {
		return services.Wrap(services.ErrTimeout, "convert", image, fmt.Sprintf("title %d did not finish within %s", ordinal, c.encodeTimeout), nil)
	}
	if outcome.ExitCode != 0 {
		return services.Wrap(services.ErrExitCode, "convert", image, fmt.Sprintf("title %d: HandBrakeCLI exited with code %d", ordinal, outcome.ExitCode), nil)
	}
	return nil
}
