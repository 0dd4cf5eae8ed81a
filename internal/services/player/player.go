// Package player drives the media player used to preload disc images.
//
// Opening an image in the player lets its disc-decryption layer prime the
// keys HandBrake needs later. The player is not expected to finish: it is
// killed when the preload timeout elapses and that is the normal outcome.
package player

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"isoconvert/internal/logging"
	"isoconvert/internal/process"
	"isoconvert/internal/services"
)

// DefaultTimeout is how long the player runs before it is killed.
const DefaultTimeout = 5 * time.Second

// Player launches the configured player binary.
type Player struct {
	binary  string
	args    []string
	timeout time.Duration
	runner  process.Runner
	logger  *slog.Logger
}

// New constructs a Player. Extra args are appended after --play-and-exit.
func New(binary string, extraArgs []string, timeout time.Duration, runner process.Runner, logger *slog.Logger) *Player {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger = logging.NewComponentLogger(logger, "player")
	if runner == nil {
		runner = process.New(logger)
	}
	return &Player{
		binary:  strings.TrimSpace(binary),
		args:    append([]string(nil), extraArgs...),
		timeout: timeout,
		runner:  runner,
		logger:  logger,
	}
}

// Args returns the player argument list for target.
func (p *Player) Args(target string) []string {
	args := []string{target, "--play-and-exit"}
	return append(args, p.args...)
}

// Preload plays target until the timeout. A timeout yields an ErrTimeout
// error, which callers record as the expected result rather than a failure;
// a non-zero exit before the timeout is an ErrExitCode failure.
func (p *Player) Preload(ctx context.Context, target string) error {
	outcome, err := p.runner.Run(ctx, p.binary, p.Args(target), process.Options{
		Capture: true,
		Timeout: p.timeout,
	})
	if err != nil {
		return err
	}
	logger := logging.WithContext(ctx, p.logger)
	switch {
	case outcome.TimedOut:
		logger.Debug("player stopped at preload timeout",
			logging.String(logging.FieldDecisionType, "preload_timeout"),
			logging.Duration("timeout", p.timeout),
		)
		return services.Wrap(services.ErrTimeout, "preload", target, fmt.Sprintf("player stopped after %s", p.timeout), nil)
	case outcome.ExitCode != 0:
		return services.Wrap(services.ErrExitCode, "preload", target, fmt.Sprintf("player exited with code %d", outcome.ExitCode), nil)
	default:
		return nil
	}
}
