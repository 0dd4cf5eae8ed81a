package disc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"isoconvert/internal/logging"
	"isoconvert/internal/process"
	"isoconvert/internal/services"
)

const udisksTimeout = 30 * time.Second

var (
	loopMapped = regexp.MustCompile(`Mapped file .+ as (/dev/\S+?)\.?$`)
	mountedAt  = regexp.MustCompile(`Mounted \S+ at (.+?)\.?$`)
)

// Mount is a loop-mounted disc image.
type Mount struct {
	Image      string
	Device     string
	MountPoint string
}

// Mounter attaches disc images as read-only loop devices via udisksctl so
// unprivileged users can mount them.
type Mounter struct {
	binary string
	runner process.Runner
	logger *slog.Logger
}

// NewMounter constructs a Mounter that invokes binary (normally "udisksctl").
func NewMounter(binary string, runner process.Runner, logger *slog.Logger) *Mounter {
	return &Mounter{
		binary: binary,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "mounter"),
	}
}

// Mount sets up a loop device for image and mounts its filesystem.
func (m *Mounter) Mount(ctx context.Context, image string) (Mount, error) {
	logger := logging.WithContext(ctx, m.logger)
	lines, err := m.udisks(ctx, "loop-setup", "-r", "-f", image, "--no-user-interaction")
	if err != nil {
		return Mount{}, err
	}
	device := firstMatch(loopMapped, lines)
	if device == "" {
		return Mount{}, services.Wrap(services.ErrIO, "mount", "loop-setup", "no loop device reported for "+image, nil)
	}

	lines, err = m.udisks(ctx, "mount", "-b", device, "--no-user-interaction")
	if err != nil {
		m.deleteLoop(ctx, logger, device)
		return Mount{}, err
	}
	point := firstMatch(mountedAt, lines)
	if point == "" {
		m.deleteLoop(ctx, logger, device)
		return Mount{}, services.Wrap(services.ErrIO, "mount", "mount", "no mount point reported for "+device, nil)
	}

	logger.Info("image mounted",
		logging.String("device", device),
		logging.String("mount_point", point),
	)
	return Mount{Image: image, Device: device, MountPoint: point}, nil
}

// Dismount unmounts the filesystem and releases the loop device. Both steps
// are attempted; the first failure is returned.
func (m *Mounter) Dismount(ctx context.Context, mnt Mount) error {
	if mnt.Device == "" {
		return nil
	}
	logger := logging.WithContext(ctx, m.logger)
	var errs []error
	if _, err := m.udisks(ctx, "unmount", "-b", mnt.Device, "--no-user-interaction"); err != nil {
		errs = append(errs, err)
	}
	if _, err := m.udisks(ctx, "loop-delete", "-b", mnt.Device, "--no-user-interaction"); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		logging.WarnWithContext(logger, "image dismount failed", "dismount_failed",
			logging.String("device", mnt.Device),
			logging.String(logging.FieldErrorHint, "run `udisksctl unmount -b "+mnt.Device+"` manually"),
			logging.String(logging.FieldImpact, "loop device stays attached until released"),
			logging.Error(errs[0]),
		)
		return errs[0]
	}
	logger.Info("image dismounted", logging.String("device", mnt.Device))
	return nil
}

func (m *Mounter) deleteLoop(ctx context.Context, logger *slog.Logger, device string) {
	if _, err := m.udisks(ctx, "loop-delete", "-b", device, "--no-user-interaction"); err != nil {
		logger.Debug("loop device cleanup failed", logging.String("device", device), logging.Error(err))
	}
}

func (m *Mounter) udisks(ctx context.Context, args ...string) ([]string, error) {
	var lines []string
	outcome, err := m.runner.Run(ctx, m.binary, args, process.Options{
		Capture: true,
		Timeout: udisksTimeout,
		OnLine: func(line process.Line) {
			lines = append(lines, strings.TrimSpace(line.Text))
		},
	})
	op := args[0]
	if err != nil {
		return lines, fmt.Errorf("udisksctl %s: %w", op, err)
	}
	if outcome.TimedOut {
		return lines, services.Wrap(services.ErrTimeout, "mount", op, fmt.Sprintf("udisksctl did not finish within %s", udisksTimeout), nil)
	}
	if outcome.ExitCode != 0 {
		var cause error
		if detail := strings.Join(lines, "; "); detail != "" {
			cause = errors.New(detail)
		}
		return lines, services.Wrap(services.ErrExitCode, "mount", op, fmt.Sprintf("exit code %d", outcome.ExitCode), cause)
	}
	return lines, nil
}

func firstMatch(re *regexp.Regexp, lines []string) string {
	for _, line := range lines {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return ""
}
