package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"isoconvert/internal/config"
	"isoconvert/internal/disc"
	"isoconvert/internal/logging"
	"isoconvert/internal/notifications"
	"isoconvert/internal/process"
	"isoconvert/internal/services"
	"isoconvert/internal/services/handbrake"
	"isoconvert/internal/services/player"
	"isoconvert/internal/stage"
)

// Stage names used in logs, reports and history.
const (
	StagePreload = "preload"
	StageScan    = "scan"
	StageConvert = "convert"
)

// Preloader primes an image (or its mount point) before scanning.
type Preloader interface {
	Preload(ctx context.Context, target string) error
}

// Scanner lists the titles on an image.
type Scanner interface {
	Scan(ctx context.Context, image string) ([]disc.Title, error)
}

// Encoder converts a single title of an image into output.
type Encoder interface {
	Encode(ctx context.Context, image string, ordinal int, output string) error
}

// Mounter attaches an image so the preloader can play its filesystem.
type Mounter interface {
	Mount(ctx context.Context, image string) (disc.Mount, error)
	Dismount(ctx context.Context, mnt disc.Mount) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRunner sets the process runner used by the default tool clients.
func WithRunner(r process.Runner) Option {
	return func(p *Pipeline) { p.runner = r }
}

// WithPreloader replaces the player-backed preloader.
func WithPreloader(pl Preloader) Option {
	return func(p *Pipeline) { p.preloader = pl }
}

// WithScanner replaces the HandBrake scanner.
func WithScanner(s Scanner) Option {
	return func(p *Pipeline) { p.scanner = s }
}

// WithEncoder replaces the HandBrake encoder.
func WithEncoder(e Encoder) Option {
	return func(p *Pipeline) { p.encoder = e }
}

// WithMounter enables mounting images before the preload.
func WithMounter(m Mounter) Option {
	return func(p *Pipeline) { p.mounter = m }
}

// WithNotifier publishes run events.
func WithNotifier(n notifications.Service) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithRunID sets the correlation id attached to logs and the report.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// Pipeline runs the three conversion stages over a worklist.
type Pipeline struct {
	cfg       *config.Config
	logger    *slog.Logger
	runner    process.Runner
	preloader Preloader
	scanner   Scanner
	encoder   Encoder
	mounter   Mounter
	notifier  notifications.Service
	runID     string
}

// New builds a Pipeline from cfg. Tool clients not supplied through options
// are constructed from cfg and share one process runner.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", "config required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "workflow"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.runner == nil {
		p.runner = process.New(logger)
	}
	if p.preloader == nil {
		p.preloader = player.New(cfg.Tools.PlayerBinary, cfg.Tools.PlayerArgs, cfg.PreloadTimeout(), p.runner, logger)
	}
	if p.scanner == nil || p.encoder == nil {
		client, err := handbrake.New(cfg.Tools.EncoderBinary,
			handbrake.WithRunner(p.runner),
			handbrake.WithLogger(logger),
			handbrake.WithPreset(cfg.Encoding.Preset),
			handbrake.WithExtraArgs(cfg.Encoding.ExtraArgs),
			handbrake.WithTimeouts(cfg.ScanTimeout(), cfg.ConvertTimeout()),
		)
		if err != nil {
			return nil, err
		}
		if p.scanner == nil {
			p.scanner = client
		}
		if p.encoder == nil {
			p.encoder = client
		}
	}
	if p.mounter == nil && cfg.Pipeline.MountImages {
		p.mounter = disc.NewMounter(cfg.Tools.UdisksctlBinary, p.runner, logger)
	}
	if p.notifier == nil {
		p.notifier = notifications.NewService(cfg)
	}
	return p, nil
}

// Run executes preload, scan and convert over items. Each stage finishes for
// every item before the next begins. The returned error is non-nil only for
// configuration problems or when ctx was cancelled; per-item failures live in
// the Report.
func (p *Pipeline) Run(ctx context.Context, items []string) (*Report, error) {
	ctx = services.WithRunID(ctx, p.runID)
	logger := logging.WithContext(ctx, p.logger)
	report := newReport(p.runID, items)

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("items", len(items)),
		logging.Int("parallelism", p.cfg.Pipeline.Parallelism),
	)
	p.notify(ctx, notifications.EventRunStarted, notifications.Payload{"count": len(items)})

	preloads, err := runStage(ctx, p, StagePreload, items, p.preloadItem)
	if err != nil {
		return nil, err
	}
	for item, res := range preloads {
		report.item(item).Preload = outcomeOf(res.Err, res.Duration)
	}

	scans, err := runStage(ctx, p, StageScan, items, p.scanItem)
	if err != nil {
		return nil, err
	}
	for item, res := range scans {
		entry := report.item(item)
		entry.Scan = outcomeOf(res.Err, res.Duration)
		for _, t := range res.Value {
			entry.Titles = append(entry.Titles, TitleReport{Ordinal: t.Ordinal, Length: t.Duration, Status: services.StatusSkipped})
		}
	}

	converts, err := runStage(ctx, p, StageConvert, items, func(ctx context.Context, item string) ([]TitleReport, error) {
		scan := scans[item]
		if scan.Err != nil {
			return nil, services.Wrap(services.ErrSkipped, StageConvert, item, "scan did not succeed", nil)
		}
		return p.convertItem(ctx, item, scan.Value)
	})
	if err != nil {
		return nil, err
	}
	for item, res := range converts {
		entry := report.item(item)
		entry.Convert = outcomeOf(res.Err, res.Duration)
		if res.Value != nil {
			entry.Titles = res.Value
		}
		if res.Err == nil && len(entry.Titles) == 0 {
			entry.Convert.Detail = "no titles found"
		}
	}

	report.FinishedAt = time.Now()
	succeeded, failed := report.Tally()
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("succeeded", succeeded),
		logging.Int("failed", failed),
		logging.Duration("elapsed", report.Elapsed()),
	)
	p.notify(context.WithoutCancel(ctx), notifications.EventRunCompleted, notifications.Payload{
		"succeeded": succeeded,
		"failed":    failed,
		"duration":  report.Elapsed(),
	})

	if err := ctx.Err(); err != nil {
		report.Interrupted = true
		return report, err
	}
	return report, nil
}

// runStage runs action over items with stage-scoped context and logging.
func runStage[T any](ctx context.Context, p *Pipeline, name string, items []string, action func(context.Context, string) (T, error)) (map[string]stage.Result[T], error) {
	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, p.logger)
	start := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("items", len(items)),
	)

	results, err := stage.Run(stageCtx, items, p.cfg.Pipeline.Parallelism, func(ctx context.Context, item string) (T, error) {
		itemCtx := services.WithItem(ctx, item)
		itemLogger := logging.WithContext(itemCtx, p.logger)
		itemLogger.Info("item started",
			logging.String(logging.FieldEventType, "item_start"),
			logging.String("label", disc.Label(item)),
		)
		return action(itemCtx, item)
	})
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		res := results[item]
		p.logItemResult(services.WithItem(stageCtx, item), name, item, res.Err, res.Duration)
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}

func (p *Pipeline) logItemResult(ctx context.Context, stageName, item string, err error, elapsed time.Duration) {
	logger := logging.WithContext(ctx, p.logger)
	status := services.Classify(err)
	switch {
	case status == services.StatusSucceeded:
		logger.Info("item completed",
			logging.String(logging.FieldEventType, "item_complete"),
			logging.Duration("elapsed", elapsed),
		)
	case status == services.StatusTimeout && stageName == StagePreload:
		logger.Info("preload stopped at timeout",
			logging.String(logging.FieldEventType, "item_complete"),
			logging.String(logging.FieldDecisionType, "preload_timeout"),
			logging.Duration("elapsed", elapsed),
		)
	case status == services.StatusSkipped:
		logger.Info("item skipped",
			logging.String(logging.FieldEventType, "item_skipped"),
			logging.String("reason", err.Error()),
		)
	default:
		var panicErr *stage.PanicError
		attrs := []logging.Attr{
			logging.String("status", status),
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
		}
		if errors.As(err, &panicErr) {
			attrs = append(attrs, logging.String("stack", string(panicErr.Stack)))
		}
		logging.ErrorWithContext(logger, "item failed", "item_failure", attrs...)
		p.notify(ctx, notifications.EventItemFailed, notifications.Payload{
			"item":  item,
			"stage": stageName,
			"error": err.Error(),
		})
	}
}

func (p *Pipeline) preloadItem(ctx context.Context, item string) (struct{}, error) {
	target := item
	if p.mounter != nil {
		mnt, err := p.mounter.Mount(ctx, item)
		if err != nil {
			return struct{}{}, err
		}
		defer func() {
			// Dismount even when the run is being cancelled.
			_ = p.mounter.Dismount(context.WithoutCancel(ctx), mnt)
		}()
		target = mnt.MountPoint
	}
	return struct{}{}, p.preloader.Preload(ctx, target)
}

func (p *Pipeline) scanItem(ctx context.Context, item string) ([]disc.Title, error) {
	titles, err := p.scanner.Scan(ctx, item)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, p.logger).Info("titles scanned",
		logging.Int("count", len(titles)),
		logging.String("titles", disc.Summary(titles)),
	)
	return titles, nil
}

// convertItem encodes titles one after another. The first failure aborts the
// remaining titles of this item; they are reported as skipped.
func (p *Pipeline) convertItem(ctx context.Context, item string, titles []disc.Title) ([]TitleReport, error) {
	logger := logging.WithContext(ctx, p.logger)
	reports := make([]TitleReport, len(titles))
	for i, t := range titles {
		reports[i] = TitleReport{Ordinal: t.Ordinal, Length: t.Duration, Status: services.StatusSkipped}
	}
	if len(titles) == 0 {
		logging.WarnWithContext(logger, "no titles to convert", "convert_no_titles",
			logging.String(logging.FieldErrorHint, "check the scan output for this image"),
			logging.String(logging.FieldImpact, "nothing was encoded for this image"),
		)
		return reports, nil
	}

	outDir := p.cfg.OutputDir(item)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return reports, services.Wrap(services.ErrIO, StageConvert, item, "create output directory", err)
	}

	for i, t := range titles {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		titleCtx := services.WithTitle(ctx, t.Ordinal)
		output := OutputPath(outDir, item, t.Ordinal, p.cfg.Encoding.Container)
		reports[i].Output = output

		logging.WithContext(titleCtx, p.logger).Info("title encode started",
			logging.String(logging.FieldEventType, "title_start"),
			logging.String("output", output),
			logging.String("length", t.Duration),
		)
		start := time.Now()
		err := p.encoder.Encode(titleCtx, item, t.Ordinal, output)
		reports[i].Elapsed = time.Since(start)
		reports[i].Status = services.Classify(err)
		if err != nil {
			reports[i].Err = err
			return reports, err
		}
		logging.WithContext(titleCtx, p.logger).Info("title encoded",
			logging.String(logging.FieldEventType, "title_complete"),
			logging.String("output", output),
			logging.Duration("elapsed", reports[i].Elapsed),
		)
	}
	return reports, nil
}

func (p *Pipeline) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Publish(ctx, event, payload); err != nil {
		logging.WithContext(ctx, p.logger).Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}

// OutputPath returns <dir>/<image name>-<ordinal>.<container>.
func OutputPath(dir, image string, ordinal int, container string) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%d.%s", config.ImageName(image), ordinal, container))
}
